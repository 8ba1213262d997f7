package proximity

import (
	"image"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/sceneaid/utils"
)

// Aggregate reduces the nearness inside box to a single proximity score: the median of the
// region's finite values. Boxes are clamped to the map, never wrapped. The median keeps the
// score on the object as long as it fills more than half of the box, where a mean would be
// dragged toward the background.
func Aggregate(nm *NearnessMap, box image.Rectangle) (float64, error) {
	if nm == nil || !nm.values.HasData() {
		return 0, newInvalidInputError("nearness map is empty")
	}
	region := box.Intersect(nm.Bounds())
	if region.Empty() {
		return 0, newEmptyRegionError("box %v is empty within %v", box, nm.Bounds())
	}

	values := nm.values.Values(region)
	finite := values[:0]
	for _, v := range values {
		if utils.IsFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, newEmptyRegionError("box %v has no finite nearness values", region)
	}

	median, err := stats.Median(finite)
	if err != nil {
		return 0, errors.Wrapf(err, "could not take median of box %v", region)
	}
	return median, nil
}
