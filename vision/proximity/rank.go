package proximity

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/sceneaid/vision/objectdetection"
)

// NoThreshold keeps every object in scene mode.
var NoThreshold = math.Inf(1)

// ScoredObject is a detection with the median nearness over its box.
type ScoredObject struct {
	Label       string
	BoundingBox image.Rectangle
	Confidence  float64
	Proximity   float64
}

// Center returns the center of the bounding box in pixel coordinates.
func (o ScoredObject) Center() (x, y float64) {
	return float64(o.BoundingBox.Min.X+o.BoundingBox.Max.X) / 2, float64(o.BoundingBox.Min.Y+o.BoundingBox.Max.Y) / 2
}

func (o ScoredObject) String() string {
	return fmt.Sprintf("%s %v proximity=%.3f", o.Label, o.BoundingBox, o.Proximity)
}

// Score aggregates every detection against the nearness map, in input order. A detection
// that is malformed or covers no usable pixels is skipped rather than failing the batch;
// the skipped errors are combined into the returned error next to the objects that did
// score. A nil nearness map fails the whole call.
func Score(nm *NearnessMap, dets []objectdetection.Detection) ([]ScoredObject, error) {
	if nm == nil || !nm.values.HasData() {
		return nil, newInvalidInputError("nearness map is empty")
	}
	objs := make([]ScoredObject, 0, len(dets))
	var skipped error
	for i, d := range dets {
		if err := objectdetection.Validate(d); err != nil {
			skipped = multierr.Append(skipped, errors.Wrapf(ErrInvalidInput, "detection %d: %v", i, err))
			continue
		}
		box := *d.BoundingBox()
		proximity, err := Aggregate(nm, box)
		if err != nil {
			skipped = multierr.Append(skipped, errors.Wrapf(err, "detection %d (%s)", i, d.Label()))
			continue
		}
		objs = append(objs, ScoredObject{
			Label:       d.Label(),
			BoundingBox: box,
			Confidence:  d.Score(),
			Proximity:   proximity,
		})
	}
	return objs, skipped
}

// Rank keeps every object whose proximity is at most threshold, in input order. Pass
// NoThreshold to keep everything. An empty result means nothing qualified.
func Rank(objs []ScoredObject, threshold float64) []ScoredObject {
	out := make([]ScoredObject, 0, len(objs))
	for _, o := range objs {
		if o.Proximity <= threshold {
			out = append(out, o)
		}
	}
	return out
}

// NearestWithinThreshold returns the closest object (highest proximity) when its
// proximity exceeds threshold. Threshold is in nearness units. On equal proximity the
// object earliest in objs wins.
func NearestWithinThreshold(objs []ScoredObject, threshold float64) (ScoredObject, bool) {
	idx := nearestIndex(objs)
	if idx < 0 || !(objs[idx].Proximity > threshold) {
		return ScoredObject{}, false
	}
	return objs[idx], true
}

// HazardOrder returns the nearest qualifying object followed by every other object in
// input order, or false when nothing is close enough to alert on. The trailing objects are
// the obstacles a safe path has to route around.
func HazardOrder(objs []ScoredObject, threshold float64) ([]ScoredObject, bool) {
	idx := nearestIndex(objs)
	if idx < 0 || !(objs[idx].Proximity > threshold) {
		return nil, false
	}
	out := make([]ScoredObject, 0, len(objs))
	out = append(out, objs[idx])
	out = append(out, objs[:idx]...)
	out = append(out, objs[idx+1:]...)
	return out, true
}

func nearestIndex(objs []ScoredObject) int {
	best := -1
	for i, o := range objs {
		if math.IsNaN(o.Proximity) {
			continue
		}
		if best < 0 || o.Proximity > objs[best].Proximity {
			best = i
		}
	}
	return best
}
