package objectdetection

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// Detector returns a slice of object detections from an input image.
type Detector func(context.Context, image.Image) ([]Detection, error)

// Build zips up a detector and any number of postprocessors into a single detector.
// Detections without a bounding box are dropped before the postprocessors, which run in
// the given order.
func Build(det Detector, posts ...Postprocessor) (Detector, error) {
	if det == nil {
		return nil, errors.New("object detection pipeline must have a Detector")
	}
	return func(ctx context.Context, img image.Image) ([]Detection, error) {
		dets, err := det(ctx, img)
		if err != nil {
			return nil, err
		}
		dets = dropMissing(dets)
		for _, post := range posts {
			if post == nil {
				continue
			}
			dets = post(dets)
		}
		return dets, nil
	}, nil
}

func dropMissing(dets []Detection) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d != nil && d.BoundingBox() != nil {
			out = append(out, d)
		}
	}
	return out
}
