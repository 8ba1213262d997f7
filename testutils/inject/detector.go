// Package inject provides injectable fakes of the collaborators the scene service depends on.
package inject

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/vision/objectdetection"
)

// Detector is an injected object detector.
type Detector struct {
	DetectFunc func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error)
}

// Detect calls the injected Detect or fails.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	if d.DetectFunc == nil {
		return nil, errors.New("Detect not injected")
	}
	return d.DetectFunc(ctx, img)
}

// NewStaticDetector returns a detector that always reports dets.
func NewStaticDetector(dets ...objectdetection.Detection) *Detector {
	return &Detector{DetectFunc: func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		return dets, nil
	}}
}
