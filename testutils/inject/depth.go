package inject

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/rimage"
)

// DepthEstimator is an injected depth model.
type DepthEstimator struct {
	EstimateDepthFunc func(ctx context.Context, img image.Image) (*rimage.DepthMap, error)
}

// EstimateDepth calls the injected EstimateDepth or fails.
func (de *DepthEstimator) EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	if de.EstimateDepthFunc == nil {
		return nil, errors.New("EstimateDepth not injected")
	}
	return de.EstimateDepthFunc(ctx, img)
}

// NewStaticDepthEstimator returns an estimator that always reports a copy of dm.
func NewStaticDepthEstimator(dm *rimage.DepthMap) *DepthEstimator {
	return &DepthEstimator{EstimateDepthFunc: func(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
		return dm.Clone(), nil
	}}
}
