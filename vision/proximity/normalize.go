// Package proximity fuses 2-D detections with a dense relative depth map. It turns depth into
// nearness, reduces each detection's box to one robust proximity score and ranks the results
// for either a scene description or a single hazard alert.
//
// Every function here is pure and allocates its own outputs, so concurrent requests never
// share state.
package proximity

import (
	"image"
	"math"

	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/utils"
)

// NearnessMap is a depth map inverted so that larger values are closer to the camera:
// nearness = max(depth) - depth. Cells that had no finite depth are NaN.
type NearnessMap struct {
	values *rimage.DepthMap
}

// NewNearnessMap wraps already-inverted values, for callers (and tests) that hold a
// nearness map directly rather than a raw depth estimate.
func NewNearnessMap(values *rimage.DepthMap) (*NearnessMap, error) {
	if !values.HasData() {
		return nil, newInvalidInputError("nearness map has no values")
	}
	return &NearnessMap{values: values}, nil
}

// Width returns the width of the map in pixels.
func (nm *NearnessMap) Width() int {
	return nm.values.Width()
}

// Height returns the height of the map in pixels.
func (nm *NearnessMap) Height() int {
	return nm.values.Height()
}

// Bounds returns the rectangle of valid pixel coordinates.
func (nm *NearnessMap) Bounds() image.Rectangle {
	return nm.values.Bounds()
}

// At returns the nearness at (x, y).
func (nm *NearnessMap) At(x, y int) float64 {
	return nm.values.GetDepth(x, y)
}

// DepthMap returns the underlying values.
func (nm *NearnessMap) DepthMap() *rimage.DepthMap {
	return nm.values
}

// Normalize turns a raw relative depth map into a nearness map of the same shape. The
// farthest finite point becomes 0. The transform is one-way: depth offset is lost.
func Normalize(dm *rimage.DepthMap) (*NearnessMap, error) {
	if !dm.HasData() {
		return nil, newInvalidInputError("depth map is empty")
	}
	_, maxDepth, ok := dm.MinMax()
	if !ok {
		return nil, newInvalidInputError("depth map of %dx%d has no finite values", dm.Width(), dm.Height())
	}
	return &NearnessMap{values: dm.Apply(func(v float64) float64 {
		if !utils.IsFinite(v) {
			return math.NaN()
		}
		return maxDepth - v
	})}, nil
}
