package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/sceneaid/utils"
)

// DepthMap is a dense per-pixel relative depth estimate. Values are monotonic in true
// distance but carry no metric scale. Rows are image rows (y) and columns image columns (x).
type DepthMap struct {
	width  int
	height int

	data *mat.Dense
}

// NewEmptyDepthMap returns a zero-filled depth map of the given size. A non-positive size
// yields a map without data.
func NewEmptyDepthMap(width, height int) *DepthMap {
	if width <= 0 || height <= 0 {
		return &DepthMap{}
	}
	return &DepthMap{width: width, height: height, data: mat.NewDense(height, width, nil)}
}

// NewDepthMapFromData wraps row-major data of the given size.
func NewDepthMapFromData(width, height int, data []float64) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map of %dx%d needs %d values, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: mat.NewDense(height, width, data)}, nil
}

// NewDepthMapFromRows copies a row-major 2-D slice into a depth map. Rows must all have
// the same length.
func NewDepthMapFromRows(rows [][]float64) (*DepthMap, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("depth map rows are empty")
	}
	width := len(rows[0])
	data := make([]float64, 0, width*len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("depth map row %d has %d values, expected %d", y, len(row), width)
		}
		data = append(data, row...)
	}
	return NewDepthMapFromData(width, len(rows), data)
}

// HasData reports whether the map holds at least one value.
func (dm *DepthMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.height > 0 && dm.data != nil
}

// Width returns the width of the map in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the map in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle of valid pixel coordinates.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the value at (x, y).
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data.At(y, x)
}

// Set sets the value at (x, y).
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data.Set(y, x, val)
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	if !dm.HasData() {
		return &DepthMap{}
	}
	return &DepthMap{width: dm.width, height: dm.height, data: mat.DenseCopyOf(dm.data)}
}

// Apply returns a new map holding fn applied to every value.
func (dm *DepthMap) Apply(fn func(v float64) float64) *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	if !out.HasData() {
		return out
	}
	out.data.Apply(func(_, _ int, v float64) float64 { return fn(v) }, dm.data)
	return out
}

// MinMax returns the smallest and largest finite values in the map. ok is false when the
// map holds no finite value.
func (dm *DepthMap) MinMax() (min, max float64, ok bool) {
	if !dm.HasData() {
		return 0, 0, false
	}
	min, max = math.Inf(1), math.Inf(-1)
	raw := dm.data.RawMatrix()
	for y := 0; y < raw.Rows; y++ {
		for _, v := range raw.Data[y*raw.Stride : y*raw.Stride+raw.Cols] {
			if !utils.IsFinite(v) {
				continue
			}
			ok = true
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max, ok
}

// Values returns a row-major copy of every value in rect, which must lie within Bounds.
func (dm *DepthMap) Values(rect image.Rectangle) []float64 {
	out := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out = append(out, dm.data.At(y, x))
		}
	}
	return out
}

// Resize returns the map resampled to width x height with bilinear interpolation, sampling
// pixel centers the way image resizers do. Non-finite samples are left out of each blend.
func (dm *DepthMap) Resize(width, height int) (*DepthMap, error) {
	if !dm.HasData() {
		return nil, errors.New("cannot resize a depth map without data")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for resize %v %v", width, height)
	}
	if width == dm.width && height == dm.height {
		return dm.Clone(), nil
	}

	out := NewEmptyDepthMap(width, height)
	scaleX := float64(dm.width) / float64(width)
	scaleY := float64(dm.height) / float64(height)
	for y := 0; y < height; y++ {
		srcY := utils.Clamp((float64(y)+0.5)*scaleY-0.5, 0, float64(dm.height-1))
		y0 := int(math.Floor(srcY))
		y1 := utils.ClampInt(y0+1, 0, dm.height-1)
		fy := srcY - float64(y0)
		for x := 0; x < width; x++ {
			srcX := utils.Clamp((float64(x)+0.5)*scaleX-0.5, 0, float64(dm.width-1))
			x0 := int(math.Floor(srcX))
			x1 := utils.ClampInt(x0+1, 0, dm.width-1)
			fx := srcX - float64(x0)

			out.data.Set(y, x, dm.blend(
				[4]image.Point{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}},
				[4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy},
			))
		}
	}
	return out, nil
}

// blend is the weighted mean of the finite samples with nonzero weight, renormalized over
// those samples. It is NaN when none qualify.
func (dm *DepthMap) blend(pts [4]image.Point, weights [4]float64) float64 {
	var sum, total float64
	for i, p := range pts {
		v := dm.data.At(p.Y, p.X)
		if weights[i] <= 0 || !utils.IsFinite(v) {
			continue
		}
		sum += v * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return math.NaN()
	}
	return sum / total
}
