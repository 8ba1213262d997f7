package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// maxDepthMapSide bounds width and height read from untrusted input.
const maxDepthMapSide = 100000

func readNext(r io.Reader) (uint64, error) {
	data := make([]byte, 8)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ParseDepthMap reads a depth map from a file. Files ending in .gz are gunzipped, and
// .png files are read as 16-bit grayscale depth images; everything else uses the raw
// binary format written by WriteTo.
func ParseDepthMap(fn string) (dm *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	if strings.EqualFold(filepath.Ext(fn), ".png") {
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not decode depth image %q", fn)
		}
		return ConvertImageToDepthMap(img)
	}

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
	}
	return ReadDepthMap(bufio.NewReader(r))
}

// ReadDepthMap reads the raw binary format: little endian uint64 width and height followed
// by width*height little endian float64 values in row-major order.
func ReadDepthMap(r *bufio.Reader) (*DepthMap, error) {
	rawWidth, err := readNext(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read depth map width")
	}
	rawHeight, err := readNext(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read depth map height")
	}
	if rawWidth == 0 || rawWidth >= maxDepthMapSide || rawHeight == 0 || rawHeight >= maxDepthMapSide {
		return nil, errors.Errorf("bad width or height for depth map %v %v", rawWidth, rawHeight)
	}

	width, height := int(rawWidth), int(rawHeight)
	data := make([]float64, width*height)
	for i := range data {
		bits, err := readNext(r)
		if err != nil {
			return nil, errors.Wrapf(err, "depth map truncated after %d of %d values", i, len(data))
		}
		data[i] = math.Float64frombits(bits)
	}
	return NewDepthMapFromData(width, height, data)
}

// WriteTo writes the map in the raw binary format read by ReadDepthMap.
func (dm *DepthMap) WriteTo(out io.Writer) (int64, error) {
	if !dm.HasData() {
		return 0, errors.New("cannot write a depth map without data")
	}
	w := bufio.NewWriter(out)
	buf := make([]byte, 8)
	var written int64
	put := func(v uint64) error {
		binary.LittleEndian.PutUint64(buf, v)
		n, err := w.Write(buf)
		written += int64(n)
		return err
	}

	if err := put(uint64(dm.width)); err != nil {
		return written, err
	}
	if err := put(uint64(dm.height)); err != nil {
		return written, err
	}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			if err := put(math.Float64bits(dm.data.At(y, x))); err != nil {
				return written, err
			}
		}
	}
	return written, w.Flush()
}

// WriteToFile writes the map to fn, gzipping when the name ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var w io.Writer = f
	if filepath.Ext(fn) == ".gz" {
		gz := gzip.NewWriter(f)
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		w = gz
	}
	_, err = dm.WriteTo(w)
	return err
}

// ConvertImageToDepthMap takes an image and figures out if it's already a depth map, or
// a 16-bit grayscale image whose levels are depth values.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	if dm, ok := img.(*DepthMapImage); ok {
		return dm.DepthMap.Clone(), nil
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("cannot convert an empty image to a depth map")
	}
	switch img.ColorModel() {
	case color.Gray16Model, color.GrayModel:
	default:
		return nil, errors.Errorf("don't know how to make DepthMap from %T with color model %v", img, img.ColorModel())
	}

	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			dm.Set(x-bounds.Min.X, y-bounds.Min.Y, float64(g.Y))
		}
	}
	return dm, nil
}

// DepthMapImage presents a depth map as a 16-bit grayscale image, scaling the finite value
// range onto 0..65535. It is meant for inspection, not for lossless storage.
type DepthMapImage struct {
	*DepthMap
	min, max float64
}

// NewDepthMapImage wraps dm for display.
func NewDepthMapImage(dm *DepthMap) *DepthMapImage {
	min, max, _ := dm.MinMax()
	return &DepthMapImage{DepthMap: dm, min: min, max: max}
}

// ColorModel is Gray16.
func (dmi *DepthMapImage) ColorModel() color.Model {
	return color.Gray16Model
}

// At returns the scaled gray level at (x, y).
func (dmi *DepthMapImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(dmi.Bounds())) {
		return color.Gray16{}
	}
	v := dmi.GetDepth(x, y)
	span := dmi.max - dmi.min
	if math.IsNaN(v) || span <= 0 {
		return color.Gray16{}
	}
	scaled := (v - dmi.min) / span * math.MaxUint16
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(math.MaxUint16, scaled))))}
}
