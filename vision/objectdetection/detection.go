// Package objectdetection defines the 2-D detections produced by an external object detector
// and the filters applied to them before fusion with depth.
package objectdetection

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Detection returns a bounding box around the object, the label of the object and a
// confidence score in [0, 1].
type Detection interface {
	BoundingBox() *image.Rectangle
	Score() float64
	Label() string
}

// NewDetection creates a simple 2D detection.
func NewDetection(boundingBox image.Rectangle, score float64, label string) Detection {
	return &detection2D{boundingBox, score, label}
}

// detection2D is a simple struct for storing 2D detections.
type detection2D struct {
	boundingBox image.Rectangle
	score       float64
	label       string
}

// BoundingBox returns a bounding box around the detected object.
func (d *detection2D) BoundingBox() *image.Rectangle {
	return &d.boundingBox
}

// Score returns a confidence score of the detection between 0.0 and 1.0.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class label of the object in the bounding box.
func (d *detection2D) Label() string {
	return d.label
}

// String turns the detection into a string.
func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %v", d.label, d.score, d.boundingBox)
}

// Validate checks that the detection has a well formed box (xmin < xmax, ymin < ymax) and
// a score in [0, 1].
func Validate(d Detection) error {
	if d == nil || d.BoundingBox() == nil {
		return errors.New("detection has no bounding box")
	}
	box := *d.BoundingBox()
	if box.Min.X >= box.Max.X || box.Min.Y >= box.Max.Y {
		return errors.Errorf("detection %q has a degenerate bounding box %v", d.Label(), box)
	}
	if d.Score() < 0 || d.Score() > 1 {
		return errors.Errorf("detection %q has score %v outside [0, 1]", d.Label(), d.Score())
	}
	return nil
}
