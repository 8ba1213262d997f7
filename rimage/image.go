// Package rimage contains frame decoding and the depth map type consumed by the fusion pipeline.
package rimage

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"
	"strings"

	// register decoders for the formats camera frames arrive in.
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// MaxFrameSide bounds the width and height of a decoded frame.
const MaxFrameSide = 8192

// DecodeImage decodes an encoded frame (jpeg, png, gif or webp), applying any EXIF
// orientation so that boxes and depth line up with what the camera saw.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode image config")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxFrameSide || cfg.Height > MaxFrameSide {
		return nil, errors.Errorf("bad image size %dx%d", cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode image")
	}
	return img, nil
}

// DecodeBase64Image decodes a base64 frame, with or without a data URI prefix such as
// "data:image/jpeg;base64,".
func DecodeBase64Image(encoded string) (image.Image, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URI")
		}
		encoded = encoded[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "frame is not valid base64")
	}
	return DecodeImage(data)
}

// EncodeJPEG writes img as a JPEG of the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
