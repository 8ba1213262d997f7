package inference

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/utils"
	"go.viam.com/sceneaid/vision/objectdetection"
)

// FileConfig points at a recorded inference result on disk.
type FileConfig struct {
	Path string `json:"path"`
}

// Validate ensures all parts of the config are valid.
func (cfg *FileConfig) Validate(path string) error {
	if cfg.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "path")
	}
	return nil
}

// FileDetector replays detections recorded in the detection server's JSON format,
// regardless of the frame it is given.
type FileDetector struct {
	data   []byte
	logger logging.Logger
}

// NewFileDetector reads the recorded detections at cfg.Path.
func NewFileDetector(cfg *FileConfig, logger logging.Logger) (*FileDetector, error) {
	if err := cfg.Validate("detector"); err != nil {
		return nil, err
	}
	//nolint:gosec
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	fd := &FileDetector{data: data, logger: logger}
	if _, err := parseDetections(data, image.Rect(0, 0, rimage.MaxFrameSide, rimage.MaxFrameSide), logger); err != nil {
		return nil, errors.Wrapf(err, "bad detections file %q", cfg.Path)
	}
	return fd, nil
}

// Detect returns the recorded detections clamped to img.
func (fd *FileDetector) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseDetections(fd.data, img.Bounds(), fd.logger)
}

// FileDepth replays a depth map stored in any format rimage.ParseDepthMap reads.
type FileDepth struct {
	dm *rimage.DepthMap
}

// NewFileDepth reads the depth map at cfg.Path.
func NewFileDepth(cfg *FileConfig) (*FileDepth, error) {
	if err := cfg.Validate("depth"); err != nil {
		return nil, err
	}
	dm, err := rimage.ParseDepthMap(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "bad depth file %q", cfg.Path)
	}
	return &FileDepth{dm: dm}, nil
}

// EstimateDepth returns a copy of the recorded map.
func (fd *FileDepth) EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fd.dm.Clone(), nil
}
