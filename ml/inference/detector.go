package inference

import (
	"context"
	"encoding/json"
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/vision/objectdetection"
)

const detectEndpoint = "/detect"

// wireDetection is one detection as the YOLO server reports it.
type wireDetection struct {
	Name       string  `json:"name"`
	XMin       float64 `json:"xmin"`
	YMin       float64 `json:"ymin"`
	XMax       float64 `json:"xmax"`
	YMax       float64 `json:"ymax"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

// DetectorClient detects objects by posting frames to a remote object detection server.
type DetectorClient struct {
	*client
	logger logging.Logger
}

// NewDetectorClient returns a client for the server described by cfg.
func NewDetectorClient(cfg *ClientConfig, logger logging.Logger) (*DetectorClient, error) {
	c, err := newClient(cfg, "detector")
	if err != nil {
		return nil, err
	}
	return &DetectorClient{client: c, logger: logger}, nil
}

// Detect returns every detection the server reports for img, in server order. Boxes are
// truncated to whole pixels and clamped to the frame.
func (dc *DetectorClient) Detect(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
	data, _, err := dc.postFrame(ctx, detectEndpoint, img)
	if err != nil {
		return nil, errors.Wrap(err, "object detection request failed")
	}
	return parseDetections(data, img.Bounds(), dc.logger)
}

func parseDetections(data []byte, bounds image.Rectangle, logger logging.Logger) ([]objectdetection.Detection, error) {
	var resp detectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, "could not decode detections")
	}
	dets := make([]objectdetection.Detection, 0, len(resp.Detections))
	for _, wd := range resp.Detections {
		box := image.Rect(
			truncate(wd.XMin), truncate(wd.YMin),
			truncate(wd.XMax), truncate(wd.YMax),
		).Intersect(bounds)
		if box.Empty() {
			logger.Debugw("dropping detection outside the frame", "label", wd.Name, "bounds", bounds)
			continue
		}
		dets = append(dets, objectdetection.NewDetection(box, wd.Confidence, wd.Name))
	}
	return dets, nil
}

func truncate(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Trunc(math.Max(math.MinInt32, math.Min(math.MaxInt32, v))))
}
