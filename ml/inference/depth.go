package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime"

	"github.com/pkg/errors"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/rimage"
)

const (
	depthEndpoint = "/depth"

	// depthMapMIMEType is the raw binary depth map format read by rimage.ReadDepthMap.
	depthMapMIMEType = "application/x-depth-map"
)

type depthResponse struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []float64 `json:"data"`
}

// DepthClient estimates relative depth by posting frames to a remote depth model server.
type DepthClient struct {
	*client
	logger logging.Logger
}

// NewDepthClient returns a client for the server described by cfg.
func NewDepthClient(cfg *ClientConfig, logger logging.Logger) (*DepthClient, error) {
	c, err := newClient(cfg, "depth")
	if err != nil {
		return nil, err
	}
	return &DepthClient{client: c, logger: logger}, nil
}

// EstimateDepth returns the server's depth map for img. The map may be smaller than the
// frame; callers resize it.
func (dc *DepthClient) EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	data, contentType, err := dc.postFrame(ctx, depthEndpoint, img)
	if err != nil {
		return nil, errors.Wrap(err, "depth estimation request failed")
	}
	dm, err := decodeDepthResponse(data, contentType)
	if err != nil {
		return nil, err
	}
	dc.logger.Debugw("depth estimated", "width", dm.Width(), "height", dm.Height(), "frame", img.Bounds().Size())
	return dm, nil
}

// decodeDepthResponse accepts JSON {width, height, data}, a 16-bit grayscale PNG or the raw
// binary depth map format.
func decodeDepthResponse(data []byte, contentType string) (*rimage.DepthMap, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "application/json"
	}
	switch mediaType {
	case "image/png":
		img, err := rimage.DecodeImage(data)
		if err != nil {
			return nil, errors.Wrap(err, "could not decode depth image")
		}
		return rimage.ConvertImageToDepthMap(img)
	case depthMapMIMEType, "application/octet-stream":
		return rimage.ReadDepthMap(bufio.NewReader(bytes.NewReader(data)))
	default:
		var resp depthResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, errors.Wrap(err, "could not decode depth map")
		}
		return rimage.NewDepthMapFromData(resp.Width, resp.Height, resp.Data)
	}
}
