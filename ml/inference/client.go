// Package inference talks to the external object detection and depth estimation models.
// Both run as HTTP inference servers that accept a JPEG frame as a multipart upload; the
// file-backed variants serve recorded results for offline runs.
package inference

import (
	"bytes"
	"context"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/utils"
)

const (
	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 30 * time.Second

	frameField   = "file"
	frameQuality = 90
	// maxResponseSize bounds how much of an inference response is read.
	maxResponseSize = 256 << 20
)

// ClientConfig describes how to reach an inference server.
type ClientConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ClientConfig) Validate(path string) error {
	if cfg.URL == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "url")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return utils.NewConfigValidationError(path, errors.Errorf("url %q must be http or https", cfg.URL))
	}
	if cfg.Timeout < 0 {
		return utils.NewConfigValidationError(path, errors.New("timeout cannot be negative"))
	}
	return nil
}

type client struct {
	url  string
	http *http.Client
}

func newClient(cfg *ClientConfig, path string) (*client, error) {
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &client{url: strings.TrimSuffix(cfg.URL, "/"), http: &http.Client{Timeout: timeout}}, nil
}

// postFrame uploads img as JPEG and returns the response body and content type.
func (c *client) postFrame(ctx context.Context, endpoint string, img image.Image) ([]byte, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(frameField, "frame.jpg")
	if err != nil {
		return nil, "", errors.Wrap(err, "could not create form file")
	}
	if err := rimage.EncodeJPEG(part, img, frameQuality); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+endpoint, body)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

func (c *client) do(req *http.Request) (data []byte, contentType string, err error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		err = multierr.Combine(err, resp.Body.Close())
	}()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", errors.Wrapf(err, "could not read response from %s", req.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("%s returned %s: %s", req.URL, resp.Status, strings.TrimSpace(string(data)))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// CheckHealth reports whether the server answers GET /health with 200.
func (c *client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return err
	}
	if _, _, err := c.do(req); err != nil {
		return errors.Wrap(err, "inference server is unhealthy")
	}
	return nil
}
