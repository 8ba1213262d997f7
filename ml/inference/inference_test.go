package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/rimage"
)

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	return img
}

// newServer serves handler for path and checks that a JPEG frame was uploaded.
func newServer(t *testing.T, path string, handler func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "bad method", http.StatusMethodNotAllowed)
			return
		}
		f, _, err := r.FormFile(frameField)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		if err != nil || len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
			http.Error(w, "frame is not a jpeg", http.StatusBadRequest)
			return
		}
		handler(w)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectorClient(t *testing.T) {
	srv := newServer(t, detectEndpoint, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections": [
			{"name": "chair", "xmin": 10.7, "ymin": 5.2, "xmax": 30.9, "ymax": 40.1, "confidence": 0.91},
			{"name": "table", "xmin": -20, "ymin": 30, "xmax": 100, "ymax": 90, "confidence": 0.4},
			{"name": "ghost", "xmin": 200, "ymin": 200, "xmax": 300, "ymax": 300, "confidence": 0.8}
		]}`))
	})

	dc, err := NewDetectorClient(&ClientConfig{URL: srv.URL + "/"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dc.CheckHealth(context.Background()), test.ShouldBeNil)

	dets, err := dc.Detect(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Label(), test.ShouldEqual, "chair")
	test.That(t, *dets[0].BoundingBox(), test.ShouldResemble, image.Rect(10, 5, 30, 40))
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.91)
	test.That(t, *dets[1].BoundingBox(), test.ShouldResemble, image.Rect(0, 30, 64, 48))
}

func TestDetectorClientErrors(t *testing.T) {
	srv := newServer(t, detectEndpoint, func(w http.ResponseWriter) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})
	dc, err := NewDetectorClient(&ClientConfig{URL: srv.URL, Timeout: time.Second}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = dc.Detect(context.Background(), testFrame())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "model not loaded")

	garbage := newServer(t, detectEndpoint, func(w http.ResponseWriter) {
		_, _ = w.Write([]byte("not json"))
	})
	dc, err = NewDetectorClient(&ClientConfig{URL: garbage.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = dc.Detect(context.Background(), testFrame())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "could not decode detections")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dc.Detect(ctx, testFrame())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestClientConfigValidate(t *testing.T) {
	err := (&ClientConfig{}).Validate("detector.attributes")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"url" is required`)

	err = (&ClientConfig{URL: "ftp://models"}).Validate("detector.attributes")
	test.That(t, err, test.ShouldNotBeNil)

	err = (&ClientConfig{URL: "http://localhost:8000", Timeout: -time.Second}).Validate("detector.attributes")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, (&ClientConfig{URL: "https://models:8000"}).Validate("depth.attributes"), test.ShouldBeNil)
}

func TestDepthClientJSON(t *testing.T) {
	srv := newServer(t, depthEndpoint, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(depthResponse{Width: 3, Height: 2, Data: []float64{1, 2, 3, 4, 5, 6}})
	})
	dc, err := NewDepthClient(&ClientConfig{URL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dm, err := dc.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, 6)
}

func TestDepthClientPNG(t *testing.T) {
	depth := image.NewGray16(image.Rect(0, 0, 4, 2))
	depth.SetGray16(3, 1, color.Gray16{Y: 4000})
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, depth), test.ShouldBeNil)

	srv := newServer(t, depthEndpoint, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})
	dc, err := NewDepthClient(&ClientConfig{URL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dm, err := dc.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.GetDepth(3, 1), test.ShouldEqual, 4000)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0)
}

func TestDepthClientRaw(t *testing.T) {
	want, err := rimage.NewDepthMapFromRows([][]float64{{0.5, 1.5}, {2.5, 3.5}})
	test.That(t, err, test.ShouldBeNil)
	var buf bytes.Buffer
	_, err = want.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)

	srv := newServer(t, depthEndpoint, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", depthMapMIMEType)
		_, _ = w.Write(buf.Bytes())
	})
	dc, err := NewDepthClient(&ClientConfig{URL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	dm, err := dc.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Values(dm.Bounds()), test.ShouldResemble, []float64{0.5, 1.5, 2.5, 3.5})
}

func TestDepthClientBadResponse(t *testing.T) {
	srv := newServer(t, depthEndpoint, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(depthResponse{Width: 3, Height: 2, Data: []float64{1, 2}})
	})
	dc, err := NewDepthClient(&ClientConfig{URL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = dc.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "needs 6 values")
}

func TestCheckHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "starting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	dc, err := NewDepthClient(&ClientConfig{URL: srv.URL}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = dc.CheckHealth(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unhealthy")
}

func TestFileCollaborators(t *testing.T) {
	dir := t.TempDir()
	detPath := filepath.Join(dir, "detections.json")
	test.That(t, os.WriteFile(detPath, []byte(`{"detections": [{"name": "cup", "xmin": 1, "ymin": 1, "xmax": 100, "ymax": 3, "confidence": 0.5}]}`), 0o600),
		test.ShouldBeNil)

	fd, err := NewFileDetector(&FileConfig{Path: detPath}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	dets, err := fd.Detect(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, *dets[0].BoundingBox(), test.ShouldResemble, image.Rect(1, 1, 64, 3))

	depthPath := filepath.Join(dir, "depth.dat.gz")
	dm, err := rimage.NewDepthMapFromRows([][]float64{{7, 8}, {9, 10}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.WriteToFile(depthPath), test.ShouldBeNil)

	fdepth, err := NewFileDepth(&FileConfig{Path: depthPath})
	test.That(t, err, test.ShouldBeNil)
	got, err := fdepth.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Values(got.Bounds()), test.ShouldResemble, []float64{7, 8, 9, 10})
	got.Set(0, 0, 100)
	again, err := fdepth.EstimateDepth(context.Background(), testFrame())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.GetDepth(0, 0), test.ShouldEqual, 7)

	_, err = NewFileDetector(&FileConfig{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFileDepth(&FileConfig{Path: filepath.Join(dir, "missing.dat")})
	test.That(t, err, test.ShouldNotBeNil)
}
