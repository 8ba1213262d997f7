package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/services/sceneaid"
	"go.viam.com/sceneaid/testutils/inject"
	"go.viam.com/sceneaid/vision/objectdetection"
)

func encodedFrame(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))), test.ShouldBeNil)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type fixture struct {
	server   *Server
	detector *inject.Detector
	depth    *inject.DepthEstimator
	narrator *inject.Narrator
	narrated atomic.Int32
}

func newFixture(t *testing.T, options Options) *fixture {
	t.Helper()
	dm, err := rimage.NewDepthMapFromRows([][]float64{
		{9, 9, 1, 1},
		{9, 9, 1, 1},
		{9, 9, 1, 1},
		{9, 9, 1, 1},
	})
	test.That(t, err, test.ShouldBeNil)

	f := &fixture{
		detector: inject.NewStaticDetector(
			objectdetection.NewDetection(image.Rect(0, 0, 2, 4), 0.9, "wall"),
			objectdetection.NewDetection(image.Rect(2, 0, 4, 4), 0.9, "chair"),
		),
		depth: inject.NewStaticDepthEstimator(dm),
	}
	f.narrator = &inject.Narrator{NarrateFunc: func(ctx context.Context, req *narration.Request) (*narration.Narration, error) {
		f.narrated.Add(1)
		return &narration.Narration{
			Text:          string(req.Policy) + ": " + req.Objects[0].Name,
			Audio:         []byte("RIFF"),
			AudioMIMEType: "audio/wav",
		}, nil
	}}

	logger := logging.NewTestLogger(t)
	svc, err := sceneaid.NewService(f.detector, f.depth, f.narrator, sceneaid.Options{}, logger)
	test.That(t, err, test.ShouldBeNil)
	f.server = NewServer(svc, options, logger)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		test.That(t, json.Unmarshal(w.Body.Bytes(), &out), test.ShouldBeNil)
	}
	return w, out
}

func frameBody(t *testing.T, extra string) string {
	return `{"frame": "` + encodedFrame(t) + `"` + extra + `}`
}

func TestDescribe(t *testing.T) {
	f := newFixture(t, Options{HazardThreshold: 1800})
	w, out := f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, out["sceneDescription"], test.ShouldResemble, map[string]interface{}{
		"description":   "scene: wall",
		"audio_content": "data:audio/wav;base64,UklGRg==",
	})
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	test.That(t, err, test.ShouldBeNil)
}

func TestDescribeNothingDetected(t *testing.T) {
	f := newFixture(t, Options{})
	f.detector.DetectFunc = func(ctx context.Context, img image.Image) ([]objectdetection.Detection, error) {
		return nil, nil
	}
	w, out := f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, out["sceneDescription"], test.ShouldEqual, narration.NothingDetected)
	test.That(t, f.narrated.Load(), test.ShouldEqual, 0)
}

func TestCheckForNearBy(t *testing.T) {
	// chair is at nearness 8, wall at 0.
	f := newFixture(t, Options{HazardThreshold: 1800})

	w, out := f.post(t, "/api/checkForNearBy/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, out["nearByObject"], test.ShouldEqual, false)
	test.That(t, out["objectDescription"], test.ShouldBeNil)
	test.That(t, f.narrated.Load(), test.ShouldEqual, 0)

	w, out = f.post(t, "/api/checkForNearBy/", frameBody(t, `, "threshold": 5`))
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, out["nearByObject"], test.ShouldEqual, true)
	desc, ok := out["objectDescription"].(map[string]interface{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, desc["description"], test.ShouldEqual, "hazard: chair")
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t, Options{})
	for _, tc := range []struct {
		name, body, contains string
	}{
		{"not json", "frame=abc", "invalid request body"},
		{"missing frame", `{}`, `"frame" is required`},
		{"not base64", `{"frame": "!!!"}`, "base64"},
		{"not an image", `{"frame": "` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}`, "decode"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w, out := f.post(t, "/api/describe/", tc.body)
			test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
			test.That(t, out["error"], test.ShouldContainSubstring, tc.contains)
		})
	}
}

func TestCollaboratorFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, Options{})
	f.depth.EstimateDepthFunc = func(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
		return nil, errors.New("depth model crashed")
	}
	w, out := f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadGateway)
	test.That(t, out["error"], test.ShouldContainSubstring, "depth model crashed")

	f = newFixture(t, Options{})
	f.depth.EstimateDepthFunc = func(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
		return rimage.NewEmptyDepthMap(4, 4).Apply(func(float64) float64 { return math.NaN() }), nil
	}
	w, out = f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadGateway)
	test.That(t, out["error"], test.ShouldContainSubstring, "no finite values")

	f = newFixture(t, Options{})
	f.narrator.NarrateFunc = func(ctx context.Context, req *narration.Request) (*narration.Narration, error) {
		return nil, errors.New("tts down")
	}
	w, out = f.post(t, "/api/checkForNearBy/", frameBody(t, `, "threshold": 1`))
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadGateway)
	test.That(t, out["error"], test.ShouldContainSubstring, "tts down")
}

func TestRoutes(t *testing.T) {
	staticDir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o600), test.ShouldBeNil)
	f := newFixture(t, Options{StaticDir: staticDir})

	for _, tc := range []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/static/app.js", http.StatusOK},
		{http.MethodGet, "/api/describe/", http.StatusNotFound},
		{http.MethodPost, "/api/describe", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		f.server.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		test.That(t, w.Code, test.ShouldEqual, tc.code)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/describe/", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	f.server.ServeHTTP(w, r)
	test.That(t, w.Header().Get("Access-Control-Allow-Origin"), test.ShouldEqual, "*")
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RequestsPerSecond: 0.001, Burst: 1})
	w, _ := f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	w, _ = f.post(t, "/api/describe/", frameBody(t, ""))
	test.That(t, w.Code, test.ShouldEqual, http.StatusTooManyRequests)

	// health is not limited
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	test.That(t, rec.Code, test.ShouldEqual, http.StatusOK)
}

func TestServeShutsDown(t *testing.T) {
	f := newFixture(t, Options{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.server.Serve(ctx, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	test.That(t, err, test.ShouldBeNil)
	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, string(body), test.ShouldContainSubstring, "ok")

	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
