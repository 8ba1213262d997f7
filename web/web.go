// Package web serves the scene aid HTTP API: a scene description endpoint, a nearby
// obstacle endpoint, static assets and a health check.
package web

import (
	"context"
	"image"
	"net"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/time/rate"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
)

const (
	// maxRequestBytes bounds a JSON request body carrying a base64 frame.
	maxRequestBytes = 32 << 20

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// SceneService is what the HTTP handlers need from the scene service.
type SceneService interface {
	DescribeScene(ctx context.Context, img image.Image) (*narration.Request, error)
	CheckHazard(ctx context.Context, img image.Image, threshold float64) (*narration.Request, error)
	Narrate(ctx context.Context, req *narration.Request) (*narration.Narration, error)
}

// Options configure a Server.
type Options struct {
	// StaticDir is served under /static/ when set.
	StaticDir string
	// HazardThreshold is used when a nearby check does not carry its own threshold.
	HazardThreshold float64
	// RequestsPerSecond and Burst configure the API rate limit. Zero disables it.
	RequestsPerSecond float64
	Burst             int
}

// Server is the HTTP front end of a SceneService.
type Server struct {
	svc     SceneService
	options Options
	logger  logging.Logger
	handler http.Handler
}

// NewServer returns a server for svc.
func NewServer(svc SceneService, options Options, logger logging.Logger) *Server {
	s := &Server{svc: svc, options: options, logger: logger}
	s.handler = s.initMux()
	return s
}

func (s *Server) initMux() http.Handler {
	api := goji.SubMux()
	if s.options.RequestsPerSecond > 0 {
		burst := s.options.Burst
		if burst <= 0 {
			burst = 1
		}
		api.Use(rateLimit(rate.NewLimiter(rate.Limit(s.options.RequestsPerSecond), burst), s.logger))
	}
	api.HandleFunc(pat.Post("/describe/"), s.handleDescribe)
	api.HandleFunc(pat.Post("/checkForNearBy/"), s.handleCheckForNearBy)

	mux := goji.NewMux()
	mux.Use(requestID(s.logger))
	mux.HandleFunc(pat.Get("/health"), s.handleHealth)
	mux.Handle(pat.New("/api/*"), api)
	if s.options.StaticDir != "" {
		staticDir := http.Dir(s.options.StaticDir)
		mux.Handle(pat.Get("/static/*"), gziphandler.GzipHandler(http.StripPrefix("/static", http.FileServer(staticDir))))
	}
	return cors.AllowAll().Handler(mux)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.logger.Infow("serving", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
