// Package server implements the entry point for running the scene aid web server.
package server

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/sceneaid/config"
	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/ml/inference"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/narration/openai"
	"go.viam.com/sceneaid/services/sceneaid"
	"go.viam.com/sceneaid/web"
)

type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// NewDetector builds the object detector described by cfg.
func NewDetector(cfg config.CollaboratorConfig, logger logging.Logger) (sceneaid.Detector, error) {
	switch cfg.Type {
	case config.TypeHTTP:
		var conf inference.ClientConfig
		if err := cfg.DecodeAttributes("detector", &conf); err != nil {
			return nil, err
		}
		return inference.NewDetectorClient(&conf, logger)
	case config.TypeFile:
		var conf inference.FileConfig
		if err := cfg.DecodeAttributes("detector", &conf); err != nil {
			return nil, err
		}
		return inference.NewFileDetector(&conf, logger)
	default:
		return nil, errors.Errorf("unknown detector type %q", cfg.Type)
	}
}

// NewDepthEstimator builds the depth estimator described by cfg.
func NewDepthEstimator(cfg config.CollaboratorConfig, logger logging.Logger) (sceneaid.DepthEstimator, error) {
	switch cfg.Type {
	case config.TypeHTTP:
		var conf inference.ClientConfig
		if err := cfg.DecodeAttributes("depth", &conf); err != nil {
			return nil, err
		}
		return inference.NewDepthClient(&conf, logger)
	case config.TypeFile:
		var conf inference.FileConfig
		if err := cfg.DecodeAttributes("depth", &conf); err != nil {
			return nil, err
		}
		return inference.NewFileDepth(&conf)
	default:
		return nil, errors.Errorf("unknown depth type %q", cfg.Type)
	}
}

// NewNarrator builds the narrator described by cfg.
func NewNarrator(cfg config.CollaboratorConfig, logger logging.Logger) (narration.Narrator, error) {
	switch cfg.Type {
	case config.TypeOpenAI:
		var conf openai.Config
		if err := cfg.DecodeAttributes("narrator", &conf); err != nil {
			return nil, err
		}
		return openai.NewNarrator(&conf, logger)
	default:
		return nil, errors.Errorf("unknown narrator type %q", cfg.Type)
	}
}

type collaborators struct {
	detector sceneaid.Detector
	depth    sceneaid.DepthEstimator
	narrator narration.Narrator
}

func newCollaborators(cfg *config.Config, logger logging.Logger) (*collaborators, error) {
	detector, err := NewDetector(cfg.Detector, logger.Sublogger("detector"))
	if err != nil {
		return nil, err
	}
	depth, err := NewDepthEstimator(cfg.Depth, logger.Sublogger("depth"))
	if err != nil {
		return nil, err
	}
	narrator, err := NewNarrator(cfg.Narrator, logger.Sublogger("narrator"))
	if err != nil {
		return nil, err
	}
	return &collaborators{detector: detector, depth: depth, narrator: narrator}, nil
}

func (c *collaborators) service(cfg *config.Config, logger logging.Logger) (*sceneaid.Service, error) {
	return sceneaid.NewService(c.detector, c.depth, c.narrator, sceneaid.Options{
		Confidence: cfg.Fusion.Confidence,
		Labels:     cfg.Fusion.Labels,
		MinArea:    cfg.Fusion.MinArea,
	}, logger.Sublogger("fusion"))
}

// NewService builds the scene service and its collaborators from cfg.
func NewService(cfg *config.Config, logger logging.Logger) (*sceneaid.Service, error) {
	c, err := newCollaborators(cfg, logger)
	if err != nil {
		return nil, err
	}
	return c.service(cfg, logger)
}

// CheckCollaborators pings every collaborator that exposes a health check. All failures
// are reported together.
func CheckCollaborators(ctx context.Context, collaborators ...interface{}) error {
	var err error
	for _, c := range collaborators {
		if hc, ok := c.(healthChecker); ok {
			err = multierr.Append(err, hc.CheckHealth(ctx))
		}
	}
	return err
}

// NewWebServer builds the HTTP server for svc from cfg.
func NewWebServer(cfg *config.Config, svc web.SceneService, logger logging.Logger) *web.Server {
	return web.NewServer(svc, web.Options{
		StaticDir:         cfg.Server.StaticDir,
		HazardThreshold:   cfg.Fusion.Threshold(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
	}, logger.Sublogger("web"))
}

// RunServer builds everything cfg describes and serves until ctx is done.
func RunServer(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	c, err := newCollaborators(cfg, logger)
	if err != nil {
		return err
	}
	if err := CheckCollaborators(ctx, c.detector, c.depth); err != nil {
		// model servers may still be starting; requests report failures as they happen.
		logger.Warnw("collaborator health check failed", "error", err)
	}
	svc, err := c.service(cfg, logger)
	if err != nil {
		return err
	}

	logger.Infow("starting scene aid server",
		"addr", cfg.Server.Addr(),
		"detector", cfg.Detector.Type,
		"depth", cfg.Depth.Type,
		"hazard_threshold", cfg.Fusion.Threshold(),
	)
	return NewWebServer(cfg, svc, logger).ListenAndServe(ctx, cfg.Server.Addr())
}
