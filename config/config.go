// Package config defines the structures used to configure the scene aid server and its
// collaborators.
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/utils"
)

// Defaults applied by Read and FromReader.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5050
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 10
	DefaultConfidence        = 0.25
	DefaultHazardThreshold   = 1800
	DefaultLogLevel          = "info"
)

// Collaborator types known to the server.
const (
	TypeHTTP   = "http"
	TypeFile   = "file"
	TypeOpenAI = "openai"
)

// A Config describes the configuration of the scene aid server.
type Config struct {
	Server   ServerConfig       `json:"server"`
	Detector CollaboratorConfig `json:"detector"`
	Depth    CollaboratorConfig `json:"depth"`
	Narrator CollaboratorConfig `json:"narrator"`
	Fusion   FusionConfig       `json:"fusion"`
	Log      LogConfig          `json:"log"`

	ConfigFilePath string `json:"-"`
}

// Ensure fills in defaults and ensures all parts of the config are valid.
func (c *Config) Ensure() error {
	c.Server.applyDefaults()
	c.Fusion.applyDefaults()
	c.Log.applyDefaults()

	if err := c.Server.Validate("server"); err != nil {
		return err
	}
	if err := c.Detector.Validate("detector", TypeHTTP, TypeFile); err != nil {
		return err
	}
	if err := c.Depth.Validate("depth", TypeHTTP, TypeFile); err != nil {
		return err
	}
	if err := c.Narrator.Validate("narrator", TypeOpenAI); err != nil {
		return err
	}
	if err := c.Fusion.Validate("fusion"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	StaticDir string `json:"static_dir,omitempty"`
	// RequestsPerSecond and Burst configure the token bucket shared by the API routes.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty"`
}

func (sc *ServerConfig) applyDefaults() {
	if sc.Host == "" {
		sc.Host = DefaultHost
	}
	if sc.Port == 0 {
		sc.Port = DefaultPort
	}
	if sc.RequestsPerSecond == 0 {
		sc.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if sc.Burst == 0 {
		sc.Burst = DefaultBurst
	}
}

// Addr returns the host:port to listen on.
func (sc *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// Validate ensures all parts of the config are valid.
func (sc *ServerConfig) Validate(path string) error {
	if sc.Port < 0 || sc.Port > 65535 {
		return utils.NewConfigValidationError(path, errors.Errorf("port %d out of range", sc.Port))
	}
	if sc.RequestsPerSecond < 0 {
		return utils.NewConfigValidationError(path, errors.New("requests_per_second cannot be negative"))
	}
	if sc.Burst < 0 {
		return utils.NewConfigValidationError(path, errors.New("burst cannot be negative"))
	}
	return nil
}

// CollaboratorConfig selects an implementation of an external model by type and carries
// its free-form attributes.
type CollaboratorConfig struct {
	Type       string             `json:"type"`
	Attributes utils.AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures the type is set and one of allowed.
func (cc *CollaboratorConfig) Validate(path string, allowed ...string) error {
	if cc.Type == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	}
	for _, t := range allowed {
		if cc.Type == t {
			return nil
		}
	}
	return utils.NewConfigValidationError(path,
		errors.Errorf("unknown type %q, expected one of %s", cc.Type, strings.Join(allowed, ", ")))
}

// DecodeAttributes decodes the attributes into out, which should be a pointer to the
// implementation's config struct.
func (cc *CollaboratorConfig) DecodeAttributes(path string, out interface{}) error {
	if err := cc.Attributes.Decode(out); err != nil {
		return utils.NewConfigValidationError(path+".attributes", err)
	}
	return nil
}

// FusionConfig tunes detection filtering and the hazard cutoff.
type FusionConfig struct {
	Confidence float64  `json:"confidence,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	MinArea    int      `json:"min_area,omitempty"`
	// HazardThreshold is in nearness units. A nil value means DefaultHazardThreshold.
	HazardThreshold *float64 `json:"hazard_threshold,omitempty"`
}

func (fc *FusionConfig) applyDefaults() {
	if fc.Confidence == 0 {
		fc.Confidence = DefaultConfidence
	}
	if fc.HazardThreshold == nil {
		threshold := float64(DefaultHazardThreshold)
		fc.HazardThreshold = &threshold
	}
}

// Threshold returns the configured hazard threshold.
func (fc *FusionConfig) Threshold() float64 {
	if fc.HazardThreshold == nil {
		return DefaultHazardThreshold
	}
	return *fc.HazardThreshold
}

// Validate ensures all parts of the config are valid.
func (fc *FusionConfig) Validate(path string) error {
	if fc.Confidence < 0 || fc.Confidence > 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("confidence %v must be in [0, 1]", fc.Confidence))
	}
	if fc.MinArea < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_area cannot be negative"))
	}
	return nil
}

// LogConfig describes where logs go.
type LogConfig struct {
	Level string              `json:"level,omitempty"`
	File  *logging.FileConfig `json:"file,omitempty"`
}

func (lc *LogConfig) applyDefaults() {
	if lc.Level == "" {
		lc.Level = DefaultLogLevel
	}
}

// Validate ensures all parts of the config are valid.
func (lc *LogConfig) Validate(path string) error {
	if _, err := zapcore.ParseLevel(lc.Level); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if lc.File != nil && lc.File.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path+".file", "path")
	}
	return nil
}

// NewLogger builds the logger described by lc.
func (lc *LogConfig) NewLogger(name string) (logging.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if lc.File != nil {
		return logging.NewFileLogger(name, level, *lc.File), nil
	}
	return logging.NewLoggerAtLevel(name, lc.Level)
}
