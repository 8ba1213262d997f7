package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. A .env file next to it is loaded first, so its
// variables can be referenced as ${VAR} in the config; variables already set in the
// environment win.
func Read(filePath string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(filePath), ".env")); err != nil {
		return nil, err
	}
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// LoadDotEnv loads the given .env files into the environment, skipping any that do not
// exist.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load %q", p)
		}
	}
	return nil
}

// FromReader reads a config from the given reader and specifies where, if applicable, the
// file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
