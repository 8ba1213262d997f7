package cli

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sceneaid/config"
	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/rimage"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgYellow, color.Bold).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

func readConfig(cCtx *cli.Context) (*config.Config, error) {
	path := cCtx.String(configFlag)
	if path == "" {
		return nil, errors.Errorf("--%s is required", configFlag)
	}
	cfg, err := config.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config %q", path)
	}
	return cfg, nil
}

// commandLogger is silent unless --debug is set.
func commandLogger(cCtx *cli.Context) logging.Logger {
	if cCtx.Bool(debugFlag) {
		return logging.NewDebugLogger("cli")
	}
	return logging.NewBlankLogger("cli")
}

func readFrame(path string) (image.Image, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := rimage.DecodeImage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read frame %q", path)
	}
	return img, nil
}
