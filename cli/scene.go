package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sceneaid/logging"
	"go.viam.com/sceneaid/narration"
	"go.viam.com/sceneaid/services/sceneaid"
	"go.viam.com/sceneaid/web/server"
)

// ServeAction is the corresponding Action for 'serve'.
func ServeAction(cCtx *cli.Context) error {
	cfg, err := readConfig(cCtx)
	if err != nil {
		return err
	}
	var logger logging.Logger
	if cCtx.Bool(debugFlag) {
		logger = logging.NewDebugLogger("sceneaid")
	} else if logger, err = cfg.Log.NewLogger("sceneaid"); err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()
	return server.RunServer(cCtx.Context, cfg, logger)
}

// DescribeAction is the corresponding Action for 'describe'.
func DescribeAction(cCtx *cli.Context) error {
	svc, err := newService(cCtx)
	if err != nil {
		return err
	}
	img, err := readFrame(cCtx.String(frameFlag))
	if err != nil {
		return err
	}
	req, err := svc.DescribeScene(cCtx.Context, img)
	if err != nil {
		return errors.Wrap(err, "could not describe scene")
	}
	if req.Empty() {
		printf(cCtx.App.Writer, narration.NothingDetected)
		return nil
	}
	printf(cCtx.App.Writer, "%s", objectTable(req))
	return narrate(cCtx, svc, req)
}

// HazardAction is the corresponding Action for 'hazard'.
func HazardAction(cCtx *cli.Context) error {
	cfg, err := readConfig(cCtx)
	if err != nil {
		return err
	}
	svc, err := server.NewService(cfg, commandLogger(cCtx))
	if err != nil {
		return err
	}
	img, err := readFrame(cCtx.String(frameFlag))
	if err != nil {
		return err
	}
	threshold := cfg.Fusion.Threshold()
	if cCtx.IsSet(thresholdFlag) {
		threshold = cCtx.Float64(thresholdFlag)
	}

	req, err := svc.CheckHazard(cCtx.Context, img, threshold)
	if err != nil {
		return errors.Wrap(err, "could not check for hazards")
	}
	if req == nil {
		printf(cCtx.App.Writer, "No object nearer than %g.", threshold)
		return nil
	}
	printf(cCtx.App.Writer, "Nearby: %s", req.Objects[0].Name)
	printf(cCtx.App.Writer, "%s", objectTable(req))
	return narrate(cCtx, svc, req)
}

func newService(cCtx *cli.Context) (*sceneaid.Service, error) {
	cfg, err := readConfig(cCtx)
	if err != nil {
		return nil, err
	}
	return server.NewService(cfg, commandLogger(cCtx))
}

func objectTable(req *narration.Request) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Center", "Proximity"})
	for i, obj := range req.Objects {
		t.AppendRow(table.Row{
			i + 1,
			obj.Name,
			fmt.Sprintf("X:%.1f, Y:%.1f", obj.CenterX, obj.CenterY),
			fmt.Sprintf("%.2f", obj.Proximity),
		})
	}
	return t.Render()
}

func narrate(cCtx *cli.Context, svc *sceneaid.Service, req *narration.Request) error {
	if !cCtx.Bool(narrateFlag) {
		return nil
	}
	n, err := svc.Narrate(cCtx.Context, req)
	if err != nil {
		return err
	}
	printf(cCtx.App.Writer, "%s", n.Text)

	out := cCtx.String(audioOutFlag)
	if out == "" {
		return nil
	}
	if len(n.Audio) == 0 {
		warningf(cCtx.App.ErrWriter, "narrator returned no audio, not writing %q", out)
		return nil
	}
	if err := os.WriteFile(out, n.Audio, 0o600); err != nil {
		return errors.Wrapf(err, "could not write audio to %q", out)
	}
	printf(cCtx.App.Writer, "Wrote %s of audio to %s", n.AudioDuration, out)
	return nil
}
