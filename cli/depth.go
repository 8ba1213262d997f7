package cli

import (
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/sceneaid/rimage"
	"go.viam.com/sceneaid/utils"
)

// DepthInfoAction is the corresponding Action for 'depth info'.
func DepthInfoAction(cCtx *cli.Context) error {
	dm, err := rimage.ParseDepthMap(cCtx.String(inFlag))
	if err != nil {
		return err
	}
	all := dm.Values(dm.Bounds())
	finite := make([]float64, 0, len(all))
	for _, v := range all {
		if utils.IsFinite(v) {
			finite = append(finite, v)
		}
	}

	w := cCtx.App.Writer
	printf(w, "size: %dx%d", dm.Width(), dm.Height())
	printf(w, "finite values: %d of %d", len(finite), len(all))
	if len(finite) == 0 {
		return nil
	}
	min, max, _ := dm.MinMax()
	median, err := stats.Median(finite)
	if err != nil {
		return err
	}
	mean, err := stats.Mean(finite)
	if err != nil {
		return err
	}
	printf(w, "min: %g", min)
	printf(w, "max: %g", max)
	printf(w, "median: %g", median)
	printf(w, "mean: %g", mean)
	return nil
}

// DepthConvertAction is the corresponding Action for 'depth convert'.
func DepthConvertAction(cCtx *cli.Context) error {
	in, out := cCtx.String(inFlag), cCtx.String(outFlag)
	dm, err := rimage.ParseDepthMap(in)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(out), ".png") {
		if err := imaging.Save(rimage.NewDepthMapImage(dm), out); err != nil {
			return errors.Wrapf(err, "could not write %q", out)
		}
		warningf(cCtx.App.ErrWriter, "png output is rescaled to 16 bits and is only a preview")
	} else if err := dm.WriteToFile(out); err != nil {
		return errors.Wrapf(err, "could not write %q", out)
	}
	printf(cCtx.App.Writer, "Wrote %dx%d depth map to %s", dm.Width(), dm.Height(), out)
	return nil
}
