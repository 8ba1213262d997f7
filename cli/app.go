// Package cli contains the sceneaid command line: running the server, describing a frame
// offline and inspecting depth maps.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag    = "config"
	debugFlag     = "debug"
	frameFlag     = "frame"
	thresholdFlag = "threshold"
	narrateFlag   = "narrate"
	audioOutFlag  = "audio-out"
	inFlag        = "in"
	outFlag       = "out"
)

func frameFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     frameFlag,
			Aliases:  []string{"f"},
			Usage:    "camera frame `FILE` (jpeg, png, gif or webp)",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  narrateFlag,
			Usage: "send the request to the configured narrator and print the description",
		},
		&cli.StringFlag{
			Name:  audioOutFlag,
			Usage: "write narrated audio to `FILE`",
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "sceneaid",
		Usage:           "describe scenes and warn about nearby obstacles",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"SCENEAID_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: ServeAction,
			},
			{
				Name:      "describe",
				Usage:     "fuse detections and depth for one frame and build a scene description",
				UsageText: "sceneaid --config config.json describe --frame frame.jpg [--narrate]",
				Flags:     frameFlags(),
				Action:    DescribeAction,
			},
			{
				Name:  "hazard",
				Usage: "check one frame for an object closer than the hazard threshold",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:  thresholdFlag,
						Usage: "nearness threshold, defaults to the configured hazard threshold",
					},
				}, frameFlags()...),
				Action: HazardAction,
			},
			{
				Name:            "depth",
				Usage:           "work with depth maps",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:  "info",
						Usage: "print the size and value statistics of a depth map",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: inFlag, Usage: "depth map `FILE`", Required: true},
						},
						Action: DepthInfoAction,
					},
					{
						Name:  "convert",
						Usage: "convert a depth map between raw, gzipped raw and png",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: inFlag, Usage: "depth map `FILE`", Required: true},
							&cli.StringFlag{Name: outFlag, Usage: "output `FILE`, .png writes a 16-bit preview", Required: true},
						},
						Action: DepthConvertAction,
					},
				},
			},
		},
	}
}
