// Command sensorwatch observes sensor devices through streams: a live
// terminal dashboard, or JSON lines for piping into other tools.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

const (
	flagConfig  = "config"
	flagDebug   = "debug"
	flagKind    = "kind"
	flagTrigger = "trigger"
	flagCount   = "count"
	flagInflux  = "influx"
	flagPeriod  = "period"
)

var app = &cli.App{
	Name:            "sensorwatch",
	Usage:           "observe sensor devices as streams",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "watch",
			Usage: "live dashboard of readings, accuracy and connections",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  flagKind,
					Usage: "device kinds to watch",
					Value: cli.NewStringSlice("accelerometer", "gyroscope", "magnetic_field", "light"),
				},
				&cli.StringFlag{
					Name:  flagTrigger,
					Usage: "trigger kind armed with the t key",
					Value: "significant_motion",
				},
			},
			Action: WatchAction,
		},
		{
			Name:      "dump",
			Usage:     "print readings of one kind as JSON lines",
			UsageText: "sensorwatch dump --kind <kind> [--count n] [--influx]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     flagKind,
					Required: true,
					Usage:    "device kind to read",
				},
				&cli.IntFlag{
					Name:  flagCount,
					Usage: "stop after `N` readings (0 runs until interrupted)",
				},
				&cli.DurationFlag{
					Name:  flagPeriod,
					Usage: "sampling period, overriding the configuration",
				},
				&cli.BoolFlag{
					Name:  flagInflux,
					Usage: "also write readings to InfluxDB",
				},
			},
			Action: DumpAction,
		},
		{
			Name:  "version",
			Usage: "print version and platform",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "sensorwatch v%s\n", version)
				fmt.Fprintf(c.App.Writer, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
				return nil
			},
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sensorwatch: %v\n", err)
		os.Exit(1)
	}
}
