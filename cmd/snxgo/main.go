// Command-line tool for handling SINEX solution files.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gnsstools/gosnx/pkg/gnsstime"
	"github.com/gnsstools/gosnx/pkg/sinex"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "snxgo",
		Usage:   "read and filter SINEX solution files",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:      "stations",
				Usage:     "List the estimated stations with their coordinates",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "nocova",
						Usage: "do not require a covariance block",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("stations needs one SINEX file", 1)
					}
					sol, err := sinex.Open(c.Args().First(), sinex.Options{SkipCovariance: c.Bool("nocova")})
					if err != nil {
						return err
					}
					printWarnings(sol)

					for _, stn := range sol.Stations() {
						fmt.Printf("%s %-4s %10.3f %14.4f %14.4f %14.4f\n", stn.Code, stn.SolnID,
							gnsstime.MJD(stn.Epoch), stn.XYZ[0], stn.XYZ[1], stn.XYZ[2])
					}
					return nil
				},
			},
			{
				Name:      "stats",
				Usage:     "Print the solution statistics",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("stats needs one SINEX file", 1)
					}
					sol, err := sinex.Open(c.Args().First(), sinex.Options{SkipCovariance: true})
					if err != nil {
						return err
					}
					printWarnings(sol)

					fmt.Printf("observations:       %d\n", sol.Stats.NumObs)
					fmt.Printf("unknowns:           %d\n", sol.Stats.NumUnknowns)
					fmt.Printf("degrees of freedom: %d\n", sol.Stats.DOF)
					fmt.Printf("SEU:                %g\n", sol.Stats.SEU)
					return nil
				},
			},
			{
				Name:      "filter",
				Usage:     "Write a stations-only copy with renumbered parameters",
				ArgsUsage: "SRC DST",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("filter needs a source and a destination file", 1)
					}
					sol, err := sinex.Open(c.Args().Get(0), sinex.Options{})
					if err != nil {
						return err
					}
					printWarnings(sol)

					return sol.FilterStationsOnly(c.Args().Get(1))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func printWarnings(sol *sinex.Solution) {
	for _, warn := range sol.Warnings {
		log.Printf("WARN: %s: %s", sol.Path, warn)
	}
}
