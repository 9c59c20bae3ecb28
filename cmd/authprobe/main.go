//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hxci-campus/authprobe/cmd/authprobe/subcommands/check"
	"github.com/hxci-campus/authprobe/cmd/authprobe/subcommands/inspect"
	"github.com/hxci-campus/authprobe/cmd/authprobe/subcommands/mock"
	"github.com/hxci-campus/authprobe/cmd/authprobe/subcommands/run"
	"github.com/hxci-campus/authprobe/cmd/authprobe/version"
	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("authprobe")

func main() {
	cmd := &cli.Command{
		Name:    "authprobe",
		Usage:   "An authorization boundary test oracle for the campus portal APIs",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "trace",
				Aliases: []string{"t"},
				Usage:   "Enable debug logging output for all modules",
				Value:   logger.IsDebugEnabled(),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Runs the full probe suite against the portal APIs and reports PASS/FAIL/ERROR per probe",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "plan",
						Aliases: []string{"p"},
						Usage:   "Load the test plan from `FILE`. If not specified, the built-in boundary sweep is used.",
					},
					&cli.StringFlag{
						Name:    "roles",
						Aliases: []string{"r"},
						Usage:   "Load the role table from `FILE`. If not specified, the built-in account table is used.",
					},
					&cli.StringSliceFlag{
						Name:  "test",
						Usage: "Glob pattern selecting probes to run (e.g. 'student/*'). Can be specified multiple times. Causal parents of a match are kept.",
					},
					&cli.IntFlag{
						Name:  "parallel",
						Usage: "Number of independent probe chains to run concurrently (1-5).",
						Value: 1,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to `FILE` instead of stdout",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format. Must be one of 'text' or 'json'",
						Value:   "text",
						Action: func(ctx context.Context, command *cli.Command, s string) error {
							if s != "text" && s != "json" {
								return fmt.Errorf("unsupported format: %s", s)
							}
							return nil
						},
					},
				},
				Action: run.Execute,
			},
			{
				Name:  "check",
				Usage: "Validates the role table, plan and policy matrix without executing any probe",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "plan",
						Aliases: []string{"p"},
						Usage:   "Load the test plan from `FILE`. If not specified, the built-in boundary sweep is used.",
					},
					&cli.StringFlag{
						Name:    "roles",
						Aliases: []string{"r"},
						Usage:   "Load the role table from `FILE`. If not specified, the built-in account table is used.",
					},
				},
				Action: check.Execute,
			},
			{
				Name:  "inspect",
				Usage: "Decodes a bearer token without verifying its signature and runs the claim audit on it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Load the token from `FILE`, or use '-' for stdin",
					},
				},
				Action: inspect.Execute,
			},
			{
				Name:  "mock",
				Usage: "Serves the embedded mock campus API for hermetic oracle runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The TCP port for the mock school API (authentication).",
						Value: 48082,
					},
					&cli.IntFlag{
						Name:  "api-port",
						Usage: "The TCP port for the admin API (notifications, todos).",
						Value: 48081,
					},
					&cli.BoolFlag{
						Name:  "leaky",
						Usage: "Mint tokens carrying plaintext identity claims, for exercising the claim audit",
					},
					&cli.StringFlag{
						Name:    "roles",
						Aliases: []string{"r"},
						Usage:   "Load the account table from `FILE`. If not specified, the built-in one is used.",
					},
				},
				Action: mock.Execute,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
