package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"

	"github.com/as36198/linkd/cmd/discovery"
	"github.com/as36198/linkd/cmd/provision"
	"github.com/as36198/linkd/cmd/regularize"
	"github.com/as36198/linkd/cmd/renumber"
	"github.com/as36198/linkd/cmd/server"
	"github.com/as36198/linkd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "linkd",
		Version:     version,
		Usage:       "Point-to-point link provisioning and renumbering",
		Description: "Provisions point-to-point network links (VLANs, bundles, circuits), allocates paired addresses from address blocks, and drives the two-phase renumbering protocol.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (trace, debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"LINKD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"LINKD_LOG_FORMAT"},
				Global:       true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			provision.Command(),
			renumber.Command(),
			regularize.Command(),
			discovery.Command(),
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
