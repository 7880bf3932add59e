package regularize

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"github.com/as36198/linkd/internal/config"
	regularizeop "github.com/as36198/linkd/internal/regularize"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

// Command returns the regularize command tree
func Command() *cli.Command {
	return &cli.Command{
		Name:        "regularize",
		Usage:       "Metadata regularization commands",
		Description: "Recompute interface descriptions and reverse DNS names from the topology",
		Commands: []*cli.Command{
			descriptionsCommand(),
			ptrsCommand(),
		},
	}
}

func descriptionsCommand() *cli.Command {
	return &cli.Command{
		Name:        "descriptions",
		Usage:       "Recompute interface descriptions",
		Description: "Rewrite the canonical description of every point-to-point, circuit, VLAN and loopback port that has drifted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:  "commit",
				Usage: "Commit the changes (default is a dry run)",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load(&config.Config{DataDir: cmd.GetString("data-dir")})

			store, err := storage.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := script.Run(store, cmd.GetBool("commit"), regularizeop.Descriptions)
			if err != nil {
				return err
			}

			text, err := result.YAML()
			if err != nil {
				return err
			}
			fmt.Print(text)

			return nil
		},
	}
}

func ptrsCommand() *cli.Command {
	return &cli.Command{
		Name:        "ptrs",
		Usage:       "Recompute reverse DNS names",
		Description: "Rewrite the reverse DNS name of every public point-to-point, VLAN gateway and loopback address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "domain",
				Usage:   "Domain suffix for generated names",
				EnvVars: []string{"LINKD_PTR_DOMAIN"},
			},
			&cli.BoolFlag{
				Name:  "commit",
				Usage: "Commit the changes (default is a dry run)",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load(&config.Config{
				DataDir:   cmd.GetString("data-dir"),
				PTRDomain: cmd.GetString("domain"),
			})

			store, err := storage.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := script.Run(store, cmd.GetBool("commit"), func(tx *storage.Tx) (script.Output, error) {
				return regularizeop.PTRs(tx, cfg.PTRDomain)
			})
			if err != nil {
				return err
			}

			text, err := result.YAML()
			if err != nil {
				return err
			}
			fmt.Print(text)

			return nil
		},
	}
}
