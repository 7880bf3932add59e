package renumber

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"

	"github.com/as36198/linkd/internal/config"
	renumberop "github.com/as36198/linkd/internal/renumber"
	"github.com/as36198/linkd/internal/report"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

// Command returns the renumber command tree
func Command() *cli.Command {
	return &cli.Command{
		Name:        "renumber",
		Usage:       "Two-phase renumbering commands",
		Description: "Replace the address pairs of marked point-to-point links (generate), then remove the superseded addresses after verification (prune)",
		Commands: []*cli.Command{
			generateCommand(),
			pruneCommand(),
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:        "generate",
		Usage:       "Allocate replacement address pairs",
		Description: "Allocate a new /31 + /127 pair for every linked port pair labeled 'renumber', mark the old addresses for removal and clear the renumber mark",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:     "block-v4",
				Usage:    "IPv4 address block (CIDR or id) to allocate from",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "block-v6",
				Usage:    "IPv6 address block (CIDR or id) to allocate from",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "xlsx",
				Usage: "Write the result as a spreadsheet to this path",
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

			params := &renumberop.Params{
				BlockV4: blockRef(cmd.GetString("block-v4")),
				BlockV6: blockRef(cmd.GetString("block-v6")),
			}

			result, err := script.Run(store, cmd.GetBool("commit"), func(tx *storage.Tx) (script.Output, error) {
				return renumberop.Generate(tx, params)
			})
			if err != nil {
				return err
			}

			if path := cmd.GetString("xlsx"); path != "" && result.Result {
				if err := report.WriteXLSX(result, path); err != nil {
					return err
				}
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

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:        "prune",
		Usage:       "Delete superseded addresses",
		Description: "Delete every address marked for removal by generate and clear the freshly-generated marks",
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

			result, err := script.Run(store, cmd.GetBool("commit"), renumberop.Prune)
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

// blockRef builds a block reference from a CIDR or id string
func blockRef(v string) renumberop.BlockRef {
	for _, c := range v {
		if c == '/' {
			return renumberop.BlockRef{CIDR: v}
		}
	}
	return renumberop.BlockRef{ID: v}
}
