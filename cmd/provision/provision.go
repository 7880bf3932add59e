package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/cli"

	"github.com/as36198/linkd/internal/config"
	provisionop "github.com/as36198/linkd/internal/provision"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
)

// Command returns the provision command tree
func Command() *cli.Command {
	return &cli.Command{
		Name:        "provision",
		Usage:       "Provisioning commands",
		Description: "Provision point-to-point interfaces in the inventory",
		Commands: []*cli.Command{
			pniCommand(),
		},
	}
}

// pniCommand provisions a point-to-point network interface
func pniCommand() *cli.Command {
	return &cli.Command{
		Name:        "pni",
		Usage:       "Provision a point-to-point interface",
		Description: "Attach a new point-to-point interface, optionally behind a VLAN sub-port, LACP bundle or provider circuit, and bind its /31 + /127 address pair",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:     "device",
				Usage:    "Device name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port name on the device (omit when --members is given)",
			},
			&cli.StringFlag{
				Name:  "members",
				Usage: "Comma-separated member port names; creates an LACP bundle",
			},
			&cli.IntFlag{
				Name:  "vlan",
				Usage: "VLAN id 1-4094",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Provider name (with --circuit-id, builds a circuit)",
			},
			&cli.StringFlag{
				Name:  "circuit-id",
				Usage: "Circuit id",
			},
			&cli.BoolFlag{
				Name:  "autogen",
				Usage: "Autogenerate addresses from the autogeneration blocks",
			},
			&cli.StringFlag{
				Name:  "ipv4",
				Usage: "Explicit local IPv4 with mask (e.g. 192.0.2.0/31)",
			},
			&cli.StringFlag{
				Name:  "ipv6",
				Usage: "Explicit local IPv6 with mask (e.g. 2001:db8::/127)",
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

			params := &provisionop.Params{
				Port: script.PortRef{
					Device: cmd.GetString("device"),
					Port:   cmd.GetString("port"),
				},
				VLANID:    cmd.GetInt("vlan"),
				Provider:  cmd.GetString("provider"),
				CircuitID: cmd.GetString("circuit-id"),
				Autogen:   cmd.GetBool("autogen"),
				IPv4:      cmd.GetString("ipv4"),
				IPv6:      cmd.GetString("ipv6"),
			}
			if members := cmd.GetString("members"); members != "" {
				for _, m := range strings.Split(members, ",") {
					params.Members = append(params.Members, strings.TrimSpace(m))
				}
			}

			result, err := script.Run(store, cmd.GetBool("commit"), func(tx *storage.Tx) (script.Output, error) {
				return provisionop.AddPNI(tx, params)
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
