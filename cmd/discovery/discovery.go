package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/cli"

	"github.com/as36198/linkd/internal/config"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/snmp"
	"github.com/as36198/linkd/internal/storage"
)

// Command returns the discovery command tree
func Command() *cli.Command {
	return &cli.Command{
		Name:        "discovery",
		Usage:       "Discovery commands",
		Description: "Seed the inventory from live devices",
		Commands: []*cli.Command{
			portsCommand(),
		},
	}
}

// portsCommand walks IF-MIB on a device and seeds its physical ports
func portsCommand() *cli.Command {
	return &cli.Command{
		Name:        "ports",
		Usage:       "Discover the ports of a device over SNMP",
		Description: "Walk IF-MIB ifDescr on the target and create any physical ports the inventory is missing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:     "device",
				Usage:    "Inventory device name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target",
				Usage:    "SNMP agent address or hostname",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "community",
				Usage:   "SNMP v2c community",
				EnvVars: []string{"LINKD_SNMP_COMMUNITY"},
			},
			&cli.IntFlag{
				Name:         "timeout",
				Usage:        "SNMP timeout in seconds",
				DefaultValue: 5,
			},
			&cli.BoolFlag{
				Name:  "commit",
				Usage: "Commit the changes (default is a dry run)",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load(&config.Config{
				DataDir:       cmd.GetString("data-dir"),
				SNMPCommunity: cmd.GetString("community"),
			})

			client := &snmp.Client{
				Target:    cmd.GetString("target"),
				Community: cfg.SNMPCommunity,
				Timeout:   time.Duration(cmd.GetInt("timeout")) * time.Second,
			}
			names, err := client.FetchInterfaces(ctx)
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			deviceRef := script.DeviceRef{Name: cmd.GetString("device")}
			result, err := script.Run(store, cmd.GetBool("commit"), func(tx *storage.Tx) (script.Output, error) {
				device, err := deviceRef.Resolve(tx)
				if err != nil {
					return nil, err
				}
				return snmp.SeedPorts(tx, device, names)
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
