package main

import (
	"github.com/spf13/cobra"

	"arksync/internal/config"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "arksync",
		Short: "Local-first sync for conservation records",
		Long: `arksync keeps a local cache of organizations, species, individuals,
breeding events and loans in step with a remote record service.

Configuration is read from the --config file, then ARKSYNC_* environment
variables (e.g. ARKSYNC_REMOTE_BASE_URL), then built-in defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (YAML)")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.pullCmd(),
		c.pushCmd(),
		c.statusCmd(),
		c.backupCmd(),
		c.restoreCmd(),
		c.enrichCmd(),
	)
	return root
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(*app) error) (err error) {
	a, err := newApp(cmd.Context(), c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
