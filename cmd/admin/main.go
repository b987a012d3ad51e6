// Command admin bundles the operational tasks that run outside the API:
// schema migration, admin bootstrap, model training and resets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"securecart/internal/config"
)

type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Fraud detection service administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML or JSON config overlay")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newSeedCommand(opts),
		newCreateAdminCommand(opts),
		newTrainCommand(opts),
		newHashCommand(),
		newResetCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	config.LoadEnv()
	if o.configFile != "" {
		os.Setenv("CONFIG_FILE", o.configFile)
	}
	return config.Load()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
