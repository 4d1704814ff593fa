package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/graphopt/internal/config"
	"github.com/born-ml/graphopt/internal/logger"
)

var (
	cfgFile   string
	activeCfg *config.Config
	activeLog = logger.Discard()
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "graphopt",
		Short:         "Neural-network graph optimizer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = &loaded
			return setupLogger(loaded.Log)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newOptimizeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newFakeQuantCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogger replaces the process logger. Logs go to stderr so stdout
// stays usable for documents.
func setupLogger(c config.LogConfig) error {
	l, err := logger.ForFormat(os.Stderr, c.Format, logger.ParseLevel(c.Level))
	if err != nil {
		return err
	}
	activeLog = l
	return nil
}

func requireConfig() (config.Config, error) {
	if activeCfg == nil {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return *activeCfg, nil
}
