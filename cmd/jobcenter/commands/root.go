package commands

import (
	"context"
	"fmt"

	"github.com/Swind/go-job-center/config"
	"github.com/spf13/cobra"
)

const cliExecutable = "jobcenter"

type configKey struct{}

func withConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey{}).(config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// NewCommand constructs the top-level jobcenter CLI command. Configuration
// is loaded once before any subcommand runs.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Dependency-aware job graph runner",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{
				Path:  configFile,
				Flags: cmd.Flags(),
			})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.ConfigureLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCommand())
	return cmd
}
