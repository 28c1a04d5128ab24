package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workspace_dir:        %s\n", cfg.WorkspaceDir)
			fmt.Fprintf(out, "log_dir:              %s\n", cfg.LogDir)
			fmt.Fprintf(out, "database:             %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "max_concurrency:      %d\n", cfg.MaxConcurrency)
			fmt.Fprintf(out, "lock_wait_timeout_ms: %d\n", cfg.LockWaitTimeoutMS)
			fmt.Fprintf(out, "claim_batch_size:     %d\n", cfg.ClaimBatchSize)
			fmt.Fprintf(out, "runner_command:       %s\n", cfg.Runner.Command)
			fmt.Fprintf(out, "log_level:            %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "log_format:           %s\n", cfg.Logging.Format)
			return nil
		},
	}
}
