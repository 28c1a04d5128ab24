package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the work queue with concurrent workers",
		Long: `Run claims eligible items in ascending priority order, dispatches each to
the configured runner command, and records the outcome. Workers exit once no
claimable items remain. Interrupting the run stops new claims; items already
dispatched finish and are recorded before shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.MaxConcurrency = workers
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			exec, err := runner.New(cfg, logger)
			if err != nil {
				return err
			}

			orch, err := orchestrator.New(cfg, logger)
			if err != nil {
				return err
			}
			defer orch.Cleanup()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := orch.Run(runCtx, exec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Completed: %d  Requeued: %d  Failed: %d\n",
				summary.Completed, summary.Skipped, summary.Failed)
			for _, detail := range summary.Errors {
				fmt.Fprintf(out, "  error: %s\n", detail)
			}
			if summary.Failed > 0 {
				fmt.Fprintln(out, "Failed items remain in progress; inspect with 'loom queue list' and requeue with 'loom queue release'.")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override workflow.max_concurrency for this run")
	return cmd
}
