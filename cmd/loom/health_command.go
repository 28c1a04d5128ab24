package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/deps"
	"loom/internal/store"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check work-item database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "Database:   %s\n", health.DBPath)
				fmt.Fprintf(out, "Exists:     %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable:   %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Table:      %s\n", yesNo(health.TableExists))
				fmt.Fprintf(out, "Integrity:  %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Items:      %d\n", health.TotalItems)
				if len(health.MissingColumns) > 0 {
					missing := append([]string{}, health.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing:    %s\n", strings.Join(missing, ", "))
				}
				if health.Error != "" {
					fmt.Fprintf(out, "Error:      %s\n", health.Error)
				}

				statuses := deps.Check(deps.Requirements(cfg))
				for _, status := range statuses {
					fmt.Fprintf(out, "Runner:     %s", yesNo(status.Available))
					if status.Detail != "" {
						fmt.Fprintf(out, " (%s)", status.Detail)
					}
					fmt.Fprintln(out)
				}
				if missing := deps.MissingRequired(statuses); len(missing) > 0 {
					fmt.Fprintf(out, "Unmet:      %s\n", strings.Join(missing, ", "))
				}
				return err
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
