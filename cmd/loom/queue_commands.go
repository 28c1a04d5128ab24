package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"loom/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueImportCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueSkipCommand(ctx))
	queueCmd.AddCommand(newQueueDoneCommand(ctx))
	queueCmd.AddCommand(newQueueReleaseCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		eligibleOnly bool
		stuckOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if eligibleOnly && stuckOnly {
				return fmt.Errorf("--eligible and --stuck are mutually exclusive")
			}
			return ctx.withStore(func(st *store.Store) error {
				var (
					items []*store.Item
					err   error
				)
				switch {
				case eligibleOnly:
					items, err = st.ListEligible(cmd.Context())
				case stuckOnly:
					items, err = st.InProgress(cmd.Context())
				default:
					items, err = st.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						strconv.FormatInt(item.Priority, 10),
						displayCategory(item.Category),
						item.Name,
						itemState(item),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Priority", "Category", "Name", "State"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&eligibleOnly, "eligible", false, "Show only claimable items")
	cmd.Flags().BoolVar(&stuckOnly, "stuck", false, "Show only in-progress items")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Eligible", strconv.Itoa(stats.Eligible)},
					{"In progress", strconv.Itoa(stats.InProgress)},
					{"Passed", strconv.Itoa(stats.Passed)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"State", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		category    string
		description string
		steps       []string
		priority    int64
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a single work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				item, err := st.Add(cmd.Context(), store.Draft{
					Priority:    priority,
					Category:    category,
					Name:        args[0],
					Description: description,
					Steps:       steps,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added item %d with priority %d\n", item.ID, item.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Item category")
	cmd.Flags().StringVar(&description, "description", "", "Item description")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "Work step (repeatable)")
	cmd.Flags().Int64Var(&priority, "priority", 0, "Explicit priority (default: next available)")
	return cmd
}

// importPlan is the TOML shape accepted by 'queue import'.
type importPlan struct {
	Items []importItem `toml:"items"`
}

type importItem struct {
	Priority    int64    `toml:"priority"`
	Category    string   `toml:"category"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Steps       []string `toml:"steps"`
}

func newQueueImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <plan.toml>",
		Short: "Bulk-load work items from a TOML plan",
		Long: `Import reads a TOML file containing [[items]] entries and enqueues them as
one atomic batch: either every item is added or none are.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}
			var plan importPlan
			if err := toml.Unmarshal(data, &plan); err != nil {
				return fmt.Errorf("parse plan %s: %w", args[0], err)
			}
			if len(plan.Items) == 0 {
				return fmt.Errorf("plan %s contains no items", args[0])
			}

			drafts := make([]store.Draft, 0, len(plan.Items))
			for _, item := range plan.Items {
				drafts = append(drafts, store.Draft{
					Priority:    item.Priority,
					Category:    item.Category,
					Name:        item.Name,
					Description: item.Description,
					Steps:       item.Steps,
				})
			}

			return ctx.withStore(func(st *store.Store) error {
				if err := st.AddBatch(cmd.Context(), drafts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items\n", len(drafts))
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				item, err := st.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("no work item with id %d", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", item.ID)
				fmt.Fprintf(out, "Priority:    %d\n", item.Priority)
				fmt.Fprintf(out, "Category:    %s\n", displayCategory(item.Category))
				fmt.Fprintf(out, "Name:        %s\n", item.Name)
				fmt.Fprintf(out, "Description: %s\n", item.Description)
				fmt.Fprintf(out, "State:       %s\n", itemState(item))
				if item.ClaimedAt != nil {
					fmt.Fprintf(out, "Claimed at:  %s\n", item.ClaimedAt.Local().Format("2006-01-02 15:04:05"))
				}
				for i, step := range item.Steps {
					fmt.Fprintf(out, "Step %d:      %s\n", i+1, step)
				}
				return nil
			})
		},
	}
}

func newQueueSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Requeue an item at the lowest scheduling priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.Skip(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d requeued\n", id)
				return nil
			})
		},
	}
}

func newQueueDoneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark an item as passed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.MarkDone(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d marked done\n", id)
				return nil
			})
		},
	}
}

func newQueueReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release [id...]",
		Short: "Clear the in-progress flag on stuck items",
		Long: `Release clears the in-progress flag left behind by a fatal executor failure
or a crashed worker, making the items claimable again without renumbering
them. With no ids, every in-progress item is released.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(st *store.Store) error {
				count, err := st.Release(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d items\n", count)
				return nil
			})
		},
	}
}

func parseItemID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid work item id %q", value)
	}
	return id, nil
}
