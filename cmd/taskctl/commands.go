package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"github.com/yukikurage/mo-task-monitor/internal/storage"
	"go.uber.org/zap"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema and seed data if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Storage ready (%s)\n", b.Name())
				return nil
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the relational database image to FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				store, ok := b.(repository.ImageStore)
				if !ok {
					return fmt.Errorf("export: %w", repository.ErrUnsupported)
				}

				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				n, err := store.Export(cmd.Context(), f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					os.Remove(args[0])
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bytes to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the relational database with the image in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				store, ok := b.(repository.ImageStore)
				if !ok {
					return fmt.Errorf("import: %w", repository.ErrUnsupported)
				}

				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				if err := store.Import(cmd.Context(), f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
				return nil
			})
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all data and re-seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every task; pass --yes to confirm")
			}
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				resetter, ok := b.(repository.Resetter)
				if !ok {
					return fmt.Errorf("reset: %w", repository.ErrUnsupported)
				}
				if err := resetter.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Storage reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var (
		apply bool
		from  string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the fallback pair and optionally copy one side onto the other",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				fallback, ok := b.(*storage.Fallback)
				if !ok {
					return fmt.Errorf("reconcile needs STORAGE_MODE=fallback with both backends reachable: %w", repository.ErrUnsupported)
				}

				report, err := fallback.Reconcile(cmd.Context(), storage.Direction(from), apply)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s -> %s\n", report.Source, report.Target)
				fmt.Fprintf(out, "only in %s: %v\n", report.Source, report.OnlyInSource)
				fmt.Fprintf(out, "only in %s: %v\n", report.Target, report.OnlyInTarget)
				fmt.Fprintf(out, "different: %v\n", report.Different)
				switch {
				case report.Applied:
					fmt.Fprintln(out, "applied")
				case report.InSync():
					fmt.Fprintln(out, "in sync")
				default:
					fmt.Fprintln(out, "run with --apply to copy the source onto the target")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Copy the source backend onto the target")
	cmd.Flags().StringVar(&from, "from", string(storage.FromPrimary), "Authoritative side: primary or secondary")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var withTasks bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard and per-organization completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), opts, func(b repository.Backend, _ *zap.Logger) error {
				ctx := cmd.Context()
				dashboard, err := services.NewTaskService(b.Tasks(), b.Organizations()).DashboardStats(ctx)
				if err != nil {
					return err
				}
				orgStats, err := services.NewOrganizationService(b.Organizations(), b.Tasks()).
					Stats(ctx, services.StatsQuery{OnlyWithTasks: withTasks})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tasks: %d  completed: %d (%d%%)  in progress: %d (%d%%)  overdue: %d (%d%%)\n\n",
					dashboard.TasksTotal,
					dashboard.TasksCompleted, dashboard.CompletedRate,
					dashboard.TasksInProgress, dashboard.InProgressRate,
					dashboard.TasksOverdue, dashboard.OverdueRate,
				)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tORGANIZATION\tTASKS\tDONE\tOVERDUE\tCOMPLETION")
				for _, s := range orgStats {
					fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d%%\n",
						s.Organization.ID, s.Organization.Name,
						s.TasksTotal, s.TasksCompleted, s.TasksOverdue, s.CompletionPercent)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&withTasks, "with-tasks", false, "Only list organizations that have tasks")
	return cmd
}
