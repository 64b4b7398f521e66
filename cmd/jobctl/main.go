package main

// Operate on OCR jobs outside the API process:
//   go run ./cmd/jobctl list --status failed
//   go run ./cmd/jobctl process 42
//   go run ./cmd/jobctl engine set engine_a

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docflow-backend/internal/bootstrap"
	"docflow-backend/internal/jobs"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd(config.New(), nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. opts are passed to bootstrap.Build.
func newRootCmd(v *viper.Viper, opts []bootstrap.Option) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Inspect and run OCR jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("database-url", "", "postgres:// or sqlite:// URL")
	root.PersistentFlags().String("data-dir", "", "root directory for uploads and results")
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))
	_ = v.BindPFlag("data_dir", root.PersistentFlags().Lookup("data-dir"))

	withApp := func(fn func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFiles(v, configFile); err != nil {
				return err
			}
			cfg := config.FromViper(v)
			if err := telemetry.Init(cfg.LogJSON, cfg.LogLevel, "stderr"); err != nil {
				return err
			}
			app, err := bootstrap.Build(cfg, opts...)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				_ = app.Close(ctx)
			}()
			return fn(cmd.Context(), app, cmd.OutOrStdout(), args)
		}
	}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
			items, err := app.Jobs.List(ctx, jobs.ListFilter{Status: jobs.Status(status), Limit: limit})
			if err != nil {
				return err
			}
			views := make([]jobs.JobView, 0, len(items))
			for _, job := range items {
				views = append(views, jobs.ToView(job, app.Config.APIPrefix, false))
			}
			return printJSON(out, views)
		}),
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of jobs")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			job, err := app.Jobs.Get(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(out, jobs.ToView(job, app.Config.APIPrefix, true))
		}),
	}

	process := &cobra.Command{
		Use:   "process <id>",
		Short: "Run a queued job in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			started := time.Now()
			if err := app.Executor.Process(ctx, id); err != nil {
				return err
			}
			job, err := app.Jobs.Get(ctx, id)
			if err != nil {
				return err
			}
			telemetry.Info("jobctl.processed", map[string]any{
				"job_id":      id,
				"status":      string(job.Status),
				"duration_ms": time.Since(started).Milliseconds(),
			})
			return printJSON(out, jobs.ToView(job, app.Config.APIPrefix, true))
		}),
	}

	var staleAfter time.Duration
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail interrupted jobs and run queued ones",
		Long: "Fail jobs that have been processing for longer than --stale-after, then run queued jobs.\n" +
			"--stale-after 0 fails every processing job; use it only when no API process is running.",
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
			if staleAfter < 0 {
				return errors.Newf("invalid --stale-after %s", staleAfter)
			}
			res, err := jobs.Reconcile(ctx, app.JobsRepo, nil, staleAfter)
			if err != nil {
				return err
			}
			queued, err := app.JobsRepo.List(ctx, jobs.ListFilter{Status: jobs.StatusQueued})
			if err != nil {
				return err
			}
			for i := len(queued) - 1; i >= 0; i-- {
				if err := app.Executor.Process(ctx, queued[i].ID); err != nil {
					return errors.Wrapf(err, "process job %d", queued[i].ID)
				}
				res.Requeued++
			}
			_, err = fmt.Fprintf(out, "failed=%d processed=%d\n", res.Failed, res.Requeued)
			return err
		}),
	}

	reconcile.Flags().DurationVar(&staleAfter, "stale-after", time.Hour, "only fail jobs processing for longer than this")

	engine := &cobra.Command{Use: "engine", Short: "Read or change the default OCR engine"}
	engine.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the default engine",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
				id, err := app.Jobs.DefaultEngine(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, id)
				return err
			}),
		},
		&cobra.Command{
			Use:   "set <engine>",
			Short: "Store the default engine",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
				id, err := app.Jobs.SetDefaultEngine(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, id)
				return err
			}),
		},
	)

	root.AddCommand(list, get, process, reconcile, engine)
	return root
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Newf("invalid job id %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
