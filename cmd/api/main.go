package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docflow-backend/internal/bootstrap"
	"docflow-backend/internal/inbox"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/server"
	"docflow-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "docflow-api",
		Short:         "Serve the OCR job and Word document API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFiles(v, configFile); err != nil {
				return err
			}
			cfg := config.FromViper(v)
			if err := telemetry.Init(cfg.LogJSON, cfg.LogLevel); err != nil {
				return err
			}
			defer telemetry.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				telemetry.Error("api.exit", map[string]any{"error": err.Error()})
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("port", "", "listen port")
	flags.String("data-dir", "", "root directory for uploads and results")
	flags.String("database-url", "", "postgres:// or sqlite:// URL, or \"memory\"")
	flags.Int("workers", 0, "number of job workers")
	flags.String("inbox-dir", "", "directory watched for dropped files")
	for flag, key := range map[string]string{
		"port":         "port",
		"data-dir":     "data_dir",
		"database-url": "database_url",
		"workers":      "worker_count",
		"inbox-dir":    "inbox_dir",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return errors.Wrap(err, "bootstrap")
	}
	if _, err := app.Reconcile(ctx); err != nil {
		telemetry.Error("jobs.reconcile_failed", map[string]any{"error": err.Error()})
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.listen", map[string]any{"addr": srv.Addr, "env": cfg.Env, "prefix": cfg.APIPrefix})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	if cfg.InboxDir != "" {
		g.Go(func() error {
			return inbox.New(cfg.InboxDir, app.Jobs).Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		telemetry.Info("api.shutdown", nil)
		err := srv.Shutdown(shutdownCtx)
		if cerr := app.Close(shutdownCtx); cerr != nil && err == nil {
			err = cerr
		}
		return err
	})
	return g.Wait()
}
