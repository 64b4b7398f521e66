package bootstrap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/documents"
	"docflow-backend/internal/engines"
	"docflow-backend/internal/engines/markdown"
	"docflow-backend/internal/engines/searchablepdf"
	"docflow-backend/internal/folders"
	"docflow-backend/internal/jobs"
	"docflow-backend/internal/llm"
	"docflow-backend/internal/llm/mistral"
	"docflow-backend/internal/queue"
	"docflow-backend/internal/services/health"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/server"
	"docflow-backend/internal/shared/storage/db"
	"docflow-backend/internal/shared/storage/object/local"
	"docflow-backend/internal/shared/telemetry"
)

// MemoryDatabase selects the in-memory repositories.
const MemoryDatabase = "memory"

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Dialect    db.Dialect
	Store      *local.Store
	Engines    *engines.Registry
	Summarizer llm.Summarizer
	Dispatcher *queue.Dispatcher
	Executor   *jobs.Executor

	JobsRepo      jobs.Repo
	DocumentsRepo documents.Repo
	FoldersRepo   folders.Repo

	Jobs      *jobs.Service
	Documents *documents.Service
	Folders   *folders.Service
	Health    *health.Service
}

type buildOptions struct {
	engines    []engines.Engine
	summarizer llm.Summarizer
}

// Option customizes Build.
type Option func(*buildOptions)

// WithEngines replaces the default OCR engines.
func WithEngines(list ...engines.Engine) Option {
	return func(o *buildOptions) { o.engines = list }
}

// WithSummarizer replaces the configured summarizer.
func WithSummarizer(s llm.Summarizer) Option {
	return func(o *buildOptions) { o.summarizer = s }
}

// Build prepares every dependency, runs migrations and starts the worker
// pool. Call Reconcile before serving traffic and Close on shutdown.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	ctx := context.Background()

	store, err := local.New(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "prepare data dir")
	}

	app := &App{Config: cfg, Store: store}
	if err := buildRepos(ctx, app); err != nil {
		return nil, err
	}

	if bo.engines == nil {
		textLayer := searchablepdf.New(cfg.OCRmyPDFBin)
		bo.engines = []engines.Engine{textLayer, markdown.New(textLayer)}
	}
	app.Engines = engines.NewRegistry(bo.engines...)

	if bo.summarizer == nil {
		bo.summarizer, err = buildSummarizer(cfg)
		if err != nil {
			app.closeDB()
			return nil, err
		}
	}
	app.Summarizer = bo.summarizer

	app.Executor = &jobs.Executor{
		Repo:       app.JobsRepo,
		Engines:    app.Engines,
		Summarizer: app.Summarizer,
		Store:      store,
		Timeout:    cfg.JobTimeout,
	}
	app.Dispatcher = queue.New(app.Executor,
		queue.WithWorkers(cfg.WorkerCount),
		queue.WithQueueSize(cfg.QueueSize),
	)

	buildServices(app)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Health = health.NewService(pinger, store.Layout())

	app.Router = server.NewRouter(cfg, server.Handlers{
		Health:    app.Health,
		Jobs:      jobs.NewHandler(app.Jobs, cfg.APIPrefix),
		Documents: documents.NewHandler(app.Documents, cfg.APIPrefix),
		Folders:   folders.NewHandler(app.Folders),
	})

	return app, nil
}

func buildRepos(ctx context.Context, app *App) error {
	url := strings.TrimSpace(app.Config.DatabaseURL)
	if url == "" || url == MemoryDatabase {
		telemetry.Info("bootstrap.memory_store", nil)
		app.JobsRepo = jobs.NewMemoryRepo()
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.FoldersRepo = folders.NewMemoryRepo()
		return nil
	}

	conn, dialect, err := db.Connect(ctx, url, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	if err := db.RunMigrations(ctx, conn, dialect); err != nil {
		conn.Close()
		return errors.Wrap(err, "run migrations")
	}

	app.DB = conn
	app.Dialect = dialect
	app.JobsRepo = &jobs.SQLRepo{DB: conn, Dialect: dialect}
	app.DocumentsRepo = &documents.SQLRepo{DB: conn, Dialect: dialect}
	app.FoldersRepo = &folders.SQLRepo{DB: conn, Dialect: dialect}
	return nil
}

func buildSummarizer(cfg config.Config) (llm.Summarizer, error) {
	if !cfg.SummarizerEnabled() {
		telemetry.Info("bootstrap.summarizer_disabled", nil)
		return llm.Disabled{}, nil
	}
	client, err := mistral.NewClient(cfg.SummarizerAPIKey,
		mistral.WithURL(cfg.SummarizerURL),
		mistral.WithModel(cfg.SummarizerModel),
		mistral.WithRateLimit(cfg.SummarizerRPS, 1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build summarizer")
	}
	return client, nil
}

func buildServices(app *App) {
	settings, _ := app.JobsRepo.(jobs.SettingsRepo)

	app.Folders = &folders.Service{
		Repo:      app.FoldersRepo,
		Jobs:      app.JobsRepo,
		Documents: app.DocumentsRepo,
		Store:     app.Store,
	}
	app.Jobs = &jobs.Service{
		Repo:       app.JobsRepo,
		Settings:   settings,
		Store:      app.Store,
		Dispatcher: app.Dispatcher,
		Folders:    app.Folders,
	}
	app.Documents = &documents.Service{
		Repo:       app.DocumentsRepo,
		Store:      app.Store,
		Jobs:       app.Jobs,
		Converter:  markdown.Shared(),
		Summarizer: app.Summarizer,
		Folders:    app.Folders,
	}
}

// Reconcile fails jobs interrupted by a previous process and requeues the
// ones still waiting. It runs at startup, before this process has claimed
// any job, so every processing row belongs to a dead worker.
func (a *App) Reconcile(ctx context.Context) (jobs.ReconcileResult, error) {
	return jobs.Reconcile(ctx, a.JobsRepo, a.Dispatcher, 0)
}

// Close drains the worker pool and releases the database.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.Dispatcher != nil {
		err = a.Dispatcher.Shutdown(ctx)
	}
	if cerr := a.closeDB(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *App) closeDB() error {
	if a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	return err
}
