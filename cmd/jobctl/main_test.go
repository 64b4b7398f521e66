package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"docflow-backend/internal/bootstrap"
	"docflow-backend/internal/jobs"
	"docflow-backend/internal/llm"
	"docflow-backend/internal/shared/config"
)

type textEngine struct{}

func (textEngine) ID() jobs.EngineID { return jobs.EngineMarkdown }

func (textEngine) Run(ctx context.Context, req jobs.EngineRequest) (jobs.EngineResult, error) {
	text := "continut recunoscut"
	out := filepath.Join(req.ResultsDir, req.OutputStem+"_docling.md")
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return jobs.EngineResult{}, err
	}
	return jobs.EngineResult{OutputPath: out, MimeType: "text/markdown", TextExcerpt: &text}, nil
}

type env struct {
	dataDir     string
	databaseURL string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	return env{dataDir: filepath.Join(dir, "data"), databaseURL: "sqlite:///" + filepath.Join(dir, "jobs.db")}
}

func (e env) opts() []bootstrap.Option {
	return []bootstrap.Option{bootstrap.WithEngines(textEngine{}), bootstrap.WithSummarizer(llm.Disabled{})}
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	v := config.New()
	v.Set("data_dir", e.dataDir)
	v.Set("database_url", e.databaseURL)
	v.Set("log_level", "error")
	cmd := newRootCmd(v, e.opts())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// withApp opens the env's database directly, outside any command.
func (e env) withApp(t *testing.T, fn func(app *bootstrap.App)) {
	t.Helper()
	cfg := config.FromViper(config.New())
	cfg.DataDir = e.dataDir
	cfg.DatabaseURL = e.databaseURL
	app, err := bootstrap.Build(cfg, e.opts()...)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	}()
	fn(app)
}

func (e env) seedJob(t *testing.T) int64 {
	t.Helper()
	var id int64
	e.withApp(t, func(app *bootstrap.App) {
		id = e.createJob(t, app)
	})
	return id
}

func (e env) createJob(t *testing.T, app *bootstrap.App) int64 {
	t.Helper()
	job, err := app.JobsRepo.Create(context.Background(), jobs.Draft{
		OriginalFilename: "scan.pdf",
		StoredFilename:   "1_scan.pdf",
		Engine:           jobs.EngineMarkdown,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e.dataDir, "uploads", "1_scan.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return job.ID
}

func TestEngineSetPersists(t *testing.T) {
	e := newEnv(t)

	if _, err := e.run(t, "engine", "set", "engine_a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := e.run(t, "engine", "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "engine_a" {
		t.Fatalf("expected engine_a, got %q", out)
	}

	if _, err := e.run(t, "engine", "set", "engine_z"); err == nil {
		t.Fatalf("expected unknown engine to fail")
	}
}

func TestProcessRunsQueuedJob(t *testing.T) {
	e := newEnv(t)
	id := e.seedJob(t)

	out, err := e.run(t, "process", strconv.FormatInt(id, 10))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var view jobs.JobView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v (%s)", err, out)
	}
	if view.Status != jobs.StatusCompleted || view.OutputFilename == nil {
		t.Fatalf("unexpected job %+v", view)
	}

	out, err = e.run(t, "list", "--status", "completed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed []jobs.JobView
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != id {
		t.Fatalf("unexpected list %+v", listed)
	}
}

func TestReconcileProcessesQueued(t *testing.T) {
	e := newEnv(t)
	e.seedJob(t)

	out, err := e.run(t, "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if strings.TrimSpace(out) != "failed=0 processed=1" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestReconcileSparesRecentlyClaimedJobs(t *testing.T) {
	e := newEnv(t)
	var id int64
	e.withApp(t, func(app *bootstrap.App) {
		id = e.createJob(t, app)
		if _, err := app.JobsRepo.Claim(context.Background(), id); err != nil {
			t.Fatalf("claim: %v", err)
		}
	})

	out, err := e.run(t, "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if strings.TrimSpace(out) != "failed=0 processed=0" {
		t.Fatalf("running job must be left alone, got %q", out)
	}

	out, err = e.run(t, "reconcile", "--stale-after", "0")
	if err != nil {
		t.Fatalf("forced reconcile: %v", err)
	}
	if strings.TrimSpace(out) != "failed=1 processed=0" {
		t.Fatalf("unexpected output %q", out)
	}
	out, err = e.run(t, "get", strconv.FormatInt(id, 10))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var view jobs.JobView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", view.Status)
	}
}

func TestGetRejectsBadID(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run(t, "get", "abc"); err == nil || !strings.Contains(err.Error(), "invalid job id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestMalformedConfigFails(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := e.run(t, "--config", path, "engine", "get"); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected config error, got %v", err)
	}
}
