package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/shared/storage/object/local"
)

type stubEngine struct {
	calls atomic.Int32
	run   func(ctx context.Context, req EngineRequest) (EngineResult, error)

	mu   sync.Mutex
	reqs []EngineRequest
}

func (s *stubEngine) Run(ctx context.Context, req EngineRequest) (EngineResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.run != nil {
		return s.run(ctx, req)
	}
	return writeMarkdown(req, "text extras din document")
}

func (s *stubEngine) lastRequest() EngineRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

func writeMarkdown(req EngineRequest, text string) (EngineResult, error) {
	out := filepath.Join(req.ResultsDir, req.OutputStem+"_docling.md")
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return EngineResult{}, err
	}
	return EngineResult{OutputPath: out, MimeType: "text/markdown", TextExcerpt: &text}, nil
}

type engineMap map[EngineID]Engine

func (m engineMap) Engine(id EngineID) (Engine, error) {
	e, ok := m[id]
	if !ok {
		return nil, errors.Newf("unknown engine %q", id)
	}
	return e, nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (d *recordingDispatcher) Submit(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

func (d *recordingDispatcher) submitted() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.ids...)
}

type stubSummarizer struct {
	text  string
	err   error
	panic bool

	mu      sync.Mutex
	prompts []string
}

func (s *stubSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.panic {
		panic("summarizer blew up")
	}
	return s.text, s.err
}

type folderSet map[int64]bool

func (f folderSet) Exists(_ context.Context, id int64) (bool, error) { return f[id], nil }

type harness struct {
	repo       *MemoryRepo
	store      *local.Store
	disp       *recordingDispatcher
	engine     *stubEngine
	pdfEngine  *stubEngine
	summarizer *stubSummarizer
	svc        *Service
	exec       *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	h := &harness{
		repo:       NewMemoryRepo(),
		store:      store,
		disp:       &recordingDispatcher{},
		engine:     &stubEngine{},
		pdfEngine:  &stubEngine{},
		summarizer: &stubSummarizer{text: "Rezumat scurt."},
	}
	h.svc = &Service{
		Repo:       h.repo,
		Settings:   h.repo,
		Store:      store,
		Dispatcher: h.disp,
		Folders:    folderSet{7: true},
	}
	h.exec = &Executor{
		Repo:       h.repo,
		Engines:    engineMap{EngineMarkdown: h.engine, EngineSearchablePDF: h.pdfEngine},
		Summarizer: h.summarizer,
		Store:      store,
	}
	return h
}

func (h *harness) submit(t *testing.T, in SubmitInput) Job {
	t.Helper()
	if in.FileName == "" {
		in.FileName = "scan.pdf"
	}
	if in.Content == nil {
		in.Content = strings.NewReader("%PDF-1.4 fake")
	}
	job, err := h.svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return job
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}
