package markdown

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/jobs"
	"docflow-backend/internal/shared/telemetry"
	"docflow-backend/internal/shared/util"
)

const mimeMarkdown = "text/markdown"

// Engine writes a markdown rendition of the input.
type Engine struct {
	Converter *Converter
	// TextLayer, when set, adds a text layer to scanned PDFs and images
	// before conversion. Other inputs without text fail directly. It is
	// normally the searchable-PDF engine.
	TextLayer jobs.Engine
}

// New returns an engine using the shared converter.
func New(textLayer jobs.Engine) *Engine {
	return &Engine{Converter: Shared(), TextLayer: textLayer}
}

// ID implements engines.Engine.
func (e *Engine) ID() jobs.EngineID { return jobs.EngineMarkdown }

// Run writes <stem>_docling.md into the results directory and returns the
// first MaxExcerptRunes runes as the excerpt.
func (e *Engine) Run(ctx context.Context, req jobs.EngineRequest) (jobs.EngineResult, error) {
	conv := e.Converter
	if conv == nil {
		conv = Shared()
	}

	md, err := conv.ConvertFile(ctx, req.InputPath)
	if errors.Is(err, ErrNoTextLayer) && e.TextLayer != nil {
		telemetry.Info("markdown.text_layer", map[string]any{"input": filepath.Base(req.InputPath)})
		md, err = e.convertWithTextLayer(ctx, conv, req)
	}
	if err != nil {
		return jobs.EngineResult{}, err
	}

	out := filepath.Join(req.ResultsDir, req.OutputStem+"_docling.md")
	if err := os.WriteFile(out, []byte(md), 0o644); err != nil {
		return jobs.EngineResult{}, errors.Wrap(err, "write markdown")
	}
	excerpt := util.TruncateRunes(md, jobs.MaxExcerptRunes)
	return jobs.EngineResult{OutputPath: out, MimeType: mimeMarkdown, TextExcerpt: &excerpt}, nil
}

func (e *Engine) convertWithTextLayer(ctx context.Context, conv *Converter, req jobs.EngineRequest) (string, error) {
	tmp, err := os.MkdirTemp("", "docflow-textlayer-")
	if err != nil {
		return "", errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(tmp)

	layered := req
	layered.ResultsDir = tmp
	layered.Options = req.Options.WithTextLayerDefaults()
	res, err := e.TextLayer.Run(ctx, layered)
	if err != nil {
		return "", errors.Wrap(err, "add text layer")
	}
	md, err := conv.ConvertFile(ctx, res.OutputPath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(md) == "" {
		return "", ErrNoText
	}
	return md, nil
}
