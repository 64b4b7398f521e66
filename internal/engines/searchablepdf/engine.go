// Package searchablepdf produces PDFs with an embedded text layer by running ocrmypdf.
package searchablepdf

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/jobs"
)

const mimePDF = "application/pdf"

// ExecError reports a failed ocrmypdf run.
type ExecError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := lastLines(e.Stderr, 3)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("ocrmypdf exited with code %d: %s", e.ExitCode, msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Engine runs ocrmypdf.
type Engine struct {
	Bin    string
	Runner Runner
}

// New returns an engine invoking bin, defaulting to "ocrmypdf" on PATH.
func New(bin string) *Engine {
	if strings.TrimSpace(bin) == "" {
		bin = "ocrmypdf"
	}
	return &Engine{Bin: bin, Runner: execRunner{}}
}

// ID implements engines.Engine.
func (e *Engine) ID() jobs.EngineID { return jobs.EngineSearchablePDF }

// Run writes <stem>_ocr.pdf into the results directory.
func (e *Engine) Run(ctx context.Context, req jobs.EngineRequest) (jobs.EngineResult, error) {
	out := filepath.Join(req.ResultsDir, req.OutputStem+"_ocr.pdf")
	args := BuildArgs(req.Options, LanguageCode(req.Language))
	args = append(args, req.InputPath, out)

	runner := e.Runner
	if runner == nil {
		runner = execRunner{}
	}
	_, stderr, err := runner.Run(ctx, e.Bin, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobs.EngineResult{}, errors.Wrap(ctxErr, "ocrmypdf")
		}
		execErr := &ExecError{ExitCode: -1, Stderr: truncate(string(stderr), 4<<10), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		return jobs.EngineResult{}, execErr
	}
	return jobs.EngineResult{OutputPath: out, MimeType: mimePDF}, nil
}

// BuildArgs renders options as ocrmypdf flags. langCode is omitted when empty.
// --redo-ocr and --skip-text are mutually exclusive; redo wins.
func BuildArgs(o jobs.Options, langCode string) []string {
	level := o.Optimization()
	if level < 0 {
		level = 0
	}
	if level > 3 {
		level = 3
	}
	args := []string{"--optimize", strconv.Itoa(level)}
	if o.Rotate() {
		args = append(args, "--rotate-pages")
	}
	if o.CleanBackground() {
		args = append(args, "--remove-background")
	}
	switch {
	case o.Redo():
		args = append(args, "--redo-ocr")
	case o.SkipExistingText():
		args = append(args, "--skip-text")
	}
	if o.Straighten() {
		args = append(args, "--deskew")
	}
	outputType := strings.ToLower(o.Output())
	if !slices.Contains(jobs.OutputTypes, outputType) {
		outputType = "pdfa"
	}
	args = append(args, "--output-type", outputType)
	if langCode != "" {
		args = append(args, "-l", langCode)
	}
	return args
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}
