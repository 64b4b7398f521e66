package jobs

import "context"

// EngineRequest describes one conversion.
type EngineRequest struct {
	InputPath  string
	ResultsDir string
	// OutputStem prefixes the result file name, normally the job id.
	OutputStem string
	Options    Options
	// Language is a human language name; empty means auto-detect.
	Language string
}

// EngineResult describes the produced file.
type EngineResult struct {
	OutputPath  string
	MimeType    string
	TextExcerpt *string
}

// Engine converts a stored upload into a result file.
type Engine interface {
	Run(ctx context.Context, req EngineRequest) (EngineResult, error)
}

// EngineResolver looks up engines by id.
type EngineResolver interface {
	Engine(id EngineID) (Engine, error)
}
