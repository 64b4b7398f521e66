// Package engines adapts the OCR backends to the job executor.
package engines

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"docflow-backend/internal/jobs"
)

type (
	Request = jobs.EngineRequest
	Result  = jobs.EngineResult
)

// Engine is a named OCR backend.
type Engine interface {
	ID() jobs.EngineID
	Run(ctx context.Context, req Request) (Result, error)
}

// ErrUnknownEngine is returned for ids with no registered engine.
var ErrUnknownEngine = errors.New("unknown engine")

// Registry maps engine ids to engines.
type Registry struct {
	engines map[jobs.EngineID]Engine
}

// NewRegistry registers engines by their ID. Later duplicates win.
func NewRegistry(list ...Engine) *Registry {
	r := &Registry{engines: make(map[jobs.EngineID]Engine, len(list))}
	for _, e := range list {
		r.engines[e.ID()] = e
	}
	return r
}

// Engine returns the engine for id.
func (r *Registry) Engine(id jobs.EngineID) (jobs.Engine, error) {
	e, ok := r.engines[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEngine, "%q", id)
	}
	return e, nil
}

// IDs lists registered engine ids in order.
func (r *Registry) IDs() []jobs.EngineID {
	out := make([]jobs.EngineID, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
