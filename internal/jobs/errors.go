package jobs

import "github.com/cockroachdb/errors"

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidEngine     = errors.New("invalid engine")
	ErrInvalidOptions    = errors.New("invalid options")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotClaimable      = errors.New("job is not queued")
	ErrOutputNotReady    = errors.New("job output not available")
	ErrOutputMissing     = errors.New("job output file missing")
	ErrFolderNotFound    = errors.New("folder not found")
)
