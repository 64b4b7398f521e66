package llm

import "context"

// MaxInputRunes bounds the text sent to a summarizer.
const MaxInputRunes = 4000

// Summarizer turns extracted text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Disabled is used when no summarizer credential is configured. It makes no
// network call and always returns an empty summary.
type Disabled struct{}

// Summarize returns "", nil.
func (Disabled) Summarize(ctx context.Context, prompt string) (string, error) {
	return "", nil
}
