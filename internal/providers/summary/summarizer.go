package summary

import "context"

// Summarizer condenses raw user text into a short spoken script.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
