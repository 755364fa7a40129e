package pose

import "context"

// Source yields pose results one frame at a time. Next returns io.EOF once
// the source is exhausted.
type Source interface {
	Next(ctx context.Context) (*Result, error)
}
