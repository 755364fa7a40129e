// Package capture drives frame callbacks from a pose source, the way a
// camera utility does on the client: pull a frame, wait for the callback to
// finish, pull the next.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cheggaaa/pb/v3"

	"github.com/kdimtricp/elbowtrack/internal/pose"
)

// FrameFunc is invoked once per frame. Returning an error stops the loop.
type FrameFunc func(ctx context.Context, r *pose.Result) error

type Stats struct {
	Frames int `json:"frames"`
}

type Options struct {
	// Progress, when set, is incremented after every frame.
	Progress *pb.ProgressBar
	Logger   *slog.Logger
}

// Run feeds every result from src to onFrame, one at a time. At most one
// frame is in flight: the next frame is requested only after onFrame
// returns. Run returns nil when the source is exhausted and ctx.Err() when
// the context is cancelled.
func Run(ctx context.Context, src pose.Source, onFrame FrameFunc, opts Options) (Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		r, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Debug("capture: source exhausted", "frames", stats.Frames)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("reading frame %d: %w", stats.Frames+1, err)
		}

		if err := onFrame(ctx, r); err != nil {
			return stats, fmt.Errorf("processing frame %d: %w", stats.Frames+1, err)
		}
		stats.Frames++

		if opts.Progress != nil {
			opts.Progress.Increment()
		}
	}
}
