// Command replay runs a JSON Lines recording of pose results through a
// tracker and prints the final readout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"

	"github.com/kdimtricp/elbowtrack/internal/capture"
	"github.com/kdimtricp/elbowtrack/internal/config"
	"github.com/kdimtricp/elbowtrack/internal/pose"
	"github.com/kdimtricp/elbowtrack/internal/tracking"
)

func main() {
	var (
		verbose     = flag.Bool("v", false, "Print the readout of every frame")
		overlayPath = flag.String("overlay", "", "Write the last drawn overlay to this PNG file")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] recording.jsonl\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	slog.SetDefault(config.NewLogger(os.Stderr, config.LogConfig{Level: level, Format: "text"}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := replayOptions{Verbose: *verbose, OverlayPath: *overlayPath, Out: os.Stdout}
	if err := run(ctx, flag.Arg(0), opts); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
}

type replayOptions struct {
	Verbose     bool
	OverlayPath string
	Out         io.Writer
}

func run(ctx context.Context, path string, opts replayOptions) error {
	out := opts.Out
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	total, err := capture.CountFrames(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	tracker := tracking.NewTracker(uuid.NewString(), pose.DefaultOptions())
	if err := tracker.Activate(); err != nil {
		return err
	}
	defer tracker.Teardown()

	// per-frame lines replace the bar in verbose mode
	var bar *pb.ProgressBar
	if !opts.Verbose {
		bar = pb.StartNew(total)
	}
	frame := 0
	stats, err := capture.Run(ctx, capture.NewRecordingSource(f), func(ctx context.Context, r *pose.Result) error {
		res, _ := tracker.HandleFrame(r)
		frame++
		if opts.Verbose {
			printFrame(out, frame, res)
		}
		return nil
	}, capture.Options{Progress: bar})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	snap := tracker.Snapshot()
	fmt.Fprintf(out, "Frames: %d (%d skipped)\n", stats.Frames, snap.FramesSkipped)
	fmt.Fprintln(out, snap.Readout)
	if snap.Display.Message != "" {
		fmt.Fprintln(out, snap.Display.Message)
	}

	if opts.OverlayPath == "" {
		return nil
	}
	data, err := tracker.RenderOverlay()
	if err != nil {
		return fmt.Errorf("rendering overlay: %w", err)
	}
	if err := os.WriteFile(opts.OverlayPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(out, "Overlay written to", opts.OverlayPath)
	return nil
}

func printFrame(w io.Writer, n int, res tracking.Outcome) {
	switch {
	case res.Skipped != tracking.SkipNone:
		fmt.Fprintf(w, "frame %d: skipped (%s)\n", n, res.Skipped)
	case res.State.Message != "":
		fmt.Fprintf(w, "frame %d: %s %s\n", n, res.State.Readout(), res.State.Message)
	default:
		fmt.Fprintf(w, "frame %d: %s\n", n, res.State.Readout())
	}
}
