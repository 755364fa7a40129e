package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kdimtricp/elbowtrack/internal/pose"
)

const maxRecordingLine = 16 << 20

// RecordingSource replays pose results stored as JSON Lines, one result per
// line. Blank lines are ignored.
type RecordingSource struct {
	scanner *bufio.Scanner
	line    int
}

func NewRecordingSource(r io.Reader) *RecordingSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordingLine)
	return &RecordingSource{scanner: scanner}
}

func (s *RecordingSource) Next(ctx context.Context) (*pose.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading recording: %w", err)
			}
			return nil, io.EOF
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var r pose.Result
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("recording line %d: %w", s.line, err)
		}
		return &r, nil
	}
}

// CountFrames returns the number of non-blank lines in a recording, used to
// size progress bars before replaying.
func CountFrames(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordingLine)

	n := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
