package tracking

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kdimtricp/elbowtrack/internal/overlay"
	"github.com/kdimtricp/elbowtrack/internal/pose"
)

var (
	ErrTornDown  = errors.New("session has been torn down")
	ErrNoOverlay = errors.New("no overlay has been drawn yet")
)

// State is the lifecycle of a tracker.
type State int

const (
	StateInactive State = iota
	StateActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Update is published to subscribers whenever the display state changes.
type Update struct {
	SessionID string       `json:"session_id"`
	Display   DisplayState `json:"display"`
	Readout   string       `json:"readout"`
	Frame     uint64       `json:"frame"`
}

// Snapshot is a point-in-time copy of a tracker.
type Snapshot struct {
	ID              string       `json:"id"`
	State           string       `json:"state"`
	Display         DisplayState `json:"display"`
	Readout         string       `json:"readout"`
	FramesProcessed uint64       `json:"frames_processed"`
	FramesSkipped   uint64       `json:"frames_skipped"`
	Options         pose.Options `json:"options"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

const subscriberBuffer = 16

// Tracker is one tracking session. Frames are processed one at a time;
// callbacks arriving before activation or after teardown are ignored.
type Tracker struct {
	id     string
	opts   pose.Options
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	display     DisplayState
	lastCmds    []overlay.Command
	lastFrame   []byte
	processed   uint64
	skipped     uint64
	createdAt   time.Time
	updatedAt   time.Time
	subscribers map[chan Update]struct{}

	// persistMu orders store writes for this session.
	persistMu sync.Mutex
}

func NewTracker(id string, opts pose.Options) *Tracker {
	now := time.Now()
	return &Tracker{
		id:          id,
		opts:        opts,
		logger:      slog.Default().With("component", "tracker", "session_id", id),
		state:       StateInactive,
		createdAt:   now,
		updatedAt:   now,
		subscribers: make(map[chan Update]struct{}),
	}
}

func (t *Tracker) ID() string { return t.id }

// Activate marks the pose source and camera as ready.
func (t *Tracker) Activate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateTornDown:
		return ErrTornDown
	case StateActive:
		return nil
	}
	t.state = StateActive
	t.updatedAt = time.Now()
	t.logger.Info("tracker: activated")
	return nil
}

// HandleFrame runs the pipeline for one frame. It reports false, doing
// nothing, unless the tracker is active.
func (t *Tracker) HandleFrame(r *pose.Result) (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		return Outcome{}, false
	}

	out := Process(t.display, r)
	t.updatedAt = time.Now()

	if out.Skipped != SkipNone {
		t.skipped++
		t.logger.Debug("tracker: frame skipped", "reason", out.Skipped)
	} else {
		t.processed++
	}

	if len(out.Commands) > 0 {
		t.lastCmds = out.Commands
		t.lastFrame = r.Image.Data
	}

	t.display = out.State
	if out.Changed {
		t.broadcast(Update{
			SessionID: t.id,
			Display:   out.State,
			Readout:   out.State.Readout(),
			Frame:     t.processed + t.skipped,
		})
	}
	return out, true
}

// broadcast never blocks: a subscriber that is behind misses updates.
func (t *Tracker) broadcast(u Update) {
	for ch := range t.subscribers {
		select {
		case ch <- u:
		default:
			t.logger.Debug("tracker: dropping update, subscriber full")
		}
	}
}

// Subscribe returns a channel of display updates and a function that
// releases it. The channel is closed on teardown.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTornDown {
		close(ch)
		return ch, func() {}
	}
	t.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subscribers[ch]; ok {
				delete(t.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Teardown releases the session. The display state is cleared and no
// further frames are accepted. It reports whether this call did the
// teardown.
func (t *Tracker) Teardown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTornDown {
		return false
	}
	t.state = StateTornDown
	t.display = DisplayState{}
	t.lastCmds = nil
	t.lastFrame = nil
	t.updatedAt = time.Now()

	for ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, ch)
	}
	t.logger.Info("tracker: torn down", "frames_processed", t.processed, "frames_skipped", t.skipped)
	return true
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Display() DisplayState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		ID:              t.id,
		State:           t.state.String(),
		Display:         t.display,
		Readout:         t.display.Readout(),
		FramesProcessed: t.processed,
		FramesSkipped:   t.skipped,
		Options:         t.opts,
		CreatedAt:       t.createdAt,
		UpdatedAt:       t.updatedAt,
	}
}

// RenderOverlay rasterizes the most recently drawn overlay as PNG.
func (t *Tracker) RenderOverlay() ([]byte, error) {
	t.mu.Lock()
	if t.state == StateTornDown {
		t.mu.Unlock()
		return nil, ErrTornDown
	}
	cmds, frame := t.lastCmds, t.lastFrame
	t.mu.Unlock()

	if len(cmds) == 0 {
		return nil, ErrNoOverlay
	}
	return overlay.Render(frame, cmds)
}
