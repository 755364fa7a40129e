package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kdimtricp/elbowtrack/internal/capture"
	"github.com/kdimtricp/elbowtrack/internal/database"
	"github.com/kdimtricp/elbowtrack/internal/models"
	"github.com/kdimtricp/elbowtrack/internal/pose"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrReplay marks a recording that could not be read or played back.
	ErrReplay = errors.New("recording could not be replayed")
)

// SessionStore persists session records.
type SessionStore interface {
	Insert(ctx context.Context, s *models.Session) error
	Save(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, limit int) ([]models.Session, error)
}

// Service keeps the live trackers and mirrors their state to the store.
// Torn-down trackers are dropped from memory; their record stays in the
// store.
type Service struct {
	store  SessionStore
	opts   pose.Options
	logger *slog.Logger

	sessions   map[string]*Tracker
	sessionsMu sync.RWMutex
	records    map[string]*models.Session
}

func NewService(store SessionStore, opts pose.Options) *Service {
	return &Service{
		store:    store,
		opts:     opts,
		logger:   slog.Default().With("component", "tracking"),
		sessions: make(map[string]*Tracker),
		records:  make(map[string]*models.Session),
	}
}

// StartSession creates an active tracker and persists its record.
func (s *Service) StartSession(ctx context.Context) (*Tracker, error) {
	record := models.NewSession()
	tracker := NewTracker(record.ID, s.opts)
	if err := tracker.Activate(); err != nil {
		return nil, fmt.Errorf("activating tracker: %w", err)
	}
	record.State = StateActive.String()

	if err := s.store.Insert(ctx, record); err != nil {
		tracker.Teardown()
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	s.sessionsMu.Lock()
	s.sessions[record.ID] = tracker
	s.records[record.ID] = record
	s.sessionsMu.Unlock()

	s.logger.Info("tracking: session started", "session_id", record.ID)
	return tracker, nil
}

func (s *Service) GetSession(id string) (*Tracker, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	tracker, exists := s.sessions[id]
	return tracker, exists
}

// ProcessFrame runs one frame through the session's pipeline. A session that
// was torn down yields ErrTornDown; an unknown one ErrSessionNotFound.
func (s *Service) ProcessFrame(ctx context.Context, id string, r *pose.Result) (Outcome, error) {
	tracker, exists := s.GetSession(id)
	if !exists {
		return Outcome{}, s.missing(ctx, id)
	}

	out, ok := tracker.HandleFrame(r)
	if !ok {
		return Outcome{}, ErrTornDown
	}

	if out.Changed {
		s.persist(ctx, tracker)
	}
	return out, nil
}

// EndSession tears the session down and stores its final record.
func (s *Service) EndSession(ctx context.Context, id string) (*models.Session, error) {
	tracker, exists := s.GetSession(id)
	if !exists {
		return nil, s.missing(ctx, id)
	}

	tracker.persistMu.Lock()
	record := s.save(ctx, tracker, true)
	tracker.Teardown()
	tracker.persistMu.Unlock()

	s.sessionsMu.Lock()
	delete(s.sessions, id)
	delete(s.records, id)
	s.sessionsMu.Unlock()

	s.logger.Info("tracking: session ended", "session_id", id)
	return record, nil
}

// Describe returns the session record, built from the live tracker when
// there is one.
func (s *Service) Describe(ctx context.Context, id string) (*models.Session, error) {
	if tracker, exists := s.GetSession(id); exists {
		record := s.recordFor(tracker)
		snap := tracker.Snapshot()
		applySnapshot(&record, snap)
		return &record, nil
	}

	record, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	return record, err
}

func (s *Service) ListSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.List(ctx, 50)
}

// Shutdown tears down every live session.
func (s *Service) Shutdown(ctx context.Context) {
	s.sessionsMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionsMu.RUnlock()

	for _, id := range ids {
		if _, err := s.EndSession(ctx, id); err != nil {
			s.logger.Warn("tracking: failed to end session on shutdown", "session_id", id, "error", err)
		}
	}
}

// ReplayResult is the outcome of replaying a recording: the session record
// as it stood on the last frame, before teardown cleared the display.
type ReplayResult struct {
	Session *models.Session `json:"session"`
	Display DisplayState    `json:"display"`
	Frames  int             `json:"frames"`
}

// Replay runs a recorded source through a fresh session and ends it.
func (s *Service) Replay(ctx context.Context, src pose.Source, opts capture.Options) (*ReplayResult, error) {
	tracker, err := s.StartSession(ctx)
	if err != nil {
		return nil, err
	}

	stats, runErr := capture.Run(ctx, src, func(ctx context.Context, r *pose.Result) error {
		_, err := s.ProcessFrame(ctx, tracker.ID(), r)
		return err
	}, opts)

	display := tracker.Display()
	record, err := s.EndSession(context.WithoutCancel(ctx), tracker.ID())
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrReplay, runErr)
	}

	return &ReplayResult{Session: record, Display: display, Frames: stats.Frames}, nil
}

func (s *Service) missing(ctx context.Context, id string) error {
	record, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up session: %w", err)
	}
	if record.State == StateTornDown.String() {
		return ErrTornDown
	}
	// persisted as live but no tracker: the process restarted
	return ErrSessionNotFound
}

func (s *Service) recordFor(t *Tracker) models.Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	if record, ok := s.records[t.ID()]; ok {
		return *record
	}
	return models.Session{ID: t.ID()}
}

// persist writes the tracker's current state. Failures are logged: a frame
// already processed is not undone because the store is unavailable. Writes
// for one session are serialized, and none follow the teardown record.
func (s *Service) persist(ctx context.Context, t *Tracker) {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	if t.State() == StateTornDown {
		return
	}
	s.save(ctx, t, false)
}

// save must be called with t.persistMu held.
func (s *Service) save(ctx context.Context, t *Tracker, ending bool) *models.Session {
	record := s.recordFor(t)
	applySnapshot(&record, t.Snapshot())
	if ending {
		now := time.Now().UTC()
		record.State = StateTornDown.String()
		record.UpdatedAt = now
		record.EndedAt = &now
	}

	if err := s.store.Save(ctx, &record); err != nil {
		s.logger.Error("tracking: failed to persist session", "session_id", record.ID, "error", err)
	}

	s.sessionsMu.Lock()
	if _, live := s.sessions[record.ID]; live {
		s.records[record.ID] = &record
	}
	s.sessionsMu.Unlock()

	return &record
}

func applySnapshot(record *models.Session, snap Snapshot) {
	record.State = snap.State
	record.FramesProcessed = int64(snap.FramesProcessed)
	record.FramesSkipped = int64(snap.FramesSkipped)
	record.UpdatedAt = snap.UpdatedAt.UTC()
	if snap.Display.Angle != nil {
		angle := *snap.Display.Angle
		record.LastAngle = &angle
		record.LastMessage = snap.Display.Message
	}
}
