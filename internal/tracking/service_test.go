package tracking

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/elbowtrack/internal/capture"
	"github.com/kdimtricp/elbowtrack/internal/database"
	"github.com/kdimtricp/elbowtrack/internal/models"
	"github.com/kdimtricp/elbowtrack/internal/pose"
)

type memoryStore struct {
	mu         sync.Mutex
	sessions   map[string]models.Session
	saves      int
	failSave   error
	failInsert error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]models.Session)}
}

func (m *memoryStore) Insert(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryStore) Save(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, database.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memoryStore) List(ctx context.Context, limit int) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func TestServiceSessionFlow(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, pose.DefaultOptions())
	ctx := context.Background()

	tracker, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if tracker.State() != StateActive {
		t.Fatalf("expected active tracker, got %s", tracker.State())
	}

	stored, _ := store.GetByID(ctx, tracker.ID())
	if stored.State != "active" {
		t.Errorf("expected stored state active, got %s", stored.State)
	}

	out, err := svc.ProcessFrame(ctx, tracker.ID(), bentArm(90))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if out.State.Message != TargetReachedMessage {
		t.Errorf("unexpected message %q", out.State.Message)
	}

	stored, _ = store.GetByID(ctx, tracker.ID())
	if stored.LastAngle == nil || *stored.LastAngle != 90 {
		t.Errorf("expected stored angle 90, got %v", stored.LastAngle)
	}

	// unchanged reading is not written again
	saves := store.saves
	if _, err := svc.ProcessFrame(ctx, tracker.ID(), bentArm(90)); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if store.saves != saves {
		t.Errorf("expected no save for unchanged display, got %d new", store.saves-saves)
	}

	described, err := svc.Describe(ctx, tracker.ID())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if described.FramesProcessed != 2 {
		t.Errorf("expected 2 frames processed, got %d", described.FramesProcessed)
	}

	record, err := svc.EndSession(ctx, tracker.ID())
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if record.State != "torn_down" || record.EndedAt == nil {
		t.Errorf("unexpected final record %+v", record)
	}
	if tracker.State() != StateTornDown {
		t.Errorf("expected tracker torn down, got %s", tracker.State())
	}
	if _, live := svc.GetSession(tracker.ID()); live {
		t.Error("expected tracker removed from the live set")
	}

	if _, err := svc.ProcessFrame(ctx, tracker.ID(), bentArm(45)); !errors.Is(err, ErrTornDown) {
		t.Errorf("expected ErrTornDown after end, got %v", err)
	}
	if _, err := svc.EndSession(ctx, tracker.ID()); !errors.Is(err, ErrTornDown) {
		t.Errorf("expected ErrTornDown ending twice, got %v", err)
	}

	described, err = svc.Describe(ctx, tracker.ID())
	if err != nil {
		t.Fatalf("Describe after end: %v", err)
	}
	if described.State != "torn_down" {
		t.Errorf("expected torn_down record, got %s", described.State)
	}
}

func TestServiceUnknownSession(t *testing.T) {
	svc := NewService(newMemoryStore(), pose.DefaultOptions())
	ctx := context.Background()

	if _, err := svc.ProcessFrame(ctx, "nope", bentArm(90)); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Describe(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServicePersistFailureDoesNotFailFrame(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, pose.DefaultOptions())
	ctx := context.Background()

	tracker, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	store.failSave = errors.New("disk full")

	out, err := svc.ProcessFrame(ctx, tracker.ID(), bentArm(30))
	if err != nil {
		t.Fatalf("expected frame to succeed, got %v", err)
	}
	if out.State.Angle == nil || *out.State.Angle != 30 {
		t.Errorf("expected angle 30, got %v", out.State.Angle)
	}
}

// blockingStore holds the first Save until release is closed.
type blockingStore struct {
	*memoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, s *models.Session) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.memoryStore.Save(ctx, s)
}

func TestServiceEndSessionWinsOverInFlightFrame(t *testing.T) {
	store := &blockingStore{
		memoryStore: newMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := NewService(store, pose.DefaultOptions())
	ctx := context.Background()

	tracker, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	id := tracker.ID()

	frameDone := make(chan error, 1)
	go func() {
		_, err := svc.ProcessFrame(ctx, id, bentArm(90))
		frameDone <- err
	}()
	<-store.entered

	endDone := make(chan error, 1)
	go func() {
		_, err := svc.EndSession(ctx, id)
		endDone <- err
	}()

	// the teardown may finish first or wait on the frame's write
	select {
	case err := <-endDone:
		endDone <- err
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)

	if err := <-frameDone; err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if err := <-endDone; err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	record, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.State != "torn_down" || record.EndedAt == nil {
		t.Errorf("expected teardown record, got state=%s ended=%v", record.State, record.EndedAt)
	}
	if record.LastAngle == nil || *record.LastAngle != 90 {
		t.Errorf("expected last angle 90, got %v", record.LastAngle)
	}

	if _, err := svc.ProcessFrame(ctx, id, bentArm(45)); !errors.Is(err, ErrTornDown) {
		t.Errorf("expected ErrTornDown, got %v", err)
	}
}

func TestServiceShutdown(t *testing.T) {
	svc := NewService(newMemoryStore(), pose.DefaultOptions())
	ctx := context.Background()

	var trackers []*Tracker
	for i := 0; i < 3; i++ {
		tr, err := svc.StartSession(ctx)
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		trackers = append(trackers, tr)
	}

	svc.Shutdown(ctx)

	for _, tr := range trackers {
		if tr.State() != StateTornDown {
			t.Errorf("session %s not torn down", tr.ID())
		}
	}
}

const replayRecording = `{"image":{"width":640,"height":480},"poseLandmarks":[` +
	`{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},` +
	`{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0},` +
	`{"x":0.2,"y":0.5},{"x":0,"y":0},{"x":0.5,"y":0.5},{"x":0,"y":0},{"x":0.5,"y":0.8}]}
{"image":{"width":640,"height":480}}
`

func TestServiceReplaySQLite(t *testing.T) {
	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "replay.db"),
	})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	svc := NewService(database.NewSessionRepository(db), pose.DefaultOptions())
	ctx := context.Background()

	result, err := svc.Replay(ctx, capture.NewRecordingSource(strings.NewReader(replayRecording)), capture.Options{})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if result.Frames != 2 {
		t.Errorf("expected 2 frames, got %d", result.Frames)
	}
	if result.Display.Angle == nil || *result.Display.Angle != 90 {
		t.Errorf("expected final angle 90, got %v", result.Display.Angle)
	}
	if result.Session.FramesProcessed != 1 || result.Session.FramesSkipped != 1 {
		t.Errorf("unexpected counters %d/%d", result.Session.FramesProcessed, result.Session.FramesSkipped)
	}

	stored, err := database.NewSessionRepository(db).GetByID(ctx, result.Session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.State != "torn_down" {
		t.Errorf("expected torn_down, got %s", stored.State)
	}
	if stored.LastAngle == nil || *stored.LastAngle != 90 {
		t.Errorf("expected stored angle 90, got %v", stored.LastAngle)
	}
}

func TestServiceReplayErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed recording", func(t *testing.T) {
		store := newMemoryStore()
		svc := NewService(store, pose.DefaultOptions())

		_, err := svc.Replay(ctx, capture.NewRecordingSource(strings.NewReader("{not json\n")), capture.Options{})
		if !errors.Is(err, ErrReplay) {
			t.Fatalf("expected ErrReplay, got %v", err)
		}

		sessions, _ := store.List(ctx, 10)
		if len(sessions) != 1 || sessions[0].State != "torn_down" {
			t.Errorf("expected the replay session to be ended, got %+v", sessions)
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := newMemoryStore()
		store.failInsert = errors.New("connection refused")
		svc := NewService(store, pose.DefaultOptions())

		_, err := svc.Replay(ctx, capture.NewRecordingSource(strings.NewReader(replayRecording)), capture.Options{})
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, ErrReplay) {
			t.Errorf("store failure reported as a bad recording: %v", err)
		}
	})
}
