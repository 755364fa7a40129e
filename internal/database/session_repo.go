package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kdimtricp/elbowtrack/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, state, last_angle, last_message, frames_processed,
	frames_skipped, created_at, updated_at, ended_at`

func (r *SessionRepository) Insert(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.conn.ExecContext(ctx, query, sessionArgs(s)...)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Save writes the session, inserting it when it does not exist yet.
func (r *SessionRepository) Save(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			state = EXCLUDED.state,
			last_angle = EXCLUDED.last_angle,
			last_message = EXCLUDED.last_message,
			frames_processed = EXCLUDED.frames_processed,
			frames_skipped = EXCLUDED.frames_skipped,
			updated_at = EXCLUDED.updated_at,
			ended_at = EXCLUDED.ended_at`

	_, err := r.db.conn.ExecContext(ctx, query, sessionArgs(s)...)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns the most recently created sessions first.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func sessionArgs(s *models.Session) []any {
	var angle sql.NullInt64
	if s.LastAngle != nil {
		angle = sql.NullInt64{Int64: int64(*s.LastAngle), Valid: true}
	}
	var ended sql.NullTime
	if s.EndedAt != nil {
		ended = sql.NullTime{Time: *s.EndedAt, Valid: true}
	}
	return []any{
		s.ID,
		s.State,
		angle,
		s.LastMessage,
		s.FramesProcessed,
		s.FramesSkipped,
		s.CreatedAt,
		s.UpdatedAt,
		ended,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s     models.Session
		angle sql.NullInt64
		ended sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.State,
		&angle,
		&s.LastMessage,
		&s.FramesProcessed,
		&s.FramesSkipped,
		&s.CreatedAt,
		&s.UpdatedAt,
		&ended,
	)
	if err != nil {
		return nil, err
	}
	if angle.Valid {
		a := int(angle.Int64)
		s.LastAngle = &a
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return &s, nil
}
