package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the persisted record of a tracking session. LastAngle and
// LastMessage keep the final reading observed while the session was live.
type Session struct {
	ID              string     `json:"id"`
	State           string     `json:"state"`
	LastAngle       *int       `json:"last_angle"`
	LastMessage     string     `json:"last_message"`
	FramesProcessed int64      `json:"frames_processed"`
	FramesSkipped   int64      `json:"frames_skipped"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		State:     "inactive",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
