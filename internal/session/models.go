// Package session holds the durable state of an edit session: the source
// video, the accumulated edit operations and assets, and the chosen audio
// options. Sessions are explicit, passed-around structures so the pure
// engine stages stay testable in isolation.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

// Session is one edit session over a single source video.
type Session struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	VideoPath string            `json:"video_path"`
	Duration  timecode.Timecode `json:"duration"`
	Audio     audioplan.Options `json:"audio"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StoredOperation is an edit operation persisted against a session.
type StoredOperation struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Op        edl.Operation `json:"op"`
	CreatedAt time.Time     `json:"created_at"`
}

// StoredAsset is an asset anchor persisted against a session.
type StoredAsset struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Anchor    assets.Anchor `json:"anchor"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// RenderJob tracks one hand-off of a resolved plan to the rendering
// backend.
type RenderJob struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Status     string    `json:"status"`
	OutputPath string    `json:"output_path"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
