package api

import (
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/session"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State         string             `json:"state"`
	LastError     string             `json:"last_error,omitempty"`
	SessionsCount int                `json:"sessions_count"`
	JobsRunning   int                `json:"jobs_running"`
	ActiveJob     *RenderJobResponse `json:"active_job,omitempty"`
	Renderer      *RendererResponse  `json:"renderer,omitempty"`
}

type RendererResponse struct {
	CanRender      bool   `json:"can_render"`
	FFmpegVersion  string `json:"ffmpeg_version,omitempty"`
	FFprobeVersion string `json:"ffprobe_version,omitempty"`
	LastProbeAt    string `json:"last_probe_at,omitempty"`
}

type CreateSessionRequest struct {
	Name      string `json:"name,omitempty"`
	VideoPath string `json:"video_path"`
	// Duration is a timestamp string ("1:23:45.500", "12:30", "90.5"); when
	// omitted the agent probes the file.
	Duration string `json:"duration,omitempty"`
}

type SessionResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	VideoPath  string            `json:"video_path"`
	Duration   string            `json:"duration"`
	DurationMs int64             `json:"duration_ms"`
	Audio      audioplan.Options `json:"audio"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type AddOperationRequest struct {
	Action string `json:"action"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type OperationResponse struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Origin  string `json:"origin"`
	Start   string `json:"start"`
	End     string `json:"end"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Row     int    `json:"row,omitempty"`
}

type OperationsResponse struct {
	Operations []OperationResponse `json:"operations"`
}

type ImportEDLResponse struct {
	Imported int              `json:"imported"`
	Errors   []RowErrorDetail `json:"errors,omitempty"`
}

type RowErrorDetail struct {
	Row     int    `json:"row"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

type AddAssetRequest struct {
	Kind    string `json:"kind"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Payload string `json:"payload"`

	Overlay  *assets.OverlayParams  `json:"overlay,omitempty"`
	Caption  *assets.CaptionParams  `json:"caption,omitempty"`
	AudioCue *assets.AudioCueParams `json:"audio_cue,omitempty"`
}

type AssetResponse struct {
	ID     string        `json:"id"`
	Anchor assets.Anchor `json:"anchor"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type SetAudioRequest struct {
	Mode           string  `json:"mode"`
	Source         string  `json:"source,omitempty"`
	SourceDuration string  `json:"source_duration,omitempty"`
	Loop           bool    `json:"loop,omitempty"`
	Volume         float64 `json:"volume,omitempty"`
	FadeIn         string  `json:"fade_in,omitempty"`
	FadeOut        string  `json:"fade_out,omitempty"`
}

type PlanResponse struct {
	Plan   *renderplan.Plan `json:"plan"`
	Report *assets.Report   `json:"asset_report,omitempty"`
}

type QueueRenderRequest struct {
	OutputPath string `json:"output_path,omitempty"`
}

type RenderJobResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type RenderJobsResponse struct {
	Jobs []RenderJobResponse `json:"jobs"`
}

type ExportEDLRequest struct {
	OutputDir string  `json:"output_dir"`
	Title     string  `json:"title,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type ExportEDLResponse struct {
	Status       string `json:"status"`
	OutputPath   string `json:"output_path"`
	SegmentCount int    `json:"segment_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		Name:       s.Name,
		VideoPath:  s.VideoPath,
		Duration:   s.Duration.String(),
		DurationMs: int64(s.Duration),
		Audio:      s.Audio,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
}

func OperationToResponse(op *session.StoredOperation) OperationResponse {
	return OperationResponse{
		ID:      op.ID,
		Action:  string(op.Op.Action),
		Origin:  string(op.Op.Origin),
		Start:   op.Op.Range.Start.String(),
		End:     op.Op.Range.End.String(),
		StartMs: int64(op.Op.Range.Start),
		EndMs:   int64(op.Op.Range.End),
		Row:     op.Op.Row,
	}
}

func RowErrorToDetail(e *edl.RowError) RowErrorDetail {
	return RowErrorDetail{
		Row:     e.Row,
		Action:  e.Action,
		Message: e.Err.Error(),
	}
}

func RenderJobToResponse(j *session.RenderJob) RenderJobResponse {
	return RenderJobResponse{
		ID:         j.ID,
		SessionID:  j.SessionID,
		Status:     j.Status,
		OutputPath: j.OutputPath,
		Progress:   j.Progress,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

// parseTimecode wraps timecode.Parse for request fields that may be empty.
func parseTimecode(s string) (timecode.Timecode, error) {
	if s == "" {
		return 0, nil
	}
	return timecode.Parse(s)
}
