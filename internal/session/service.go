package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

var ErrSessionNotFound = errors.New("session not found")

// ResolveResult bundles a resolved plan with the non-fatal diagnostics the
// presentation layer shows the user.
type ResolveResult struct {
	Plan    *renderplan.Plan `json:"plan"`
	Dropped *assets.Report   `json:"asset_report"`
}

// ImportResult reports an EDL import: what was stored and which rows were
// rejected. Row failures never abort the batch.
type ImportResult struct {
	Imported int             `json:"imported"`
	Errors   []*edl.RowError `json:"errors,omitempty"`
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// Create opens a new edit session over a source video. The duration comes
// from probing the source, done by the caller; the engine only requires it
// to be positive.
func (s *Service) Create(ctx context.Context, name, videoPath string, duration timecode.Timecode) (*Session, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("video path is required")
	}
	if duration <= 0 {
		return nil, fmt.Errorf("media duration must be positive, got %s", duration)
	}

	now := time.Now()
	sess := &Session{
		ID:        NewID(),
		Name:      name,
		VideoPath: videoPath,
		Duration:  duration,
		Audio:     audioplan.Options{Mode: audioplan.ModeKeep},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sess.Name == "" {
		sess.Name = "session " + sess.ID[:8]
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created", "session_id", sess.ID, "video", videoPath, "duration", duration.String())
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.repo.ListSessions(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// AddOperation validates and stores a single interactive edit operation.
func (s *Service) AddOperation(ctx context.Context, sessionID string, action edl.Action, start, end timecode.Timecode) (*StoredOperation, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch action {
	case edl.ActionRemove, edl.ActionMuteAudio:
	default:
		return nil, fmt.Errorf("%w: %q", edl.ErrUnsupportedAction, action)
	}

	rng, err := interval.New(start, end)
	if err != nil {
		return nil, err
	}
	if rng.End > sess.Duration {
		return nil, fmt.Errorf("%w: %s extends past media duration %s", interval.ErrInvalidRange, rng, sess.Duration)
	}

	op := &StoredOperation{
		ID:        NewID(),
		SessionID: sessionID,
		Op:        edl.Operation{Action: action, Range: rng, Origin: edl.OriginInteractive},
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateOperation(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// ImportEDL parses an EDL stream against the session's media duration and
// stores every operation that parsed, returning all row errors alongside.
func (s *Service) ImportEDL(ctx context.Context, sessionID string, r io.Reader) (*ImportResult, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	parsed, err := edl.Parse(r, sess.Duration)
	if err != nil {
		return nil, err
	}

	for _, op := range parsed.Operations {
		stored := &StoredOperation{
			ID:        NewID(),
			SessionID: sessionID,
			Op:        op,
			CreatedAt: time.Now(),
		}
		if err := s.repo.CreateOperation(ctx, stored); err != nil {
			return nil, err
		}
	}

	s.logger.Info("EDL imported",
		"session_id", sessionID,
		"operations", len(parsed.Operations),
		"rejected_rows", len(parsed.Errors),
	)
	return &ImportResult{Imported: len(parsed.Operations), Errors: parsed.Errors}, nil
}

func (s *Service) Operations(ctx context.Context, sessionID string) ([]*StoredOperation, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListOperations(ctx, sessionID)
}

func (s *Service) RemoveOperation(ctx context.Context, id string) error {
	return s.repo.DeleteOperation(ctx, id)
}

// AddAsset validates and stores an asset anchor against a session.
func (s *Service) AddAsset(ctx context.Context, sessionID string, anchor assets.Anchor) (*StoredAsset, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := interval.New(anchor.Range.Start, anchor.Range.End); err != nil {
		return nil, err
	}
	if anchor.Range.End > sess.Duration {
		return nil, fmt.Errorf("%w: %s extends past media duration %s",
			interval.ErrInvalidRange, anchor.Range, sess.Duration)
	}
	switch anchor.Kind {
	case assets.KindOverlay, assets.KindCaption, assets.KindAudioCue:
	default:
		return nil, fmt.Errorf("unknown asset kind %q", anchor.Kind)
	}

	if anchor.ID == "" {
		anchor.ID = NewID()
	}
	stored := &StoredAsset{
		ID:        anchor.ID,
		SessionID: sessionID,
		Anchor:    anchor,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateAsset(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Service) Assets(ctx context.Context, sessionID string) ([]*StoredAsset, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListAssets(ctx, sessionID)
}

func (s *Service) RemoveAsset(ctx context.Context, id string) error {
	return s.repo.DeleteAsset(ctx, id)
}

// SetAudio stores the session's audio options after a dry-run build
// against a nominal duration, so bad options fail at set time rather than
// at resolve time.
func (s *Service) SetAudio(ctx context.Context, sessionID string, opts audioplan.Options) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := audioplan.Build(sess.Duration, nil, opts); err != nil {
		return err
	}
	return s.repo.UpdateSessionAudio(ctx, sessionID, opts)
}

// Resolve runs the full edit decision pipeline for a session: timeline
// resolution, asset placement, audio graph, plan emission. Pure except for
// loading the session state.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*ResolveResult, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListOperations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ops := make([]edl.Operation, len(stored))
	for i, so := range stored {
		ops[i] = so.Op
	}

	res, err := timeline.Resolve(ops, sess.Duration)
	if err != nil {
		return nil, err
	}

	storedAssets, err := s.repo.ListAssets(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	anchors := make([]assets.Anchor, len(storedAssets))
	for i, sa := range storedAssets {
		anchors[i] = sa.Anchor
	}

	placed, report := assets.Place(anchors, res.Map)

	graph, err := audioplan.Build(res.FinalDuration(), res.MutedFinal(), sess.Audio)
	if err != nil {
		return nil, err
	}

	plan, err := renderplan.Emit(res, placed, graph, sess.VideoPath)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session resolved",
		"session_id", sessionID,
		"final_duration", plan.FinalDuration.String(),
		"segments", len(plan.Segments),
		"assets", len(plan.Assets),
		"dropped_assets", len(report.Dropped),
	)
	return &ResolveResult{Plan: plan, Dropped: report}, nil
}

// QueueRender resolves the session to validate it, then enqueues a render
// job for the background runner.
func (s *Service) QueueRender(ctx context.Context, sessionID, outputPath string) (*RenderJob, error) {
	if _, err := s.Resolve(ctx, sessionID); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &RenderJob{
		ID:         NewID(),
		SessionID:  sessionID,
		Status:     JobStatusPending,
		OutputPath: outputPath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateRenderJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("render queued", "job_id", job.ID, "session_id", sessionID, "output", outputPath)
	return job, nil
}
