package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/db"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/interval"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return database, repo
}

func newTestSession(t *testing.T, svc *Service, duration timecode.Timecode) *Session {
	t.Helper()
	sess, err := svc.Create(context.Background(), "test", "/media/in.mp4", duration)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sess
}

func sec(n int64) timecode.Timecode {
	return timecode.Timecode(n) * timecode.Second
}

func TestService_Create(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	sess := newTestSession(t, svc, sec(120))

	if sess.ID == "" {
		t.Error("session.ID is empty")
	}
	if sess.Audio.Mode != audioplan.ModeKeep {
		t.Errorf("default audio mode = %s, want keep", sess.Audio.Mode)
	}

	got, err := svc.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.VideoPath != "/media/in.mp4" {
		t.Errorf("VideoPath = %s, want /media/in.mp4", got.VideoPath)
	}
	if got.Duration != sec(120) {
		t.Errorf("Duration = %s, want %s", got.Duration, sec(120))
	}
}

func TestService_Create_Invalid(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	if _, err := svc.Create(context.Background(), "x", "", sec(10)); err == nil {
		t.Error("Create() should reject empty video path")
	}
	if _, err := svc.Create(context.Background(), "x", "/a.mp4", 0); err == nil {
		t.Error("Create() should reject zero duration")
	}
}

func TestService_Get_NotFound(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)

	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestService_AddOperation(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))

	op, err := svc.AddOperation(context.Background(), sess.ID, edl.ActionRemove, sec(10), sec(20))
	if err != nil {
		t.Fatalf("AddOperation() error = %v", err)
	}
	if op.Op.Origin != edl.OriginInteractive {
		t.Errorf("origin = %s, want interactive", op.Op.Origin)
	}

	ops, err := svc.Operations(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("len(ops) = %d, want 1", len(ops))
	}
	if ops[0].Op.Range.Start != sec(10) || ops[0].Op.Range.End != sec(20) {
		t.Errorf("stored range = %s, want [10s, 20s)", ops[0].Op.Range)
	}
}

func TestService_AddOperation_Invalid(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))
	ctx := context.Background()

	if _, err := svc.AddOperation(ctx, sess.ID, edl.Action("insert"), sec(1), sec(2)); !errors.Is(err, edl.ErrUnsupportedAction) {
		t.Errorf("unsupported action error = %v", err)
	}
	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, sec(5), sec(5)); !errors.Is(err, interval.ErrZeroLength) {
		t.Errorf("zero-length error = %v", err)
	}
	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, sec(50), sec(70)); !errors.Is(err, interval.ErrInvalidRange) {
		t.Errorf("past-duration error = %v", err)
	}
}

func TestService_ImportEDL_PartialSuccess(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))

	csv := strings.Join([]string{
		"action,record_in,record_out",
		"remove,0:10,0:20",
		"insert,0:25,0:30",
		"mute_audio,0:40,end",
	}, "\n")

	result, err := svc.ImportEDL(context.Background(), sess.ID, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportEDL() error = %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if !errors.Is(result.Errors[0], edl.ErrUnsupportedAction) {
		t.Errorf("row error = %v, want ErrUnsupportedAction", result.Errors[0])
	}

	ops, _ := svc.Operations(context.Background(), sess.ID)
	if len(ops) != 2 {
		t.Errorf("stored ops = %d, want 2", len(ops))
	}
	for _, op := range ops {
		if op.Op.Origin != edl.OriginEDL {
			t.Errorf("imported op origin = %s, want edl", op.Op.Origin)
		}
	}
}

func TestService_AddAsset_RoundTrip(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))

	anchor := assets.Anchor{
		Kind:    assets.KindCaption,
		Range:   interval.Interval{Start: sec(5), End: sec(10)},
		Payload: "hello",
		Caption: &assets.CaptionParams{PosX: 0.5, PosY: 0.9, FontSize: 36},
	}
	stored, err := svc.AddAsset(context.Background(), sess.ID, anchor)
	if err != nil {
		t.Fatalf("AddAsset() error = %v", err)
	}
	if stored.ID == "" {
		t.Error("asset ID not assigned")
	}

	list, err := svc.Assets(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Assets() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(assets) = %d, want 1", len(list))
	}
	got := list[0].Anchor
	if got.Payload != "hello" || got.Caption == nil || got.Caption.FontSize != 36 {
		t.Errorf("anchor did not round-trip: %+v", got)
	}
}

func TestService_AddAsset_Invalid(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))
	ctx := context.Background()

	bad := assets.Anchor{Kind: assets.Kind("sticker"), Range: interval.Interval{Start: sec(1), End: sec(2)}}
	if _, err := svc.AddAsset(ctx, sess.ID, bad); err == nil {
		t.Error("AddAsset() should reject unknown kind")
	}

	past := assets.Anchor{Kind: assets.KindOverlay, Range: interval.Interval{Start: sec(50), End: sec(70)}}
	if _, err := svc.AddAsset(ctx, sess.ID, past); !errors.Is(err, interval.ErrInvalidRange) {
		t.Errorf("past-duration error = %v", err)
	}
}

func TestService_SetAudio_Validates(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))
	ctx := context.Background()

	err := svc.SetAudio(ctx, sess.ID, audioplan.Options{Mode: audioplan.ModeReplace})
	if !errors.Is(err, audioplan.ErrMissingSource) {
		t.Errorf("SetAudio() error = %v, want ErrMissingSource", err)
	}

	opts := audioplan.Options{
		Mode:           audioplan.ModeReplace,
		Source:         "music.wav",
		SourceDuration: sec(90),
		Volume:         1.0,
	}
	if err := svc.SetAudio(ctx, sess.ID, opts); err != nil {
		t.Fatalf("SetAudio() error = %v", err)
	}

	got, _ := svc.Get(ctx, sess.ID)
	if got.Audio.Mode != audioplan.ModeReplace || got.Audio.Source != "music.wav" {
		t.Errorf("audio options not persisted: %+v", got.Audio)
	}
}

func TestService_Resolve_FullPipeline(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))
	ctx := context.Background()

	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, sec(10), sec(20)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionMuteAudio, sec(25), sec(30)); err != nil {
		t.Fatal(err)
	}
	anchor := assets.Anchor{
		Kind:    assets.KindCaption,
		Range:   interval.Interval{Start: sec(30), End: sec(35)},
		Payload: "chapter two",
	}
	if _, err := svc.AddAsset(ctx, sess.ID, anchor); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Resolve(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	plan := result.Plan
	if plan.FinalDuration != sec(50) {
		t.Errorf("FinalDuration = %s, want 50s", plan.FinalDuration)
	}
	if len(plan.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(plan.Segments))
	}
	if len(plan.Assets) != 1 {
		t.Fatalf("len(Assets) = %d, want 1", len(plan.Assets))
	}
	// caption at source 30s lands at final 20s after the 10s cut
	if plan.Assets[0].FinalRange.Start != sec(20) {
		t.Errorf("asset final start = %s, want 20s", plan.Assets[0].FinalRange.Start)
	}
	if len(plan.Audio.Tracks) != 1 {
		t.Fatalf("len(Audio.Tracks) = %d, want 1", len(plan.Audio.Tracks))
	}
	mw := plan.Audio.Tracks[0].MuteWindows
	if len(mw) != 1 || mw[0].Start != sec(15) || mw[0].End != sec(20) {
		t.Errorf("mute windows = %v, want [[15s, 20s)]", mw)
	}
}

func TestService_Resolve_EmptyTimeline(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(30))
	ctx := context.Background()

	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, 0, sec(30)); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Resolve(ctx, sess.ID)
	if !errors.Is(err, timeline.ErrEmptyTimeline) {
		t.Errorf("Resolve() error = %v, want ErrEmptyTimeline", err)
	}
}

func TestService_QueueRender(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(60))
	ctx := context.Background()

	job, err := svc.QueueRender(ctx, sess.ID, "/out/final.mp4")
	if err != nil {
		t.Fatalf("QueueRender() error = %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}

	pending, err := repo.ListPendingRenderJobs(ctx)
	if err != nil {
		t.Fatalf("ListPendingRenderJobs() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != job.ID {
		t.Errorf("pending jobs = %+v, want the queued job", pending)
	}
}

func TestService_QueueRender_UnresolvableSession(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	sess := newTestSession(t, svc, sec(30))
	ctx := context.Background()

	if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, 0, sec(30)); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.QueueRender(ctx, sess.ID, "/out/final.mp4"); err == nil {
		t.Error("QueueRender() should fail when the session cannot resolve")
	}
}
