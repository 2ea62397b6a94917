package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/render"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

type fakeBackend struct {
	renderCalled atomic.Int32
	renderFn     func(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error
}

func (f *fakeBackend) Probe(ctx context.Context, path string) (*render.ProbeResult, error) {
	return &render.ProbeResult{Duration: 60 * timecode.Second}, nil
}

func (f *fakeBackend) Render(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error {
	f.renderCalled.Add(1)
	if f.renderFn != nil {
		return f.renderFn(ctx, plan, outputPath, progress)
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

func setupRunnerTest(t *testing.T, backend render.Backend) (*Runner, *Service, Repository) {
	t.Helper()
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil)
	runner := NewRunner(svc, repo, backend, nil, nil)
	return runner, svc, repo
}

func queueJob(t *testing.T, svc *Service, withOps bool) *RenderJob {
	t.Helper()
	ctx := context.Background()
	sess := newTestSession(t, svc, sec(60))
	if withOps {
		if _, err := svc.AddOperation(ctx, sess.ID, edl.ActionRemove, sec(10), sec(20)); err != nil {
			t.Fatal(err)
		}
	}
	job, err := svc.QueueRender(ctx, sess.ID, "/out/final.mp4")
	if err != nil {
		t.Fatalf("QueueRender() error = %v", err)
	}
	return job
}

func TestRunner_ProcessesJob(t *testing.T) {
	backend := &fakeBackend{}
	runner, svc, repo := setupRunnerTest(t, backend)
	ctx := context.Background()

	job := queueJob(t, svc, true)

	runner.processNextJob(ctx)

	if got := backend.renderCalled.Load(); got != 1 {
		t.Fatalf("render called %d times, want 1", got)
	}
	updated, err := repo.GetRenderJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetRenderJob() error = %v", err)
	}
	if updated.Status != JobStatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if updated.Progress != 100 {
		t.Errorf("progress = %d, want 100", updated.Progress)
	}
}

func TestRunner_RenderUsesFreshPlan(t *testing.T) {
	var rendered atomic.Pointer[renderplan.Plan]
	backend := &fakeBackend{
		renderFn: func(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error {
			rendered.Store(plan)
			return nil
		},
	}
	runner, svc, _ := setupRunnerTest(t, backend)
	ctx := context.Background()

	job := queueJob(t, svc, false)

	// edit landed after the job was queued; the render must include it
	if _, err := svc.AddOperation(ctx, job.SessionID, edl.ActionRemove, sec(0), sec(30)); err != nil {
		t.Fatal(err)
	}

	runner.processNextJob(ctx)

	plan := rendered.Load()
	if plan == nil {
		t.Fatal("render was not called")
	}
	if plan.FinalDuration != sec(30) {
		t.Errorf("rendered FinalDuration = %s, want 30s", plan.FinalDuration)
	}
}

func TestRunner_MarksFailedJob(t *testing.T) {
	backend := &fakeBackend{
		renderFn: func(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error {
			return fmt.Errorf("encoder exploded")
		},
	}
	runner, svc, repo := setupRunnerTest(t, backend)
	ctx := context.Background()

	job := queueJob(t, svc, true)
	runner.processNextJob(ctx)

	updated, _ := repo.GetRenderJob(ctx, job.ID)
	if updated.Status != JobStatusFailed {
		t.Errorf("status = %s, want failed", updated.Status)
	}
	if updated.Error != "encoder exploded" {
		t.Errorf("error = %q, want encoder exploded", updated.Error)
	}
}

func TestRunner_PauseSkipsProcessing(t *testing.T) {
	backend := &fakeBackend{}
	runner, svc, _ := setupRunnerTest(t, backend)

	queueJob(t, svc, true)

	runner.Pause()
	if !runner.IsPaused() {
		t.Fatal("runner should report paused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := backend.renderCalled.Load(); got != 0 {
		t.Errorf("render called %d times while paused, want 0", got)
	}
}

func TestRunner_StartIsIdempotent(t *testing.T) {
	runner, _, _ := setupRunnerTest(t, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runner.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	if !runner.IsRunning() {
		t.Fatal("runner should report running")
	}

	// second Start returns immediately instead of double-polling
	started := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(started)
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second Start() did not return")
	}
}
