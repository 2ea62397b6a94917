package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/render"
)

// Runner drains pending render jobs one at a time, resolving the session's
// plan at execution time so a render always reflects the latest edits.
type Runner struct {
	service      *Service
	repo         Repository
	backend      render.Backend
	doctor       *render.Doctor
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(service *Service, repo Repository, backend render.Backend, doctor *render.Doctor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		service:      service,
		repo:         repo,
		backend:      backend,
		doctor:       doctor,
		logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("render runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("render runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("render runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("render runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingRenderJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending render jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing render job", "job_id", job.ID, "session_id", job.SessionID)

	if r.backend == nil {
		r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusFailed, "render backend not configured")
		return
	}
	if r.doctor != nil {
		if caps := r.doctor.Get(ctx); caps != nil && !caps.CanRender {
			r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusFailed, "no usable ffmpeg install")
			return
		}
	}

	result, err := r.service.Resolve(ctx, job.SessionID)
	if err != nil {
		r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("plan resolution failed: %v", err))
		return
	}

	r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusRunning, "")

	progress := func(pct int) {
		r.repo.UpdateRenderJobProgress(ctx, job.ID, pct)
	}
	if err := r.backend.Render(ctx, result.Plan, job.OutputPath, progress); err != nil {
		r.logger.Error("render failed", "job_id", job.ID, "error", err)
		r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}

	r.repo.UpdateRenderJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("render job completed", "job_id", job.ID, "output", job.OutputPath)
}

func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListRenderJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
