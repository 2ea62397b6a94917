package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/config"
	"github.com/clipsmith/clipsmith-agent/internal/edl"
	"github.com/clipsmith/clipsmith-agent/internal/session"
	"github.com/clipsmith/clipsmith-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/sessions", listSessionsHandler(cfg))
		r.Post("/sessions", createSessionHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Delete("/sessions/{id}", deleteSessionHandler(cfg))

		r.Get("/sessions/{id}/operations", listOperationsHandler(cfg))
		r.Post("/sessions/{id}/operations", addOperationHandler(cfg))
		r.Delete("/operations/{id}", deleteOperationHandler(cfg))
		r.Post("/sessions/{id}/edl", importEDLHandler(cfg))
		r.Post("/sessions/{id}/export", exportEDLHandler(cfg))

		r.Get("/sessions/{id}/assets", listAssetsHandler(cfg))
		r.Post("/sessions/{id}/assets", addAssetHandler(cfg))
		r.Delete("/assets/{id}", deleteAssetHandler(cfg))

		r.Put("/sessions/{id}/audio", setAudioHandler(cfg))
		r.Post("/sessions/{id}/plan", planHandler(cfg))
		r.Post("/sessions/{id}/render", queueRenderHandler(cfg))

		r.Get("/render/jobs", listRenderJobsHandler(cfg))
		r.Get("/render/jobs/{id}", getRenderJobHandler(cfg))

		r.Get("/playback/source", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessions, _ := cfg.Sessions.List(ctx)
		jobs, _ := cfg.Repository.ListRenderJobs(ctx, 10)

		state := "idle"
		var activeJob *RenderJobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == session.JobStatusRunning {
				state = "rendering"
				resp := RenderJobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == session.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:         state,
			LastError:     lastError,
			SessionsCount: len(sessions),
			JobsRunning:   jobsRunning,
			ActiveJob:     activeJob,
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Get(ctx); caps != nil {
				resp.Renderer = &RendererResponse{
					CanRender:      caps.CanRender,
					FFmpegVersion:  caps.FFmpegVersion,
					FFprobeVersion: caps.FFprobeVersion,
					LastProbeAt:    caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.Sessions.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoPath == "" {
			WriteError(w, http.StatusBadRequest, "video_path is required", "BAD_REQUEST")
			return
		}

		duration, err := parseTimecode(req.Duration)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if duration == 0 {
			if cfg.Backend == nil {
				WriteError(w, http.StatusBadRequest, "duration is required", "BAD_REQUEST")
				return
			}
			probe, err := cfg.Backend.Probe(r.Context(), req.VideoPath)
			if err != nil {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "PROBE_FAILED")
				return
			}
			duration = probe.Duration
		}

		sess, err := cfg.Sessions.Create(r.Context(), req.Name, req.VideoPath, duration)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, SessionToResponse(sess))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listOperationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops, err := cfg.Sessions.Operations(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}

		resp := OperationsResponse{Operations: make([]OperationResponse, len(ops))}
		for i, op := range ops {
			resp.Operations[i] = OperationToResponse(op)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addOperationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddOperationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		start, err := parseTimecode(req.Start)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid start: "+err.Error(), "BAD_REQUEST")
			return
		}
		end, err := parseTimecode(req.End)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid end: "+err.Error(), "BAD_REQUEST")
			return
		}

		op, err := cfg.Sessions.AddOperation(r.Context(), chi.URLParam(r, "id"), edl.Action(req.Action), start, end)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, OperationToResponse(op))
	}
}

func deleteOperationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.RemoveOperation(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// importEDLHandler consumes a CSV EDL in the request body. Rejected rows
// come back in the response; they never fail the import wholesale.
func importEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := cfg.Sessions.ImportEDL(r.Context(), chi.URLParam(r, "id"), r.Body)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		resp := ImportEDLResponse{Imported: result.Imported}
		for _, re := range result.Errors {
			resp.Errors = append(resp.Errors, RowErrorToDetail(re))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Sessions.Assets(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}

		resp := AssetsResponse{Assets: make([]AssetResponse, len(list))}
		for i, a := range list {
			resp.Assets[i] = AssetResponse{ID: a.ID, Anchor: a.Anchor}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		start, err := parseTimecode(req.Start)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid start: "+err.Error(), "BAD_REQUEST")
			return
		}
		end, err := parseTimecode(req.End)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid end: "+err.Error(), "BAD_REQUEST")
			return
		}

		anchor := assets.Anchor{
			Kind:     assets.Kind(req.Kind),
			Payload:  req.Payload,
			Overlay:  req.Overlay,
			Caption:  req.Caption,
			AudioCue: req.AudioCue,
		}
		anchor.Range.Start = start
		anchor.Range.End = end

		stored, err := cfg.Sessions.AddAsset(r.Context(), chi.URLParam(r, "id"), anchor)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, AssetResponse{ID: stored.ID, Anchor: stored.Anchor})
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.RemoveAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sourceDuration, err := parseTimecode(req.SourceDuration)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid source_duration: "+err.Error(), "BAD_REQUEST")
			return
		}
		fadeIn, err := parseTimecode(req.FadeIn)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid fade_in: "+err.Error(), "BAD_REQUEST")
			return
		}
		fadeOut, err := parseTimecode(req.FadeOut)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid fade_out: "+err.Error(), "BAD_REQUEST")
			return
		}

		opts := audioplan.Options{
			Mode:           audioplan.Mode(req.Mode),
			Source:         req.Source,
			SourceDuration: sourceDuration,
			Loop:           req.Loop,
			Volume:         req.Volume,
			FadeIn:         fadeIn,
			FadeOut:        fadeOut,
		}
		if opts.Source != "" && opts.SourceDuration == 0 && cfg.Backend != nil {
			probe, err := cfg.Backend.Probe(r.Context(), opts.Source)
			if err != nil {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "PROBE_FAILED")
				return
			}
			opts.SourceDuration = probe.Duration
		}

		if err := cfg.Sessions.SetAudio(r.Context(), chi.URLParam(r, "id"), opts); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func planHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := cfg.Sessions.Resolve(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PlanResponse{Plan: result.Plan, Report: result.Dropped})
	}
}

func queueRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueueRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		outputPath := req.OutputPath
		if outputPath == "" {
			outputPath = filepath.Join(cfg.OutputDir, id+".mp4")
		}

		job, err := cfg.Sessions.QueueRender(r.Context(), id, outputPath)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, RenderJobToResponse(job))
	}
}

func listRenderJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListRenderJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list render jobs", "INTERNAL_ERROR")
			return
		}

		resp := RenderJobsResponse{Jobs: make([]RenderJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = RenderJobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRenderJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Repository.GetRenderJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "render job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, RenderJobToResponse(job))
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			WriteError(w, http.StatusBadRequest, "session_id is required", "BAD_REQUEST")
			return
		}

		sess, err := cfg.Sessions.Get(r.Context(), sessionID)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		if err := cfg.PlaybackServer.ServeMedia(w, r, sess.VideoPath); err != nil {
			cfg.Logger.Error("playback error", "error", err, "session_id", sessionID)
		}
	}
}

// writeSessionError maps service errors to HTTP statuses: unknown sessions
// are 404, unresolvable timelines 422, everything else bad input.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
	case errors.Is(err, timeline.ErrEmptyTimeline):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_TIMELINE")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}
