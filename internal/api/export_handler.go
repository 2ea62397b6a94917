package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/clipsmith/clipsmith-agent/internal/edl"
)

// exportEDLHandler writes the session's resolved cut list as a CMX 3600 EDL
// for interchange with desktop editors.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportEDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := edl.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		sess, err := cfg.Sessions.Get(r.Context(), id)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		result, err := cfg.Sessions.Resolve(r.Context(), id)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		title := edl.SanitizeName(req.Title, 120)
		if title == "" {
			title = edl.SanitizeName(sess.Name, 120)
		}
		if title == "" {
			title = "clipsmith_export"
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		content := edl.Generate(result.Plan.Segments, title, sess.VideoPath, frameRate)
		outputPath := filepath.Join(req.OutputDir, title+".edl")
		if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExportEDLResponse{
			Status:       "ok",
			OutputPath:   outputPath,
			SegmentCount: len(result.Plan.Segments),
		})
	}
}
