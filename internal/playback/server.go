// Package playback serves session source media over HTTP with byte-range
// support, so a browser video element can scrub the original clip while
// edits are staged.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxOpenChunk caps open-ended range requests. Scrub seeks issue
// "bytes=N-" and abort as soon as the player moves on; capping keeps each
// aborted request cheap.
const maxOpenChunk int64 = 8 << 20

type PlaybackService interface {
	ServeMedia(w http.ResponseWriter, r *http.Request, mediaPath string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeMedia streams a local media file, honoring single byte-range
// requests. Non-media files are refused: the endpoint exists for session
// sources, not arbitrary disk reads.
func (s *Server) ServeMedia(w http.ResponseWriter, r *http.Request, mediaPath string) error {
	contentType := mime.TypeByExtension(filepath.Ext(mediaPath))
	if !isMediaType(contentType) {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return nil
	}

	file, err := os.Open(mediaPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "media not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}

	size := stat.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rangeHeader := r.Header.Get("Range")
	parsedRange, err := ParseRange(rangeHeader, size)

	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if err != nil && err != ErrInvalidRange {
		return err
	}

	if parsedRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	// Open-ended seeks get a bounded chunk; the player re-requests as it
	// consumes.
	if openEnded(rangeHeader) && parsedRange.ContentLength() > maxOpenChunk {
		parsedRange.End = parsedRange.Start + maxOpenChunk - 1
	}

	s.logger.Debug("serving media range",
		"path", mediaPath,
		"start", parsedRange.Start,
		"end", parsedRange.End,
		"size", size,
	)

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	io.CopyN(w, file, parsedRange.ContentLength())
	return nil
}

func isMediaType(contentType string) bool {
	return strings.HasPrefix(contentType, "video/") ||
		strings.HasPrefix(contentType, "audio/")
}

func openEnded(header string) bool {
	return strings.HasSuffix(strings.TrimSpace(header), "-")
}
