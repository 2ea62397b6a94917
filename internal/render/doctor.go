package render

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// Capabilities describes the FFmpeg install the agent found.
type Capabilities struct {
	FFmpegPath     string    `json:"ffmpeg_path,omitempty"`
	FFmpegVersion  string    `json:"ffmpeg_version,omitempty"`
	FFprobePath    string    `json:"ffprobe_path,omitempty"`
	FFprobeVersion string    `json:"ffprobe_version,omitempty"`
	CanRender      bool      `json:"can_render"`
	ProbedAt       time.Time `json:"probed_at"`
}

// Doctor probes for a usable FFmpeg install and caches the result with a
// TTL, so status endpoints don't fork a subprocess per request.
type Doctor struct {
	ffmpegPath  string
	ffprobePath string
	ttl         time.Duration
	logger      *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewDoctor creates a doctor using the configured binary paths; empty
// paths fall back to PATH lookup.
func NewDoctor(ffmpegPath, ffprobePath string, logger *slog.Logger) *Doctor {
	return &Doctor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		ttl:         defaultCacheTTL,
		logger:      logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *Doctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{ProbedAt: time.Now()}
	caps.FFmpegPath, caps.FFmpegVersion = probeBinary(ctx, d.ffmpegPath, "ffmpeg")
	caps.FFprobePath, caps.FFprobeVersion = probeBinary(ctx, d.ffprobePath, "ffprobe")
	caps.CanRender = caps.FFmpegPath != "" && caps.FFprobePath != ""

	d.logger.Info("ffmpeg probe complete",
		"can_render", caps.CanRender,
		"ffmpeg_version", caps.FFmpegVersion,
	)
	d.cached = caps
	return caps
}

// Invalidate clears the cached capabilities.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func probeBinary(ctx context.Context, preferred, name string) (path, version string) {
	path, err := resolveBinary(preferred, name)
	if err != nil {
		return "", ""
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return path, ""
	}
	return path, parseVersionLine(string(out))
}

// parseVersionLine extracts the version token from the first line of
// `<tool> -version` output, e.g. "ffmpeg version 6.1.1 Copyright ...".
// Only the banner shape "<ff-tool> version <token>" is accepted; any other
// first line means the binary is not what we expect and reports no version.
func parseVersionLine(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	if len(fields) >= 3 && strings.HasPrefix(fields[0], "ff") && fields[1] == "version" {
		return fields[2]
	}
	return ""
}
