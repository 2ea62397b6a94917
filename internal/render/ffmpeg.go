package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/assets"
	"github.com/clipsmith/clipsmith-agent/internal/audioplan"
	"github.com/clipsmith/clipsmith-agent/internal/renderplan"
	"github.com/clipsmith/clipsmith-agent/internal/timecode"
)

const maxStderrBytes = 8 * 1024 // tail kept for diagnostics

// Config holds the FFmpeg backend's configuration.
type Config struct {
	FFmpegPath   string // path to ffmpeg binary; empty = PATH lookup
	FFprobePath  string // path to ffprobe binary; empty = PATH lookup
	WorkDir      string // scratch dir for pre-converted audio
	ProbeTimeout time.Duration
	Encode       EncodeOptions
	Logger       *slog.Logger
}

func DefaultConfig(dataDir string, logger *slog.Logger) Config {
	return Config{
		WorkDir:      filepath.Join(dataDir, "render"),
		ProbeTimeout: 30 * time.Second,
		Encode:       DefaultEncodeOptions(),
		Logger:       logger,
	}
}

// FFmpegBackend is the production Backend, executing ffmpeg and ffprobe as
// subprocesses.
type FFmpegBackend struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
}

func NewFFmpegBackend(cfg Config) (*FFmpegBackend, error) {
	ffmpeg, err := resolveBinary(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveBinary(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create render work dir: %w", err)
	}

	cfg.Logger.Info("render backend initialised", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &FFmpegBackend{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

func (b *FFmpegBackend) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", filepath.Base(path), err)
	}
	return parseProbeOutput(out)
}

type probeJSON struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var p probeJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	res := &ProbeResult{}
	if secs, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil {
		res.Duration = timecode.Timecode(secs * 1000)
	}
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			res.Codec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			res.FrameRate = parseFrameRate(s.AvgFrameRate)
		case "audio":
			res.AudioCodec = s.CodecName
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				res.AudioSample = sr
			}
		}
	}
	if res.Duration <= 0 {
		return nil, fmt.Errorf("probe reported no duration")
	}
	return res, nil
}

func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func (b *FFmpegBackend) Render(ctx context.Context, plan *renderplan.Plan, outputPath string, progress func(int)) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	sources, cleanup, err := b.prepareAudioSources(ctx, plan)
	if err != nil {
		return err
	}
	defer cleanup()

	args, err := BuildArgs(plan, outputPath, sources, b.cfg.Encode)
	if err != nil {
		return err
	}
	args = append([]string{"-progress", "pipe:1"}, args...)

	start := time.Now()
	cmd := exec.CommandContext(ctx, b.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cannot attach to ffmpeg: %w", err)
	}

	b.cfg.Logger.Info("render started",
		"source", filepath.Base(plan.SourcePath),
		"output", filepath.Base(outputPath),
		"final_duration", plan.FinalDuration.String(),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cannot start ffmpeg: %w", err)
	}
	trackProgress(stdout, plan.FinalDuration, progress)

	err = cmd.Wait()
	elapsed := time.Since(start)
	if err != nil {
		b.cfg.Logger.Warn("render failed",
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return fmt.Errorf("ffmpeg exited: %w: %s", err, truncate(stderrBuf.String(), 512))
	}

	b.cfg.Logger.Info("render complete",
		"output", filepath.Base(outputPath),
		"duration_ms", elapsed.Milliseconds(),
	)
	if progress != nil {
		progress(100)
	}
	return nil
}

// trackProgress parses ffmpeg's key=value progress stream and reports
// percentages against the plan's final duration.
func trackProgress(r io.Reader, final timecode.Timecode, progress func(int)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "out_time_us" || progress == nil || final <= 0 {
			continue
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		pct := int(us / 1000 * 100 / int64(final))
		if pct > 100 {
			pct = 100
		}
		progress(pct)
	}
}

// prepareAudioSources resolves every audio source the plan references
// (external track sources and audio cue payloads) to a file ffmpeg mixes
// cleanly. Compressed sources are decoded to WAV first; trimming inside
// amix on some MP3 files drifts otherwise.
func (b *FFmpegBackend) prepareAudioSources(ctx context.Context, plan *renderplan.Plan) (map[string]string, func(), error) {
	var refs []string
	for _, tr := range plan.Audio.Tracks {
		if tr.Kind == audioplan.TrackExternal {
			refs = append(refs, tr.Source)
		}
	}
	for _, pa := range plan.Assets {
		if pa.Anchor.Kind == assets.KindAudioCue {
			refs = append(refs, pa.Anchor.Payload)
		}
	}

	sources := make(map[string]string)
	var temps []string
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}

	for _, ref := range refs {
		if sources[ref] != "" {
			continue
		}
		if strings.EqualFold(filepath.Ext(ref), ".wav") {
			sources[ref] = ref
			continue
		}
		wav := filepath.Join(b.cfg.WorkDir, fmt.Sprintf("audio-%d.wav", len(temps)))
		cmd := exec.CommandContext(ctx, b.ffmpeg,
			"-hide_banner", "-nostdin", "-y",
			"-i", ref,
			"-acodec", "pcm_s16le", "-ar", "44100",
			wav,
		)
		var stderrBuf bytes.Buffer
		cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
		if err := cmd.Run(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("cannot decode audio source %s: %w: %s",
				filepath.Base(ref), err, truncate(stderrBuf.String(), 256))
		}
		temps = append(temps, wav)
		sources[ref] = wav
	}
	return sources, cleanup, nil
}

func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("no %s binary found on PATH", name)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last `limit` bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
