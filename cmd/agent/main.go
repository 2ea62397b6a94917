package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/clipsmith/clipsmith-agent/internal/api"
	"github.com/clipsmith/clipsmith-agent/internal/config"
	"github.com/clipsmith/clipsmith-agent/internal/db"
	"github.com/clipsmith/clipsmith-agent/internal/logging"
	"github.com/clipsmith/clipsmith-agent/internal/playback"
	"github.com/clipsmith/clipsmith-agent/internal/render"
	"github.com/clipsmith/clipsmith-agent/internal/session"
	"github.com/clipsmith/clipsmith-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipsmith agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 CLIPSMITH AGENT v%-7s                  ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	sessions := session.NewService(repo, logger)
	playbackSvc := playback.NewServer(logger)

	doctor := render.NewDoctor(cfg.FFmpegPath(), cfg.FFprobePath(), logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout())
	caps := doctor.Refresh(initCtx)
	initCancel()
	if caps.CanRender {
		logger.Info("render capabilities detected",
			"ffmpeg", caps.FFmpegVersion,
			"ffprobe", caps.FFprobeVersion,
		)
	} else {
		logger.Warn("ffmpeg not available, rendering disabled")
	}

	renderCfg := render.DefaultConfig(cfg.DataDir(), logger)
	renderCfg.FFmpegPath = cfg.FFmpegPath()
	renderCfg.FFprobePath = cfg.FFprobePath()
	renderCfg.ProbeTimeout = cfg.ProbeTimeout()
	renderCfg.Encode.HWAccel = cfg.HWAccel()

	var backend render.Backend
	if ffmpeg, err := render.NewFFmpegBackend(renderCfg); err != nil {
		logger.Warn("ffmpeg backend unavailable, using stub", "error", err)
		backend = render.NewStubBackend(logger)
	} else {
		backend = ffmpeg
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := session.NewRunner(sessions, repo, backend, doctor, logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		OutputDir:      cfg.OutputDir(),
		Sessions:       sessions,
		Repository:     repo,
		Runner:         runner,
		Backend:        backend,
		Doctor:         doctor,
		PlaybackServer: playbackSvc,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Sessions: sessions,
			Runner:   runner,
			Logger:   logger,
			OnOpenOutput: func() error {
				return openFolder(cfg.OutputDir())
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func openFolder(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

func ensureDeviceID(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
