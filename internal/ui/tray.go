package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/clipsmith/clipsmith-agent/internal/session"
)

// refreshInterval paces the menu updates; tray text does not need to move
// faster than the render runner's own poll.
const refreshInterval = 5 * time.Second

type Tray struct {
	sessions *session.Service
	runner   *session.Runner
	logger   *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onOpenOutput func() error
	onQuit       func()
}

type TrayConfig struct {
	Sessions     *session.Service
	Runner       *session.Runner
	Logger       *slog.Logger
	OnOpenOutput func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		sessions:     cfg.Sessions,
		runner:       cfg.Runner,
		logger:       cfg.Logger,
		onOpenOutput: cfg.OnOpenOutput,
		onQuit:       cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Clipsmith")
	systray.SetTooltip("Clipsmith Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Edit sessions")
	t.sessionsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause rendering")

	openOutputItem := systray.AddMenuItem("Open Output Folder...", "Open the rendered output folder")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Clipsmith Agent")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		t.refresh()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openOutputItem.ClickedCh:
				t.handleOpenOutput()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpenOutput() {
	if t.onOpenOutput != nil {
		if err := t.onOpenOutput(); err != nil {
			t.logger.Error("failed to open output folder", "error", err)
		}
	}
}

// refresh re-derives the status and session-count menu text from the
// service and runner.
func (t *Tray) refresh() {
	count, status := t.snapshot(context.Background())
	if count >= 0 {
		t.UpdateSessionCount(count)
	}
	if status != "" {
		t.UpdateStatus(status)
	}
}

// snapshot reads the current session count and runner status. A count of
// -1 or an empty status means that source is unavailable.
func (t *Tray) snapshot(ctx context.Context) (int, string) {
	count := -1
	if t.sessions != nil {
		if list, err := t.sessions.List(ctx); err == nil {
			count = len(list)
		}
	}
	status := ""
	if t.runner != nil {
		status = statusText(t.runner.ActiveJobCount(ctx))
	}
	return count, status
}

func statusText(activeJobs int) string {
	if activeJobs > 0 {
		return "Rendering"
	}
	return "Idle"
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateSessionCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
