package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/auraclip/auraclip-agent/internal/library"
)

type Tray struct {
	librarySvc library.LibraryService
	runner     *library.Runner
	logger     *slog.Logger

	statusItem  *systray.MenuItem
	libraryItem *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	LibraryService library.LibraryService
	Runner         *library.Runner
	Logger         *slog.Logger
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		librarySvc: cfg.LibraryService,
		runner:     cfg.Runner,
		logger:     cfg.Logger,
		onQuit:     cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Aura Clip")
	systray.SetTooltip("Aura Clip Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.libraryItem = systray.AddMenuItem("Library: 0 videos", "Imported videos")
	t.libraryItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause background jobs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Aura Clip Agent")

	t.refresh()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
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

// refresh repolls the library and job queue so the menu tracks work
// started through the API or watched folders.
func (t *Tray) refresh() {
	if t.librarySvc == nil {
		return
	}
	ctx := context.Background()

	videos, err := t.librarySvc.GetVideos(ctx)
	if err != nil {
		t.logger.Warn("failed to load library for tray", "error", err)
		return
	}
	var total int64
	for _, v := range videos {
		total += v.Size
	}
	t.UpdateLibrary(len(videos), total)

	status := "Idle"
	jobs, err := t.librarySvc.GetJobs(ctx, 10)
	if err != nil {
		t.logger.Warn("failed to load jobs for tray", "error", err)
		return
	}
	for _, j := range jobs {
		if j.Status == library.JobStatusRunning {
			status = statusLabel(j.Type)
			break
		}
	}
	t.UpdateStatus(status)
}

func statusLabel(jobType string) string {
	switch jobType {
	case library.JobTypeScan:
		return "Scanning folder"
	case library.JobTypeDetect, library.JobTypeThumbnails:
		return "Detecting scenes"
	case library.JobTypeExport:
		return "Exporting clips"
	case library.JobTypePublish:
		return "Publishing clip"
	default:
		return "Working"
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

// UpdateLibrary refreshes the library line with the current video
// count and total media size.
func (t *Tray) UpdateLibrary(count int, totalBytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.libraryItem == nil {
		return
	}

	label := fmt.Sprintf("Library: %d videos", count)
	if count == 1 {
		label = "Library: 1 video"
	}
	if totalBytes > 0 {
		label += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(totalBytes)))
	}
	t.libraryItem.SetTitle(label)
}

func (t *Tray) Quit() {
	systray.Quit()
}
