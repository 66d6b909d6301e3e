package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/auraclip/auraclip-agent/internal/api"
	"github.com/auraclip/auraclip-agent/internal/config"
	"github.com/auraclip/auraclip-agent/internal/db"
	"github.com/auraclip/auraclip-agent/internal/library"
	"github.com/auraclip/auraclip-agent/internal/logging"
	"github.com/auraclip/auraclip-agent/internal/media"
	"github.com/auraclip/auraclip-agent/internal/playback"
	"github.com/auraclip/auraclip-agent/internal/publish"
	"github.com/auraclip/auraclip-agent/internal/ui"
	"github.com/auraclip/auraclip-agent/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Aura Clip agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.CacheDir(), cfg.ThumbsDir(), cfg.ExportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting aura clip agent", "version", Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := library.NewRepository(database.Conn())

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
	fmt.Println("║                  AURA CLIP AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-44s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-44s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var prober library.Prober
	var ffmpeg media.FFmpeg
	var doctor *media.CachedDoctor

	mediaLog := logging.WithComponent(logger, "media")
	mediaCfg := media.DefaultConfig(mediaLog)
	mediaCfg.FFmpegPath = cfg.FFmpegPath()
	mediaCfg.FFprobePath = cfg.FFprobePath()
	mediaCfg.ProbeTimeout = cfg.TimeoutProbe()
	mediaCfg.DetectTimeout = cfg.TimeoutDetect()
	mediaCfg.ClipTimeout = cfg.TimeoutExport()
	mediaCfg.ThumbTimeout = cfg.TimeoutThumb()
	mediaCfg.DoctorTimeout = cfg.TimeoutDoctor()

	executor, err := media.New(mediaCfg)
	if err != nil {
		logger.Warn("media tools unavailable, detection and export disabled", "error", err)
	} else {
		prober = executor
		ffmpeg = executor
		doctor = media.NewCachedDoctor(executor, mediaLog)

		initCtx, initCancel := context.WithTimeout(context.Background(), cfg.TimeoutDoctor())
		if caps, err := doctor.Refresh(initCtx); err != nil {
			logger.Warn("initial doctor probe failed", "error", err)
		} else {
			logger.Info("media tools detected",
				"ffmpeg", caps.FFmpeg.Version,
				"ffprobe", caps.FFprobe.Version,
			)
		}
		initCancel()
	}

	librarySvc := library.NewService(repo, prober, logging.WithComponent(logger, "library"))
	streamer := playback.NewStreamer(logging.WithComponent(logger, "playback"))

	publishLog := logging.WithComponent(logger, "publish")
	var publisher publish.Publisher = publish.NewStubPublisher(publishLog)
	if cfg.PublishEnabled() {
		publisher = publish.NewHTTPClient(cfg.PublishURL(), cfg.PublishToken(), publishLog)
		logger.Info("clip publishing enabled", "url", cfg.PublishURL())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := library.NewRunner(librarySvc, repo, ffmpeg, doctor, publisher, library.RunnerOptions{
		Threshold:   cfg.SceneThreshold(),
		MinSceneLen: cfg.MinSceneLen(),
		VideoCodec:  cfg.VideoCodec(),
		AudioCodec:  cfg.AudioCodec(),
		CRF:         cfg.CRF(),
		MinClipLen:  cfg.MinClipLen(),
		ExportsDir:  cfg.ExportsDir(),
		ThumbsDir:   cfg.ThumbsDir(),
	}, logging.WithComponent(logger, "runner"))
	go runner.Start(ctx)

	startWatcher(ctx, cfg, repo, librarySvc, logging.WithComponent(logger, "watcher"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Library:    librarySvc,
		Repository: repo,
		Runner:     runner,
		Doctor:     doctor,
		Streamer:   streamer,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
		DeviceID:   deviceID,
		Version:    Version,
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

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			LibraryService: librarySvc,
			Runner:         runner,
			Logger:         logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()
	if tray != nil {
		tray.Quit()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// startWatcher follows the folders flagged for watching and re-syncs
// the set every 30 seconds, picking up folders added through the API
// while the agent runs.
func startWatcher(ctx context.Context, cfg config.Config, repo library.Repository, svc library.LibraryService, logger *slog.Logger) {
	watch, err := watcher.New(cfg.WatchSettle(), func(wctx context.Context, path string) {
		if err := svc.ImportFromWatch(wctx, path); err != nil {
			logger.Warn("watched import failed", "path", path, "error", err)
		}
	}, logger)
	if err != nil {
		logger.Warn("folder watching unavailable", "error", err)
		return
	}

	watched := make(map[string]bool)
	syncFolders := func() {
		folders, err := repo.ListFolders(ctx)
		if err != nil {
			logger.Warn("failed to list folders for watching", "error", err)
			return
		}

		want := make(map[string]bool)
		for _, f := range folders {
			if f.Watch {
				want[f.Path] = true
			}
		}

		for path := range want {
			if watched[path] {
				continue
			}
			if err := watch.AddFolder(path); err != nil {
				logger.Warn("failed to watch folder", "path", path, "error", err)
				continue
			}
			watched[path] = true
		}
		for path := range watched {
			if !want[path] {
				watch.RemoveFolder(path)
				delete(watched, path)
			}
		}
	}

	syncFolders()
	go watch.Start(ctx)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				syncFolders()
			}
		}
	}()
}

func ensureDeviceID(repo library.Repository) (string, error) {
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

func ensureAuthToken(repo library.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
