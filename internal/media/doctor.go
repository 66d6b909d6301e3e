package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// RunDoctor probes ffmpeg and ffprobe by running their -version
// commands. A broken tool is reported in the result, not as an error;
// RunDoctor only errors when the probe itself could not run.
func (e *Executor) RunDoctor(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DoctorTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg:   probeTool(ctx, e.ffmpeg),
		FFprobe:  probeTool(ctx, e.ffprobe),
		ProbedAt: time.Now(),
	}

	if e.cfg.Logger != nil {
		e.cfg.Logger.Info("doctor probe complete",
			"ffmpeg", caps.FFmpeg.Available,
			"ffmpeg_version", caps.FFmpeg.Version,
			"ffprobe", caps.FFprobe.Available,
		)
	}
	return caps, nil
}

func probeTool(ctx context.Context, path string) ToolInfo {
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ToolInfo{Path: path, Error: err.Error()}
	}
	return ToolInfo{
		Available: true,
		Path:      path,
		Version:   parseVersionLine(string(out)),
	}
}

// parseVersionLine extracts the version token from the first line of
// `ffmpeg -version` output: "ffmpeg version 6.1.1 Copyright ...".
func parseVersionLine(out string) string {
	line := out
	if idx := strings.IndexByte(out, '\n'); idx >= 0 {
		line = out[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[1] == "version" {
		return fields[2]
	}
	return strings.TrimSpace(line)
}

// DoctorRunner is what CachedDoctor wraps; satisfied by Executor.
type DoctorRunner interface {
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// CachedDoctor caches doctor probe results with a TTL so export
// preflights and status requests don't spawn a subprocess every time.
type CachedDoctor struct {
	runner DoctorRunner
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor wraps a DoctorRunner with a 5 minute result cache.
func NewCachedDoctor(runner DoctorRunner, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		runner: runner,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns the cached capabilities, probing first if the cache is
// empty or past its TTL.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Peek returns whatever is cached without probing.
func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh probes immediately, ignoring any cached result.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.runner.RunDoctor(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("doctor probe failed", "error", err)
		}
		// A stale answer beats none when the probe itself breaks.
		if d.cached != nil {
			if d.logger != nil {
				d.logger.Info("returning stale capabilities cache")
			}
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate drops the cache so the next Get probes again.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
