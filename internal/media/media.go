package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Config holds the executor's configuration.
type Config struct {
	FFmpegPath    string        // path to ffmpeg binary; empty = resolve from PATH
	FFprobePath   string        // path to ffprobe binary; empty = resolve from PATH
	ProbeTimeout  time.Duration // timeout for ffprobe
	DetectTimeout time.Duration // timeout for scene detection
	ClipTimeout   time.Duration // timeout per clip cut
	ThumbTimeout  time.Duration // timeout per thumbnail
	DoctorTimeout time.Duration // timeout for version probes
	Logger        *slog.Logger
}

// DefaultConfig returns timeouts sized for real-world video work.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		ProbeTimeout:  30 * time.Second,
		DetectTimeout: 10 * time.Minute,
		ClipTimeout:   30 * time.Minute,
		ThumbTimeout:  time.Minute,
		DoctorTimeout: 30 * time.Second,
		Logger:        logger,
	}
}

// Executor runs ffmpeg and ffprobe. It is the production implementation
// of the FFmpeg interface.
type Executor struct {
	cfg     Config
	ffmpeg  string // resolved ffmpeg path
	ffprobe string // resolved ffprobe path
}

// New creates an Executor, resolving both binaries up front.
func New(cfg Config) (*Executor, error) {
	ffmpeg, err := resolveTool(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveTool(cfg.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("media executor initialised", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	}

	return &Executor{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

func resolveTool(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return p, nil
}

// run executes ffmpeg with the given argv, keeping a bounded tail of
// stderr and forwarding -progress blocks and plain log lines as they
// arrive. Callers that need progress must include "-progress pipe:2"
// in args themselves.
func (e *Executor) run(ctx context.Context, args []string, onProgress ProgressFunc, onLine func(string)) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
	}

	if e.cfg.Logger != nil {
		e.cfg.Logger.Debug("executing ffmpeg", "args", args)
	}

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
	}

	var tailBuf bytes.Buffer
	tail := &limitedWriter{w: &tailBuf, limit: maxStderrBytes}
	e.scanStderr(stderr, tail, onProgress, onLine)

	err = cmd.Wait()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if exitCode != 0 && e.cfg.Logger != nil {
		e.cfg.Logger.Warn("ffmpeg command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tailBuf.String(), 512),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: tailBuf.String(),
		Duration:   elapsed,
	}
}

// scanStderr splits the interleaved stderr stream into -progress
// key=value blocks and ordinary log lines.
func (e *Executor) scanStderr(r io.Reader, tail io.Writer, onProgress ProgressFunc, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var prog Progress
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "frame="):
			prog.Frame, _ = strconv.Atoi(strings.TrimPrefix(line, "frame="))
		case strings.HasPrefix(line, "fps="):
			prog.FPS, _ = strconv.ParseFloat(strings.TrimPrefix(line, "fps="), 64)
		case strings.HasPrefix(line, "out_time_ms="):
			// out_time_ms is microseconds despite the name
			if us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_ms="), 10, 64); err == nil {
				prog.OutTime = float64(us) / 1e6
			}
		case strings.HasPrefix(line, "speed="):
			prog.Speed = strings.TrimSpace(strings.TrimPrefix(line, "speed="))
		case strings.HasPrefix(line, "progress="):
			// End of progress block
			if onProgress != nil {
				onProgress(prog)
			}
			prog = Progress{}
		case strings.HasPrefix(line, "bitrate=") || strings.HasPrefix(line, "out_time=") ||
			strings.HasPrefix(line, "out_time_us=") || strings.HasPrefix(line, "total_size=") ||
			strings.HasPrefix(line, "stream_0_0_q=") || strings.HasPrefix(line, "dup_frames=") ||
			strings.HasPrefix(line, "drop_frames="):
			// remaining -progress keys, not needed
		default:
			tail.Write([]byte(line + "\n"))
			if onLine != nil {
				onLine(line)
			}
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// formatSeconds renders a timestamp the way ffmpeg -ss/-to accept it.
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// limitedWriter retains the tail of whatever is written through it, so
// a noisy ffmpeg run cannot balloon the stderr we keep for errors.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
