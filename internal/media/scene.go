package media

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DetectScenes finds scene changes whose content score exceeds
// threshold. The select filter drops every frame below the threshold
// and metadata=print logs the surviving frames' timestamps and scores,
// which is what gets parsed here.
func (e *Executor) DetectScenes(ctx context.Context, path string, threshold float64, onProgress ProgressFunc) ([]Cut, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.DetectTimeout)
	defer cancel()

	if e.cfg.Logger != nil {
		e.cfg.Logger.Info("detecting scene changes", "input", path, "threshold", threshold)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "info",
		"-progress", "pipe:2",
		"-i", path,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',metadata=print", threshold),
		"-f", "null",
		"-",
	}

	var cuts []Cut
	result := e.run(ctx, args, onProgress, func(line string) {
		if cut, ok := parseCutLine(line); ok {
			cuts = append(cuts, cut)
		} else if score, ok := parseScoreLine(line); ok && len(cuts) > 0 {
			cuts[len(cuts)-1].Score = score
		}
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !result.IsSuccess() && !tolerableDetectFailure(result.StderrTail) {
		return nil, fmt.Errorf("scene detection exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	if e.cfg.Logger != nil {
		e.cfg.Logger.Info("scene detection complete", "input", path, "cuts", len(cuts))
	}
	return cuts, nil
}

// tolerableDetectFailure reports whether a non-zero exit is one of the
// harmless ways ffmpeg ends a select-to-null run (for example when no
// frame at all passed the filter).
func tolerableDetectFailure(stderr string) bool {
	return strings.Contains(stderr, "Conversion failed") ||
		strings.Contains(stderr, "Invalid return value") ||
		strings.Contains(stderr, "Output file is empty")
}

// parseCutLine extracts the timestamp from a metadata filter frame line:
// [Parsed_metadata_1 @ 0x...] frame:3 pts:107107 pts_time:4.171
func parseCutLine(line string) (Cut, bool) {
	idx := strings.Index(line, "pts_time:")
	if idx < 0 {
		return Cut{}, false
	}
	rest := strings.TrimSpace(line[idx+len("pts_time:"):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Cut{}, false
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || seconds < 0 {
		return Cut{}, false
	}
	return Cut{Time: seconds}, true
}

// parseScoreLine extracts the content score from a metadata value line:
// [Parsed_metadata_1 @ 0x...] lavfi.scene_score=0.356035
func parseScoreLine(line string) (float64, bool) {
	idx := strings.Index(line, "lavfi.scene_score=")
	if idx < 0 {
		return 0, false
	}
	raw := strings.TrimSpace(line[idx+len("lavfi.scene_score="):])
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// Thumbnail renders a single high-quality JPEG frame at atSec.
func (e *Executor) Thumbnail(ctx context.Context, input, output string, atSec float64) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ThumbTimeout)
	defer cancel()

	if err := ensureDir(output); err != nil {
		return fmt.Errorf("cannot create thumbnail dir: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(atSec),
		"-i", input,
		"-vframes", "1",
		"-q:v", "2", // high quality JPEG
		output,
	}

	result := e.run(ctx, args, nil, nil)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !result.IsSuccess() {
		return fmt.Errorf("thumbnail exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("thumbnail output missing or empty: %s", output)
	}
	return nil
}
