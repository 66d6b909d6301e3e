package media

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Encoding defaults when a CutSpec leaves them empty.
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultCRF        = 23
)

// ExtractClip cuts one segment from input into spec.Output, re-encoding
// for frame accuracy. The seek arguments come before the input so ffmpeg
// jumps instead of decoding up to the start. A clip only counts as
// written when ffmpeg exits 0 and the output file exists and is
// non-empty; anything else returns an error with the RunResult carrying
// the stderr tail.
func (e *Executor) ExtractClip(ctx context.Context, input string, spec CutSpec, onProgress ProgressFunc) (RunResult, error) {
	if spec.End <= spec.Start {
		return RunResult{}, fmt.Errorf("invalid clip range: end %.3f must be after start %.3f", spec.End, spec.Start)
	}
	if spec.Output == "" {
		return RunResult{}, fmt.Errorf("output path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ClipTimeout)
	defer cancel()

	if err := ensureDir(spec.Output); err != nil {
		return RunResult{}, fmt.Errorf("cannot create output dir: %w", err)
	}

	args := clipArgs(input, spec)

	if e.cfg.Logger != nil {
		e.cfg.Logger.Info("extracting clip",
			"input", input,
			"output", spec.Output,
			"start_sec", spec.Start,
			"end_sec", spec.End,
		)
	}

	result := e.run(ctx, args, onProgress, nil)
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if !result.IsSuccess() {
		return result, fmt.Errorf("ffmpeg exited %d: %s", result.ExitCode, truncate(result.StderrTail, 512))
	}

	info, err := os.Stat(spec.Output)
	if err != nil {
		return result, fmt.Errorf("clip output missing: %s", spec.Output)
	}
	if info.Size() == 0 {
		return result, fmt.Errorf("clip output empty: %s", spec.Output)
	}

	return result, nil
}

// clipArgs builds the ffmpeg argument list for one cut. The -ss/-to pair
// must precede -i so ffmpeg seeks on the input rather than decoding from
// the start of the file.
func clipArgs(input string, spec CutSpec) []string {
	videoCodec := spec.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	audioCodec := spec.AudioCodec
	if audioCodec == "" {
		audioCodec = DefaultAudioCodec
	}
	crf := spec.CRF
	if crf <= 0 {
		crf = DefaultCRF
	}

	return []string{
		"-y",
		"-loglevel", "error",
		"-progress", "pipe:2",
		"-ss", formatSeconds(spec.Start),
		"-to", formatSeconds(spec.End),
		"-i", input,
		"-c:v", videoCodec,
		"-c:a", audioCodec,
		"-crf", strconv.Itoa(crf),
		spec.Output,
	}
}
