// Package media drives ffmpeg and ffprobe as subprocesses: probing,
// scene-change detection, clip cutting and thumbnails. All stderr
// capture is bounded and every invocation carries a timeout.
package media

import (
	"context"
	"time"
)

// Info is the probed media info of a video file.
type Info struct {
	Duration   float64 `json:"duration_sec"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"video_codec,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	HasAudio   bool    `json:"has_audio"`
	Bitrate    int64   `json:"bitrate,omitempty"`
}

// Cut is one detected scene change: the timestamp of the first frame of
// the new scene and the content score that crossed the threshold.
type Cut struct {
	Time  float64 `json:"time_sec"`
	Score float64 `json:"score"`
}

// CutSpec describes one clip cut. Times are seconds into the source.
type CutSpec struct {
	Start      float64
	End        float64
	Output     string
	VideoCodec string
	AudioCodec string
	CRF        int
}

// Progress is one parsed block of ffmpeg -progress output.
type Progress struct {
	Frame   int
	FPS     float64
	OutTime float64 // seconds of output written so far
	Speed   string
}

// ProgressFunc receives progress blocks while a command runs.
type ProgressFunc func(Progress)

// RunResult is the structured outcome of one tool invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess reports whether the subprocess exited with status 0.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// FFmpeg is the tool execution contract consumed by the job runner and
// the import probe.
type FFmpeg interface {
	// Probe extracts media info from a video file via ffprobe.
	Probe(ctx context.Context, path string) (Info, error)

	// DetectScenes finds scene changes above threshold, reporting
	// progress while the video is scanned.
	DetectScenes(ctx context.Context, path string, threshold float64, onProgress ProgressFunc) ([]Cut, error)

	// ExtractClip cuts one segment into spec.Output. The returned
	// RunResult carries the stderr tail even when err is non-nil.
	ExtractClip(ctx context.Context, input string, spec CutSpec, onProgress ProgressFunc) (RunResult, error)

	// Thumbnail renders a single JPEG frame at atSec.
	Thumbnail(ctx context.Context, input, output string, atSec float64) error

	// RunDoctor probes tool availability and versions.
	RunDoctor(ctx context.Context) (*Capabilities, error)
}

// Capabilities reports tool availability, as probed by RunDoctor.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	ProbedAt time.Time `json:"-"`
}

// ToolInfo is the availability status of a single binary.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Ready returns true when both tools are runnable.
func (c *Capabilities) Ready() bool {
	return c.FFmpeg.Available && c.FFprobe.Available
}
