package export

import (
	"fmt"
	"path/filepath"
)

// DefaultMinClipLen drops cuts produced by back-to-back scene boundaries
// that would encode to an empty or single-frame file.
const DefaultMinClipLen = 0.05

// ClipName builds the exported filename for a scene: the source video's
// base name plus the scene's actual number, zero-padded so a directory
// listing sorts in scene order.
func ClipName(base string, number, maxNumber int) string {
	width := 2
	for limit := 100; maxNumber >= limit; limit *= 10 {
		width++
	}
	return fmt.Sprintf("%s_scene_%0*d.mp4", base, width, number)
}

// BuildPlan clamps each scene to the video's duration, drops cuts
// shorter than MinClipLen, and assigns output paths derived from the
// scene numbers. maxScene sets the zero-padding width so a partial
// export names files the same way a full one would.
func BuildPlan(base string, duration float64, maxScene int, scenes []SceneRange, s Settings) Plan {
	minLen := s.MinClipLen
	if minLen <= 0 {
		minLen = DefaultMinClipLen
	}

	var plan Plan
	for _, sc := range scenes {
		start, end := sc.Start, sc.End
		if duration > 0 {
			start = clampSec(start, duration)
			end = clampSec(end, duration)
		}
		if end-start < minLen {
			plan.Skipped = append(plan.Skipped, SkippedScene{
				Number: sc.Number,
				Reason: fmt.Sprintf("clip is %.3fs, below the %.2fs minimum", end-start, minLen),
			})
			continue
		}

		plan.Clips = append(plan.Clips, ClipPlan{
			SceneID: sc.SceneID,
			Number:  sc.Number,
			Start:   start,
			End:     end,
			Output:  filepath.Join(s.OutputDir, ClipName(base, sc.Number, maxScene)),
		})
	}
	return plan
}

func clampSec(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
