package library

import (
	"github.com/auraclip/auraclip-agent/internal/media"
)

// buildScenes turns detector cut points into contiguous numbered scenes
// covering [0, duration). Cuts closer than minLen to the previous
// boundary merge into it, as does a trailing fragment shorter than
// minLen. No cuts means no scenes: a video with no detectable content
// change has nothing worth clipping.
func buildScenes(videoID string, cuts []media.Cut, duration, minLen float64) []*Scene {
	if len(cuts) == 0 || duration <= 0 {
		return nil
	}

	starts := []float64{0}
	scores := []float64{0}
	for _, c := range cuts {
		last := starts[len(starts)-1]
		if c.Time-last < minLen {
			continue
		}
		if c.Time >= duration {
			continue
		}
		starts = append(starts, c.Time)
		scores = append(scores, c.Score)
	}

	// A final fragment shorter than minLen belongs to the scene before it.
	if len(starts) > 1 && duration-starts[len(starts)-1] < minLen {
		starts = starts[:len(starts)-1]
		scores = scores[:len(scores)-1]
	}

	scenes := make([]*Scene, 0, len(starts))
	for i, start := range starts {
		end := duration
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		scenes = append(scenes, &Scene{
			ID:      NewID(),
			VideoID: videoID,
			Number:  i + 1,
			Start:   start,
			End:     end,
			Score:   scores[i],
		})
	}
	return scenes
}

// midpoint picks the representative frame time for a scene thumbnail.
func midpoint(s *Scene) float64 {
	return s.Start + (s.End-s.Start)/2
}
