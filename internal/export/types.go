package export

import "fmt"

// Settings controls how clips are cut and where they land.
type Settings struct {
	OutputDir  string
	VideoCodec string
	AudioCodec string
	CRF        int
	MinClipLen float64
}

// SceneRange is the slice of the source video one scene covers.
type SceneRange struct {
	SceneID string
	Number  int
	Start   float64
	End     float64
}

// ClipPlan is one scheduled cut with its final output path.
type ClipPlan struct {
	SceneID string
	Number  int
	Start   float64
	End     float64
	Output  string
}

// SkippedScene records a scene left out of a plan and why.
type SkippedScene struct {
	Number int    `json:"number"`
	Reason string `json:"reason"`
}

// Plan is the full set of cuts scheduled for one video.
type Plan struct {
	Clips   []ClipPlan
	Skipped []SkippedScene
}

// ResolvedClip is a clip whose source media was located on disk, ready
// to reference from an EDL.
type ResolvedClip struct {
	Name        string
	MediaPath   string
	Start       float64
	End         float64
	SceneNumber int
}

// Result summarises an export job for the job record and the audit log.
type Result struct {
	Exported   int            `json:"exported"`
	Failed     int            `json:"failed"`
	Skipped    []SkippedScene `json:"skipped,omitempty"`
	OutputDir  string         `json:"output_dir"`
	FirstError string         `json:"first_error,omitempty"`
	ClipPaths  []string       `json:"clip_paths,omitempty"`
}

// Message renders the one-line outcome shown to the user.
func (r Result) Message() string {
	if r.Failed == 0 {
		return fmt.Sprintf("exported %d clips to %s", r.Exported, r.OutputDir)
	}
	return fmt.Sprintf("exported %d clips, %d failed", r.Exported, r.Failed)
}
