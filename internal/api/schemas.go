package api

import (
	"time"

	"github.com/auraclip/auraclip-agent/internal/library"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string         `json:"state"`
	LastError    string         `json:"last_error,omitempty"`
	VideosCount  int            `json:"videos_count"`
	FoldersCount int            `json:"folders_count"`
	JobsRunning  int            `json:"jobs_running"`
	ActiveJob    *JobResponse   `json:"active_job,omitempty"`
	Tools        *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpegAvailable  bool   `json:"ffmpeg_available"`
	FFprobeAvailable bool   `json:"ffprobe_available"`
	FFmpegVersion    string `json:"ffmpeg_version,omitempty"`
	FFprobeVersion   string `json:"ffprobe_version,omitempty"`
	LastProbeAt      string `json:"last_probe_at,omitempty"`
}

type ImportVideoRequest struct {
	Path string `json:"path"`
}

type VideoResponse struct {
	ID          string  `json:"id"`
	FolderID    string  `json:"folder_id,omitempty"`
	Path        string  `json:"path"`
	DisplayName string  `json:"display_name"`
	Size        int64   `json:"size"`
	DurationSec float64 `json:"duration_sec"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ProbeError  string  `json:"probe_error,omitempty"`
	ImportedAt  string  `json:"imported_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type DetectRequest struct {
	Threshold   float64 `json:"threshold,omitempty"`
	MinSceneLen float64 `json:"min_scene_len,omitempty"`
}

type SceneResponse struct {
	ID         string  `json:"id"`
	Number     int     `json:"number"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Score      float64 `json:"score"`
	Selected   bool    `json:"selected"`
	Exported   bool    `json:"exported"`
	ClipPath   string  `json:"clip_path,omitempty"`
	ExportedAt string  `json:"exported_at,omitempty"`
	HasThumb   bool    `json:"has_thumb"`
}

type ScenesResponse struct {
	VideoID string          `json:"video_id"`
	Scenes  []SceneResponse `json:"scenes"`
}

type SelectScenesRequest struct {
	Numbers  []int `json:"numbers,omitempty"`
	All      bool  `json:"all,omitempty"`
	Selected bool  `json:"selected"`
}

type SelectScenesResponse struct {
	Updated int `json:"updated"`
}

type ExportRequest struct {
	Format       string  `json:"format,omitempty"`
	SceneNumbers []int   `json:"scene_numbers,omitempty"`
	OutputDir    string  `json:"output_dir,omitempty"`
	VideoCodec   string  `json:"video_codec,omitempty"`
	AudioCodec   string  `json:"audio_codec,omitempty"`
	CRF          int     `json:"crf,omitempty"`
	ProjectName  string  `json:"project_name,omitempty"`
	FrameRate    float64 `json:"frame_rate,omitempty"`
}

type EDLResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

type JobQueuedResponse struct {
	JobID string `json:"job_id"`
}

type AddFolderRequest struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name,omitempty"`
	Watch       bool   `json:"watch,omitempty"`
}

type FolderResponse struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	Watch       bool   `json:"watch"`
	CreatedAt   string `json:"created_at"`
}

type FoldersResponse struct {
	Folders []FolderResponse `json:"folders"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	VideoID   string `json:"video_id,omitempty"`
	FolderID  string `json:"folder_id,omitempty"`
	Progress  int    `json:"progress"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type EventResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	VideoID   string `json:"video_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v *library.Video) VideoResponse {
	return VideoResponse{
		ID:          v.ID,
		FolderID:    v.FolderID,
		Path:        v.Path,
		DisplayName: v.DisplayName,
		Size:        v.Size,
		DurationSec: v.Duration,
		FPS:         v.FPS,
		Width:       v.Width,
		Height:      v.Height,
		ProbeError:  v.ProbeError,
		ImportedAt:  v.ImportedAt.Format(time.RFC3339),
	}
}

func SceneToResponse(s *library.Scene) SceneResponse {
	resp := SceneResponse{
		ID:       s.ID,
		Number:   s.Number,
		StartSec: s.Start,
		EndSec:   s.End,
		Score:    s.Score,
		Selected: s.Selected,
		Exported: s.ClipPath != "",
		ClipPath: s.ClipPath,
		HasThumb: s.ThumbPath != "",
	}
	if !s.ExportedAt.IsZero() {
		resp.ExportedAt = s.ExportedAt.Format(time.RFC3339)
	}
	return resp
}

func FolderToResponse(f *library.Folder) FolderResponse {
	return FolderResponse{
		ID:          f.ID,
		Path:        f.Path,
		DisplayName: f.DisplayName,
		Watch:       f.Watch,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *library.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		VideoID:   j.VideoID,
		FolderID:  j.FolderID,
		Progress:  j.Progress,
		Result:    j.Result,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

func EventToResponse(e *library.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Action:    e.Action,
		VideoID:   e.VideoID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
