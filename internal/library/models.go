// Package library owns the video library: imported videos, detected
// scenes, watched folders, background jobs and the user-action event log.
package library

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video is an imported source video with its probed media info.
// Probe failures leave the media fields zeroed and ProbeError set;
// the video is still usable for management operations.
type Video struct {
	ID          string    `json:"id"`
	FolderID    string    `json:"folder_id,omitempty"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	Size        int64     `json:"size"`
	Mtime       time.Time `json:"mtime"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Duration    float64   `json:"duration_sec"`
	FPS         float64   `json:"fps"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	ProbeError  string    `json:"probe_error,omitempty"`
	ImportedAt  time.Time `json:"imported_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Folder is a registered library folder. Watched folders auto-import
// new video files.
type Folder struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	Watch       bool      `json:"watch"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scene is one detected scene of a video. Number is 1-based and
// contiguous within a detection run. ClipPath and ExportedAt are set
// once the scene has been exported as a clip.
type Scene struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"video_id"`
	Number     int       `json:"number"`
	Start      float64   `json:"start_sec"`
	End        float64   `json:"end_sec"`
	Score      float64   `json:"score"`
	Selected   bool      `json:"selected"`
	ClipPath   string    `json:"clip_path,omitempty"`
	ExportedAt time.Time `json:"exported_at,omitempty"`
	ThumbPath  string    `json:"thumb_path,omitempty"`
}

const (
	JobTypeScan       = "scan"
	JobTypeDetect     = "detect_scenes"
	JobTypeExport     = "export_clips"
	JobTypeThumbnails = "generate_thumbnails"
	JobTypePublish    = "publish_clip"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a queued background operation. Payload carries the request
// parameters as JSON, Result the outcome summary.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	VideoID   string    `json:"video_id,omitempty"`
	FolderID  string    `json:"folder_id,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Result    string    `json:"result,omitempty"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event action names recorded for user-level interactions.
const (
	EventVideoImported    = "video_imported"
	EventVideoRemoved     = "video_removed"
	EventDetectRequested  = "detect_requested"
	EventScenesDetected   = "scenes_detected"
	EventSelectionChanged = "selection_changed"
	EventExportRequested  = "export_requested"
	EventClipsExported    = "clips_exported"
	EventEDLExported      = "edl_exported"
	EventFolderAdded      = "folder_added"
	EventFolderRemoved    = "folder_removed"
	EventScanRequested    = "scan_requested"
	EventPublishRequested = "publish_requested"
	EventClipPublished    = "clip_published"
)

// Event is one recorded user interaction.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	VideoID   string    `json:"video_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var VideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
