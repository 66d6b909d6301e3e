package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/auraclip/auraclip-agent/internal/media"
)

const fingerprintSize = 64 * 1024

// Sentinel errors the API maps to status codes.
var (
	ErrVideoNotFound  = errors.New("video not found")
	ErrFolderNotFound = errors.New("folder not found")
	ErrSceneNotFound  = errors.New("scene not found")
	ErrJobConflict    = errors.New("job already queued or running for this video")
	ErrNoScenes       = errors.New("no scenes detected, run detection first")
	ErrNoneSelected   = errors.New("no scenes selected")
	ErrNotExported    = errors.New("scene has not been exported yet")
)

// Prober probes a video file for its media info.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Info, error)
}

type LibraryService interface {
	ImportVideo(ctx context.Context, path string) (*Video, error)
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideos(ctx context.Context) ([]*Video, error)
	RemoveVideo(ctx context.Context, id string) error
	CountVideos(ctx context.Context) (int, error)

	AddFolder(ctx context.Context, path, displayName string, watch bool) (*Folder, error)
	RemoveFolder(ctx context.Context, id string) error
	GetFolders(ctx context.Context) ([]*Folder, error)
	GetFolder(ctx context.Context, id string) (*Folder, error)
	ScanFolder(ctx context.Context, folderID string) (*Job, error)

	DetectScenes(ctx context.Context, videoID string, threshold, minSceneLen float64) (*Job, error)
	GetScenes(ctx context.Context, videoID string) ([]*Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	GetSceneByNumber(ctx context.Context, videoID string, number int) (*Scene, error)
	SelectScenes(ctx context.Context, videoID string, numbers []int, all, selected bool) (int, error)

	ExportClips(ctx context.Context, videoID string, payload ExportPayload) (*Job, error)
	PublishClip(ctx context.Context, sceneID string) (*Job, error)

	GetJob(ctx context.Context, id string) (*Job, error)
	GetJobs(ctx context.Context, limit int) ([]*Job, error)

	GetEvents(ctx context.Context, limit int) ([]*Event, error)
	RecordEvent(ctx context.Context, action, videoID, detail string) error

	ExecuteScan(ctx context.Context, jobID, folderID, path string) error
	ImportFromWatch(ctx context.Context, path string) error
}

// DetectPayload is the stored request of a detect job. Zero values mean
// the configured defaults.
type DetectPayload struct {
	Threshold   float64 `json:"threshold,omitempty"`
	MinSceneLen float64 `json:"min_scene_len,omitempty"`
}

// ExportPayload is the stored request of an export job. Empty
// SceneNumbers means the currently selected scenes.
type ExportPayload struct {
	SceneNumbers []int  `json:"scene_numbers,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`
	VideoCodec   string `json:"video_codec,omitempty"`
	AudioCodec   string `json:"audio_codec,omitempty"`
	CRF          int    `json:"crf,omitempty"`
}

// PublishPayload is the stored request of a publish job.
type PublishPayload struct {
	SceneID string `json:"scene_id"`
}

type Service struct {
	repo   Repository
	prober Prober
	logger *slog.Logger
}

func NewService(repo Repository, prober Prober, logger *slog.Logger) *Service {
	return &Service{repo: repo, prober: prober, logger: logger}
}

// ImportVideo registers a video file in the library. Re-importing an
// existing path refreshes its metadata and clears previously detected
// scenes. A probe failure does not fail the import: the video keeps
// zeroed media info and records the probe error.
func (s *Service) ImportVideo(ctx context.Context, path string) (*Video, error) {
	video, err := s.importPath(ctx, path, "", true)
	if err != nil {
		return nil, err
	}

	detail, _ := json.Marshal(map[string]any{
		"path":         video.Path,
		"duration_sec": video.Duration,
	})
	s.RecordEvent(ctx, EventVideoImported, video.ID, string(detail))

	return video, nil
}

// importPath is the shared import routine behind user imports, folder
// scans and the watcher. force re-probes and clears scenes even if the
// file looks unchanged.
func (s *Service) importPath(ctx context.Context, path, folderID string, force bool) (*Video, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a video file")
	}
	if !IsVideoFile(absPath) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
	}

	mtype, err := mimetype.DetectFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if !strings.HasPrefix(mtype.String(), "video/") {
		return nil, fmt.Errorf("not a video file (detected %s)", mtype.String())
	}

	fingerprint, err := computeFingerprint(absPath)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetVideoByPath(ctx, absPath)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		changed := existing.Size != info.Size() ||
			!existing.Mtime.Equal(info.ModTime().Truncate(time.Second)) ||
			existing.Fingerprint != fingerprint
		if !force && !changed {
			return existing, nil
		}

		existing.Size = info.Size()
		existing.Mtime = info.ModTime().Truncate(time.Second)
		existing.Fingerprint = fingerprint
		s.probe(ctx, existing)

		if err := s.repo.UpdateVideoMedia(ctx, existing); err != nil {
			return nil, err
		}
		// Detected scenes describe the old content
		if err := s.repo.DeleteScenes(ctx, existing.ID); err != nil {
			return nil, err
		}

		if s.logger != nil {
			s.logger.Info("video re-imported", "video_id", existing.ID, "path", absPath)
		}
		return existing, nil
	}

	now := time.Now()
	video := &Video{
		ID:          NewID(),
		FolderID:    folderID,
		Path:        absPath,
		DisplayName: filepath.Base(absPath),
		Size:        info.Size(),
		Mtime:       info.ModTime().Truncate(time.Second),
		Fingerprint: fingerprint,
		ImportedAt:  now,
		UpdatedAt:   now,
	}
	s.probe(ctx, video)

	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("video imported", "video_id", video.ID, "path", absPath,
			"duration_sec", video.Duration)
	}
	return video, nil
}

// probe fills in media info, recording rather than returning failures.
func (s *Service) probe(ctx context.Context, v *Video) {
	if s.prober == nil {
		v.ProbeError = "prober not configured"
		return
	}

	info, err := s.prober.Probe(ctx, v.Path)
	if err != nil {
		v.Duration = 0
		v.FPS = 0
		v.Width = 0
		v.Height = 0
		v.ProbeError = err.Error()
		if s.logger != nil {
			s.logger.Warn("probe failed, importing without media info", "path", v.Path, "error", err)
		}
		return
	}

	v.Duration = info.Duration
	v.FPS = info.FPS
	v.Width = info.Width
	v.Height = info.Height
	v.ProbeError = ""
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	return s.repo.GetVideo(ctx, id)
}

func (s *Service) GetVideos(ctx context.Context) ([]*Video, error) {
	return s.repo.ListVideos(ctx)
}

func (s *Service) RemoveVideo(ctx context.Context, id string) error {
	video, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return ErrVideoNotFound
	}

	if err := s.repo.DeleteVideo(ctx, id); err != nil {
		return err
	}

	s.RecordEvent(ctx, EventVideoRemoved, id, video.Path)
	return nil
}

func (s *Service) CountVideos(ctx context.Context) (int, error) {
	return s.repo.CountVideos(ctx)
}

func (s *Service) AddFolder(ctx context.Context, path, displayName string, watch bool) (*Folder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	existing, err := s.repo.GetFolderByPath(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if displayName == "" {
		displayName = filepath.Base(absPath)
	}

	folder := &Folder{
		ID:          NewID(),
		Path:        absPath,
		DisplayName: displayName,
		Watch:       watch,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("folder added", "folder_id", folder.ID, "path", absPath, "watch", watch)
	}
	s.RecordEvent(ctx, EventFolderAdded, "", absPath)

	return folder, nil
}

// RemoveFolder unregisters a folder. Videos imported from it stay in
// the library with their folder link cleared.
func (s *Service) RemoveFolder(ctx context.Context, id string) error {
	folder, err := s.repo.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if folder == nil {
		return ErrFolderNotFound
	}

	if err := s.repo.DeleteFolder(ctx, id); err != nil {
		return err
	}

	s.RecordEvent(ctx, EventFolderRemoved, "", folder.Path)
	return nil
}

func (s *Service) GetFolders(ctx context.Context) ([]*Folder, error) {
	return s.repo.ListFolders(ctx)
}

func (s *Service) GetFolder(ctx context.Context, id string) (*Folder, error) {
	return s.repo.GetFolder(ctx, id)
}

func (s *Service) ScanFolder(ctx context.Context, folderID string) (*Job, error) {
	folder, err := s.repo.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, ErrFolderNotFound
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeScan,
		Status:    JobStatusPending,
		FolderID:  folderID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("scan job created", "job_id", job.ID, "folder_id", folderID)
	}
	s.RecordEvent(ctx, EventScanRequested, "", folder.Path)

	return job, nil
}

// DetectScenes queues a scene detection job. Zero threshold or
// minSceneLen mean the configured defaults at execution time.
func (s *Service) DetectScenes(ctx context.Context, videoID string, threshold, minSceneLen float64) (*Job, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}

	if threshold != 0 && (threshold <= 0 || threshold >= 1) {
		return nil, fmt.Errorf("threshold %.3f out of range (0, 1)", threshold)
	}

	active, err := s.repo.HasActiveJob(ctx, JobTypeDetect, videoID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrJobConflict
	}

	payload, _ := json.Marshal(DetectPayload{Threshold: threshold, MinSceneLen: minSceneLen})

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeDetect,
		Status:    JobStatusPending,
		VideoID:   videoID,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("detect job created", "job_id", job.ID, "video_id", videoID)
	}
	s.RecordEvent(ctx, EventDetectRequested, videoID, string(payload))

	return job, nil
}

func (s *Service) GetScenes(ctx context.Context, videoID string) ([]*Scene, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	return s.repo.ListScenes(ctx, videoID)
}

func (s *Service) GetScene(ctx context.Context, id string) (*Scene, error) {
	return s.repo.GetScene(ctx, id)
}

func (s *Service) GetSceneByNumber(ctx context.Context, videoID string, number int) (*Scene, error) {
	return s.repo.GetSceneByNumber(ctx, videoID, number)
}

// SelectScenes flips the selected flag on the named scenes, or on all
// scenes of the video. It returns how many scenes changed.
func (s *Service) SelectScenes(ctx context.Context, videoID string, numbers []int, all, selected bool) (int, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return 0, err
	}
	if video == nil {
		return 0, ErrVideoNotFound
	}

	var n int
	if all {
		n, err = s.repo.SetAllSceneSelection(ctx, videoID, selected)
	} else {
		n, err = s.repo.SetSceneSelection(ctx, videoID, numbers, selected)
	}
	if err != nil {
		return 0, err
	}

	detail, _ := json.Marshal(map[string]any{
		"numbers":  numbers,
		"all":      all,
		"selected": selected,
		"count":    n,
	})
	s.RecordEvent(ctx, EventSelectionChanged, videoID, string(detail))

	return n, nil
}

// ExportClips queues a clip export job for the named scenes, or for
// the current selection when no numbers are given.
func (s *Service) ExportClips(ctx context.Context, videoID string, payload ExportPayload) (*Job, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}

	count, err := s.repo.CountScenes(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoScenes
	}

	if len(payload.SceneNumbers) > 0 {
		for _, n := range payload.SceneNumbers {
			scene, err := s.repo.GetSceneByNumber(ctx, videoID, n)
			if err != nil {
				return nil, err
			}
			if scene == nil {
				return nil, fmt.Errorf("scene %d: %w", n, ErrSceneNotFound)
			}
		}
	} else {
		selected, err := s.repo.ListSelectedScenes(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if len(selected) == 0 {
			return nil, ErrNoneSelected
		}
	}

	active, err := s.repo.HasActiveJob(ctx, JobTypeExport, videoID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrJobConflict
	}

	raw, _ := json.Marshal(payload)

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeExport,
		Status:    JobStatusPending,
		VideoID:   videoID,
		Payload:   string(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("export job created", "job_id", job.ID, "video_id", videoID)
	}
	s.RecordEvent(ctx, EventExportRequested, videoID, string(raw))

	return job, nil
}

// PublishClip queues an upload of an exported clip to the configured
// publish endpoint.
func (s *Service) PublishClip(ctx context.Context, sceneID string) (*Job, error) {
	scene, err := s.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, ErrSceneNotFound
	}
	if scene.ClipPath == "" {
		return nil, ErrNotExported
	}

	payload, _ := json.Marshal(PublishPayload{SceneID: sceneID})

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypePublish,
		Status:    JobStatusPending,
		VideoID:   scene.VideoID,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.RecordEvent(ctx, EventPublishRequested, scene.VideoID, scene.ClipPath)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) GetJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) GetEvents(ctx context.Context, limit int) ([]*Event, error) {
	return s.repo.ListEvents(ctx, limit)
}

// RecordEvent appends to the user-interaction log. Event write failures
// are logged, not propagated: the action itself already happened.
func (s *Service) RecordEvent(ctx context.Context, action, videoID, detail string) error {
	event := &Event{
		ID:        NewID(),
		Action:    action,
		VideoID:   videoID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to record event", "action", action, "error", err)
		}
		return err
	}
	return nil
}

// ExecuteScan walks a folder and imports every video file found,
// probing new or changed files. Called by the job runner.
func (s *Service) ExecuteScan(ctx context.Context, jobID, folderID, path string) error {
	s.repo.UpdateJobStatus(ctx, jobID, JobStatusRunning, "")
	if s.logger != nil {
		s.logger.Info("starting scan", "job_id", jobID, "path", path)
	}

	var files []string
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && IsVideoFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, err.Error())
		return err
	}

	total := len(files)
	if s.logger != nil {
		s.logger.Info("found video files", "count", total)
	}

	imported := 0
	for i, filePath := range files {
		select {
		case <-ctx.Done():
			s.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, "cancelled")
			return ctx.Err()
		default:
		}

		if _, err := s.importPath(ctx, filePath, folderID, false); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to import file", "path", filePath, "error", err)
			}
		} else {
			imported++
		}

		progress := 0
		if total > 0 {
			progress = (i + 1) * 100 / total
		}
		s.repo.UpdateJobProgress(ctx, jobID, progress)
	}

	result, _ := json.Marshal(map[string]int{"found": total, "imported": imported})
	s.repo.UpdateJobResult(ctx, jobID, string(result))
	s.repo.UpdateJobStatus(ctx, jobID, JobStatusCompleted, "")
	if s.logger != nil {
		s.logger.Info("scan completed", "job_id", jobID, "files_found", total, "imported", imported)
	}

	return nil
}

// ImportFromWatch imports a file reported by the folder watcher and
// links it to the watched folder containing it. A file whose size and
// mtime are unchanged is left alone.
func (s *Service) ImportFromWatch(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	folders, err := s.repo.ListFolders(ctx)
	if err != nil {
		return err
	}
	folderID := ""
	for _, f := range folders {
		if absPath == f.Path || strings.HasPrefix(absPath, f.Path+string(filepath.Separator)) {
			folderID = f.ID
			break
		}
	}

	video, err := s.importPath(ctx, absPath, folderID, false)
	if err != nil {
		return err
	}

	detail, _ := json.Marshal(map[string]any{"path": video.Path, "watched": true})
	s.RecordEvent(ctx, EventVideoImported, video.ID, string(detail))
	if s.logger != nil {
		s.logger.Info("imported watched file", "path", video.Path, "video_id", video.ID)
	}
	return nil
}

func computeFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	lr := io.LimitReader(f, fingerprintSize)
	if _, err := io.Copy(h, lr); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
