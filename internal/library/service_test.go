package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/auraclip/auraclip-agent/internal/db"
	"github.com/auraclip/auraclip-agent/internal/media"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

// writeVideoFile writes a file that passes both the extension check and
// content sniffing: the ftyp box ffmpeg itself writes for MP4 output.
func writeVideoFile(t *testing.T, path string) {
	t.Helper()

	data := []byte{
		0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p',
		'i', 's', 'o', 'm',
		0x00, 0x00, 0x02, 0x00,
		'i', 's', 'o', 'm', 'i', 's', 'o', '2',
		'a', 'v', 'c', '1', 'm', 'p', '4', '1',
	}
	data = append(data, []byte("mdat test payload")...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write video file: %v", err)
	}
}

type fakeProber struct {
	calls   atomic.Int32
	probeFn func(ctx context.Context, path string) (media.Info, error)
}

func (f *fakeProber) Probe(ctx context.Context, path string) (media.Info, error) {
	f.calls.Add(1)
	if f.probeFn != nil {
		return f.probeFn(ctx, path)
	}
	return media.Info{Duration: 12.5, FPS: 30, Width: 1920, Height: 1080}, nil
}

func TestService_ImportVideo(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	prober := &fakeProber{}
	svc := NewService(repo, prober, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "holiday.mp4")
	writeVideoFile(t, path)

	video, err := svc.ImportVideo(ctx, path)
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}

	if video.ID == "" {
		t.Error("video.ID is empty")
	}
	if video.DisplayName != "holiday.mp4" {
		t.Errorf("video.DisplayName = %s, want holiday.mp4", video.DisplayName)
	}
	if video.Duration != 12.5 {
		t.Errorf("video.Duration = %v, want 12.5", video.Duration)
	}
	if video.Fingerprint == "" {
		t.Error("video.Fingerprint is empty")
	}
	if video.ProbeError != "" {
		t.Errorf("video.ProbeError = %q, want empty", video.ProbeError)
	}
	if prober.calls.Load() != 1 {
		t.Errorf("prober called %d times, want 1", prober.calls.Load())
	}

	events, err := svc.GetEvents(ctx, 10)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	found := false
	for _, e := range events {
		if e.Action == EventVideoImported && e.VideoID == video.ID {
			found = true
		}
	}
	if !found {
		t.Error("import should record a video_imported event")
	}
}

func TestService_ImportVideo_ProbeFailure(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	prober := &fakeProber{
		probeFn: func(ctx context.Context, path string) (media.Info, error) {
			return media.Info{}, errors.New("ffprobe exited 1")
		},
	}
	svc := NewService(repo, prober, nil)

	path := filepath.Join(t.TempDir(), "broken.mp4")
	writeVideoFile(t, path)

	video, err := svc.ImportVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportVideo() error = %v, probe failure should not fail the import", err)
	}
	if video.Duration != 0 {
		t.Errorf("video.Duration = %v, want 0", video.Duration)
	}
	if video.ProbeError == "" {
		t.Error("video.ProbeError should be set")
	}
}

func TestService_ImportVideo_NoProber(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeVideoFile(t, path)

	video, err := svc.ImportVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}
	if video.ProbeError == "" {
		t.Error("video.ProbeError should note the missing prober")
	}
}

func TestService_ImportVideo_NotAVideo(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	// Right extension, wrong content.
	path := filepath.Join(t.TempDir(), "fake.mp4")
	if err := os.WriteFile(path, []byte("just some text"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := svc.ImportVideo(context.Background(), path)
	if err == nil {
		t.Fatal("ImportVideo() should reject non-video content")
	}
	if !strings.Contains(err.Error(), "not a video file") {
		t.Errorf("error = %v, want content type rejection", err)
	}
}

func TestService_ImportVideo_UnsupportedExtension(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("notes"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := svc.ImportVideo(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Errorf("error = %v, want unsupported extension", err)
	}
}

func TestService_ImportVideo_MissingFile(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	_, err := svc.ImportVideo(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if err == nil {
		t.Error("ImportVideo() should fail for a missing file")
	}
}

func TestService_ImportVideo_Directory(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	_, err := svc.ImportVideo(context.Background(), t.TempDir())
	if err == nil {
		t.Error("ImportVideo() should fail for a directory")
	}
}

func TestService_Reimport_ClearsScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, &fakeProber{}, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "movie.mp4")
	writeVideoFile(t, path)

	video, err := svc.ImportVideo(ctx, path)
	if err != nil {
		t.Fatalf("ImportVideo() error = %v", err)
	}

	createTestScenes(t, repo, video.ID, 0, 4, 10)

	again, err := svc.ImportVideo(ctx, path)
	if err != nil {
		t.Fatalf("ImportVideo() again error = %v", err)
	}
	if again.ID != video.ID {
		t.Errorf("re-import created a new video row: %s vs %s", again.ID, video.ID)
	}

	count, _ := svc.CountVideos(ctx)
	if count != 1 {
		t.Errorf("CountVideos() = %d, want 1", count)
	}

	scenes, _ := repo.ListScenes(ctx, video.ID)
	if len(scenes) != 0 {
		t.Errorf("re-import left %d stale scenes, want 0", len(scenes))
	}
}

func TestService_RemoveVideo(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)

	if err := svc.RemoveVideo(ctx, video.ID); err != nil {
		t.Fatalf("RemoveVideo() error = %v", err)
	}
	gone, _ := svc.GetVideo(ctx, video.ID)
	if gone != nil {
		t.Error("video still present after remove")
	}

	if err := svc.RemoveVideo(ctx, video.ID); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("RemoveVideo() error = %v, want ErrVideoNotFound", err)
	}
}

func TestService_AddFolder(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	tmpDir := t.TempDir()

	folder, err := svc.AddFolder(context.Background(), tmpDir, "Test Folder", true)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	if folder.ID == "" {
		t.Error("folder.ID is empty")
	}
	if folder.Path != tmpDir {
		t.Errorf("folder.Path = %s, want %s", folder.Path, tmpDir)
	}
	if folder.DisplayName != "Test Folder" {
		t.Errorf("folder.DisplayName = %s, want Test Folder", folder.DisplayName)
	}
	if !folder.Watch {
		t.Error("folder.Watch = false, want true")
	}
}

func TestService_AddFolder_InvalidPath(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	_, err := svc.AddFolder(context.Background(), "/nonexistent/path", "Test", false)
	if err == nil {
		t.Error("AddFolder() should return error for nonexistent path")
	}
}

func TestService_AddFolder_NotDirectory(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	tmpFile, err := os.CreateTemp("", "test")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	_, err = svc.AddFolder(context.Background(), tmpFile.Name(), "Test", false)
	if err == nil {
		t.Error("AddFolder() should return error for file path")
	}
}

func TestService_AddFolder_ExistingPath(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	first, err := svc.AddFolder(ctx, tmpDir, "First", false)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	second, err := svc.AddFolder(ctx, tmpDir, "Second", true)
	if err != nil {
		t.Fatalf("AddFolder() again error = %v", err)
	}
	if second.ID != first.ID {
		t.Error("adding the same path twice should return the existing folder")
	}

	folders, _ := svc.GetFolders(ctx)
	if len(folders) != 1 {
		t.Errorf("GetFolders() = %d folders, want 1", len(folders))
	}
}

func TestService_RemoveFolder_KeepsVideos(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	writeVideoFile(t, filepath.Join(tmpDir, "kept.mp4"))

	folder, err := svc.AddFolder(ctx, tmpDir, "Test", false)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	job, err := svc.ScanFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ScanFolder() error = %v", err)
	}
	if err := svc.ExecuteScan(ctx, job.ID, folder.ID, folder.Path); err != nil {
		t.Fatalf("ExecuteScan() error = %v", err)
	}

	if err := svc.RemoveFolder(ctx, folder.ID); err != nil {
		t.Fatalf("RemoveFolder() error = %v", err)
	}

	videos, _ := svc.GetVideos(ctx)
	if len(videos) != 1 {
		t.Fatalf("GetVideos() = %d videos after folder removal, want 1", len(videos))
	}
	if videos[0].FolderID != "" {
		t.Errorf("video.FolderID = %q, want cleared", videos[0].FolderID)
	}

	if err := svc.RemoveFolder(ctx, folder.ID); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("RemoveFolder() again error = %v, want ErrFolderNotFound", err)
	}
}

func TestService_ScanFolder(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	folder, err := svc.AddFolder(ctx, t.TempDir(), "Test", false)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	job, err := svc.ScanFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ScanFolder() error = %v", err)
	}
	if job.Type != JobTypeScan || job.Status != JobStatusPending {
		t.Errorf("job = %s/%s, want %s/%s", job.Type, job.Status, JobTypeScan, JobStatusPending)
	}
	if job.FolderID != folder.ID {
		t.Errorf("job.FolderID = %s, want %s", job.FolderID, folder.ID)
	}

	if _, err := svc.ScanFolder(ctx, "no-such-folder"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("ScanFolder() error = %v, want ErrFolderNotFound", err)
	}
}

func TestService_ExecuteScan(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, &fakeProber{}, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	writeVideoFile(t, filepath.Join(tmpDir, "test.mp4"))
	os.WriteFile(filepath.Join(tmpDir, "readme.pdf"), []byte("pdf"), 0644)

	folder, err := svc.AddFolder(ctx, tmpDir, "Test", false)
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}

	job, err := svc.ScanFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ScanFolder() error = %v", err)
	}

	if err := svc.ExecuteScan(ctx, job.ID, folder.ID, folder.Path); err != nil {
		t.Fatalf("ExecuteScan() error = %v", err)
	}

	videos, err := repo.ListVideosByFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("ListVideosByFolder() error = %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("found %d videos, want 1", len(videos))
	}
	if videos[0].DisplayName != "test.mp4" {
		t.Errorf("video.DisplayName = %s, want test.mp4", videos[0].DisplayName)
	}

	updatedJob, _ := repo.GetJob(ctx, job.ID)
	if updatedJob.Status != JobStatusCompleted {
		t.Errorf("job status = %s, want %s", updatedJob.Status, JobStatusCompleted)
	}
	if updatedJob.Result != `{"found":1,"imported":1}` {
		t.Errorf("job result = %q", updatedJob.Result)
	}
}

func TestService_ExecuteScan_SkipsHiddenDirs(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	writeVideoFile(t, filepath.Join(tmpDir, "visible.mp4"))

	hiddenDir := filepath.Join(tmpDir, ".hidden")
	os.Mkdir(hiddenDir, 0755)
	writeVideoFile(t, filepath.Join(hiddenDir, "hidden.mp4"))

	folder, _ := svc.AddFolder(ctx, tmpDir, "Test", false)
	job, _ := svc.ScanFolder(ctx, folder.ID)
	svc.ExecuteScan(ctx, job.ID, folder.ID, folder.Path)

	videos, _ := repo.ListVideosByFolder(ctx, folder.ID)
	if len(videos) != 1 {
		t.Errorf("found %d videos, want 1 (should skip hidden)", len(videos))
	}
}

func TestService_ExecuteScan_SkipsNonVideoContent(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "fake.mp4"), []byte("renamed text file"), 0644)

	folder, _ := svc.AddFolder(ctx, tmpDir, "Test", false)
	job, _ := svc.ScanFolder(ctx, folder.ID)
	if err := svc.ExecuteScan(ctx, job.ID, folder.ID, folder.Path); err != nil {
		t.Fatalf("ExecuteScan() error = %v, bad files should be skipped not fatal", err)
	}

	updatedJob, _ := repo.GetJob(ctx, job.ID)
	if updatedJob.Status != JobStatusCompleted {
		t.Errorf("job status = %s, want %s", updatedJob.Status, JobStatusCompleted)
	}
	if updatedJob.Result != `{"found":1,"imported":0}` {
		t.Errorf("job result = %q", updatedJob.Result)
	}
}

func TestService_DetectScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)

	job, err := svc.DetectScenes(ctx, video.ID, 0.3, 0.5)
	if err != nil {
		t.Fatalf("DetectScenes() error = %v", err)
	}
	if job.Type != JobTypeDetect || job.Status != JobStatusPending {
		t.Errorf("job = %s/%s, want %s/%s", job.Type, job.Status, JobTypeDetect, JobStatusPending)
	}
	if !strings.Contains(job.Payload, "0.3") {
		t.Errorf("job.Payload = %q, want threshold recorded", job.Payload)
	}

	if _, err := svc.DetectScenes(ctx, video.ID, 0, 0); !errors.Is(err, ErrJobConflict) {
		t.Errorf("DetectScenes() with queued job error = %v, want ErrJobConflict", err)
	}
}

func TestService_DetectScenes_UnknownVideo(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)

	if _, err := svc.DetectScenes(context.Background(), "no-such-video", 0, 0); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("DetectScenes() error = %v, want ErrVideoNotFound", err)
	}
}

func TestService_DetectScenes_BadThreshold(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)

	if _, err := svc.DetectScenes(ctx, video.ID, 1.5, 0); err == nil {
		t.Error("DetectScenes() should reject threshold >= 1")
	}
	if _, err := svc.DetectScenes(ctx, video.ID, -0.2, 0); err == nil {
		t.Error("DetectScenes() should reject negative threshold")
	}
}

func TestService_SelectScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)
	createTestScenes(t, repo, video.ID, 0, 10, 20, 30)

	n, err := svc.SelectScenes(ctx, video.ID, []int{1, 3}, false, true)
	if err != nil {
		t.Fatalf("SelectScenes() error = %v", err)
	}
	if n != 2 {
		t.Errorf("SelectScenes() = %d, want 2", n)
	}

	n, err = svc.SelectScenes(ctx, video.ID, nil, true, false)
	if err != nil {
		t.Fatalf("SelectScenes() all error = %v", err)
	}
	if n != 3 {
		t.Errorf("SelectScenes() all = %d, want 3", n)
	}

	if _, err := svc.SelectScenes(ctx, "no-such-video", []int{1}, false, true); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("SelectScenes() error = %v, want ErrVideoNotFound", err)
	}

	events, _ := svc.GetEvents(ctx, 10)
	found := false
	for _, e := range events {
		if e.Action == EventSelectionChanged {
			found = true
		}
	}
	if !found {
		t.Error("selection change should record an event")
	}
}

func TestService_GetScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.GetScenes(ctx, "no-such-video"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("GetScenes() error = %v, want ErrVideoNotFound", err)
	}

	video := createTestVideo(t, repo)
	createTestScenes(t, repo, video.ID, 0, 10, 20)

	scenes, err := svc.GetScenes(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetScenes() error = %v", err)
	}
	if len(scenes) != 2 {
		t.Errorf("GetScenes() = %d scenes, want 2", len(scenes))
	}
}

func TestService_ExportClips_NoScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	video := createTestVideo(t, repo)

	_, err := svc.ExportClips(context.Background(), video.ID, ExportPayload{})
	if !errors.Is(err, ErrNoScenes) {
		t.Errorf("ExportClips() error = %v, want ErrNoScenes", err)
	}
}

func TestService_ExportClips_NoneSelected(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	video := createTestVideo(t, repo)
	createTestScenes(t, repo, video.ID, 0, 10, 20)

	_, err := svc.ExportClips(context.Background(), video.ID, ExportPayload{})
	if !errors.Is(err, ErrNoneSelected) {
		t.Errorf("ExportClips() error = %v, want ErrNoneSelected", err)
	}
}

func TestService_ExportClips_SelectedScenes(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)
	createTestScenes(t, repo, video.ID, 0, 10, 20)
	repo.SetSceneSelection(ctx, video.ID, []int{1}, true)

	job, err := svc.ExportClips(ctx, video.ID, ExportPayload{})
	if err != nil {
		t.Fatalf("ExportClips() error = %v", err)
	}
	if job.Type != JobTypeExport || job.Status != JobStatusPending {
		t.Errorf("job = %s/%s, want %s/%s", job.Type, job.Status, JobTypeExport, JobStatusPending)
	}

	if _, err := svc.ExportClips(ctx, video.ID, ExportPayload{}); !errors.Is(err, ErrJobConflict) {
		t.Errorf("ExportClips() with queued job error = %v, want ErrJobConflict", err)
	}
}

func TestService_ExportClips_ExplicitNumbers(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)
	createTestScenes(t, repo, video.ID, 0, 10, 20)

	if _, err := svc.ExportClips(ctx, video.ID, ExportPayload{SceneNumbers: []int{5}}); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("ExportClips() error = %v, want ErrSceneNotFound", err)
	}

	job, err := svc.ExportClips(ctx, video.ID, ExportPayload{SceneNumbers: []int{2}})
	if err != nil {
		t.Fatalf("ExportClips() error = %v", err)
	}
	if !strings.Contains(job.Payload, `"scene_numbers":[2]`) {
		t.Errorf("job.Payload = %q, want scene numbers recorded", job.Payload)
	}
}

func TestService_PublishClip(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	video := createTestVideo(t, repo)
	scenes := createTestScenes(t, repo, video.ID, 0, 10)

	if _, err := svc.PublishClip(ctx, "no-such-scene"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("PublishClip() error = %v, want ErrSceneNotFound", err)
	}

	if _, err := svc.PublishClip(ctx, scenes[0].ID); !errors.Is(err, ErrNotExported) {
		t.Errorf("PublishClip() error = %v, want ErrNotExported", err)
	}

	repo.UpdateSceneExport(ctx, scenes[0].ID, "/exports/clip_scene_01.mp4")

	job, err := svc.PublishClip(ctx, scenes[0].ID)
	if err != nil {
		t.Fatalf("PublishClip() error = %v", err)
	}
	if job.Type != JobTypePublish || job.Status != JobStatusPending {
		t.Errorf("job = %s/%s, want %s/%s", job.Type, job.Status, JobTypePublish, JobStatusPending)
	}
	if !strings.Contains(job.Payload, scenes[0].ID) {
		t.Errorf("job.Payload = %q, want scene id recorded", job.Payload)
	}
	if job.VideoID != video.ID {
		t.Errorf("job.VideoID = %s, want %s", job.VideoID, video.ID)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"video.mp4", true},
		{"video.MP4", true},
		{"video.mov", true},
		{"video.mkv", true},
		{"video.avi", true},
		{"document.pdf", false},
		{"image.jpg", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := IsVideoFile(tt.filename); got != tt.want {
				t.Errorf("IsVideoFile(%s) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
