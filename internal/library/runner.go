package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/auraclip/auraclip-agent/internal/export"
	"github.com/auraclip/auraclip-agent/internal/media"
	"github.com/auraclip/auraclip-agent/internal/publish"
)

// RunnerOptions carries the detection and export defaults jobs fall
// back to when their payload leaves a field unset.
type RunnerOptions struct {
	Threshold    float64
	MinSceneLen  float64
	VideoCodec   string
	AudioCodec   string
	CRF          int
	MinClipLen   float64
	ExportsDir   string
	ThumbsDir    string
	PollInterval time.Duration
}

// Runner polls for pending jobs and executes them one at a time in
// creation order. Long ffmpeg work therefore never runs concurrently
// with itself, and the API stays responsive throughout.
type Runner struct {
	service   *Service
	repo      Repository
	ffmpeg    media.FFmpeg
	doctor    *media.CachedDoctor
	publisher publish.Publisher
	opts      RunnerOptions
	logger    *slog.Logger
	running   atomic.Bool
	paused    atomic.Bool
}

func NewRunner(service *Service, repo Repository, ffmpeg media.FFmpeg, doctor *media.CachedDoctor, publisher publish.Publisher, opts RunnerOptions, logger *slog.Logger) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Runner{
		service:   service,
		repo:      repo,
		ffmpeg:    ffmpeg,
		doctor:    doctor,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	count, err := r.repo.CountJobs(ctx, JobStatusRunning)
	if err != nil {
		return 0
	}
	return count
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case JobTypeScan:
		folder, err := r.repo.GetFolder(ctx, job.FolderID)
		if err != nil || folder == nil {
			r.fail(ctx, job.ID, "folder not found")
			return
		}
		if err := r.service.ExecuteScan(ctx, job.ID, folder.ID, folder.Path); err != nil {
			r.logger.Error("scan failed", "job_id", job.ID, "error", err)
		}

	case JobTypeDetect:
		r.processDetectJob(ctx, job)

	case JobTypeExport:
		r.processExportJob(ctx, job)

	case JobTypeThumbnails:
		r.processThumbnailJob(ctx, job)

	case JobTypePublish:
		r.processPublishJob(ctx, job)

	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.fail(ctx, job.ID, "unknown job type")
	}
}

func (r *Runner) processDetectJob(ctx context.Context, job *Job) {
	video, err := r.repo.GetVideo(ctx, job.VideoID)
	if err != nil || video == nil {
		r.fail(ctx, job.ID, "video not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	if !r.toolsReady(ctx, job.ID) {
		return
	}

	var payload DetectPayload
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			r.fail(ctx, job.ID, fmt.Sprintf("bad detect payload: %v", err))
			return
		}
	}
	threshold := payload.Threshold
	if threshold <= 0 {
		threshold = r.opts.Threshold
	}
	minLen := payload.MinSceneLen
	if minLen <= 0 {
		minLen = r.opts.MinSceneLen
	}

	duration, ok := r.ensureDuration(ctx, job.ID, video)
	if !ok {
		return
	}

	lastPct := -1
	cuts, err := r.ffmpeg.DetectScenes(ctx, video.Path, threshold, func(p media.Progress) {
		pct := int(p.OutTime / duration * 100)
		if pct > 99 {
			pct = 99
		}
		if pct != lastPct {
			lastPct = pct
			r.repo.UpdateJobProgress(ctx, job.ID, pct)
		}
	})
	if err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("scene detection failed: %v", err))
		return
	}

	scenes := buildScenes(video.ID, cuts, duration, minLen)
	if err := r.repo.ReplaceScenes(ctx, video.ID, scenes); err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("store scenes: %v", err))
		return
	}

	result, _ := json.Marshal(map[string]any{"scenes": len(scenes), "threshold": threshold})
	r.repo.UpdateJobResult(ctx, job.ID, string(result))
	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")

	r.service.RecordEvent(ctx, EventScenesDetected, video.ID, string(result))
	r.logger.Info("scene detection completed",
		"job_id", job.ID,
		"video_id", video.ID,
		"scenes", len(scenes),
		"threshold", threshold,
	)

	if len(scenes) > 0 {
		r.enqueueThumbnails(ctx, video.ID)
	}
}

func (r *Runner) processExportJob(ctx context.Context, job *Job) {
	video, err := r.repo.GetVideo(ctx, job.VideoID)
	if err != nil || video == nil {
		r.fail(ctx, job.ID, "video not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	if !r.toolsReady(ctx, job.ID) {
		return
	}

	var payload ExportPayload
	if job.Payload != "" {
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			r.fail(ctx, job.ID, fmt.Sprintf("bad export payload: %v", err))
			return
		}
	}

	outputDir := payload.OutputDir
	if outputDir == "" {
		outputDir = r.opts.ExportsDir
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			r.fail(ctx, job.ID, fmt.Sprintf("create exports dir: %v", err))
			return
		}
	}
	if err := export.ValidateOutputDir(outputDir); err != nil {
		r.fail(ctx, job.ID, err.Error())
		return
	}
	if err := export.EnsureWritable(outputDir); err != nil {
		r.fail(ctx, job.ID, err.Error())
		return
	}

	// Resolve the scene list now, not at enqueue time: the selection or
	// even the scene set may have changed while the job sat in queue.
	var scenes []*Scene
	if len(payload.SceneNumbers) > 0 {
		for _, n := range payload.SceneNumbers {
			sc, err := r.repo.GetSceneByNumber(ctx, video.ID, n)
			if err != nil || sc == nil {
				r.fail(ctx, job.ID, fmt.Sprintf("scene %d not found", n))
				return
			}
			scenes = append(scenes, sc)
		}
	} else {
		scenes, err = r.repo.ListSelectedScenes(ctx, video.ID)
		if err != nil {
			r.fail(ctx, job.ID, fmt.Sprintf("list scenes: %v", err))
			return
		}
		if len(scenes) == 0 {
			r.fail(ctx, job.ID, ErrNoneSelected.Error())
			return
		}
	}

	maxScene, err := r.repo.CountScenes(ctx, video.ID)
	if err != nil || maxScene == 0 {
		maxScene = len(scenes)
	}

	settings := export.Settings{
		OutputDir:  outputDir,
		VideoCodec: payload.VideoCodec,
		AudioCodec: payload.AudioCodec,
		CRF:        payload.CRF,
		MinClipLen: r.opts.MinClipLen,
	}
	if settings.VideoCodec == "" {
		settings.VideoCodec = r.opts.VideoCodec
	}
	if settings.AudioCodec == "" {
		settings.AudioCodec = r.opts.AudioCodec
	}
	if settings.CRF <= 0 {
		settings.CRF = r.opts.CRF
	}

	ranges := make([]export.SceneRange, 0, len(scenes))
	for _, sc := range scenes {
		ranges = append(ranges, export.SceneRange{SceneID: sc.ID, Number: sc.Number, Start: sc.Start, End: sc.End})
	}

	plan := export.BuildPlan(export.BaseName(video.Path), video.Duration, maxScene, ranges, settings)
	for _, sk := range plan.Skipped {
		r.logger.Warn("scene skipped", "job_id", job.ID, "scene", sk.Number, "reason", sk.Reason)
	}
	if len(plan.Clips) == 0 {
		r.fail(ctx, job.ID, "no clips to export after length checks")
		return
	}

	res := export.Result{OutputDir: outputDir, Skipped: plan.Skipped}
	total := len(plan.Clips)
	for i, clip := range plan.Clips {
		if ctx.Err() != nil {
			r.fail(ctx, job.ID, "interrupted")
			return
		}

		base := i * 100 / total
		span := clip.End - clip.Start
		lastPct := -1
		runRes, err := r.ffmpeg.ExtractClip(ctx, video.Path, media.CutSpec{
			Start:      clip.Start,
			End:        clip.End,
			Output:     clip.Output,
			VideoCodec: settings.VideoCodec,
			AudioCodec: settings.AudioCodec,
			CRF:        settings.CRF,
		}, func(p media.Progress) {
			if span <= 0 {
				return
			}
			frac := p.OutTime / span
			if frac > 1 {
				frac = 1
			}
			pct := base + int(frac*float64(100/total))
			if pct != lastPct && pct < 100 {
				lastPct = pct
				r.repo.UpdateJobProgress(ctx, job.ID, pct)
			}
		})
		if err != nil {
			res.Failed++
			if res.FirstError == "" {
				res.FirstError = err.Error()
			}
			r.logger.Error("clip export failed", "job_id", job.ID, "scene", clip.Number, "error", err)
			continue
		}

		if err := r.repo.UpdateSceneExport(ctx, clip.SceneID, clip.Output); err != nil {
			r.logger.Warn("failed to record clip path", "scene", clip.Number, "error", err)
		}
		res.Exported++
		res.ClipPaths = append(res.ClipPaths, clip.Output)
		r.repo.UpdateJobProgress(ctx, job.ID, (i+1)*100/total)
		r.logger.Info("clip exported",
			"job_id", job.ID,
			"scene", clip.Number,
			"output", clip.Output,
			"took", runRes.Duration,
		)
	}

	resultJSON, _ := json.Marshal(res)
	r.repo.UpdateJobResult(ctx, job.ID, string(resultJSON))
	r.service.RecordEvent(ctx, EventClipsExported, video.ID, res.Message())

	if res.Exported == 0 {
		r.fail(ctx, job.ID, res.FirstError)
		return
	}

	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("export completed", "job_id", job.ID, "summary", res.Message())
}

func (r *Runner) processThumbnailJob(ctx context.Context, job *Job) {
	video, err := r.repo.GetVideo(ctx, job.VideoID)
	if err != nil || video == nil {
		r.fail(ctx, job.ID, "video not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	if !r.toolsReady(ctx, job.ID) {
		return
	}

	scenes, err := r.repo.ListScenes(ctx, video.ID)
	if err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("list scenes: %v", err))
		return
	}
	if len(scenes) == 0 {
		r.repo.UpdateJobResult(ctx, job.ID, `{"thumbnails":0}`)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
		return
	}

	dir := filepath.Join(r.opts.ThumbsDir, video.ID)
	written, failed := 0, 0
	for i, sc := range scenes {
		if ctx.Err() != nil {
			r.fail(ctx, job.ID, "interrupted")
			return
		}

		out := filepath.Join(dir, fmt.Sprintf("scene_%02d.jpg", sc.Number))
		if err := r.ffmpeg.Thumbnail(ctx, video.Path, out, midpoint(sc)); err != nil {
			failed++
			r.logger.Warn("thumbnail failed", "job_id", job.ID, "scene", sc.Number, "error", err)
		} else {
			if err := r.repo.UpdateSceneThumb(ctx, sc.ID, out); err != nil {
				r.logger.Warn("failed to record thumb path", "scene", sc.Number, "error", err)
			}
			written++
		}
		r.repo.UpdateJobProgress(ctx, job.ID, (i+1)*100/len(scenes))
	}

	result, _ := json.Marshal(map[string]int{"thumbnails": written, "failed": failed})
	r.repo.UpdateJobResult(ctx, job.ID, string(result))
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	r.logger.Info("thumbnails generated", "job_id", job.ID, "video_id", video.ID, "written", written, "failed", failed)
}

func (r *Runner) processPublishJob(ctx context.Context, job *Job) {
	if r.publisher == nil {
		r.fail(ctx, job.ID, "publishing not configured")
		return
	}

	video, err := r.repo.GetVideo(ctx, job.VideoID)
	if err != nil || video == nil {
		r.fail(ctx, job.ID, "video not found")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	var payload PublishPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("bad publish payload: %v", err))
		return
	}

	scene, err := r.repo.GetScene(ctx, payload.SceneID)
	if err != nil || scene == nil {
		r.fail(ctx, job.ID, "scene not found")
		return
	}
	if scene.ClipPath == "" {
		r.fail(ctx, job.ID, ErrNotExported.Error())
		return
	}
	if _, err := os.Stat(scene.ClipPath); err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("clip file missing: %s", scene.ClipPath))
		return
	}

	receipt, err := r.publisher.UploadClip(ctx, publish.Clip{
		Path:        scene.ClipPath,
		VideoID:     video.ID,
		SceneNumber: scene.Number,
		Title:       fmt.Sprintf("%s scene %d", video.DisplayName, scene.Number),
	})
	if err != nil {
		r.fail(ctx, job.ID, fmt.Sprintf("upload failed: %v", err))
		return
	}

	result, _ := json.Marshal(receipt)
	r.repo.UpdateJobResult(ctx, job.ID, string(result))
	r.repo.UpdateJobProgress(ctx, job.ID, 100)
	r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")

	r.service.RecordEvent(ctx, EventClipPublished, video.ID, string(result))
	r.logger.Info("clip published", "job_id", job.ID, "scene", scene.Number, "clip_url", receipt.URL)
}

// toolsReady fails the job when the doctor reports ffmpeg or ffprobe
// missing. Detection and export cannot degrade gracefully without them.
func (r *Runner) toolsReady(ctx context.Context, jobID string) bool {
	if r.ffmpeg == nil || r.doctor == nil {
		r.fail(ctx, jobID, "media tools not configured")
		return false
	}

	caps, err := r.doctor.Get(ctx)
	if err != nil {
		r.fail(ctx, jobID, fmt.Sprintf("doctor probe failed: %v", err))
		return false
	}
	if !caps.Ready() {
		r.fail(ctx, jobID, "ffmpeg or ffprobe not available")
		return false
	}
	return true
}

// ensureDuration re-probes a video whose import-time probe failed.
// Scene boundaries cannot be computed without a known duration.
func (r *Runner) ensureDuration(ctx context.Context, jobID string, video *Video) (float64, bool) {
	if video.Duration > 0 {
		return video.Duration, true
	}

	info, err := r.ffmpeg.Probe(ctx, video.Path)
	if err != nil || info.Duration <= 0 {
		r.fail(ctx, jobID, "cannot determine video duration")
		return 0, false
	}

	video.Duration = info.Duration
	video.FPS = info.FPS
	video.Width = info.Width
	video.Height = info.Height
	video.ProbeError = ""
	if err := r.repo.UpdateVideoMedia(ctx, video); err != nil {
		r.logger.Warn("failed to store refreshed media info", "video_id", video.ID, "error", err)
	}
	return info.Duration, true
}

func (r *Runner) enqueueThumbnails(ctx context.Context, videoID string) {
	active, err := r.repo.HasActiveJob(ctx, JobTypeThumbnails, videoID)
	if err != nil || active {
		return
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeThumbnails,
		Status:    JobStatusPending,
		VideoID:   videoID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateJob(ctx, job); err != nil {
		r.logger.Warn("failed to enqueue thumbnail job", "video_id", videoID, "error", err)
	}
}

func (r *Runner) fail(ctx context.Context, jobID, msg string) {
	if err := r.repo.UpdateJobStatus(ctx, jobID, JobStatusFailed, msg); err != nil {
		r.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}
