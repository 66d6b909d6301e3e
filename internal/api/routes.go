package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/auraclip/auraclip-agent/internal/library"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())
	r.Use(middleware.GetHead)

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/videos", importVideoHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))
		r.Delete("/videos/{id}", deleteVideoHandler(cfg))
		r.Post("/videos/{id}/detect", detectHandler(cfg))
		r.Get("/videos/{id}/scenes", listScenesHandler(cfg))
		r.Post("/videos/{id}/scenes/select", selectScenesHandler(cfg))
		r.Get("/videos/{id}/scenes/{number}/thumbnail", thumbnailHandler(cfg))
		r.Post("/videos/{id}/export", exportHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Post("/folders", addFolderHandler(cfg))
		r.Get("/folders", listFoldersHandler(cfg))
		r.Delete("/folders/{id}", deleteFolderHandler(cfg))
		r.Post("/folders/{id}/scan", scanFolderHandler(cfg))

		r.Get("/events", listEventsHandler(cfg))

		r.Get("/playback/video", playbackHandler(cfg))
		r.Get("/clips/{sceneID}/download", downloadClipHandler(cfg))
		r.Post("/clips/{sceneID}/publish", publishClipHandler(cfg))
	})

	return r
}

// writeServiceError maps library sentinel errors onto status codes.
// fallback is the handler's status for anything unmapped.
func writeServiceError(w http.ResponseWriter, err error, fallback int) {
	switch {
	case errors.Is(err, library.ErrVideoNotFound),
		errors.Is(err, library.ErrFolderNotFound),
		errors.Is(err, library.ErrSceneNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, library.ErrJobConflict):
		WriteError(w, http.StatusConflict, err.Error(), "JOB_CONFLICT")
	case errors.Is(err, library.ErrNoScenes),
		errors.Is(err, library.ErrNoneSelected),
		errors.Is(err, library.ErrNotExported):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case fallback == http.StatusInternalServerError:
		WriteError(w, fallback, err.Error(), "INTERNAL_ERROR")
	default:
		WriteError(w, fallback, err.Error(), "BAD_REQUEST")
	}
}

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

// jobState names the agent state while a job of the given type runs.
// Thumbnails run as the tail of detection, so they report as detecting.
func jobState(jobType string) string {
	switch jobType {
	case library.JobTypeScan:
		return "scanning"
	case library.JobTypeDetect, library.JobTypeThumbnails:
		return "detecting"
	case library.JobTypeExport:
		return "exporting"
	case library.JobTypePublish:
		return "publishing"
	default:
		return "working"
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		videosCount, _ := cfg.Library.CountVideos(ctx)
		folders, _ := cfg.Library.GetFolders(ctx)
		jobs, _ := cfg.Library.GetJobs(ctx, 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			if j.Status == library.JobStatusRunning {
				state = jobState(j.Type)
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == library.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:        state,
			LastError:    lastError,
			VideosCount:  videosCount,
			FoldersCount: len(folders),
			JobsRunning:  jobsRunning,
			ActiveJob:    activeJob,
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(ctx)
			if err == nil && caps != nil {
				resp.Tools = &ToolsResponse{
					FFmpegAvailable:  caps.FFmpeg.Available,
					FFprobeAvailable: caps.FFprobe.Available,
					FFmpegVersion:    caps.FFmpeg.Version,
					FFprobeVersion:   caps.FFprobe.Version,
					LastProbeAt:      caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func importVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Library.ImportVideo(r.Context(), req.Path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, VideoToResponse(video))
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Library.GetVideos(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Library.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, VideoToResponse(video))
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Library.RemoveVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func detectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Library.DetectScenes(r.Context(), chi.URLParam(r, "id"), req.Threshold, req.MinSceneLen)
		if err != nil {
			writeServiceError(w, err, http.StatusBadRequest)
			return
		}

		WriteJSON(w, http.StatusAccepted, JobQueuedResponse{JobID: job.ID})
	}
}

func listScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "id")
		scenes, err := cfg.Library.GetScenes(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}

		resp := ScenesResponse{VideoID: videoID, Scenes: make([]SceneResponse, len(scenes))}
		for i, s := range scenes {
			resp.Scenes[i] = SceneToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func selectScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectScenesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if !req.All && len(req.Numbers) == 0 {
			WriteError(w, http.StatusBadRequest, "numbers or all is required", "BAD_REQUEST")
			return
		}

		n, err := cfg.Library.SelectScenes(r.Context(), chi.URLParam(r, "id"), req.Numbers, req.All, req.Selected)
		if err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}

		WriteJSON(w, http.StatusOK, SelectScenesResponse{Updated: n})
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil || number < 1 {
			WriteError(w, http.StatusBadRequest, "invalid scene number", "BAD_REQUEST")
			return
		}

		scene, err := cfg.Library.GetSceneByNumber(r.Context(), chi.URLParam(r, "id"), number)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if scene == nil {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}
		if scene.ThumbPath == "" {
			WriteError(w, http.StatusNotFound, "thumbnail not generated yet", "NOT_FOUND")
			return
		}

		if err := cfg.Streamer.ServeVideo(w, r, scene.ThumbPath); err != nil {
			cfg.Logger.Error("thumbnail error", "error", err, "scene_id", scene.ID)
		}
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Library.GetJobs(r.Context(), parseLimit(r, 50, 200))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Library.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func addFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddFolderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		folder, err := cfg.Library.AddFolder(r.Context(), req.Path, req.DisplayName, req.Watch)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, FolderToResponse(folder))
	}
}

func listFoldersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folders, err := cfg.Library.GetFolders(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list folders", "INTERNAL_ERROR")
			return
		}

		resp := FoldersResponse{Folders: make([]FolderResponse, len(folders))}
		for i, f := range folders {
			resp.Folders[i] = FolderToResponse(f)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Library.RemoveFolder(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func scanFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Library.ScanFolder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}

		WriteJSON(w, http.StatusAccepted, JobQueuedResponse{JobID: job.ID})
	}
}

func listEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := cfg.Library.GetEvents(r.Context(), parseLimit(r, 50, 500))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list events", "INTERNAL_ERROR")
			return
		}

		resp := EventsResponse{Events: make([]EventResponse, len(events))}
		for i, e := range events {
			resp.Events[i] = EventToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Library.GetVideo(r.Context(), videoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		if err := cfg.Streamer.ServeVideo(w, r, video.Path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "video_id", videoID)
		}
	}
}

func downloadClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID := chi.URLParam(r, "sceneID")
		scene, err := cfg.Library.GetScene(r.Context(), sceneID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if scene == nil {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}
		if scene.ClipPath == "" {
			WriteError(w, http.StatusConflict, "scene has not been exported yet", "CONFLICT")
			return
		}

		name := filepath.Base(scene.ClipPath)
		if err := cfg.Streamer.ServeDownload(w, r, scene.ClipPath, name); err != nil {
			cfg.Logger.Error("clip download error", "error", err, "scene_id", sceneID)
		}
	}
}

func publishClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Library.PublishClip(r.Context(), chi.URLParam(r, "sceneID"))
		if err != nil {
			writeServiceError(w, err, http.StatusInternalServerError)
			return
		}

		WriteJSON(w, http.StatusAccepted, JobQueuedResponse{JobID: job.ID})
	}
}
