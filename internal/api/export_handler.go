package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auraclip/auraclip-agent/internal/export"
	"github.com/auraclip/auraclip-agent/internal/library"
)

// exportHandler queues an mp4 clip export job, or writes an EDL
// synchronously; an EDL references the source media and needs no
// transcode, so there is nothing to run in the background.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		switch strings.ToLower(req.Format) {
		case "", "mp4":
			exportClips(cfg, w, r, req)
		case "edl":
			exportEDL(cfg, w, r, req)
		default:
			WriteError(w, http.StatusBadRequest, "format must be mp4 or edl", "BAD_REQUEST")
		}
	}
}

func exportClips(cfg ServerConfig, w http.ResponseWriter, r *http.Request, req ExportRequest) {
	payload := library.ExportPayload{
		SceneNumbers: req.SceneNumbers,
		OutputDir:    req.OutputDir,
		VideoCodec:   req.VideoCodec,
		AudioCodec:   req.AudioCodec,
		CRF:          req.CRF,
	}

	job, err := cfg.Library.ExportClips(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}

	WriteJSON(w, http.StatusAccepted, JobQueuedResponse{JobID: job.ID})
}

func exportEDL(cfg ServerConfig, w http.ResponseWriter, r *http.Request, req ExportRequest) {
	ctx := r.Context()
	videoID := chi.URLParam(r, "id")

	video, err := cfg.Library.GetVideo(ctx, videoID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	if video == nil {
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
		return
	}

	if err := export.ValidateOutputDir(req.OutputDir); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}

	scenes, err := cfg.Library.GetScenes(ctx, videoID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	if len(scenes) == 0 {
		writeServiceError(w, library.ErrNoScenes, http.StatusConflict)
		return
	}

	maxNumber := 0
	byNumber := make(map[int]*library.Scene, len(scenes))
	for _, sc := range scenes {
		byNumber[sc.Number] = sc
		if sc.Number > maxNumber {
			maxNumber = sc.Number
		}
	}

	var picked []*library.Scene
	if len(req.SceneNumbers) > 0 {
		for _, n := range req.SceneNumbers {
			sc, ok := byNumber[n]
			if !ok {
				WriteError(w, http.StatusNotFound, library.ErrSceneNotFound.Error(), "NOT_FOUND")
				return
			}
			picked = append(picked, sc)
		}
	} else {
		for _, sc := range scenes {
			if sc.Selected {
				picked = append(picked, sc)
			}
		}
		if len(picked) == 0 {
			writeServiceError(w, library.ErrNoneSelected, http.StatusConflict)
			return
		}
	}

	base := export.BaseName(video.Path)
	projectName := export.SanitizeName(req.ProjectName, 120)
	if projectName == "" {
		projectName = base
	}

	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = video.FPS
	}
	if frameRate <= 0 {
		frameRate = 30.0
	}

	clips := make([]export.ResolvedClip, 0, len(picked))
	for _, sc := range picked {
		clips = append(clips, export.ResolvedClip{
			Name:        export.ClipName(base, sc.Number, maxNumber),
			MediaPath:   video.Path,
			Start:       sc.Start,
			End:         sc.End,
			SceneNumber: sc.Number,
		})
	}

	edl := export.GenerateEDL(clips, projectName, frameRate)
	outputPath := filepath.Join(req.OutputDir, projectName+".edl")
	if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
		return
	}

	detail, _ := json.Marshal(map[string]any{"output_path": outputPath, "clips": len(clips)})
	cfg.Library.RecordEvent(ctx, library.EventEDLExported, videoID, string(detail))

	WriteJSON(w, http.StatusOK, EDLResponse{
		Status:     "ok",
		Format:     "edl",
		OutputPath: outputPath,
		ClipCount:  len(clips),
	})
}
