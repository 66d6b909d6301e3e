// Package publish pushes exported clips to a remote share endpoint.
package publish

import (
	"context"
	"errors"
	"log/slog"
)

// Clip describes one exported clip file to upload.
type Clip struct {
	Path        string
	VideoID     string
	SceneNumber int
	Title       string
}

// Receipt is what the share endpoint returns for a stored clip.
type Receipt struct {
	ClipID string `json:"clip_id"`
	URL    string `json:"url"`
}

// Publisher uploads exported clips.
type Publisher interface {
	UploadClip(ctx context.Context, clip Clip) (*Receipt, error)
}

// ErrNotConfigured is returned by the stub when no share endpoint is set.
var ErrNotConfigured = errors.New("publishing not configured")

// StubPublisher stands in when publishing is disabled. It logs the
// request and fails the upload so the job reports why nothing happened
// instead of claiming success.
type StubPublisher struct {
	logger *slog.Logger
}

func NewStubPublisher(logger *slog.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (s *StubPublisher) UploadClip(ctx context.Context, clip Clip) (*Receipt, error) {
	s.logger.Info("publish stub: upload requested",
		"path", clip.Path,
		"scene_number", clip.SceneNumber,
	)
	return nil, ErrNotConfigured
}
