package playback

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testStreamer() *Streamer {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStreamer(logger)
}

func writeClip(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestStreamer_FullFile(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "0123456789abcdef" {
		t.Errorf("body = %q, want full file", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "16" {
		t.Errorf("Content-Length = %q, want 16", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("inline playback should not set Content-Disposition")
	}
}

func TestStreamer_PartialContent(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("body = %q, want %q", got, "2345")
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/16" {
		t.Errorf("Content-Range = %q, want %q", got, "bytes 2-5/16")
	}
	if got := rec.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q, want 4", got)
	}
}

func TestStreamer_SuffixRange(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	req.Header.Set("Range", "bytes=-4")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Body.String(); got != "cdef" {
		t.Errorf("body = %q, want %q", got, "cdef")
	}
}

func TestStreamer_UnsatisfiableRange(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	req.Header.Set("Range", "bytes=99-")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestedRangeNotSatisfiable)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */16" {
		t.Errorf("Content-Range = %q, want %q", got, "bytes */16")
	}
}

func TestStreamer_MalformedRangeServesFullFile(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	req.Header.Set("Range", "frames=0-10")
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "0123456789abcdef" {
		t.Errorf("body = %q, want full file", got)
	}
}

func TestStreamer_MissingFile(t *testing.T) {
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/playback/video", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, filepath.Join(t.TempDir(), "gone.mp4")); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStreamer_HeadOmitsBody(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodHead, "/playback/video", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeVideo(rec, req, path); err != nil {
		t.Fatalf("ServeVideo() error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Length"); got != "16" {
		t.Errorf("Content-Length = %q, want 16", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rec.Body.Len())
	}
}

func TestStreamer_DownloadSetsDisposition(t *testing.T) {
	path := writeClip(t, "clip.mp4", []byte("0123456789abcdef"))
	s := testStreamer()

	req := httptest.NewRequest(http.MethodGet, "/clips/scene-1/download", nil)
	rec := httptest.NewRecorder()

	if err := s.ServeDownload(rec, req, path, "beach_scene_02.mp4"); err != nil {
		t.Fatalf("ServeDownload() error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := `attachment; filename="beach_scene_02.mp4"`
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if got := rec.Body.String(); got != "0123456789abcdef" {
		t.Errorf("body = %q, want full file", got)
	}
}
