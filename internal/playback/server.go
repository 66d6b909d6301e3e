package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// FileStreamer is the surface the API consumes: inline playback of
// source videos and attachment downloads of exported clips.
type FileStreamer interface {
	ServeVideo(w http.ResponseWriter, r *http.Request, path string) error
	ServeDownload(w http.ResponseWriter, r *http.Request, path, name string) error
}

// Streamer serves library files with byte-range support so in-app
// players can seek without pulling the whole video.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

// ServeVideo streams a file for inline playback.
func (s *Streamer) ServeVideo(w http.ResponseWriter, r *http.Request, path string) error {
	return s.serve(w, r, path, "")
}

// ServeDownload sends a file as an attachment saved under name.
func (s *Streamer) ServeDownload(w http.ResponseWriter, r *http.Request, path, name string) error {
	return s.serve(w, r, path, fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Streamer) serve(w http.ResponseWriter, r *http.Request, path, disposition string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType)
	h.Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))
	if disposition != "" {
		h.Set("Content-Disposition", disposition)
	}

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiableRange) {
		s.logger.Debug("unsatisfiable range", "path", path, "range", r.Header.Get("Range"), "size", size)
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if errors.Is(err, ErrMalformedRange) {
		br = nil
	} else if err != nil {
		return err
	}

	if br == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		io.Copy(w, file)
		return nil
	}

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	h.Set("Content-Range", br.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}

	io.CopyN(w, file, br.Length())
	return nil
}
