package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// UploadError represents an error response from the clip upload endpoint.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("clip upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx)
// are considered permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient uploads clip files to the configured share service as
// multipart form posts.
type HTTPClient struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

// UploadClip streams the clip file to the share endpoint. The body is
// piped so large clips never sit in memory whole.
func (c *HTTPClient) UploadClip(ctx context.Context, clip Clip) (*Receipt, error) {
	info, err := os.Stat(clip.Path)
	if err != nil {
		return nil, fmt.Errorf("clip file: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		mw.WriteField("video_id", clip.VideoID)
		mw.WriteField("scene_number", strconv.Itoa(clip.SceneNumber))
		if clip.Title != "" {
			mw.WriteField("title", clip.Title)
		}

		part, err := mw.CreateFormFile("file", filepath.Base(clip.Path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		f, err := os.Open(clip.Path)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		defer f.Close()
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := c.baseURL + "/api/clips"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Auraclip-Request-Id", uuid.NewString())
	if c.deviceID != "" {
		req.Header.Set("X-Auraclip-Device-Id", c.deviceID)
	}

	c.logger.Info("uploading clip",
		"url", url,
		"video_id", clip.VideoID,
		"scene_number", clip.SceneNumber,
		"size", humanize.Bytes(uint64(info.Size())),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var receipt Receipt
		if err := json.Unmarshal(respBody, &receipt); err != nil {
			return nil, fmt.Errorf("decode upload response: %w", err)
		}
		c.logger.Info("clip upload succeeded", "clip_id", receipt.ClipID, "clip_url", receipt.URL)
		return &receipt, nil
	}

	return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
}
