package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/auraclip/auraclip-agent/internal/api"
	"github.com/auraclip/auraclip-agent/internal/config"
	"github.com/auraclip/auraclip-agent/internal/db"
	"github.com/auraclip/auraclip-agent/internal/library"
	"github.com/auraclip/auraclip-agent/internal/logging"
)

const envToken = "AURACLIP_TOKEN"

var (
	flagAddr  string
	flagToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "agent address (default http://127.0.0.1:<port>)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "agent auth token (default $"+envToken+" or the local agent database)")
}

type agentClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newAgentClient resolves where the agent listens and how to
// authenticate: flags first, then the environment, then the token the
// local agent stored in its own database.
func newAgentClient() (*agentClient, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	addr := flagAddr
	if addr == "" {
		addr = fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())
	}

	token := flagToken
	if token == "" {
		token = os.Getenv(envToken)
	}
	if token == "" {
		token, err = tokenFromDatabase(cfg)
		if err != nil {
			return nil, err
		}
	}

	return &agentClient{
		baseURL: addr,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func tokenFromDatabase(cfg config.Config) (string, error) {
	database, err := db.New(cfg.DBPath(), logging.NewLogger("error"))
	if err != nil {
		return "", fmt.Errorf("no --token or $%s set, and the agent database is unreadable: %w", envToken, err)
	}
	defer database.Close()

	repo := library.NewRepository(database.Conn())
	token, err := repo.GetConfig(context.Background(), "auth_token")
	if err != nil || token == "" {
		return "", fmt.Errorf("agent has no auth token yet, start it with: auraclip serve")
	}
	return token, nil
}

func (c *agentClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent unreachable at %s (is it running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("agent returned %s", resp.Status)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("bad response from agent: %w", err)
		}
	}
	return nil
}

func (c *agentClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *agentClient) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *agentClient) del(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// waitForJob polls a queued job until it finishes, echoing progress
// to stderr so stdout stays parseable.
func waitForJob(ctx context.Context, c *agentClient, jobID string) (*api.JobResponse, error) {
	lastProgress := -1
	for {
		var job api.JobResponse
		if err := c.get(ctx, "/jobs/"+jobID, &job); err != nil {
			return nil, err
		}

		switch job.Status {
		case "completed":
			if lastProgress >= 0 {
				fmt.Fprintln(os.Stderr)
			}
			return &job, nil
		case "failed":
			if lastProgress >= 0 {
				fmt.Fprintln(os.Stderr)
			}
			return &job, fmt.Errorf("job failed: %s", job.Error)
		}

		if job.Progress != lastProgress {
			fmt.Fprintf(os.Stderr, "\r%s: %d%%", job.Type, job.Progress)
			lastProgress = job.Progress
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
