package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

const remotePollInterval = time.Second

// RemoteClient implements Pipeline against a running server's jobs API, so
// CLI commands can target a long-lived daemon instead of opening the local
// database a second time.
type RemoteClient struct {
	baseURL string
	client  *http.Client
	logger  arbor.ILogger

	mu      sync.Mutex
	waiting map[string]bool
}

var _ interfaces.Pipeline = (*RemoteClient)(nil)

func NewRemoteClient(logger arbor.ILogger, serverURL string) *RemoteClient {
	if logger == nil {
		logger = common.GetLogger()
	}
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return &RemoteClient{
		baseURL: base,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		waiting: make(map[string]bool),
	}
}

type remoteError struct {
	Status  int
	Message string
}

func (e *remoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

type enqueueRequest struct {
	Library string                 `json:"library"`
	Version string                 `json:"version"`
	Options *models.ScraperOptions `json:"options,omitempty"`
}

type enqueueResponse struct {
	JobID string `json:"jobId"`
}

type jobsResponse struct {
	Jobs  []*models.Job `json:"jobs"`
	Count int           `json:"count"`
}

type clearResponse struct {
	Count int `json:"count"`
}

// Start probes the jobs API so a misconfigured server URL surfaces on
// startup instead of at the first command.
func (r *RemoteClient) Start(ctx context.Context) error {
	if _, err := r.GetJobs(ctx, nil); err != nil {
		r.logger.Warn().Err(err).Str("server", r.baseURL).Msg("Jobs API not reachable")
	} else {
		r.logger.Info().Str("server", r.baseURL).Msg("Using remote pipeline")
	}
	return nil
}

func (r *RemoteClient) Stop() error {
	return nil
}

func (r *RemoteClient) EnqueueJob(ctx context.Context, library, version string, opts *models.ScraperOptions) (string, error) {
	req := enqueueRequest{Library: library, Version: version, Options: opts}
	var resp enqueueResponse
	if err := r.do(ctx, http.MethodPost, "/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// EnqueueJobWithStoredOptions posts without options; the server falls back
// to the version's stored scrape configuration.
func (r *RemoteClient) EnqueueJobWithStoredOptions(ctx context.Context, library, version string) (string, error) {
	req := enqueueRequest{Library: library, Version: version}
	var resp enqueueResponse
	if err := r.do(ctx, http.MethodPost, "/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (r *RemoteClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job)
	if isRemoteNotFound(err) {
		return nil, &JobNotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *RemoteClient) GetJobs(ctx context.Context, status *models.JobStatus) ([]*models.Job, error) {
	path := "/jobs"
	if status != nil {
		path += "?status=" + url.QueryEscape(string(*status))
	}
	var resp jobsResponse
	if err := r.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (r *RemoteClient) CancelJob(ctx context.Context, id string) error {
	err := r.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
	if isRemoteNotFound(err) {
		return &JobNotFoundError{ID: id}
	}
	return err
}

func (r *RemoteClient) ClearCompletedJobs(ctx context.Context) (int, error) {
	var resp clearResponse
	if err := r.do(ctx, http.MethodPost, "/jobs/clear-completed", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// WaitForJobCompletion polls the job until it settles. Only one waiter per
// job id is allowed at a time; concurrent waits on the same id are an error.
func (r *RemoteClient) WaitForJobCompletion(ctx context.Context, id string) error {
	r.mu.Lock()
	if r.waiting[id] {
		r.mu.Unlock()
		return &StateError{JobID: id, Message: "Already waiting for completion"}
	}
	r.waiting[id] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.waiting, id)
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(remotePollInterval)
	defer ticker.Stop()

	for {
		job, err := r.GetJob(ctx, id)
		if err != nil {
			return err
		}
		switch job.Status {
		case models.JobStatusCompleted, models.JobStatusCancelled:
			return nil
		case models.JobStatusFailed:
			if job.Error != "" {
				return fmt.Errorf("job %s failed: %s", id, job.Error)
			}
			return fmt.Errorf("job %s failed", id)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SetCallbacks is a no-op: job events stay on the server side, callers poll
// instead.
func (r *RemoteClient) SetCallbacks(cb interfaces.PipelineCallbacks) {
	r.logger.Debug().Msg("Remote pipeline does not deliver job callbacks")
}

func (r *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("jobs API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &remoteError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding jobs API response: %w", err)
		}
	}
	return nil
}

func isRemoteNotFound(err error) bool {
	var re *remoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}
