package client

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
	"time"
)

// DefaultBaseURL matches the backend's development address.
const DefaultBaseURL = "http://localhost:8000/api"

// ErrNoPostsSelected is returned by CreateJob when slugs is empty.
var ErrNoPostsSelected = errors.New("no posts selected")

// APIError is a non-2xx response. Detail holds the backend's "detail" field
// when the body carried one.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

// HTTPClient makes REST calls to the substackToKindle backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	// bulk has no overall timeout; archive downloads are bounded by the
	// caller's context only.
	bulk *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://localhost:8000/api").
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		bulk:    &http.Client{},
	}
}

// BaseURL returns the API root this client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// CheckSubdomain fetches /newsletter/{subdomain}/check. A missing newsletter
// comes back as an *APIError with the backend's detail message.
func (c *HTTPClient) CheckSubdomain(ctx context.Context, subdomain string) (*CheckResponse, error) {
	var out CheckResponse
	if err := c.get(ctx, "/newsletter/"+url.PathEscape(subdomain)+"/check", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPosts fetches the whole archive in one response.
func (c *HTTPClient) FetchPosts(ctx context.Context, subdomain string) (*PostListResponse, error) {
	var out PostListResponse
	if err := c.get(ctx, "/newsletter/"+url.PathEscape(subdomain)+"/posts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob sends POST /jobs and returns the new job id.
func (c *HTTPClient) CreateJob(ctx context.Context, subdomain string, slugs []string, sessionCookie string) (string, error) {
	if len(slugs) == 0 {
		return "", ErrNoPostsSelected
	}
	body := JobCreateRequest{Subdomain: subdomain, Slugs: slugs}
	if cookie := strings.TrimSpace(sessionCookie); cookie != "" {
		body.SessionCookie = &cookie
	}
	var out JobCreateResponse
	if err := c.post(ctx, "/jobs", body, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", fmt.Errorf("POST /jobs: response carried no job_id")
	}
	return out.JobID, nil
}

// GetJobStatus fetches /jobs/{id}; it is the fallback poller's request.
func (c *HTTPClient) GetJobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	var out JobStatusResponse
	if err := c.get(ctx, "/jobs/"+url.PathEscape(jobID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EmailStatus fetches /email/status.
func (c *HTTPClient) EmailStatus(ctx context.Context) (*EmailStatus, error) {
	var out EmailStatus
	if err := c.get(ctx, "/email/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendToKindle sends POST /jobs/{id}/send-to-kindle. A response with
// Success=false is returned as-is, not as an error.
func (c *HTTPClient) SendToKindle(ctx context.Context, jobID, kindleEmail string) (*SendToKindleResponse, error) {
	body := SendToKindleRequest{KindleEmail: strings.TrimSpace(kindleEmail)}
	var out SendToKindleResponse
	if err := c.post(ctx, "/jobs/"+url.PathEscape(jobID)+"/send-to-kindle", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the job's zip archive into w and returns the byte count.
// The request timeout configured for REST calls does not apply; cancel ctx
// to abort.
func (c *HTTPClient) Download(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	path := "/jobs/" + url.PathEscape(jobID) + "/download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(jobID), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.bulk.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, apiError(http.MethodGet, path, resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", jobID, err)
	}
	return n, nil
}

// JobStreamURL is the push endpoint for one job's progress events.
func (c *HTTPClient) JobStreamURL(jobID string) string {
	return c.baseURL + "/jobs/" + url.PathEscape(jobID) + "/stream"
}

// PostsStreamURL is the push endpoint for a newsletter's archive batches.
func (c *HTTPClient) PostsStreamURL(subdomain string) string {
	return c.baseURL + "/newsletter/" + url.PathEscape(subdomain) + "/posts/stream"
}

// DownloadURL is the direct link to a finished job's zip.
func (c *HTTPClient) DownloadURL(jobID string) string {
	return c.baseURL + "/jobs/" + url.PathEscape(jobID) + "/download"
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(http.MethodGet, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiError(http.MethodPost, path, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("POST %s: decode: %w", path, err)
		}
	}
	return nil
}

// apiError reads a bounded error body and pulls out FastAPI's "detail".
func apiError(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Detail) > 0 {
		var detail string
		if json.Unmarshal(parsed.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else {
			apiErr.Detail = string(parsed.Detail)
		}
	}
	return apiErr
}
