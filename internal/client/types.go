// Package client provides HTTP access and stream URLs for the substackToKindle backend.
// Types mirror the backend wire protocol without importing backend packages.
package client

import "encoding/json"

// Event names emitted on the catalog and job streams.
const (
	EventBatch        = "batch"
	EventDone         = "done"
	EventError        = "error"
	EventStatus       = "status"
	EventProgress     = "progress"
	EventPostComplete = "post_complete"
	EventWarning      = "warning"
	EventPing         = "ping"
)

// AudiencePaid marks posts that need a session cookie to fetch in full.
const AudiencePaid = "only_paid"

// Post is one entry of a newsletter archive.
type Post struct {
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Date      string `json:"date"`
	Subtitle  string `json:"subtitle,omitempty"`
	Audience  string `json:"audience,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
}

// Paid reports whether the post is restricted to paying subscribers.
func (p Post) Paid() bool {
	return p.Audience == AudiencePaid
}

// PostListResponse is returned by the non-streamed archive endpoint.
type PostListResponse struct {
	Subdomain string `json:"subdomain"`
	Posts     []Post `json:"posts"`
	Total     int    `json:"total"`
}

// CheckResponse is returned by the newsletter existence check.
type CheckResponse struct {
	Subdomain   string `json:"subdomain"`
	Exists      bool   `json:"exists"`
	SampleTitle string `json:"sample_title,omitempty"`
}

// JobStatus is the backend's lifecycle label for a conversion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// JobStatusResponse is both the poll response and the payload of the
// "status" stream event.
type JobStatusResponse struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	Total       int       `json:"total"`
	CurrentPost string    `json:"current_post,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// JobCreateRequest starts a conversion job. SessionCookie is sent as null
// when empty.
type JobCreateRequest struct {
	Subdomain     string   `json:"subdomain"`
	Slugs         []string `json:"slugs"`
	SessionCookie *string  `json:"session_cookie"`
}

// JobCreateResponse carries the id of a freshly created job.
type JobCreateResponse struct {
	JobID string `json:"job_id"`
}

// BatchPayload is one page of the streamed archive.
type BatchPayload struct {
	Posts      []Post `json:"posts"`
	TotalSoFar int    `json:"total_so_far"`
	Batch      int    `json:"batch"`
}

// CatalogDonePayload ends the archive stream.
type CatalogDonePayload struct {
	Total int `json:"total"`
}

// ErrorPayload is the body of an "error" event on either stream.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ProgressPayload is the body of a "progress" event. The backend sends the
// full status dict; only these fields are read.
type ProgressPayload struct {
	Progress    int    `json:"progress"`
	Total       int    `json:"total"`
	CurrentPost string `json:"current_post,omitempty"`
}

// PostCompletePayload reports one finished EPUB.
type PostCompletePayload struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Images int    `json:"images"`
}

// WarningPayload is opaque to the client beyond an optional message.
type WarningPayload struct {
	Slug    string          `json:"slug,omitempty"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// EmailStatus reports whether the backend can send to Kindle.
type EmailStatus struct {
	Configured bool `json:"configured"`
}

// SendToKindleRequest asks the backend to mail a job's EPUBs.
type SendToKindleRequest struct {
	KindleEmail string `json:"kindle_email"`
}

// SendToKindleResponse is the backend's verdict on a send request.
type SendToKindleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
