// Package fakeapi is an in-process substackToKindle backend with scripted
// catalogs and jobs. It serves SSE and WebSocket framings on the same paths
// and can cut streams mid-flight to exercise degraded transports.
package fakeapi

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/logx"
)

const (
	defaultBatchSize    = 10
	defaultPingInterval = 15 * time.Second
)

// Newsletter is one scripted archive.
type Newsletter struct {
	Subdomain string
	Posts     []client.Post
	// BatchSize is the number of posts per batch event.
	BatchSize int
	// DropAfter cuts the catalog stream right after that many batches,
	// before done.
	DropAfter int
	// ErrorMessage, when set, is sent as an error event after the batches
	// instead of done.
	ErrorMessage string
	// Refuse answers catalog stream requests with 502.
	Refuse bool
	Job    JobScript
}

// Options configures a Server.
type Options struct {
	// Delay is the pause between scripted events. Zero streams as fast as
	// the subscriber reads.
	Delay           time.Duration
	PingInterval    time.Duration
	EmailConfigured bool
	Logger          pslog.Logger
}

// Server implements the REST and streaming endpoints under /api.
type Server struct {
	opts   Options
	log    pslog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	newsletters map[string]Newsletter
	jobs        map[string]*job
	sent        []SendRecord
}

// SendRecord is one accepted send-to-kindle request.
type SendRecord struct {
	JobID       string
	KindleEmail string
	Posts       int
}

// NewServer creates a server with no newsletters.
func NewServer(opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	log := opts.Logger
	if log == nil {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:        opts,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		newsletters: make(map[string]Newsletter),
		jobs:        make(map[string]*job),
	}
}

// AddNewsletter registers or replaces a newsletter.
func (s *Server) AddNewsletter(n Newsletter) {
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	n.Subdomain = strings.ToLower(n.Subdomain)
	s.mu.Lock()
	s.newsletters[n.Subdomain] = n
	s.mu.Unlock()
}

// Sent returns the accepted send-to-kindle requests.
func (s *Server) Sent() []SendRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SendRecord(nil), s.sent...)
}

// Close stops running job scripts.
func (s *Server) Close() {
	s.cancel()
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/newsletter/{sub}/check", s.handleCheck)
	mux.HandleFunc("GET /api/newsletter/{sub}/posts", s.handlePosts)
	mux.HandleFunc("GET /api/newsletter/{sub}/posts/stream", s.handlePostsStream)
	mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /api/jobs/{id}/stream", s.handleJobStream)
	mux.HandleFunc("GET /api/jobs/{id}/download", s.handleDownload)
	mux.HandleFunc("POST /api/jobs/{id}/send-to-kindle", s.handleSendToKindle)
	mux.HandleFunc("GET /api/email/status", s.handleEmailStatus)
	return securityHeaders(mux)
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) newsletter(sub string) (Newsletter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.newsletters[strings.ToLower(sub)]
	return n, ok
}

func (s *Server) job(id string) (*job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	sub := r.PathValue("sub")
	n, ok := s.newsletter(sub)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Newsletter '%s' not found", sub))
		return
	}
	resp := client.CheckResponse{Subdomain: n.Subdomain, Exists: true}
	if len(n.Posts) > 0 {
		resp.SampleTitle = n.Posts[0].Title
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	n, ok := s.newsletter(r.PathValue("sub"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Newsletter not found")
		return
	}
	writeJSON(w, http.StatusOK, client.PostListResponse{Subdomain: n.Subdomain, Posts: n.Posts, Total: len(n.Posts)})
}

func (s *Server) handlePostsStream(w http.ResponseWriter, r *http.Request) {
	n, ok := s.newsletter(r.PathValue("sub"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Newsletter not found")
		return
	}
	if n.Refuse {
		writeDetail(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	em, err := s.openEmitter(w, r)
	if err != nil {
		s.log.Warn("fakeapi stream open failed", "err", err)
		return
	}
	log := logx.WithSubdomain(s.log, n.Subdomain).With("framing", em.Framing())
	log.Debug("fakeapi catalog stream opened")

	total := 0
	batch := 0
	for start := 0; start < len(n.Posts); start += n.BatchSize {
		if !s.pause(em) {
			return
		}
		end := min(start+n.BatchSize, len(n.Posts))
		total += end - start
		batch++
		payload := client.BatchPayload{Posts: n.Posts[start:end], TotalSoFar: total, Batch: batch}
		if err := em.Emit(client.EventBatch, payload); err != nil {
			return
		}
		if n.DropAfter > 0 && batch == n.DropAfter {
			log.Debug("fakeapi catalog stream cut", "batches", batch)
			em.Cut()
			return
		}
	}
	if n.ErrorMessage != "" {
		_ = em.Emit(client.EventError, client.ErrorPayload{Message: n.ErrorMessage})
		em.Finish()
		return
	}
	_ = em.Emit(client.EventDone, client.CatalogDonePayload{Total: total})
	em.Finish()
}

// pause waits for the scripted delay; false means the subscriber left.
func (s *Server) pause(em emitter) bool {
	if s.opts.Delay <= 0 {
		return true
	}
	select {
	case <-em.Gone():
		return false
	case <-s.ctx.Done():
		return false
	case <-time.After(s.opts.Delay):
		return true
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req client.JobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	n, ok := s.newsletter(req.Subdomain)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Newsletter not found")
		return
	}
	if len(req.Slugs) == 0 {
		writeDetail(w, http.StatusBadRequest, "No posts selected")
		return
	}
	wanted := make(map[string]bool, len(req.Slugs))
	for _, slug := range req.Slugs {
		wanted[slug] = true
	}
	var posts []client.Post
	for _, p := range n.Posts {
		if wanted[p.Slug] {
			posts = append(posts, p)
		}
	}
	if len(posts) == 0 {
		writeDetail(w, http.StatusBadRequest, "None of the selected posts exist")
		return
	}

	cookie := req.SessionCookie != nil && strings.TrimSpace(*req.SessionCookie) != ""
	id := uuid.NewString()
	j := newJob(id, n.Subdomain, posts, cookie, n.Job, logx.WithJob(s.log, id))
	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()
	s.log.Info("fakeapi job created", "job_id", id, "subdomain", n.Subdomain, "posts", len(posts))
	writeJSON(w, http.StatusOK, client.JobCreateResponse{JobID: id})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, j.Status(s.ctx, s.opts.Delay))
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	n, _ := s.newsletter(j.subdomain)
	if n.Job.Refuse {
		writeDetail(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	em, err := s.openEmitter(w, r)
	if err != nil {
		s.log.Warn("fakeapi stream open failed", "err", err)
		return
	}
	log := j.log.With("framing", em.Framing())
	sub := j.Subscribe(s.ctx, s.opts.Delay)
	defer j.Unsubscribe(sub)

	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()
	sent := 0
	for {
		select {
		case <-em.Gone():
			return
		case <-s.ctx.Done():
			em.Cut()
			return
		case <-ping.C:
			if err := em.Emit(client.EventPing, struct{}{}); err != nil {
				return
			}
		case f, ok := <-sub.send:
			if !ok {
				em.Cut()
				return
			}
			if err := em.Emit(f.event, f.payload); err != nil {
				return
			}
			if f.event == client.EventDone {
				em.Finish()
				return
			}
			sent++
			if n.Job.DropAfter > 0 && sent >= n.Job.DropAfter {
				log.Debug("fakeapi job stream cut", "events", sent)
				em.Cut()
				return
			}
		}
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if !j.Completed() {
		writeDetail(w, http.StatusBadRequest, "Job not complete")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.subdomain+"-epubs.zip"))
	zw := zip.NewWriter(w)
	for _, p := range j.posts {
		f, err := zw.Create(p.Slug + ".epub")
		if err != nil {
			s.log.Warn("fakeapi zip entry failed", "err", err)
			return
		}
		_, _ = fmt.Fprintf(f, "%s\n%s\n", p.Title, p.Subtitle)
	}
	if err := zw.Close(); err != nil {
		s.log.Warn("fakeapi zip close failed", "err", err)
	}
}

func (s *Server) handleEmailStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, client.EmailStatus{Configured: s.opts.EmailConfigured})
}

func (s *Server) handleSendToKindle(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if !s.opts.EmailConfigured {
		writeDetail(w, http.StatusServiceUnavailable, "Email sending is not configured")
		return
	}
	if !j.Completed() {
		writeDetail(w, http.StatusBadRequest, "Job not complete")
		return
	}
	var req client.SendToKindleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	email := strings.TrimSpace(req.KindleEmail)
	if !strings.HasSuffix(strings.ToLower(email), "@kindle.com") {
		writeJSON(w, http.StatusOK, client.SendToKindleResponse{
			Success: false,
			Message: "Send failed",
			Error:   "Address must end with @kindle.com",
		})
		return
	}
	s.mu.Lock()
	s.sent = append(s.sent, SendRecord{JobID: j.id, KindleEmail: email, Posts: len(j.posts)})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, client.SendToKindleResponse{
		Success: true,
		Message: fmt.Sprintf("Sent %d EPUBs to %s", len(j.posts), email),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
