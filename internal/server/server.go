package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/clipnetic/clipnetic/internal/platform/auth"
	"github.com/clipnetic/clipnetic/internal/platform/logger"
	"github.com/clipnetic/clipnetic/internal/platform/metrics"
	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
	"github.com/clipnetic/clipnetic/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Processor runs one request end to end.
type Processor interface {
	Process(ctx context.Context, req usecase.Request) (usecase.Result, error)
}

type Options struct {
	// MaxInFlight caps concurrently running requests, background ones
	// included. Extra requests get 503.
	MaxInFlight int
	// Budget bounds one request end to end.
	Budget time.Duration
}

// Server exposes the pipeline over HTTP. Metrics may be nil.
type Server struct {
	proc     Processor
	notifier ports.Notifier
	auth     *auth.Authenticator
	metrics  *metrics.Metrics
	log      zerolog.Logger
	opt      Options

	slots *semaphore.Weighted

	// mu guards closing and jobs.Add against Shutdown's Wait.
	mu      sync.Mutex
	closing bool
	jobs    sync.WaitGroup

	// bg parents background jobs so shutdown can cancel them.
	bg     context.Context
	cancel context.CancelFunc
}

func New(proc Processor, n ports.Notifier, a *auth.Authenticator, m *metrics.Metrics, log zerolog.Logger, opt Options) *Server {
	if opt.MaxInFlight < 1 {
		opt.MaxInFlight = 1
	}
	if opt.Budget <= 0 {
		opt.Budget = 15 * time.Minute
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Server{
		proc:     proc,
		notifier: n,
		auth:     a,
		metrics:  m,
		log:      log,
		opt:      opt,
		slots:    semaphore.NewWeighted(int64(opt.MaxInFlight)),
		bg:       bg,
		cancel:   cancel,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(s.log))
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(s.auth.Middleware).Post("/process-video", s.processVideo)
	return r
}

type processRequest struct {
	S3Key          string `json:"s3_key"`
	UploadedFileID string `json:"uploaded_file_id"`
	WebhookURL     string `json:"webhook_url"`
}

type acceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) processVideo(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.log.Debug().Err(err).Msg("invalid process body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	body.S3Key = strings.TrimSpace(body.S3Key)
	if body.S3Key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "s3_key is required"})
		return
	}
	if body.WebhookURL != "" {
		if err := validateWebhook(body.WebhookURL); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}

	if !s.slots.TryAcquire(1) {
		if s.metrics != nil {
			s.metrics.IncBusy()
		}
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "busy: too many requests in flight"})
		return
	}

	req := usecase.Request{
		SourceKey:      body.S3Key,
		UploadedFileID: body.UploadedFileID,
		RequestID:      uuid.NewString(),
	}
	log := s.log.With().Str("request_id", req.RequestID).Str("s3_key", req.SourceKey).Logger()

	if body.WebhookURL == "" {
		defer s.slots.Release(1)
		ctx, cancel := context.WithTimeout(r.Context(), s.opt.Budget)
		defer cancel()

		res, err := s.run(ctx, req)
		if err != nil {
			status := statusFor(err)
			log.Error().Err(err).Int("status", status).Msg("process failed")
			writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: req.RequestID})
			return
		}
		writeJSON(w, http.StatusOK, res.Manifest)
		return
	}

	if !s.startJob() {
		s.slots.Release(1)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "shutting down", RequestID: req.RequestID})
		return
	}
	go func() {
		defer s.jobs.Done()
		defer s.slots.Release(1)
		s.background(req, body.WebhookURL, log)
	}()
	log.Info().Msg("accepted for background processing")
	writeJSON(w, http.StatusAccepted, acceptedResponse{RequestID: req.RequestID, Status: "accepted"})
}

// background runs a request detached from the HTTP call and reports the
// outcome to the webhook, success or not.
func (s *Server) background(req usecase.Request, webhookURL string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(s.bg, s.opt.Budget)
	defer cancel()

	res, err := s.run(ctx, req)
	note := types.Notification{
		UploadedFileID: req.UploadedFileID,
		SourceKey:      req.SourceKey,
		Clips:          res.Manifest.Clips,
	}
	if note.Clips == nil {
		note.Clips = []types.ManifestClip{}
	}
	if err != nil {
		log.Error().Err(err).Msg("background process failed")
		msg := err.Error()
		note.Error = &msg
	}

	// The job context may be spent; the callback gets its own deadline.
	nctx, ncancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer ncancel()
	if err := s.notifier.Notify(nctx, webhookURL, note); err != nil {
		log.Error().Err(err).Msg("webhook notify failed")
		return
	}
	log.Info().Int("clips", len(note.Clips)).Msg("webhook notified")
}

func (s *Server) run(ctx context.Context, req usecase.Request) (usecase.Result, error) {
	finish := func(string) {}
	if s.metrics != nil {
		finish = s.metrics.JobStarted()
	}
	res, err := s.proc.Process(ctx, req)
	finish(outcome(err))
	return res, err
}

func (s *Server) startJob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.jobs.Add(1)
	return true
}

// Shutdown stops accepting background jobs and waits for running ones. When
// ctx ends first the jobs are canceled and Shutdown waits for them to unwind.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("background jobs canceled: %w", ctx.Err())
	}
}

func validateWebhook(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.New("webhook_url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("webhook_url must use http or https")
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrRetrieval), errors.Is(err, types.ErrTranscription):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrRetrieval):
		return "retrieval"
	case errors.Is(err, types.ErrTranscription):
		return "transcription"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
