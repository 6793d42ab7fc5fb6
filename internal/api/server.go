package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JakeFAU/timeline-scraper/internal/metrics"
	"github.com/JakeFAU/timeline-scraper/internal/scrape"
	"github.com/JakeFAU/timeline-scraper/internal/timeline"
)

const maxBodyBytes = 1 << 20

// Submitter runs one scrape to completion.
type Submitter interface {
	Submit(ctx context.Context, targetURL string) (timeline.ScrapeResult, error)
}

// Options configures the request surface.
type Options struct {
	// AllowedHosts are accepted as target hosts along with their subdomains.
	AllowedHosts []string
	// ProfileBase is prefixed to usernames on GET /scrape/{username}.
	ProfileBase string
	Version     string
}

// Server wires HTTP handlers to the worker pool.
type Server struct {
	router    chi.Router
	submitter Submitter
	clock     timeline.Clock
	opts      Options
	validate  *validator.Validate
	logger    *zap.Logger
}

type scrapeRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type profileRequest struct {
	Username string `validate:"required,username"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	submitter Submitter,
	idGen timeline.IDGenerator,
	clock timeline.Clock,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ProfileBase == "" {
		opts.ProfileBase = "https://x.com"
	}
	s := &Server{
		submitter: submitter,
		clock:     clock,
		opts:      opts,
		validate:  newValidator(),
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(idGen))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/scrape", s.scrapeURL)
	r.Get("/scrape/{username}", s.scrapeProfile)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   s.opts.Version,
		"timestamp": timeline.FormatTime(s.clock.Now()),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) scrapeURL(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.reject(w, "", fmt.Errorf("%w: body must be JSON like {\"url\": \"https://x.com/username\"}", timeline.ErrValidation))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.reject(w, req.URL, validationError(err))
		return
	}
	if err := s.checkTarget(req.URL); err != nil {
		s.reject(w, req.URL, err)
		return
	}
	// The envelope echoes the url as requested; the worker normalizes it.
	s.run(w, r, req.URL)
}

func (s *Server) scrapeProfile(w http.ResponseWriter, r *http.Request) {
	req := profileRequest{Username: chi.URLParam(r, "username")}
	if err := s.validate.Struct(req); err != nil {
		s.reject(w, req.Username, validationError(err))
		return
	}
	s.run(w, r, strings.TrimSuffix(s.opts.ProfileBase, "/")+"/"+req.Username)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, target string) {
	res, err := s.submitter.Submit(r.Context(), target)
	if err != nil {
		s.logger.Warn("scrape failed",
			zap.String("url", target),
			zap.String("request_id", requestID(r.Context())),
			zap.String("kind", res.ErrorKind),
			zap.Error(err),
		)
	}
	writeJSON(w, statusFor(err), res)
}

func (s *Server) reject(w http.ResponseWriter, rawURL string, err error) {
	writeJSON(w, http.StatusBadRequest, timeline.NewFailure(rawURL, err, s.clock.Now(), nil))
}

// checkTarget normalizes raw and checks its host against the allow list.
func (s *Server) checkTarget(raw string) error {
	target, err := scrape.NormalizeURL(raw)
	if err != nil {
		return err
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %v", timeline.ErrValidation, err)
	}
	host := u.Hostname()
	for _, allowed := range s.opts.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed != "" && (host == allowed || strings.HasSuffix(host, "."+allowed)) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q is not an allowed profile host", timeline.ErrValidation, host)
}

// statusFor maps a scrape error to its HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, timeline.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, timeline.ErrWorkerTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, timeline.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}
