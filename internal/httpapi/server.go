package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
	apimw "github.com/hamed0406/scholarwatch/internal/httpapi/middleware"
	"github.com/hamed0406/scholarwatch/internal/sites"
)

type Checks interface {
	Invoke(ctx context.Context, siteID string) (string, error)
	RunAll(ctx context.Context, limit int) []domain.CheckResult
}

type Registry interface {
	All() []domain.Site
	First() domain.Site
}

type Options struct {
	Username     string
	PasswordHash []byte
	RPM          int
	Burst        int
	// AllowedOrigins defaults to any origin.
	AllowedOrigins []string
	Concurrency    int
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Server struct {
	Logger *zap.Logger
	Checks Checks
	Sites  Registry
	opts   Options
}

func NewServer(l *zap.Logger, checks Checks, reg Registry, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Server{Logger: l, Checks: checks, Sites: reg, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(s.opts.RPM, s.opts.Burst))
		r.Use(apimw.RequireBasic("scholarwatch", s.opts.Username, s.opts.PasswordHash))

		r.Get("/", s.handleDefault)
		r.Get("/check", s.handleCheckAll)
		r.Get("/check/{siteID}", s.handleCheck)
		r.Get("/sites", s.handleSites)
	})

	return r
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	s.invoke(w, r, string(s.Sites.First().ID))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.invoke(w, r, chi.URLParam(r, "siteID"))
}

// invoke always answers 200 with the status line, even when the check and
// the notification both failed. Only an unknown site is a client error.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request, siteID string) {
	line, err := s.Checks.Invoke(r.Context(), siteID)
	if err != nil {
		if errors.Is(err, sites.ErrUnknownSite) {
			http.Error(w, "unknown site", http.StatusNotFound)
			return
		}
		s.Logger.Error("check_invoke_error",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("site", siteID),
			zap.Error(err),
		)
		http.Error(w, "check error", http.StatusInternalServerError)
		return
	}

	s.Logger.Info("check_served",
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.String("site", siteID),
		zap.String("status", line),
	)
	writeText(w, line+"\n")
}

func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	results := s.Checks.RunAll(r.Context(), s.opts.Concurrency)

	var b strings.Builder
	for _, res := range results {
		b.WriteString(res.StatusLine)
		b.WriteByte('\n')
	}
	s.Logger.Info("check_all_served",
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Int("sites", len(results)),
	)
	writeText(w, b.String())
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Sites.All())
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
