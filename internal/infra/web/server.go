package web

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/infra/i18n"
	"voice-clone-studio/internal/infra/metrics"
	"voice-clone-studio/internal/infra/ratelimit"
	"voice-clone-studio/internal/usecase"
)

type Deps struct {
	Admin      usecase.AdminUseCase
	Clone      usecase.CloneUseCase
	Speech     adapter.SpeechSynthesizer
	Limiter    ratelimit.Limiter
	Auth       *AuthManager
	Translator *i18n.Translator

	AdminPassword     string
	Dev               bool
	RequestTimeout    time.Duration
	CloneTimeout      time.Duration
	MaxReferenceBytes int64
}

type Server struct {
	admin   usecase.AdminUseCase
	clone   usecase.CloneUseCase
	speech  adapter.SpeechSynthesizer
	limiter ratelimit.Limiter
	auth    *AuthManager
	tr      *i18n.Translator

	adminPassword  string
	dev            bool
	requestTimeout time.Duration
	cloneTimeout   time.Duration
	maxRefBytes    int64
	log            *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}
	if d.CloneTimeout <= 0 {
		d.CloneTimeout = 5 * time.Minute
	}
	if d.MaxReferenceBytes <= 0 {
		d.MaxReferenceBytes = usecase.DefaultMaxReferenceBytes
	}
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		admin:          d.Admin,
		clone:          d.Clone,
		speech:         d.Speech,
		limiter:        d.Limiter,
		auth:           d.Auth,
		tr:             d.Translator,
		adminPassword:  d.AdminPassword,
		dev:            d.Dev,
		requestTimeout: d.RequestTimeout,
		cloneTimeout:   d.CloneTimeout,
		maxRefBytes:    d.MaxReferenceBytes,
		log:            &l,
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.requestTimeout))
			r.Post("/activation/login", s.handleActivationLogin)
			r.Get("/activation/{code}", s.handleActivationInfo)
			r.Get("/speech/status", s.handleSpeechStatus)

			r.Post("/admin/login", s.handleAdminLogin)
			r.Post("/admin/logout", s.handleAdminLogout)

			r.Route("/admin/codes", func(r chi.Router) {
				r.Use(s.RequireAdmin)
				r.Get("/", s.handleListCodes)
				r.Post("/", s.handleGenerateCode)
				r.Get("/export", s.handleExportCodes)
				r.Post("/import", s.handleImportCodes)
				r.Get("/{code}", s.handleGetCode)
				r.Patch("/{code}", s.handleUpdateCode)
				r.Post("/{code}/disable", s.handleSetDisabled(true))
				r.Post("/{code}/enable", s.handleSetDisabled(false))
			})
		})

		r.With(Timeout(s.cloneTimeout)).Post("/clone", s.handleClone)
	})
	return r
}

// allow applies the login limiter. A limiter failure lets the request
// through and is logged.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), scope+":"+clientIP(r))
	if err != nil {
		s.log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimited(scope)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", s.tr.T("error.rate_limited"))
		return false
	}
	return true
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
