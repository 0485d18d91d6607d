package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
	"github.com/vincent-yangyijie/triz-agent/internal/llm"
	"github.com/vincent-yangyijie/triz-agent/internal/pipeline"
	"github.com/vincent-yangyijie/triz-agent/internal/session"
	"github.com/vincent-yangyijie/triz-agent/internal/skill"
)

//go:embed templates/*.html
var templateFS embed.FS

// CookieName holds the browser session id.
const CookieName = "triz_session"

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Registry *skill.Registry
	Resolve  config.Resolver
	Logger   *slog.Logger
}

// Server is the browser front-end: one HTML page plus a JSON API.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	cfg        *config.Config
	registry   *skill.Registry
	resolve    config.Resolver
	sessions   *session.Store[*userState]
	markdown   *markdownRenderer
	page       *template.Template
	logger     *slog.Logger
}

// NewServer creates a new server
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Registry == nil {
		opts.Registry = skill.Default()
	}
	if opts.Resolve == nil {
		opts.Resolve = config.NewResolver(opts.Config)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		cfg:      opts.Config,
		registry: opts.Registry,
		resolve:  opts.Resolve,
		markdown: newMarkdownRenderer(),
		logger:   opts.Logger,
	}

	page, err := template.New("index.html").Funcs(template.FuncMap{
		"markdown": s.markdown.Render,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.page = page

	s.sessions = session.NewStore(s.newUserState, opts.Config.Server.SessionTTL, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Stateless routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/skills", s.handleSkills)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.Get("/api/session", s.handleSession)
		r.Delete("/api/session", s.handleEndSession)
		r.Put("/api/session/input", s.handleSetInput)
		r.Post("/api/upload", s.handleUpload)
		r.Put("/api/provider", s.handleProvider)
		r.Post("/api/clear", s.handleClear)

		// API: generation
		r.Post("/api/skills/{id}/run", s.handleRunSingle)
		r.Post("/api/run-all", s.handleRunAll)
		r.Get("/api/run-all/ws", s.handleRunAllWS)

		// API: export
		r.Get("/api/report", s.handleReport)
		r.Get("/api/skills/{id}/output", s.handleSkillOutput)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(opts.Config.Server.Host, fmt.Sprint(opts.Config.Server.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("TRIZ agent listening", "addr", "http://"+ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SweepSessions discards idle browser sessions until ctx is done.
func (s *Server) SweepSessions(ctx context.Context) {
	s.sessions.Run(ctx, time.Minute)
}

func (s *Server) newUserState(id string) *userState {
	st := &userState{
		session: pipeline.NewSession(id, s.cfg.Provider),
		limiter: rate.NewLimiter(rate.Limit(float64(s.cfg.Server.RunsPerMinute)/60.0), max(1, s.cfg.Server.RunsPerMinute/4)),
	}
	engine, err := s.newEngine(s.cfg.Provider)
	if err != nil {
		s.logger.Warn("provider not configured", "session", id, "provider", s.cfg.Provider, "error", err)
		st.failProvider(err)
		return st
	}
	st.useEngine(engine)
	return st
}

func (s *Server) newEngine(provider string) (*llm.Engine, error) {
	return llm.NewEngine(s.resolve, provider,
		llm.WithSystemRole(s.cfg.SystemRole),
		llm.WithTemperature(s.cfg.Temperature),
		llm.WithLogger(s.logger))
}

func (s *Server) controller(st *userState) *pipeline.Controller {
	return pipeline.NewController(s.registry, st.engine, pipeline.WithLogger(s.logger))
}
