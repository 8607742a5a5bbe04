package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"budgetmail/internal/cache"
	"budgetmail/internal/core"
	applog "budgetmail/internal/log"
	"budgetmail/internal/middleware/ratelimit"
	"budgetmail/internal/middleware/security"
	"budgetmail/internal/middleware/trace"
	"budgetmail/internal/services"
	appweb "budgetmail/web"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Accounts is the account logic the handlers drive.
type Accounts interface {
	Signup(ctx context.Context, username, email, password string) (core.User, error)
	Login(ctx context.Context, email, password string) (core.User, string, error)
	SetBudget(ctx context.Context, u core.User, rawBudget, rawEmail string) (core.BudgetSettings, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CheckResetToken(ctx context.Context, token string) (core.User, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// DashboardSource refreshes and returns a user's dashboard data.
type DashboardSource interface {
	Refresh(ctx context.Context, userID int64, now time.Time) (services.Dashboard, error)
}

// UserLookup loads the user behind a session.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (core.User, error)
}

// Sessions validates session tokens.
type Sessions interface {
	ParseSession(token string) (int64, error)
	SessionTTL() time.Duration
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds presentation and transport settings.
type Options struct {
	Addr         string
	AppName      string
	Currency     string
	CookieSecure bool
	Location     *time.Location
	Logger       *applog.Logger
}

// Deps are the services the server routes requests to.
type Deps struct {
	Accounts  Accounts
	Dashboard DashboardSource
	Users     UserLookup
	Sessions  Sessions
	DB        Pinger
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *applog.Logger
	opts      Options
	deps      Deps

	userCache    *cache.LRUCache[core.User]
	cacheManager *cache.Manager
	authLimiter  *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer parses templates and wires routes, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.AppName == "" {
		opts.AppName = "ExpenserFX"
	}
	if opts.Currency == "" {
		opts.Currency = "₹"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:    tmpl,
		logger:       opts.Logger.WithComponent(applog.ComponentHTTP),
		opts:         opts,
		deps:         deps,
		userCache:    cache.NewLRUCache[core.User](1000, time.Minute),
		cacheManager: cache.NewManager(),
		authLimiter:  ratelimit.NewLimiter(ratelimit.AuthConfig()),
		detector:     security.NewDetector(),
		started:      time.Now(),
		now:          time.Now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	s.cacheManager.Register(s.userCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(trace.LoggerMiddleware(s.opts.Logger))
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.loadUser)
		r.Use(s.authLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost))

		r.Get("/", s.handleHome)
		r.Get("/signup", s.handleSignupPage)
		r.Post("/signup", s.handleSignup)
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/logout", s.handleLogout)
		r.Post("/logout", s.handleLogout)
		r.Get("/forgot-password", s.handleForgotPage)
		r.Post("/forgot-password", s.handleForgot)
		r.Get("/reset-password/{token}", s.handleResetPage)
		r.Post("/reset-password/{token}", s.handleReset)
	})

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.loadUser)
		r.Use(s.requireUser)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/api/data", s.handleAPIData)
		r.Post("/set_budget", s.handleSetBudget)
	})

	r.NotFound(s.loadUser(http.HandlerFunc(s.handleNotFound)).ServeHTTP)
	return r
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	http.Error(w, "Too many attempts. Please try again in a minute.", http.StatusTooManyRequests)
}

// Shutdown stops background cleanup and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.authLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe runs the server until Shutdown. http.ErrServerClosed is
// reported as nil.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
