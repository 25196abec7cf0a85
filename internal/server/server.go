package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/courtlens/courtlens/internal/api"
	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/config"
	"github.com/courtlens/courtlens/internal/court"
	"github.com/courtlens/courtlens/internal/querylog"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// Server owns the HTTP listener and the resolver stack behind it.
type Server struct {
	cfg      *config.Config
	store    *querylog.Store
	logger   *logger.Logger
	router   *gin.Engine
	resolver resolver.Resolver
	sessions *captcha.SessionStore
	closers  []func() error
}

// New assembles the resolver stack selected by cfg and mounts the API.
func New(cfg *config.Config, db *gorm.DB, logger *logger.Logger) (*Server, error) {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	s := &Server{
		cfg:      cfg,
		store:    querylog.NewStore(db, logger),
		logger:   logger,
		router:   router,
		sessions: captcha.NewSessionStore(cfg.ChallengeTTL),
	}

	res, err := s.buildResolver()
	if err != nil {
		return nil, err
	}
	s.resolver = resolver.WithMinLatency(res, cfg.ResolveMinLatency)
	logger.Info("resolver configured",
		"strategy", cfg.ResolverStrategy,
		"min_latency", cfg.ResolveMinLatency.String())

	pdf, err := court.NewPDFFetcher(cfg.CourtBaseURL, cfg.UserAgent, cfg.PDFFetchTimeout, logger)
	if err != nil {
		return nil, err
	}

	api.SetupRoutes(router, s.resolver, s.store, s.sessions, pdf, logger, cfg)
	return s, nil
}

// buildResolver constructs the strategy named in the configuration. The
// choice is made once; nothing rebinds it at request time.
func (s *Server) buildResolver() (resolver.Resolver, error) {
	switch s.cfg.ResolverStrategy {
	case config.StrategyLive:
		return s.buildLiveResolver()
	case config.StrategyCategoryRandom:
		records, err := s.loadCaseTable()
		if err != nil {
			return nil, err
		}
		return resolver.NewCategoryRandomLookup(records), nil
	default:
		records, err := s.loadCaseTable()
		if err != nil {
			return nil, err
		}
		return resolver.NewExactLookup(records), nil
	}
}

func (s *Server) loadCaseTable() ([]resolver.CaseRecord, error) {
	if s.cfg.LookupSeedPath == "" {
		return resolver.DefaultCaseTable(), nil
	}
	records, err := resolver.LoadCaseTable(s.cfg.LookupSeedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load case table from %s: %w", s.cfg.LookupSeedPath, err)
	}
	s.logger.Info("case table loaded", "path", s.cfg.LookupSeedPath, "records", len(records))
	return records, nil
}

func (s *Server) buildLiveResolver() (resolver.Resolver, error) {
	cfg := s.cfg

	var (
		gateway resolver.CourtGateway
		err     error
	)
	switch cfg.FetchMode {
	case config.FetchModeBrowser:
		gateway, err = court.NewBrowserGateway(court.BrowserOptions{
			BaseURL:     cfg.CourtBaseURL,
			UserAgent:   cfg.UserAgent,
			BrowserPath: cfg.BrowserPath,
			Headless:    cfg.HeadlessMode,
			Devtools:    cfg.LogLevel == "debug",
			Mode:        s.challengeKind(),
		}, s.logger)
	default:
		gateway, err = court.NewHTTPGateway(cfg.CourtBaseURL, cfg.UserAgent, cfg.FetchTimeout, s.challengeKind(), s.logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize court gateway: %w", err)
	}
	s.closers = append(s.closers, gateway.Close)

	var solver captcha.Solver
	if cfg.CaptchaMode == config.CaptchaModeImage {
		switch cfg.CaptchaSolver {
		case config.SolverManual:
			solver = captcha.NewManualSolver(s.sessions, s.logger)
		default:
			// The genai client is plain HTTP underneath; nothing to close on
			// shutdown.
			gem, err := captcha.NewGeminiSolver(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize vision solver: %w", err)
			}
			solver = gem
		}
	}

	return resolver.NewLiveFetch(gateway, court.NewParser(s.logger), solver, cfg.CaptchaMaxAttempts, s.logger), nil
}

func (s *Server) challengeKind() captcha.ChallengeKind {
	if s.cfg.CaptchaMode == config.CaptchaModeImage {
		return captcha.KindImage
	}
	return captcha.KindCode
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully, closing
// the resolver's gateways before the listener stops accepting.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("Failed to start server", "error", err)
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Error("Failed to close resolver resource", "error", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}

	s.logger.Info("Server exited gracefully")
	return nil
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("HTTP Request",
			"client_ip", clientIP,
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency.String(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
