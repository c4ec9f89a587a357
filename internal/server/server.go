// Package server contains the HTTP handlers and wiring for the Vlogy web application.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log"
	"time"

	"vlogy/internal/assistant"
	"vlogy/internal/blob"
	"vlogy/internal/cache"
	"vlogy/internal/config"
	"vlogy/internal/database"
	"vlogy/internal/featureflags"
	"vlogy/internal/identity"
	"vlogy/internal/middleware"
	"vlogy/internal/repository"
	"vlogy/internal/service"
	vlogysession "vlogy/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	sessionCookieName = "vlogy_session"
	sessionTTL        = 7 * 24 * time.Hour

	// sessionUserKey holds the signed-in user's email.
	sessionUserKey = "user"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	sessions       *session.Store
	google         *identity.Google
	postRepo       repository.PostRepository
	featureFlags   *featureflags.Manager
	feedService    *service.FeedService
	chatService    *service.ChatService
	profileService *service.ProfileService
	page           *template.Template
}

// Deps are the collaborators NewServerWithDeps accepts. Redis, when set, backs
// both sessions and the feed cache. Nil Uploader and Generator are built from
// the configuration.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Uploader  blob.Uploader
	Generator assistant.Generator
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, Deps{DB: db, Redis: cache.NewClient(cfg.RedisURL)})
}

// NewUploader picks the managed blob store when a token is configured and
// the local upload directory otherwise.
func NewUploader(cfg *config.Config) (blob.Uploader, error) {
	if cfg.BlobConfigured() {
		return blob.NewVercelUploader(cfg.BlobAPIURL, cfg.BlobToken, cfg.UpstreamTimeout()), nil
	}
	middleware.Logger.Warn("BLOB_READ_WRITE_TOKEN not set, storing uploads on local disk", "dir", cfg.UploadDir)
	return blob.NewLocalUploader(cfg.UploadDir)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}

	uploader := deps.Uploader
	if uploader == nil {
		var err error
		if uploader, err = NewUploader(cfg); err != nil {
			return nil, err
		}
	}

	generator := deps.Generator
	if generator == nil {
		generator = assistant.NewGemini(cfg.GeminiAPIURL, cfg.GeminiAPIKey, cfg.UpstreamTimeout())
	}

	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	sessionCfg := session.Config{
		Expiration:     sessionTTL,
		KeyLookup:      "cookie:" + sessionCookieName,
		CookieHTTPOnly: true,
		CookieSecure:   !cfg.OAuthInsecureTransport,
		CookieSameSite: "Lax",
	}
	if deps.Redis != nil {
		sessionCfg.Storage = vlogysession.NewRedisStorage(deps.Redis)
	}
	sessions := session.New(sessionCfg)

	google := identity.NewGoogle(identity.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
		StateSecret:  cfg.SessionSecret,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		APIBaseURL:   cfg.GoogleAPIURL,
		Timeout:      cfg.UpstreamTimeout(),
	}, sessions)

	postRepo := repository.NewPostRepository(deps.DB, cache.New(deps.Redis))
	flags := featureflags.NewManager(cfg.FeatureFlags)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("vlogy"),
		sessions:       sessions,
		google:         google,
		postRepo:       postRepo,
		featureFlags:   flags,
		page:           page,
	}
	s.feedService = service.NewFeedService(postRepo, uploader)
	s.profileService = service.NewProfileService(google)
	s.chatService = service.NewChatService(postRepo, service.ChatConfig{
		Generator:  generator,
		Configured: cfg.AssistantConfigured(),
		Model:      cfg.GeminiModel,
		Flags:      flags,
	})

	return s, nil
}

// cookieKey derives the base64 AES-256 key encryptcookie expects from the session secret.
func cookieKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Vlogy",
		BodyLimit: bodyLimit(s.config.MaxUploadMB),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).SendString(fe.Message)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).SendString(fiber.ErrInternalServerError.Message)
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Blob store images are cross-origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: cookieKey(s.config.SessionSecret),
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/uploads", s.config.UploadDir)

	app.Get("/", s.ShowFeed)
	app.Get("/logout", s.Logout)
	app.Post("/upload", s.SessionUserRequired(redirectHome), s.Upload)
	app.Post("/chat", s.OptionalSessionUser(), s.Chat)

	app.Get("/login/google", s.google.Login)
	app.Get("/login/google/authorized", s.google.Callback)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and, when configured, Redis health.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"features": s.featureFlags.Snapshot(""),
		"time":     time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.App()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
