package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/HammerMeetNail/tville/internal/config"
	"github.com/HammerMeetNail/tville/internal/database"
	"github.com/HammerMeetNail/tville/internal/handlers"
	"github.com/HammerMeetNail/tville/internal/logging"
	"github.com/HammerMeetNail/tville/internal/middleware"
	"github.com/HammerMeetNail/tville/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Cancelled on SIGINT/SIGTERM; ends startup retries, background jobs
	// and the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting T-Ville server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	startupRetry := database.Retry{Attempts: cfg.Database.ConnectAttempts, Delay: time.Second}
	db, err := database.OpenPostgres(ctx, database.PostgresOptions{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
		Retry:    startupRetry,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.OpenRedis(ctx, database.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Retry:    startupRetry,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Object storage for avatars, covers and gallery media
	objects, err := services.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initializing object storage: %w", err)
	}
	logger.Info("Object storage ready", map[string]interface{}{"provider": cfg.Storage.Provider})

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	emailService := services.NewEmailService(&cfg.Email)
	authService := services.NewAuthService(dbAdapter, redisAdapter, emailService, cfg.Server.SessionTTL)
	providerAuthService := services.NewProviderAuthService(dbAdapter)
	profileService := services.NewProfileService(dbAdapter, redisAdapter, objects)
	friendService := services.NewFriendService(dbAdapter)
	scrapService := services.NewScrapService(dbAdapter)
	libraryService := services.NewLibraryService(dbAdapter)
	galleryService := services.NewGalleryService(dbAdapter, objects)
	notificationService := services.NewNotificationService(dbAdapter, emailService)
	accountService := services.NewAccountService(dbAdapter)

	oauthProviders := map[services.Provider]services.OAuthProvider{}
	if cfg.OAuth.Google.Enabled {
		googleProvider, err := services.NewOIDCProvider(ctx, services.OIDCProviderConfig{
			Provider:     services.ProviderGoogle,
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
			IssuerURL:    cfg.OAuth.Google.IssuerURL,
			Scopes:       cfg.OAuth.Google.Scopes,
		})
		if err != nil {
			return fmt.Errorf("initializing google oidc provider: %w", err)
		}
		oauthProviders[services.ProviderGoogle] = googleProvider
	}

	friendService.SetNotificationService(notificationService)
	scrapService.SetNotificationService(notificationService)
	libraryService.SetNotificationService(notificationService)

	maxUploadBytes := int64(cfg.Storage.MaxUploadMB) << 20

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, profileService, cfg.Server.Secure)
	providerAuthHandler := handlers.NewProviderAuthHandler(providerAuthService, authService, oauthProviders, cfg.Server.Secure)
	profileHandler := handlers.NewProfileHandler(profileService, maxUploadBytes)
	friendHandler := handlers.NewFriendHandler(friendService)
	scrapHandler := handlers.NewScrapHandler(scrapService)
	libraryHandler := handlers.NewLibraryHandler(libraryService)
	galleryHandler := handlers.NewGalleryHandler(galleryService, maxUploadBytes)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	accountHandler := handlers.NewAccountHandler(accountService, authService, galleryService, cfg.Server.Secure)

	cleanupLogger := logger.WithField("job", "notification_cleanup")
	if err := notificationService.CleanupOld(ctx); err != nil {
		cleanupLogger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := notificationService.CleanupOld(ctx); err != nil {
					cleanupLogger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, profileService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)

	writeLimit := resolveWriteRateLimit(cfg, logger, os.LookupEnv)
	var limiterStore middleware.ScriptRunner
	if resolveRateLimitStore(logger, os.LookupEnv) == "redis" {
		limiterStore = redisDB.Client
	}
	writeLimiter := middleware.NewRateLimiter(limiterStore, writeLimit, time.Minute, "ratelimit:write:", func(r *http.Request) string {
		user := handlers.GetUserFromContext(r.Context())
		if user != nil {
			return user.ID.String()
		}
		return ""
	}, true)

	requireAuth := authMiddleware.RequireAuth
	// write wraps a mutating route with auth and the per-user write limit.
	write := func(h http.HandlerFunc) http.Handler {
		return requireAuth(writeLimiter.Middleware(h))
	}
	read := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /live", healthHandler.Live)
	mux.HandleFunc("GET /ready", healthHandler.Ready)

	mux.HandleFunc("GET /api/csrf", csrfMiddleware.GetToken)

	// Auth
	mux.Handle("POST /api/auth/register", writeLimiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", writeLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)
	mux.HandleFunc("POST /api/auth/verify-email", authHandler.VerifyEmail)
	mux.HandleFunc("GET /api/auth/{provider}/start", providerAuthHandler.ProviderStart)
	mux.HandleFunc("GET /api/auth/{provider}/callback", providerAuthHandler.ProviderCallback)

	// Houses
	mux.Handle("GET /api/users/{id}/profile", read(profileHandler.Get))
	mux.Handle("PUT /api/profile", write(profileHandler.Update))
	mux.Handle("PUT /api/profile/house", write(profileHandler.Customize))
	mux.Handle("POST /api/profile/avatar", write(profileHandler.UploadAvatar))
	mux.Handle("POST /api/profile/cover", write(profileHandler.UploadCover))
	mux.Handle("GET /api/profile/visits", read(profileHandler.ListVisits))
	mux.Handle("POST /api/users/{id}/visit", write(profileHandler.RecordVisit))
	mux.HandleFunc("GET /houses/{id}/card.png", profileHandler.HouseCard)

	// Friends
	mux.Handle("GET /api/friends", read(friendHandler.List))
	mux.Handle("GET /api/friends/requests", read(friendHandler.ListRequests))
	mux.Handle("POST /api/friends/request", write(friendHandler.SendRequest))
	mux.Handle("PUT /api/friends/{id}/accept", write(friendHandler.AcceptRequest))
	mux.Handle("PUT /api/friends/{id}/reject", write(friendHandler.RejectRequest))
	mux.Handle("DELETE /api/friends/{id}", write(friendHandler.Remove))
	mux.Handle("GET /api/users/{id}/friends", read(friendHandler.List))
	mux.Handle("GET /api/users/{id}/mutual-friends", read(friendHandler.MutualFriends))

	// Scraps
	mux.Handle("GET /api/users/{id}/scraps", read(scrapHandler.List))
	mux.Handle("POST /api/users/{id}/scraps", write(scrapHandler.Create))
	mux.Handle("DELETE /api/scraps/{id}", write(scrapHandler.Delete))
	mux.Handle("POST /api/scraps/{id}/like", write(scrapHandler.ToggleLike))

	// Library
	mux.Handle("GET /api/library", read(libraryHandler.Overview))
	mux.Handle("POST /api/library/items", write(libraryHandler.AddItem))
	mux.Handle("PUT /api/library/items/{id}", write(libraryHandler.UpdateItem))
	mux.Handle("DELETE /api/library/items/{id}", write(libraryHandler.DeleteItem))
	mux.Handle("POST /api/library/items/{id}/like", write(libraryHandler.LikeItem))
	mux.Handle("DELETE /api/library/items/{id}/like", write(libraryHandler.UnlikeItem))
	mux.Handle("GET /api/library/items/{id}/comments", read(libraryHandler.ListComments))
	mux.Handle("POST /api/library/items/{id}/comments", write(libraryHandler.AddComment))
	mux.Handle("DELETE /api/library/comments/{id}", write(libraryHandler.DeleteComment))
	mux.Handle("POST /api/library/recommendations", write(libraryHandler.SendRecommendation))
	mux.Handle("POST /api/library/recommendations/{id}/accept", write(libraryHandler.AcceptRecommendation))
	mux.Handle("POST /api/library/recommendations/{id}/decline", write(libraryHandler.DeclineRecommendation))
	mux.Handle("DELETE /api/library/recommendations/{id}", write(libraryHandler.DeleteRecommendation))

	// Gallery
	mux.Handle("GET /api/users/{id}/gallery", read(galleryHandler.View))
	mux.Handle("POST /api/users/{id}/gallery/items/{item}/like", write(galleryHandler.ToggleLike))
	mux.Handle("POST /api/gallery/albums", write(galleryHandler.CreateAlbum))
	mux.Handle("POST /api/gallery/albums/{id}/items", write(galleryHandler.Upload))
	mux.Handle("POST /api/gallery/albums/{id}/feature", write(galleryHandler.FeatureAlbum))
	mux.Handle("DELETE /api/gallery/albums/{id}", write(galleryHandler.DeleteAlbum))
	mux.Handle("POST /api/gallery/items/{id}/bookmark", write(galleryHandler.ToggleBookmark))
	mux.Handle("DELETE /api/gallery/items/{id}", write(galleryHandler.DeleteItem))

	// Notifications
	mux.Handle("GET /api/notifications", read(notificationHandler.List))
	mux.Handle("GET /api/notifications/unread-count", read(notificationHandler.UnreadCount))
	mux.Handle("POST /api/notifications/{id}/read", write(notificationHandler.MarkRead))
	mux.Handle("POST /api/notifications/read-all", write(notificationHandler.MarkAllRead))
	mux.Handle("DELETE /api/notifications/{id}", write(notificationHandler.Delete))
	mux.Handle("DELETE /api/notifications", write(notificationHandler.DeleteAll))

	// Account
	mux.Handle("GET /api/account/export", read(accountHandler.Export))
	mux.Handle("DELETE /api/account", requireAuth(http.HandlerFunc(accountHandler.Delete)))

	// Locally stored media
	if local, ok := objects.(*services.LocalStore); ok {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Dir()))))
	}

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 60 * time.Second,
		// Gallery uploads stream progress lines while items are processed.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// resolveWriteRateLimit returns the number of mutating requests a user may
// make per minute.
func resolveWriteRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	limit := int64(60)
	if cfg.Server.Environment == "development" {
		limit = 600
		logger.Info("Using development write rate limit", map[string]interface{}{"limit": limit})
	}
	if v, ok := lookupEnv("WRITE_RATE_LIMIT"); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
			logger.Info("Using write rate limit from env", map[string]interface{}{"limit": limit})
		} else {
			logger.Warn("Invalid WRITE_RATE_LIMIT; using default", map[string]interface{}{
				"value": v,
				"limit": limit,
			})
		}
	}
	return limit
}

// resolveRateLimitStore picks where rate limit counters live: "redis"
// (shared across instances) or "memory" (per process).
func resolveRateLimitStore(logger *logging.Logger, lookupEnv func(string) (string, bool)) string {
	store := "redis"
	if v, ok := lookupEnv("RATE_LIMIT_STORE"); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "redis":
		case "memory":
			store = "memory"
			logger.Info("Using in-process rate limiting")
		default:
			logger.Warn("Invalid RATE_LIMIT_STORE; using default", map[string]interface{}{
				"value":   v,
				"default": store,
			})
		}
	}
	return store
}
