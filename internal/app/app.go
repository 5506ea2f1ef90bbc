package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sotto-note/internal/authprovider"
	"sotto-note/internal/cache"
	"sotto-note/internal/config"
	"sotto-note/internal/database"
	"sotto-note/internal/event"
	"sotto-note/internal/handler"
	"sotto-note/internal/llm"
	"sotto-note/internal/logger"
	"sotto-note/internal/metrics"
	"sotto-note/internal/middleware"
	"sotto-note/internal/repository"
	"sotto-note/internal/router"
	"sotto-note/internal/service"
	"sotto-note/internal/session"
	"sotto-note/internal/websocket"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	cookies, err := session.NewCookieStore(cfg.SessionSecrets, cfg.Production())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session cookies: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	profileRepo := repository.NewProfileRepository(pool)
	journalRepo := repository.NewJournalRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	slog.Info("database ready")

	m := metrics.New()
	m.Register(db.Collectors()...)
	bus := event.NewBus()
	hub := websocket.NewHub(bus)

	provider := authprovider.New(cfg.AuthURL, cfg.AuthAnonKey, cfg.AuthServiceRoleKey, cfg.AuthProviderTimeout)

	sessionService := service.NewSessionService(cookies, provider, cfg.SessionRefreshPolicy, cfg.SessionRefreshBuffer, m)
	profileService := service.NewProfileService(profileRepo, cfg.AdminUserIDs, bus, m)
	authService := service.NewAuthService(provider, cookies, profileService, bus, sessionService.KeepsAccessToken())
	journalService := service.NewJournalService(journalRepo, bus)
	breathingService := service.NewBreathingService()

	generator := llm.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMSystemPrompt, cfg.LLMTimeout)
	if !generator.Enabled() {
		slog.Warn("LLM_API_KEY is not set, AI reflections are disabled")
	}
	reflectionService := service.NewReflectionService(journalRepo, usageRepo, generator, cfg.AIDailyLimit, bus, m)

	userState := cache.NewUserState(profileService, reflectionService, cfg.StateCacheTTL)
	sessionMiddleware := middleware.NewSessionMiddleware(sessionService, "/login")

	appRouter := router.New(cfg, sessionMiddleware, userState, m, router.Handlers{
		Health:    handler.NewHealthHandler(db),
		Docs:      handler.NewDocsHandler(),
		Auth:      handler.NewAuthHandler(authService, sessionService, cfg.DefaultRedirect),
		State:     handler.NewStateHandler(userState),
		Journal:   handler.NewJournalHandler(journalService, reflectionService, userState),
		Breathing: handler.NewBreathingHandler(breathingService),
		Admin:     handler.NewAdminHandler(profileService, provider),
		WS:        handler.NewWSHandler(hub, cfg.CORSOrigins),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go hub.Run(cleanupCtx)
	go userState.Run(cleanupCtx, bus)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				cleanupCancel()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
