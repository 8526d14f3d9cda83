package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"gorm.io/gorm"

	fbapp "firebase.google.com/go/v4"

	"agrolink/internal/adapter/api"
	"agrolink/internal/adapter/api/handler"
	apimiddleware "agrolink/internal/adapter/api/middleware"
	"agrolink/internal/adapter/api/router"
	"agrolink/internal/adapter/repository"
	domainrepo "agrolink/internal/domain/repository"
	"agrolink/internal/infrastructure/auth"
	"agrolink/internal/infrastructure/firebase"
	"agrolink/internal/infrastructure/journal"
	"agrolink/internal/infrastructure/presence"
	"agrolink/internal/infrastructure/ratelimit"
	"agrolink/internal/infrastructure/websocket"
	"agrolink/internal/usecase"
	"agrolink/pkg/config"
	"agrolink/pkg/logger"
	"agrolink/pkg/tracing"
)

type repositories struct {
	chats         domainrepo.ChatRepository
	supportChats  domainrepo.SupportChatRepository
	agents        domainrepo.AgentRepository
	notifications domainrepo.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agrolink-realtime", cfg.TracingEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled: %v", err)
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	var (
		firebaseApp *fbapp.App
		clientOpt   option.ClientOption
	)
	if cfg.AuthProvider == "firebase" || cfg.DatabaseDriver == "firestore" {
		firebaseApp, clientOpt = initFirebase(ctx, cfg)
	}

	var (
		tokenVerifier auth.TokenVerifier
		firebaseAuth  *firebase.FirebaseAuthClient
		devIssuer     *auth.HMACVerifier
	)
	switch cfg.AuthProvider {
	case "firebase":
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			fatal("Failed to initialize Firebase Auth: %v", err)
		}
		firebaseAuth = firebase.NewFirebaseAuthClient(authClient)
		tokenVerifier = firebaseAuth
	default:
		if cfg.JWTSecret == "" {
			fatal("NEXTAUTH_SECRET or JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
		hmac := auth.NewHMACVerifier(cfg.JWTSecret)
		tokenVerifier = hmac
		if cfg.IsDevelopment() {
			devIssuer = hmac
		}
	}
	if cfg.TrustDeclaredRole {
		logger.Warn("TRUST_DECLARED_ROLE is on: tokens without a role claim take the role the client declares")
	}
	identityVerifier := auth.NewIdentityVerifier(tokenVerifier, cfg.TrustDeclaredRole)

	var (
		repos repositories
		db    *gorm.DB
	)
	if cfg.DatabaseDriver == "firestore" {
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, clientOpt)
		if err != nil {
			fatal("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		repos = repositories{
			chats:         repository.NewFirestoreChatRepository(firestoreClient),
			supportChats:  repository.NewFirestoreSupportChatRepository(firestoreClient),
			agents:        repository.NewFirestoreAgentRepository(firestoreClient),
			notifications: repository.NewFirestoreNotificationRepository(firestoreClient),
		}
	} else {
		db, err = repository.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			fatal("Failed to open database: %v", err)
		}
		if err := repository.AutoMigrate(db); err != nil {
			fatal("Failed to migrate database: %v", err)
		}

		repos = repositories{
			chats:         repository.NewGormChatRepository(db),
			supportChats:  repository.NewGormSupportChatRepository(db),
			agents:        repository.NewGormAgentRepository(db),
			notifications: repository.NewGormNotificationRepository(db),
		}
	}

	var registry presence.Registry
	if cfg.PresenceBackend == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fatal("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		registry = presence.NewRedisRegistry(redisClient, cfg.PresenceTTL)
	} else {
		registry = presence.NewMemoryRegistry()
	}

	var eventJournal usecase.Journal = journal.Noop{}
	if cfg.NATSURL != "" {
		natsJournal, err := journal.Connect(ctx, cfg.NATSURL, cfg.NATSStream)
		if err != nil {
			logger.Warn("Support journal disabled: %v", err)
		} else {
			defer natsJournal.Close()
			eventJournal = natsJournal
		}
	}

	limiter := ratelimit.NewRateLimiter(cfg.EventRateBurst, cfg.EventRateRefill)
	limiter.StartCleanupRoutine(ctx)

	wsManager := websocket.NewManager()
	activeChats := usecase.NewActiveChatTracker()

	notificationUseCase := usecase.NewNotificationUseCase(repos.notifications, wsManager)
	presenceUseCase := usecase.NewPresenceUseCase(registry, repos.agents, wsManager, wsManager, activeChats, eventJournal)
	productChatUseCase := usecase.NewProductChatUseCase(repos.chats, registry, wsManager, wsManager)
	supportChatUseCase := usecase.NewSupportChatUseCase(
		repos.supportChats,
		repos.agents,
		registry,
		wsManager,
		wsManager,
		notificationUseCase,
		activeChats,
		limiter,
		eventJournal,
	)

	dispatcher := websocket.NewDispatcher(wsManager, presenceUseCase, productChatUseCase, supportChatUseCase, notificationUseCase, limiter)
	wsHandler := handler.NewWebSocketHandler(wsManager, dispatcher, identityVerifier, cfg.AllowedOrigins, cfg.PingInterval, cfg.PingTimeout)

	handler.Setup(notificationUseCase, presenceUseCase, db, firebaseAuth, wsManager, devIssuer)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, apimiddleware.RoleHeader},
	}))
	e.Use(apimiddleware.RateLimit(cfg.HTTPRateLimit, cfg.HTTPRateWindow))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(identityVerifier)
	adminMiddleware := apimiddleware.NewAdminMiddleware()

	router.Setup(e, authMiddleware, adminMiddleware, wsHandler)
	router.SetupDevRouter(e, cfg.Environment)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		logger.Info("Socket server listening on port %s (origins: %v)", cfg.ServerPort, cfg.AllowedOrigins)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Socket server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsManager.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func initFirebase(ctx context.Context, cfg *config.Config) (*fbapp.App, option.ClientOption) {
	var opt option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	} else {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); cfg.FirebaseServiceAccountPath == "" || os.IsNotExist(err) {
			fatal("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		opt = option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
	}

	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		fatal("Failed to initialize Firebase: %v", err)
	}
	return app, opt
}

func fatal(format string, v ...interface{}) {
	logger.Error(format, v...)
	logger.Sync()
	os.Exit(1)
}
