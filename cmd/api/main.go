package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lavente-care/iam-gateway/internal/appregistry"
	"github.com/lavente-care/iam-gateway/internal/audit"
	"github.com/lavente-care/iam-gateway/internal/authz"
	"github.com/lavente-care/iam-gateway/internal/cache"
	"github.com/lavente-care/iam-gateway/internal/config"
	"github.com/lavente-care/iam-gateway/internal/credential"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/handlers"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/middleware"
	"github.com/lavente-care/iam-gateway/internal/gatewayhttp/router"
	"github.com/lavente-care/iam-gateway/internal/identity"
	"github.com/lavente-care/iam-gateway/internal/metrics"
	"github.com/lavente-care/iam-gateway/internal/notify"
	"github.com/lavente-care/iam-gateway/internal/oauthprovider"
	"github.com/lavente-care/iam-gateway/internal/quota"
	"github.com/lavente-care/iam-gateway/internal/storage"
	"github.com/lavente-care/iam-gateway/internal/token"
	"github.com/lavente-care/iam-gateway/internal/verification"
	"github.com/lavente-care/iam-gateway/pkg/logger"
)

// platformScopes names the scopes that bypass the user-binding check
// when held by a super_admin (§4.H step 6, §9).
var platformScopes = map[string]bool{"platform:admin": true}

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.Setup(cfg.Env)
	log.Info("application_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, TracesSampleRate: 1.0, Environment: cfg.Env}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx := context.Background()

	pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	rdb, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	log.Info("redis_connected")

	if cfg.JWTPrivateKeyPEM == "" && cfg.Env == "production" {
		log.Error("jwt_private_key_missing", "details", "fatal_in_production")
		os.Exit(1)
	}
	tokenProvider, err := token.NewJWTProvider(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM)
	if err != nil {
		log.Error("jwt_provider_init_failed", "error", err)
		os.Exit(1)
	}

	users := storage.NewUserRepo(pool)
	tokens := storage.NewTokenRepo(pool)
	roles := storage.NewRoleRepo(pool)
	orgs := storage.NewOrganizationRepo(pool)
	subs := storage.NewSubscriptionRepo(pool)
	snapshots := storage.NewQuotaSnapshotRepo(pool)
	auditRepo := storage.NewAuditRepo(pool)
	apps := storage.NewApplicationRepo(pool)

	hasher := credential.NewBcryptHasher()

	notifySender := &notify.DevSender{Logger: log}
	codeSender := &notify.CodeSenderAdapter{Sender: notifySender}
	codes := verification.NewStore(rdb, codeSender, cfg.VerificationCodeTTL, cfg.VerificationSendCooldown, cfg.Debug)

	tokenService := token.NewService(tokens, tokenProvider, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.SSOSessionTTL)

	auditWriter := audit.NewAsyncWriter(auditRepo, logger.Component(log, "audit"), 4, 1024)
	defer auditWriter.Close()

	identityService := identity.NewService(users, hasher, tokenService, codes, auditWriter, identity.Config{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
	})

	bus := authz.NewBus()
	authzEngine := authz.NewEngine(roles, rdb, cfg.PermissionCacheTTL, bus, logger.Component(log, "authz"))
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()
	go authzEngine.Listen(listenCtx)

	appsService := appregistry.NewService(apps)
	accounter := quota.NewAccounter(rdb, snapshots, subs)

	oauthRegistry := oauthprovider.NewRegistry()
	if clientID := os.Getenv("OAUTH_GENERIC_CLIENT_ID"); clientID != "" {
		oauthRegistry.Register("generic", oauthprovider.NewGenericProvider(
			clientID,
			os.Getenv("OAUTH_GENERIC_CLIENT_SECRET"),
			os.Getenv("OAUTH_GENERIC_AUTH_URL"),
			os.Getenv("OAUTH_GENERIC_TOKEN_URL"),
			os.Getenv("OAUTH_GENERIC_USERINFO_URL"),
			[]string{"openid", "email", "profile"},
		))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := handlers.New(handlers.Handlers{
		Pool:     pool,
		Redis:    rdb,
		Identity: identityService,
		Tokens:   tokenService,
		Authz:    authzEngine,
		Apps:     appsService,
		Quota:    accounter,
		Codes:    codes,
		OAuth:    oauthRegistry,
		Roles:    roles,
		Orgs:     orgs,
		Log:      log,
		Version:  "v1",
	})

	rl := middleware.NewAppRateLimiter()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(h, rl, cfg.DefaultAppRateLimit, m, log, platformScopes),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		cancelListen()
		auditWriter.Close()
		pool.Close()
		log.Info("server_shutdown_complete")
	}
}
