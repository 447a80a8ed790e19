package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/gooji/deployer/internal/app/migrate"
	"github.com/gooji/deployer/internal/hosting/gocloud"
	"github.com/gooji/deployer/internal/hosting/vercel"
	httpx "github.com/gooji/deployer/internal/http"
	"github.com/gooji/deployer/internal/identity"
	"github.com/gooji/deployer/internal/repository"
	firestorerepo "github.com/gooji/deployer/internal/repository/firestore"
	"github.com/gooji/deployer/internal/repository/memory"
	"github.com/gooji/deployer/internal/repository/postgres"
	"github.com/gooji/deployer/internal/service/account"
	"github.com/gooji/deployer/internal/service/deploy"
	"github.com/gooji/deployer/internal/tokencache"
	"github.com/gooji/deployer/pkg/config"
	"github.com/gooji/deployer/pkg/jwt"
	"github.com/gooji/deployer/pkg/logger"
)

const (
	certFetchTimeout = 10 * time.Second
	tokenClockSkew   = 10 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := identity.NewApp(ctx, cfg.FirebaseProjectID, cfg.GoogleCredentials)
	if err != nil {
		log.Error("failed to initialise firebase", "error", err)
		os.Exit(1)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Error("failed to initialise firebase auth", "error", err)
		os.Exit(1)
	}

	store, err := openStore(ctx, cfg, app, log)
	if err != nil {
		log.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cache, closeCache := tokenCache(cfg, log)
	defer closeCache()

	certs := jwt.NewCertSource(cfg.FirebaseCertsURL, &http.Client{Timeout: certFetchTimeout})
	verifier := jwt.NewVerifier(cfg.FirebaseProjectID, certs, jwt.WithLeeway(tokenClockSkew))
	gateway := identity.New(
		identity.NewFirebaseAccounts(authClient),
		verifier,
		store,
		log,
		identity.WithTokenCache(cache, cfg.TokenCacheTTL),
	)

	hosting := vercel.New(vercel.Config{
		BaseURL:     cfg.VercelAPIURL,
		Token:       cfg.VercelToken,
		TeamID:      cfg.VercelTeamID,
		Domain:      cfg.VercelDomain,
		Timeout:     cfg.VercelTimeout,
		MaxAttempts: cfg.VercelMaxAttempts,
	}, log)
	passthrough := gocloud.New(cfg.GoCloudURL, cfg.GoCloudTimeout, log)

	metrics := httpx.NewMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	accountSvc := account.New(gateway, log)
	deploySvc := deploy.New(hosting, passthrough, store, metrics, log, cfg)

	router := httpx.NewRouter(log, accountSvc, deploySvc, httpx.Options{
		BotSecret:      cfg.BotSecretKey,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Health:         store.Ping,
		Metrics:        metrics,
	})
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", httpx.BotSecretHeader, httpx.RequestIDHeader},
		ExposedHeaders: []string{httpx.RequestIDHeader},
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreBackend, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func openStore(ctx context.Context, cfg config.APIConfig, app *firebase.App, log *slog.Logger) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		return firestorerepo.New(client), nil
	case config.StorePostgres:
		fsys, err := migrate.Source(cfg.MigrationsDir)
		if err != nil {
			return nil, err
		}
		runner, err := migrate.New(cfg.DatabaseURL, fsys, log)
		if err != nil {
			return nil, err
		}
		if err := runner.Ensure(ctx); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}
		return postgres.New(pool), nil
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// tokenCache picks redis when an address is configured and falls back to memory.
func tokenCache(cfg config.APIConfig, log *slog.Logger) (tokencache.Cache, func()) {
	if cfg.TokenCacheTTL <= 0 {
		return tokencache.Nop{}, func() {}
	}
	if addr := strings.TrimSpace(cfg.TokenCacheRedisAddr); addr != "" {
		redisCache, err := tokencache.NewRedis(addr, cfg.TokenCacheRedisPass, cfg.TokenCacheRedisDB, log)
		if err != nil {
			log.Warn("redis token cache unavailable", "error", err)
		} else {
			return redisCache, func() { _ = redisCache.Close() }
		}
	}
	mem := tokencache.NewMemory()
	return mem, func() { _ = mem.Close() }
}
