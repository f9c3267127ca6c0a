package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/syra-platform/authcore/pkg/api"
	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/config"
	"github.com/syra-platform/authcore/pkg/grants"
	"github.com/syra-platform/authcore/pkg/guard"
	"github.com/syra-platform/authcore/pkg/identity"
	"github.com/syra-platform/authcore/pkg/middleware"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/session"
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authcore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := observability.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectMongo(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer db.Close(context.Background())

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	codec, err := auth.NewCodec([]byte(cfg.Auth.SigningSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	sessions := session.NewStore(db, log, session.Options{
		IdleTimeout:    cfg.Auth.SessionIdleTimeout,
		AbsoluteMaxAge: cfg.Auth.SessionAbsoluteMaxAge,
	})
	resolver := session.NewResolver(codec, sessions, cfg.Auth.CookieName)
	loader := identity.NewLoader(db, identity.CacheOptions{
		Size: cfg.Auth.IdentityCacheSize,
		TTL:  cfg.Auth.IdentityCacheTTL,
	})
	tenantDir := tenants.NewService(db, log)

	trail := audit.NewStoreLogger(db)
	var auditLogger audit.Logger = trail
	if cfg.Audit.FilePath != "" {
		fileLogger, ferr := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.FilePath,
			MaxSize:  cfg.Audit.FileMaxSize,
			MaxFiles: cfg.Audit.FileMaxFiles,
		})
		if ferr != nil {
			return ferr
		}
		defer fileLogger.Close()
		auditLogger = audit.NewMultiLogger(trail, fileLogger)
	}
	sink := audit.NewSink(auditLogger, log, metrics)

	workflow := grants.NewWorkflow(db, sink, log, metrics)
	sweeper, err := grants.NewSweeper(workflow, log, cfg.Grants.SweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// The login limiter is shared across replicas when redis is configured,
	// per-process otherwise.
	var (
		redisClient  *redis.Client
		limitFn      func(http.Handler) http.Handler
		accountLimit api.AccountLimiter
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		limiter := middleware.NewDistributedLoginLimiter(redisClient, log)
		limitFn = limiter.Handler
		accountLimit = limiter
		log.WithField("addr", cfg.Redis.Addr).Info("using shared login rate limiter")
	} else {
		limiter := middleware.NewLoginLimiter()
		limiter.StartCleanup(ctx)
		limitFn = limiter.Handler
		accountLimit = limiter
	}

	server := api.NewServer(api.Options{
		Store:    db,
		Codec:    codec,
		Verifier: auth.BcryptVerifier{},
		Sessions: sessions,
		Identity: loader,
		Tenants:  tenantDir,
		Workflow: workflow,
		Trail:    trail,
		Sink:     sink,

		AuthGuard:   guard.NewAuthGuard(resolver, sessions, loader, tenantDir, sink, log, metrics),
		RoleGuard:   guard.NewRoleGuard(sink, metrics),
		AccessGuard: grants.NewGuard(workflow, sink, metrics),

		LoginLimiter:   limitFn,
		AccountLimiter: accountLimit,

		Log:     log,
		Metrics: metrics,
		Cookie: api.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Domain: cfg.Auth.CookieDomain,
			Secure: cfg.Auth.CookieSecure,
			MaxAge: cfg.Auth.TokenTTL,
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics listen on their own port so the main listener can
	// sit behind authn-aware ingress rules.
	checker := observability.NewHealthChecker(db, redisClient)
	probeMux := http.NewServeMux()
	probeMux.HandleFunc("/livez", checker.Liveness)
	probeMux.HandleFunc("/readyz", checker.Readiness)
	if cfg.MetricsEnabled {
		probeMux.Handle("/metrics", observability.Handler(registry))
	}
	probeServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: probeMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("authorization core listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := probeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown")
		}
		return probeServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
