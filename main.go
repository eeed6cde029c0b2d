package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"momo-storefront/internal/admin"
	"momo-storefront/internal/api"
	"momo-storefront/internal/auth"
	"momo-storefront/internal/cart"
	"momo-storefront/internal/checkout"
	"momo-storefront/internal/config"
	httpapi "momo-storefront/internal/http"
	"momo-storefront/internal/http/handlers"
	"momo-storefront/internal/logger"
	"momo-storefront/internal/queue"
	"momo-storefront/internal/storage"
	"momo-storefront/internal/storefront"
	"momo-storefront/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// logLauncher stands in for the phone's UPI intent handler: the link is logged and
// returned to the caller in the checkout view.
type logLauncher struct {
	log *zap.Logger
}

func (l logLauncher) Launch(_ context.Context, link string) error {
	l.log.Info("upi payment link ready", zap.String("link", link))
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, "momo-storefront")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.JWTSecret == "" {
		secret, err := auth.NewSessionID()
		if err != nil {
			log.Fatal("jwt secret generation failed", zap.Error(err))
		}
		cfg.JWTSecret = secret
		log.Warn("JWT_SECRET is empty; using a random secret, admin tokens will not survive a restart")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	var cartStorage cart.Storage
	switch cfg.CartStore {
	case config.CartStorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		pg, err := cart.NewPostgresStorage(ctx, pool)
		if err != nil {
			log.Fatal("cart table setup failed", zap.Error(err))
		}
		cartStorage = pg
		log.Info("cart storage ready", zap.String("store", "postgres"))
	default:
		fs, err := cart.NewFileStorage(cfg.CartStorageDir)
		if err != nil {
			log.Fatal("cart storage setup failed", zap.Error(err))
		}
		cartStorage = fs
		log.Info("cart storage ready", zap.String("store", "file"), zap.String("dir", cfg.CartStorageDir))
	}
	store := cart.NewStore(ctx, cartStorage, cfg.CartStorageKey, log.Named("cart"))

	apiOpts := []api.Option{api.WithLogger(log.Named("api"))}
	if cfg.APITimeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.APITimeout))
	}
	client, err := api.New(cfg.APIBaseURL, apiOpts...)
	if err != nil {
		log.Fatal("api client setup failed", zap.Error(err))
	}

	// Interface values stay nil unless the backing service is configured.
	var (
		flowPublisher  checkout.Publisher
		adminPublisher admin.Publisher
		archiver       admin.Archiver
	)

	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
		} else {
			defer qc.Close()
			publisher, err := queue.NewPublisher(qc, cfg.EventsExchange, log.Named("events"))
			if err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq exchange failed", zap.Error(err))
				}
				log.Warn("rabbitmq exchange failed; continuing without events", zap.Error(err))
			} else {
				flowPublisher = publisher
				adminPublisher = publisher
				log.Info("event publishing enabled", zap.String("exchange", publisher.Exchange()))
			}
		}
	} else {
		log.Info("event publishing disabled (RABBITMQ_URL is empty)")
	}

	if cfg.ObjectStoreEnabled() {
		objectStore, err := storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		if err != nil {
			log.Warn("object store setup failed; exports will not be archived", zap.Error(err))
		} else {
			archiver = objectStore
			log.Info("export archive enabled", zap.String("bucket", cfg.ObjectStoreBucket), zap.Int("retain", cfg.ObjectStoreRetain))
		}
	}

	portal := storefront.New(client, store, storefront.Options{
		StatusInterval: cfg.StatusPollInterval,
		InitialDelay:   cfg.PollInitialDelay,
		MerchantName:   cfg.MerchantDisplayName,
		Launcher:       logLauncher{log: log.Named("upi")},
		Publisher:      flowPublisher,
		Logger:         log.Named("storefront"),
	})
	defer portal.Close()
	if err := portal.Start(ctx); err != nil {
		log.Warn("initial storefront load failed; retry with POST /api/storefront/reload", zap.Error(err))
	}

	sessions := auth.NewSessions()
	dashboard := admin.New(client, admin.Options{
		PollInterval:  cfg.AdminPollInterval,
		InitialDelay:  cfg.PollInitialDelay,
		Publisher:     adminPublisher,
		Archiver:      archiver,
		ArchiveRetain: cfg.ObjectStoreRetain,
		SessionsLive:  func() bool { return sessions.Count() > 0 },
		Logger:        log.Named("admin"),
	})
	dashboard.SetBaseContext(ctx)
	defer dashboard.Close()

	h := &handlers.Handler{
		Portal:    portal,
		Dashboard: dashboard,
		Sessions:  sessions,
		Logger:    log,
		Config:    cfg,
	}
	wsServer := ws.New(portal, dashboard, sessions, log.Named("ws"), cfg)
	defer wsServer.Close()

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, wsServer, log, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront api ready", zap.String("base", "/api"), zap.String("backend", client.BaseURL()))
		log.Info("storefront ws ready", zap.String("base", "/ws"))
		log.Info("storefront listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
			stopSignals()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", zap.Int("adminSessionsEnded", sessions.RevokeAll()))

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
