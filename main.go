package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"molva/internal/ai"
	"molva/internal/api"
	"molva/internal/auth"
	"molva/internal/cache"
	"molva/internal/chat"
	"molva/internal/config"
	"molva/internal/filestore"
	"molva/internal/http"
	"molva/internal/presence"
	"molva/internal/push"
	"molva/internal/signaling"
	"molva/internal/storage"
	"molva/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.Default()

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisStore(cfg.RedisAddr)
		defer func() { _ = redisStore.Close() }()
		cacheStore = redisStore
	} else {
		cacheStore = cache.NewMemoryStore(ctx, cfg.CacheTTL)
	}
	policy := cache.PolicyTTLOnly
	if cfg.CachePolicy == "write-through" {
		policy = cache.PolicyWriteThrough
	}
	readCache := cache.New(cacheStore, policy, logger)

	authService := auth.NewService(ctx, auth.Config{TokenExpiry: cfg.TokenExpiry}, bbStorage)
	notifier := push.NewNotifier(push.Config{
		Subscriber:      cfg.PushSubscriber,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
	}, bbStorage, logger)

	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, bbStorage, logger)
	service := chat.NewService(bbStorage, readCache, registry, hub, notifier, logger)
	relay := signaling.NewRelay(bbStorage, registry, hub, logger)

	var assistant *ai.Assistant
	if cfg.AIProvider != "" {
		assistant, err = ai.NewAssistant(ai.Config{
			Provider: cfg.AIProvider,
			Model:    cfg.AIModel,
			APIKey:   cfg.AIAPIKey,
			BaseURL:  cfg.AIBaseURL,
		})
		if err != nil {
			return err
		}
	}

	objects, err := filestore.NewLocalObjectStore(cfg.UploadsPath, cfg.BaseURL)
	if err != nil {
		return err
	}

	wsServer := ws.NewServer(hub, service, relay, logger)
	apiHandlers := api.New(authService, service, objects, assistant, notifier, logger)
	apiServer := http.NewAPIServer(apiHandlers, wsServer, objects, cfg.APIAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
