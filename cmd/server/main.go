package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"skolar/auth-authority/internal/auth"
	"skolar/auth-authority/internal/config"
	"skolar/auth-authority/internal/crypto"
	"skolar/auth-authority/internal/db"
	internalhttp "skolar/auth-authority/internal/http"
	"skolar/auth-authority/internal/ratelimit"
	"skolar/auth-authority/internal/repository"
	"skolar/auth-authority/internal/session"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}

	hasher, err := crypto.NewPasswordHasher(cfg.BcryptCost, cfg.LegacyHashSecret, cfg.HashConcurrent)
	if err != nil {
		log.Fatalf("hasher config: %v", err)
	}

	limiter, sweep := newLimiter(ctx, cfg)

	store := repository.NewStore(pool)
	sessions := session.NewStore(store)
	service := auth.NewService(store, sessions, limiter, hasher)
	server := internalhttp.NewServer(cfg, service)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("auth-authority listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	if sweep != nil {
		go sweep()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newLimiter picks the rate-limit backend: Redis when configured (shared
// budget across instances), otherwise the process-local map with a periodic
// sweep.
func newLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func()) {
	limitCfg := ratelimit.Config{
		MaxAttempts: cfg.RateLimitMaxAttempts,
		Window:      cfg.RateLimitWindow,
		BlockFor:    cfg.RateLimitBlock,
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		log.Printf("rate limiting via redis at %s", cfg.RedisAddr)
		return ratelimit.NewRedisLimiter(client, limitCfg), nil
	}

	limiter := ratelimit.NewMemoryLimiter(limitCfg)
	sweep := func() {
		ticker := time.NewTicker(limitCfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}
	return limiter, sweep
}
