// Reverse proxy that keeps serving when the origin is down: it precaches the
// configured assets on start, then answers every GET from the network first
// with the cache as fallback.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches/local"
	rediscache "github.com/gifterapp/go-offline-cache/caches/redis"
)

type config struct {
	Origin    string `env:"ORIGIN" envDefault:"http://localhost:8000"`
	Listen    string `env:"LISTEN" envDefault:":8080"`
	Version   string `env:"CACHE_VERSION" envDefault:"gifter-v1"`
	RedisAddr string `env:"REDIS_ADDR"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var store goofflinecache.Store = local.NewBasicStore()
	if cfg.RedisAddr != "" {
		rc, err := rediscache.New(rediscache.Config{
			Client:      goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}),
			CloseClient: true,
		})
		if err != nil {
			panic(err)
		}
		store = rc
	}

	opts := goofflinecache.DefaultConfig()
	opts.Version = cfg.Version
	opts.Origin = cfg.Origin

	mgr, err := goofflinecache.NewManager(store, &opts, nil, logger)
	if err != nil {
		panic(err)
	}

	if err := mgr.Run(ctx); err != nil {
		panic(err)
	}

	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		panic(err)
	}

	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.Transport = goofflinecache.New(store, &opts, nil, logger)(http.DefaultTransport)

	srv := &http.Server{Addr: cfg.Listen, Handler: proxy}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	fmt.Println("proxying", cfg.Origin, "on", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}
