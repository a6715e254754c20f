package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cinemate/server/internal/controller"
	"github.com/cinemate/server/internal/repository/cache"
	cacheinmemory "github.com/cinemate/server/internal/repository/cache/inmemory"
	cacheredis "github.com/cinemate/server/internal/repository/cache/redis"
	conninmemory "github.com/cinemate/server/internal/repository/connection/inmemory"
	"github.com/cinemate/server/internal/service/media"
	"github.com/cinemate/server/internal/service/room"
	"github.com/cinemate/server/pkg/ctxlogger"
	"github.com/cinemate/server/pkg/redisclient"
)

type AppConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	LogLevel       string        `json:"log_level"`
	SyncIntervalMs int           `json:"sync_interval_ms"`
	MembersLimit   int           `json:"members_limit"`
	MediaCacheTTL  time.Duration `json:"media_cache_ttl"`
	RedisHost      string        `json:"redis_host"`
	RedisPort      int           `json:"redis_port"`
	RedisPassword  string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.SyncIntervalMs < 1 {
		return fmt.Errorf("sync interval must be greater than 0")
	}
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.MediaCacheTTL <= 0 {
		return fmt.Errorf("media cache ttl must be greater than 0")
	}
	return nil
}

type mediaCacheRepo interface {
	GetMedia(ctx context.Context, sourceUrl string) (cache.Media, error)
	SetMedia(ctx context.Context, sourceUrl string, media cache.Media) error
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(&h)

	clock := clockwork.NewRealClock()

	// redis is optional: without it the media cache is process-local
	var cacheRepo mediaCacheRepo
	if cfg.RedisHost != "" {
		rc, err := redisclient.NewRedisClient(&redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()

		cacheRepo = cacheredis.NewRepo(rc, cfg.MediaCacheTTL)
	} else {
		cacheRepo = cacheinmemory.NewRepo(cfg.MediaCacheTTL, clock)
	}

	connRepo := conninmemory.NewRepo()
	roomService := room.NewService(connRepo, clock, &room.Config{
		MembersLimit: cfg.MembersLimit,
	})
	mediaService := media.NewService(cacheRepo, logger)
	ctrl := controller.NewController(roomService, mediaService, clock, logger, &controller.Config{
		SyncInterval: time.Duration(cfg.SyncIntervalMs) * time.Millisecond,
	})

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
