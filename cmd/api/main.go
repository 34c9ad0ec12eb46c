package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "resident_directory/internal/adapters/http_server"
	"resident_directory/internal/adapters/observability"
	redisad "resident_directory/internal/adapters/redis"
	"resident_directory/internal/adapters/sheet"
	"resident_directory/internal/app"
	"resident_directory/internal/domain"
	"resident_directory/internal/phone"
	"resident_directory/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// feed
	client, err := sheet.New(cfg.FeedURLs, cfg.FeedRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sheet client")
	}
	mapper := newMapper(cfg.AliasesFile)

	sched := app.NewScheduler(app.NewIngestionService(client, mapper), app.SchedulerConfig{
		Interval: cfg.RefreshInterval,
		OnError:  func(err error) { log.Error().Err(err).Msg("feed refresh failed") },
	})

	// optional cache
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable; serving without cache")
		} else {
			cache = rc
			defer rc.Close()
		}
	}
	q := app.NewQueryService(sched, cache, cfg.CacheTTL)

	// http
	srv := server.New(30 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(observability.InitRegistry()))
	srv.MountHandlers(&server.Handlers{
		Q:         q,
		Refresher: sched,
		Phone:     phone.New(cfg.CountryCode),
		ChatText:  cfg.ChatPresetText,
	})

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer sched.Stop()

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func newMapper(aliasesFile string) *app.Mapper {
	if aliasesFile == "" {
		return app.NewMapper(nil)
	}
	extra, err := app.LoadAliasFile(aliasesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("alias file")
	}
	log.Info().Str("file", aliasesFile).Int("fields", len(extra)).Msg("extra aliases loaded")
	return app.NewMapper(extra)
}
