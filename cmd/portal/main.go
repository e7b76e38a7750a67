package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // facility zone must resolve on minimal images

	"qrportal/internal/api"
	"qrportal/internal/availability"
	"qrportal/internal/clock"
	"qrportal/internal/config"
	"qrportal/internal/db"
	"qrportal/internal/events"
	"qrportal/internal/export"
	"qrportal/internal/i18n"
	"qrportal/internal/metrics"
	"qrportal/internal/notify"
	"qrportal/internal/schedule"
	"qrportal/internal/status"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// telegramTimeout bounds a single Bot API request.
const telegramTimeout = 10 * time.Second

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}
	clk := clock.NewZoned(loc)

	database, err := db.NewDB(cfg.Database.Path, loc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site, err := config.LoadSite(cfg.SiteConfigPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn().Str("path", cfg.SiteConfigPath).Msg("site config not found, serving stored hours")
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to load site config")
	default:
		if _, err := database.SeedFromSite(ctx, site); err != nil {
			logger.Fatal().Err(err).Msg("seed from site config")
		}
		// Weekly hours are seed-only; reloads only add holiday closures.
		err = config.WatchSite(ctx, cfg.SiteConfigPath, cfg.SiteReloadInterval(), logger, func(s *config.SiteConfig) {
			applyHolidays(ctx, database, s, logger)
		})
		if err != nil {
			logger.Error().Err(err).Msg("site config watcher not started")
		}
	}

	catalog, err := i18n.Load(cfg.TranslationsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load translations")
	}

	bus := events.NewEventBus(logger)

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		events.NewRedisForwarder(rdb, cfg.Redis.Channel).Attach(bus)
	}

	resolver := schedule.NewResolver(database, clk, logger)
	queue := events.NewQueue(bus, events.DefaultQueueSize, logger)
	go queue.Run(ctx)
	statuses := status.NewManager(database, clk, queue, logger)

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint,
			&http.Client{Timeout: telegramTimeout})
		if err != nil {
			logger.Error().Err(err).Msg("telegram disabled: create bot")
		} else {
			notifier := notify.NewTelegram(botAPI, cfg.Telegram.ChatID, cfg.Telegram.Language, catalog, logger)
			notifier.Attach(bus)
			if cfg.Telegram.DigestHour > 0 {
				notifier.StartDailyDigest(ctx, resolver, clk, cfg.Telegram.DigestHour)
			}
		}
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, cfg.Backup.Path, cfg.BackupInterval(), cfg.BackupRetention(), logger)
		go backups.Start(ctx)
	}

	checks := map[string]api.ReadinessCheck{"db": database.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	server := api.NewHTTPServer(api.Options{
		Port:           cfg.HTTP.Port,
		AdminToken:     cfg.HTTP.AdminToken,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}, api.Deps{
		Clock:        clk,
		Schedule:     resolver,
		Status:       statuses,
		Availability: availability.NewLookup(database),
		Admin:        database,
		Exporter:     export.NewReporter(resolver, statuses, 0),
		Site:         database,
		Catalog:      catalog,
		Checks:       checks,
	}, logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("http shutdown error")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Msg("portal started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
	logger.Info().Msg("portal stopped")
}

func applyHolidays(ctx context.Context, database *db.DB, site *config.SiteConfig, logger zerolog.Logger) {
	created, err := database.ApplyHolidays(ctx, site)
	if err != nil {
		metrics.IncConfigReload("error")
		logger.Error().Err(err).Msg("apply holidays")
		return
	}
	metrics.IncConfigReload("ok")
	if created > 0 {
		logger.Info().Int("created", created).Msg("holiday exceptions added")
	}
}

func startMetricsServer(ctx context.Context, port int, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
