package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/arbwatch/internal/accounts"
	"github.com/liamashdown/arbwatch/internal/alerts"
	"github.com/liamashdown/arbwatch/internal/api"
	"github.com/liamashdown/arbwatch/internal/arbitrage"
	"github.com/liamashdown/arbwatch/internal/config"
	"github.com/liamashdown/arbwatch/internal/health"
	"github.com/liamashdown/arbwatch/internal/orchestrator"
	"github.com/liamashdown/arbwatch/internal/provider"
	"github.com/liamashdown/arbwatch/internal/provider/feed"
	"github.com/liamashdown/arbwatch/internal/provider/oddsapi"
	"github.com/liamashdown/arbwatch/internal/publisher"
	"github.com/liamashdown/arbwatch/internal/scanner"
	"github.com/liamashdown/arbwatch/internal/storage"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting arbwatch service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, keeping info")
	}

	log.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"sports":            cfg.Sports,
		"providers":         len(cfg.Providers),
		"scan_interval_sec": cfg.ScanIntervalSec,
		"failover_enabled":  cfg.FailoverEnabled,
		"min_profit":        cfg.MinProfitPercentage,
		"alert_mode":        cfg.AlertMode,
	}).Info("Configuration loaded")

	// Initialize database
	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database migrations complete")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the account cache and the opportunity stream
	var redisClient *redis.Client
	if cfg.AccountCache == "redis" || cfg.PublishEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		log.WithField("addr", cfg.RedisAddr).Info("Redis connected")
	}

	// Account health
	var cache accounts.Cache
	if cfg.AccountCache == "redis" {
		cache = accounts.NewRedisCache(redisClient, "", cfg.AccountCacheTTL)
	} else {
		cache = accounts.NewMemoryCache(cfg.AccountCacheTTL)
	}
	accountManager := accounts.NewManager(db, cache, log)
	warmAccountCache(ctx, accountManager, log)

	// Providers and orchestration
	tracker := health.NewTracker(cfg.HealthDownStreak)
	orch := orchestrator.New(orchestrator.Options{
		FailoverEnabled:     cfg.FailoverEnabled,
		RequireAllProviders: cfg.RequireAllProviders,
		CallTimeout:         cfg.ProviderTimeout,
		MaxConcurrency:      cfg.MaxConcurrentFetches,
		OnPrimaryChange: func(from, to string) {
			log.WithFields(logrus.Fields{"from": from, "to": to}).Warn("Primary odds provider changed")
		},
	}, tracker, log, buildProviders(cfg, log)...)

	detector := arbitrage.New(arbitrage.Config{
		MinProfitPercentage:      cfg.MinProfitPercentage,
		CriticalStealthThreshold: cfg.CriticalStealthThreshold,
		LowStealthThreshold:      cfg.LowStealthThreshold,
		MaxMarketAgeHours:        cfg.MaxMarketAgeHours,
	}, accountManager, log)

	// Initialize alert sender
	alertSender := createAlertSender(cfg, log)

	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	var pub publisher.Publisher
	if cfg.PublishEnabled {
		pub = publisher.NewRedisPublisher(redisClient, cfg.RedisStreamPrefix)
		log.WithField("prefix", cfg.RedisStreamPrefix).Info("Opportunity stream publishing enabled")
	}

	scan := scanner.New(cfg, orch, detector, db, alertSender, pub, log)

	// Start HTTP server (health, metrics and API)
	apiServer := api.NewServer(api.Deps{
		DB:            db,
		Providers:     orch,
		Opportunities: scan,
		History:       db,
		Accounts:      accountManager,
		CORSOrigins:   cfg.CORSAllowedOrigins,
	}, log)
	httpServer := apiServer.NewHTTPServer(cfg.HTTPAddr)

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
		}
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.ScanIntervalSec) * time.Second)
	defer ticker.Stop()

	log.Info("Starting scan loop")

	// Scan immediately on startup
	if err := scan.Scan(ctx); err != nil {
		log.WithError(err).Error("Error scanning odds")
	}

	for {
		select {
		case <-ticker.C:
			if err := scan.Scan(ctx); err != nil {
				log.WithError(err).Error("Error scanning odds")
			}
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("HTTP server shutdown failed")
			}
			shutdownCancel()

			log.Info("Graceful shutdown complete")
			return
		}
	}
}

func buildProviders(cfg *config.Config, log *logrus.Logger) []provider.Provider {
	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		timeout := pc.Timeout
		if timeout <= 0 {
			timeout = cfg.ProviderTimeout
		}
		settings := provider.Settings{
			Name:     pc.Name,
			BaseURL:  pc.BaseURL,
			APIKey:   pc.APIKey,
			Priority: pc.Priority,
			Enabled:  pc.Enabled,
			RPS:      pc.RPS,
			Timeout:  timeout,
			Regions:  pc.Regions,
			Markets:  pc.Markets,
		}

		switch pc.Kind {
		case config.KindOddsAPI:
			providers = append(providers, oddsapi.NewClient(settings))
		case config.KindFeed:
			providers = append(providers, feed.NewClient(settings))
		default:
			log.WithField("kind", pc.Kind).Warn("Unknown provider kind, skipping")
			continue
		}

		log.WithFields(logrus.Fields{
			"provider": pc.Name,
			"kind":     pc.Kind,
			"priority": pc.Priority,
			"enabled":  pc.Enabled,
		}).Info("Provider registered")
	}

	if len(providers) == 0 {
		log.Warn("No odds providers configured; scans will find nothing")
	}
	return providers
}

func warmAccountCache(ctx context.Context, m *accounts.Manager, log *logrus.Logger) {
	list, err := m.List(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to list accounts for cache warm-up")
		return
	}

	names := make([]string, 0, len(list))
	for _, h := range list {
		names = append(names, h.Bookmaker)
	}
	m.Warm(ctx, names)
	log.WithField("accounts", len(names)).Info("Account cache warmed")
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	senders := []alerts.Sender{}

	for _, mode := range config.ParseCSV(cfg.AlertMode) {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if cfg.DiscordWebURL != "" {
				senders = append(senders, alerts.NewDiscordSender(cfg.DiscordWebURL))
			} else {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URL not set")
			}
		case "smtp":
			if cfg.SMTPHost != "" {
				senders = append(senders, alerts.NewSMTPSender(
					cfg.SMTPHost,
					cfg.SMTPPort,
					cfg.SMTPUser,
					cfg.SMTPPassword,
					cfg.SMTPFrom,
					cfg.SMTPTo,
				))
			} else {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
			}
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	case 1:
		return senders[0]
	default:
		return alerts.NewMultiSender(senders...)
	}
}
