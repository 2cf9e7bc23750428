package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"levelbot/internal/config"
	"levelbot/internal/database"
	"levelbot/internal/discord"
	"levelbot/internal/leveling"
	"levelbot/internal/logging"
	"levelbot/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "console")
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize database
	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	repository := database.NewRepository(db)
	m := metrics.New()
	tracker := leveling.NewTracker()

	// Initialize Discord bot
	bot, err := discord.New(cfg, repository, tracker, m, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Discord bot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	granter := leveling.NewGranter(repository, tracker, bot, m, &logger, leveling.GranterConfig{
		Interval:   cfg.GrantInterval,
		ChatAward:  cfg.ChatXPAward,
		VoiceAward: cfg.VoiceXPAward,
	})

	// Start bot
	if err := bot.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start bot")
	}
	defer bot.Stop()

	if err := granter.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start granter")
	}
	defer granter.Stop()

	// Metrics listener is optional
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
		defer srv.Close()
	}

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.Info().Msg("Shutting down bot...")
}
