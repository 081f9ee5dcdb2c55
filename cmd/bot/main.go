package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"

	"offer-wizard/internal/integrations/platform"
	"offer-wizard/internal/repository"
	"offer-wizard/internal/telegram"
	"offer-wizard/internal/usecase"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "offer-wizard-bot").Logger()

	// ---- Configuration (read only here) ----
	botToken := mustEnv(log, "BOT_TOKEN")
	baseURL := mustEnv(log, "PLATFORM_BASE_URL")
	platformToken := mustEnv(log, "PLATFORM_TOKEN")
	pacing := time.Duration(envInt("PACING_MS", 1000)) * time.Millisecond

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Conversation store: Postgres when configured, in-memory otherwise ----
	var store usecase.ConversationStore
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		pg, err := repository.NewPostgresStore(connStr)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Postgres")
		}
		defer pg.Close()
		store = pg
		log.Info().Msg("using Postgres conversation store")
	} else {
		store = repository.NewMemoryStore()
		log.Info().Msg("using in-memory conversation store")
	}

	// ---- Clients ----
	platformClient, err := platform.NewClient(baseURL, platform.StaticToken(platformToken), "platform-token")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create platform client")
	}

	wizard, err := usecase.NewWizardService(platformClient, store, pacing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create wizard service")
	}

	wizardBot, err := telegram.NewWizardBot(wizard, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create wizard bot")
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(wizardBot.Handler),
	}
	b, err := bot.New(botToken, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	log.Info().Msg("bot started")
	b.Start(ctx)
	log.Info().Msg("bot stopped")
}

func mustEnv(log zerolog.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("key", key).Msg("required environment variable is not set")
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
