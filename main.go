package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/quizclash/apps/go-server/internal/game"
	"github.com/robalobadob/quizclash/apps/go-server/internal/history"
	"github.com/robalobadob/quizclash/apps/go-server/internal/httpserver"
	"github.com/robalobadob/quizclash/apps/go-server/internal/quiz"
	"github.com/robalobadob/quizclash/apps/go-server/internal/store"
	"github.com/robalobadob/quizclash/apps/go-server/internal/sweeper"
	"github.com/robalobadob/quizclash/apps/go-server/internal/ws"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(getEnv("DATABASE_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Seed the quiz catalog (QUIZ_FILE or embedded defaults).
	quizzes, err := quiz.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load quizzes")
	}
	catalog := quiz.NewStore(db)
	if err := catalog.Seed(context.Background(), quizzes); err != nil {
		log.Fatal().Err(err).Msg("failed to seed quiz catalog")
	}
	log.Info().Int("quizzes", len(quizzes)).Msg("quiz catalog ready")

	sessions := store.NewSQLiteStore(db)
	hub := ws.NewHub()
	engine := game.New(sessions, catalog, hub)
	hub.SetFlow(engine)

	// Background expiry of inactive sessions.
	sw := sweeper.New(sessions, engine,
		envDuration("SWEEP_INTERVAL", time.Minute),
		envDuration("SESSION_TIMEOUT", 30*time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)

	srv := httpserver.New(db, engine, sessions, hub, catalog, history.NewStore(db))
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting go-server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
	}
	return def
}
