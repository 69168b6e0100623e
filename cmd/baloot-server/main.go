package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/baloot/server/internal/bot"
	"github.com/baloot/server/internal/config"
	"github.com/baloot/server/internal/gateway"
	"github.com/baloot/server/internal/kv"
	"github.com/baloot/server/internal/matchmaker"
	"github.com/baloot/server/internal/ratelimit"
	"github.com/baloot/server/internal/registry"
	"github.com/baloot/server/internal/room"
	"github.com/baloot/server/internal/session"
)

// CLI is the server's command-line surface. Its flags complement the
// environment variables read by config.Load; they do not mirror them.
type CLI struct {
	Config           string `kong:"help='Path to an HCL config file (optional)'"`
	Addr             string `kong:"help='Override the listen address (host:port)'"`
	Debug            bool   `kong:"help='Enable debug logging'"`
	KVURL            string `kong:"help='Redis URL; empty uses an in-memory KV fallback only'"`
	CORSOrigins      string `kong:"help='Comma-separated list of allowed websocket origins; empty allows any'"`
	BotWorkers       int    `kong:"default='4',help='In-process bot decision worker concurrency'"`
	HousekeepingSecs int    `kong:"default='15',help='Room registry housekeeping sweep interval, seconds'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("baloot-server"),
		kong.Description("Baloot multiplayer game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg, err := config.Load(cli.Config)
	kctx.FatalIfErrorf(err)
	if cli.Addr != "" {
		parts := strings.SplitN(cli.Addr, ":", 2)
		if len(parts) == 2 {
			cfg.Server.Address = parts[0]
			if port, err := strconv.Atoi(parts[1]); err == nil {
				cfg.Server.Port = port
			}
		}
	}
	kctx.FatalIfErrorf(cfg.Validate())

	store := buildStore(cli.KVURL, logger)

	bots := bot.New(nil, 0, logger) // rooms wired in below, once the registry exists
	reg := registry.New(cfg.Server.MaxRooms, cfg.RoomIdleEvict(), bots, logger)
	bots.SetRooms(reg)

	limiter := ratelimit.New(store)
	sessions := session.New(store, reg, logger)

	roomSettings := room.Settings{
		TurnDuration:    cfg.TurnDuration(),
		DisconnectGrace: cfg.DisconnectGrace(),
		StrictMode:      true,
		SoundEnabled:    true,
		BotDifficulty:   defaultBotDifficulty(cfg),
	}
	mm := matchmaker.New(reg, roomSettings, limiter, logger)

	var corsOrigins []string
	if cli.CORSOrigins != "" {
		corsOrigins = strings.Split(cli.CORSOrigins, ",")
	} else if cfg.Server.CORSOrigins != "" {
		corsOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	}
	gw := gateway.New(reg, mm, sessions, limiter, bots, roomSettings, corsOrigins, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := bot.NewWorkerPool(bots, nil, cli.BotWorkers, logger)
	go func() {
		if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("bot worker pool exited")
		}
	}()
	go reg.RunHousekeeping(ctx, time.Duration(cli.HousekeepingSecs)*time.Second)
	go func() {
		if err := mm.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("matchmaker exited")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Address()).Int("max_rooms", cfg.Server.MaxRooms).Msg("baloot-server starting")
		serverErr <- gw.Serve(cfg.Address())
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("gateway exited with error")
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down gracefully")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := gw.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		logger.Info().Msg("baloot-server shutdown complete")
	}
}

func buildStore(rawURL string, logger zerolog.Logger) kv.Store {
	local := kv.NewLocalStore()
	if rawURL == "" {
		return local
	}
	redisStore, err := kv.NewRedisStore(rawURL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to connect to Redis, using in-memory KV only")
		return local
	}
	return kv.NewFallback(redisStore, logger)
}

func defaultBotDifficulty(cfg *config.ServerConfig) string {
	for _, b := range cfg.Bots {
		if b.Name == "default" {
			return b.Difficulty
		}
	}
	return "medium"
}
