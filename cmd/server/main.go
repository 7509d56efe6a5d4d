package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/partyrelay/internal/logging"
	"github.com/Tyrowin/partyrelay/internal/profanity"
	"github.com/Tyrowin/partyrelay/internal/relay"
	"github.com/Tyrowin/partyrelay/internal/server"
	"github.com/Tyrowin/partyrelay/internal/telemetry"
)

const serviceName = "partyrelay"

func main() {
	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry(), serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	core := relay.New(cfg.RelayOptions(profanity.NewFilter()))
	hub := server.NewHub(core, cfg.CooldownSweepInterval)
	go hub.Run()

	srv := server.NewServer(*cfg, hub)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	log.Info().
		Str("addr", cfg.Addr()).
		Int("max_party_size", cfg.MaxPartySize).
		Dur("invite_cooldown", cfg.InviteCooldown).
		Msg("relay started")

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			exitCode = 1
		}
	}

	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		exitCode = 1
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("hub did not stop cleanly")
		exitCode = 1
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn().Err(err).Msg("failed to flush traces")
	}

	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
