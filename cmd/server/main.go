package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/blockchain"
	"solana-wallet-trace/internal/config"
	"solana-wallet-trace/internal/gateway"
	"solana-wallet-trace/internal/health"
	"solana-wallet-trace/internal/jupiter"
	"solana-wallet-trace/internal/websocket"
)

func main() {
	setupLogger()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	rpc := blockchain.NewRPCClient(cfg.RPCURL, cfg.RPCFallbackURL, cfg.RPCAPIKey)
	jup := jupiter.NewClient(cfg.JupiterBaseURL, 10*time.Second)
	factory := websocket.NewFactory(cfg.WSURL)

	svc := gateway.NewService(rpc, jup, factory)

	metaURL := cfg.JupiterBaseURL
	if metaURL == "" {
		metaURL = jupiter.DefaultBaseURL
	}
	checker := health.NewChecker(cfg.RPCURL, metaURL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker.Start(ctx)

	server := gateway.NewServer(svc, checker, cfg.ListenAddr)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("ws", cfg.WSURL).
		Str("rpc", cfg.RPCURL).
		Msg("🚀 wallet-trace server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

func setupLogger() {
	log.Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
