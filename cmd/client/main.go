package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/client"
	"solana-wallet-trace/internal/config"
	"solana-wallet-trace/internal/storage"
	"solana-wallet-trace/internal/tui"
)

func main() {
	configPath := flag.String("config", "config/client.toml", "path to the client configuration")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// All log output goes to the Logs panel; stdout belongs to the TUI.
	logWriter := tui.NewLogWriter(256)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        logWriter,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var journal *storage.DB
	if cfg.JournalDB != "" {
		journal, err = storage.NewDB(cfg.JournalDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open journal: %v\n", err)
			os.Exit(1)
		}
		defer journal.Close()
	}

	api := client.New(cfg.ServerURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	id, err := api.Init(ctx, cfg.Wallet, cfg.TokenMints)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("clientID", id).Str("wallet", cfg.Wallet).Msg("session initialized")

	model := tui.NewModel(api, journal, cfg.Wallet, logWriter.Lines())
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui failed: %v\n", err)
		os.Exit(1)
	}
}
