package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Server holds the server-side configuration, read from the
// environment at startup.
type Server struct {
	// SOLANA_WS_URL, required.
	WSURL string
	// SOLANA_RPC_URL, required.
	RPCURL string
	// SOLANA_RPC_FALLBACK_URL, defaults to the primary.
	RPCFallbackURL string
	// SOLANA_RPC_API_KEY, optional.
	RPCAPIKey string
	// JUPITER_BASE_URL, optional; the client falls back to the public
	// endpoint.
	JupiterBaseURL string
	// LISTEN_ADDR, defaults to :8080.
	ListenAddr string
}

// LoadServer reads and validates the server environment.
func LoadServer() (*Server, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("LISTEN_ADDR", ":8080")

	cfg := &Server{
		WSURL:          v.GetString("SOLANA_WS_URL"),
		RPCURL:         v.GetString("SOLANA_RPC_URL"),
		RPCFallbackURL: v.GetString("SOLANA_RPC_FALLBACK_URL"),
		RPCAPIKey:      v.GetString("SOLANA_RPC_API_KEY"),
		JupiterBaseURL: v.GetString("JUPITER_BASE_URL"),
		ListenAddr:     v.GetString("LISTEN_ADDR"),
	}

	if cfg.WSURL == "" {
		return nil, fmt.Errorf("SOLANA_WS_URL is required")
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if cfg.RPCFallbackURL == "" {
		cfg.RPCFallbackURL = cfg.RPCURL
	}

	return cfg, nil
}

// Client holds the terminal client's configuration file.
type Client struct {
	Wallet     string   `mapstructure:"wallet"`
	TokenMints []string `mapstructure:"token_mints"`
	ServerURL  string   `mapstructure:"server_url"`
	JournalDB  string   `mapstructure:"journal_db"`
}

// LoadClient reads the TOML configuration file at path.
func LoadClient(path string) (*Client, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("server_url", "http://localhost:8080")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Wallet == "" {
		return nil, fmt.Errorf("wallet is required")
	}
	if len(cfg.TokenMints) == 0 {
		return nil, fmt.Errorf("token_mints is required")
	}

	return &cfg, nil
}
