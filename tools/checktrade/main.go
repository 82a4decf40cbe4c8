package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"solana-wallet-trace/internal/blockchain"
	"solana-wallet-trace/internal/config"
	"solana-wallet-trace/internal/jupiter"
	"solana-wallet-trace/internal/token"
	"solana-wallet-trace/internal/trade"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./tools/checktrade <WALLET> <TX_SIGNATURE>")
		fmt.Println("Example: go run ./tools/checktrade 4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T 2gHc4gtPHJgVJhccGytQqivvETZoyfiAu12UTE3vN4v6WPz3mGmPGmwxS7NwbXcv28NAQP6Re8rdi2XS9tU6rMRs")
		os.Exit(1)
	}

	wallet := os.Args[1]
	signature := os.Args[2]

	title := color.New(color.FgCyan, color.Bold)
	title.Println("📊 TRADE DECODER")
	title.Println("================")
	fmt.Printf("Wallet: %s\nTX:     %s\n\n", wallet, signature)

	cfg, err := config.LoadServer()
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}

	rpc := blockchain.NewRPCClient(cfg.RPCURL, cfg.RPCFallbackURL, cfg.RPCAPIKey)
	jup := jupiter.NewClient(cfg.JupiterBaseURL, 10*time.Second)
	decoder := trade.NewDecoder(rpc, jup, token.NewStore())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tr, err := decoder.Decode(ctx, signature, wallet)
	if err != nil {
		color.Red("❌ Decode error: %v", err)
		os.Exit(1)
	}
	if tr == nil {
		color.Yellow("No trade: the transaction does not pertain to this wallet")
		return
	}

	color.Green("✅ %s", tr.Kind())
	fmt.Println()

	sell := color.New(color.FgRed)
	buy := color.New(color.FgGreen)
	fmt.Println("From:")
	for _, leg := range tr.From {
		sell.Printf("  - %s\n", leg)
	}
	fmt.Println("To:")
	for _, leg := range tr.To {
		buy.Printf("  + %s\n", leg)
	}
}
