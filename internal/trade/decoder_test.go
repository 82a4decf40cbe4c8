package trade

import (
	"context"
	"errors"
	"math"
	"testing"

	"solana-wallet-trace/internal/blockchain"
	"solana-wallet-trace/internal/token"
)

type mockChain struct {
	tx  *blockchain.TransactionResult
	err error
}

func (m *mockChain) GetTransaction(_ context.Context, _ string) (*blockchain.TransactionResult, error) {
	return m.tx, m.err
}

type mockMetadata struct {
	tokens    []token.Info
	prices    map[string]token.Price
	tokensErr error
	pricesErr error
}

func (m *mockMetadata) GetTokens(_ context.Context, _ []string) ([]token.Info, error) {
	return m.tokens, m.tokensErr
}

func (m *mockMetadata) GetPrices(_ context.Context, _ []string) (map[string]token.Price, error) {
	return m.prices, m.pricesErr
}

func strPtr(s string) *string { return &s }

// swapTx models a wallet spending SOL to buy one token: fee payer is
// the wallet, SOL drops by 0.5 plus the fee, and the token account
// gains 100 units.
func swapTx(wallet string) *blockchain.TransactionResult {
	return &blockchain.TransactionResult{
		BlockTime: 1736000000,
		Slot:      310000000,
		Transaction: blockchain.EncodedTransaction{
			Signatures: []string{"Sig1"},
			Message: blockchain.TransactionMessage{
				AccountKeys: []string{wallet, "TokenAccount1", "Program1"},
			},
		},
		Meta: &blockchain.TransactionMeta{
			Fee:          5000,
			PreBalances:  []uint64{2000000000, 0, 1},
			PostBalances: []uint64{1499995000, 0, 1},
			PostTokenBalances: []blockchain.TokenBalance{
				{Mint: "Mint1", Owner: strPtr(wallet), UITokenAmount: blockchain.TokenAmount{Amount: "100000000", Decimals: 6}},
			},
		},
	}
}

func TestDecodeSwap(t *testing.T) {
	wallet := "Wallet1"
	chain := &mockChain{tx: swapTx(wallet)}
	meta := &mockMetadata{
		tokens: []token.Info{
			{ID: token.WSOL, Name: "Wrapped SOL", Symbol: "SOL", Decimals: 9},
			{ID: "Mint1", Name: "Token One", Symbol: "ONE", Decimals: 6},
		},
		prices: map[string]token.Price{
			token.WSOL: {USDPrice: 200.0, Decimals: 9},
			"Mint1":    {USDPrice: 0.5, Decimals: 6},
		},
	}

	d := NewDecoder(chain, meta, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a trade")
	}
	if tr.Kind() != KindSwap {
		t.Errorf("expected Swap, got %s", tr.Kind())
	}

	if len(tr.From) != 1 || tr.From[0].Mint != token.WSOL {
		t.Fatalf("unexpected from side: %+v", tr.From)
	}
	// 0.500005 SOL left the wallet and the 0.000005 fee is charged on
	// top of it.
	if got, want := tr.From[0].Amount, 0.50001; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected SOL out %v, got %v", want, got)
	}
	if tr.From[0].Symbol == nil || *tr.From[0].Symbol != "SOL" {
		t.Errorf("expected SOL symbol, got %+v", tr.From[0].Symbol)
	}
	if tr.From[0].USDPrice == nil || *tr.From[0].USDPrice != 200.0 {
		t.Errorf("expected SOL price 200, got %+v", tr.From[0].USDPrice)
	}

	if len(tr.To) != 1 || tr.To[0].Mint != "Mint1" {
		t.Fatalf("unexpected to side: %+v", tr.To)
	}
	if got, want := tr.To[0].Amount, 100.0; got != want {
		t.Errorf("expected token in %v, got %v", want, got)
	}
}

func TestDecodeFeePayerMismatch(t *testing.T) {
	chain := &mockChain{tx: swapTx("SomeoneElse")}
	d := NewDecoder(chain, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", "Wallet1")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no trade for foreign fee payer, got %+v", tr)
	}
}

func TestDecodeUnknownSignature(t *testing.T) {
	d := NewDecoder(&mockChain{tx: nil}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "UnknownSig", "Wallet1")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no trade for unknown signature, got %+v", tr)
	}
}

func TestDecodeMissingMeta(t *testing.T) {
	tx := swapTx("Wallet1")
	tx.Meta = nil

	d := NewDecoder(&mockChain{tx: tx}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", "Wallet1")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no trade without meta, got %+v", tr)
	}
}

func TestDecodeRPCErrorSurfaced(t *testing.T) {
	chain := &mockChain{err: errors.New("node down")}
	d := NewDecoder(chain, &mockMetadata{}, token.NewStore())

	_, err := d.Decode(context.Background(), "Sig1", "Wallet1")
	if err == nil {
		t.Fatal("expected an error")
	}
}

// A transfer without a counter-leg is not a trade: pure SOL spend
// (fee plus transfer, nothing received) yields nil.
func TestDecodeOneSidedChange(t *testing.T) {
	wallet := "Wallet1"
	tx := swapTx(wallet)
	tx.Meta.PostTokenBalances = nil

	d := NewDecoder(&mockChain{tx: tx}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr != nil {
		t.Errorf("expected no trade for one-sided change, got %+v", tr)
	}
}

// SOL sits out of the trade when the incoming lamports exactly cancel
// the fee.
func TestDecodeFeeOnlySolChange(t *testing.T) {
	wallet := "Wallet1"
	tx := swapTx(wallet)
	tx.Meta.PreBalances = []uint64{2000000000, 0, 1}
	tx.Meta.PostBalances = []uint64{2000005000, 0, 1}
	tx.Meta.PreTokenBalances = []blockchain.TokenBalance{
		{Mint: "MintA", Owner: strPtr(wallet), UITokenAmount: blockchain.TokenAmount{Amount: "5000000", Decimals: 6}},
	}
	tx.Meta.PostTokenBalances = []blockchain.TokenBalance{
		{Mint: "MintB", Owner: strPtr(wallet), UITokenAmount: blockchain.TokenAmount{Amount: "7000000", Decimals: 6}},
	}

	d := NewDecoder(&mockChain{tx: tx}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a trade")
	}
	for _, side := range [][]Transfer{tr.From, tr.To} {
		for _, leg := range side {
			if leg.Mint == token.WSOL {
				t.Errorf("SOL leg should be absent when only the fee moved: %+v", leg)
			}
		}
	}
	if tr.Kind() != KindSwap {
		t.Errorf("expected Swap, got %s", tr.Kind())
	}
}

// Balances held by other owners never contribute to the wallet's
// deltas.
func TestDecodeIgnoresForeignTokenBalances(t *testing.T) {
	wallet := "Wallet1"
	tx := swapTx(wallet)
	tx.Meta.PostTokenBalances = append(tx.Meta.PostTokenBalances, blockchain.TokenBalance{
		Mint:          "Mint2",
		Owner:         strPtr("OtherWallet"),
		UITokenAmount: blockchain.TokenAmount{Amount: "999000000", Decimals: 6},
	})

	d := NewDecoder(&mockChain{tx: tx}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a trade")
	}
	if len(tr.To) != 1 || tr.To[0].Mint != "Mint1" {
		t.Errorf("foreign balance leaked into the trade: %+v", tr.To)
	}
}

// Price and metadata failures degrade the trade rather than abort it.
func TestDecodeEnrichmentBestEffort(t *testing.T) {
	wallet := "Wallet1"
	meta := &mockMetadata{
		pricesErr: errors.New("price api down"),
		tokensErr: errors.New("token api down"),
	}

	d := NewDecoder(&mockChain{tx: swapTx(wallet)}, meta, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a trade despite enrichment failures")
	}
	for _, leg := range append(tr.From, tr.To...) {
		if leg.USDPrice != nil {
			t.Errorf("expected unpriced leg, got %+v", leg)
		}
		if leg.Symbol != nil {
			t.Errorf("expected unnamed leg, got %+v", leg)
		}
	}
}

// Multi-leg sides are emitted in mint order so repeated decodes render
// identically.
func TestDecodeDeterministicOrder(t *testing.T) {
	wallet := "Wallet1"
	tx := swapTx(wallet)
	tx.Meta.PostTokenBalances = []blockchain.TokenBalance{
		{Mint: "MintZ", Owner: strPtr(wallet), UITokenAmount: blockchain.TokenAmount{Amount: "1000000", Decimals: 6}},
		{Mint: "MintA", Owner: strPtr(wallet), UITokenAmount: blockchain.TokenAmount{Amount: "2000000", Decimals: 6}},
	}

	d := NewDecoder(&mockChain{tx: tx}, &mockMetadata{}, token.NewStore())

	tr, err := d.Decode(context.Background(), "Sig1", wallet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a trade")
	}
	if tr.Kind() != KindMultiBuy {
		t.Errorf("expected Multi Buy, got %s", tr.Kind())
	}
	if len(tr.To) != 2 || tr.To[0].Mint != "MintA" || tr.To[1].Mint != "MintZ" {
		t.Errorf("expected mint-ordered legs, got %+v", tr.To)
	}
}
