package trade

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/blockchain"
	"solana-wallet-trace/internal/token"
)

// ChainClient fetches transaction records from the JSON-RPC node.
type ChainClient interface {
	GetTransaction(ctx context.Context, signature string) (*blockchain.TransactionResult, error)
}

// MetadataClient fetches token metadata and prices from the off-chain
// service. Both calls are best-effort for the decoder.
type MetadataClient interface {
	GetTokens(ctx context.Context, mints []string) ([]token.Info, error)
	GetPrices(ctx context.Context, mints []string) (map[string]token.Price, error)
}

// Decoder turns a transaction signature into a classified Trade for a
// specific wallet, or nil when the transaction is not attributable.
type Decoder struct {
	onChain  ChainClient
	offChain MetadataClient
	store    *token.Store
}

// NewDecoder creates a trade decoder.
func NewDecoder(onChain ChainClient, offChain MetadataClient, store *token.Store) *Decoder {
	return &Decoder{
		onChain:  onChain,
		offChain: offChain,
		store:    store,
	}
}

// Decode fetches the transaction, attributes it via the fee payer and
// builds the Trade. A nil Trade with nil error means "not a trade for
// this wallet".
func (d *Decoder) Decode(ctx context.Context, signature, wallet string) (*Trade, error) {
	tx, err := d.onChain.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}

	// Log mentions are not enough to attribute a transaction; only
	// the fee payer owns it.
	if tx.Transaction.FeePayer() != wallet {
		return nil, nil
	}

	if tx.Meta == nil {
		return nil, nil
	}

	deltas := balanceDeltas(tx.Meta, wallet)
	if len(deltas) == 0 {
		return nil, nil
	}

	return d.buildTrade(ctx, deltas), nil
}

// balanceDeltas computes the wallet's net per-mint changes: SOL minus
// fee under the WSOL mint, then pre-token balances subtracted and
// post-token balances added. Zero entries are dropped.
func balanceDeltas(meta *blockchain.TransactionMeta, wallet string) map[string]float64 {
	deltas := make(map[string]float64)

	deltas[token.WSOL] = solChange(meta) - float64(meta.Fee)/token.SolDenom

	for _, tb := range meta.PreTokenBalances {
		if tb.Owner != nil && *tb.Owner == wallet {
			deltas[tb.Mint] -= tb.UITokenAmount.ToF64()
		}
	}

	for _, tb := range meta.PostTokenBalances {
		if tb.Owner != nil && *tb.Owner == wallet {
			deltas[tb.Mint] += tb.UITokenAmount.ToF64()
		}
	}

	for mint, delta := range deltas {
		if delta == 0.0 {
			delete(deltas, mint)
		}
	}

	return deltas
}

func solChange(meta *blockchain.TransactionMeta) float64 {
	var pre, post uint64
	if len(meta.PreBalances) > 0 {
		pre = meta.PreBalances[0]
	}
	if len(meta.PostBalances) > 0 {
		post = meta.PostBalances[0]
	}
	return (float64(post) - float64(pre)) / token.SolDenom
}

// buildTrade enriches the deltas with prices and metadata and
// partitions them into sell and buy legs. Enrichment failures degrade
// the output but never abort it.
func (d *Decoder) buildTrade(ctx context.Context, deltas map[string]float64) *Trade {
	mints := make([]string, 0, len(deltas))
	for mint := range deltas {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	prices, err := d.offChain.GetPrices(ctx, mints)
	if err != nil {
		log.Warn().Err(err).Msg("price lookup failed, trade proceeds unpriced")
		prices = nil
	}

	if err := token.Prime(ctx, mints, d.offChain, d.store); err != nil {
		log.Warn().Err(err).Msg("metadata fetch failed, trade proceeds unnamed")
	}

	var sells, buys []Transfer
	for _, mint := range mints {
		delta := deltas[mint]

		transfer := Transfer{
			Mint:   mint,
			Amount: abs(delta),
		}
		if price, ok := prices[mint]; ok {
			usd := price.USDPrice
			transfer.USDPrice = &usd
		}
		if info, err := d.store.Get(mint); err == nil {
			symbol, name := info.Symbol, info.Name
			transfer.Symbol = &symbol
			transfer.Name = &name
		} else if !errors.Is(err, token.ErrTokenNotFound) {
			log.Warn().Err(err).Str("mint", mint).Msg("token lookup failed")
		}

		if delta < 0 {
			sells = append(sells, transfer)
		} else {
			buys = append(buys, transfer)
		}
	}

	// A trade needs at least one leg on each side.
	if len(sells) == 0 || len(buys) == 0 {
		return nil
	}

	return &Trade{From: sells, To: buys}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
