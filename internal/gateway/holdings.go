package gateway

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/token"
	"solana-wallet-trace/internal/trade"
)

// Holding is one row of a holdings snapshot. Price fields are absent
// when the price service had no quote for the mint.
type Holding struct {
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Address  string   `json:"address"`
	Balance  string   `json:"balance"`
	USDPrice *float64 `json:"usd_price,omitempty"`
	USDValue *float64 `json:"usd_value,omitempty"`
}

// Holdings snapshots the wallet's non-zero balances across its watched
// mints. The native balance is folded into the wrapped-native entry.
// Mints without store metadata are skipped.
func (s *Service) Holdings(ctx context.Context, id uuid.UUID) ([]Holding, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, statusErrorf(CodeNotFound, "Client not found")
	}

	balances := make(map[string]float64, len(sess.TokenAccounts)+1)

	for mint, account := range sess.TokenAccounts {
		amount, err := s.onChain.GetTokenAccountBalance(ctx, account)
		if err != nil {
			// Token accounts that were never created simply hold
			// nothing.
			log.Debug().Err(err).Str("mint", mint).Msg("token account balance unavailable")
			continue
		}
		if v := amount.ToF64(); v != 0.0 {
			balances[mint] += v
		}
	}

	lamports, err := s.onChain.GetBalance(ctx, sess.Wallet)
	if err != nil {
		return nil, statusErrorf(CodeInternal, "balance lookup failed: %s", err)
	}
	if lamports > 0 {
		balances[token.WSOL] += float64(lamports) / token.SolDenom
	}

	mints := make([]string, 0, len(balances))
	for mint := range balances {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	prices, err := s.offChain.GetPrices(ctx, mints)
	if err != nil {
		log.Warn().Err(err).Msg("price lookup failed, holdings proceed unpriced")
		prices = nil
	}

	holdings := make([]Holding, 0, len(mints))
	for _, mint := range mints {
		info, err := s.store.Get(mint)
		if err != nil {
			continue
		}

		h := Holding{
			Name:    info.Name,
			Symbol:  info.Symbol,
			Address: mint,
			Balance: trade.FmtToken(balances[mint]),
		}
		if price, ok := prices[mint]; ok {
			usd := price.USDPrice
			value := balances[mint] * price.USDPrice
			h.USDPrice = &usd
			h.USDValue = &value
		}
		holdings = append(holdings, h)
	}

	return holdings, nil
}
