package trade

import (
	"fmt"
	"strings"
)

// Transfer is one leg of a trade. Amount is strictly positive; the
// direction is encoded by which side of the Trade it sits on.
type Transfer struct {
	Mint     string   `json:"mint"`
	Symbol   *string  `json:"symbol,omitempty"`
	Name     *string  `json:"name,omitempty"`
	Amount   float64  `json:"amount"`
	USDPrice *float64 `json:"usd_price,omitempty"`
}

// Kind classifies a trade by the shape of its legs.
type Kind string

const (
	KindSwap      Kind = "Swap"
	KindMultiBuy  Kind = "Multi Buy"
	KindMultiSell Kind = "Multi Sell"
	KindMultiSwap Kind = "Multi Swap"
)

// Trade is a wallet-attributable non-zero balance change, split into
// outflows and inflows. Both sides are non-empty.
type Trade struct {
	From []Transfer `json:"from"`
	To   []Transfer `json:"to"`
}

// Kind reports the trade's display classification.
func (t *Trade) Kind() Kind {
	switch {
	case len(t.From) > 1 && len(t.To) > 1:
		return KindMultiSwap
	case len(t.From) > 1:
		return KindMultiSell
	case len(t.To) > 1:
		return KindMultiBuy
	default:
		return KindSwap
	}
}

// String renders the trade as a single stream message.
func (t *Trade) String() string {
	return fmt.Sprintf("%s (from:%s, to:%s)", t.Kind(), fmtSide(t.From), fmtSide(t.To))
}

func fmtSide(transfers []Transfer) string {
	parts := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		parts = append(parts, tr.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// String renders one leg as "<amount> <symbol> @ <usd|N/A>", falling
// back to a shortened mint when the symbol is unknown.
func (tr Transfer) String() string {
	label := shortMint(tr.Mint)
	if tr.Symbol != nil && *tr.Symbol != "" {
		label = *tr.Symbol
	}

	usd := "N/A"
	if tr.USDPrice != nil {
		usd = FmtUSD(*tr.USDPrice)
	}

	return fmt.Sprintf("%s %s @ %s", FmtToken(tr.Amount), label, usd)
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}
