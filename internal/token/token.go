package token

// WSOL is the canonical wrapped-SOL mint. Native SOL movements are
// accounted under this mint so SOL is priced and displayed like any
// other token.
const WSOL = "So11111111111111111111111111111111111111112"

// SolDenom converts lamports to SOL.
const SolDenom = 1_000_000_000.0

// Info is the metadata for a mint as served by the token API.
type Info struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Icon     *string `json:"icon"`
	Decimals uint8   `json:"decimals"`
}

// Price is a point-in-time USD quote for a mint. Prices are never
// cached; every decode fetches fresh ones.
type Price struct {
	USDPrice       float64  `json:"usdPrice"`
	Decimals       uint8    `json:"decimals"`
	BlockID        uint64   `json:"blockId"`
	PriceChange24h *float64 `json:"priceChange24h"`
}
