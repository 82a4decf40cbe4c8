package blockchain

import (
	"encoding/json"
	"math"
	"strconv"
)

// TransactionResult is the decoded result of getTransaction with
// encoding "json".
type TransactionResult struct {
	BlockTime   uint64             `json:"blockTime"`
	Slot        uint64             `json:"slot"`
	Transaction EncodedTransaction `json:"transaction"`
	Meta        *TransactionMeta   `json:"meta"`
}

// EncodedTransaction carries the signatures and message of a
// transaction.
type EncodedTransaction struct {
	Signatures []string           `json:"signatures"`
	Message    TransactionMessage `json:"message"`
}

// TransactionMessage holds the ordered account keys; the first key is
// the fee payer by convention.
type TransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// TransactionMeta holds pre/post balances and the fee charged.
type TransactionMeta struct {
	Err               json.RawMessage `json:"err"`
	Fee               uint64          `json:"fee"`
	PreBalances       []uint64        `json:"preBalances"`
	PostBalances      []uint64        `json:"postBalances"`
	PreTokenBalances  []TokenBalance  `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance  `json:"postTokenBalances"`
}

// TokenBalance is one token-account balance snapshot inside a
// transaction's meta.
type TokenBalance struct {
	Mint          string      `json:"mint"`
	Owner         *string     `json:"owner"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// TokenAmount is the raw integer amount plus its decimal scale.
type TokenAmount struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// ToF64 converts the raw amount string to a decimal-scaled float.
// Parse failures contribute 0.0 rather than an error.
func (a TokenAmount) ToF64() float64 {
	raw, err := strconv.ParseUint(a.Amount, 10, 64)
	if err != nil {
		return 0.0
	}
	return float64(raw) / math.Pow10(int(a.Decimals))
}

// FeePayer returns the first account key, or "" when the message has
// none.
func (t *EncodedTransaction) FeePayer() string {
	if len(t.Message.AccountKeys) == 0 {
		return ""
	}
	return t.Message.AccountKeys[0]
}
