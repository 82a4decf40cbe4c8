package gateway

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// validateInput checks the wallet and token addresses of an Init call.
// The token list is judged before any augmentation, so an empty input
// always fails even though the wrapped-native mint is added later.
func validateInput(wallet string, tokens []string) *StatusError {
	if !validAddress(wallet) {
		return statusErrorf(CodeInvalidArgument, "Invalid wallet address")
	}

	if len(tokens) == 0 {
		return statusErrorf(CodeInvalidArgument, "Missing tokens")
	}

	var invalid []string
	for _, mint := range tokens {
		if !validAddress(mint) {
			invalid = append(invalid, mint)
		}
	}
	switch len(invalid) {
	case 0:
		return nil
	case 1:
		return statusErrorf(CodeInvalidArgument, "Invalid token: %s", invalid[0])
	default:
		return statusErrorf(CodeInvalidArgument, "Invalid tokens: %s", strings.Join(invalid, ","))
	}
}

func validAddress(addr string) bool {
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}
