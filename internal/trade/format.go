package trade

import (
	"fmt"
	"math"
	"strconv"
)

// FmtToken formats a token amount with thousands separators and two
// fractional digits.
func FmtToken(value float64) string {
	return fmtCcy(value, "")
}

// FmtUSD formats a USD amount the same way, with a dollar prefix.
func FmtUSD(value float64) string {
	return fmtCcy(value, "$")
}

// fmtCcy rounds to cents half away from zero, then groups the integer
// part in threes.
func fmtCcy(value float64, ccy string) string {
	rounded := math.Round(value*100.0) / 100.0

	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	intPart := uint64(math.Trunc(rounded))
	fracPart := uint64(math.Round((rounded - math.Trunc(rounded)) * 100.0))

	return fmt.Sprintf("%s%s%s.%02d", sign, ccy, groupThousands(intPart), fracPart)
}

func groupThousands(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}

	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// AmountToF64 converts a raw integer amount string with the given
// decimal scale to a float. Parse failures yield 0.0.
func AmountToF64(amount string, decimals uint8) float64 {
	raw, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0.0
	}
	return float64(raw) / math.Pow10(int(decimals))
}
