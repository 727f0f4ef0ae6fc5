// Package amount holds the bid-step arithmetic and the balance display
// helpers shared by the gateway and the CLI.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount = errors.New("amount: value cannot be negative")
	ErrCommission     = errors.New("amount: commission must be between 0 and 100 percent")
)

var hundred = decimal.NewFromInt(100)

// StartBid is the smallest bid worth proposing: one step above the last
// bid, or the auction minimum when nobody has bid yet.
func StartBid(lastBid, minStep, minBid decimal.Decimal) decimal.Decimal {
	if lastBid.IsPositive() {
		return lastBid.Add(minStep)
	}
	return minBid
}

// AdaptiveFixed truncates v to needNonZero fractional digits counted from
// the first non-zero one and drops trailing zeros. Leading fractional zeros
// are kept, so small balances never collapse to "0".
func AdaptiveFixed(v decimal.Decimal, needNonZero int) string {
	if needNonZero < 0 {
		needNonZero = 0
	}
	s := v.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, fracPart, found := strings.Cut(s, ".")
	if !found || needNonZero == 0 {
		return sign + intPart
	}

	var b strings.Builder
	taken := 0
	for _, r := range fracPart {
		if taken == needNonZero {
			break
		}
		b.WriteRune(r)
		// Leading zeros are free; every digit after the first
		// non-zero one counts.
		if taken > 0 || r != '0' {
			taken++
		}
	}

	frac := strings.TrimRight(b.String(), "0")
	if frac == "" {
		return sign + intPart
	}
	return sign + intPart + "." + frac
}

// FromPlanck converts an integer chain amount into token units.
func FromPlanck(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToPlanck converts token units into the chain's integer representation,
// truncating anything below one planck.
func ToPlanck(v decimal.Decimal, decimals int32) (*big.Int, error) {
	if v.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return v.Shift(decimals).Truncate(0).BigInt(), nil
}

// Commission is the marketplace fee on price for a percentage commission.
func Commission(price, percent decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return decimal.Zero, ErrCommission
	}
	return price.Mul(percent).Div(hundred), nil
}

// WithCommission is what a buyer pays for a listing priced at price.
func WithCommission(price, percent decimal.Decimal) (decimal.Decimal, error) {
	fee, err := Commission(price, percent)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Add(fee), nil
}

// TimeLeft renders an auction countdown such as "1d 2h 5m".
func TimeLeft(stopAt, now time.Time) string {
	left := stopAt.Sub(now)
	if left <= 0 {
		return "ended"
	}
	days := int(left / (24 * time.Hour))
	left -= time.Duration(days) * 24 * time.Hour
	hours := int(left / time.Hour)
	left -= time.Duration(hours) * time.Hour
	minutes := int(left / time.Minute)
	left -= time.Duration(minutes) * time.Minute
	seconds := int(left / time.Second)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
