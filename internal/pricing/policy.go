// Package pricing derives the negotiation price bounds from a product's base price.
package pricing

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	maxIntegerDigits  = 12
	maxFractionDigits = 2
	// exponents outside this range are rejected before any arithmetic rescales them.
	maxExponentSpan = 18
)

var (
	one       = decimal.NewFromInt(1)
	maxAmount = decimal.New(1, maxIntegerDigits)

	ErrInvalidAmount = errors.New("amount must be a positive number")
)

// Policy computes floor and fallback prices from fixed discount ratios.
// The zero value is not usable; build one with NewPolicy.
type Policy struct {
	maxDiscount     decimal.Decimal
	defaultDiscount decimal.Decimal
}

// NewPolicy validates 0 < maxDiscount < 1 and 0 <= defaultDiscount <= maxDiscount,
// which keeps floor <= fallback <= base for every positive base price.
func NewPolicy(maxDiscount, defaultDiscount decimal.Decimal) (*Policy, error) {
	if !maxDiscount.IsPositive() || maxDiscount.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("max discount %s must be within (0, 1)", maxDiscount)
	}
	if defaultDiscount.IsNegative() || defaultDiscount.GreaterThan(maxDiscount) {
		return nil, fmt.Errorf("default discount %s must be within [0, %s]", defaultDiscount, maxDiscount)
	}
	return &Policy{maxDiscount: maxDiscount, defaultDiscount: defaultDiscount}, nil
}

// MaxDiscount returns the configured maximum discount ratio.
func (p *Policy) MaxDiscount() decimal.Decimal {
	return p.maxDiscount
}

// Floor is the lowest price the service may ever agree to.
func (p *Policy) Floor(base decimal.Decimal) decimal.Decimal {
	floor := discounted(base, p.maxDiscount)
	if fallback := p.Fallback(base); floor.GreaterThan(fallback) {
		return fallback
	}
	return floor
}

// Fallback is the counter-offer used whenever the oracle is unusable.
func (p *Policy) Fallback(base decimal.Decimal) decimal.Decimal {
	return discounted(base, p.defaultDiscount)
}

// Bounds returns floor and fallback together.
func (p *Policy) Bounds(base decimal.Decimal) (floor, fallback decimal.Decimal) {
	return p.Floor(base), p.Fallback(base)
}

// discounted rounds base*(1-ratio) half away from zero to whole currency units.
// Results that would round to zero or climb above base are pinned to base.
func discounted(base, ratio decimal.Decimal) decimal.Decimal {
	price := base.Mul(one.Sub(ratio)).Round(0)
	if !price.IsPositive() || price.GreaterThan(base) {
		return base
	}
	return price
}

// Clamp caps a proposed price at the base price.
func Clamp(price, base decimal.Decimal) decimal.Decimal {
	if price.GreaterThan(base) {
		return base
	}
	return price
}

// ParseAmount parses a shopper-facing price such as "1,299", "₹ 1 299.50" or "1299".
// Thousands separators and a leading currency marker are stripped.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == ',' || r == '_' || unicode.IsSpace(r):
			return -1
		}
		return r
	}, raw)
	if unmarked := strings.TrimLeftFunc(cleaned, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSymbol(r)
	}); unmarked != cleaned {
		// "Rs.1299"
		cleaned = strings.TrimPrefix(unmarked, ".")
	}
	if cleaned == "" || strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !ValidAmount(amount) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return amount, nil
}

// InRange reports whether amount is positive and below 10^12. Only the exponent is
// inspected before comparing, so oversized inputs such as 1e50000000 are cheap to reject.
func InRange(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if exp := amount.Exponent(); exp > maxIntegerDigits || exp < -maxExponentSpan {
		return false
	}
	return amount.LessThan(maxAmount)
}

// ValidAmount reports whether amount is a money value: InRange with at most two
// decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	return InRange(amount) && amount.Equal(amount.Truncate(maxFractionDigits))
}

// Format renders an amount for shopper-facing text, e.g. "₹900" or "₹849.50".
func Format(symbol string, amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return symbol + amount.StringFixed(0)
	}
	return symbol + amount.StringFixed(2)
}
