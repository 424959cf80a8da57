package negotiation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Intent is the resolved outcome of a turn.
type Intent string

const (
	IntentNegotiate Intent = "NEGOTIATE"
	IntentLock      Intent = "LOCK"
)

// ParseIntent maps the vocabulary oracles use onto an Intent. Unknown values report ok=false.
func ParseIntent(value string) (Intent, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LOCK", "LOCK_PRICE", "ACCEPT":
		return IntentLock, true
	case "NEGOTIATE", "COUNTER", "NONE", "REJECT":
		return IntentNegotiate, true
	}
	return "", false
}

// Source identifies which path produced a decision.
type Source string

const (
	SourceLocked         Source = "locked"
	SourceOracle         Source = "oracle"
	SourceOracleFallback Source = "oracle_fallback"
)

// Product is the item under negotiation as described by the widget.
type Product struct {
	Name string
	// BasePrice is the raw listing price; it may carry thousands separators.
	BasePrice  string
	VariantRef string
}

// Request is a single negotiation turn.
type Request struct {
	Message     string
	Product     Product
	ThreadID    *string
	LockedPrice *decimal.Decimal
}

// Decision is the resolved answer for a turn.
type Decision struct {
	Reply       string
	AgreedPrice *decimal.Decimal
	Intent      Intent
	ThreadID    *string
}

// Result is a Decision plus the checkout link produced when the turn locked.
type Result struct {
	Decision
	CheckoutURL *string
	Floor       decimal.Decimal
	Fallback    decimal.Decimal
	Source      Source
}

func pricePtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
