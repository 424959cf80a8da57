package negotiation

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/internal/pricing"
)

var affirmationPattern = regexp.MustCompile(`(?i)\b(ok|okay|deal|lock|yes|fine|done|agreed)\b`)

// IsAffirmation reports whether the shopper explicitly agreed in their own words.
func IsAffirmation(message string) bool {
	return affirmationPattern.MatchString(message)
}

// ResolveInput carries everything the resolver needs for one turn.
type ResolveInput struct {
	Parsed   Parsed
	Message  string
	Base     decimal.Decimal
	Floor    decimal.Decimal
	Fallback decimal.Decimal
	Replies  Replies
	// InferLockFromPrice treats a bare price with no intent as an acceptance.
	InferLockFromPrice bool
}

// Resolve reconciles the oracle's reading with the shopper's own confirmation and
// enforces the floor. A LOCK decision always carries a price >= Floor.
func Resolve(in ResolveInput) Decision {
	parsed := in.Parsed

	var price *decimal.Decimal
	if parsed.Price != nil {
		price = pricePtr(pricing.Clamp(*parsed.Price, in.Base))
	}
	reply := parsed.Reply

	intent := IntentNegotiate
	switch {
	case parsed.IntentSet:
		intent = parsed.Intent
	case in.InferLockFromPrice && price != nil:
		intent = IntentLock
	}

	if IsAffirmation(in.Message) {
		intent = IntentLock
	}

	belowFloor := price != nil && price.LessThan(in.Floor)

	if intent == IntentLock && (price == nil || belowFloor) {
		return in.fallbackDecision(parsed.ThreadID)
	}
	if intent == IntentNegotiate && (belowFloor || reply == "") {
		return in.fallbackDecision(parsed.ThreadID)
	}

	if reply == "" {
		reply = in.Replies.Locked(*price)
	}
	return Decision{
		Reply:       reply,
		AgreedPrice: price,
		Intent:      intent,
		ThreadID:    parsed.ThreadID,
	}
}

func (in ResolveInput) fallbackDecision(threadID *string) Decision {
	return Decision{
		Reply:       in.Replies.Fallback(in.Fallback),
		AgreedPrice: pricePtr(in.Fallback),
		Intent:      IntentNegotiate,
		ThreadID:    threadID,
	}
}
