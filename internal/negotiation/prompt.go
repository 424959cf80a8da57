package negotiation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/internal/pricing"
)

const defaultCurrencySymbol = "₹"

// Replies renders the deterministic shopper-facing lines used when the oracle's
// own wording cannot be used.
type Replies struct {
	Symbol string
}

func (r Replies) symbol() string {
	if r.Symbol == "" {
		return defaultCurrencySymbol
	}
	return r.Symbol
}

// Fallback is the counter-offer line, e.g. "I can offer ₹900. Want me to lock it in?".
func (r Replies) Fallback(price decimal.Decimal) string {
	return fmt.Sprintf("I can offer %s. Want me to lock it in?", pricing.Format(r.symbol(), price))
}

// Locked confirms an agreed price.
func (r Replies) Locked(price decimal.Decimal) string {
	return fmt.Sprintf("Deal! %s is locked in for you.", pricing.Format(r.symbol(), price))
}

type promptInput struct {
	ProductName string
	Base        decimal.Decimal
	Floor       decimal.Decimal
	MaxDiscount decimal.Decimal
	Message     string
	Symbol      string
}

// buildPrompt assembles the instruction block sent to the oracle. The shopper's
// message is embedded as a quoted Go string literal.
func buildPrompt(in promptInput) string {
	symbol := in.Symbol
	if symbol == "" {
		symbol = defaultCurrencySymbol
	}
	maxPercent := in.MaxDiscount.Shift(2).Round(0).String()

	var b strings.Builder
	b.WriteString("You are HAGGLE, an AI price negotiator for an online store.\n\n")
	b.WriteString("STRICT RULES:\n")
	b.WriteString("- Reply ONLY with valid JSON\n")
	b.WriteString("- No markdown, no explanations\n")
	b.WriteString("- Never mention checkout, cart, URL, or payment\n")
	fmt.Fprintf(&b, "- Max discount: %s%%\n", maxPercent)
	fmt.Fprintf(&b, "- Never go below %s\n", pricing.Format(symbol, in.Floor))
	b.WriteString("- Max 2 short sentences\n\n")
	b.WriteString("JSON FORMAT ONLY:\n")
	b.WriteString("{\n  \"reply\": string,\n  \"final_price\": number,\n  \"intent\": \"NEGOTIATE\" | \"LOCK_PRICE\"\n}\n\n")
	fmt.Fprintf(&b, "Product: %s\n", strings.TrimSpace(in.ProductName))
	fmt.Fprintf(&b, "Original price: %s\n", pricing.Format(symbol, in.Base))
	fmt.Fprintf(&b, "Floor price: %s\n\n", pricing.Format(symbol, in.Floor))
	b.WriteString("User message:\n")
	fmt.Fprintf(&b, "%q", strings.TrimSpace(in.Message))
	return b.String()
}
