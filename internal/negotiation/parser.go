package negotiation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/internal/pricing"
)

var (
	envelopeTextKeys   = []string{"response", "output", "text", "message"}
	envelopeThreadKeys = []string{"threadId", "thread_id"}
	innerPriceKeys     = []string{"agreedPrice", "agreed_price", "final_price", "finalPrice"}
	innerIntentKeys    = []string{"intent", "action"}

	fencePattern        = regexp.MustCompile("(?i)```(?:json)?")
	lazyObjectPattern   = regexp.MustCompile(`(?s)\{.*?\}`)
	greedyObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Parsed is the best-effort reading of an oracle reply. Every field is optional:
// an empty Reply, nil Price or IntentSet=false mean the oracle did not supply a
// usable value and the resolver's defaults apply.
type Parsed struct {
	Reply     string
	Price     *decimal.Decimal
	Intent    Intent
	IntentSet bool
	ThreadID  *string
	// Structured reports whether an inner JSON object was recovered at all.
	Structured bool
}

type rawObject map[string]json.RawMessage

// ParseOracleReply extracts a decision from raw oracle output. It never fails:
// anything it cannot read is left at its default and the caller's thread token
// is echoed back.
func ParseOracleReply(raw string, threadID *string) Parsed {
	parsed := Parsed{ThreadID: threadID}

	envelope, ok := decodeObject([]byte(strings.TrimSpace(raw)))
	if !ok {
		return parsed
	}
	if token, ok := lookupString(envelope, envelopeThreadKeys...); ok {
		parsed.ThreadID = &token
	}

	text, ok := nestedText(envelope)
	if !ok {
		return parsed
	}
	inner, ok := extractObject(stripFences(text))
	if !ok {
		return parsed
	}
	parsed.Structured = true

	if reply, ok := lookupString(inner, "reply"); ok {
		parsed.Reply = reply
	}
	if price, ok := lookupPrice(inner); ok {
		parsed.Price = &price
	}
	if intent, ok := lookupIntent(inner); ok {
		parsed.Intent = intent
		parsed.IntentSet = true
	}
	return parsed
}

func decodeObject(data []byte) (rawObject, bool) {
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// nestedText returns the model's answer from the envelope. The answer is usually
// a string, sometimes a string holding another JSON string, and occasionally an
// object that was never stringified.
func nestedText(envelope rawObject) (string, bool) {
	for _, key := range envelopeTextKeys {
		value, ok := envelope[key]
		if !ok {
			continue
		}
		value = bytes.TrimSpace(value)
		if len(value) > 0 && value[0] == '{' {
			return string(value), true
		}
		text, ok := unquote(value)
		if !ok {
			continue
		}
		for i := 0; i < 2; i++ {
			trimmed := strings.TrimSpace(text)
			if !strings.HasPrefix(trimmed, `"`) {
				break
			}
			inner, ok := unquote([]byte(trimmed))
			if !ok {
				break
			}
			text = inner
		}
		if strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

func unquote(data []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

func stripFences(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
}

// extractObject finds the first {...} in text that parses as a JSON object,
// trying the shortest match first and then the widest.
func extractObject(text string) (rawObject, bool) {
	for _, pattern := range []*regexp.Regexp{lazyObjectPattern, greedyObjectPattern} {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}
		if obj, ok := decodeObject([]byte(match)); ok {
			return obj, true
		}
	}
	return nil, false
}

func lookupString(obj rawObject, keys ...string) (string, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		s, ok := unquote(value)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

func lookupPrice(obj rawObject) (decimal.Decimal, bool) {
	for _, key := range innerPriceKeys {
		value, ok := obj[key]
		if !ok {
			continue
		}
		var number json.Number
		if err := json.Unmarshal(value, &number); err != nil {
			continue
		}
		// json.Number also accepts quoted strings; prices must be bare numbers.
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || trimmed[0] == '"' {
			continue
		}
		price, err := decimal.NewFromString(number.String())
		if err != nil || !pricing.InRange(price) {
			continue
		}
		return price, true
	}
	return decimal.Zero, false
}

func lookupIntent(obj rawObject) (Intent, bool) {
	for _, key := range innerIntentKeys {
		s, ok := lookupString(obj, key)
		if !ok {
			continue
		}
		if intent, ok := ParseIntent(s); ok {
			return intent, true
		}
	}
	return "", false
}
