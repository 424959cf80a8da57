package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/api/responses"
	"github.com/angelmondragon/haggle-backend/api/validators"
	"github.com/angelmondragon/haggle-backend/internal/negotiation"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
)

const (
	maxMessageLength     = 2000
	maxProductNameLength = 300

	actionLockPrice = "LOCK_PRICE"
	actionNone      = "NONE"
)

type productPayload struct {
	Name      string                `json:"name" validate:"max=300"`
	Price     validators.FlexString `json:"price"`
	VariantID validators.FlexString `json:"variantId"`
}

type negotiateRequest struct {
	Message     string           `json:"message" validate:"required"`
	Product     productPayload   `json:"product"`
	ThreadID    *string          `json:"threadId"`
	LockedPrice *decimal.Decimal `json:"locked_price"`

	// Older widget builds send these at the top level.
	Price     validators.FlexString `json:"price"`
	VariantID validators.FlexString `json:"variantId"`
}

func (p negotiateRequest) toRequest() negotiation.Request {
	price := p.Product.Price
	if price == "" {
		price = p.Price
	}
	variant := p.Product.VariantID
	if variant == "" {
		variant = p.VariantID
	}

	// The thread token is opaque and goes back to the widget byte for byte. Only
	// an empty string is treated as absent.
	var threadID *string
	if p.ThreadID != nil && *p.ThreadID != "" {
		token := *p.ThreadID
		threadID = &token
	}

	return negotiation.Request{
		Message: validators.SanitizeString(p.Message, maxMessageLength),
		Product: negotiation.Product{
			Name:       validators.SanitizeString(p.Product.Name, maxProductNameLength),
			BasePrice:  price.String(),
			VariantRef: strings.TrimSpace(variant.String()),
		},
		ThreadID:    threadID,
		LockedPrice: p.LockedPrice,
	}
}

type negotiateResponse struct {
	Reply       string       `json:"reply"`
	FinalPrice  *json.Number `json:"final_price"`
	AgreedPrice *json.Number `json:"agreed_price"`
	Intent      string       `json:"intent"`
	Action      string       `json:"action"`
	CheckoutURL *string      `json:"checkout_url"`
	ThreadID    *string      `json:"threadId"`
}

func newNegotiateResponse(result *negotiation.Result) negotiateResponse {
	var price *json.Number
	if result.AgreedPrice != nil {
		n := json.Number(result.AgreedPrice.String())
		price = &n
	}
	action := actionNone
	if result.Intent == negotiation.IntentLock {
		action = actionLockPrice
	}
	return negotiateResponse{
		Reply:       result.Reply,
		FinalPrice:  price,
		AgreedPrice: price,
		Intent:      string(result.Intent),
		Action:      action,
		CheckoutURL: result.CheckoutURL,
		ThreadID:    result.ThreadID,
	}
}

// Negotiate serves the widget endpoint. POST runs a turn, GET is a liveness probe
// for the widget host and OPTIONS answers bare preflights.
func Negotiate(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodGet:
			responses.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		case http.MethodPost:
		default:
			w.Header().Set("Allow", "GET, POST, OPTIONS")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "Method Not Allowed"))
			return
		}

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMisconfigured, "negotiation service unavailable"))
			return
		}
		if err := svc.Ready(); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload negotiateRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Negotiate(ctx, payload.toRequest())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, newNegotiateResponse(result))
	}
}
