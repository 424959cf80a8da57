package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
	"github.com/angelmondragon/haggle-backend/pkg/shopify"
)

const (
	draftOrderNote      = "AI negotiated price"
	draftOrderTag       = "haggle"
	sessionAttribute    = "haggle_session"
	sessionSuffixLength = 8
	variantGIDPrefix    = "gid://shopify/ProductVariant/"
)

type draftOrderGateway interface {
	CreateDraftOrder(ctx context.Context, input shopify.DraftOrderInput) (*shopify.DraftOrder, error)
}

// Commitment is the checkout artifact created for an agreed price.
type Commitment struct {
	CheckoutURL   string
	SessionMarker string
	DraftOrderID  int64
}

// Committer turns an agreed price into a single-item draft order.
type Committer struct {
	gateway draftOrderGateway
	logg    *logger.Logger
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewCommitter constructs a committer on top of the commerce gateway.
func NewCommitter(gateway draftOrderGateway, logg *logger.Logger) (*Committer, error) {
	if gateway == nil {
		return nil, fmt.Errorf("draft order gateway is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Committer{
		gateway: gateway,
		logg:    logg,
		now:     time.Now,
		newID:   uuid.New,
	}, nil
}

// Commit creates a fresh draft order for productRef at price. Every call creates
// a new order; the session marker keeps them distinguishable.
func (c *Committer) Commit(ctx context.Context, productRef string, price decimal.Decimal) (*Commitment, error) {
	variantID, err := ParseVariantID(productRef)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agreed price must be positive")
	}

	marker := SessionMarker(strconv.FormatInt(variantID, 10), c.now(), c.newID())
	ctx = c.logg.WithSessionMarker(ctx, marker)

	order, err := c.gateway.CreateDraftOrder(ctx, shopify.DraftOrderInput{
		LineItems: []shopify.LineItem{{
			VariantID: variantID,
			Quantity:  1,
			Price:     price.StringFixed(2),
		}},
		Note:           draftOrderNote,
		NoteAttributes: []shopify.NoteAttribute{{Name: sessionAttribute, Value: marker}},
		Tags:           draftOrderTag,
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(order.InvoiceURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "draft order has no invoice url")
	}
	if len(order.LineItems) > 0 && order.LineItems[0].VariantID != nil && *order.LineItems[0].VariantID != variantID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "draft order line item does not match requested variant").
			WithDetails(map[string]any{"requested": variantID, "received": *order.LineItems[0].VariantID})
	}

	c.logg.Debug(c.logg.WithField(ctx, "draft_order_id", order.ID), "checkout.draft_order.created")
	return &Commitment{
		CheckoutURL:   order.InvoiceURL,
		SessionMarker: marker,
		DraftOrderID:  order.ID,
	}, nil
}

// ParseVariantID accepts a numeric variant id or its admin GID form.
func ParseVariantID(ref string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(ref), variantGIDPrefix)
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "variant id must be a positive integer")
	}
	return id, nil
}

// SessionMarker builds the order annotation <variant>_<unix nanos>_<8 hex chars>.
func SessionMarker(variantRef string, at time.Time, id uuid.UUID) string {
	suffix := strings.ReplaceAll(id.String(), "-", "")[:sessionSuffixLength]
	return fmt.Sprintf("%s_%d_%s", variantRef, at.UnixNano(), suffix)
}
