package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/shopify"
)

type stubGateway struct {
	inputs []shopify.DraftOrderInput
	order  *shopify.DraftOrder
	err    error
}

func (s *stubGateway) CreateDraftOrder(_ context.Context, input shopify.DraftOrderInput) (*shopify.DraftOrder, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func int64Ptr(v int64) *int64 { return &v }

func orderFor(url string, variant *int64) *shopify.DraftOrder {
	return &shopify.DraftOrder{
		ID:         9,
		InvoiceURL: url,
		LineItems:  []shopify.DraftOrderLine{{VariantID: variant}},
	}
}

func newTestCommitter(t *testing.T, gateway *stubGateway) *Committer {
	t.Helper()
	committer, err := NewCommitter(gateway, nil)
	require.NoError(t, err)
	committer.now = func() time.Time { return time.Unix(0, 1700000000000000000) }
	committer.newID = func() uuid.UUID { return uuid.MustParse("0123abcd-0000-4000-8000-000000000000") }
	return committer
}

func TestCommitBuildsDraftOrder(t *testing.T) {
	gateway := &stubGateway{order: orderFor("https://shop/invoices/1", int64Ptr(4242))}
	committer := newTestCommitter(t, gateway)

	commitment, err := committer.Commit(context.Background(), "4242", decimal.NewFromInt(850))
	require.NoError(t, err)

	assert.Equal(t, "https://shop/invoices/1", commitment.CheckoutURL)
	assert.Equal(t, "4242_1700000000000000000_0123abcd", commitment.SessionMarker)
	assert.Equal(t, int64(9), commitment.DraftOrderID)

	require.Len(t, gateway.inputs, 1)
	input := gateway.inputs[0]
	require.Len(t, input.LineItems, 1)
	assert.Equal(t, shopify.LineItem{VariantID: 4242, Quantity: 1, Price: "850.00"}, input.LineItems[0])
	assert.Equal(t, draftOrderNote, input.Note)
	assert.Equal(t, draftOrderTag, input.Tags)
	assert.Equal(t, []shopify.NoteAttribute{{Name: sessionAttribute, Value: commitment.SessionMarker}}, input.NoteAttributes)
}

func TestCommitAcceptsVariantGID(t *testing.T) {
	gateway := &stubGateway{order: orderFor("https://shop/invoices/2", nil)}
	committer := newTestCommitter(t, gateway)

	_, err := committer.Commit(context.Background(), "gid://shopify/ProductVariant/77", decimal.RequireFromString("849.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(77), gateway.inputs[0].LineItems[0].VariantID)
	assert.Equal(t, "849.50", gateway.inputs[0].LineItems[0].Price)
}

func TestCommitEveryCallCreatesNewOrder(t *testing.T) {
	gateway := &stubGateway{order: orderFor("https://shop/invoices/3", nil)}
	committer, err := NewCommitter(gateway, nil)
	require.NoError(t, err)

	first, err := committer.Commit(context.Background(), "5", decimal.NewFromInt(10))
	require.NoError(t, err)
	second, err := committer.Commit(context.Background(), "5", decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.Len(t, gateway.inputs, 2)
	assert.NotEqual(t, first.SessionMarker, second.SessionMarker)
}

func TestCommitFailures(t *testing.T) {
	cases := []struct {
		name     string
		ref      string
		price    decimal.Decimal
		gateway  *stubGateway
		wantCode pkgerrors.Code
	}{
		{
			name:     "invalid variant",
			ref:      "abc",
			price:    decimal.NewFromInt(10),
			gateway:  &stubGateway{},
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "non positive price",
			ref:      "1",
			price:    decimal.Zero,
			gateway:  &stubGateway{},
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "gateway error",
			ref:      "1",
			price:    decimal.NewFromInt(10),
			gateway:  &stubGateway{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("boom"), "draft order request failed")},
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "missing invoice url",
			ref:      "1",
			price:    decimal.NewFromInt(10),
			gateway:  &stubGateway{order: orderFor("", nil)},
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "mismatched line item",
			ref:      "1",
			price:    decimal.NewFromInt(10),
			gateway:  &stubGateway{order: orderFor("https://shop/invoices/4", int64Ptr(2))},
			wantCode: pkgerrors.CodeConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			committer := newTestCommitter(t, tc.gateway)
			commitment, err := committer.Commit(context.Background(), tc.ref, tc.price)
			require.Error(t, err)
			assert.Nil(t, commitment)
			assert.True(t, pkgerrors.IsCode(err, tc.wantCode), "got %v", err)
		})
	}
}

func TestNewCommitterRequiresGateway(t *testing.T) {
	_, err := NewCommitter(nil, nil)
	assert.Error(t, err)
}

func TestParseVariantID(t *testing.T) {
	id, err := ParseVariantID(" 123 ")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)

	for _, ref := range []string{"", "0", "-4", "gid://shopify/Product/1", "12.5"} {
		_, err := ParseVariantID(ref)
		assert.Error(t, err, ref)
	}
}
