package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/haggle-backend/internal/negotiation"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
)

type stubNegotiationService struct {
	got      *negotiation.Request
	result   *negotiation.Result
	err      error
	notReady error
}

func (s *stubNegotiationService) Ready() error {
	return s.notReady
}

func (s *stubNegotiationService) Negotiate(_ context.Context, req negotiation.Request) (*negotiation.Result, error) {
	s.got = &req
	return s.result, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func serve(handler http.Handler, method, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/haggle", reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNegotiateReturnsDecision(t *testing.T) {
	price := decimal.NewFromInt(850)
	thread := "thr-9"
	url := "https://demo.myshopify.com/invoices/1"
	svc := &stubNegotiationService{result: &negotiation.Result{
		Decision: negotiation.Decision{
			Reply:       "Deal! ₹850 is locked in for you.",
			AgreedPrice: &price,
			Intent:      negotiation.IntentLock,
			ThreadID:    &thread,
		},
		CheckoutURL: &url,
	}}

	rec := serve(Negotiate(svc, testLogger()), http.MethodPost,
		`{"message":"deal","product":{"name":"Shirt","price":"1,000","variantId":4242},"threadId":"thr-9","locked_price":850}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Deal! ₹850 is locked in for you.", body["reply"])
	assert.Equal(t, float64(850), body["final_price"])
	assert.Equal(t, float64(850), body["agreed_price"])
	assert.Equal(t, "LOCK", body["intent"])
	assert.Equal(t, "LOCK_PRICE", body["action"])
	assert.Equal(t, url, body["checkout_url"])
	assert.Equal(t, "thr-9", body["threadId"])

	require.NotNil(t, svc.got)
	assert.Equal(t, "deal", svc.got.Message)
	assert.Equal(t, "Shirt", svc.got.Product.Name)
	assert.Equal(t, "1,000", svc.got.Product.BasePrice)
	assert.Equal(t, "4242", svc.got.Product.VariantRef)
	require.NotNil(t, svc.got.LockedPrice)
	assert.True(t, svc.got.LockedPrice.Equal(decimal.NewFromInt(850)))
}

func TestNegotiateNullFieldsOnCounterOffer(t *testing.T) {
	svc := &stubNegotiationService{result: &negotiation.Result{
		Decision: negotiation.Decision{Reply: "What did you have in mind?", Intent: negotiation.IntentNegotiate},
	}}

	rec := serve(Negotiate(svc, testLogger()), http.MethodPost, `{"message":"hi","product":{"name":"Shirt","price":1000}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["final_price"])
	assert.Nil(t, body["checkout_url"])
	assert.Nil(t, body["threadId"])
	assert.Equal(t, "NONE", body["action"])
	assert.Nil(t, svc.got.ThreadID)
}

func TestNegotiateAcceptsLegacyShape(t *testing.T) {
	svc := &stubNegotiationService{result: &negotiation.Result{Decision: negotiation.Decision{Intent: negotiation.IntentNegotiate}}}

	rec := serve(Negotiate(svc, testLogger()), http.MethodPost,
		`{"message":"hi","product":{"name":"Shirt"},"price":999,"variantId":"gid://shopify/ProductVariant/7","threadId":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "999", svc.got.Product.BasePrice)
	assert.Equal(t, "gid://shopify/ProductVariant/7", svc.got.Product.VariantRef)
	assert.Nil(t, svc.got.ThreadID)
}

func TestNegotiateForwardsThreadTokenVerbatim(t *testing.T) {
	longToken := strings.Repeat("t", 500)
	for _, token := range []string{"  thr-1\t", longToken} {
		svc := &stubNegotiationService{result: &negotiation.Result{Decision: negotiation.Decision{Intent: negotiation.IntentNegotiate}}}
		payload, err := json.Marshal(map[string]any{
			"message":  "hi",
			"product":  map[string]any{"name": "Shirt", "price": 1000},
			"threadId": token,
		})
		require.NoError(t, err)

		rec := serve(Negotiate(svc, testLogger()), http.MethodPost, string(payload))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.got.ThreadID)
		assert.Equal(t, token, *svc.got.ThreadID)
	}
}

func TestNegotiateMisconfiguredBeforeDecoding(t *testing.T) {
	svc := &stubNegotiationService{notReady: pkgerrors.New(pkgerrors.CodeMisconfigured, "oracle webhook secret is not configured")}

	rec := serve(Negotiate(svc, testLogger()), http.MethodPost, `{"message":`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Server misconfigured", payload["reply"])
	assert.Nil(t, svc.got)
}

func TestNegotiateInvalidInput(t *testing.T) {
	cases := map[string]string{
		"missing message": `{"product":{"name":"Shirt","price":1000}}`,
		"malformed json":  `{"message":`,
		"bad locked":      `{"message":"hi","product":{"name":"Shirt","price":1000},"locked_price":"cheap"}`,
		"object price":    `{"message":"hi","product":{"name":"Shirt","price":{"amount":1}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubNegotiationService{}
			rec := serve(Negotiate(svc, testLogger()), http.MethodPost, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var payload map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, "Invalid input", payload["reply"])
			assert.Nil(t, svc.got)
		})
	}
}

func TestNegotiateServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reply  string
	}{
		{"validation", pkgerrors.New(pkgerrors.CodeValidation, "invalid negotiation request"), http.StatusBadRequest, "Invalid input"},
		{"misconfigured", pkgerrors.New(pkgerrors.CodeMisconfigured, "oracle webhook secret is not configured"), http.StatusInternalServerError, "Server misconfigured"},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, "I’m having trouble right now. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubNegotiationService{err: tc.err}
			rec := serve(Negotiate(svc, testLogger()), http.MethodPost, `{"message":"hi","product":{"name":"Shirt","price":1000}}`)

			assert.Equal(t, tc.status, rec.Code)
			var payload map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, tc.reply, payload["reply"])
		})
	}
}

func TestNegotiateMethods(t *testing.T) {
	svc := &stubNegotiationService{}
	handler := Negotiate(svc, testLogger())

	rec := serve(handler, http.MethodOptions, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = serve(handler, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(handler, http.MethodDelete, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"Method Not Allowed"`)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Allow"))

	assert.Nil(t, svc.got)
}
