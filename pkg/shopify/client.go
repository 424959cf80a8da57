package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/haggle-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
)

const (
	accessTokenHeader        = "X-Shopify-Access-Token"
	defaultAPIVersion        = "2024-01"
	errorBodyReadLimit int64 = 1024
	defaultTimeout           = 10 * time.Second
)

var (
	shopDomainPattern = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

	// ErrTokenNotFound is returned by a TokenSource that has no token for the shop.
	ErrTokenNotFound = errors.New("shop access token not found")
)

// ValidShopDomain reports whether shop is a bare <name>.myshopify.com host.
func ValidShopDomain(shop string) bool {
	return shopDomainPattern.MatchString(strings.TrimSpace(shop))
}

// TokenSource resolves the Admin API token for a shop, typically from the
// tokens persisted by the install flow.
type TokenSource interface {
	AccessToken(ctx context.Context, shop string) (string, error)
}

// Client talks to the Shopify Admin REST API.
type Client struct {
	httpClient   *http.Client
	shop         string
	apiVersion   string
	accessToken  string
	clientID     string
	clientSecret string
	tokens       TokenSource
	baseURL      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource consults source when no static access token is configured.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		c.tokens = source
	}
}

// WithBaseURL replaces the https://<shop> origin.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// NewClient builds a client from the commerce configuration.
func NewClient(cfg config.ShopifyConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		shop:         strings.ToLower(strings.TrimSpace(cfg.Shop)),
		apiVersion:   apiVersion,
		accessToken:  strings.TrimSpace(cfg.AccessToken),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// LineItem is a draft order line.
type LineItem struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// NoteAttribute is a name/value pair attached to a draft order.
type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DraftOrderInput is the payload for CreateDraftOrder.
type DraftOrderInput struct {
	LineItems      []LineItem      `json:"line_items"`
	Note           string          `json:"note,omitempty"`
	NoteAttributes []NoteAttribute `json:"note_attributes,omitempty"`
	Tags           string          `json:"tags,omitempty"`
}

// DraftOrder is the subset of the created draft order the service reads back.
type DraftOrder struct {
	ID         int64            `json:"id"`
	InvoiceURL string           `json:"invoice_url"`
	LineItems  []DraftOrderLine `json:"line_items"`
}

// DraftOrderLine is a line item echoed back on a created draft order.
type DraftOrderLine struct {
	VariantID *int64 `json:"variant_id"`
}

// CreateDraftOrder creates a draft order on the configured shop.
func (c *Client) CreateDraftOrder(ctx context.Context, input DraftOrderInput) (*DraftOrder, error) {
	if c == nil || c.shop == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMisconfigured, "shopify shop not configured")
	}
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(struct {
		DraftOrder DraftOrderInput `json:"draft_order"`
	}{DraftOrder: input})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal draft order request")
	}

	url := fmt.Sprintf("%s/admin/api/%s/draft_orders.json", c.origin(c.shop), c.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build draft order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")
	httpReq.Header.Set(accessTokenHeader, token)

	var apiResp struct {
		DraftOrder *DraftOrder `json:"draft_order"`
	}
	if err := c.do(httpReq, "draft order", &apiResp); err != nil {
		return nil, err
	}
	if apiResp.DraftOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "draft order missing from response")
	}
	return apiResp.DraftOrder, nil
}

// ExchangeAccessToken trades an install authorization code for an offline
// Admin API token.
func (c *Client) ExchangeAccessToken(ctx context.Context, shop, code string) (string, error) {
	if c == nil || c.clientID == "" || c.clientSecret == "" {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "shopify client credentials not configured")
	}
	shop = strings.ToLower(strings.TrimSpace(shop))
	if !ValidShopDomain(shop) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid shop domain")
	}
	if strings.TrimSpace(code) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"code":          code,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal token exchange request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin(shop)+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build token exchange request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var apiResp struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := c.do(httpReq, "token exchange", &apiResp); err != nil {
		return "", err
	}
	if strings.TrimSpace(apiResp.AccessToken) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "access token missing from response")
	}
	return apiResp.AccessToken, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.accessToken != "" {
		return c.accessToken, nil
	}
	if c.tokens == nil {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "shopify access token not configured")
	}
	token, err := c.tokens.AccessToken(ctx, c.shop)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", pkgerrors.Wrap(pkgerrors.CodeMisconfigured, err, "shop has not installed the app")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop access token")
	}
	if strings.TrimSpace(token) == "" {
		return "", pkgerrors.New(pkgerrors.CodeMisconfigured, "shopify access token not configured")
	}
	return token, nil
}

func (c *Client) origin(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

func (c *Client) do(httpReq *http.Request, operation string, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+operation+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), operation+" request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+operation+" response")
	}
	return nil
}
