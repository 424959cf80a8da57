package install

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
	"github.com/angelmondragon/haggle-backend/pkg/shopify"
)

// MissingParamsMessage is returned when the callback lacks code or shop.
const MissingParamsMessage = "Missing code or shop"

// Service completes the app install handshake.
type Service interface {
	Complete(ctx context.Context, shop, code string) error
}

type tokenExchanger interface {
	ExchangeAccessToken(ctx context.Context, shop, code string) (string, error)
}

type tokenSaver interface {
	Save(ctx context.Context, shop, token string) error
}

type service struct {
	exchanger tokenExchanger
	tokens    tokenSaver
	logg      *logger.Logger
}

// ServiceParams bundles the dependencies required to build an install service.
type ServiceParams struct {
	Exchanger tokenExchanger
	// Tokens may be nil when Redis is not configured; Complete then fails closed.
	Tokens tokenSaver
	Logger *logger.Logger
}

// NewService constructs an install service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Exchanger == nil {
		return nil, fmt.Errorf("token exchanger is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		exchanger: params.Exchanger,
		tokens:    params.Tokens,
		logg:      logg,
	}, nil
}

// Complete exchanges the authorization code and persists the resulting token.
func (s *service) Complete(ctx context.Context, shop, code string) error {
	shop = strings.ToLower(strings.TrimSpace(shop))
	code = strings.TrimSpace(code)
	if shop == "" || code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, MissingParamsMessage)
	}
	if !shopify.ValidShopDomain(shop) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shop domain").
			WithDetails(map[string]string{"shop": "must be a <name>.myshopify.com domain"})
	}
	if s.tokens == nil {
		return pkgerrors.New(pkgerrors.CodeMisconfigured, "token storage not configured")
	}

	ctx = s.logg.WithField(ctx, "shop", shop)
	token, err := s.exchanger.ExchangeAccessToken(ctx, shop, code)
	if err != nil {
		s.logg.Error(ctx, "install.token_exchange.failed", err)
		return err
	}
	if err := s.tokens.Save(ctx, shop, token); err != nil {
		s.logg.Error(ctx, "install.token_store.failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist shop token")
	}
	s.logg.Info(ctx, "install.completed")
	return nil
}
