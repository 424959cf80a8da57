package install

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/haggle-backend/pkg/redis"
	"github.com/angelmondragon/haggle-backend/pkg/shopify"
)

type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ShopTokenKey(shop string) string
}

// TokenStore persists offline Admin API tokens per shop in Redis. It also
// serves as the commerce gateway's TokenSource.
type TokenStore struct {
	kv keyValueStore
}

// NewTokenStore wraps the Redis client.
func NewTokenStore(kv keyValueStore) (*TokenStore, error) {
	if kv == nil {
		return nil, errors.New("key value store is required")
	}
	return &TokenStore{kv: kv}, nil
}

// Save stores token for shop without expiry.
func (s *TokenStore) Save(ctx context.Context, shop, token string) error {
	if err := s.kv.Set(ctx, s.kv.ShopTokenKey(normalizeShop(shop)), token, 0); err != nil {
		return fmt.Errorf("store shop token: %w", err)
	}
	return nil
}

// AccessToken implements shopify.TokenSource.
func (s *TokenStore) AccessToken(ctx context.Context, shop string) (string, error) {
	token, err := s.kv.Get(ctx, s.kv.ShopTokenKey(normalizeShop(shop)))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", shopify.ErrTokenNotFound
		}
		return "", fmt.Errorf("load shop token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", shopify.ErrTokenNotFound
	}
	return token, nil
}

func normalizeShop(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

var _ shopify.TokenSource = (*TokenStore)(nil)
