package negotiation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/pkg/redis"
)

const (
	commitGuardScope   = "commit"
	commitPendingValue = "pending"
)

// CommitGuard collapses repeated LOCK turns for the same thread, variant and
// price into a single draft order within a time window.
type CommitGuard struct {
	store  redis.IdempotencyStore
	window time.Duration
}

// NewCommitGuard builds a guard backed by the Redis idempotency store.
func NewCommitGuard(store redis.IdempotencyStore, window time.Duration) (*CommitGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if window <= 0 {
		return nil, errors.New("commit guard window must be positive")
	}
	return &CommitGuard{store: store, window: window}, nil
}

// Key derives the guard key for a commit.
func (g *CommitGuard) Key(threadID *string, productRef string, price decimal.Decimal) string {
	thread := ""
	if threadID != nil {
		thread = *threadID
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{thread, productRef, price.String()}, "|")))
	return g.store.IdempotencyKey(commitGuardScope, hex.EncodeToString(sum[:]))
}

// Reserve claims key. When another turn already holds it, reserved is false and
// checkoutURL is the stored link, or empty while that turn is still committing.
func (g *CommitGuard) Reserve(ctx context.Context, key string) (checkoutURL string, reserved bool, err error) {
	set, err := g.store.SetNX(ctx, key, commitPendingValue, g.window)
	if err != nil {
		return "", false, fmt.Errorf("reserve commit key: %w", err)
	}
	if set {
		return "", true, nil
	}
	stored, err := g.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read commit key: %w", err)
	}
	if stored == commitPendingValue {
		return "", false, nil
	}
	return stored, false, nil
}

// Complete records the checkout link for key.
func (g *CommitGuard) Complete(ctx context.Context, key, checkoutURL string) error {
	return g.store.Set(ctx, key, checkoutURL, g.window)
}

// Release frees key after a failed commit so the shopper can retry.
func (g *CommitGuard) Release(ctx context.Context, key string) error {
	return g.store.Del(ctx, key)
}
