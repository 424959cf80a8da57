package negotiation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/internal/checkout"
	"github.com/angelmondragon/haggle-backend/pkg/oracle"
)

// OracleClient is the generative-model webhook.
type OracleClient interface {
	// Configured reports whether the shared secret is present.
	Configured() bool
	Send(ctx context.Context, msg oracle.Message) (string, error)
}

// Committer materializes a locked price as a checkout artifact.
type Committer interface {
	Commit(ctx context.Context, productRef string, price decimal.Decimal) (*checkout.Commitment, error)
}

// Service runs negotiation turns.
type Service interface {
	// Ready fails closed when the oracle cannot be called at all.
	Ready() error
	Negotiate(ctx context.Context, req Request) (*Result, error)
}
