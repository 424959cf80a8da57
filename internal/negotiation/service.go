package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/haggle-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/haggle-backend/pkg/errors"
	"github.com/angelmondragon/haggle-backend/pkg/logger"
	"github.com/angelmondragon/haggle-backend/pkg/metrics"
	"github.com/angelmondragon/haggle-backend/pkg/oracle"
)

const (
	defaultOracleTimeout = 10 * time.Second
	defaultCommitTimeout = 10 * time.Second
)

type service struct {
	oracle             OracleClient
	committer          Committer
	policy             *pricing.Policy
	guard              *CommitGuard
	metrics            *metrics.NegotiationMetrics
	logg               *logger.Logger
	replies            Replies
	oracleTimeout      time.Duration
	commitTimeout      time.Duration
	inferLockFromPrice bool
}

// ServiceParams bundles the dependencies required to build a negotiation service.
type ServiceParams struct {
	Oracle    OracleClient
	Committer Committer
	Policy    *pricing.Policy
	// Guard is optional; without it every LOCK turn commits.
	Guard              *CommitGuard
	Metrics            *metrics.NegotiationMetrics
	Logger             *logger.Logger
	CurrencySymbol     string
	OracleTimeout      time.Duration
	CommitTimeout      time.Duration
	InferLockFromPrice bool
}

// NewService constructs a negotiation service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	if params.Committer == nil {
		return nil, fmt.Errorf("committer is required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("price policy is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	oracleTimeout := params.OracleTimeout
	if oracleTimeout <= 0 {
		oracleTimeout = defaultOracleTimeout
	}
	commitTimeout := params.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = defaultCommitTimeout
	}
	return &service{
		oracle:             params.Oracle,
		committer:          params.Committer,
		policy:             params.Policy,
		guard:              params.Guard,
		metrics:            params.Metrics,
		logg:               logg,
		replies:            Replies{Symbol: params.CurrencySymbol},
		oracleTimeout:      oracleTimeout,
		commitTimeout:      commitTimeout,
		inferLockFromPrice: params.InferLockFromPrice,
	}, nil
}

// Negotiate runs one turn: it validates the request, computes the price bounds,
// consults the oracle unless the price is already locked, resolves the decision
// and commits it when the shopper locked. Oracle and commerce failures degrade the
// turn instead of failing it.
func (s *service) Negotiate(ctx context.Context, req Request) (*Result, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	base, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	if req.ThreadID != nil {
		ctx = s.logg.WithThreadID(ctx, *req.ThreadID)
	}
	ctx = s.logg.WithVariantID(ctx, req.Product.VariantRef)

	floor, fallback := s.policy.Bounds(base)
	result := &Result{Floor: floor, Fallback: fallback}

	switch {
	case req.LockedPrice != nil && req.LockedPrice.LessThan(floor):
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"locked_price": req.LockedPrice.String(),
			"floor":        floor.String(),
		}), "negotiation.locked_price.below_floor")
		result.Decision = s.fallbackDecision(fallback, req.ThreadID)
		result.Source = SourceLocked
	case req.LockedPrice != nil:
		price := *req.LockedPrice
		result.Decision = Decision{
			Reply:       s.replies.Locked(price),
			AgreedPrice: pricePtr(price),
			Intent:      IntentLock,
			ThreadID:    req.ThreadID,
		}
		result.Source = SourceLocked
	default:
		decision, source := s.consultOracle(ctx, req, base, floor, fallback)
		result.Decision = decision
		result.Source = source
	}

	if result.Intent == IntentLock && result.AgreedPrice != nil {
		result.CheckoutURL = s.commit(ctx, req, *result.AgreedPrice)
	}

	s.metrics.IncTurn(string(result.Intent), string(result.Source))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"intent":       string(result.Intent),
		"source":       string(result.Source),
		"agreed_price": priceString(result.AgreedPrice),
		"checkout":     result.CheckoutURL != nil,
	}), "negotiation.turn.resolved")
	return result, nil
}

// Ready reports a misconfiguration error when the oracle secret is missing.
func (s *service) Ready() error {
	if !s.oracle.Configured() {
		return pkgerrors.New(pkgerrors.CodeMisconfigured, "oracle webhook secret is not configured")
	}
	return nil
}

func (s *service) consultOracle(ctx context.Context, req Request, base, floor, fallback decimal.Decimal) (Decision, Source) {
	prompt := buildPrompt(promptInput{
		ProductName: req.Product.Name,
		Base:        base,
		Floor:       floor,
		MaxDiscount: s.policy.MaxDiscount(),
		Message:     req.Message,
		Symbol:      s.replies.Symbol,
	})

	oracleCtx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	started := time.Now()
	raw, err := s.oracle.Send(oracleCtx, oracle.Message{Prompt: prompt, ThreadID: req.ThreadID})
	elapsed := time.Since(started)
	if err != nil {
		result := "error"
		if pkgerrors.IsTimeout(err) || errors.Is(oracleCtx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		s.metrics.ObserveOracle(result, elapsed)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"result":      result,
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		}), "negotiation.oracle.failed")
		return s.fallbackDecision(fallback, req.ThreadID), SourceOracleFallback
	}
	s.metrics.ObserveOracle("ok", elapsed)

	parsed := ParseOracleReply(raw, req.ThreadID)
	if !parsed.Structured {
		s.logg.Debug(s.logg.WithField(ctx, "raw_length", len(raw)), "negotiation.oracle.unstructured_reply")
	}
	decision := Resolve(ResolveInput{
		Parsed:             parsed,
		Message:            req.Message,
		Base:               base,
		Floor:              floor,
		Fallback:           fallback,
		Replies:            s.replies,
		InferLockFromPrice: s.inferLockFromPrice,
	})
	return decision, SourceOracle
}

// commit turns a locked price into a checkout link. Failures are logged and
// reported as a nil link; the turn itself still succeeds.
func (s *service) commit(ctx context.Context, req Request, price decimal.Decimal) *string {
	var guardKey string
	if s.guard != nil {
		guardKey = s.guard.Key(req.ThreadID, req.Product.VariantRef, price)
		existing, reserved, err := s.guard.Reserve(ctx, guardKey)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "negotiation.commit_guard.unavailable")
			guardKey = ""
		case !reserved:
			s.metrics.IncCommit("reused")
			s.logg.Info(ctx, "negotiation.commit.reused")
			if existing == "" {
				return nil
			}
			return &existing
		}
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	commitment, err := s.committer.Commit(commitCtx, req.Product.VariantRef, price)
	if err != nil {
		s.metrics.IncCommit("failed")
		s.logg.Error(ctx, "negotiation.commit.failed", err)
		if guardKey != "" {
			if relErr := s.guard.Release(ctx, guardKey); relErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "negotiation.commit_guard.release_failed")
			}
		}
		return nil
	}

	s.metrics.IncCommit("ok")
	s.logg.Info(s.logg.WithSessionMarker(ctx, commitment.SessionMarker), "negotiation.commit.created")
	if guardKey != "" {
		if err := s.guard.Complete(ctx, guardKey, commitment.CheckoutURL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "negotiation.commit_guard.complete_failed")
		}
	}
	url := commitment.CheckoutURL
	return &url
}

func (s *service) fallbackDecision(fallback decimal.Decimal, threadID *string) Decision {
	return Decision{
		Reply:       s.replies.Fallback(fallback),
		AgreedPrice: pricePtr(fallback),
		Intent:      IntentNegotiate,
		ThreadID:    threadID,
	}
}

func validateRequest(req Request) (decimal.Decimal, error) {
	details := map[string]string{}
	if strings.TrimSpace(req.Message) == "" {
		details["message"] = "message is required"
	}
	if strings.TrimSpace(req.Product.Name) == "" {
		details["product.name"] = "product name is required"
	}
	base, err := pricing.ParseAmount(req.Product.BasePrice)
	if err != nil {
		details["product.price"] = "price must be a positive amount with at most 12 digits and 2 decimals"
	}
	if req.LockedPrice != nil && !pricing.ValidAmount(*req.LockedPrice) {
		details["locked_price"] = "locked price must be a positive amount with at most 12 digits and 2 decimals"
	}
	if len(details) > 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid negotiation request").WithDetails(details)
	}
	return base, nil
}

func priceString(price *decimal.Decimal) string {
	if price == nil {
		return ""
	}
	return price.String()
}
