package app

import (
	"context"

	"clinical-case-service/internal/domain"
)

// EconomyGate enforces the heart policy. It never changes the balance locally:
// it reads it before entry and asks the backend for a single decrement on completion.
type EconomyGate struct {
	api EconomyAPI
}

func NewEconomyGate(api EconomyAPI) *EconomyGate {
	return &EconomyGate{api: api}
}

// CheckEntry returns ErrNoHearts when a non-premium account has no hearts left.
// Guests (empty userID) have no balance to check.
func (g *EconomyGate) CheckEntry(ctx context.Context, userID string) (domain.Economy, error) {
	if userID == "" || g.api == nil {
		return domain.Economy{}, nil
	}
	eco, err := g.api.Economy(ctx, userID)
	if err != nil {
		return domain.Economy{}, domain.Retryable("load hearts", err)
	}
	if !eco.Premium && eco.Hearts <= 0 {
		return eco, domain.ErrNoHearts
	}
	return eco, nil
}

// ConsumeOnCompletion spends exactly one heart for a completed, non-premium case.
// It reports whether a heart was consumed.
func (g *EconomyGate) ConsumeOnCompletion(ctx context.Context, userID string, source domain.SourceType, premium bool) (bool, error) {
	if premium || !source.ConsumesHearts() || g.api == nil {
		return false, nil
	}
	if _, err := g.api.ConsumeHeart(ctx, userID); err != nil {
		return false, domain.Retryable("consume heart", err)
	}
	return true, nil
}
