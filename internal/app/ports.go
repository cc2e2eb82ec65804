package app

import (
	"context"

	"clinical-case-service/internal/domain"
)

// CaseRepository loads case content (from cache/backing store).
type CaseRepository interface {
	GetCase(ctx context.Context, caseID string) (domain.CaseDefinition, error)
	// GetDailyChallenge returns the challenge for date (YYYY-MM-DD); an empty date means today.
	GetDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error)
}

// GameplayAPI is the remote owner of gameplay records.
type GameplayAPI interface {
	SubmitGameplay(ctx context.Context, submission domain.GameplaySubmission) (domain.GameplayRecord, error)
	FindGameplay(ctx context.Context, userID string, ref domain.CaseRef) (domain.GameplayRecord, bool, error)
}

// EconomyAPI is the remote, authoritative heart counter.
type EconomyAPI interface {
	Economy(ctx context.Context, userID string) (domain.Economy, error)
	ConsumeHeart(ctx context.Context, userID string) (domain.Economy, error)
}

// SessionRepository tracks the single active case session of each user.
type SessionRepository interface {
	// Put registers s for userID and returns the session it replaced, if any.
	Put(userID string, s *CaseSession) *CaseSession
	Get(userID string) (*CaseSession, bool)
	// Delete removes the entry only if it still points at s.
	Delete(userID string, s *CaseSession)
}
