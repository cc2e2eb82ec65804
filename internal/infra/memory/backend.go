package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinical-case-service/internal/domain"
	"github.com/google/uuid"
)

// Backend is an in-memory stand-in for the remote gameplay and economy API
// (useful for tests/demos). Hearts refill to the cap at the next UTC midnight.
type Backend struct {
	maxHearts int
	clock     func() time.Time

	mu        sync.Mutex
	gameplays map[string]domain.GameplayRecord
	byKey     map[string]string
	accounts  map[string]*account
	submits   int
	consumed  int
}

type account struct {
	premium bool
	hearts  int
	resetAt time.Time
}

func NewBackend(maxHearts int) *Backend {
	return &Backend{
		maxHearts: maxHearts,
		clock:     time.Now,
		gameplays: make(map[string]domain.GameplayRecord),
		byKey:     make(map[string]string),
		accounts:  make(map[string]*account),
	}
}

// SetAccount overrides the balance of userID.
func (b *Backend) SetAccount(userID string, premium bool, hearts int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountLocked(userID)
	acc.premium = premium
	acc.hearts = hearts
}

func gameplayKey(userID string, ref domain.CaseRef) string {
	return userID + "|" + string(ref.Source) + "|" + ref.ID
}

func (b *Backend) SubmitGameplay(_ context.Context, s domain.GameplaySubmission) (domain.GameplayRecord, error) {
	ref := domain.CaseRef{Source: s.SourceType, ID: s.CaseID}
	if s.SourceType == domain.SourceDailyChallenge {
		ref.ID = s.DailyChallengeID
	}
	if s.UserID == "" || ref.ID == "" {
		return domain.GameplayRecord{}, fmt.Errorf("incomplete submission")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := gameplayKey(s.UserID, ref)
	if existing, ok := b.gameplays[key]; ok {
		if s.IdempotencyKey != "" && b.byKey[s.IdempotencyKey] == key {
			return existing, nil
		}
		return domain.GameplayRecord{}, domain.ErrAlreadySubmitted
	}

	points := s.Points
	record := domain.GameplayRecord{
		ID:     uuid.NewString(),
		Status: domain.GameplayStatusCompleted,
		Selections: domain.SelectionIndices{
			DiagnosisIndex:   s.DiagnosisIndex,
			TestIndices:      append([]int(nil), s.TestIndices...),
			TreatmentIndices: append([]int(nil), s.TreatmentIndices...),
		},
		Points: &points,
	}
	b.gameplays[key] = record
	if s.IdempotencyKey != "" {
		b.byKey[s.IdempotencyKey] = key
	}
	b.submits++
	return record, nil
}

func (b *Backend) FindGameplay(_ context.Context, userID string, ref domain.CaseRef) (domain.GameplayRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.gameplays[gameplayKey(userID, ref)]
	return record, ok, nil
}

func (b *Backend) Economy(_ context.Context, userID string) (domain.Economy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.economyLocked(b.accountLocked(userID)), nil
}

func (b *Backend) ConsumeHeart(_ context.Context, userID string) (domain.Economy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountLocked(userID)
	if !acc.premium && acc.hearts > 0 {
		acc.hearts--
		b.consumed++
	}
	return b.economyLocked(acc), nil
}

// Submissions returns how many gameplays were recorded.
func (b *Backend) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

// HeartsConsumed returns how many hearts were spent overall.
func (b *Backend) HeartsConsumed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

func (b *Backend) accountLocked(userID string) *account {
	now := b.clock()
	acc, ok := b.accounts[userID]
	if !ok {
		acc = &account{hearts: b.maxHearts, resetAt: nextMidnight(now)}
		b.accounts[userID] = acc
	}
	if !now.Before(acc.resetAt) {
		acc.hearts = b.maxHearts
		acc.resetAt = nextMidnight(now)
	}
	return acc
}

func (b *Backend) economyLocked(acc *account) domain.Economy {
	return domain.Economy{
		Premium:     acc.premium,
		Hearts:      acc.hearts,
		MaxHearts:   b.maxHearts,
		NextResetAt: acc.resetAt,
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
