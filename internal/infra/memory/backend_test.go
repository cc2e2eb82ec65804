package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-case-service/internal/domain"
)

func TestBackendSubmissionIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(3)
	diag := 0
	sub := domain.GameplaySubmission{
		UserID:         "u1",
		SourceType:     domain.SourceCase,
		CaseID:         "case-1",
		DiagnosisIndex: &diag,
		TestIndices:    []int{0, 1},
		Points:         domain.ScoreBreakdown{Total: 70, Tests: 30, Diagnosis: 40},
		Complete:       true,
		IdempotencyKey: "key-1",
	}

	first, err := b.SubmitGameplay(ctx, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	replay, err := b.SubmitGameplay(ctx, sub)
	if err != nil {
		t.Fatalf("replay with same key should succeed, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("expected replay to return the original record")
	}

	sub.IdempotencyKey = "key-2"
	if _, err := b.SubmitGameplay(ctx, sub); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
	if b.Submissions() != 1 {
		t.Fatalf("expected one recorded gameplay, got %d", b.Submissions())
	}

	found, ok, err := b.FindGameplay(ctx, "u1", domain.CaseRef{Source: domain.SourceCase, ID: "case-1"})
	if err != nil || !ok || !found.Completed() {
		t.Fatalf("expected completed gameplay, got %+v ok=%v err=%v", found, ok, err)
	}
}

func TestBackendHeartsResetDaily(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(2)
	now := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	b.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := b.ConsumeHeart(ctx, "u1"); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	eco, _ := b.Economy(ctx, "u1")
	if eco.Hearts != 0 {
		t.Fatalf("expected hearts floored at 0, got %d", eco.Hearts)
	}

	now = now.Add(3 * time.Hour)
	eco, _ = b.Economy(ctx, "u1")
	if eco.Hearts != 2 {
		t.Fatalf("expected refill after midnight, got %d", eco.Hearts)
	}
}
