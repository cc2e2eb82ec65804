package app

import (
	"context"
	"errors"
	"testing"

	"clinical-case-service/internal/domain"
)

func TestSubmitValidatesBeforeNetwork(t *testing.T) {
	api := &fakeGameplays{}
	submitter := NewGameplaySubmitter(api, nil, nil)
	ref := domain.CaseRef{Source: domain.SourceCase, ID: "case-1"}

	cases := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"missing user", SubmitRequest{Ref: ref, Case: scenarioCase()}, domain.ErrMissingUser},
		{"missing ref", SubmitRequest{UserID: "u1", Case: scenarioCase()}, domain.ErrMissingCaseRef},
		{"unknown source", SubmitRequest{UserID: "u1", Ref: domain.CaseRef{Source: "exam", ID: "x"}, Case: scenarioCase()}, domain.ErrMissingCaseRef},
		{"missing case", SubmitRequest{UserID: "u1", Ref: ref}, domain.ErrMissingCaseDefinition},
	}
	for _, tc := range cases {
		if _, err := submitter.Submit(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if api.count() != 0 {
		t.Fatalf("expected no network calls, got %d", api.count())
	}
}

func TestSubmitBuildsPayload(t *testing.T) {
	api := &fakeGameplays{}
	economy := &fakeEconomy{eco: domain.Economy{Hearts: 2}}
	submitter := NewGameplaySubmitter(api, NewEconomyGate(economy), nil)

	res, err := submitter.Submit(context.Background(), SubmitRequest{
		UserID: "u1",
		Ref:    domain.CaseRef{Source: domain.SourceDailyChallenge, ID: "dc-1"},
		Case:   scenarioCase(),
		Selections: domain.Selections{
			TestIDs:      []string{"t1", "t2", "t3"},
			DiagnosisID:  "d1",
			TreatmentIDs: []string{"m1", "s1"},
		},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score.Total != 85 || res.HeartConsumed {
		t.Fatalf("unexpected result %+v", res)
	}

	sent := api.submissions[0]
	if sent.DailyChallengeID != "dc-1" || sent.CaseID != "" || sent.SourceType != domain.SourceDailyChallenge {
		t.Fatalf("unexpected reference fields %+v", sent)
	}
	if !sent.Complete || sent.IdempotencyKey != "key-1" || sent.Points != res.Score {
		t.Fatalf("unexpected payload %+v", sent)
	}
	if sent.DiagnosisIndex == nil || *sent.DiagnosisIndex != 1 {
		t.Fatalf("expected diagnosis index 1")
	}
	if economy.consumed != 0 {
		t.Fatalf("daily challenge must not consume hearts")
	}
}

func TestSubmitFailureKeepsHearts(t *testing.T) {
	api := &fakeGameplays{err: domain.Retryable("submit", errors.New("timeout"))}
	economy := &fakeEconomy{eco: domain.Economy{Hearts: 2}}
	submitter := NewGameplaySubmitter(api, NewEconomyGate(economy), nil)

	res, err := submitter.Submit(context.Background(), SubmitRequest{
		UserID:     "u1",
		Ref:        domain.CaseRef{Source: domain.SourceCase, ID: "case-1"},
		Case:       scenarioCase(),
		Selections: domain.Selections{DiagnosisID: "d1"},
	})
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if res.Score.Diagnosis != 40 {
		t.Fatalf("expected score computed despite failure, got %+v", res.Score)
	}
	if economy.consumed != 0 {
		t.Fatalf("failed submission must not consume a heart")
	}
	if api.submissions[0].IdempotencyKey == "" {
		t.Fatalf("expected generated idempotency key")
	}
}
