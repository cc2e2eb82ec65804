package app

import (
	"context"
	"fmt"
	"log"

	"clinical-case-service/internal/domain"
	"github.com/google/uuid"
)

// SubmitRequest is everything needed to complete a case.
type SubmitRequest struct {
	UserID     string
	Ref        domain.CaseRef
	Case       *domain.CaseDefinition
	Selections domain.Selections
	Premium    bool
	// IdempotencyKey is reused across caller-initiated retries of the same gameplay.
	IdempotencyKey string
}

// SubmitResult is the outcome of a submission. Score and Indices are filled even
// when the network call fails.
type SubmitResult struct {
	Record        domain.GameplayRecord
	Score         domain.ScoreBreakdown
	Indices       domain.SelectionIndices
	HeartConsumed bool
}

// GameplaySubmitter maps selections to indices, scores them and sends one submission.
type GameplaySubmitter struct {
	api    GameplayAPI
	gate   *EconomyGate
	logger *log.Logger
}

func NewGameplaySubmitter(api GameplayAPI, gate *EconomyGate, logger *log.Logger) *GameplaySubmitter {
	if logger == nil {
		logger = log.Default()
	}
	return &GameplaySubmitter{api: api, gate: gate, logger: logger}
}

// Submit validates preconditions before touching the network, then posts the
// gameplay. It does not retry on its own.
func (s *GameplaySubmitter) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.UserID == "" {
		return SubmitResult{}, domain.ErrMissingUser
	}
	if req.Ref.ID == "" || !req.Ref.Source.Valid() {
		return SubmitResult{}, domain.ErrMissingCaseRef
	}
	if req.Case == nil {
		return SubmitResult{}, domain.ErrMissingCaseDefinition
	}

	res := SubmitResult{
		Score:   Score(req.Case, req.Selections),
		Indices: ToIndices(req.Case, req.Selections),
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	submission := domain.GameplaySubmission{
		UserID:           req.UserID,
		SourceType:       req.Ref.Source,
		DiagnosisIndex:   res.Indices.DiagnosisIndex,
		TestIndices:      res.Indices.TestIndices,
		TreatmentIndices: res.Indices.TreatmentIndices,
		Points:           res.Score,
		Complete:         true,
		IdempotencyKey:   key,
	}
	switch req.Ref.Source {
	case domain.SourceCase:
		submission.CaseID = req.Ref.ID
	case domain.SourceDailyChallenge:
		submission.DailyChallengeID = req.Ref.ID
	}

	record, err := s.api.SubmitGameplay(ctx, submission)
	if err != nil {
		return res, fmt.Errorf("submit gameplay: %w", err)
	}
	res.Record = record

	if s.gate != nil {
		consumed, err := s.gate.ConsumeOnCompletion(ctx, req.UserID, req.Ref.Source, req.Premium)
		if err != nil {
			s.logger.Printf("heart consumption failed for user %s: %v", req.UserID, err)
		}
		res.HeartConsumed = consumed
	}
	return res, nil
}
