package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"clinical-case-service/internal/domain"
	"github.com/google/uuid"
)

// Phase is the lifecycle of a case session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "inProgress"
	PhaseSubmitted  Phase = "submitted"
	PhaseAbandoned  Phase = "abandoned"
	// PhaseReview replays an already completed gameplay read-only.
	PhaseReview Phase = "review"
)

// SessionDeps wires a CaseSession to its collaborators.
type SessionDeps struct {
	Catalog   CaseRepository
	Gameplays GameplayAPI
	Gate      *EconomyGate
	Narration *NarrationController
	// StrictValidation rejects cases that fail CaseDefinition.Validate.
	StrictValidation bool
	Logger           *log.Logger
}

// CaseSession owns the active case of one user: its identity, the stage cursor
// and the selections. Asynchronous loads carry a generation number and only the
// latest one may commit.
type CaseSession struct {
	id        string
	userID    string
	catalog   CaseRepository
	gameplays GameplayAPI
	gate      *EconomyGate
	submitter *GameplaySubmitter
	narration *NarrationController
	strict    bool
	logger    *log.Logger

	mu         sync.Mutex
	gen        uint64
	closed     bool
	phase      Phase
	stage      domain.Stage
	ref        domain.CaseRef
	def        *domain.CaseDefinition
	selections *SelectionStore
	economy    domain.Economy
	submitting bool
	submitKey  string
	score      *domain.ScoreBreakdown
}

func NewCaseSession(userID string, deps SessionDeps) *CaseSession {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	narration := deps.Narration
	if narration == nil {
		narration = NewNarrationController(nil, nil, logger)
	}
	gate := deps.Gate
	if gate == nil {
		gate = NewEconomyGate(nil)
	}
	return &CaseSession{
		id:         uuid.NewString(),
		userID:     userID,
		catalog:    deps.Catalog,
		gameplays:  deps.Gameplays,
		gate:       gate,
		submitter:  NewGameplaySubmitter(deps.Gameplays, gate, logger),
		narration:  narration,
		strict:     deps.StrictValidation,
		logger:     logger,
		phase:      PhaseIdle,
		selections: NewSelectionStore(),
	}
}

// ID returns the session identifier.
func (s *CaseSession) ID() string {
	return s.id
}

// UserID returns the owner of the session.
func (s *CaseSession) UserID() string {
	return s.userID
}

type loadedCase struct {
	ref     domain.CaseRef
	def     *domain.CaseDefinition
	record  *domain.GameplayRecord
	economy domain.Economy
}

type fetchFunc func(ctx context.Context) (domain.CaseRef, *domain.CaseDefinition, error)

// OpenCase loads a catalog case. A completed gameplay for it opens the review instead.
func (s *CaseSession) OpenCase(ctx context.Context, caseID string) error {
	if caseID == "" {
		return domain.ErrMissingCaseRef
	}
	return s.open(ctx, func(ctx context.Context) (domain.CaseRef, *domain.CaseDefinition, error) {
		def, err := s.catalog.GetCase(ctx, caseID)
		if err != nil {
			return domain.CaseRef{}, nil, err
		}
		return domain.CaseRef{Source: domain.SourceCase, ID: caseID}, &def, nil
	})
}

// OpenDailyChallenge loads the daily challenge for date (empty for today).
func (s *CaseSession) OpenDailyChallenge(ctx context.Context, date string) error {
	return s.open(ctx, func(ctx context.Context) (domain.CaseRef, *domain.CaseDefinition, error) {
		challenge, err := s.catalog.GetDailyChallenge(ctx, date)
		if err != nil {
			return domain.CaseRef{}, nil, err
		}
		if challenge.ID == "" {
			return domain.CaseRef{}, nil, domain.ErrMissingCaseRef
		}
		return domain.CaseRef{Source: domain.SourceDailyChallenge, ID: challenge.ID}, &challenge.CaseData, nil
	})
}

func (s *CaseSession) open(ctx context.Context, fetch fetchFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionNotActive
	}
	s.gen++
	gen := s.gen
	s.resetLocked(PhaseLoading)
	s.mu.Unlock()

	loaded, err := s.prepare(ctx, fetch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A newer open or an abandon superseded this load.
		return nil
	}
	if err != nil {
		s.phase = PhaseIdle
		return err
	}

	s.ref = loaded.ref
	s.def = loaded.def
	if loaded.record != nil {
		sel := ToSelections(loaded.def, loaded.record.Selections)
		s.selections.Restore(loaded.ref, sel)
		score := Score(loaded.def, sel)
		if loaded.record.Points != nil {
			score = *loaded.record.Points
		}
		s.score = &score
		s.phase = PhaseReview
		s.stage = domain.StageReview
		s.narration.Request(loaded.def.CaseID, domain.StageReview)
		return nil
	}

	s.selections.Load(loaded.ref)
	s.economy = loaded.economy
	s.submitKey = uuid.NewString()
	s.phase = PhaseInProgress
	s.stage = domain.StagePresentation
	s.narration.Request(loaded.def.CaseID, domain.StagePresentation)
	return nil
}

// prepare runs the blocking part of a load without holding the session lock.
func (s *CaseSession) prepare(ctx context.Context, fetch fetchFunc) (loadedCase, error) {
	ref, def, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) || errors.Is(err, domain.ErrMissingCaseRef) {
			return loadedCase{}, err
		}
		return loadedCase{}, domain.Retryable("load case", err)
	}
	if problems := def.Validate(); problems != nil {
		if s.strict {
			return loadedCase{}, fmt.Errorf("%w: %v", domain.ErrInvalidCase, problems)
		}
		s.logger.Printf("case %s failed validation: %v", def.CaseID, problems)
	}

	loaded := loadedCase{ref: ref, def: def}
	if s.userID != "" && s.gameplays != nil {
		record, found, err := s.gameplays.FindGameplay(ctx, s.userID, ref)
		if err != nil {
			return loadedCase{}, domain.Retryable("find gameplay", err)
		}
		if found && record.Completed() {
			loaded.record = &record
			return loaded, nil
		}
	}

	if ref.Source.ConsumesHearts() {
		eco, err := s.gate.CheckEntry(ctx, s.userID)
		if err != nil {
			return loadedCase{}, err
		}
		loaded.economy = eco
	}
	return loaded, nil
}

func (s *CaseSession) resetLocked(phase Phase) {
	s.phase = phase
	s.stage = domain.StageNone
	s.ref = domain.CaseRef{}
	s.def = nil
	s.selections.Load(domain.CaseRef{})
	s.economy = domain.Economy{}
	s.submitting = false
	s.submitKey = ""
	s.score = nil
	s.narration.Reset()
}

// ToggleTest adds or removes a test and reports whether it is now selected.
func (s *CaseSession) ToggleTest(testID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return false, err
	}
	if !hasTest(s.def, testID) {
		return false, domain.ErrOptionNotFound
	}
	return s.selections.ToggleTest(testID), nil
}

// SelectDiagnosis sets the single diagnosis; an empty id clears it.
func (s *CaseSession) SelectDiagnosis(diagnosisID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if diagnosisID != "" && !hasDiagnosis(s.def, diagnosisID) {
		return domain.ErrOptionNotFound
	}
	s.selections.SelectDiagnosis(diagnosisID)
	return nil
}

// ToggleTreatment adds or removes a treatment and reports whether it is now selected.
func (s *CaseSession) ToggleTreatment(treatmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return false, err
	}
	if !hasTreatment(s.def, treatmentID) {
		return false, domain.ErrOptionNotFound
	}
	return s.selections.ToggleTreatment(treatmentID), nil
}

func (s *CaseSession) mutableLocked() error {
	if s.phase != PhaseInProgress {
		return domain.ErrSessionNotActive
	}
	if s.submitting {
		return domain.ErrSubmissionInFlight
	}
	return nil
}

// Next moves to the following interactive stage. An empty selection never blocks
// navigation. On the last stage it is a no-op.
func (s *CaseSession) Next() (domain.Stage, error) {
	return s.move(1)
}

// Back moves to the previous interactive stage. On the first stage it is a no-op.
func (s *CaseSession) Back() (domain.Stage, error) {
	return s.move(-1)
}

func (s *CaseSession) move(delta int) (domain.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress {
		return s.stage, domain.ErrSessionNotActive
	}
	pos := 0
	for i, st := range domain.InteractiveStages {
		if st == s.stage {
			pos = i
		}
	}
	next := pos + delta
	if next < 0 || next >= len(domain.InteractiveStages) {
		return s.stage, nil
	}
	s.stage = domain.InteractiveStages[next]
	s.narration.Request(s.def.CaseID, s.stage)
	return s.stage, nil
}

// Submit scores the case and sends the gameplay once. The network call is not
// cancelled by the caller going away; a session that moved to another case in
// the meantime is left untouched.
func (s *CaseSession) Submit(ctx context.Context) (SubmitResult, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseInProgress:
	case PhaseSubmitted, PhaseReview:
		s.mu.Unlock()
		return SubmitResult{}, domain.ErrAlreadySubmitted
	default:
		s.mu.Unlock()
		return SubmitResult{}, domain.ErrSessionNotActive
	}
	if s.submitting {
		s.mu.Unlock()
		return SubmitResult{}, domain.ErrSubmissionInFlight
	}
	req := SubmitRequest{
		UserID:         s.userID,
		Ref:            s.ref,
		Case:           s.def,
		Selections:     s.selections.Snapshot(),
		Premium:        s.economy.Premium,
		IdempotencyKey: s.submitKey,
	}
	gen := s.gen
	s.submitting = true
	s.mu.Unlock()

	res, err := s.submitter.Submit(context.WithoutCancel(ctx), req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return res, err
	}
	s.submitting = false
	if err != nil && !errors.Is(err, domain.ErrAlreadySubmitted) {
		return res, err
	}
	score := res.Score
	s.score = &score
	s.phase = PhaseSubmitted
	s.stage = domain.StageReview
	s.narration.Request(s.def.CaseID, domain.StageReview)
	return res, err
}

// Abandon discards the current case. Any in-flight load is superseded.
func (s *CaseSession) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase == PhaseIdle || s.phase == PhaseAbandoned {
		return
	}
	s.gen++
	s.resetLocked(PhaseAbandoned)
}

// Focus resumes narration for the current stage when the screen regains focus.
func (s *CaseSession) Focus() { s.narration.Focus() }

// Blur stops narration when the screen loses focus. Submissions keep running.
func (s *CaseSession) Blur() { s.narration.Blur() }

// PauseNarration mutes narration until ResumeNarration.
func (s *CaseSession) PauseNarration() { s.narration.Pause() }

// ResumeNarration unmutes and replays the current stage.
func (s *CaseSession) ResumeNarration() { s.narration.Resume() }

// NarrationFinished reports that the clip with token finished playing.
func (s *CaseSession) NarrationFinished(token uint64) { s.narration.Finished(token) }

// Close ends the session for good. Pending loads are superseded, the case is
// dropped and every later open, selection or submit fails with ErrSessionNotActive.
// A submission already on the wire still commits remotely.
func (s *CaseSession) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.gen++
		s.resetLocked(PhaseAbandoned)
	}
	s.mu.Unlock()
	s.narration.Close()
}

// SessionView is the snapshot pushed to clients. Answer keys are only included
// once the case has been scored.
type SessionView struct {
	SessionID  string                 `json:"sessionId"`
	UserID     string                 `json:"userId"`
	Phase      Phase                  `json:"phase"`
	Stage      domain.Stage           `json:"stage"`
	CaseRef    *domain.CaseRef        `json:"caseRef,omitempty"`
	Case       *domain.CaseDefinition `json:"case,omitempty"`
	Selections domain.Selections      `json:"selections"`
	Score      *domain.ScoreBreakdown `json:"score,omitempty"`
	Assessment *Assessment            `json:"assessment,omitempty"`
	Hearts     *int                   `json:"hearts,omitempty"`
	Narration  NarrationStatus        `json:"narration"`
}

// View returns the current snapshot of the session.
func (s *CaseSession) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := SessionView{
		SessionID:  s.id,
		UserID:     s.userID,
		Phase:      s.phase,
		Stage:      s.stage,
		Selections: s.selections.Snapshot(),
		Narration:  s.narration.Status(),
	}
	if s.ref.ID != "" {
		ref := s.ref
		v.CaseRef = &ref
	}
	if s.def != nil {
		if s.score != nil {
			v.Case = s.def
			score := *s.score
			v.Score = &score
			assessment := Assess(s.def, v.Selections)
			assessment.Score = score
			v.Assessment = &assessment
		} else {
			v.Case = s.def.Redacted()
		}
	}
	if s.userID != "" && s.ref.Source.ConsumesHearts() && s.phase == PhaseInProgress && !s.economy.Premium {
		hearts := s.economy.Hearts
		v.Hearts = &hearts
	}
	return v
}

// Phase returns the current phase.
func (s *CaseSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Selections returns a copy of the current selections.
func (s *CaseSession) Selections() domain.Selections {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selections.Snapshot()
}

func hasTest(def *domain.CaseDefinition, id string) bool {
	for _, t := range def.Tests() {
		if t.TestID == id {
			return true
		}
	}
	return false
}

func hasDiagnosis(def *domain.CaseDefinition, id string) bool {
	for _, d := range def.DiagnosisOptions() {
		if d.DiagnosisID == id {
			return true
		}
	}
	return false
}

func hasTreatment(def *domain.CaseDefinition, id string) bool {
	for _, t := range FlattenTreatments(def.TreatmentOptions()) {
		if t.TreatmentID == id {
			return true
		}
	}
	return false
}
