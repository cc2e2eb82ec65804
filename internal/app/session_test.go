package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinical-case-service/internal/app"
	"clinical-case-service/internal/domain"
	"clinical-case-service/internal/infra/memory"
)

func TestSessionPlaysCase(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	session := newSession("u1", newCatalog(), backend, false)

	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	view := session.View()
	if view.Phase != app.PhaseInProgress || view.Stage != domain.StagePresentation {
		t.Fatalf("unexpected view %+v", view)
	}
	for _, test := range view.Case.Tests() {
		if test.IsRelevant {
			t.Fatalf("answer keys must be hidden before scoring")
		}
	}
	if view.Hearts == nil || *view.Hearts != 3 {
		t.Fatalf("expected hearts in view, got %v", view.Hearts)
	}

	selectAll(t, session)
	res, err := session.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score.Total != 100 || !res.HeartConsumed {
		t.Fatalf("unexpected result %+v", res)
	}
	view = session.View()
	if view.Phase != app.PhaseSubmitted || view.Stage != domain.StageReview || view.Score == nil || view.Assessment == nil {
		t.Fatalf("unexpected view after submit %+v", view)
	}
	if !view.Case.Tests()[0].IsRelevant {
		t.Fatalf("answer keys must be revealed after scoring")
	}
	if backend.HeartsConsumed() != 1 {
		t.Fatalf("expected one heart consumed, got %d", backend.HeartsConsumed())
	}
}

func TestSessionSecondSubmitIsRejected(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	session := newSession("u1", newCatalog(), backend, false)
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := session.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := session.Submit(ctx); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if backend.Submissions() != 1 || backend.HeartsConsumed() != 1 {
		t.Fatalf("expected one submission and one heart, got %d/%d", backend.Submissions(), backend.HeartsConsumed())
	}
}

func TestSessionGuestSubmitFailsLocally(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	session := newSession("", newCatalog(), backend, false)
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := session.Submit(ctx); !errors.Is(err, domain.ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if session.Phase() != app.PhaseInProgress {
		t.Fatalf("expected session to stay in progress, got %s", session.Phase())
	}
	if backend.Submissions() != 0 {
		t.Fatalf("expected no network submission")
	}
}

func TestSessionClearsSelectionsOnLoad(t *testing.T) {
	ctx := context.Background()
	session := newSession("u1", newCatalog(), memory.NewBackend(3), false)
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	selectAll(t, session)

	if err := session.OpenCase(ctx, "case-2"); err != nil {
		t.Fatalf("open case-2: %v", err)
	}
	if !session.Selections().IsEmpty() {
		t.Fatalf("expected empty selections, got %+v", session.Selections())
	}
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !session.Selections().IsEmpty() {
		t.Fatalf("expected empty selections on reopen, got %+v", session.Selections())
	}
}

func TestSessionStaleLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	catalog := &gatedCatalog{
		CaseRepository: newCatalog(),
		gated:          "case-1",
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	session := newSession("u1", catalog, memory.NewBackend(3), false)

	errs := make(chan error, 1)
	go func() { errs <- session.OpenCase(ctx, "case-1") }()
	<-catalog.started

	if err := session.OpenCase(ctx, "case-2"); err != nil {
		t.Fatalf("open case-2: %v", err)
	}
	close(catalog.release)
	if err := <-errs; err != nil {
		t.Fatalf("superseded load should not fail: %v", err)
	}

	view := session.View()
	if view.CaseRef == nil || view.CaseRef.ID != "case-2" || view.Phase != app.PhaseInProgress {
		t.Fatalf("stale load overwrote the session: %+v", view)
	}
}

func TestSessionAbandonSupersedesLoad(t *testing.T) {
	ctx := context.Background()
	catalog := &gatedCatalog{
		CaseRepository: newCatalog(),
		gated:          "case-1",
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	session := newSession("u1", catalog, memory.NewBackend(3), false)

	errs := make(chan error, 1)
	go func() { errs <- session.OpenCase(ctx, "case-1") }()
	<-catalog.started
	session.Abandon()
	close(catalog.release)
	<-errs

	if session.Phase() != app.PhaseAbandoned {
		t.Fatalf("expected abandoned, got %s", session.Phase())
	}
}

func TestSessionReviewsCompletedCase(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	catalog := newCatalog()
	first := newSession("u1", catalog, backend, false)
	if err := first.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.ToggleTest("t1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := first.SelectDiagnosis("d1"); err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if _, err := first.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	second := newSession("u1", catalog, backend, false)
	if err := second.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	view := second.View()
	if view.Phase != app.PhaseReview || view.Stage != domain.StageReview {
		t.Fatalf("expected review, got %+v", view)
	}
	if view.Selections.DiagnosisID != "d1" || len(view.Selections.TestIDs) != 1 {
		t.Fatalf("expected restored selections, got %+v", view.Selections)
	}
	if view.Score == nil || view.Score.Diagnosis != 40 {
		t.Fatalf("expected stored score, got %+v", view.Score)
	}
	if _, err := second.ToggleTest("t2"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("review must be read-only, got %v", err)
	}
	if _, err := second.Submit(ctx); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if backend.Submissions() != 1 {
		t.Fatalf("expected one submission, got %d", backend.Submissions())
	}
}

func TestSessionHeartPolicy(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	backend.SetAccount("broke", false, 0)
	backend.SetAccount("vip", true, 0)
	catalog := newCatalog()

	broke := newSession("broke", catalog, backend, false)
	if err := broke.OpenCase(ctx, "case-1"); !errors.Is(err, domain.ErrNoHearts) {
		t.Fatalf("expected ErrNoHearts, got %v", err)
	}
	if broke.Phase() != app.PhaseIdle {
		t.Fatalf("expected idle after rejected entry, got %s", broke.Phase())
	}
	if err := broke.OpenDailyChallenge(ctx, ""); err != nil {
		t.Fatalf("daily challenge must not require hearts: %v", err)
	}
	res, err := broke.Submit(ctx)
	if err != nil || res.HeartConsumed {
		t.Fatalf("daily challenge must not consume hearts: %+v %v", res, err)
	}

	vip := newSession("vip", catalog, backend, false)
	if err := vip.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("premium entry: %v", err)
	}
	if vip.View().Hearts != nil {
		t.Fatalf("premium view should not show hearts")
	}
	res, err = vip.Submit(ctx)
	if err != nil || res.HeartConsumed {
		t.Fatalf("premium must not consume hearts: %+v %v", res, err)
	}
	if backend.HeartsConsumed() != 0 {
		t.Fatalf("expected no hearts consumed, got %d", backend.HeartsConsumed())
	}
}

func TestSessionLateSubmissionLeavesNewCaseAlone(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	gameplays := &gatedGameplays{Backend: backend, started: make(chan struct{}), release: make(chan struct{})}
	session := app.NewCaseSession("u1", app.SessionDeps{
		Catalog:   newCatalog(),
		Gameplays: gameplays,
		Gate:      app.NewEconomyGate(backend),
	})
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := session.Submit(ctx)
		errs <- err
	}()
	<-gameplays.started
	if _, err := session.ToggleTest("t1"); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
	if err := session.OpenCase(ctx, "case-2"); err != nil {
		t.Fatalf("open case-2: %v", err)
	}
	close(gameplays.release)
	if err := <-errs; err != nil {
		t.Fatalf("late submission: %v", err)
	}

	view := session.View()
	if view.Phase != app.PhaseInProgress || view.CaseRef.ID != "case-2" || view.Score != nil {
		t.Fatalf("late completion mutated the new case: %+v", view)
	}
	if backend.Submissions() != 1 {
		t.Fatalf("expected the late submission to commit, got %d", backend.Submissions())
	}
}

func TestSessionNavigation(t *testing.T) {
	ctx := context.Background()
	session := newSession("u1", newCatalog(), memory.NewBackend(3), false)
	if _, err := session.Next(); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive before load, got %v", err)
	}
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if stage, _ := session.Back(); stage != domain.StagePresentation {
		t.Fatalf("back on first stage must be a no-op, got %s", stage)
	}
	want := []domain.Stage{domain.StageTests, domain.StageDiagnosis, domain.StageTreatment, domain.StageTreatment}
	for _, w := range want {
		if stage, err := session.Next(); err != nil || stage != w {
			t.Fatalf("expected %s, got %s (%v)", w, stage, err)
		}
	}
	if stage, _ := session.Back(); stage != domain.StageDiagnosis {
		t.Fatalf("expected diagnosis, got %s", stage)
	}
}

func TestSessionRejectsUnknownOptions(t *testing.T) {
	ctx := context.Background()
	session := newSession("u1", newCatalog(), memory.NewBackend(3), false)
	if _, err := session.ToggleTest("t1"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if err := session.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := session.ToggleTest("nope"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	if err := session.SelectDiagnosis("nope"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
	if _, err := session.ToggleTreatment("nope"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestSessionLoadErrors(t *testing.T) {
	ctx := context.Background()
	session := newSession("u1", newCatalog(), memory.NewBackend(3), false)
	if err := session.OpenCase(ctx, "missing"); !errors.Is(err, domain.ErrCaseNotFound) || domain.IsRetryable(err) {
		t.Fatalf("expected non-retryable ErrCaseNotFound, got %v", err)
	}

	failing := newSession("u1", failingCatalog{}, memory.NewBackend(3), false)
	if err := failing.OpenCase(ctx, "case-1"); !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if failing.Phase() != app.PhaseIdle {
		t.Fatalf("expected idle, got %s", failing.Phase())
	}
}

func TestSessionStrictValidation(t *testing.T) {
	ctx := context.Background()
	broken := sampleCase("case-bad")
	broken.Steps[2].Data.DiagnosisOptions[1].IsCorrect = true
	catalog := memory.NewCaseRepository(memory.NewStaticCaseLoader(map[string]domain.CaseDefinition{
		"case-bad": broken,
	}, nil), time.Minute)

	lenient := newSession("u1", catalog, memory.NewBackend(3), false)
	if err := lenient.OpenCase(ctx, "case-bad"); err != nil {
		t.Fatalf("lenient open: %v", err)
	}
	strict := newSession("u1", catalog, memory.NewBackend(3), true)
	if err := strict.OpenCase(ctx, "case-bad"); !errors.Is(err, domain.ErrInvalidCase) {
		t.Fatalf("expected ErrInvalidCase, got %v", err)
	}
}

func newSession(userID string, catalog app.CaseRepository, backend *memory.Backend, strict bool) *app.CaseSession {
	return app.NewCaseSession(userID, app.SessionDeps{
		Catalog:          catalog,
		Gameplays:        backend,
		Gate:             app.NewEconomyGate(backend),
		StrictValidation: strict,
	})
}

func newCatalog() *memory.CaseRepository {
	today := time.Now().UTC().Format(domain.DateLayout)
	return memory.NewCaseRepository(memory.NewStaticCaseLoader(map[string]domain.CaseDefinition{
		"case-1": sampleCase("case-1"),
		"case-2": sampleCase("case-2"),
	}, []domain.DailyChallenge{
		{ID: "dc-1", Date: today, CaseData: sampleCase("case-daily")},
	}), time.Minute)
}

func selectAll(t *testing.T, session *app.CaseSession) {
	t.Helper()
	for _, id := range []string{"t1", "t2"} {
		if _, err := session.ToggleTest(id); err != nil {
			t.Fatalf("toggle %s: %v", id, err)
		}
	}
	if err := session.SelectDiagnosis("d1"); err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if _, err := session.ToggleTreatment("m1"); err != nil {
		t.Fatalf("treatment: %v", err)
	}
}

type gatedCatalog struct {
	app.CaseRepository
	gated   string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (c *gatedCatalog) GetCase(ctx context.Context, caseID string) (domain.CaseDefinition, error) {
	if caseID == c.gated {
		c.once.Do(func() { close(c.started) })
		<-c.release
	}
	return c.CaseRepository.GetCase(ctx, caseID)
}

type failingCatalog struct{}

func (failingCatalog) GetCase(context.Context, string) (domain.CaseDefinition, error) {
	return domain.CaseDefinition{}, errors.New("connection refused")
}

func (failingCatalog) GetDailyChallenge(context.Context, string) (domain.DailyChallenge, error) {
	return domain.DailyChallenge{}, errors.New("connection refused")
}

type gatedGameplays struct {
	*memory.Backend
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedGameplays) SubmitGameplay(ctx context.Context, s domain.GameplaySubmission) (domain.GameplayRecord, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Backend.SubmitGameplay(ctx, s)
}

func sampleCase(id string) domain.CaseDefinition {
	return domain.CaseDefinition{
		CaseID:    id,
		CaseTitle: "Crushing chest pain",
		Category:  "cardiology",
		Steps: []domain.Step{
			{StepNumber: 1, Data: domain.StepData{Presentation: &domain.Presentation{ChiefComplaint: "Chest pain"}}},
			{StepNumber: 2, Data: domain.StepData{AvailableTests: []domain.AvailableTest{
				{TestID: "t1", TestName: "ECG", IsRelevant: true},
				{TestID: "t2", TestName: "Troponin", IsRelevant: true},
				{TestID: "t3", TestName: "Lipase"},
			}}},
			{StepNumber: 3, Data: domain.StepData{DiagnosisOptions: []domain.DiagnosisOption{
				{DiagnosisID: "d1", DiagnosisName: "STEMI", IsCorrect: true},
				{DiagnosisID: "d2", DiagnosisName: "Pericarditis"},
			}}},
			{StepNumber: 4, Data: domain.StepData{TreatmentOptions: &domain.TreatmentOptions{
				Medications: []domain.TreatmentOption{{TreatmentID: "m1", TreatmentName: "Aspirin", IsCorrect: true}},
			}}},
			{StepNumber: 5, Data: domain.StepData{Review: &domain.Review{Explanation: "ST elevation"}}},
		},
	}
}

func TestSessionReplacedByNewConnectionIsClosed(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend(3)
	svc := app.NewGameplayService(app.ServiceConfig{
		Sessions:  memory.NewSessionStore(),
		Catalog:   newCatalog(),
		Gameplays: backend,
		Economy:   backend,
	})

	old := svc.Start("u1", nil)
	if err := old.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	current := svc.Start("u1", nil)
	if got, err := svc.Session("u1"); err != nil || got != current {
		t.Fatalf("expected the new session to be registered, got %v %v", got, err)
	}

	if _, err := old.ToggleTest("t1"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive on toggle, got %v", err)
	}
	if err := old.OpenCase(ctx, "case-1"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive on open, got %v", err)
	}
	if _, err := old.Submit(ctx); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive on submit, got %v", err)
	}
	if backend.Submissions() != 0 || backend.HeartsConsumed() != 0 {
		t.Fatalf("closed session reached the backend: submits=%d hearts=%d", backend.Submissions(), backend.HeartsConsumed())
	}

	if err := current.OpenCase(ctx, "case-1"); err != nil {
		t.Fatalf("open on new session: %v", err)
	}
	selectAll(t, current)
	if _, err := current.Submit(ctx); err != nil {
		t.Fatalf("submit on new session: %v", err)
	}
}
