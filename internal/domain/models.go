package domain

import (
	"errors"
	"fmt"
	"time"
)

// AvailableTest is an orderable investigation. IsRelevant is the answer key and is
// stripped from anything shown before the case is scored.
type AvailableTest struct {
	TestID     string `json:"testId"`
	TestName   string `json:"testName"`
	Category   string `json:"category"`
	IsRelevant bool   `json:"isRelevant"`
	Result     string `json:"result"`
	Impression string `json:"impression"`
}

// DiagnosisOption is one candidate diagnosis; exactly one per case should be correct.
type DiagnosisOption struct {
	DiagnosisID   string `json:"diagnosisId"`
	DiagnosisName string `json:"diagnosisName"`
	IsCorrect     bool   `json:"isCorrect"`
}

// TreatmentOption is one candidate treatment inside a TreatmentGroup.
type TreatmentOption struct {
	TreatmentID   string `json:"treatmentId"`
	TreatmentName string `json:"treatmentName"`
	IsCorrect     bool   `json:"isCorrect"`
}

// TreatmentOptions partitions treatments into their four named groups.
type TreatmentOptions struct {
	Medications            []TreatmentOption `json:"medications"`
	SurgicalInterventional []TreatmentOption `json:"surgicalInterventional"`
	NonSurgical            []TreatmentOption `json:"nonSurgical"`
	Psychiatric            []TreatmentOption `json:"psychiatric"`
}

// Group returns the options of a single group.
func (t TreatmentOptions) Group(g TreatmentGroup) []TreatmentOption {
	switch g {
	case GroupMedications:
		return t.Medications
	case GroupSurgicalInterventional:
		return t.SurgicalInterventional
	case GroupNonSurgical:
		return t.NonSurgical
	case GroupPsychiatric:
		return t.Psychiatric
	}
	return nil
}

// Presentation is the patient presentation shown on the first step.
type Presentation struct {
	PatientName    string            `json:"patientName,omitempty"`
	Age            int               `json:"age,omitempty"`
	Sex            string            `json:"sex,omitempty"`
	ChiefComplaint string            `json:"chiefComplaint"`
	History        string            `json:"history,omitempty"`
	Vitals         map[string]string `json:"vitals,omitempty"`
	PhysicalExam   string            `json:"physicalExam,omitempty"`
}

// Review is the explanation payload revealed after scoring.
type Review struct {
	CorrectDiagnosis string   `json:"correctDiagnosis,omitempty"`
	Explanation      string   `json:"explanation"`
	KeyPoints        []string `json:"keyPoints,omitempty"`
}

// StepData carries the typed payload of one step. Only the field matching the
// step's stage is populated.
type StepData struct {
	Presentation     *Presentation     `json:"presentation,omitempty"`
	AvailableTests   []AvailableTest   `json:"availableTests,omitempty"`
	DiagnosisOptions []DiagnosisOption `json:"diagnosisOptions,omitempty"`
	TreatmentOptions *TreatmentOptions `json:"treatmentOptions,omitempty"`
	Review           *Review           `json:"review,omitempty"`
}

// Step is one ordered step of a case.
type Step struct {
	StepNumber int      `json:"stepNumber"`
	Data       StepData `json:"data"`
}

// CaseDefinition is an immutable clinical case loaded from the catalog.
type CaseDefinition struct {
	CaseID    string `json:"caseId"`
	CaseTitle string `json:"caseTitle"`
	Category  string `json:"category"`
	Steps     []Step `json:"steps"`
}

func (c *CaseDefinition) step(stage Stage) *StepData {
	n := stage.StepNumber()
	for i := range c.Steps {
		if c.Steps[i].StepNumber == n {
			return &c.Steps[i].Data
		}
	}
	return nil
}

// Presentation returns the presentation payload, if present.
func (c *CaseDefinition) Presentation() *Presentation {
	if d := c.step(StagePresentation); d != nil {
		return d.Presentation
	}
	return nil
}

// Tests returns the available tests in their display (and index) order.
func (c *CaseDefinition) Tests() []AvailableTest {
	if d := c.step(StageTests); d != nil {
		return d.AvailableTests
	}
	return nil
}

// DiagnosisOptions returns the diagnosis options in index order.
func (c *CaseDefinition) DiagnosisOptions() []DiagnosisOption {
	if d := c.step(StageDiagnosis); d != nil {
		return d.DiagnosisOptions
	}
	return nil
}

// TreatmentOptions returns the grouped treatment options.
func (c *CaseDefinition) TreatmentOptions() TreatmentOptions {
	if d := c.step(StageTreatment); d != nil && d.TreatmentOptions != nil {
		return *d.TreatmentOptions
	}
	return TreatmentOptions{}
}

// Review returns the review payload, if present.
func (c *CaseDefinition) Review() *Review {
	if d := c.step(StageReview); d != nil {
		return d.Review
	}
	return nil
}

// Validate reports data-integrity problems in a loaded case. A case that fails
// validation can still be scored; callers decide whether to reject it.
func (c *CaseDefinition) Validate() error {
	var problems []error
	if c.CaseID == "" {
		problems = append(problems, errors.New("empty case id"))
	}
	for _, stage := range InteractiveStages {
		if c.step(stage) == nil {
			problems = append(problems, fmt.Errorf("missing %s step", stage))
		}
	}

	seen := make(map[string]struct{})
	for _, t := range c.Tests() {
		if _, dup := seen[t.TestID]; dup {
			problems = append(problems, fmt.Errorf("duplicate test id %q", t.TestID))
		}
		seen[t.TestID] = struct{}{}
	}

	seen = make(map[string]struct{})
	correct := 0
	for _, d := range c.DiagnosisOptions() {
		if _, dup := seen[d.DiagnosisID]; dup {
			problems = append(problems, fmt.Errorf("duplicate diagnosis id %q", d.DiagnosisID))
		}
		seen[d.DiagnosisID] = struct{}{}
		if d.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		problems = append(problems, fmt.Errorf("expected exactly one correct diagnosis, found %d", correct))
	}

	seen = make(map[string]struct{})
	options := c.TreatmentOptions()
	for _, g := range TreatmentGroupOrder {
		for _, t := range options.Group(g) {
			if _, dup := seen[t.TreatmentID]; dup {
				problems = append(problems, fmt.Errorf("duplicate treatment id %q", t.TreatmentID))
			}
			seen[t.TreatmentID] = struct{}{}
		}
	}
	return errors.Join(problems...)
}

// Redacted returns a deep copy with every answer key and the review payload removed.
func (c *CaseDefinition) Redacted() *CaseDefinition {
	out := &CaseDefinition{
		CaseID:    c.CaseID,
		CaseTitle: c.CaseTitle,
		Category:  c.Category,
		Steps:     make([]Step, 0, len(c.Steps)),
	}
	for _, s := range c.Steps {
		data := StepData{Presentation: s.Data.Presentation}
		for _, t := range s.Data.AvailableTests {
			t.IsRelevant = false
			data.AvailableTests = append(data.AvailableTests, t)
		}
		for _, d := range s.Data.DiagnosisOptions {
			d.IsCorrect = false
			data.DiagnosisOptions = append(data.DiagnosisOptions, d)
		}
		if s.Data.TreatmentOptions != nil {
			data.TreatmentOptions = &TreatmentOptions{
				Medications:            redactTreatments(s.Data.TreatmentOptions.Medications),
				SurgicalInterventional: redactTreatments(s.Data.TreatmentOptions.SurgicalInterventional),
				NonSurgical:            redactTreatments(s.Data.TreatmentOptions.NonSurgical),
				Psychiatric:            redactTreatments(s.Data.TreatmentOptions.Psychiatric),
			}
		}
		out.Steps = append(out.Steps, Step{StepNumber: s.StepNumber, Data: data})
	}
	return out
}

func redactTreatments(in []TreatmentOption) []TreatmentOption {
	if in == nil {
		return nil
	}
	out := make([]TreatmentOption, len(in))
	for i, t := range in {
		t.IsCorrect = false
		out[i] = t
	}
	return out
}

// DailyChallenge is a dated reference to a case.
type DailyChallenge struct {
	ID       string         `json:"_id"`
	Date     string         `json:"date"`
	CaseData CaseDefinition `json:"caseData"`
}

// CaseRef identifies what a session is playing. ID is either a case id or a
// daily-challenge id depending on Source.
type CaseRef struct {
	Source SourceType `json:"sourceType"`
	ID     string     `json:"id"`
}

// Selections is an id-based snapshot of a user's choices.
type Selections struct {
	TestIDs      []string `json:"testIds"`
	DiagnosisID  string   `json:"diagnosisId,omitempty"`
	TreatmentIDs []string `json:"treatmentIds"`
}

// IsEmpty reports whether nothing has been selected.
func (s Selections) IsEmpty() bool {
	return len(s.TestIDs) == 0 && s.DiagnosisID == "" && len(s.TreatmentIDs) == 0
}

// ScoreBreakdown is the normalized score of a completed case.
type ScoreBreakdown struct {
	Total     int `json:"total"`
	Tests     int `json:"tests"`
	Diagnosis int `json:"diagnosis"`
	Treatment int `json:"treatment"`
}

// SelectionIndices is the positional form of Selections sent over the wire.
type SelectionIndices struct {
	DiagnosisIndex   *int  `json:"diagnosisIndex"`
	TestIndices      []int `json:"testIndices"`
	TreatmentIndices []int `json:"treatmentIndices"`
}

// GameplaySubmission is the write-once completion payload.
type GameplaySubmission struct {
	UserID           string         `json:"userId"`
	SourceType       SourceType     `json:"sourceType"`
	CaseID           string         `json:"caseId,omitempty"`
	DailyChallengeID string         `json:"dailyChallengeId,omitempty"`
	DiagnosisIndex   *int           `json:"diagnosisIndex"`
	TestIndices      []int          `json:"testIndices"`
	TreatmentIndices []int          `json:"treatmentIndices"`
	Points           ScoreBreakdown `json:"points"`
	Complete         bool           `json:"complete"`

	// IdempotencyKey travels as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

// GameplayStatusCompleted marks a finished gameplay record.
const GameplayStatusCompleted = "completed"

// GameplayRecord is the server-owned result of a submission.
type GameplayRecord struct {
	ID         string           `json:"_id"`
	Status     string           `json:"status"`
	Selections SelectionIndices `json:"selections"`
	Points     *ScoreBreakdown  `json:"points,omitempty"`
}

// Completed reports whether the record represents a finished case.
func (g GameplayRecord) Completed() bool {
	return g.Status == GameplayStatusCompleted
}

// Economy is the server-authoritative heart balance of an account.
type Economy struct {
	Premium     bool      `json:"premium"`
	Hearts      int       `json:"hearts"`
	MaxHearts   int       `json:"maxHearts"`
	NextResetAt time.Time `json:"nextResetAt"`
}

// DateLayout is the calendar date format of daily challenges.
const DateLayout = "2006-01-02"

// ChallengeDate resolves an empty date to today's UTC date.
func ChallengeDate(date string, now time.Time) string {
	if date != "" {
		return date
	}
	return now.UTC().Format(DateLayout)
}
