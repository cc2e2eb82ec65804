package app

import "clinical-case-service/internal/domain"

// Component weights out of 100.
const (
	TestsWeight     = 30
	DiagnosisWeight = 40
	TreatmentWeight = 30

	// IrrelevantTestPenalty is deducted from the tests component per irrelevant test ordered.
	IrrelevantTestPenalty = 5
)

// Score maps a case and a set of selections to a normalized breakdown. It is pure:
// ids that do not resolve against the case are ignored and a nil case scores zero.
func Score(def *domain.CaseDefinition, sel domain.Selections) domain.ScoreBreakdown {
	if def == nil {
		return domain.ScoreBreakdown{}
	}
	b := domain.ScoreBreakdown{
		Tests:     scoreTests(def.Tests(), sel.TestIDs),
		Diagnosis: scoreDiagnosis(def.DiagnosisOptions(), sel.DiagnosisID),
		Treatment: scoreTreatments(FlattenTreatments(def.TreatmentOptions()), sel.TreatmentIDs),
	}
	b.Total = b.Tests + b.Diagnosis + b.Treatment
	return b
}

func scoreTests(tests []domain.AvailableTest, selected []string) int {
	chosen := toSet(selected)
	relevant, relevantHit, irrelevantHit := 0, 0, 0
	for _, t := range tests {
		_, picked := chosen[t.TestID]
		switch {
		case t.IsRelevant && picked:
			relevant++
			relevantHit++
		case t.IsRelevant:
			relevant++
		case picked:
			irrelevantHit++
		}
	}

	reward := TestsWeight
	if relevant > 0 {
		reward = proportion(relevantHit, relevant, TestsWeight)
	}
	return clamp(reward-irrelevantHit*IrrelevantTestPenalty, 0, TestsWeight)
}

func scoreDiagnosis(options []domain.DiagnosisOption, selected string) int {
	if selected == "" {
		return 0
	}
	for _, d := range options {
		if d.DiagnosisID == selected {
			if d.IsCorrect {
				return DiagnosisWeight
			}
			return 0
		}
	}
	return 0
}

func scoreTreatments(options []domain.TreatmentOption, selected []string) int {
	chosen := toSet(selected)
	correct, correctHit, incorrectHit := 0, 0, 0
	for _, t := range options {
		_, picked := chosen[t.TreatmentID]
		switch {
		case t.IsCorrect && picked:
			correct++
			correctHit++
		case t.IsCorrect:
			correct++
		case picked:
			incorrectHit++
		}
	}
	if correct == 0 {
		if incorrectHit == 0 {
			return TreatmentWeight
		}
		return 0
	}
	net := correctHit - incorrectHit
	if net < 0 {
		net = 0
	}
	return clamp(proportion(net, correct, TreatmentWeight), 0, TreatmentWeight)
}

// proportion returns round(part/whole*weight) with halves rounded up. whole must be > 0.
func proportion(part, whole, weight int) int {
	return (2*part*weight + whole) / (2 * whole)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Outcome classifies one option after scoring.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"     // selected and expected
	OutcomeMistake Outcome = "mistake" // selected but not expected
	OutcomeMissed  Outcome = "missed"  // expected but not selected
	OutcomeIgnored Outcome = "ignored" // neither
)

// ItemAssessment is the review verdict for one option.
type ItemAssessment struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
}

// Assessment explains a score item by item for the review step.
type Assessment struct {
	Score              domain.ScoreBreakdown `json:"score"`
	Tests              []ItemAssessment      `json:"tests"`
	Diagnosis          []ItemAssessment      `json:"diagnosis"`
	Treatments         []ItemAssessment      `json:"treatments"`
	CorrectDiagnosisID string                `json:"correctDiagnosisId,omitempty"`
}

// Assess scores the selections and classifies every option of the case.
func Assess(def *domain.CaseDefinition, sel domain.Selections) Assessment {
	a := Assessment{Score: Score(def, sel)}
	if def == nil {
		return a
	}
	tests := toSet(sel.TestIDs)
	for _, t := range def.Tests() {
		_, picked := tests[t.TestID]
		a.Tests = append(a.Tests, ItemAssessment{ID: t.TestID, Name: t.TestName, Outcome: classify(picked, t.IsRelevant)})
	}
	for _, d := range def.DiagnosisOptions() {
		if d.IsCorrect && a.CorrectDiagnosisID == "" {
			a.CorrectDiagnosisID = d.DiagnosisID
		}
		picked := sel.DiagnosisID != "" && sel.DiagnosisID == d.DiagnosisID
		a.Diagnosis = append(a.Diagnosis, ItemAssessment{ID: d.DiagnosisID, Name: d.DiagnosisName, Outcome: classify(picked, d.IsCorrect)})
	}
	treatments := toSet(sel.TreatmentIDs)
	for _, t := range FlattenTreatments(def.TreatmentOptions()) {
		_, picked := treatments[t.TreatmentID]
		a.Treatments = append(a.Treatments, ItemAssessment{ID: t.TreatmentID, Name: t.TreatmentName, Outcome: classify(picked, t.IsCorrect)})
	}
	return a
}

func classify(picked, expected bool) Outcome {
	switch {
	case picked && expected:
		return OutcomeHit
	case picked:
		return OutcomeMistake
	case expected:
		return OutcomeMissed
	}
	return OutcomeIgnored
}
