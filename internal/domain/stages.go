package domain

import "fmt"

// Stage is one step of the case pipeline.
type Stage int

const (
	StageNone Stage = iota
	StagePresentation
	StageTests
	StageDiagnosis
	StageTreatment
	StageReview
)

// InteractiveStages are the steps a player navigates before submitting, in order.
var InteractiveStages = [...]Stage{StagePresentation, StageTests, StageDiagnosis, StageTreatment}

// StepNumber is the 1-based position of the stage in a case definition.
func (s Stage) StepNumber() int {
	switch s {
	case StagePresentation:
		return 1
	case StageTests:
		return 2
	case StageDiagnosis:
		return 3
	case StageTreatment:
		return 4
	case StageReview:
		return 5
	}
	return 0
}

// Key is the stable identifier used for narration clips and the wire protocol.
func (s Stage) Key() string {
	switch s {
	case StagePresentation:
		return "presentation"
	case StageTests:
		return "tests"
	case StageDiagnosis:
		return "diagnosis"
	case StageTreatment:
		return "treatment"
	case StageReview:
		return "review"
	}
	return ""
}

func (s Stage) String() string {
	if k := s.Key(); k != "" {
		return k
	}
	return "none"
}

// MarshalText encodes the stage as its key.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStage maps a stage key back to a Stage.
func ParseStage(key string) (Stage, error) {
	switch key {
	case "presentation":
		return StagePresentation, nil
	case "tests":
		return StageTests, nil
	case "diagnosis":
		return StageDiagnosis, nil
	case "treatment":
		return StageTreatment, nil
	case "review":
		return StageReview, nil
	case "none", "":
		return StageNone, nil
	}
	return StageNone, fmt.Errorf("unknown stage %q", key)
}

// SourceType tells whether a session plays a regular case or a daily challenge.
type SourceType string

const (
	SourceCase           SourceType = "case"
	SourceDailyChallenge SourceType = "dailyChallenge"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceCase, SourceDailyChallenge:
		return true
	}
	return false
}

// ConsumesHearts reports whether completing this source costs a heart.
func (s SourceType) ConsumesHearts() bool {
	switch s {
	case SourceCase:
		return true
	case SourceDailyChallenge:
		return false
	}
	return false
}

// TreatmentGroup names one partition of the treatment options.
type TreatmentGroup int

const (
	GroupMedications TreatmentGroup = iota
	GroupSurgicalInterventional
	GroupNonSurgical
	GroupPsychiatric
)

// TreatmentGroupOrder is the concatenation order used to flatten treatment groups
// into positional indices. Submission and review reconstruction both rely on it.
var TreatmentGroupOrder = [...]TreatmentGroup{
	GroupMedications,
	GroupSurgicalInterventional,
	GroupNonSurgical,
	GroupPsychiatric,
}

func (g TreatmentGroup) String() string {
	switch g {
	case GroupMedications:
		return "medications"
	case GroupSurgicalInterventional:
		return "surgicalInterventional"
	case GroupNonSurgical:
		return "nonSurgical"
	case GroupPsychiatric:
		return "psychiatric"
	}
	return "unknown"
}

// UnmarshalText decodes a stage key.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
