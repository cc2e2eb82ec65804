package app

import (
	"sort"

	"clinical-case-service/internal/domain"
)

// SelectionStore holds the mutable choices for the case identified by its key.
// It is owned by a single CaseSession, which serializes access.
type SelectionStore struct {
	key        domain.CaseRef
	tests      map[string]struct{}
	diagnosis  string
	treatments map[string]struct{}
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{
		tests:      make(map[string]struct{}),
		treatments: make(map[string]struct{}),
	}
}

// Load rebinds the store to a case and clears every selection.
func (s *SelectionStore) Load(key domain.CaseRef) {
	s.key = key
	s.tests = make(map[string]struct{})
	s.diagnosis = ""
	s.treatments = make(map[string]struct{})
}

// Restore rebinds the store to a case and replaces the selections.
func (s *SelectionStore) Restore(key domain.CaseRef, sel domain.Selections) {
	s.Load(key)
	for _, id := range sel.TestIDs {
		s.tests[id] = struct{}{}
	}
	s.diagnosis = sel.DiagnosisID
	for _, id := range sel.TreatmentIDs {
		s.treatments[id] = struct{}{}
	}
}

// Key returns the case the selections belong to.
func (s *SelectionStore) Key() domain.CaseRef {
	return s.key
}

// ToggleTest adds or removes a test and reports whether it is now selected.
func (s *SelectionStore) ToggleTest(id string) bool {
	return toggle(s.tests, id)
}

// SelectDiagnosis replaces the diagnosis; an empty id clears it.
func (s *SelectionStore) SelectDiagnosis(id string) {
	s.diagnosis = id
}

// ToggleTreatment adds or removes a treatment and reports whether it is now selected.
func (s *SelectionStore) ToggleTreatment(id string) bool {
	return toggle(s.treatments, id)
}

// Snapshot returns a sorted copy of the current selections.
func (s *SelectionStore) Snapshot() domain.Selections {
	return domain.Selections{
		TestIDs:      sortedKeys(s.tests),
		DiagnosisID:  s.diagnosis,
		TreatmentIDs: sortedKeys(s.treatments),
	}
}

func toggle(set map[string]struct{}, id string) bool {
	if _, ok := set[id]; ok {
		delete(set, id)
		return false
	}
	set[id] = struct{}{}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
