package app

import (
	"sort"

	"clinical-case-service/internal/domain"
)

// FlattenTreatments concatenates the treatment groups in domain.TreatmentGroupOrder.
// Positional treatment indices refer to this slice.
func FlattenTreatments(options domain.TreatmentOptions) []domain.TreatmentOption {
	var flat []domain.TreatmentOption
	for _, g := range domain.TreatmentGroupOrder {
		flat = append(flat, options.Group(g)...)
	}
	return flat
}

// ToIndices converts id-based selections into positions within the case arrays.
// Ids that no longer resolve are dropped; the result only holds valid positions,
// sorted ascending. A duplicated id always maps to its first position.
func ToIndices(def *domain.CaseDefinition, sel domain.Selections) domain.SelectionIndices {
	out := domain.SelectionIndices{TestIndices: []int{}, TreatmentIndices: []int{}}
	if def == nil {
		return out
	}

	testPos := make(map[string]int)
	for i, t := range def.Tests() {
		if _, dup := testPos[t.TestID]; !dup {
			testPos[t.TestID] = i
		}
	}
	out.TestIndices = positions(testPos, sel.TestIDs)

	if sel.DiagnosisID != "" {
		for i, d := range def.DiagnosisOptions() {
			if d.DiagnosisID == sel.DiagnosisID {
				idx := i
				out.DiagnosisIndex = &idx
				break
			}
		}
	}

	treatmentPos := make(map[string]int)
	for i, t := range FlattenTreatments(def.TreatmentOptions()) {
		if _, dup := treatmentPos[t.TreatmentID]; !dup {
			treatmentPos[t.TreatmentID] = i
		}
	}
	out.TreatmentIndices = positions(treatmentPos, sel.TreatmentIDs)
	return out
}

func positions(pos map[string]int, ids []string) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		i, ok := pos[id]
		if !ok {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ToSelections rebuilds id-based selections from stored indices, using the same
// flattening order as ToIndices. Out-of-range positions are dropped and each id
// appears once.
func ToSelections(def *domain.CaseDefinition, idx domain.SelectionIndices) domain.Selections {
	sel := domain.Selections{TestIDs: []string{}, TreatmentIDs: []string{}}
	if def == nil {
		return sel
	}

	tests := def.Tests()
	seen := make(map[string]struct{})
	for _, i := range sortedUnique(idx.TestIndices) {
		if i < 0 || i >= len(tests) {
			continue
		}
		if _, dup := seen[tests[i].TestID]; !dup {
			seen[tests[i].TestID] = struct{}{}
			sel.TestIDs = append(sel.TestIDs, tests[i].TestID)
		}
	}

	if idx.DiagnosisIndex != nil {
		options := def.DiagnosisOptions()
		if i := *idx.DiagnosisIndex; i >= 0 && i < len(options) {
			sel.DiagnosisID = options[i].DiagnosisID
		}
	}

	treatments := FlattenTreatments(def.TreatmentOptions())
	seen = make(map[string]struct{})
	for _, i := range sortedUnique(idx.TreatmentIndices) {
		if i < 0 || i >= len(treatments) {
			continue
		}
		if _, dup := seen[treatments[i].TreatmentID]; !dup {
			seen[treatments[i].TreatmentID] = struct{}{}
			sel.TreatmentIDs = append(sel.TreatmentIDs, treatments[i].TreatmentID)
		}
	}
	return sel
}

func sortedUnique(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}
