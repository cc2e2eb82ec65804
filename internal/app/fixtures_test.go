package app

import "clinical-case-service/internal/domain"

// scenarioCase has 2 relevant tests of 5, diagnosis d1, and 3 correct treatments of 4
// spread across the groups.
func scenarioCase() *domain.CaseDefinition {
	return &domain.CaseDefinition{
		CaseID:    "case-1",
		CaseTitle: "Acute chest pain",
		Steps: []domain.Step{
			{StepNumber: 1, Data: domain.StepData{Presentation: &domain.Presentation{ChiefComplaint: "Chest pain"}}},
			{StepNumber: 2, Data: domain.StepData{AvailableTests: []domain.AvailableTest{
				{TestID: "t1", TestName: "ECG", IsRelevant: true},
				{TestID: "t2", TestName: "Troponin", IsRelevant: true},
				{TestID: "t3", TestName: "Lipase"},
				{TestID: "t4", TestName: "Urinalysis"},
				{TestID: "t5", TestName: "Skull X-ray"},
			}}},
			{StepNumber: 3, Data: domain.StepData{DiagnosisOptions: []domain.DiagnosisOption{
				{DiagnosisID: "d0", DiagnosisName: "Pericarditis"},
				{DiagnosisID: "d1", DiagnosisName: "STEMI", IsCorrect: true},
				{DiagnosisID: "d2", DiagnosisName: "GERD"},
			}}},
			{StepNumber: 4, Data: domain.StepData{TreatmentOptions: &domain.TreatmentOptions{
				Medications:            []domain.TreatmentOption{{TreatmentID: "m1", TreatmentName: "Aspirin", IsCorrect: true}, {TreatmentID: "m2", TreatmentName: "NSAID"}},
				SurgicalInterventional: []domain.TreatmentOption{{TreatmentID: "s1", TreatmentName: "PCI", IsCorrect: true}},
				NonSurgical:            []domain.TreatmentOption{{TreatmentID: "n1", TreatmentName: "Cardiac rehab", IsCorrect: true}},
			}}},
			{StepNumber: 5, Data: domain.StepData{Review: &domain.Review{Explanation: "Reperfusion first"}}},
		},
	}
}
