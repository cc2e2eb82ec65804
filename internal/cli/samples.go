package cli

import (
	_ "embed"
	"encoding/json"
	"time"

	"clinical-case-service/internal/domain"
	"clinical-case-service/internal/infra/postgres"
)

//go:embed samples/cases.json
var sampleBundleJSON []byte

// sampleBundle provides the demo catalog; a challenge without a date is scheduled for now's day.
func sampleBundle(now time.Time) (postgres.SeedBundle, error) {
	var bundle postgres.SeedBundle
	if err := json.Unmarshal(sampleBundleJSON, &bundle); err != nil {
		return bundle, err
	}
	scheduleUndated(&bundle, now)
	return bundle, nil
}

func scheduleUndated(bundle *postgres.SeedBundle, now time.Time) {
	for i := range bundle.DailyChallenges {
		bundle.DailyChallenges[i].Date = domain.ChallengeDate(bundle.DailyChallenges[i].Date, now)
	}
}

// staticCatalog indexes a bundle for the in-memory loader.
func staticCatalog(bundle postgres.SeedBundle) (map[string]domain.CaseDefinition, []domain.DailyChallenge) {
	cases := make(map[string]domain.CaseDefinition, len(bundle.Cases))
	for _, c := range bundle.Cases {
		cases[c.CaseID] = c
	}
	challenges := make([]domain.DailyChallenge, 0, len(bundle.DailyChallenges))
	for _, dc := range bundle.DailyChallenges {
		def, ok := cases[dc.CaseID]
		if !ok {
			continue
		}
		challenges = append(challenges, domain.DailyChallenge{ID: dc.ID, Date: dc.Date, CaseData: def})
	}
	return cases, challenges
}
