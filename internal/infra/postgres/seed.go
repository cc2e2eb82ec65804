package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"clinical-case-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// SeedBundle is the on-disk format accepted by the seed command.
type SeedBundle struct {
	Cases           []domain.CaseDefinition `json:"cases"`
	DailyChallenges []SeedChallenge         `json:"dailyChallenges"`
}

// SeedChallenge schedules an existing case on a date.
type SeedChallenge struct {
	ID     string `json:"_id"`
	Date   string `json:"date"`
	CaseID string `json:"caseId"`
}

type caseRow struct {
	bun.BaseModel `bun:"table:cases"`

	ID        string                `bun:"id,pk"`
	Data      domain.CaseDefinition `bun:"data,type:jsonb"`
	UpdatedAt time.Time             `bun:"updated_at"`
}

type challengeRow struct {
	bun.BaseModel `bun:"table:daily_challenges"`

	ID     string    `bun:"id,pk"`
	Date   time.Time `bun:"date,type:date"`
	CaseID string    `bun:"case_id"`
}

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// ReadSeedFile decodes a SeedBundle from path.
func ReadSeedFile(path string) (SeedBundle, error) {
	var bundle SeedBundle
	data, err := os.ReadFile(path)
	if err != nil {
		return bundle, err
	}
	if err := json.Unmarshal(data, &bundle); err != nil {
		return bundle, fmt.Errorf("parse %s: %w", path, err)
	}
	return bundle, nil
}

// Seed upserts cases and daily challenges in one transaction.
func Seed(ctx context.Context, db *bun.DB, bundle SeedBundle) error {
	now := time.Now().UTC()
	cases := make([]caseRow, 0, len(bundle.Cases))
	for _, c := range bundle.Cases {
		if c.CaseID == "" {
			return fmt.Errorf("seed: case without caseId")
		}
		cases = append(cases, caseRow{ID: c.CaseID, Data: c, UpdatedAt: now})
	}
	challenges := make([]challengeRow, 0, len(bundle.DailyChallenges))
	for _, dc := range bundle.DailyChallenges {
		day, err := time.Parse(domain.DateLayout, dc.Date)
		if err != nil {
			return fmt.Errorf("seed: challenge %s: %w", dc.ID, err)
		}
		challenges = append(challenges, challengeRow{ID: dc.ID, Date: day, CaseID: dc.CaseID})
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(cases) > 0 {
			if _, err := tx.NewInsert().Model(&cases).
				On("CONFLICT (id) DO UPDATE").
				Set("data = EXCLUDED.data").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed cases: %w", err)
			}
		}
		if len(challenges) > 0 {
			if _, err := tx.NewInsert().Model(&challenges).
				On("CONFLICT (id) DO UPDATE").
				Set("date = EXCLUDED.date").
				Set("case_id = EXCLUDED.case_id").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed daily challenges: %w", err)
			}
		}
		return nil
	})
}
