package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinical-case-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CaseLoader loads case JSONB and daily challenges from Postgres.
type CaseLoader struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewCaseLoader(pool *pgxpool.Pool) *CaseLoader {
	return &CaseLoader{pool: pool, clock: time.Now}
}

func (l *CaseLoader) LoadCase(ctx context.Context, caseID string) (domain.CaseDefinition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM cases WHERE id=$1`, caseID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CaseDefinition{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.CaseDefinition{}, fmt.Errorf("load case: %w", err)
	}
	return decodeCase(caseID, raw)
}

func (l *CaseLoader) LoadDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error) {
	date = domain.ChallengeDate(date, l.clock())
	var (
		id  string
		day time.Time
		raw []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT dc.id, dc.date, c.data
		FROM daily_challenges dc
		JOIN cases c ON c.id = dc.case_id
		WHERE dc.date = $1::date`, date).Scan(&id, &day, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyChallenge{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.DailyChallenge{}, fmt.Errorf("load daily challenge: %w", err)
	}
	def, err := decodeCase(id, raw)
	if err != nil {
		return domain.DailyChallenge{}, err
	}
	return domain.DailyChallenge{ID: id, Date: day.Format(domain.DateLayout), CaseData: def}, nil
}

func decodeCase(id string, raw []byte) (domain.CaseDefinition, error) {
	var def domain.CaseDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.CaseDefinition{}, fmt.Errorf("unmarshal case %s: %w", id, err)
	}
	return def, nil
}
