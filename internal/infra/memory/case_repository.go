package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"clinical-case-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CaseLoader fetches case content from a backing store (document DB, backend API).
type CaseLoader interface {
	LoadCase(ctx context.Context, caseID string) (domain.CaseDefinition, error)
	LoadDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error)
}

// CaseRepository caches cases and daily challenges with TTL to avoid repeated loads.
type CaseRepository struct {
	loader CaseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

func NewCaseRepository(loader CaseLoader, ttl time.Duration) *CaseRepository {
	return &CaseRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEntry),
	}
}

func (r *CaseRepository) GetCase(ctx context.Context, caseID string) (domain.CaseDefinition, error) {
	v, err := r.get("case:"+caseID, func() (any, error) {
		return r.loader.LoadCase(ctx, caseID)
	})
	if err != nil {
		return domain.CaseDefinition{}, err
	}
	return v.(domain.CaseDefinition), nil
}

func (r *CaseRepository) GetDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error) {
	date = domain.ChallengeDate(date, r.clock())
	v, err := r.get("daily:"+date, func() (any, error) {
		return r.loader.LoadDailyChallenge(ctx, date)
	})
	if err != nil {
		return domain.DailyChallenge{}, err
	}
	return v.(domain.DailyChallenge), nil
}

func (r *CaseRepository) get(key string, load func() (any, error)) (any, error) {
	if v, ok := r.lookup(key); ok {
		return v, nil
	}

	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another caller filled the entry.
		if v, ok := r.lookup(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = cachedEntry{value: v, expiresAt: r.clock().Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (r *CaseRepository) lookup(key string) (any, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		return entry.value, true
	}
	return nil, false
}

func (r *CaseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCaseLoader is a loader backed by in-memory maps (useful for tests/demos).
type StaticCaseLoader struct {
	cases      map[string]domain.CaseDefinition
	challenges map[string]domain.DailyChallenge
}

// NewStaticCaseLoader indexes challenges by date.
func NewStaticCaseLoader(cases map[string]domain.CaseDefinition, challenges []domain.DailyChallenge) *StaticCaseLoader {
	byDate := make(map[string]domain.DailyChallenge, len(challenges))
	for _, c := range challenges {
		byDate[c.Date] = c
	}
	return &StaticCaseLoader{cases: cases, challenges: byDate}
}

func (l *StaticCaseLoader) LoadCase(_ context.Context, caseID string) (domain.CaseDefinition, error) {
	if c, ok := l.cases[caseID]; ok {
		return c, nil
	}
	return domain.CaseDefinition{}, domain.ErrCaseNotFound
}

func (l *StaticCaseLoader) LoadDailyChallenge(_ context.Context, date string) (domain.DailyChallenge, error) {
	if c, ok := l.challenges[domain.ChallengeDate(date, time.Now())]; ok {
		return c, nil
	}
	return domain.DailyChallenge{}, domain.ErrCaseNotFound
}
