package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"clinical-case-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CaseLoader fetches case content from a backing store (document DB, backend API).
type CaseLoader interface {
	LoadCase(ctx context.Context, caseID string) (domain.CaseDefinition, error)
	LoadDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error)
}

// CaseRepository caches whole case documents in Redis and falls back to a loader on miss.
// Cases are stored as:      SET case:{caseID}  <json>
// Daily challenges as:      SET daily:{date}   <json>
type CaseRepository struct {
	client *redis.Client
	loader CaseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCaseRepository(client *redis.Client, loader CaseLoader, ttl time.Duration) *CaseRepository {
	return &CaseRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CaseRepository) GetCase(ctx context.Context, caseID string) (domain.CaseDefinition, error) {
	var def domain.CaseDefinition
	err := r.get(ctx, caseKey(caseID), &def, func() (any, error) {
		return r.loader.LoadCase(ctx, caseID)
	})
	return def, err
}

func (r *CaseRepository) GetDailyChallenge(ctx context.Context, date string) (domain.DailyChallenge, error) {
	date = domain.ChallengeDate(date, r.clock())
	var challenge domain.DailyChallenge
	err := r.get(ctx, dailyKey(date), &challenge, func() (any, error) {
		return r.loader.LoadDailyChallenge(ctx, date)
	})
	return challenge, err
}

// get fills out from the cache or from load, storing the loaded value.
func (r *CaseRepository) get(ctx context.Context, key string, out any, load func() (any, error)) error {
	if ok := r.fromCache(ctx, key, out); ok {
		return nil
	}

	raw, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), out)
}

func (r *CaseRepository) fromCache(ctx context.Context, key string, out any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func caseKey(caseID string) string {
	return "case:" + caseID
}

func dailyKey(date string) string {
	return "daily:" + date
}

func (r *CaseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
