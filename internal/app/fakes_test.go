package app

import (
	"context"
	"sync"

	"clinical-case-service/internal/domain"
)

type fakeEconomy struct {
	mu       sync.Mutex
	eco      domain.Economy
	err      error
	consumed int
}

func (f *fakeEconomy) Economy(context.Context, string) (domain.Economy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eco, f.err
}

func (f *fakeEconomy) ConsumeHeart(context.Context, string) (domain.Economy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Economy{}, f.err
	}
	f.consumed++
	f.eco.Hearts--
	return f.eco, nil
}

type fakeGameplays struct {
	mu          sync.Mutex
	submissions []domain.GameplaySubmission
	err         error
}

func (f *fakeGameplays) SubmitGameplay(_ context.Context, s domain.GameplaySubmission) (domain.GameplayRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, s)
	if f.err != nil {
		return domain.GameplayRecord{}, f.err
	}
	return domain.GameplayRecord{ID: "gp-1", Status: domain.GameplayStatusCompleted}, nil
}

func (f *fakeGameplays) FindGameplay(context.Context, string, domain.CaseRef) (domain.GameplayRecord, bool, error) {
	return domain.GameplayRecord{}, false, nil
}

func (f *fakeGameplays) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}
