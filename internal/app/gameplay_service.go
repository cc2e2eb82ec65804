package app

import (
	"log"

	"clinical-case-service/internal/domain"
)

// ServiceConfig wires the gameplay use cases.
type ServiceConfig struct {
	Sessions         SessionRepository
	Catalog          CaseRepository
	Gameplays        GameplayAPI
	Economy          EconomyAPI
	Narration        NarrationSource
	StrictValidation bool
	Logger           *log.Logger
}

// GameplayService hands out case sessions, one active session per user.
type GameplayService struct {
	sessions  SessionRepository
	catalog   CaseRepository
	gameplays GameplayAPI
	gate      *EconomyGate
	narration NarrationSource
	strict    bool
	logger    *log.Logger
}

func NewGameplayService(cfg ServiceConfig) *GameplayService {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &GameplayService{
		sessions:  cfg.Sessions,
		catalog:   cfg.Catalog,
		gameplays: cfg.Gameplays,
		gate:      NewEconomyGate(cfg.Economy),
		narration: cfg.Narration,
		strict:    cfg.StrictValidation,
		logger:    logger,
	}
}

// Start creates a session for userID whose narration is played through loader.
// A previous session of the same user is closed. Guest sessions (empty userID)
// are not registered.
func (s *GameplayService) Start(userID string, loader ClipLoader) *CaseSession {
	session := NewCaseSession(userID, SessionDeps{
		Catalog:          s.catalog,
		Gameplays:        s.gameplays,
		Gate:             s.gate,
		Narration:        NewNarrationController(loader, s.narration, s.logger),
		StrictValidation: s.strict,
		Logger:           s.logger,
	})
	if userID == "" {
		return session
	}
	if prev := s.sessions.Put(userID, session); prev != nil && prev != session {
		s.logger.Printf("replacing session %s of user %s", prev.ID(), userID)
		prev.Close()
	}
	return session
}

// Session returns the active session of userID.
func (s *GameplayService) Session(userID string) (*CaseSession, error) {
	if userID == "" {
		return nil, domain.ErrSessionNotFound
	}
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// End closes session and unregisters it if it is still the active one.
func (s *GameplayService) End(userID string, session *CaseSession) {
	session.Close()
	if userID != "" {
		s.sessions.Delete(userID, session)
	}
}
