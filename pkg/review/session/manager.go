package session

import (
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/repository/memory"
	"transcript-review-be/pkg/store"

	"github.com/google/uuid"
)

// Manager handles review session lifecycle in the in-memory store
type Manager struct {
	sessionRepo *memory.ReviewSessionRepository
}

// NewManager creates a new session manager
func NewManager(sessionRepo *memory.ReviewSessionRepository) *Manager {
	return &Manager{sessionRepo: sessionRepo}
}

// Create registers a fresh, unbound session owned by the reviewer
func (m *Manager) Create(reviewerId uuid.UUID) *store.ReviewSession {
	session := &store.ReviewSession{
		ID:         uuid.NewString(),
		ReviewerID: reviewerId.String(),
		State:      store.StateIdle,
	}
	m.sessionRepo.Save(session)
	return session
}

// Get loads a session and enforces ownership. A session owned by another
// reviewer is indistinguishable from a missing one.
func (m *Manager) Get(reviewerId uuid.UUID, sessionId string) (*store.ReviewSession, error) {
	session, found := m.sessionRepo.Get(sessionId)
	if !found {
		return nil, &dto.NotFoundError{Resource: "review session"}
	}
	if session.ReviewerID != reviewerId.String() {
		return nil, &dto.NotFoundError{Resource: "review session"}
	}
	return session, nil
}

// Save persists session state
func (m *Manager) Save(session *store.ReviewSession) {
	m.sessionRepo.Save(session)
}

// Delete discards a session together with its pending batch
func (m *Manager) Delete(sessionId string) {
	m.sessionRepo.Delete(sessionId)
}
