package batch

import (
	"log"

	"transcript-review-be/pkg/store"
)

// Manager mutates the pending batch of a review session. Callers hold the
// session lock across every call. The annotation entry surface is shown
// exactly while the batch is non-empty, so every mutation re-derives the
// session state from the batch size.
type Manager struct {
	logger *log.Logger
}

// NewManager creates a new batch manager
func NewManager(logger *log.Logger) *Manager {
	return &Manager{logger: logger}
}

// Add appends a captured selection and shows the entry surface
func (m *Manager) Add(session *store.ReviewSession, selection store.PendingSelection) {
	session.Pending = append(session.Pending, selection)
	session.State = store.StateComposing
	m.logger.Printf("[BATCH] Added selection (message %d, %d..%d): %d pending", selection.MessageIndex, selection.StartOffset, selection.EndOffset, len(session.Pending))
}

// Remove drops the pending selection at index; removing the last selection
// hides the entry surface again
func (m *Manager) Remove(session *store.ReviewSession, index int) bool {
	if index < 0 || index >= len(session.Pending) {
		return false
	}
	session.Pending = append(session.Pending[:index], session.Pending[index+1:]...)
	if len(session.Pending) == 0 {
		session.State = store.StateIdle
	}
	m.logger.Printf("[BATCH] Removed selection %d: %d pending", index, len(session.Pending))
	return true
}

// Clear wipes the whole batch and returns the session to idle
func (m *Manager) Clear(session *store.ReviewSession) {
	session.Pending = nil
	session.State = store.StateIdle
	m.logger.Printf("[BATCH] Cleared pending batch")
}
