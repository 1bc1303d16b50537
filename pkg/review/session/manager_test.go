package session

import (
	"errors"
	"testing"
	"time"

	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/repository/memory"
	"transcript-review-be/pkg/store"

	"github.com/google/uuid"
)

func newTestManager() *Manager {
	return NewManager(memory.NewReviewSessionRepository(time.Minute, time.Minute))
}

func TestCreateAndGet(t *testing.T) {
	m := newTestManager()
	reviewer := uuid.New()

	created := m.Create(reviewer)
	if created.ID == "" {
		t.Fatal("Create returned session without ID")
	}
	if created.State != store.StateIdle {
		t.Errorf("State = %q, want %q", created.State, store.StateIdle)
	}

	got, err := m.Get(reviewer, created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestGetUnknownSession(t *testing.T) {
	m := newTestManager()

	_, err := m.Get(uuid.New(), uuid.NewString())

	var notFound *dto.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestGetDoesNotLeakForeignSessions(t *testing.T) {
	m := newTestManager()
	owner := uuid.New()
	other := uuid.New()

	created := m.Create(owner)

	// Another reviewer probing this session ID gets the same answer as for
	// a session that never existed.
	_, err := m.Get(other, created.ID)
	var notFound *dto.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager()
	reviewer := uuid.New()
	created := m.Create(reviewer)

	m.Delete(created.ID)

	if _, err := m.Get(reviewer, created.ID); err == nil {
		t.Error("Get after Delete should fail")
	}
}

func TestSessionExpiry(t *testing.T) {
	repo := memory.NewReviewSessionRepository(20*time.Millisecond, 5*time.Millisecond)
	m := NewManager(repo)
	reviewer := uuid.New()

	created := m.Create(reviewer)
	time.Sleep(50 * time.Millisecond)

	if _, err := m.Get(reviewer, created.ID); err == nil {
		t.Error("idle session should expire")
	}
}
