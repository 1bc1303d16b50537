package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingSelection is a captured span waiting in the batch. The text is a
// copy taken from the stored transcript at capture time, so later edits to
// anything client-side never change what gets committed.
type PendingSelection struct {
	MessageIndex int    `json:"message_index"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
}

// Message is one transcript turn as cached in the session. Transcripts are
// immutable after import, so the cached copy stays valid for the lifetime of
// the binding.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Rule is the in-session mirror of a catalog entry, already narrowed to the
// bound conversation's domain.
type Rule struct {
	ID          uuid.UUID `json:"id"`
	Domain      string    `json:"domain"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// AnnotatedSelection is one committed span with the verdict stamped on it.
type AnnotatedSelection struct {
	MessageIndex int       `json:"message_index"`
	StartOffset  int       `json:"start_offset"`
	EndOffset    int       `json:"end_offset"`
	Text         string    `json:"text"`
	RuleID       uuid.UUID `json:"rule_id"`
	Type         string    `json:"type"`
	Comment      string    `json:"comment"`
}

// Annotation mirrors a committed batch as read back from the store. The
// session never synthesizes these locally; they always come from a fetch.
type Annotation struct {
	ID          uuid.UUID            `json:"id"`
	AnnotatorID uuid.UUID            `json:"annotator_id"`
	CreatedAt   time.Time            `json:"created_at"`
	Selections  []AnnotatedSelection `json:"selections"`
}

// ReviewSession is the live state of one open conversation view, held in
// memory per reviewer. All fields are guarded by the embedded mutex; callers
// must hold the lock across reads and writes, and must release it before any
// repository call.
type ReviewSession struct {
	mu sync.Mutex

	ID         string `json:"id"`
	ReviewerID string `json:"reviewer_id"`

	// Identity of the conversation the session is bound to. Rebinding
	// bumps Generation so results of superseded loads can be told apart.
	ConversationID     string `json:"conversation_id"`
	ConversationDomain string `json:"conversation_domain"`
	Generation         uint64 `json:"-"`

	// Transcript caches the bound conversation's messages so captures
	// resolve without a refetch. Never serialized into snapshots.
	Transcript []Message `json:"-"`

	State   string             `json:"state"` // StateIdle | StateComposing
	Pending []PendingSelection `json:"pending"`

	Rules       []Rule       `json:"rules"`
	Annotations []Annotation `json:"annotations"`

	// Loading is set on (re)bind and cleared when the annotation load
	// settles. The rule load never gates it.
	Loading        bool   `json:"loading"`
	CommitInFlight bool   `json:"commit_in_flight"`
	LastError      string `json:"last_error"`
}

func (s *ReviewSession) Lock()   { s.mu.Lock() }
func (s *ReviewSession) Unlock() { s.mu.Unlock() }

const (
	// StateIdle: no pending selections, the annotation entry surface is hidden.
	StateIdle = "IDLE"
	// StateComposing: at least one pending selection, the entry surface is shown.
	StateComposing = "COMPOSING"
)
