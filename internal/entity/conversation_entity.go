package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is one transcript turn. Its position in Conversation.Messages is
// the message index every selection offset is anchored to.
type Message struct {
	Role    string
	Content string
}

type Conversation struct {
	Id       uuid.UUID
	Title    string
	Domain   string
	PostUrl  string
	Tags     []string
	Messages []Message

	// Denormalized annotation counters, recomputed by the summary worker.
	AnnotationCount int
	ViolationCount  int
	ComplianceCount int

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
