package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnnotationSelection is one span of an annotation. Rule, verdict and comment
// are stamped per selection at commit time, so the row stays self-contained
// even if the batch form ever grows per-span inputs.
type AnnotationSelection struct {
	Id           uuid.UUID
	AnnotationId uuid.UUID
	MessageIndex int
	StartOffset  int
	EndOffset    int
	Text         string
	RuleId       uuid.UUID
	Type         string
	Comment      string
}

// Annotation is a committed batch. Annotations are immutable once written;
// there is no update or soft-delete path for them.
type Annotation struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	AnnotatorId    uuid.UUID
	Selections     []AnnotationSelection
	CreatedAt      time.Time
}
