package model

import (
	"time"

	"github.com/google/uuid"
)

// Annotation rows are append-only. There is no updated_at or soft delete;
// removing one means hard-deleting the aggregate.
type Annotation struct {
	Id             uuid.UUID             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID             `gorm:"type:uuid;not null;index"`
	AnnotatorId    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Selections     []AnnotationSelection `gorm:"foreignKey:AnnotationId;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"autoCreateTime"`
}

func (Annotation) TableName() string {
	return "annotations"
}

type AnnotationSelection struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AnnotationId uuid.UUID `gorm:"type:uuid;not null;index"`
	MessageIndex int       `gorm:"not null"`
	StartOffset  int       `gorm:"not null"`
	EndOffset    int       `gorm:"not null"`
	Text         string    `gorm:"type:text;not null"`
	RuleId       uuid.UUID `gorm:"type:uuid;not null;index"`
	Type         string    `gorm:"type:annotation_type;not null"` // enum created in cmd/migrate
	Comment      string    `gorm:"type:text"`
}

func (AnnotationSelection) TableName() string {
	return "annotation_selections"
}
