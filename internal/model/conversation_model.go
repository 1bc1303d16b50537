package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	Id      uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title   string         `gorm:"type:varchar(255);not null"`
	Domain  string         `gorm:"type:varchar(100);not null;index"`
	PostUrl string         `gorm:"type:text"`
	Tags    datatypes.JSON `gorm:"type:jsonb;default:'[]'"`

	// Ordered transcript turns as [{role, content}, ...]. The array index is
	// the coordinate space every annotation selection refers to, so messages
	// are immutable after import.
	Messages datatypes.JSON `gorm:"type:jsonb;not null"`

	AnnotationCount int `gorm:"not null;default:0"`
	ViolationCount  int `gorm:"not null;default:0"`
	ComplianceCount int `gorm:"not null;default:0"`

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "conversations"
}
