package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByDomain struct {
	Domain string
}

func (s ByDomain) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("domain = ?", s.Domain)
}

type ByAnnotatorID struct {
	AnnotatorID uuid.UUID
}

func (s ByAnnotatorID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("annotator_id = ?", s.AnnotatorID)
}

type ByTitleLike struct {
	Query string
}

func (s ByTitleLike) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("title ILIKE ?", "%"+s.Query+"%")
}
