package mapper

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/model"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ToEntity(mdl *model.Conversation) *entity.Conversation {
	if mdl == nil {
		return nil
	}

	var deletedAt *time.Time
	if mdl.DeletedAt.Valid {
		deletedAt = &mdl.DeletedAt.Time
	}

	var updatedAt *time.Time
	if !mdl.UpdatedAt.IsZero() {
		updatedAt = &mdl.UpdatedAt
	}

	var tags []string
	if len(mdl.Tags) > 0 {
		_ = json.Unmarshal(mdl.Tags, &tags)
	}

	var messages []entity.Message
	if len(mdl.Messages) > 0 {
		_ = json.Unmarshal(mdl.Messages, &messages)
	}

	return &entity.Conversation{
		Id:              mdl.Id,
		Title:           mdl.Title,
		Domain:          mdl.Domain,
		PostUrl:         mdl.PostUrl,
		Tags:            tags,
		Messages:        messages,
		AnnotationCount: mdl.AnnotationCount,
		ViolationCount:  mdl.ViolationCount,
		ComplianceCount: mdl.ComplianceCount,
		CreatedAt:       mdl.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       mdl.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) ToModel(e *entity.Conversation) *model.Conversation {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	tags, _ := json.Marshal(e.Tags)
	if e.Tags == nil {
		tags = []byte("[]")
	}

	messages, _ := json.Marshal(e.Messages)
	if e.Messages == nil {
		messages = []byte("[]")
	}

	return &model.Conversation{
		Id:              e.Id,
		Title:           e.Title,
		Domain:          e.Domain,
		PostUrl:         e.PostUrl,
		Tags:            datatypes.JSON(tags),
		Messages:        datatypes.JSON(messages),
		AnnotationCount: e.AnnotationCount,
		ViolationCount:  e.ViolationCount,
		ComplianceCount: e.ComplianceCount,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}

func (m *ConversationMapper) ToEntities(conversations []*model.Conversation) []*entity.Conversation {
	entities := make([]*entity.Conversation, len(conversations))
	for i, c := range conversations {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *ConversationMapper) ToModels(conversations []*entity.Conversation) []*model.Conversation {
	models := make([]*model.Conversation, len(conversations))
	for i, c := range conversations {
		models[i] = m.ToModel(c)
	}
	return models
}
