package mapper

import (
	"time"

	"gorm.io/gorm"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/model"
)

type RuleMapper struct{}

func NewRuleMapper() *RuleMapper {
	return &RuleMapper{}
}

func (m *RuleMapper) ToEntity(mdl *model.Rule) *entity.Rule {
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

	return &entity.Rule{
		Id:          mdl.Id,
		Domain:      mdl.Domain,
		Name:        mdl.Name,
		Description: mdl.Description,
		CreatedAt:   mdl.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   mdl.DeletedAt.Valid,
	}
}

func (m *RuleMapper) ToModel(e *entity.Rule) *model.Rule {
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

	return &model.Rule{
		Id:          e.Id,
		Domain:      e.Domain,
		Name:        e.Name,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *RuleMapper) ToEntities(rules []*model.Rule) []*entity.Rule {
	entities := make([]*entity.Rule, len(rules))
	for i, r := range rules {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

func (m *RuleMapper) ToModels(rules []*entity.Rule) []*model.Rule {
	models := make([]*model.Rule, len(rules))
	for i, r := range rules {
		models[i] = m.ToModel(r)
	}
	return models
}
