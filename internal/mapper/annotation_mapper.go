package mapper

import (
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/model"
)

type AnnotationMapper struct{}

func NewAnnotationMapper() *AnnotationMapper {
	return &AnnotationMapper{}
}

func (m *AnnotationMapper) ToEntity(mdl *model.Annotation) *entity.Annotation {
	if mdl == nil {
		return nil
	}

	selections := make([]entity.AnnotationSelection, 0, len(mdl.Selections))
	for _, sel := range mdl.Selections {
		selections = append(selections, entity.AnnotationSelection{
			Id:           sel.Id,
			AnnotationId: sel.AnnotationId,
			MessageIndex: sel.MessageIndex,
			StartOffset:  sel.StartOffset,
			EndOffset:    sel.EndOffset,
			Text:         sel.Text,
			RuleId:       sel.RuleId,
			Type:         sel.Type,
			Comment:      sel.Comment,
		})
	}

	return &entity.Annotation{
		Id:             mdl.Id,
		ConversationId: mdl.ConversationId,
		AnnotatorId:    mdl.AnnotatorId,
		Selections:     selections,
		CreatedAt:      mdl.CreatedAt,
	}
}

func (m *AnnotationMapper) ToModel(e *entity.Annotation) *model.Annotation {
	if e == nil {
		return nil
	}

	selections := make([]model.AnnotationSelection, 0, len(e.Selections))
	for _, sel := range e.Selections {
		selections = append(selections, model.AnnotationSelection{
			Id:           sel.Id,
			AnnotationId: sel.AnnotationId,
			MessageIndex: sel.MessageIndex,
			StartOffset:  sel.StartOffset,
			EndOffset:    sel.EndOffset,
			Text:         sel.Text,
			RuleId:       sel.RuleId,
			Type:         sel.Type,
			Comment:      sel.Comment,
		})
	}

	return &model.Annotation{
		Id:             e.Id,
		ConversationId: e.ConversationId,
		AnnotatorId:    e.AnnotatorId,
		Selections:     selections,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *AnnotationMapper) ToEntities(annotations []*model.Annotation) []*entity.Annotation {
	entities := make([]*entity.Annotation, len(annotations))
	for i, a := range annotations {
		entities[i] = m.ToEntity(a)
	}
	return entities
}

func (m *AnnotationMapper) ToModels(annotations []*entity.Annotation) []*model.Annotation {
	models := make([]*model.Annotation, len(annotations))
	for i, a := range annotations {
		models[i] = m.ToModel(a)
	}
	return models
}
