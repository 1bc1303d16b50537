package contract

import (
	"context"

	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/specification"

	"github.com/google/uuid"
)

type AnnotationRepository interface {
	// Create persists the annotation together with its selections.
	Create(ctx context.Context, annotation *entity.Annotation) error
	DeleteAllByConversationId(ctx context.Context, conversationId uuid.UUID) error // Hard delete, selections cascade
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Annotation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Annotation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	CountSelectionsByType(ctx context.Context, conversationId uuid.UUID, selectionType string) (int64, error)
}
