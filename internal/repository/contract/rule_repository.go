package contract

import (
	"context"

	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *entity.Rule) error
	Update(ctx context.Context, rule *entity.Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Rule, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Rule, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
