package implementation

import (
	"context"
	"errors"

	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/mapper"
	"transcript-review-be/internal/model"
	"transcript-review-be/internal/repository/contract"
	"transcript-review-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RuleMapper
}

func NewRuleRepository(db *gorm.DB) contract.RuleRepository {
	return &RuleRepositoryImpl{
		db:     db,
		mapper: mapper.NewRuleMapper(),
	}
}

func (r *RuleRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RuleRepositoryImpl) Create(ctx context.Context, rule *entity.Rule) error {
	m := r.mapper.ToModel(rule)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*rule = *r.mapper.ToEntity(m)
	return nil
}

func (r *RuleRepositoryImpl) Update(ctx context.Context, rule *entity.Rule) error {
	m := r.mapper.ToModel(rule)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*rule = *r.mapper.ToEntity(m)
	return nil
}

func (r *RuleRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Rule{}, id).Error
}

func (r *RuleRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Rule, error) {
	var m model.Rule
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RuleRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Rule, error) {
	var models []*model.Rule
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RuleRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Rule{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
