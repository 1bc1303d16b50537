package unitofwork

import (
	"context"

	"transcript-review-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	RuleRepository() contract.RuleRepository
	AnnotationRepository() contract.AnnotationRepository
}
