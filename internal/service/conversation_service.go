// FILE: internal/service/conversation_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"transcript-review-be/internal/constant"
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/pkg/events"
	pktNats "transcript-review-be/pkg/nats"

	"github.com/google/uuid"
)

type IConversationService interface {
	Import(ctx context.Context, userId uuid.UUID, req *dto.ImportConversationRequest) (*dto.ConversationDetailResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ConversationDetailResponse, error)
	List(ctx context.Context, page, limit int, domain, search string) (*dto.ConversationListResponse, error)
	Annotations(ctx context.Context, id uuid.UUID, annotator string) (*dto.ConversationAnnotationsResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type conversationService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pktNats.Publisher,
) IConversationService {
	return &conversationService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
	}
}

func (c *conversationService) Import(ctx context.Context, userId uuid.UUID, req *dto.ImportConversationRequest) (*dto.ConversationDetailResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	messages := make([]entity.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = entity.Message{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	conversation := entity.Conversation{
		Id:        uuid.New(),
		Title:     req.Title,
		Domain:    req.Domain,
		PostUrl:   req.PostUrl,
		Tags:      req.Tags,
		Messages:  messages,
		CreatedAt: time.Now(),
	}

	err := uow.ConversationRepository().Create(ctx, &conversation)
	if err != nil {
		return nil, err
	}

	// Publish Event for Notification System
	if c.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: constant.EventConversationImported,
			Data: map[string]interface{}{
				"title":           conversation.Title, // Template uses {title}
				"domain":          conversation.Domain,
				"conversation_id": conversation.Id,
				"user_id":         userId,
				"entity_type":     "conversation",
				"entity_id":       conversation.Id,
			},
			OccurredAt: time.Now(),
		}
		// We log error but don't fail the request as notification is auxiliary
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish %s event: %v\n", constant.EventConversationImported, err)
		}
	}

	return c.toDetailResponse(&conversation), nil
}

func (c *conversationService) Show(ctx context.Context, id uuid.UUID) (*dto.ConversationDetailResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, &dto.NotFoundError{Resource: "conversation"}
	}

	return c.toDetailResponse(conversation), nil
}

func (c *conversationService) List(ctx context.Context, page, limit int, domain, search string) (*dto.ConversationListResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	var specs []specification.Specification
	if domain != "" {
		specs = append(specs, specification.ByDomain{Domain: domain})
	}
	if search != "" {
		specs = append(specs, specification.ByTitleLike{Query: search})
	}

	total, err := uow.ConversationRepository().Count(ctx, specs...)
	if err != nil {
		return nil, err
	}

	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	)

	conversations, err := uow.ConversationRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ConversationResponse, len(conversations))
	for i, conversation := range conversations {
		items[i] = c.toResponse(conversation)
	}

	return &dto.ConversationListResponse{
		Conversations: items,
		Total:         total,
		Page:          page,
		Limit:         limit,
	}, nil
}

// Annotations lists one conversation's committed annotations straight from
// the store, the same read a session snapshot is built from. An annotator id
// narrows the list to one reviewer's work.
func (c *conversationService) Annotations(ctx context.Context, id uuid.UUID, annotator string) (*dto.ConversationAnnotationsResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, &dto.NotFoundError{Resource: "conversation"}
	}

	specs := []specification.Specification{
		specification.ByConversationID{ConversationID: id},
		specification.OrderBy{Field: "created_at", Desc: false},
	}
	if annotator != "" {
		annotatorId, err := uuid.Parse(annotator)
		if err != nil {
			return nil, &dto.NotFoundError{Resource: "annotator"}
		}
		specs = append(specs, specification.ByAnnotatorID{AnnotatorID: annotatorId})
	}

	annotations, err := uow.AnnotationRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AnnotationResponse, len(annotations))
	for i, a := range annotations {
		selections := make([]dto.CommittedSelectionResponse, len(a.Selections))
		for j, sel := range a.Selections {
			selections[j] = dto.CommittedSelectionResponse{
				MessageIndex: sel.MessageIndex,
				StartOffset:  sel.StartOffset,
				EndOffset:    sel.EndOffset,
				Text:         sel.Text,
				RuleId:       sel.RuleId.String(),
				Type:         sel.Type,
				Comment:      sel.Comment,
			}
		}
		items[i] = dto.AnnotationResponse{
			Id:          a.Id.String(),
			AnnotatorId: a.AnnotatorId.String(),
			CreatedAt:   a.CreatedAt,
			Selections:  selections,
		}
	}

	return &dto.ConversationAnnotationsResponse{
		ConversationId: id.String(),
		Annotations:    items,
		Total:          int64(len(items)),
	}, nil
}

// Delete withdraws a conversation from the review pool. Its annotations are
// hard-deleted in the same transaction: review data derived from a withdrawn
// transcript must not survive it. The conversation row itself is soft-deleted.
func (c *conversationService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if conversation == nil {
		return &dto.NotFoundError{Resource: "conversation"}
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.AnnotationRepository().DeleteAllByConversationId(ctx, id); err != nil {
		return err
	}

	if err := uow.ConversationRepository().Delete(ctx, id); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	if c.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: constant.EventConversationDeleted,
			Data: map[string]interface{}{
				"title":           conversation.Title,
				"conversation_id": conversation.Id,
				"user_id":         userId,
				"entity_type":     "conversation",
				"entity_id":       conversation.Id,
			},
			OccurredAt: time.Now(),
		}
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish %s event: %v\n", constant.EventConversationDeleted, err)
		}
	}

	return nil
}

func (c *conversationService) toResponse(conversation *entity.Conversation) dto.ConversationResponse {
	return dto.ConversationResponse{
		Id:              conversation.Id.String(),
		Title:           conversation.Title,
		Domain:          conversation.Domain,
		PostUrl:         conversation.PostUrl,
		Tags:            conversation.Tags,
		MessageCount:    len(conversation.Messages),
		AnnotationCount: conversation.AnnotationCount,
		ViolationCount:  conversation.ViolationCount,
		ComplianceCount: conversation.ComplianceCount,
		CreatedAt:       conversation.CreatedAt,
		UpdatedAt:       conversation.UpdatedAt,
	}
}

func (c *conversationService) toDetailResponse(conversation *entity.Conversation) *dto.ConversationDetailResponse {
	messages := make([]dto.ConversationMessageResponse, len(conversation.Messages))
	for i, m := range conversation.Messages {
		messages[i] = dto.ConversationMessageResponse{
			Index:   i,
			Role:    m.Role,
			Content: m.Content,
		}
	}

	return &dto.ConversationDetailResponse{
		ConversationResponse: c.toResponse(conversation),
		Messages:             messages,
	}
}
