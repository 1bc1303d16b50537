// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"transcript-review-be/internal/constant"
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage recomputes the denormalized annotation counters of one
// conversation from the annotations table. Counters are always rebuilt from
// scratch, so a job that raced with another commit still converges.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.RefreshConversationSummaryMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	conversationId, err := uuid.Parse(payload.ConversationId)
	if err != nil {
		log.Printf("[ERROR] Invalid conversation id %q: %v", payload.ConversationId, err)
		msg.Ack()
		return
	}

	log.Printf("[INFO] Refreshing annotation summary for conversation %s", conversationId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		log.Printf("[ERROR] Failed to get conversation %s: %v", conversationId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if conversation == nil {
		log.Printf("[ERROR] Conversation not found: %s", conversationId)
		msg.Ack() // Deleted meanwhile? Ack.
		return
	}

	annotationCount, err := uow.AnnotationRepository().Count(ctx, specification.ByConversationID{ConversationID: conversationId})
	if err != nil {
		log.Printf("[ERROR] Failed to count annotations for %s: %v", conversationId, err)
		msg.Nack()
		return
	}

	violationCount, err := uow.AnnotationRepository().CountSelectionsByType(ctx, conversationId, constant.AnnotationTypeViolation)
	if err != nil {
		log.Printf("[ERROR] Failed to count violation selections for %s: %v", conversationId, err)
		msg.Nack()
		return
	}

	complianceCount, err := uow.AnnotationRepository().CountSelectionsByType(ctx, conversationId, constant.AnnotationTypeCompliance)
	if err != nil {
		log.Printf("[ERROR] Failed to count compliance selections for %s: %v", conversationId, err)
		msg.Nack()
		return
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	now := time.Now()
	conversation.AnnotationCount = int(annotationCount)
	conversation.ViolationCount = int(violationCount)
	conversation.ComplianceCount = int(complianceCount)
	conversation.UpdatedAt = &now

	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		log.Printf("[ERROR] Failed to update conversation summary: %v", err)
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	log.Printf("[SUCCESS] Summary refreshed for conversation %s: %d annotations (%d violations, %d compliant)", conversationId, annotationCount, violationCount, complianceCount)
	msg.Ack()
}
