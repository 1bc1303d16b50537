// FILE: internal/service/review_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transcript-review-be/internal/constant"
	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/pkg/logger"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/pkg/events"
	pktNats "transcript-review-be/pkg/nats"
	"transcript-review-be/pkg/review/batch"
	"transcript-review-be/pkg/review/capture"
	reviewsession "transcript-review-be/pkg/review/session"
	"transcript-review-be/pkg/store"

	"github.com/google/uuid"
)

type IReviewService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionSnapshotResponse, error)
	GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionSnapshotResponse, error)
	RebindSession(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.RebindSessionRequest) (*dto.SessionSnapshotResponse, error)
	CaptureSelection(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CaptureSelectionRequest) (*dto.CaptureSelectionResponse, error)
	RemovePendingSelection(ctx context.Context, userId uuid.UUID, sessionId string, index int) (*dto.SessionSnapshotResponse, error)
	CancelBatch(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionSnapshotResponse, error)
	CommitBatch(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CommitBatchRequest) (*dto.CommitBatchResponse, error)
	DiscardSession(ctx context.Context, userId uuid.UUID, sessionId string) error
}

type reviewService struct {
	uowFactory       unitofwork.RepositoryFactory
	sessionManager   *reviewsession.Manager
	batchManager     *batch.Manager
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewReviewService(
	uowFactory unitofwork.RepositoryFactory,
	sessionManager *reviewsession.Manager,
	batchManager *batch.Manager,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
) IReviewService {
	return &reviewService{
		uowFactory:       uowFactory,
		sessionManager:   sessionManager,
		batchManager:     batchManager,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           sysLogger,
	}
}

func (s *reviewService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionSnapshotResponse, error) {
	conversationId, err := uuid.Parse(req.ConversationId)
	if err != nil {
		return nil, &dto.NotFoundError{Resource: "conversation"}
	}

	session := s.sessionManager.Create(userId)
	if err := s.bind(ctx, session, conversationId); err != nil {
		s.sessionManager.Delete(session.ID)
		return nil, err
	}

	session.Lock()
	snapshot := s.snapshotLocked(session)
	session.Unlock()
	return snapshot, nil
}

func (s *reviewService) GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionSnapshotResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	session.Lock()
	snapshot := s.snapshotLocked(session)
	session.Unlock()

	// Reads count as activity; refresh the session's idle TTL.
	s.sessionManager.Save(session)
	return snapshot, nil
}

// RebindSession points an existing session at another conversation. The
// pending batch does not survive the jump; a running commit keeps going but
// its result is discarded against the new binding.
func (s *reviewService) RebindSession(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.RebindSessionRequest) (*dto.SessionSnapshotResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	conversationId, err := uuid.Parse(req.ConversationId)
	if err != nil {
		return nil, &dto.NotFoundError{Resource: "conversation"}
	}

	if err := s.bind(ctx, session, conversationId); err != nil {
		return nil, err
	}

	session.Lock()
	snapshot := s.snapshotLocked(session)
	session.Unlock()
	return snapshot, nil
}

// CaptureSelection resolves the raw coordinates against the cached
// transcript and, when they address a usable span, appends the copy to the
// pending batch. Coordinates that do not resolve are dropped without error;
// the response reports captured=false and an unchanged batch.
func (s *reviewService) CaptureSelection(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CaptureSelectionRequest) (*dto.CaptureSelectionResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	session.Lock()
	if session.CommitInFlight {
		session.Unlock()
		return nil, &dto.CommitInFlightError{SessionId: sessionId}
	}

	selection, captured := capture.Resolve(session.Transcript, req.MessageIndex, req.StartOffset, req.EndOffset)
	if captured {
		s.batchManager.Add(session, selection)
	}
	snapshot := s.snapshotLocked(session)
	session.Unlock()

	s.sessionManager.Save(session)

	return &dto.CaptureSelectionResponse{
		Captured: captured,
		Session:  *snapshot,
	}, nil
}

// RemovePendingSelection drops one chip from the batch. An index that no
// longer exists is a no-op; the client may race its own removals.
func (s *reviewService) RemovePendingSelection(ctx context.Context, userId uuid.UUID, sessionId string, index int) (*dto.SessionSnapshotResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	session.Lock()
	if session.CommitInFlight {
		session.Unlock()
		return nil, &dto.CommitInFlightError{SessionId: sessionId}
	}
	s.batchManager.Remove(session, index)
	snapshot := s.snapshotLocked(session)
	session.Unlock()

	s.sessionManager.Save(session)
	return snapshot, nil
}

func (s *reviewService) CancelBatch(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionSnapshotResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	session.Lock()
	if session.CommitInFlight {
		session.Unlock()
		return nil, &dto.CommitInFlightError{SessionId: sessionId}
	}
	s.batchManager.Clear(session)
	snapshot := s.snapshotLocked(session)
	session.Unlock()

	s.sessionManager.Save(session)
	return snapshot, nil
}

// CommitBatch turns the pending batch into one stored annotation. The write
// is transactional: all selections land or none do. While it runs the
// session stays usable for reads only; batch mutations are rejected. Commit
// failures are surfaced through the session's error slot with the batch
// retained, not as an HTTP error.
func (s *reviewService) CommitBatch(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CommitBatchRequest) (*dto.CommitBatchResponse, error) {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return nil, err
	}

	ruleId, err := uuid.Parse(req.RuleId)
	if err != nil {
		return nil, &dto.NotFoundError{Resource: "rule"}
	}

	session.Lock()
	if session.CommitInFlight {
		session.Unlock()
		return nil, &dto.CommitInFlightError{SessionId: sessionId}
	}
	if len(session.Pending) == 0 {
		res := &dto.CommitBatchResponse{Committed: false, Session: *s.snapshotLocked(session)}
		session.Unlock()
		return res, nil
	}

	conversationId, err := uuid.Parse(session.ConversationID)
	if err != nil {
		session.Unlock()
		return nil, err
	}

	session.CommitInFlight = true
	generation := session.Generation
	pending := make([]store.PendingSelection, len(session.Pending))
	copy(pending, session.Pending)
	session.Unlock()
	s.sessionManager.Save(session)

	annotation, commitErr := s.persistBatch(ctx, userId, conversationId, ruleId, req, pending)

	// The committed list is read back from the store, never synthesized
	// from what we just wrote.
	var refreshed []*entity.Annotation
	var refetchErr error
	if commitErr == nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		refreshed, refetchErr = uow.AnnotationRepository().FindAll(ctx,
			specification.ByConversationID{ConversationID: conversationId},
			specification.OrderBy{Field: "created_at", Desc: false},
		)
	}

	session.Lock()
	if session.Generation == generation {
		session.CommitInFlight = false
		if commitErr != nil {
			// Batch retained so the reviewer can retry as-is.
			session.LastError = commitErr.Error()
		} else {
			// The write landed; retrying this batch would duplicate it,
			// so it is cleared even if the read-back failed.
			s.batchManager.Clear(session)
			if refetchErr != nil {
				session.LastError = refetchErr.Error()
			} else {
				session.Annotations = toStoreAnnotations(refreshed)
				session.LastError = ""
			}
		}
	}
	snapshot := s.snapshotLocked(session)
	session.Unlock()
	s.sessionManager.Save(session)

	if commitErr != nil {
		s.logger.Error("REVIEW", "Annotation commit failed", map[string]interface{}{
			"session_id":      sessionId,
			"conversation_id": conversationId.String(),
			"error":           commitErr.Error(),
		})
		if s.eventPublisher != nil {
			evt := events.BaseEvent{
				Type: constant.EventAnnotationBatchFailed,
				Data: map[string]interface{}{
					"reason":          commitErr.Error(), // Template uses {reason}
					"conversation_id": conversationId,
					"user_id":         userId,
					"entity_type":     "conversation",
					"entity_id":       conversationId,
				},
				OccurredAt: time.Now(),
			}
			if err := s.eventPublisher.Publish(ctx, evt); err != nil {
				fmt.Printf("[WARN] Failed to publish %s event: %v\n", constant.EventAnnotationBatchFailed, err)
			}
		}
		return &dto.CommitBatchResponse{Committed: false, Session: *snapshot}, nil
	}

	s.logger.Info("REVIEW", "Annotation committed", map[string]interface{}{
		"session_id":      sessionId,
		"conversation_id": conversationId.String(),
		"annotation_id":   annotation.Id.String(),
		"selections":      len(annotation.Selections),
	})
	s.afterCommit(ctx, userId, conversationId, annotation)

	return &dto.CommitBatchResponse{Committed: true, Session: *snapshot}, nil
}

func (s *reviewService) DiscardSession(ctx context.Context, userId uuid.UUID, sessionId string) error {
	session, err := s.sessionManager.Get(userId, sessionId)
	if err != nil {
		return err
	}

	session.Lock()
	if session.CommitInFlight {
		session.Unlock()
		return &dto.CommitInFlightError{SessionId: sessionId}
	}
	session.Unlock()

	s.sessionManager.Delete(sessionId)
	return nil
}

// bind points the session at a conversation, wipes per-binding state and
// kicks off the rule and annotation loads. The loads run detached from the
// request; their results are tagged with the binding's generation and
// dropped if it has moved on by the time they settle.
func (s *reviewService) bind(ctx context.Context, session *store.ReviewSession, conversationId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: conversationId})
	if err != nil {
		return err
	}
	if conversation == nil {
		return &dto.NotFoundError{Resource: "conversation"}
	}

	transcript := make([]store.Message, len(conversation.Messages))
	for i, m := range conversation.Messages {
		transcript[i] = store.Message{Role: m.Role, Content: m.Content}
	}

	session.Lock()
	session.ConversationID = conversation.Id.String()
	session.ConversationDomain = conversation.Domain
	session.Transcript = transcript
	session.Generation++
	generation := session.Generation
	s.batchManager.Clear(session)
	session.Rules = nil
	session.Annotations = nil
	session.Loading = true
	session.LastError = ""
	session.CommitInFlight = false
	session.Unlock()

	s.sessionManager.Save(session)

	go s.loadRules(session, generation, conversation.Domain)
	go s.loadAnnotations(session, generation, conversation.Id)

	return nil
}

func (s *reviewService) loadRules(session *store.ReviewSession, generation uint64, domain string) {
	ctx := context.Background()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rules, err := uow.RuleRepository().FindAll(ctx,
		specification.ByDomain{Domain: domain},
		specification.OrderBy{Field: "name", Desc: false},
	)

	session.Lock()
	defer session.Unlock()

	if session.Generation != generation {
		s.logger.Debug("REVIEW", "Discarding stale rule load", map[string]interface{}{
			"session_id": session.ID,
			"domain":     domain,
		})
		return
	}

	if err != nil {
		session.LastError = err.Error()
		s.logger.Error("REVIEW", "Failed to load rules", map[string]interface{}{
			"session_id": session.ID,
			"domain":     domain,
			"error":      err.Error(),
		})
	} else {
		mapped := make([]store.Rule, len(rules))
		for i, r := range rules {
			mapped[i] = store.Rule{
				ID:          r.Id,
				Domain:      r.Domain,
				Name:        r.Name,
				Description: r.Description,
			}
		}
		session.Rules = mapped
		session.LastError = ""
	}

	s.sessionManager.Save(session)
}

func (s *reviewService) loadAnnotations(session *store.ReviewSession, generation uint64, conversationId uuid.UUID) {
	ctx := context.Background()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	annotations, err := uow.AnnotationRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)

	session.Lock()
	defer session.Unlock()

	if session.Generation != generation {
		s.logger.Debug("REVIEW", "Discarding stale annotation load", map[string]interface{}{
			"session_id":      session.ID,
			"conversation_id": conversationId.String(),
		})
		return
	}

	// The annotation load settles the binding's loading flag either way;
	// the rule load never gates it.
	session.Loading = false

	if err != nil {
		session.LastError = err.Error()
		s.logger.Error("REVIEW", "Failed to load annotations", map[string]interface{}{
			"session_id":      session.ID,
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
	} else {
		session.Annotations = toStoreAnnotations(annotations)
		session.LastError = ""
	}

	s.sessionManager.Save(session)
}

func (s *reviewService) persistBatch(ctx context.Context, userId, conversationId, ruleId uuid.UUID, req *dto.CommitBatchRequest, pending []store.PendingSelection) (*entity.Annotation, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	rule, err := uow.RuleRepository().FindOne(ctx, specification.ByID{ID: ruleId})
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, &dto.NotFoundError{Resource: "rule"}
	}

	annotationId := uuid.New()
	selections := make([]entity.AnnotationSelection, len(pending))
	for i, p := range pending {
		selections[i] = entity.AnnotationSelection{
			Id:           uuid.New(),
			AnnotationId: annotationId,
			MessageIndex: p.MessageIndex,
			StartOffset:  p.StartOffset,
			EndOffset:    p.EndOffset,
			Text:         p.Text,
			RuleId:       ruleId,
			Type:         req.Type,
			Comment:      req.Comment,
		}
	}

	annotation := entity.Annotation{
		Id:             annotationId,
		ConversationId: conversationId,
		AnnotatorId:    userId,
		Selections:     selections,
		CreatedAt:      time.Now(),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.AnnotationRepository().Create(ctx, &annotation); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &annotation, nil
}

func (s *reviewService) afterCommit(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID, annotation *entity.Annotation) {
	payload := dto.RefreshConversationSummaryMessage{
		ConversationId: conversationId.String(),
	}
	payloadJson, _ := json.Marshal(payload)
	if err := s.publisherService.Publish(ctx, payloadJson); err != nil {
		s.logger.Warn("REVIEW", "Failed to enqueue summary refresh", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
	}

	// Publish Event for Notification System
	if s.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: constant.EventAnnotationCreated,
			Data: map[string]interface{}{
				"count":           len(annotation.Selections), // Template uses {count}
				"annotation_id":   annotation.Id,
				"conversation_id": conversationId,
				"user_id":         userId,
				"entity_type":     "conversation",
				"entity_id":       conversationId,
			},
			OccurredAt: time.Now(),
		}
		// We log error but don't fail the request as notification is auxiliary
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			fmt.Printf("[WARN] Failed to publish %s event: %v\n", constant.EventAnnotationCreated, err)
		}
	}
}

func (s *reviewService) snapshotLocked(session *store.ReviewSession) *dto.SessionSnapshotResponse {
	pending := make([]dto.PendingSelectionResponse, len(session.Pending))
	for i, p := range session.Pending {
		pending[i] = dto.PendingSelectionResponse{
			MessageIndex: p.MessageIndex,
			StartOffset:  p.StartOffset,
			EndOffset:    p.EndOffset,
			Text:         p.Text,
		}
	}

	rules := make([]dto.SessionRuleResponse, len(session.Rules))
	for i, r := range session.Rules {
		rules[i] = dto.SessionRuleResponse{
			Id:          r.ID.String(),
			Domain:      r.Domain,
			Name:        r.Name,
			Description: r.Description,
		}
	}

	annotations := make([]dto.AnnotationResponse, len(session.Annotations))
	for i, a := range session.Annotations {
		selections := make([]dto.CommittedSelectionResponse, len(a.Selections))
		for j, sel := range a.Selections {
			selections[j] = dto.CommittedSelectionResponse{
				MessageIndex: sel.MessageIndex,
				StartOffset:  sel.StartOffset,
				EndOffset:    sel.EndOffset,
				Text:         sel.Text,
				RuleId:       sel.RuleID.String(),
				Type:         sel.Type,
				Comment:      sel.Comment,
			}
		}
		annotations[i] = dto.AnnotationResponse{
			Id:          a.ID.String(),
			AnnotatorId: a.AnnotatorID.String(),
			CreatedAt:   a.CreatedAt,
			Selections:  selections,
		}
	}

	return &dto.SessionSnapshotResponse{
		SessionId:      session.ID,
		ConversationId: session.ConversationID,
		State:          session.State,
		Composing:      session.State == store.StateComposing,
		Pending:        pending,
		Rules:          rules,
		Annotations:    annotations,
		Loading:        session.Loading,
		CommitInFlight: session.CommitInFlight,
		LastError:      session.LastError,
	}
}

func toStoreAnnotations(annotations []*entity.Annotation) []store.Annotation {
	out := make([]store.Annotation, len(annotations))
	for i, a := range annotations {
		selections := make([]store.AnnotatedSelection, len(a.Selections))
		for j, sel := range a.Selections {
			selections[j] = store.AnnotatedSelection{
				MessageIndex: sel.MessageIndex,
				StartOffset:  sel.StartOffset,
				EndOffset:    sel.EndOffset,
				Text:         sel.Text,
				RuleID:       sel.RuleId,
				Type:         sel.Type,
				Comment:      sel.Comment,
			}
		}
		out[i] = store.Annotation{
			ID:          a.Id,
			AnnotatorID: a.AnnotatorId,
			CreatedAt:   a.CreatedAt,
			Selections:  selections,
		}
	}
	return out
}
