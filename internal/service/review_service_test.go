package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"transcript-review-be/internal/dto"
	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/contract"
	"transcript-review-be/internal/repository/memory"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/pkg/review/batch"
	reviewsession "transcript-review-be/pkg/review/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// Fakes. The review service only talks to the store through the unit of work
// contracts, so an in-memory fake of those is enough to drive every path,
// including the failure and slow-commit ones.
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu sync.Mutex

	conversations []*entity.Conversation
	rules         []*entity.Rule
	annotations   []*entity.Annotation

	ruleFindErr       error
	annotationFindErr error
	annotationSaveErr error

	// ruleGates block rule FindAll per domain until the channel is closed,
	// so a test can hold one binding's load open across a rebind.
	ruleGates map[string]chan struct{}
	// saveGate blocks the next annotation Create, keeping a commit in
	// flight for as long as the test needs.
	saveGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{ruleGates: make(map[string]chan struct{})}
}

func (s *fakeStore) addConversation(domain string, contents ...string) *entity.Conversation {
	conv := &entity.Conversation{
		Id:        uuid.New(),
		Title:     "Test conversation",
		Domain:    domain,
		CreatedAt: time.Now(),
	}
	for i, content := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		conv.Messages = append(conv.Messages, entity.Message{Role: role, Content: content})
	}
	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.mu.Unlock()
	return conv
}

func (s *fakeStore) addRule(domain, name string) *entity.Rule {
	rule := &entity.Rule{
		Id:          uuid.New(),
		Domain:      domain,
		Name:        name,
		Description: "test rule: " + name,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.rules = append(s.rules, rule)
	s.mu.Unlock()
	return rule
}

func (s *fakeStore) addAnnotation(a *entity.Annotation) {
	s.mu.Lock()
	s.annotations = append(s.annotations, a)
	s.mu.Unlock()
}

func (s *fakeStore) annotationCount(conversationId uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.annotations {
		if a.ConversationId == conversationId {
			n++
		}
	}
	return n
}

func (s *fakeStore) conversationCounters(conversationId uuid.UUID) (annotations, violations, compliances int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.Id == conversationId {
			return c.AnnotationCount, c.ViolationCount, c.ComplianceCount
		}
	}
	return -1, -1, -1
}

func (s *fakeStore) setRuleFindErr(err error) {
	s.mu.Lock()
	s.ruleFindErr = err
	s.mu.Unlock()
}

func (s *fakeStore) setAnnotationFindErr(err error) {
	s.mu.Lock()
	s.annotationFindErr = err
	s.mu.Unlock()
}

func (s *fakeStore) setAnnotationSaveErr(err error) {
	s.mu.Lock()
	s.annotationSaveErr = err
	s.mu.Unlock()
}

// gateRuleLoads makes rule loads for the domain wait until the returned
// channel is closed.
func (s *fakeStore) gateRuleLoads(domain string) chan struct{} {
	gate := make(chan struct{})
	s.mu.Lock()
	s.ruleGates[domain] = gate
	s.mu.Unlock()
	return gate
}

// gateAnnotationSaves makes annotation Creates wait until the returned
// channel is closed.
func (s *fakeStore) gateAnnotationSaves() chan struct{} {
	gate := make(chan struct{})
	s.mu.Lock()
	s.saveGate = gate
	s.mu.Unlock()
	return gate
}

type fakeFactory struct {
	fs *fakeStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{fs: f.fs}
}

type fakeUow struct {
	fs *fakeStore
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) ConversationRepository() contract.ConversationRepository {
	return &fakeConversationRepo{fs: u.fs}
}

func (u *fakeUow) RuleRepository() contract.RuleRepository {
	return &fakeRuleRepo{fs: u.fs}
}

func (u *fakeUow) AnnotationRepository() contract.AnnotationRepository {
	return &fakeAnnotationRepo{fs: u.fs}
}

type fakeConversationRepo struct {
	fs *fakeStore
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	r.fs.conversations = append(r.fs.conversations, conversation)
	return nil
}

func (r *fakeConversationRepo) Update(ctx context.Context, conversation *entity.Conversation) error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	for i, c := range r.fs.conversations {
		if c.Id == conversation.Id {
			r.fs.conversations[i] = conversation
			return nil
		}
	}
	return nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

// FindOne hands out a copy so callers can mutate and Update without racing
// readers of the stored entry.
func (r *fakeConversationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			for _, c := range r.fs.conversations {
				if c.Id == byID.ID {
					cp := *c
					return &cp, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	out := make([]*entity.Conversation, len(r.fs.conversations))
	copy(out, r.fs.conversations)
	return out, nil
}

func (r *fakeConversationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	return int64(len(r.fs.conversations)), nil
}

type fakeRuleRepo struct {
	fs *fakeStore
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *entity.Rule) error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	r.fs.rules = append(r.fs.rules, rule)
	return nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *entity.Rule) error { return nil }
func (r *fakeRuleRepo) Delete(ctx context.Context, id uuid.UUID) error      { return nil }

func (r *fakeRuleRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Rule, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			for _, rule := range r.fs.rules {
				if rule.Id == byID.ID {
					return rule, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Rule, error) {
	domain := ""
	for _, spec := range specs {
		if byDomain, ok := spec.(specification.ByDomain); ok {
			domain = byDomain.Domain
		}
	}

	r.fs.mu.Lock()
	gate := r.fs.ruleGates[domain]
	r.fs.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	if r.fs.ruleFindErr != nil {
		return nil, r.fs.ruleFindErr
	}
	var out []*entity.Rule
	for _, rule := range r.fs.rules {
		if domain == "" || rule.Domain == domain {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	return int64(len(r.fs.rules)), nil
}

type fakeAnnotationRepo struct {
	fs *fakeStore
}

func (r *fakeAnnotationRepo) Create(ctx context.Context, annotation *entity.Annotation) error {
	r.fs.mu.Lock()
	gate := r.fs.saveGate
	r.fs.mu.Unlock()
	if gate != nil {
		<-gate
	}

	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	if r.fs.annotationSaveErr != nil {
		return r.fs.annotationSaveErr
	}
	r.fs.annotations = append(r.fs.annotations, annotation)
	return nil
}

func (r *fakeAnnotationRepo) DeleteAllByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	var kept []*entity.Annotation
	for _, a := range r.fs.annotations {
		if a.ConversationId != conversationId {
			kept = append(kept, a)
		}
	}
	r.fs.annotations = kept
	return nil
}

func (r *fakeAnnotationRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Annotation, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			for _, a := range r.fs.annotations {
				if a.Id == byID.ID {
					return a, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeAnnotationRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Annotation, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	if r.fs.annotationFindErr != nil {
		return nil, r.fs.annotationFindErr
	}
	var out []*entity.Annotation
	for _, spec := range specs {
		if byConv, ok := spec.(specification.ByConversationID); ok {
			for _, a := range r.fs.annotations {
				if a.ConversationId == byConv.ConversationID {
					out = append(out, a)
				}
			}
			return out, nil
		}
	}
	out = append(out, r.fs.annotations...)
	return out, nil
}

func (r *fakeAnnotationRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	for _, spec := range specs {
		if byConv, ok := spec.(specification.ByConversationID); ok {
			var n int64
			for _, a := range r.fs.annotations {
				if a.ConversationId == byConv.ConversationID {
					n++
				}
			}
			return n, nil
		}
	}
	return int64(len(r.fs.annotations)), nil
}

func (r *fakeAnnotationRepo) CountSelectionsByType(ctx context.Context, conversationId uuid.UUID, selectionType string) (int64, error) {
	r.fs.mu.Lock()
	defer r.fs.mu.Unlock()
	var n int64
	for _, a := range r.fs.annotations {
		if a.ConversationId != conversationId {
			continue
		}
		for _, sel := range a.Selections {
			if sel.Type == selectionType {
				n++
			}
		}
	}
	return n, nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func newReviewServiceForTest(fs *fakeStore) (IReviewService, *recordingPublisher) {
	sessionRepo := memory.NewReviewSessionRepository(time.Minute, time.Minute)
	sessionManager := reviewsession.NewManager(sessionRepo)
	batchManager := batch.NewManager(log.New(io.Discard, "", 0))
	publisher := &recordingPublisher{}
	svc := NewReviewService(&fakeFactory{fs: fs}, sessionManager, batchManager, publisher, nil, nopLogger{})
	return svc, publisher
}

// waitForLoad polls the session until the binding's loads have settled.
func waitForLoad(t *testing.T, svc IReviewService, userId uuid.UUID, sessionId string) *dto.SessionSnapshotResponse {
	t.Helper()
	var snapshot *dto.SessionSnapshotResponse
	assert.Eventually(t, func() bool {
		s, err := svc.GetSession(context.Background(), userId, sessionId)
		if err != nil {
			return false
		}
		snapshot = s
		return !s.Loading
	}, 2*time.Second, 10*time.Millisecond, "session never finished loading")
	return snapshot
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateSessionBindsConversation(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	fs.addRule("support", "No unauthorized refunds")
	fs.addRule("support", "Escalation offer")
	fs.addRule("safety", "Crisis redirect")
	fs.addAnnotation(&entity.Annotation{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		AnnotatorId:    uuid.New(),
		CreatedAt:      time.Now().Add(-time.Hour),
		Selections: []entity.AnnotationSelection{
			{Id: uuid.New(), MessageIndex: 0, StartOffset: 0, EndOffset: 6, Text: "I want", RuleId: uuid.New(), Type: "violation"},
		},
	})

	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	assert.Equal(t, conv.Id.String(), snapshot.ConversationId)
	assert.Equal(t, "IDLE", snapshot.State)
	assert.False(t, snapshot.Composing)
	assert.Empty(t, snapshot.Pending)

	loaded := waitForLoad(t, svc, userId, snapshot.SessionId)
	assert.Len(t, loaded.Rules, 2, "only the conversation's domain rules belong in the session")
	for _, rule := range loaded.Rules {
		assert.Equal(t, "support", rule.Domain)
	}
	assert.Len(t, loaded.Annotations, 1)
	assert.Empty(t, loaded.LastError)
}

func TestCreateSessionUnknownConversation(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newReviewServiceForTest(fs)

	_, err := svc.CreateSession(context.Background(), uuid.New(), &dto.CreateSessionRequest{ConversationId: uuid.New().String()})
	var notFound *dto.NotFoundError
	assert.True(t, errors.As(err, &notFound), "expected NotFoundError, got %v", err)

	_, err = svc.CreateSession(context.Background(), uuid.New(), &dto.CreateSessionRequest{ConversationId: "not-a-uuid"})
	assert.True(t, errors.As(err, &notFound), "expected NotFoundError, got %v", err)
}

func TestCaptureSelection(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	res, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{
		MessageIndex: 1,
		StartOffset:  7,
		EndOffset:    27,
		Text:         "client copy is ignored",
	})
	if err != nil {
		t.Fatalf("CaptureSelection failed: %v", err)
	}
	assert.True(t, res.Captured)
	assert.Equal(t, "COMPOSING", res.Session.State)
	assert.True(t, res.Session.Composing)
	if assert.Len(t, res.Session.Pending, 1) {
		// The captured text comes from the stored transcript, never from
		// whatever the client sent along.
		assert.Equal(t, "issued a full refund", res.Session.Pending[0].Text)
	}

	// Coordinates that do not resolve are dropped without an error.
	res, err = svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{
		MessageIndex: 99,
		StartOffset:  0,
		EndOffset:    5,
	})
	if err != nil {
		t.Fatalf("CaptureSelection failed: %v", err)
	}
	assert.False(t, res.Captured)
	assert.Len(t, res.Session.Pending, 1, "failed capture must not disturb the batch")
	assert.Empty(t, res.Session.LastError)
}

func TestRemovePendingSelection(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 1, StartOffset: 7, EndOffset: 27}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	got, err := svc.RemovePendingSelection(context.Background(), userId, sessionId, 0)
	if err != nil {
		t.Fatalf("RemovePendingSelection failed: %v", err)
	}
	if assert.Len(t, got.Pending, 1) {
		assert.Equal(t, "issued a full refund", got.Pending[0].Text)
	}
	assert.Equal(t, "COMPOSING", got.State)

	// An index that no longer exists is a no-op, not an error.
	got, err = svc.RemovePendingSelection(context.Background(), userId, sessionId, 5)
	if err != nil {
		t.Fatalf("RemovePendingSelection failed: %v", err)
	}
	assert.Len(t, got.Pending, 1)

	got, err = svc.RemovePendingSelection(context.Background(), userId, sessionId, 0)
	if err != nil {
		t.Fatalf("RemovePendingSelection failed: %v", err)
	}
	assert.Empty(t, got.Pending)
	assert.Equal(t, "IDLE", got.State, "removing the last selection hides the entry surface")
}

func TestCancelBatch(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	for i := 0; i < 2; i++ {
		if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6}); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
	}

	got, err := svc.CancelBatch(context.Background(), userId, sessionId)
	if err != nil {
		t.Fatalf("CancelBatch failed: %v", err)
	}
	assert.Empty(t, got.Pending)
	assert.Equal(t, "IDLE", got.State)
}

func TestCommitBatch(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, publisher := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 1, StartOffset: 7, EndOffset: 27}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	res, err := svc.CommitBatch(context.Background(), userId, sessionId, &dto.CommitBatchRequest{
		RuleId:  rule.Id.String(),
		Type:    "violation",
		Comment: "refund issued without authorization",
	})
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	assert.True(t, res.Committed)
	assert.Empty(t, res.Session.Pending, "a committed batch is cleared")
	assert.Equal(t, "IDLE", res.Session.State)
	assert.False(t, res.Session.CommitInFlight)
	assert.Empty(t, res.Session.LastError)

	// The committed list comes from the read-back, with the verdict stamped
	// on every selection.
	if assert.Len(t, res.Session.Annotations, 1) {
		committed := res.Session.Annotations[0]
		assert.Equal(t, userId.String(), committed.AnnotatorId)
		if assert.Len(t, committed.Selections, 2) {
			for _, sel := range committed.Selections {
				assert.Equal(t, rule.Id.String(), sel.RuleId)
				assert.Equal(t, "violation", sel.Type)
				assert.Equal(t, "refund issued without authorization", sel.Comment)
			}
			assert.Equal(t, "issued a full refund", committed.Selections[0].Text)
		}
	}

	assert.Equal(t, 1, fs.annotationCount(conv.Id))
	assert.Equal(t, 1, publisher.count(), "commit should enqueue one summary refresh")
}

func TestCommitBatchEmpty(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support", "I want my money back right now.")
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, publisher := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	waitForLoad(t, svc, userId, snapshot.SessionId)

	res, err := svc.CommitBatch(context.Background(), userId, snapshot.SessionId, &dto.CommitBatchRequest{
		RuleId: rule.Id.String(),
		Type:   "compliance",
	})
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	assert.False(t, res.Committed)
	assert.Equal(t, 0, fs.annotationCount(conv.Id))
	assert.Equal(t, 0, publisher.count())
}

func TestCommitBatchUnknownRule(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	res, err := svc.CommitBatch(context.Background(), userId, sessionId, &dto.CommitBatchRequest{
		RuleId: uuid.New().String(),
		Type:   "violation",
	})
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	assert.False(t, res.Committed)
	assert.Contains(t, res.Session.LastError, "rule not found")
	assert.Len(t, res.Session.Pending, 1, "a failed commit keeps the batch for retry")
	assert.False(t, res.Session.CommitInFlight)
	assert.Equal(t, 0, fs.annotationCount(conv.Id))
}

func TestCommitBatchStoreFailureThenRetry(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 1, StartOffset: 7, EndOffset: 27}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	fs.setAnnotationSaveErr(errors.New("insert failed: connection reset"))

	req := &dto.CommitBatchRequest{RuleId: rule.Id.String(), Type: "violation"}
	res, err := svc.CommitBatch(context.Background(), userId, sessionId, req)
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	assert.False(t, res.Committed)
	assert.Contains(t, res.Session.LastError, "connection reset")
	assert.Len(t, res.Session.Pending, 1)
	assert.Equal(t, 0, fs.annotationCount(conv.Id))

	// The retained batch commits as-is once the store recovers.
	fs.setAnnotationSaveErr(nil)
	res, err = svc.CommitBatch(context.Background(), userId, sessionId, req)
	if err != nil {
		t.Fatalf("CommitBatch retry failed: %v", err)
	}
	assert.True(t, res.Committed)
	assert.Empty(t, res.Session.LastError, "a successful commit clears the error slot")
	assert.Empty(t, res.Session.Pending)
	assert.Equal(t, 1, fs.annotationCount(conv.Id))
}

func TestCommitBatchReadBackFailure(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()

	snapshot, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(context.Background(), userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	// Fails only the refetch; the write itself lands.
	fs.setAnnotationFindErr(errors.New("read replica down"))

	res, err := svc.CommitBatch(context.Background(), userId, sessionId, &dto.CommitBatchRequest{
		RuleId: rule.Id.String(),
		Type:   "violation",
	})
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	assert.True(t, res.Committed)
	assert.Equal(t, 1, fs.annotationCount(conv.Id))
	// Retrying the batch would duplicate the write, so it is gone even
	// though the refreshed list never arrived.
	assert.Empty(t, res.Session.Pending)
	assert.Contains(t, res.Session.LastError, "read replica down")
}

func TestCommitInFlightRejectsBatchMutations(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(ctx, userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 1, StartOffset: 7, EndOffset: 27}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	gate := fs.gateAnnotationSaves()
	done := make(chan *dto.CommitBatchResponse, 1)
	go func() {
		res, err := svc.CommitBatch(ctx, userId, sessionId, &dto.CommitBatchRequest{RuleId: rule.Id.String(), Type: "violation"})
		if err != nil {
			t.Errorf("CommitBatch failed: %v", err)
		}
		done <- res
	}()

	assert.Eventually(t, func() bool {
		s, err := svc.GetSession(ctx, userId, sessionId)
		return err == nil && s.CommitInFlight
	}, 2*time.Second, 5*time.Millisecond, "commit never reached the store")

	var inFlight *dto.CommitInFlightError

	_, err = svc.CaptureSelection(ctx, userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6})
	assert.True(t, errors.As(err, &inFlight), "capture during commit: got %v", err)

	_, err = svc.RemovePendingSelection(ctx, userId, sessionId, 0)
	assert.True(t, errors.As(err, &inFlight), "remove during commit: got %v", err)

	_, err = svc.CancelBatch(ctx, userId, sessionId)
	assert.True(t, errors.As(err, &inFlight), "cancel during commit: got %v", err)

	err = svc.DiscardSession(ctx, userId, sessionId)
	assert.True(t, errors.As(err, &inFlight), "discard during commit: got %v", err)

	_, err = svc.CommitBatch(ctx, userId, sessionId, &dto.CommitBatchRequest{RuleId: rule.Id.String(), Type: "violation"})
	assert.True(t, errors.As(err, &inFlight), "second commit during commit: got %v", err)

	// Reads stay open while the commit runs.
	_, err = svc.GetSession(ctx, userId, sessionId)
	assert.NoError(t, err)

	close(gate)
	select {
	case res := <-done:
		assert.True(t, res.Committed)
		assert.False(t, res.Session.CommitInFlight)
	case <-time.After(2 * time.Second):
		t.Fatal("commit did not finish after the store unblocked")
	}

	// The session is usable again.
	capRes, err := svc.CaptureSelection(ctx, userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 0, StartOffset: 0, EndOffset: 6})
	if err != nil {
		t.Fatalf("capture after commit failed: %v", err)
	}
	assert.True(t, capRes.Captured)
}

func TestRebindDuringCommitDiscardsResult(t *testing.T) {
	fs := newFakeStore()
	convA := fs.addConversation("support",
		"I want my money back right now.",
		"I have issued a full refund, no questions asked.",
	)
	convB := fs.addConversation("safety", "I feel hopeless lately.")
	rule := fs.addRule("support", "No unauthorized refunds")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: convA.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	if _, err := svc.CaptureSelection(ctx, userId, sessionId, &dto.CaptureSelectionRequest{MessageIndex: 1, StartOffset: 7, EndOffset: 27}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	gate := fs.gateAnnotationSaves()
	done := make(chan *dto.CommitBatchResponse, 1)
	go func() {
		res, err := svc.CommitBatch(ctx, userId, sessionId, &dto.CommitBatchRequest{RuleId: rule.Id.String(), Type: "violation"})
		if err != nil {
			t.Errorf("CommitBatch failed: %v", err)
		}
		done <- res
	}()

	assert.Eventually(t, func() bool {
		s, err := svc.GetSession(ctx, userId, sessionId)
		return err == nil && s.CommitInFlight
	}, 2*time.Second, 5*time.Millisecond, "commit never reached the store")

	// Rebinding is allowed while a commit runs; it supersedes the binding
	// the commit belongs to.
	rebound, err := svc.RebindSession(ctx, userId, sessionId, &dto.RebindSessionRequest{ConversationId: convB.Id.String()})
	if err != nil {
		t.Fatalf("RebindSession failed: %v", err)
	}
	assert.Equal(t, convB.Id.String(), rebound.ConversationId)
	assert.False(t, rebound.CommitInFlight)
	assert.Empty(t, rebound.Pending)

	close(gate)
	select {
	case res := <-done:
		// The write landed in the store even though the session moved on.
		assert.True(t, res.Committed)
	case <-time.After(2 * time.Second):
		t.Fatal("commit did not finish after the store unblocked")
	}
	assert.Equal(t, 1, fs.annotationCount(convA.Id))

	// The finished commit must not leak its result into the new binding.
	loaded := waitForLoad(t, svc, userId, sessionId)
	assert.Equal(t, convB.Id.String(), loaded.ConversationId)
	assert.Empty(t, loaded.Annotations, "old binding's annotations must not surface after rebind")
	assert.Empty(t, loaded.Pending)
	assert.Empty(t, loaded.LastError)
	assert.False(t, loaded.CommitInFlight)
}

func TestRebindDiscardsStaleLoads(t *testing.T) {
	fs := newFakeStore()
	convA := fs.addConversation("support", "I want my money back right now.")
	convB := fs.addConversation("safety", "I feel hopeless lately.")
	fs.addRule("support", "No unauthorized refunds")
	fs.addRule("safety", "Crisis redirect")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	// Hold the first binding's rule load open across the rebind.
	gate := fs.gateRuleLoads("support")

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: convA.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId

	rebound, err := svc.RebindSession(ctx, userId, sessionId, &dto.RebindSessionRequest{ConversationId: convB.Id.String()})
	if err != nil {
		t.Fatalf("RebindSession failed: %v", err)
	}
	assert.Equal(t, convB.Id.String(), rebound.ConversationId)

	loaded := waitForLoad(t, svc, userId, sessionId)
	if assert.Len(t, loaded.Rules, 1) {
		assert.Equal(t, "safety", loaded.Rules[0].Domain)
	}

	// Release the superseded load; its result must never surface.
	close(gate)
	assert.Never(t, func() bool {
		s, err := svc.GetSession(ctx, userId, sessionId)
		if err != nil {
			return true
		}
		for _, rule := range s.Rules {
			if rule.Domain != "safety" {
				return true
			}
		}
		return len(s.Rules) != 1
	}, 300*time.Millisecond, 20*time.Millisecond, "stale rule load leaked into the new binding")
}

func TestRuleLoadFailureSetsErrorSlot(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support", "I want my money back right now.")
	fs.addRule("support", "No unauthorized refunds")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	// Hold the rule load until the annotation load has settled, so the
	// failure is the last writer to the error slot.
	gate := fs.gateRuleLoads("support")

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId
	waitForLoad(t, svc, userId, sessionId)

	fs.setRuleFindErr(errors.New("rule catalog unavailable"))
	close(gate)

	assert.Eventually(t, func() bool {
		s, err := svc.GetSession(ctx, userId, sessionId)
		return err == nil && s.LastError != ""
	}, 2*time.Second, 10*time.Millisecond, "rule load failure never surfaced")

	s, err := svc.GetSession(ctx, userId, sessionId)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	assert.Contains(t, s.LastError, "rule catalog unavailable")
	assert.Empty(t, s.Rules)
	assert.False(t, s.Loading, "a failed rule load must not wedge the loading flag")
}

func TestAnnotationLoadFailureRecoversOnRebind(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support", "I want my money back right now.")
	fs.addAnnotation(&entity.Annotation{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		AnnotatorId:    uuid.New(),
		CreatedAt:      time.Now(),
	})
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	fs.setAnnotationFindErr(errors.New("annotation store timeout"))

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessionId := snapshot.SessionId

	loaded := waitForLoad(t, svc, userId, sessionId)
	assert.Contains(t, loaded.LastError, "annotation store timeout")
	assert.Empty(t, loaded.Annotations)

	// Rebinding to the same conversation is the retry path.
	fs.setAnnotationFindErr(nil)
	if _, err := svc.RebindSession(ctx, userId, sessionId, &dto.RebindSessionRequest{ConversationId: conv.Id.String()}); err != nil {
		t.Fatalf("RebindSession failed: %v", err)
	}

	loaded = waitForLoad(t, svc, userId, sessionId)
	assert.Empty(t, loaded.LastError, "a successful load clears the error slot")
	assert.Len(t, loaded.Annotations, 1)
}

func TestDiscardSession(t *testing.T) {
	fs := newFakeStore()
	conv := fs.addConversation("support", "I want my money back right now.")
	svc, _ := newReviewServiceForTest(fs)
	userId := uuid.New()
	ctx := context.Background()

	snapshot, err := svc.CreateSession(ctx, userId, &dto.CreateSessionRequest{ConversationId: conv.Id.String()})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := svc.DiscardSession(ctx, userId, snapshot.SessionId); err != nil {
		t.Fatalf("DiscardSession failed: %v", err)
	}

	_, err = svc.GetSession(ctx, userId, snapshot.SessionId)
	var notFound *dto.NotFoundError
	assert.True(t, errors.As(err, &notFound), "expected NotFoundError, got %v", err)
}
