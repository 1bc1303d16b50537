package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"transcript-review-be/internal/entity"
	"transcript-review-be/internal/repository/specification"
	"transcript-review-be/internal/repository/unitofwork"
	"transcript-review-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ConversationRepository())
	assert.NotNil(t, uow.RuleRepository())
	assert.NotNil(t, uow.AnnotationRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	// Verify Data Access (implies columns exist)
	t.Run("Check Conversation Repository", func(t *testing.T) {
		count, err := uow.ConversationRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Conversation count: %d", count)
	})

	t.Run("Check Rule Repository", func(t *testing.T) {
		count, err := uow.RuleRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Rule count: %d", count)
	})

	t.Run("Check Transactional Annotation Commit", func(t *testing.T) {
		ctx := context.Background()

		// Annotations carry FKs to a conversation and a rule, so both are
		// created first.
		conversationId := uuid.New()
		conversation := &entity.Conversation{
			Id:     conversationId,
			Title:  "Integration test conversation " + uuid.New().String(),
			Domain: "integration",
			Messages: []entity.Message{
				{Role: "user", Content: "Can you waive the fee for me?"},
				{Role: "assistant", Content: "Done, I have waived it permanently."},
			},
			CreatedAt: time.Now(),
		}

		ruleId := uuid.New()
		rule := &entity.Rule{
			Id:          ruleId,
			Domain:      "integration",
			Name:        "Integration rule " + uuid.New().String(),
			Description: "Created by the gorm integration test",
			CreatedAt:   time.Now(),
		}

		err := uow.ConversationRepository().Create(ctx, conversation)
		assert.NoError(t, err)
		err = uow.RuleRepository().Create(ctx, rule)
		assert.NoError(t, err)

		// Transaction Test: the annotation and its selections land together.
		err = uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		annotationId := uuid.New()
		annotation := &entity.Annotation{
			Id:             annotationId,
			ConversationId: conversationId,
			AnnotatorId:    uuid.New(),
			CreatedAt:      time.Now(),
			Selections: []entity.AnnotationSelection{
				{
					Id:           uuid.New(),
					AnnotationId: annotationId,
					MessageIndex: 1,
					StartOffset:  13,
					EndOffset:    34,
					Text:         "waived it permanently",
					RuleId:       ruleId,
					Type:         "violation",
					Comment:      "fee waiver beyond policy",
				},
				{
					Id:           uuid.New(),
					AnnotationId: annotationId,
					MessageIndex: 0,
					StartOffset:  8,
					EndOffset:    21,
					Text:         "waive the fee",
					RuleId:       ruleId,
					Type:         "violation",
				},
			},
		}

		err = uow.AnnotationRepository().Create(ctx, annotation)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		// Read back through a fresh unit of work.
		readUow := uowFactory.NewUnitOfWork(ctx)
		stored, err := readUow.AnnotationRepository().FindAll(ctx,
			specification.ByConversationID{ConversationID: conversationId},
		)
		assert.NoError(t, err)
		if assert.Len(t, stored, 1) {
			assert.Len(t, stored[0].Selections, 2)
		}

		violations, err := readUow.AnnotationRepository().CountSelectionsByType(ctx, conversationId, "violation")
		assert.NoError(t, err)
		assert.Equal(t, int64(2), violations)

		// Cleanup (annotation selections cascade, conversation soft-deletes)
		err = readUow.AnnotationRepository().DeleteAllByConversationId(ctx, conversationId)
		assert.NoError(t, err)
		err = readUow.RuleRepository().Delete(ctx, ruleId)
		assert.NoError(t, err)
		err = readUow.ConversationRepository().Delete(ctx, conversationId)
		assert.NoError(t, err)

		t.Log("Successfully committed Annotation with Selections in Transaction")
	})
}
