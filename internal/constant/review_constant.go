package constant

const (
	// Transcript message roles as stored in the conversation payload.
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"

	// Annotation verdicts stamped on every committed selection.
	AnnotationTypeViolation  = "violation"
	AnnotationTypeCompliance = "compliance"
)

// Event codes published to the NATS bus (subject becomes events.<code>).
// Each code must have a matching row in the notification_types registry
// for the notification worker to act on it.
const (
	EventAnnotationCreated     = "ANNOTATION_CREATED"
	EventAnnotationBatchFailed = "ANNOTATION_BATCH_FAILED"
	EventConversationImported  = "CONVERSATION_IMPORTED"
	EventConversationDeleted   = "CONVERSATION_DELETED"
	EventRulesetSeeded         = "RULESET_SEEDED"
)

// Default topic for the in-process job queue that recomputes the
// denormalized annotation counters on a conversation.
const DefaultSummaryRefreshTopic = "REFRESH_CONVERSATION_SUMMARY"
