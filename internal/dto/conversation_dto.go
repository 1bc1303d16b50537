package dto

import "time"

type ConversationMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

type ImportConversationRequest struct {
	Title    string                       `json:"title" validate:"required,max=255"`
	Domain   string                       `json:"domain" validate:"required,max=100"`
	PostUrl  string                       `json:"post_url" validate:"omitempty,url"`
	Tags     []string                     `json:"tags" validate:"omitempty,dive,max=50"`
	Messages []ConversationMessageRequest `json:"messages" validate:"required,min=1,dive"`
}

type ConversationMessageResponse struct {
	Index   int    `json:"index"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationResponse struct {
	Id              string     `json:"id"`
	Title           string     `json:"title"`
	Domain          string     `json:"domain"`
	PostUrl         string     `json:"post_url,omitempty"`
	Tags            []string   `json:"tags"`
	MessageCount    int        `json:"message_count"`
	AnnotationCount int        `json:"annotation_count"`
	ViolationCount  int        `json:"violation_count"`
	ComplianceCount int        `json:"compliance_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type ConversationDetailResponse struct {
	ConversationResponse
	Messages []ConversationMessageResponse `json:"messages"`
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
}

type ConversationAnnotationsResponse struct {
	ConversationId string               `json:"conversation_id"`
	Annotations    []AnnotationResponse `json:"annotations"`
	Total          int64                `json:"total"`
}

// RefreshConversationSummaryMessage is the payload of the queue job that
// recomputes a conversation's annotation counters after a commit or delete.
type RefreshConversationSummaryMessage struct {
	ConversationId string `json:"conversation_id"`
}
