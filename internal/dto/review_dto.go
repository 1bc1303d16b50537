package dto

import "time"

type CreateSessionRequest struct {
	ConversationId string `json:"conversation_id" validate:"required,uuid"`
}

type RebindSessionRequest struct {
	ConversationId string `json:"conversation_id" validate:"required,uuid"`
}

// CaptureSelectionRequest carries the raw selection coordinates from the
// client. Offsets that do not resolve to a usable span are dropped without
// an error, so none of the coordinate fields carry validation tags.
type CaptureSelectionRequest struct {
	MessageIndex int    `json:"message_index"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
}

type CommitBatchRequest struct {
	RuleId  string `json:"rule_id" validate:"required,uuid"`
	Type    string `json:"type" validate:"required,oneof=violation compliance"`
	Comment string `json:"comment"`
}

type PendingSelectionResponse struct {
	MessageIndex int    `json:"message_index"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
}

type SessionRuleResponse struct {
	Id          string `json:"id"`
	Domain      string `json:"domain"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CommittedSelectionResponse struct {
	MessageIndex int    `json:"message_index"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
	RuleId       string `json:"rule_id"`
	Type         string `json:"type"`
	Comment      string `json:"comment,omitempty"`
}

type AnnotationResponse struct {
	Id          string                       `json:"id"`
	AnnotatorId string                       `json:"annotator_id"`
	CreatedAt   time.Time                    `json:"created_at"`
	Selections  []CommittedSelectionResponse `json:"selections"`
}

// SessionSnapshotResponse is the full view a client needs to render the
// review panel: the pending batch, the rules for the bound conversation's
// domain, and the committed annotations.
type SessionSnapshotResponse struct {
	SessionId      string                      `json:"session_id"`
	ConversationId string                      `json:"conversation_id"`
	State          string                      `json:"state"`
	Composing      bool                        `json:"composing"`
	Pending        []PendingSelectionResponse `json:"pending"`
	Rules          []SessionRuleResponse      `json:"rules"`
	Annotations    []AnnotationResponse       `json:"annotations"`
	Loading        bool                       `json:"loading"`
	CommitInFlight bool                       `json:"commit_in_flight"`
	LastError      string                     `json:"last_error,omitempty"`
}

type CaptureSelectionResponse struct {
	Captured bool                    `json:"captured"`
	Session  SessionSnapshotResponse `json:"session"`
}

type CommitBatchResponse struct {
	Committed bool                    `json:"committed"`
	Session   SessionSnapshotResponse `json:"session"`
}

// NotFoundError is returned by services when a requested resource does not
// exist or is not visible to the caller.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// CommitInFlightError rejects batch mutations while a commit is still being
// persisted for the same session.
type CommitInFlightError struct {
	SessionId string
}

func (e *CommitInFlightError) Error() string {
	return "commit already in progress for session " + e.SessionId
}
