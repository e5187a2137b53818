package domain

import "time"

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationStatusOpen     ConversationStatus = "open"
	ConversationStatusPending  ConversationStatus = "pending"
	ConversationStatusResolved ConversationStatus = "resolved"
)

// MessageType distinguishes customer, agent and system messages.
type MessageType string

const (
	MessageTypeIncoming MessageType = "incoming"
	MessageTypeOutgoing MessageType = "outgoing"
	MessageTypeActivity MessageType = "activity"
)

// Attachment is a file reference carried by a message.
type Attachment struct {
	FileType string `json:"file_type" bson:"file_type"`
	DataURL  string `json:"data_url" bson:"data_url"`
}

// Message is a single entry in a conversation. Message content is
// never altered by redaction.
type Message struct {
	ID          int64        `json:"id" bson:"id"`
	Content     string       `json:"content" bson:"content"`
	MessageType MessageType  `json:"message_type" bson:"message_type"`
	Private     bool         `json:"private" bson:"private"`
	SenderName  string       `json:"sender_name,omitempty" bson:"sender_name,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" bson:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
}

// Conversation is a historical support interaction belonging to a
// contact. Redaction of a contact leaves messages untouched; only
// AdditionalAttributes gains a redaction marker plus one appended
// activity message.
type Conversation struct {
	ID                   int64                  `json:"id" bson:"id"`
	AccountID            int64                  `json:"account_id" bson:"account_id"`
	ContactID            int64                  `json:"contact_id" bson:"contact_id"`
	Status               ConversationStatus     `json:"status" bson:"status"`
	Channel              string                 `json:"channel" bson:"channel"`
	AssigneeName         string                 `json:"assignee_name,omitempty" bson:"assignee_name,omitempty"`
	Labels               []string               `json:"labels,omitempty" bson:"labels,omitempty"`
	AdditionalAttributes map[string]interface{} `json:"additional_attributes,omitempty" bson:"additional_attributes,omitempty"`
	Messages             []Message              `json:"messages,omitempty" bson:"messages,omitempty"`
	CreatedAt            time.Time              `json:"created_at" bson:"created_at"`
	ResolvedAt           *time.Time             `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	UpdatedAt            time.Time              `json:"updated_at" bson:"updated_at"`
}
