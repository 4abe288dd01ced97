package domain

import "time"

// Role is the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation threads the turns of one troubleshooting session
type Conversation struct {
	ID         string    `json:"conversation_id"`
	AccountID  string    `json:"-"`
	DeviceType string    `json:"device_type,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConversationSummary is a conversation annotated with its message count
type ConversationSummary struct {
	Conversation
	MessageCount int `json:"message_count"`
}

// Message is a single turn in a conversation
type Message struct {
	ID             string     `json:"message_id"`
	ConversationID string     `json:"-"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Sources        []Citation `json:"sources"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Citation is the provenance of a passage used to ground an answer
type Citation struct {
	Content        string  `json:"content"`
	SourceFile     string  `json:"source_file"`
	PageNumber     *int    `json:"page_number,omitempty"`
	SectionName    string  `json:"section_name,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ChatRequest is the request to ask a question
type ChatRequest struct {
	Query          string `json:"query" binding:"required,min=1,max=1000"`
	DeviceType     string `json:"device_type,omitempty"`
	Brand          string `json:"brand,omitempty"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the answer to a question
type ChatResponse struct {
	Answer         string     `json:"answer"`
	Sources        []Citation `json:"sources"`
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ConversationHistory is a conversation with all of its messages
type ConversationHistory struct {
	Conversation ConversationSummary `json:"conversation"`
	Messages     []*Message          `json:"messages"`
}
