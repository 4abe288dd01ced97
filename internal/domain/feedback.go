package domain

import "time"

// Feedback is a rating left on an assistant message. One per message.
type Feedback struct {
	ID        string    `json:"feedback_id"`
	MessageID string    `json:"message_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedbackRequest is the request to rate a message
type FeedbackRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty" binding:"max=2000"`
}

// FeedbackResponse confirms a feedback submission
type FeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
	Message    string `json:"message"`
	Created    bool   `json:"created"`
}
