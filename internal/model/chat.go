package model

import "time"

// HeaderErrorKind carries the ErrorKind of a failed proxy response. The body
// stays the generic placeholder.
const HeaderErrorKind = "X-Error-Kind"

const (
	ReplyErrorFetching = "⚠️ Error fetching LLM response"
	ReplyEmpty         = "⚠️ No reply from model"
)

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages  []WireMessage `json:"messages"`
	Model     string        `json:"model"`
	WebSearch bool          `json:"webSearch"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// Exchange is a diagnostic record of one proxied turn.
type Exchange struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	Model     string    `json:"model"`
	WebSearch bool      `json:"webSearch"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
