package model

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Conversation struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id,omitempty"`
	AssistantID int       `json:"assistant_id,omitempty"`
	Title       string    `json:"title"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

type Message struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

type Assistant struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	CreatedAt Timestamp `json:"created_at"`
}

// ConversationDetails is a conversation with its transcript and assistant.
type ConversationDetails struct {
	Conversation
	Messages  []Message  `json:"messages"`
	Assistant *Assistant `json:"assistant,omitempty"`
}

type CreateConversationRequest struct {
	AssistantID int    `json:"assistant_id"`
	Title       string `json:"title"`
}

type ChatRequest struct {
	ConversationID int    `json:"conversation_id"`
	Model          string `json:"model"`
	Message        string `json:"message"`
}

// ChatResponse answers both /chat and /generate.
type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status,omitempty"`
}

// GenerateRequest is a one-shot prompt outside any conversation.
type GenerateRequest struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type CreateAssistantRequest struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type UpdateAssistantRequest struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// StatusResponse is the generic {"status": "..."} acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// SidebarItem is the derived sidebar entry cached for the session.
type SidebarItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Envelope is the backend's {"status", "message", "data"} wrapper used by the
// /auth routes.
type Envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}
