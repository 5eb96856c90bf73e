// Package chat wraps the backend's conversation, assistant and user endpoints
// on top of the api client.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/api"
	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/pkg/model"
)

// Service is the typed surface of the chat backend.
type Service struct {
	client *api.Client
	store  credstore.Store
	logger *zap.Logger
}

// NewService builds a Service. store holds the session-scoped sidebar cache.
func NewService(client *api.Client, store credstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, store: store, logger: logger}
}

// ─── Conversations ───────────────────────────────────────────────────────────

func (s *Service) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := s.client.Do(ctx, api.Request{Endpoint: "/conversations"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation returns a conversation with its messages and assistant.
func (s *Service) GetConversation(ctx context.Context, id int) (*model.ConversationDetails, error) {
	var out model.ConversationDetails
	if err := s.client.Do(ctx, api.Request{Endpoint: conversationPath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	var out model.Conversation
	err := s.client.Do(ctx, api.Request{Endpoint: "/conversation", Method: http.MethodPost, Body: req}, &out)
	if err != nil {
		return nil, err
	}
	s.invalidateSidebar(ctx)
	return &out, nil
}

func (s *Service) DeleteConversation(ctx context.Context, id int) error {
	var out model.StatusResponse
	if err := s.client.Do(ctx, api.Request{Endpoint: conversationPath(id), Method: http.MethodDelete}, &out); err != nil {
		return err
	}
	s.invalidateSidebar(ctx)
	return nil
}

// Chat sends a message in a conversation and returns the assistant's reply.
func (s *Service) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	var out model.ChatResponse
	if err := s.client.Do(ctx, api.Request{Endpoint: "/chat", Method: http.MethodPost, Body: req}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Generate runs a one-shot prompt that is not stored in any conversation.
func (s *Service) Generate(ctx context.Context, req model.GenerateRequest) (string, error) {
	var out model.ChatResponse
	if err := s.client.Do(ctx, api.Request{Endpoint: "/generate", Method: http.MethodPost, Body: req}, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// ─── Assistants ──────────────────────────────────────────────────────────────

func (s *Service) ListAssistants(ctx context.Context) ([]model.Assistant, error) {
	var out []model.Assistant
	if err := s.client.Do(ctx, api.Request{Endpoint: "/assistants"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CreateAssistant(ctx context.Context, req model.CreateAssistantRequest) (*model.Assistant, error) {
	var out model.Assistant
	if err := s.client.Do(ctx, api.Request{Endpoint: "/assistant", Method: http.MethodPost, Body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UpdateAssistant(ctx context.Context, id int, req model.UpdateAssistantRequest) (*model.Assistant, error) {
	var out model.Assistant
	if err := s.client.Do(ctx, api.Request{Endpoint: assistantPath(id), Method: http.MethodPut, Body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) DeleteAssistant(ctx context.Context, id int) error {
	var out model.StatusResponse
	return s.client.Do(ctx, api.Request{Endpoint: assistantPath(id), Method: http.MethodDelete}, &out)
}

// ─── Users ───────────────────────────────────────────────────────────────────

// Me returns the logged-in user.
func (s *Service) Me(ctx context.Context) (*model.User, error) {
	var raw json.RawMessage
	if err := s.client.Do(ctx, api.Request{Endpoint: "/auth/users/me"}, &raw); err != nil {
		return nil, err
	}
	out, err := decodeEnveloped[model.User](raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPublicUsers needs no login.
func (s *Service) ListPublicUsers(ctx context.Context) ([]model.User, error) {
	var raw json.RawMessage
	if err := s.client.Public(ctx, api.Request{Endpoint: "/auth/public/users"}, &raw); err != nil {
		return nil, err
	}
	return decodeEnveloped[[]model.User](raw)
}

// decodeEnveloped decodes raw as T, unwrapping the backend's
// {"status", "message", "data"} envelope when the body carries one.
func decodeEnveloped[T any](raw json.RawMessage) (T, error) {
	if gjson.GetBytes(raw, "status").Exists() && gjson.GetBytes(raw, "data").Exists() {
		var env model.Envelope[T]
		if err := json.Unmarshal(raw, &env); err != nil {
			return env.Data, fmt.Errorf("decode failed: %w", err)
		}
		return env.Data, nil
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode failed: %w", err)
	}
	return out, nil
}

func conversationPath(id int) string { return fmt.Sprintf("/conversation/%d", id) }
func assistantPath(id int) string    { return fmt.Sprintf("/assistant/%d", id) }
