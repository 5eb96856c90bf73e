package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/api"
	"github.com/Checker-Finance/chat-client/internal/credstore"
	"github.com/Checker-Finance/chat-client/internal/httpclient"
	"github.com/Checker-Finance/chat-client/pkg/model"
)

type noRefresh struct{}

func (noRefresh) RefreshToken(context.Context) (string, error) { return "", httpclient.ErrUnauthorized }

func newTestService(t *testing.T, mux *http.ServeMux) (*Service, credstore.Store) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := credstore.NewMemoryStore(time.Hour)
	require.NoError(t, store.SetToken(context.Background(), "T1"))

	exec := httpclient.New(zap.NewNop(), nil, srv.Client(), "chat-test")
	client := api.NewClient(srv.URL, exec, store, noRefresh{}, zap.NewNop())
	return NewService(client, store, zap.NewNop()), store
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestConversations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		writeJSON(t, w, []model.Conversation{{ID: 1, Title: "first"}, {ID: 2, Title: "second"}})
	})
	mux.HandleFunc("GET /conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.PathValue("id"))
		_, _ = w.Write([]byte(`{"id":7,"title":"t","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:02:00.123456",` +
			`"messages":[{"id":1,"role":"user","content":"hi","created_at":"2024-05-01T10:01:00"},{"id":2,"role":"assistant","content":"hello","created_at":"2024-05-01T10:02:00.123456"}],` +
			`"assistant":{"id":3,"user_id":1,"name":"bot","model":"llama3","created_at":"2024-04-30T08:00:00"}}`))
	})
	mux.HandleFunc("POST /conversation", func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateConversationRequest
		decodeBody(t, r, &req)
		assert.Equal(t, model.CreateConversationRequest{AssistantID: 3, Title: "new"}, req)
		writeJSON(t, w, model.Conversation{ID: 9, AssistantID: 3, Title: "new"})
	})
	mux.HandleFunc("DELETE /conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.StatusResponse{Status: "success"})
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	convs, err := svc.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	details, err := svc.GetConversation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, details.ID)
	require.Len(t, details.Messages, 2)
	assert.Equal(t, model.RoleAssistant, details.Messages[1].Role)
	require.NotNil(t, details.Assistant)
	assert.Equal(t, "llama3", details.Assistant.Model)
	assert.Equal(t, 30, details.Assistant.CreatedAt.Day())
	assert.Equal(t, 1, details.Messages[0].CreatedAt.Minute())

	created, err := svc.CreateConversation(ctx, model.CreateConversationRequest{AssistantID: 3, Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)

	require.NoError(t, svc.DeleteConversation(ctx, 9))
}

func TestGetConversation_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	svc, _ := newTestService(t, mux)

	_, err := svc.GetConversation(context.Background(), 1)
	assert.Equal(t, http.StatusNotFound, httpclient.StatusOf(err))
}

func TestChatAndGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		decodeBody(t, r, &req)
		assert.Equal(t, 4, req.ConversationID)
		assert.Equal(t, "ping", req.Message)
		writeJSON(t, w, model.ChatResponse{Response: "pong", Status: "success"})
	})
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		var req model.GenerateRequest
		decodeBody(t, r, &req)
		assert.Equal(t, "llama3", req.Model)
		writeJSON(t, w, model.ChatResponse{Response: "generated", Status: "success"})
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	reply, err := svc.Chat(ctx, model.ChatRequest{ConversationID: 4, Model: "llama3", Message: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	out, err := svc.Generate(ctx, model.GenerateRequest{Model: "llama3", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
}

func TestAssistants(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistants", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []model.Assistant{{ID: 1, Name: "bot", Model: "llama3"}})
	})
	mux.HandleFunc("POST /assistant", func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateAssistantRequest
		decodeBody(t, r, &req)
		writeJSON(t, w, model.Assistant{ID: 2, Name: req.Name, Model: req.Model})
	})
	mux.HandleFunc("PUT /assistant/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.PathValue("id"))
		var req model.UpdateAssistantRequest
		decodeBody(t, r, &req)
		writeJSON(t, w, model.Assistant{ID: 2, Name: req.Name, Model: req.Model})
	})
	mux.HandleFunc("DELETE /assistant/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	list, err := svc.ListAssistants(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	a, err := svc.CreateAssistant(ctx, model.CreateAssistantRequest{Name: "helper", Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "helper", a.Name)

	a, err = svc.UpdateAssistant(ctx, 2, model.UpdateAssistantRequest{Name: "renamed", Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", a.Name)

	err = svc.DeleteAssistant(ctx, 2)
	assert.Equal(t, http.StatusForbidden, httpclient.StatusOf(err))
}

func TestUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","message":"User fetched successfully","data":{"id":1,"name":"alice"}}`))
	})
	mux.HandleFunc("GET /auth/public/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"name":"alice"},{"name":"bob"}]`))
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	me, err := svc.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Name)

	users, err := svc.ListPublicUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.User{{Name: "alice"}, {Name: "bob"}}, users)
}

func TestDecodeEnveloped(t *testing.T) {
	users, err := decodeEnveloped[[]model.User](json.RawMessage(`{"status":"success","message":"ok","data":[{"id":4,"name":"carol"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []model.User{{ID: 4, Name: "carol"}}, users)

	// a plain object that happens to have a status field but no data is not an envelope
	status, err := decodeEnveloped[model.StatusResponse](json.RawMessage(`{"status":"success"}`))
	require.NoError(t, err)
	assert.Equal(t, "success", status.Status)

	_, err = decodeEnveloped[model.User](json.RawMessage(`{"status":"success","data":"nope"}`))
	assert.ErrorContains(t, err, "decode failed")
}

// backendConversations is what the backend actually returns: naive datetimes
// with no UTC offset.
const backendConversations = `[{"id":1,"user_id":1,"assistant_id":2,"title":"first","created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00"},` +
	`{"id":2,"user_id":1,"assistant_id":2,"title":"second","created_at":"2024-05-02T09:30:00.250000","updated_at":"2024-05-02T09:31:00"}]`

const backendAssistant = `{"id":2,"user_id":1,"name":"bot","model":"llama3","created_at":"2024-04-30T08:00:00.000001"}`

func TestBackendTimestampsDecode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(backendConversations))
	})
	mux.HandleFunc("POST /conversation", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":3,"user_id":1,"assistant_id":2,"title":"new","created_at":"2024-05-03T00:00:00","updated_at":"2024-05-03T00:00:00"}`))
	})
	mux.HandleFunc("GET /assistants", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[" + backendAssistant + "]"))
	})
	mux.HandleFunc("POST /assistant", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(backendAssistant))
	})
	mux.HandleFunc("PUT /assistant/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(backendAssistant))
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	convs, err := svc.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 30, 0, 250000000, time.UTC), convs[1].CreatedAt.Time)

	items, err := svc.RefreshSidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SidebarItem{ID: 2, Name: "second", URL: "/chat/2"}, items[1])

	created, err := svc.CreateConversation(ctx, model.CreateConversationRequest{AssistantID: 2, Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, 3, created.CreatedAt.Day())

	list, err := svc.ListAssistants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2024, list[0].CreatedAt.Year())

	_, err = svc.CreateAssistant(ctx, model.CreateAssistantRequest{Name: "bot", Model: "llama3"})
	require.NoError(t, err)
	_, err = svc.UpdateAssistant(ctx, 2, model.UpdateAssistantRequest{Name: "bot", Model: "llama3"})
	require.NoError(t, err)
}

// ─── Sidebar cache ───────────────────────────────────────────────────────────

func TestSidebar_CachedForSession(t *testing.T) {
	var listed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
		writeJSON(t, w, []model.Conversation{{ID: 5, Title: "hello"}})
	})
	svc, store := newTestService(t, mux)
	ctx := context.Background()

	items, err := svc.Sidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.SidebarItem{{ID: 5, Name: "hello", URL: "/chat/5"}}, items)

	again, err := svc.Sidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, again)
	assert.Equal(t, int32(1), listed.Load())

	var cached []model.SidebarItem
	ok, err := store.SessionGet(ctx, credstore.SessionKeyProjects, &cached)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, items, cached)

	_, err = svc.RefreshSidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), listed.Load())
}

func TestSidebar_InvalidatedByCreateAndDelete(t *testing.T) {
	var listed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
		writeJSON(t, w, []model.Conversation{})
	})
	mux.HandleFunc("POST /conversation", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Conversation{ID: 1})
	})
	mux.HandleFunc("DELETE /conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.StatusResponse{Status: "success"})
	})
	svc, _ := newTestService(t, mux)
	ctx := context.Background()

	_, err := svc.Sidebar(ctx)
	require.NoError(t, err)

	_, err = svc.CreateConversation(ctx, model.CreateConversationRequest{AssistantID: 1, Title: "x"})
	require.NoError(t, err)
	_, err = svc.Sidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), listed.Load())

	require.NoError(t, svc.DeleteConversation(ctx, 1))
	_, err = svc.Sidebar(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), listed.Load())
}

func TestSidebar_ErrorNotCached(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	svc, store := newTestService(t, mux)
	ctx := context.Background()

	_, err := svc.Sidebar(ctx)
	assert.Equal(t, http.StatusBadGateway, httpclient.StatusOf(err))

	var cached []model.SidebarItem
	ok, _ := store.SessionGet(ctx, credstore.SessionKeyProjects, &cached)
	assert.False(t, ok)
}
