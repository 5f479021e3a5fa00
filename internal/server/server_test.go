package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/auth"
	"github.com/dnugraha/chatportal/internal/export"
	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/orchestrator"
	"github.com/dnugraha/chatportal/internal/storage"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, username, password string) (*auth.Profile, error) {
	if username == "andi" && password == "secret" {
		return &auth.Profile{Username: "andi", DisplayName: "Andi Wijaya"}, nil
	}
	return nil, auth.ErrInvalidCredentials
}

type stubProcessor struct {
	store storage.Storage
}

func (p *stubProcessor) ProcessMessage(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error) {
	if strings.TrimSpace(req.Message) == "" && len(req.Files) == 0 {
		return nil, orchestrator.ErrEmptyMessage
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "thread-1"
		p.store.CreateThread(ctx, &models.Thread{ID: threadID, UserID: req.Username, BotName: req.BotName, Title: req.Message})
	}
	return &orchestrator.Response{ThreadID: threadID, Text: "echo: " + req.Message}, nil
}

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	srv := New(store, stubAuthenticator{}, &stubProcessor{store: store}, export.New(store), t.TempDir(), t.TempDir(), zap.NewNop())
	return srv, store
}

// seedChatAccess creates the helper bot and assigns it to andi, the
// precondition for a successful chat turn.
func seedChatAccess(t *testing.T, store storage.Storage) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveBot(ctx, &models.Bot{Name: "helper"}); err != nil {
		t.Fatalf("seeding bot: %v", err)
	}
	user := &models.User{ID: "u-andi", Username: "andi", BotNames: []string{"helper"}}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func login(t *testing.T, handler http.Handler) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: "andi", Password: "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	body, _ := json.Marshal(loginRequest{Username: "andi", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginCreatesUserOnFirstVisit(t *testing.T) {
	srv, store := newTestServer(t)
	login(t, srv.Routes())

	user, err := store.GetUser(context.Background(), "andi")
	if err != nil {
		t.Fatalf("user not created at first login: %v", err)
	}
	if user.DisplayName != "Andi Wijaya" {
		t.Fatalf("profile not recorded: %+v", user)
	}
}

func TestChatRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","message":"hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
}

func TestChatRoundTrip(t *testing.T) {
	srv, store := newTestServer(t)
	seedChatAccess(t, store)
	handler := srv.Routes()
	cookie := login(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status %d: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid chat response: %v", err)
	}
	if resp.Text != "echo: hello" || resp.ThreadID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestChatEmptyMessageRejected(t *testing.T) {
	srv, store := newTestServer(t)
	seedChatAccess(t, store)
	handler := srv.Routes()
	cookie := login(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","message":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}
}

func TestChatForeignThreadForbidden(t *testing.T) {
	srv, store := newTestServer(t)
	seedChatAccess(t, store)
	handler := srv.Routes()
	cookie := login(t, handler)

	ctx := context.Background()
	other := &models.Thread{ID: "t-other", UserID: "budi", BotName: "helper", Title: "private", CreatedAt: time.Now()}
	if err := store.CreateThread(ctx, other); err != nil {
		t.Fatalf("seeding thread: %v", err)
	}
	store.AppendMessage(ctx, &models.Message{ID: "m-other", ThreadID: "t-other", UserID: "budi", Role: models.RoleUser, Content: "secret plans"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","thread_id":"t-other","message":"what did we discuss?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 posting into a foreign thread, got %d: %s", rec.Code, rec.Body.String())
	}

	// The foreign thread must be untouched.
	msgs, _ := store.ListMessages(ctx, "t-other")
	if len(msgs) != 1 {
		t.Fatalf("foreign thread gained messages: %d", len(msgs))
	}
}

func TestChatThreadBotMismatch(t *testing.T) {
	srv, store := newTestServer(t)
	seedChatAccess(t, store)
	handler := srv.Routes()
	cookie := login(t, handler)

	ctx := context.Background()
	mine := &models.Thread{ID: "t-mine", UserID: "andi", BotName: "finance", Title: "numbers", CreatedAt: time.Now()}
	if err := store.CreateThread(ctx, mine); err != nil {
		t.Fatalf("seeding thread: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","thread_id":"t-mine","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a thread bound to another bot, got %d", rec.Code)
	}
}

func TestChatUnassignedBotForbidden(t *testing.T) {
	srv, store := newTestServer(t)
	seedChatAccess(t, store)
	handler := srv.Routes()
	cookie := login(t, handler)

	if err := store.SaveBot(context.Background(), &models.Bot{Name: "finance"}); err != nil {
		t.Fatalf("seeding bot: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"finance","message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an unassigned bot, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"ghost","message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown bot, got %d", rec.Code)
	}
}

func TestChatAdminImpliesAllBots(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Routes()

	ctx := context.Background()
	if err := store.SaveBot(ctx, &models.Bot{Name: "helper"}); err != nil {
		t.Fatalf("seeding bot: %v", err)
	}
	// An admin with no explicit assignments may use every bot.
	admin := &models.User{ID: "u-andi", Username: "andi", IsAdmin: true}
	if err := store.SaveUser(ctx, admin); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	cookie := login(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"bot":"helper","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin chat status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestThreadOwnership(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Routes()
	cookie := login(t, handler)

	// A thread owned by someone else must not be readable or deletable.
	other := &models.Thread{ID: "t-other", UserID: "budi", BotName: "helper", Title: "private", CreatedAt: time.Now()}
	if err := store.CreateThread(context.Background(), other); err != nil {
		t.Fatalf("seeding thread: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/threads/t-other/messages", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign thread, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/threads/t-other", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d", rec.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Routes()
	cookie := login(t, handler)

	ctx := context.Background()
	thread := &models.Thread{ID: "t1", UserID: "andi", BotName: "helper", Title: "notes", CreatedAt: time.Now()}
	if err := store.CreateThread(ctx, thread); err != nil {
		t.Fatalf("seeding thread: %v", err)
	}
	store.AppendMessage(ctx, &models.Message{ID: "m1", ThreadID: "t1", UserID: "andi", BotName: "helper", Role: models.RoleUser, Content: "hi", CreatedAt: time.Now()})

	req := httptest.NewRequest(http.MethodGet, "/api/threads/t1/export?format=csv", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "timestamp,role,bot,content") {
		t.Fatalf("csv body missing header:\n%s", rec.Body.String())
	}
}

func TestDeleteThreadCascades(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Routes()
	cookie := login(t, handler)

	ctx := context.Background()
	store.CreateThread(ctx, &models.Thread{ID: "t1", UserID: "andi", BotName: "helper", Title: "notes"})
	store.AppendMessage(ctx, &models.Message{ID: "m1", ThreadID: "t1", UserID: "andi", Role: models.RoleUser, Content: "hi"})

	req := httptest.NewRequest(http.MethodDelete, "/api/threads/t1", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	if _, err := store.GetThread(ctx, "t1"); err == nil {
		t.Fatal("thread still present after delete")
	}
	msgs, _ := store.ListMessages(ctx, "t1")
	if len(msgs) != 0 {
		t.Fatalf("messages survived cascade: %d", len(msgs))
	}
}
