package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/auth"
	"github.com/dnugraha/chatportal/internal/export"
	"github.com/dnugraha/chatportal/internal/orchestrator"
	"github.com/dnugraha/chatportal/internal/storage"
)

const (
	sessionCookie   = "portal_session"
	sessionTTL      = 12 * time.Hour
	maxUploadBytes  = 32 << 20 // multipart memory limit
	historyTurnsMax = 20
)

// MessageProcessor runs one chat turn end to end.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Authenticator verifies credentials and returns a normalized profile.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Profile, error)
}

type session struct {
	username  string
	isAdmin   bool
	expiresAt time.Time
}

// Server is the portal's HTTP surface: JSON API plus static serving of
// generated assets.
type Server struct {
	store         storage.Storage
	authenticator Authenticator
	processor     MessageProcessor
	exporter      *export.Exporter
	generatedDir  string
	uploadsDir    string
	logger        *zap.Logger

	mu       sync.Mutex
	sessions map[string]session
}

func New(store storage.Storage, authenticator Authenticator, processor MessageProcessor, exporter *export.Exporter, uploadsDir, generatedDir string, logger *zap.Logger) *Server {
	return &Server{
		store:         store,
		authenticator: authenticator,
		processor:     processor,
		exporter:      exporter,
		uploadsDir:    uploadsDir,
		generatedDir:  generatedDir,
		logger:        logger,
		sessions:      make(map[string]session),
	}
}

// Routes builds the portal mux. Everything under /api except login
// requires a valid session.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	mux.Handle("GET /api/bots", s.requireSession(s.handleListBots))
	mux.Handle("GET /api/threads", s.requireSession(s.handleListThreads))
	mux.Handle("GET /api/threads/{id}/messages", s.requireSession(s.handleListMessages))
	mux.Handle("GET /api/threads/{id}/export", s.requireSession(s.handleExportThread))
	mux.Handle("DELETE /api/threads/{id}", s.requireSession(s.handleDeleteThread))
	mux.Handle("POST /api/chat", s.requireSession(s.handleChat))

	mux.Handle("GET /generated/", http.StripPrefix("/generated/", http.FileServer(http.Dir(s.generatedDir))))

	return mux
}

func (s *Server) newSession(username string, isAdmin bool) string {
	token := uuid.New().String()
	s.mu.Lock()
	s.sessions[token] = session{username: username, isAdmin: isAdmin, expiresAt: time.Now().Add(sessionTTL)}
	s.mu.Unlock()
	return token
}

func (s *Server) lookupSession(token string) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return session{}, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return session{}, false
	}
	return sess, true
}

func (s *Server) dropSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session)

func (s *Server) requireSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		sess, ok := s.lookupSession(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next(w, r, sess)
	})
}
