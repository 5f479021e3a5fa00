package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/auth"
	"github.com/dnugraha/chatportal/internal/backend"
	"github.com/dnugraha/chatportal/internal/export"
	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/orchestrator"
	"github.com/dnugraha/chatportal/internal/storage"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	IsAdmin     bool     `json:"is_admin"`
	Bots        []string `json:"bots"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := s.authenticator.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	user, err := s.upsertUser(r, profile)
	if err != nil {
		s.logger.Error("failed to record login", zap.String("username", profile.Username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token := s.newSession(user.Username, user.IsAdmin)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	allBots, err := s.botNames(r)
	if err != nil {
		s.logger.Warn("failed to list bots at login", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		Bots:        user.AllowedBots(allBots),
	})
}

// upsertUser records a successful authentication: directory-backed users
// get created on first login, and profile fields refresh on every login.
func (s *Server) upsertUser(r *http.Request, profile *auth.Profile) (*models.User, error) {
	ctx := r.Context()
	user, err := s.store.GetUser(ctx, profile.Username)
	if errors.Is(err, storage.ErrUserNotFound) {
		user = &models.User{
			ID:       uuid.New().String(),
			Username: profile.Username,
		}
	} else if err != nil {
		return nil, fmt.Errorf("error loading user %s: %v", profile.Username, err)
	}

	user.Email = profile.Email
	user.DisplayName = profile.DisplayName
	user.Department = profile.Department
	if profile.IsAdmin {
		user.IsAdmin = true
	}
	user.LastLoginAt = time.Now()

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error saving user %s: %v", profile.Username, err)
	}
	return user, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.dropSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

type botSummary struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	StarterQuestions []string `json:"starter_questions,omitempty"`
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request, sess session) {
	bots, err := s.store.ListBots(r.Context())
	if err != nil {
		s.logger.Error("failed to list bots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list bots")
		return
	}

	user, err := s.store.GetUser(r.Context(), sess.username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	all := make([]string, 0, len(bots))
	for _, b := range bots {
		all = append(all, b.Name)
	}

	visible := make([]botSummary, 0, len(bots))
	for _, b := range bots {
		if !user.CanUseBot(b.Name, all) {
			continue
		}
		visible = append(visible, botSummary{
			Name:             b.Name,
			Description:      b.Description,
			StarterQuestions: b.StarterQuestions,
		})
	}
	writeJSON(w, http.StatusOK, visible)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request, sess session) {
	threads, err := s.store.ListThreads(r.Context(), sess.username)
	if err != nil {
		s.logger.Error("failed to list threads", zap.String("user", sess.username), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, sess session) {
	thread, ok := s.ownedThread(w, r, sess)
	if !ok {
		return
	}
	messages, err := s.store.ListMessages(r.Context(), thread.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request, sess session) {
	thread, ok := s.ownedThread(w, r, sess)
	if !ok {
		return
	}
	if err := s.store.DeleteThread(r.Context(), thread.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete thread")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportThread(w http.ResponseWriter, r *http.Request, sess session) {
	thread, ok := s.ownedThread(w, r, sess)
	if !ok {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "application/json"
	if format == export.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(thread.Title, format)))

	if err := s.exporter.WriteThread(r.Context(), w, thread.ID, format); err != nil {
		s.logger.Error("export failed", zap.String("thread", thread.ID), zap.Error(err))
	}
}

type chatResponse struct {
	ThreadID    string                  `json:"thread_id"`
	Text        string                  `json:"text"`
	Attachments []models.FileAttachment `json:"attachments,omitempty"`
}

// handleChat accepts either a JSON body or a multipart form with files
// attached, runs one turn, and returns the assistant reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess session) {
	req, err := s.parseChatRequest(r, sess)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.authorizeBot(w, r, sess, req.BotName) {
		return
	}

	if req.ThreadID != "" {
		thread, ok := s.authorizeThread(w, r, sess, req.ThreadID)
		if !ok {
			return
		}
		if thread.BotName != req.BotName {
			writeError(w, http.StatusBadRequest, "thread belongs to a different bot")
			return
		}
		history, err := s.loadHistory(r, req.ThreadID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		req.History = history
	}

	resp, err := s.processor.ProcessMessage(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "message is empty")
		case errors.Is(err, storage.ErrBotNotFound):
			writeError(w, http.StatusNotFound, "bot not found")
		case errors.Is(err, storage.ErrThreadNotFound):
			writeError(w, http.StatusNotFound, "thread not found")
		default:
			s.logger.Error("chat turn failed", zap.String("user", sess.username), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to process message")
		}
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{ThreadID: resp.ThreadID, Text: resp.Text, Attachments: resp.Attachments})
}

func (s *Server) parseChatRequest(r *http.Request, sess session) (orchestrator.Request, error) {
	req := orchestrator.Request{Username: sess.username}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return req, fmt.Errorf("invalid multipart form: %v", err)
		}
		req.BotName = r.FormValue("bot")
		req.ThreadID = r.FormValue("thread_id")
		req.Message = r.FormValue("message")

		// Uploads are kept on disk; persisted messages reference them
		// by path.
		for _, header := range r.MultipartForm.File["files"] {
			path, err := s.saveUpload(header)
			if err != nil {
				return req, err
			}
			req.Files = append(req.Files, orchestrator.UploadedFile{
				Path:         path,
				OriginalName: header.Filename,
				MimeType:     header.Header.Get("Content-Type"),
				SizeBytes:    header.Size,
			})
		}
		return req, nil
	}

	var body struct {
		Bot      string `json:"bot"`
		ThreadID string `json:"thread_id"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return req, fmt.Errorf("invalid request body")
	}
	req.BotName = body.Bot
	req.ThreadID = body.ThreadID
	req.Message = body.Message
	return req, nil
}

func (s *Server) saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("error opening upload %s: %v", header.Filename, err)
	}
	defer src.Close()

	path := filepath.Join(s.uploadsDir, uuid.New().String()+filepath.Ext(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error storing upload %s: %v", header.Filename, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("error writing upload %s: %v", header.Filename, err)
	}
	return path, nil
}

// loadHistory replays the thread's recent turns as backend history.
func (s *Server) loadHistory(r *http.Request, threadID string) ([]backend.HistoryMessage, error) {
	messages, err := s.store.ListMessages(r.Context(), threadID)
	if err != nil {
		return nil, err
	}
	if len(messages) > historyTurnsMax {
		messages = messages[len(messages)-historyTurnsMax:]
	}
	history := make([]backend.HistoryMessage, 0, len(messages))
	for _, msg := range messages {
		history = append(history, backend.HistoryMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return history, nil
}

func (s *Server) ownedThread(w http.ResponseWriter, r *http.Request, sess session) (*models.Thread, bool) {
	return s.authorizeThread(w, r, sess, r.PathValue("id"))
}

// authorizeThread loads a thread and enforces ownership. Admins may act
// on any thread.
func (s *Server) authorizeThread(w http.ResponseWriter, r *http.Request, sess session, id string) (*models.Thread, bool) {
	thread, err := s.store.GetThread(r.Context(), id)
	if errors.Is(err, storage.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load thread")
		return nil, false
	}
	if thread.UserID != sess.username && !sess.isAdmin {
		writeError(w, http.StatusForbidden, "not your thread")
		return nil, false
	}
	return thread, true
}

// authorizeBot enforces the assigned-bot model: a user may only chat
// with bots on their effective allow-list, admins with every bot.
func (s *Server) authorizeBot(w http.ResponseWriter, r *http.Request, sess session, botName string) bool {
	all, err := s.botNames(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bots")
		return false
	}
	known := false
	for _, name := range all {
		if name == botName {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "bot not found")
		return false
	}

	user, err := s.store.GetUser(r.Context(), sess.username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return false
	}
	if !user.CanUseBot(botName, all) {
		writeError(w, http.StatusForbidden, "bot not assigned to you")
		return false
	}
	return true
}

func (s *Server) botNames(r *http.Request) ([]string, error) {
	bots, err := s.store.ListBots(r.Context())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(bots))
	for _, b := range bots {
		names = append(names, b.Name)
	}
	return names, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to do.
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
