package models

import (
	"strings"
	"time"
)

// Role identifies which side of a conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User represents a portal account, either sourced from the directory
// service or created locally by an admin.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // empty for directory-backed accounts
	IsAdmin      bool      `json:"is_admin"`
	BotNames     []string  `json:"bot_names"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Department   string    `json:"department,omitempty"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// AllowedBots resolves the user's effective bot list. An admin with no
// explicit assignments is implicitly granted every bot; this is policy,
// not stored state, so it is computed here at read time.
func (u *User) AllowedBots(all []string) []string {
	if u.IsAdmin && len(u.BotNames) == 0 {
		return all
	}
	return u.BotNames
}

// CanUseBot reports whether the user may talk to the named bot.
func (u *User) CanUseBot(name string, all []string) bool {
	for _, b := range u.AllowedBots(all) {
		if b == name {
			return true
		}
	}
	return false
}

// Thread is a conversation lifeline binding one user to one bot.
type Thread struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	BotName      string    `json:"bot_name"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Message is one chat turn. Messages are immutable once created; the
// system only appends new ones.
type Message struct {
	ID          string           `json:"id"`
	ThreadID    string           `json:"thread_id"`
	UserID      string           `json:"user_id"`
	BotName     string           `json:"bot_name"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// FileAttachment is the descriptor embedded in a Message for an uploaded
// or generated artifact. SizeKB is rounded to one decimal.
type FileAttachment struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Type   string  `json:"type"`
	SizeKB float64 `json:"size"`
}

// AttachmentType classifies a mime type into the coarse buckets the
// portal cares about.
func AttachmentType(mimeType string) string {
	switch {
	case mimeType == "":
		return "file"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case mimeType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	default:
		return "document"
	}
}

// RoundKB converts a byte size to kilobytes rounded to one decimal.
func RoundKB(sizeBytes int64) float64 {
	kb := float64(sizeBytes) / 1024.0
	return float64(int64(kb*10+0.5)) / 10.0
}
