package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/storage"
)

// Format selects the chat-log export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a request parameter to a Format, defaulting to JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ThreadExport is the JSON document written for one conversation.
type ThreadExport struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	BotName    string            `json:"bot_name"`
	UserID     string            `json:"user_id"`
	CreatedAt  time.Time         `json:"created_at"`
	ExportedAt time.Time         `json:"exported_at"`
	Messages   []*models.Message `json:"messages"`
}

// Exporter writes chat logs out of storage in a chosen format.
type Exporter struct {
	store storage.Storage
	now   func() time.Time
}

func New(store storage.Storage) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// WriteThread streams one thread's full history to w.
func (e *Exporter) WriteThread(ctx context.Context, w io.Writer, threadID string, format Format) error {
	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("error loading thread %s: %v", threadID, err)
	}
	messages, err := e.store.ListMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("error loading messages for thread %s: %v", threadID, err)
	}

	switch format {
	case FormatCSV:
		return writeCSV(w, messages)
	case FormatJSON:
		doc := ThreadExport{
			ID:         thread.ID,
			Title:      thread.Title,
			BotName:    thread.BotName,
			UserID:     thread.UserID,
			CreatedAt:  thread.CreatedAt,
			ExportedAt: e.now(),
			Messages:   messages,
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("error encoding thread export: %v", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

var csvHeader = []string{"timestamp", "role", "bot", "content", "attachments"}

func writeCSV(w io.Writer, messages []*models.Message) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("error writing csv header: %v", err)
	}
	for _, msg := range messages {
		record := []string{
			msg.CreatedAt.Format(time.RFC3339),
			string(msg.Role),
			msg.BotName,
			msg.Content,
			attachmentNames(msg.Attachments),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing csv record: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing csv: %v", err)
	}
	return nil
}

func attachmentNames(attachments []models.FileAttachment) string {
	if len(attachments) == 0 {
		return ""
	}
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	return strings.Join(names, "; ")
}

// Filename builds a download name from the thread title, replacing
// characters that break Content-Disposition or filesystems.
func Filename(title string, format Format) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if sanitized == "" {
		sanitized = "chat"
	}
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, time.Now().Format("20060102_150405"), format)
}
