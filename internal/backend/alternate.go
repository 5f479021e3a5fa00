package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
)

const alternateTimeout = 30 * time.Second

var alternateHTTPClient = &http.Client{Timeout: alternateTimeout}

type alternateRequest struct {
	Message string   `json:"message"`
	Files   []string `json:"files,omitempty"`
}

// Reply field names seen across deployed alternate services, probed in
// order.
var alternateReplyFields = []string{"response", "reply", "message", "answer", "text", "result"}

// generateAlternate posts the flattened prompt to the bot's alternate
// endpoint. Connection, auth, and not-found failures come back as a
// descriptive response string, not an error: the conversation continues
// with that string as the assistant's message.
func generateAlternate(ctx context.Context, cfg *models.AlternateBackend, content []ContentPart, logger *zap.Logger) string {
	payload := alternateRequest{Message: flattenContent(content)}
	for _, part := range content {
		if part.FileName != "" {
			payload.Files = append(payload.Files, part.FileName)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("The assistant service could not process this request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("The assistant service endpoint is misconfigured: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := alternateHTTPClient.Do(req)
	if err != nil {
		logger.Warn("Alternate backend unreachable", zap.String("url", cfg.URL), zap.Error(err))
		return "The assistant service is currently unreachable. Please try again in a moment."
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		logger.Warn("Alternate backend rejected credentials", zap.String("url", cfg.URL))
		return "The assistant service rejected this bot's credentials. Please contact an administrator."
	case http.StatusNotFound:
		return "The assistant service endpoint was not found. Please contact an administrator."
	default:
		logger.Warn("Alternate backend error", zap.String("url", cfg.URL), zap.Int("status", resp.StatusCode))
		return fmt.Sprintf("The assistant service returned an unexpected error (status %d).", resp.StatusCode)
	}

	var fields map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return "The assistant service returned an unreadable response."
	}

	for _, name := range alternateReplyFields {
		if value, ok := fields[name]; ok {
			if text, ok := value.(string); ok && text != "" {
				return text
			}
		}
	}
	return "The assistant service returned an empty response."
}

// flattenContent concatenates all text parts, extracted-file text after
// the user's message.
func flattenContent(content []ContentPart) string {
	var user, files []string
	for _, part := range content {
		if part.Type != "text" {
			continue
		}
		if part.FileName != "" {
			files = append(files, part.Text)
		} else {
			user = append(user, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(append(user, files...), "\n\n"))
}
