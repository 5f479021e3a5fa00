package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
)

// ContentPart is one piece of the new outgoing message: either text
// (the user's message or extracted file text) or an inline image.
type ContentPart struct {
	Type      string // "text" or "image"
	Text      string
	FileName  string // set for parts that came from an attached file
	ImageB64  string
	ImageMime string
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func FilePart(name, text string) ContentPart {
	return ContentPart{Type: "text", Text: text, FileName: name}
}

func ImagePart(name, mime, b64 string) ContentPart {
	return ContentPart{Type: "image", FileName: name, ImageMime: mime, ImageB64: b64}
}

// HistoryMessage is one prior turn, passed through unmodified.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a response for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []HistoryMessage, content []ContentPart) (string, error)
}

// Router dispatches to exactly one backend per turn based on the bot's
// tagged backend config. There is no blending and no fallback between
// backends.
type Router struct {
	primary Generator
	logger  *zap.Logger
}

func NewRouter(primary Generator, logger *zap.Logger) *Router {
	return &Router{primary: primary, logger: logger}
}

func (r *Router) Generate(ctx context.Context, bot *models.Bot, systemPrompt string, history []HistoryMessage, content []ContentPart) (string, error) {
	switch bot.Backend.Kind {
	case models.BackendAlternate:
		if bot.Backend.Alternate == nil {
			return "", fmt.Errorf("bot %s selects the alternate backend but has no endpoint configured", bot.Name)
		}
		// System-prompt templating is bypassed for the alternate
		// backend; it only understands flat text.
		return generateAlternate(ctx, bot.Backend.Alternate, content, r.logger), nil
	case models.BackendDefault:
		return r.primary.Generate(ctx, systemPrompt, history, content)
	default:
		return "", fmt.Errorf("bot %s has unknown backend kind %d", bot.Name, int(bot.Backend.Kind))
	}
}
