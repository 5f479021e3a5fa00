package backend

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// responseTemperature is deliberately low: answers grounded in dataset
// context should not get creative.
const responseTemperature = 0.2

// OpenAIGenerator is the default response backend: a chat-completion
// call that preserves multi-part content, including inline images.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, logger *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Generate sends system prompt + history + new content to the chat
// completion API. Failures here are fatal for the turn; there is no
// further fallback after the primary backend.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt string, history []HistoryMessage, content []ContentPart) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, h := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    h.Role,
			Content: h.Content,
		})
	}
	messages = append(messages, newContentMessage(content))

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: responseTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("error generating response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response backend returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// newContentMessage maps the content parts to one user message,
// using multi-part form only when an image is present.
func newContentMessage(content []ContentPart) openai.ChatCompletionMessage {
	hasImage := false
	for _, part := range content {
		if part.Type == "image" {
			hasImage = true
			break
		}
	}

	if !hasImage {
		text := ""
		for _, part := range content {
			if text != "" {
				text += "\n\n"
			}
			text += part.Text
		}
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	}

	parts := make([]openai.ChatMessagePart, 0, len(content))
	for _, part := range content {
		switch part.Type {
		case "image":
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", part.ImageMime, part.ImageB64),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		}
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}
