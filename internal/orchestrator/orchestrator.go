package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/assets"
	"github.com/dnugraha/chatportal/internal/backend"
	"github.com/dnugraha/chatportal/internal/classifier"
	"github.com/dnugraha/chatportal/internal/extractor"
	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/storage"
)

const (
	threadTitleLimit = 30
	imageCommand     = "/image"

	// defaultImagePrompt stands in when the command carries no
	// description of its own.
	defaultImagePrompt = "a simple abstract illustration"
)

// ErrEmptyMessage rejects turns that carry neither text nor files.
var ErrEmptyMessage = errors.New("message is empty")

// ContextProvider supplies dataset snapshots for data queries.
type ContextProvider interface {
	GetData(ctx context.Context, sourceID, apiKey string, forceRefresh bool) (*models.Snapshot, error)
}

// Responder routes an assembled prompt to exactly one backend.
type Responder interface {
	Generate(ctx context.Context, bot *models.Bot, systemPrompt string, history []backend.HistoryMessage, content []backend.ContentPart) (string, error)
}

// AssetResolver maps asset-style requests to files on disk.
type AssetResolver interface {
	Resolve(query string) []assets.Asset
}

// ImagePainter generates and persists an image for a prompt.
type ImagePainter interface {
	Generate(ctx context.Context, prompt string) (*backend.GeneratedImage, error)
}

// UploadedFile is one file the user attached to the current turn.
type UploadedFile struct {
	Path         string
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// Request is one inbound chat turn.
type Request struct {
	Username string
	BotName  string
	ThreadID string // empty for a new conversation
	Message  string
	History  []backend.HistoryMessage
	Files    []UploadedFile
}

// Response is the completed turn: the assistant text plus any assets it
// references, and the thread the exchange was persisted to.
type Response struct {
	ThreadID    string
	Text        string
	Attachments []models.FileAttachment
}

// Orchestrator coordinates one message-processing cycle from inbound
// request to persisted assistant reply.
type Orchestrator struct {
	store         storage.Storage
	extractor     *extractor.Extractor
	dataset       ContextProvider
	assets        AssetResolver
	responder     Responder
	painter       ImagePainter
	datasetSource string // default dataset when a bot pins none
	datasetKey    string // global dataset API key
	now           func() time.Time
	logger        *zap.Logger
}

type Options struct {
	Store         storage.Storage
	Extractor     *extractor.Extractor
	Dataset       ContextProvider
	Assets        AssetResolver
	Responder     Responder
	Painter       ImagePainter
	DatasetSource string
	DatasetKey    string
	Logger        *zap.Logger
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		store:         opts.Store,
		extractor:     opts.Extractor,
		dataset:       opts.Dataset,
		assets:        opts.Assets,
		responder:     opts.Responder,
		painter:       opts.Painter,
		datasetSource: opts.DatasetSource,
		datasetKey:    opts.DatasetKey,
		now:           time.Now,
		logger:        opts.Logger,
	}
}

// ProcessMessage runs the full cycle for one turn: resolve the bot,
// resolve or create the thread, assemble content, pick a local or
// backend answer, and persist both sides of the exchange. Dataset fetch
// failures degrade to answering without context; bot resolution and
// backend failures are fatal.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" && len(req.Files) == 0 {
		return nil, ErrEmptyMessage
	}

	// Bot resolution failures are fatal and keep the storage sentinel so
	// callers can map them to a response code.
	bot, err := o.store.GetBot(ctx, req.BotName)
	if err != nil {
		return nil, err
	}

	thread, err := o.resolveThread(ctx, req, bot, message)
	if err != nil {
		return nil, err
	}

	if prompt, ok := imagePrompt(message); ok {
		return o.processImageCommand(ctx, req, bot, thread, message, prompt)
	}

	userAttachments := make([]models.FileAttachment, 0, len(req.Files))
	content := make([]backend.ContentPart, 0, len(req.Files)+1)
	if message != "" {
		content = append(content, backend.TextPart(message))
	}
	for _, f := range req.Files {
		userAttachments = append(userAttachments, models.FileAttachment{
			Name:   f.OriginalName,
			Path:   f.Path,
			Type:   models.AttachmentType(f.MimeType),
			SizeKB: models.RoundKB(f.SizeBytes),
		})
		part, err := o.filePart(f)
		if err != nil {
			return nil, err
		}
		content = append(content, part)
	}

	// Dashboard requests are served from disk without touching a backend.
	if bot.Dataset.Enabled && o.assets != nil && assets.IsAssetRequest(message) {
		resolved := o.assets.Resolve(message)
		reply, replyAttachments := renderAssetReply(resolved)
		if err := o.persistExchange(ctx, req, bot, thread, message, userAttachments, reply, replyAttachments); err != nil {
			return nil, err
		}
		return &Response{ThreadID: thread.ID, Text: reply, Attachments: replyAttachments}, nil
	}

	contextBlock := ""
	if bot.Dataset.Enabled && o.dataset != nil && classifier.IsDataQuery(message) {
		snapshot, err := o.dataset.GetData(ctx, bot.DatasetSource(o.datasetSource), bot.DatasetKey(o.datasetKey), false)
		if err != nil {
			// Degrade to a plain answer rather than failing the turn.
			o.logger.Warn("dataset unavailable, answering without context",
				zap.String("bot", bot.Name),
				zap.Error(err))
		} else {
			contextBlock = classifier.ReduceForQuery(snapshot, message, o.now()).Text
		}
	}

	systemPrompt := ParsePromptTemplate(bot.SystemPrompt).Render(contextBlock)

	reply, err := o.responder.Generate(ctx, bot, systemPrompt, req.History, content)
	if err != nil {
		return nil, fmt.Errorf("error generating response: %v", err)
	}

	if err := o.persistExchange(ctx, req, bot, thread, message, userAttachments, reply, nil); err != nil {
		return nil, err
	}
	return &Response{ThreadID: thread.ID, Text: reply}, nil
}

// processImageCommand handles the /image shortcut. It never touches the
// dataset pipeline or the chat backends.
func (o *Orchestrator) processImageCommand(ctx context.Context, req Request, bot *models.Bot, thread *models.Thread, message, prompt string) (*Response, error) {
	if o.painter == nil {
		return nil, fmt.Errorf("image generation is not configured")
	}
	if prompt == "" {
		prompt = defaultImagePrompt
	}

	img, err := o.painter.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("error generating image: %v", err)
	}

	reply := fmt.Sprintf("![%s](/generated/%s)\n\nGenerated image for: %s", img.FileName, img.FileName, prompt)
	// The markdown reference carries the asset; attachedFiles stays empty.
	if err := o.persistExchange(ctx, req, bot, thread, message, nil, reply, nil); err != nil {
		return nil, err
	}
	return &Response{ThreadID: thread.ID, Text: reply}, nil
}

// resolveThread loads the requested thread or lazily creates one titled
// from the first message.
func (o *Orchestrator) resolveThread(ctx context.Context, req Request, bot *models.Bot, message string) (*models.Thread, error) {
	if req.ThreadID != "" {
		thread, err := o.store.GetThread(ctx, req.ThreadID)
		if err != nil {
			// Keep the storage sentinel so callers can map a bad
			// thread id to a not-found response.
			return nil, fmt.Errorf("error loading thread %s: %w", req.ThreadID, err)
		}
		if thread.BotName != bot.Name {
			return nil, fmt.Errorf("thread %s belongs to bot %s, not %s", thread.ID, thread.BotName, bot.Name)
		}
		return thread, nil
	}

	now := o.now()
	thread := &models.Thread{
		ID:           uuid.New().String(),
		UserID:       req.Username,
		BotName:      bot.Name,
		Title:        threadTitle(message, bot.Name),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := o.store.CreateThread(ctx, thread); err != nil {
		return nil, fmt.Errorf("error creating thread: %v", err)
	}
	return thread, nil
}

func (o *Orchestrator) persistExchange(ctx context.Context, req Request, bot *models.Bot, thread *models.Thread, message string, userAttachments []models.FileAttachment, reply string, replyAttachments []models.FileAttachment) error {
	now := o.now()
	userMsg := &models.Message{
		ID:          uuid.New().String(),
		ThreadID:    thread.ID,
		UserID:      req.Username,
		BotName:     bot.Name,
		Role:        models.RoleUser,
		Content:     message,
		Attachments: userAttachments,
		CreatedAt:   now,
	}
	if err := o.store.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("error saving user message: %v", err)
	}

	assistantMsg := &models.Message{
		ID:          uuid.New().String(),
		ThreadID:    thread.ID,
		UserID:      req.Username,
		BotName:     bot.Name,
		Role:        models.RoleAssistant,
		Content:     reply,
		Attachments: replyAttachments,
		CreatedAt:   now,
	}
	if err := o.store.AppendMessage(ctx, assistantMsg); err != nil {
		return fmt.Errorf("error saving assistant message: %v", err)
	}

	if err := o.store.TouchThread(ctx, thread.ID); err != nil {
		o.logger.Warn("failed to touch thread", zap.String("thread", thread.ID), zap.Error(err))
	}
	return nil
}

// filePart turns one uploaded file into a content part. Images go inline
// as base64; everything else goes through text extraction, whose result
// is always usable as prompt text.
func (o *Orchestrator) filePart(f UploadedFile) (backend.ContentPart, error) {
	if extractor.DetectKind(f.MimeType, f.OriginalName) == extractor.KindImage {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return backend.ContentPart{}, fmt.Errorf("error reading uploaded image %s: %v", f.OriginalName, err)
		}
		return backend.ImagePart(f.OriginalName, f.MimeType, base64.StdEncoding.EncodeToString(data)), nil
	}

	result := o.extractor.Extract(extractor.File{
		Path:         f.Path,
		MimeType:     f.MimeType,
		OriginalName: f.OriginalName,
	})
	return backend.FilePart(f.OriginalName, result.Text), nil
}

// imagePrompt reports whether the message is an image-generation command
// and returns the prompt after the command word.
func imagePrompt(message string) (string, bool) {
	lower := strings.ToLower(message)
	if lower != imageCommand && !strings.HasPrefix(lower, imageCommand+" ") {
		return "", false
	}
	return strings.TrimSpace(message[len(imageCommand):]), true
}

func threadTitle(message, botName string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "Chat with " + botName
	}
	runes := []rune(title)
	if len(runes) > threadTitleLimit {
		title = string(runes[:threadTitleLimit])
	}
	return title
}

func renderAssetReply(resolved []assets.Asset) (string, []models.FileAttachment) {
	if len(resolved) == 0 {
		return "I could not find any dashboard files matching your request. Try asking for a specific area, or say \"show all dashboards\".", nil
	}

	attachments := make([]models.FileAttachment, 0, len(resolved))
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d dashboard file(s):\n", len(resolved))
	for i, a := range resolved {
		fmt.Fprintf(&b, "%d. %s (%.1f KB, updated %s)\n", i+1, a.Name, models.RoundKB(a.SizeBytes), a.ModTime.Format("2 Jan 2006"))
		attachments = append(attachments, models.FileAttachment{
			Name:   a.Name,
			Path:   a.Path,
			Type:   "image",
			SizeKB: models.RoundKB(a.SizeBytes),
		})
	}
	return strings.TrimRight(b.String(), "\n"), attachments
}
