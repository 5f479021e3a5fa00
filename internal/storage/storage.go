package storage

import (
	"context"
	"errors"

	"github.com/dnugraha/chatportal/internal/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBotNotFound      = errors.New("bot not found")
	ErrThreadNotFound   = errors.New("thread not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	TouchLastLogin(ctx context.Context, username string) error
}

type BotStore interface {
	GetBot(ctx context.Context, name string) (*models.Bot, error)
	SaveBot(ctx context.Context, bot *models.Bot) error
	ListBots(ctx context.Context) ([]*models.Bot, error)
	DeleteBot(ctx context.Context, name string) error
}

type ThreadStore interface {
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	CreateThread(ctx context.Context, thread *models.Thread) error
	// TouchThread bumps the thread's last-activity timestamp.
	TouchThread(ctx context.Context, id string) error
	ListThreads(ctx context.Context, userID string) ([]*models.Thread, error)
	// DeleteThread removes the thread and cascades to its messages.
	DeleteThread(ctx context.Context, id string) error
}

type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, threadID string) ([]*models.Message, error)
}

// SnapshotStore persists one dataset snapshot per source. Saves replace
// the prior snapshot wholesale.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, sourceID string) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
}

type Storage interface {
	UserStore
	BotStore
	ThreadStore
	MessageStore
	SnapshotStore
	Close() error
}
