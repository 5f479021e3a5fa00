package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dnugraha/chatportal/internal/models"
)

// MemoryStorage keeps everything in process memory. Used for tests and
// single-node trials without a database.
type MemoryStorage struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	bots      map[string]*models.Bot
	threads   map[string]*models.Thread
	messages  map[string][]*models.Message // keyed by thread id
	snapshots map[string]*models.Snapshot  // keyed by source id
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:     make(map[string]*models.User),
		bots:      make(map[string]*models.Bot),
		threads:   make(map[string]*models.Thread),
		messages:  make(map[string][]*models.Message),
		snapshots: make(map[string]*models.Snapshot),
	}
}

// User methods

func (s *MemoryStorage) GetUser(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, exists := s.users[username]; exists {
		copied := *user
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStorage) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.Username] = &copied
	return nil
}

func (s *MemoryStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryStorage) TouchLastLogin(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[username]; exists {
		user.LastLoginAt = time.Now()
	}
	return nil
}

// Bot methods

func (s *MemoryStorage) GetBot(ctx context.Context, name string) (*models.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if bot, exists := s.bots[name]; exists {
		copied := *bot
		return &copied, nil
	}
	return nil, ErrBotNotFound
}

func (s *MemoryStorage) SaveBot(ctx context.Context, bot *models.Bot) error {
	if err := bot.Backend.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *bot
	s.bots[bot.Name] = &copied
	return nil
}

func (s *MemoryStorage) ListBots(ctx context.Context) ([]*models.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bots := make([]*models.Bot, 0, len(s.bots))
	for _, bot := range s.bots {
		copied := *bot
		bots = append(bots, &copied)
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].Name < bots[j].Name })
	return bots, nil
}

func (s *MemoryStorage) DeleteBot(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bots[name]; !exists {
		return ErrBotNotFound
	}
	delete(s.bots, name)
	return nil
}

// Thread methods

func (s *MemoryStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if thread, exists := s.threads[id]; exists {
		copied := *thread
		return &copied, nil
	}
	return nil, ErrThreadNotFound
}

func (s *MemoryStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *thread
	s.threads[thread.ID] = &copied
	return nil
}

func (s *MemoryStorage) TouchThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[id]
	if !exists {
		return ErrThreadNotFound
	}
	thread.LastActiveAt = time.Now()
	return nil
}

func (s *MemoryStorage) ListThreads(ctx context.Context, userID string) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var threads []*models.Thread
	for _, thread := range s.threads {
		if thread.UserID == userID {
			copied := *thread
			threads = append(threads, &copied)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].LastActiveAt.After(threads[j].LastActiveAt)
	})
	return threads, nil
}

func (s *MemoryStorage) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.threads[id]; !exists {
		return ErrThreadNotFound
	}
	delete(s.threads, id)
	// Cascade: no orphaned messages.
	delete(s.messages, id)
	return nil
}

// Message methods

func (s *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *msg
	s.messages[msg.ThreadID] = append(s.messages[msg.ThreadID], &copied)
	return nil
}

func (s *MemoryStorage) ListMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[threadID]
	messages := make([]*models.Message, 0, len(stored))
	for _, msg := range stored {
		copied := *msg
		messages = append(messages, &copied)
	}
	return messages, nil
}

// Snapshot methods

func (s *MemoryStorage) GetSnapshot(ctx context.Context, sourceID string) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if snapshot, exists := s.snapshots[sourceID]; exists {
		return snapshot, nil
	}
	return nil, ErrSnapshotNotFound
}

func (s *MemoryStorage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.SourceID] = snapshot
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
