package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

// User methods

func (s *PostgresStorage) GetUser(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, bot_names, email, display_name, department, last_login_at
		FROM users
		WHERE username = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		pq.Array(&user.BotNames),
		&user.Email,
		&user.DisplayName,
		&user.Department,
		&user.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, is_admin, bot_names, email, display_name, department, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			is_admin = EXCLUDED.is_admin,
			bot_names = EXCLUDED.bot_names,
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			department = EXCLUDED.department`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.IsAdmin,
		pq.Array(user.BotNames),
		user.Email,
		user.DisplayName,
		user.Department,
		user.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("error saving user: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, bot_names, email, display_name, department, last_login_at
		FROM users
		ORDER BY username`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %v", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.IsAdmin,
			pq.Array(&user.BotNames),
			&user.Email,
			&user.DisplayName,
			&user.Department,
			&user.LastLoginAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %v", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (s *PostgresStorage) TouchLastLogin(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1 WHERE username = $2`,
		time.Now(), username)
	if err != nil {
		return fmt.Errorf("error updating last login: %v", err)
	}
	return nil
}

// Bot methods

func (s *PostgresStorage) GetBot(ctx context.Context, name string) (*models.Bot, error) {
	query := `
		SELECT name, description, system_prompt, starter_questions, dataset_config, backend_config
		FROM bots
		WHERE name = $1`

	bot := &models.Bot{}
	var datasetJSON, backendJSON []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&bot.Name,
		&bot.Description,
		&bot.SystemPrompt,
		pq.Array(&bot.StarterQuestions),
		&datasetJSON,
		&backendJSON,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying bot: %v", err)
	}

	if err := json.Unmarshal(datasetJSON, &bot.Dataset); err != nil {
		return nil, fmt.Errorf("error decoding dataset config for bot %s: %v", name, err)
	}
	if err := json.Unmarshal(backendJSON, &bot.Backend); err != nil {
		return nil, fmt.Errorf("error decoding backend config for bot %s: %v", name, err)
	}

	return bot, nil
}

func (s *PostgresStorage) SaveBot(ctx context.Context, bot *models.Bot) error {
	if err := bot.Backend.Validate(); err != nil {
		return fmt.Errorf("invalid backend config for bot %s: %v", bot.Name, err)
	}

	datasetJSON, err := json.Marshal(bot.Dataset)
	if err != nil {
		return fmt.Errorf("error encoding dataset config: %v", err)
	}
	backendJSON, err := json.Marshal(bot.Backend)
	if err != nil {
		return fmt.Errorf("error encoding backend config: %v", err)
	}

	query := `
		INSERT INTO bots (name, description, system_prompt, starter_questions, dataset_config, backend_config)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			system_prompt = EXCLUDED.system_prompt,
			starter_questions = EXCLUDED.starter_questions,
			dataset_config = EXCLUDED.dataset_config,
			backend_config = EXCLUDED.backend_config`

	_, err = s.db.ExecContext(ctx, query,
		bot.Name,
		bot.Description,
		bot.SystemPrompt,
		pq.Array(bot.StarterQuestions),
		datasetJSON,
		backendJSON,
	)
	if err != nil {
		return fmt.Errorf("error saving bot: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListBots(ctx context.Context) ([]*models.Bot, error) {
	query := `
		SELECT name, description, system_prompt, starter_questions, dataset_config, backend_config
		FROM bots
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying bots: %v", err)
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot := &models.Bot{}
		var datasetJSON, backendJSON []byte
		err := rows.Scan(
			&bot.Name,
			&bot.Description,
			&bot.SystemPrompt,
			pq.Array(&bot.StarterQuestions),
			&datasetJSON,
			&backendJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning bot: %v", err)
		}
		if err := json.Unmarshal(datasetJSON, &bot.Dataset); err != nil {
			return nil, fmt.Errorf("error decoding dataset config for bot %s: %v", bot.Name, err)
		}
		if err := json.Unmarshal(backendJSON, &bot.Backend); err != nil {
			return nil, fmt.Errorf("error decoding backend config for bot %s: %v", bot.Name, err)
		}
		bots = append(bots, bot)
	}

	return bots, rows.Err()
}

func (s *PostgresStorage) DeleteBot(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("error deleting bot: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrBotNotFound
	}
	return nil
}

// Thread methods

func (s *PostgresStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	query := `
		SELECT id, user_id, bot_name, title, created_at, last_active_at
		FROM threads
		WHERE id = $1`

	thread := &models.Thread{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&thread.UserID,
		&thread.BotName,
		&thread.Title,
		&thread.CreatedAt,
		&thread.LastActiveAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying thread: %v", err)
	}

	return thread, nil
}

func (s *PostgresStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	query := `
		INSERT INTO threads (id, user_id, bot_name, title, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		thread.ID,
		thread.UserID,
		thread.BotName,
		thread.Title,
		thread.CreatedAt,
		thread.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("error creating thread: %v", err)
	}

	return nil
}

func (s *PostgresStorage) TouchThread(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE threads SET last_active_at = $1 WHERE id = $2`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("error touching thread: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrThreadNotFound
	}
	return nil
}

func (s *PostgresStorage) ListThreads(ctx context.Context, userID string) ([]*models.Thread, error) {
	query := `
		SELECT id, user_id, bot_name, title, created_at, last_active_at
		FROM threads
		WHERE user_id = $1
		ORDER BY last_active_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %v", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		thread := &models.Thread{}
		err := rows.Scan(
			&thread.ID,
			&thread.UserID,
			&thread.BotName,
			&thread.Title,
			&thread.CreatedAt,
			&thread.LastActiveAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread: %v", err)
		}
		threads = append(threads, thread)
	}

	return threads, rows.Err()
}

func (s *PostgresStorage) DeleteThread(ctx context.Context, id string) error {
	// Messages go with it via ON DELETE CASCADE.
	result, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting thread: %v", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrThreadNotFound
	}
	return nil
}

// Message methods

func (s *PostgresStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	attachmentsJSON, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("error encoding attachments: %v", err)
	}

	query := `
		INSERT INTO messages (id, thread_id, user_id, bot_name, role, content, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ThreadID,
		msg.UserID,
		msg.BotName,
		string(msg.Role),
		msg.Content,
		attachmentsJSON,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error appending message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ListMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	query := `
		SELECT id, thread_id, user_id, bot_name, role, content, attachments, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var attachmentsJSON []byte
		err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.UserID,
			&msg.BotName,
			&msg.Role,
			&msg.Content,
			&attachmentsJSON,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		if err := json.Unmarshal(attachmentsJSON, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("error decoding attachments: %v", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Snapshot methods

func (s *PostgresStorage) GetSnapshot(ctx context.Context, sourceID string) (*models.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dataset_snapshots WHERE source_id = $1`,
		sourceID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying snapshot: %v", err)
	}

	snapshot := &models.Snapshot{}
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, fmt.Errorf("error decoding snapshot: %v", err)
	}

	return snapshot, nil
}

func (s *PostgresStorage) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %v", err)
	}

	query := `
		INSERT INTO dataset_snapshots (source_id, fetched_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			payload = EXCLUDED.payload`

	_, err = s.db.ExecContext(ctx, query, snapshot.SourceID, snapshot.FetchedAt, payload)
	if err != nil {
		return fmt.Errorf("error saving snapshot: %v", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
