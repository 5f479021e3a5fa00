package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/assets"
	"github.com/dnugraha/chatportal/internal/auth"
	"github.com/dnugraha/chatportal/internal/backend"
	"github.com/dnugraha/chatportal/internal/dataset"
	"github.com/dnugraha/chatportal/internal/export"
	"github.com/dnugraha/chatportal/internal/extractor"
	"github.com/dnugraha/chatportal/internal/orchestrator"
	"github.com/dnugraha/chatportal/internal/server"
	"github.com/dnugraha/chatportal/internal/storage"
	"github.com/dnugraha/chatportal/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Snapshots go to Redis when configured, otherwise to the primary
	// database alongside everything else.
	var snapshots storage.SnapshotStore = store
	if cfg.Redis.Addr != "" {
		logger.Info("Using Redis snapshot store", zap.String("addr", cfg.Redis.Addr))
		redisStore, err := storage.NewRedisSnapshotStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, dataset.SnapshotTTL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		snapshots = redisStore
	}

	for _, dir := range []string{cfg.Uploads.Dir, cfg.Uploads.GeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Authentication: directory first when enabled, local accounts as
	// fallback.
	local := auth.NewLocalAuthenticator(store, logger)
	var authenticator server.Authenticator = auth.NewChain(logger, local)
	if cfg.LDAP.Enabled {
		directory := auth.NewLDAPAuthenticator(auth.LDAPConfig{
			URL:          cfg.LDAP.URL,
			BindDN:       cfg.LDAP.BindDN,
			BindPassword: cfg.LDAP.BindPassword,
			BaseDN:       cfg.LDAP.BaseDN,
			UserFilter:   cfg.LDAP.UserFilter,
			AdminGroups:  cfg.LDAP.AdminGroups,
		}, logger)
		authenticator = auth.NewChain(logger, directory, local)
	}

	// Dataset pipeline
	datasetClient := dataset.NewClient(cfg.Dataset.BaseURL, cfg.Dataset.APIKey, logger)
	datasetCache := dataset.NewCache(datasetClient, snapshots, logger)

	// Dashboard assets
	folders := make([]assets.FolderEntry, 0, len(cfg.Assets.Folders))
	for _, f := range cfg.Assets.Folders {
		folders = append(folders, assets.FolderEntry{Keywords: f.Keywords, Folder: f.Folder})
	}
	resolver := assets.NewResolver(cfg.Assets.Root, folders, logger)

	// Response backends
	router := backend.NewRouter(backend.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger), logger)
	painter := backend.NewImageGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.ImageModel, cfg.Uploads.GeneratedDir, logger)

	orch := orchestrator.New(orchestrator.Options{
		Store:         store,
		Extractor:     extractor.New(logger),
		Dataset:       datasetCache,
		Assets:        resolver,
		Responder:     router,
		Painter:       painter,
		DatasetSource: cfg.Dataset.DefaultSource,
		DatasetKey:    cfg.Dataset.APIKey,
		Logger:        logger,
	})

	srv := server.New(store, authenticator, orch, export.New(store), cfg.Uploads.Dir, cfg.Uploads.GeneratedDir, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting chat portal", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
