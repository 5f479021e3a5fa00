package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LDAP     LDAPConfig     `mapstructure:"ldap"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// RedisConfig enables the Redis snapshot store when Addr is set;
// otherwise snapshots persist in the primary database.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LDAPConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	URL          string   `mapstructure:"url"`
	BindDN       string   `mapstructure:"bind_dn"`
	BindPassword string   `mapstructure:"bind_password"`
	BaseDN       string   `mapstructure:"base_dn"`
	UserFilter   string   `mapstructure:"user_filter"`
	AdminGroups  []string `mapstructure:"admin_groups"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	ImageModel string `mapstructure:"image_model"`
}

// DatasetConfig holds the portal-wide dataset service credentials.
// Individual bots may override the source they read from.
type DatasetConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	DefaultSource string `mapstructure:"default_source"`
}

// AssetsConfig maps keyword fragments to pre-rendered dashboard folders.
type AssetsConfig struct {
	Root    string        `mapstructure:"root"`
	Folders []FolderEntry `mapstructure:"folders"`
}

type FolderEntry struct {
	Keywords []string `mapstructure:"keywords"`
	Folder   string   `mapstructure:"folder"`
}

type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	GeneratedDir string `mapstructure:"generated_dir"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.db", 0)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.image_model", "dall-e-3")
	v.SetDefault("dataset.base_url", "https://stackby.com/api/betav1")
	v.SetDefault("assets.root", "./assets")
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.generated_dir", "./generated")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if apiKey := v.GetString("STACKBY_API_KEY"); apiKey != "" {
		config.Dataset.APIKey = apiKey
	}

	if password := v.GetString("LDAP_BIND_PASSWORD"); password != "" {
		config.LDAP.BindPassword = password
	}

	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}

	return &config, nil
}
