package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osvaldoandrade/flowdb/internal/backoff"
	"github.com/osvaldoandrade/flowdb/internal/tracing"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"

	FileStorageDefault = "default"
	FileStorageLocal   = "local"
)

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Storage selects the persistence provider: memory, redis or mongo.
	Storage         string `yaml:"storage"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	MongoURI        string `yaml:"mongoUri"`
	MongoDatabase   string `yaml:"mongoDatabase"`
	MongoCollection string `yaml:"mongoCollection"`
	GridFSBucket    string `yaml:"gridfsBucket"`

	// FileStorage is "default" (the provider's own blob store) or "local".
	FileStorage   string `yaml:"fileStorage"`
	LocalFilesDir string `yaml:"localFilesDir"`

	// Startup health probe against the storage backend.
	StorageRetryPolicy   string `yaml:"storageRetryPolicy"`
	StorageRetryBaseMs   int    `yaml:"storageRetryBaseMs"`
	StorageRetryMaxMs    int    `yaml:"storageRetryMaxMs"`
	StorageRetryAttempts int    `yaml:"storageRetryAttempts"`

	// AdminToken guards DELETE endpoints. Empty disables them.
	AdminToken string `yaml:"adminToken"`

	Tracing tracing.Config `yaml:"tracing"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional loads filePath when it exists; otherwise it starts from
// an empty config. Environment overrides and defaults apply in both cases.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			return LoadConfig(filePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("FLOWDB_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FLOWDB_STORAGE"); v != "" {
		c.Storage = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.MongoURI = v
	}
	if v := os.Getenv("MONGO_DATABASE"); v != "" {
		c.MongoDatabase = v
	}
	if v := os.Getenv("LOCAL_FILES_DIR"); v != "" {
		c.LocalFilesDir = v
		if c.FileStorage == "" {
			c.FileStorage = FileStorageLocal
		}
	}
	if v := os.Getenv("STORAGE_RETRY_POLICY"); v != "" {
		c.StorageRetryPolicy = v
	}
	if v := os.Getenv("STORAGE_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StorageRetryAttempts = n
		}
	}
	if v := os.Getenv("FLOWDB_ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("OTEL_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Tracing.Enabled = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "flowdb"
	}
	if c.MongoCollection == "" {
		c.MongoCollection = domain.FlowCollection
	}
	if c.GridFSBucket == "" {
		c.GridFSBucket = "fs"
	}
	if c.FileStorage == "" {
		c.FileStorage = FileStorageDefault
	}
	if c.LocalFilesDir == "" {
		c.LocalFilesDir = "/tmp/flowdb-files"
	}
	if c.StorageRetryPolicy == "" {
		c.StorageRetryPolicy = backoff.DefaultPolicy.Name
	}
	if c.StorageRetryBaseMs <= 0 {
		c.StorageRetryBaseMs = int(backoff.DefaultPolicy.Base / time.Millisecond)
	}
	if c.StorageRetryMaxMs <= 0 {
		c.StorageRetryMaxMs = int(backoff.DefaultPolicy.Max / time.Millisecond)
	}
	if c.StorageRetryAttempts <= 0 {
		c.StorageRetryAttempts = backoff.DefaultPolicy.Attempts
	}
	if c.AdminToken == "" {
		log.Println("Warning: adminToken not set, delete endpoints are disabled")
	}
}

func (c *Config) Validate() error {
	var errs []string
	switch c.Storage {
	case StorageMemory:
		if !strings.EqualFold(strings.TrimSpace(c.Env), "dev") {
			errs = append(errs, "storage memory is only allowed in dev")
		}
	case StorageRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, "redisAddr is required for storage redis")
		}
	case StorageMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			errs = append(errs, "mongoUri is required for storage mongo")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage %q", c.Storage))
	}
	switch c.FileStorage {
	case FileStorageDefault:
	case FileStorageLocal:
		if strings.TrimSpace(c.LocalFilesDir) == "" {
			errs = append(errs, "localFilesDir is required for fileStorage local")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown fileStorage %q", c.FileStorage))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be in 1..65535")
	}
	if !backoff.Known(c.StorageRetryPolicy) {
		errs = append(errs, fmt.Sprintf("unknown storageRetryPolicy %q", c.StorageRetryPolicy))
	}
	if c.StorageRetryAttempts < 1 {
		errs = append(errs, "storageRetryAttempts must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PersistenceProvider returns the provider block for persistence.NewPersistence.
// RetryPolicy is the backoff used while waiting for the storage backend.
func (c *Config) RetryPolicy() backoff.Policy {
	return backoff.Policy{
		Name:     c.StorageRetryPolicy,
		Base:     time.Duration(c.StorageRetryBaseMs) * time.Millisecond,
		Max:      time.Duration(c.StorageRetryMaxMs) * time.Millisecond,
		Attempts: c.StorageRetryAttempts,
	}
}

func (c *Config) PersistenceProvider() (persistence.ProviderConfig, error) {
	var raw any
	switch c.Storage {
	case StorageRedis:
		raw = map[string]string{"addr": c.RedisAddr, "password": c.RedisPassword}
	case StorageMongo:
		raw = map[string]string{
			"uri":          c.MongoURI,
			"database":     c.MongoDatabase,
			"collection":   c.MongoCollection,
			"gridfsBucket": c.GridFSBucket,
		}
	default:
		raw = map[string]string{}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return persistence.ProviderConfig{}, err
	}
	return persistence.ProviderConfig{Type: c.Storage, Config: b}, nil
}
