package redis

import (
	"context"
	"encoding/json"

	"github.com/osvaldoandrade/flowdb/internal/providers"
	"github.com/osvaldoandrade/flowdb/internal/repository"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
}

// Plugin implements PluginPersistence for Redis/KVRocks
type Plugin struct {
	client   *redis.Client
	flowRepo repository.FlowRepository
	files    persistence.FileStorage
}

// NewPlugin creates a new Redis persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}

	client := providers.NewRedisProvider(cfg.Addr, cfg.Password)

	files := config.FileStorage
	if files == nil {
		files = repository.NewBlobRepository(client)
	}

	return &Plugin{
		client:   client,
		flowRepo: repository.NewFlowRepository(client),
		files:    files,
	}, nil
}

// FlowStorage returns the flow storage implementation
func (p *Plugin) FlowStorage() persistence.FlowStorage {
	return p.flowRepo
}

// FileStorage returns the blob storage implementation
func (p *Plugin) FileStorage() persistence.FileStorage {
	return p.files
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}
