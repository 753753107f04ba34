package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/osvaldoandrade/flowdb/internal/providers"
	"github.com/osvaldoandrade/flowdb/internal/repository"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"go.mongodb.org/mongo-driver/mongo"
)

// Config holds MongoDB-specific configuration
type Config struct {
	URI          string `json:"uri"`
	Database     string `json:"database"`
	Collection   string `json:"collection,omitempty"`
	GridFSBucket string `json:"gridfsBucket,omitempty"`
}

// Plugin implements PluginPersistence on MongoDB: one document per flow
// and artifacts in GridFS.
type Plugin struct {
	client   *mongo.Client
	flowRepo repository.FlowRepository
	files    persistence.FileStorage
}

// NewPlugin connects to MongoDB and creates the flow and file repositories
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mongo: uri and database are required")
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.FlowCollection
	}

	client, err := providers.NewMongoProvider(context.Background(), cfg.URI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database)

	files := config.FileStorage
	if files == nil {
		files, err = repository.NewGridFSRepository(db, cfg.GridFSBucket)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mongo persistence ready", "database", cfg.Database, "collection", cfg.Collection)
	return &Plugin{
		client:   client,
		flowRepo: repository.NewMongoFlowRepository(db.Collection(cfg.Collection)),
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

// Health pings the primary
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx, nil)
}

// Close disconnects the client
func (p *Plugin) Close() error {
	return p.client.Disconnect(context.Background())
}

func init() {
	persistence.RegisterProvider("mongo", NewPlugin)
}
