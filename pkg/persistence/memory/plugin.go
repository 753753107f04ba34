package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
)

// Plugin implements PluginPersistence for in-memory storage
// This is primarily for testing and should not be used in production
type Plugin struct {
	mu    sync.RWMutex
	flows map[string]*domain.FlowRecord
	blobs map[string][]byte
	files persistence.FileStorage
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	p := &Plugin{
		flows: make(map[string]*domain.FlowRecord),
		blobs: make(map[string][]byte),
	}
	p.files = config.FileStorage
	if p.files == nil {
		p.files = &fileStorage{plugin: p}
	}
	return p, nil
}

// FlowStorage returns the flow storage implementation
func (p *Plugin) FlowStorage() persistence.FlowStorage {
	return &flowStorage{plugin: p}
}

// FileStorage returns the blob storage implementation
func (p *Plugin) FileStorage() persistence.FileStorage {
	return p.files
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

// copyFlow deep-copies through JSON so callers never share nested maps
// with the store.
func copyFlow(rec *domain.FlowRecord) (*domain.FlowRecord, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out domain.FlowRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// flowStorage implements persistence.FlowStorage for in-memory storage
type flowStorage struct {
	plugin *Plugin
}

func (s *flowStorage) Insert(ctx context.Context, rec *domain.FlowRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("flow id is required")
	}
	recCopy, err := copyFlow(rec)
	if err != nil {
		return fmt.Errorf("copy flow: %w", err)
	}

	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	if _, exists := s.plugin.flows[rec.ID]; exists {
		return persistence.ErrAlreadyExists
	}
	s.plugin.flows[rec.ID] = recCopy
	return nil
}

func (s *flowStorage) Get(ctx context.Context, id string) (*domain.FlowRecord, error) {
	s.plugin.mu.RLock()
	rec, exists := s.plugin.flows[id]
	s.plugin.mu.RUnlock()

	if !exists {
		return nil, persistence.ErrNotFound
	}
	return copyFlow(rec)
}

func (s *flowStorage) Delete(ctx context.Context, id string) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	if _, exists := s.plugin.flows[id]; !exists {
		return persistence.ErrNotFound
	}
	delete(s.plugin.flows, id)
	return nil
}

func (s *flowStorage) List(ctx context.Context) ([]*domain.FlowRecord, error) {
	return s.find(func(*domain.FlowRecord) bool { return true })
}

func (s *flowStorage) FindByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error) {
	return s.find(func(r *domain.FlowRecord) bool { return r.Status == status })
}

func (s *flowStorage) find(keep func(*domain.FlowRecord) bool) ([]*domain.FlowRecord, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	var result []*domain.FlowRecord
	for _, rec := range s.plugin.flows {
		if !keep(rec) {
			continue
		}
		recCopy, err := copyFlow(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, recCopy)
	}
	sortFlows(result)
	return result, nil
}

func (s *flowStorage) CountByStatus(ctx context.Context) (map[string]int64, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	result := make(map[string]int64)
	for _, rec := range s.plugin.flows {
		result[rec.Status]++
	}
	return result, nil
}

func sortFlows(recs []*domain.FlowRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

// fileStorage implements persistence.FileStorage for in-memory storage
type fileStorage struct {
	plugin *Plugin
}

func (s *fileStorage) Put(ctx context.Context, name string, data []byte) (string, error) {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	id := uuid.NewString()
	s.plugin.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (s *fileStorage) Get(ctx context.Context, id string) ([]byte, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	data, exists := s.plugin.blobs[id]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *fileStorage) Delete(ctx context.Context, id string) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	if _, exists := s.plugin.blobs[id]; !exists {
		return persistence.ErrNotFound
	}
	delete(s.plugin.blobs, id)
	return nil
}
