package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisPlugin(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()

	raw := []byte(fmt.Sprintf(`{"addr":%q}`, mr.Addr()))
	p, err := persistence.NewPersistence(persistence.ProviderConfig{Type: "redis", Config: raw}, persistence.PluginConfig{})
	if err != nil {
		t.Fatalf("NewPersistence(redis): %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if err := p.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	rec := &domain.FlowRecord{
		ID:         "f1",
		NodeRecord: domain.NodeRecord{NodeID: 1, NodeClass: "Flow", Status: domain.StatusCompleted, Workdir: "/runs/f1"},
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.FlowStorage().Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := p.FlowStorage().Get(ctx, "f1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	id, err := p.FileStorage().Put(ctx, "run.abo", []byte("abinit output"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := p.FileStorage().Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.FileStorage().Get(ctx, id); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
}

func TestRedisPluginBadConfig(t *testing.T) {
	if _, err := NewPlugin(persistence.PluginConfig{Config: []byte("{")}); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
