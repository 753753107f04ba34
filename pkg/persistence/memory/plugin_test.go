package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
)

func newFlow(id, status string, created time.Time) *domain.FlowRecord {
	return &domain.FlowRecord{
		ID:         id,
		NodeRecord: domain.NodeRecord{NodeID: 1, NodeClass: "Flow", Status: status, Workdir: "/flows/" + id},
		Works: []domain.WorkRecord{{
			NodeRecord: domain.NodeRecord{NodeID: 2, NodeClass: "Work", Status: status, Workdir: "/flows/" + id + "/w0"},
			Tasks: []domain.TaskRecord{{
				NodeRecord: domain.NodeRecord{NodeID: 3, NodeClass: "ScfTask", Status: status, Workdir: "/flows/" + id + "/w0/t0"},
				Input:      map[string]any{"ecut": 8.0},
				InputStr:   "ecut 8",
				Report:     map[string]any{},
			}},
		}},
		CreatedAt: created,
	}
}

func TestMemoryPlugin(t *testing.T) {
	plugin, err := NewPlugin(persistence.PluginConfig{Config: []byte("{}")})
	if err != nil {
		t.Fatalf("Failed to create plugin: %v", err)
	}
	defer plugin.Close()

	ctx := context.Background()
	if err := plugin.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	flows := plugin.FlowStorage()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []string{domain.StatusCompleted, domain.StatusError, domain.StatusCompleted, domain.StatusRunning} {
		rec := newFlow(string(rune('a'+i)), st, base.Add(time.Duration(i)*time.Minute))
		if err := flows.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := flows.Insert(ctx, newFlow("a", domain.StatusCompleted, base)); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("duplicate Insert error = %v, want ErrAlreadyExists", err)
	}

	got, err := flows.Get(ctx, "b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.StatusError || got.Works[0].Tasks[0].InputStr != "ecut 8" {
		t.Errorf("Get returned %+v", got)
	}

	// Mutating a returned copy must not leak into the store.
	got.Works[0].Tasks[0].Input["ecut"] = 99.0
	again, _ := flows.Get(ctx, "b")
	if again.Works[0].Tasks[0].Input["ecut"] != 8.0 {
		t.Error("store shares nested maps with callers")
	}

	completed, err := flows.FindByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		t.Fatalf("FindByStatus failed: %v", err)
	}
	if len(completed) != 2 || completed[0].ID != "a" || completed[1].ID != "c" {
		t.Errorf("FindByStatus(Completed) = %v", completed)
	}

	all, _ := flows.List(ctx)
	if len(all) != 4 || all[3].ID != "d" {
		t.Errorf("List returned %d flows", len(all))
	}

	counts, _ := flows.CountByStatus(ctx)
	if counts[domain.StatusCompleted] != 2 || counts[domain.StatusError] != 1 || counts[domain.StatusRunning] != 1 {
		t.Errorf("CountByStatus = %v", counts)
	}

	if err := flows.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := flows.Get(ctx, "a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	if err := flows.Delete(ctx, "a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryFileStorage(t *testing.T) {
	plugin, _ := NewPlugin(persistence.PluginConfig{})
	files := plugin.FileStorage()
	ctx := context.Background()

	id, err := files.Put(ctx, "out_GSR.nc", []byte("netcdf"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := files.Get(ctx, id)
	if err != nil || string(data) != "netcdf" {
		t.Fatalf("Get = %q, %v", data, err)
	}
	if err := files.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := files.Get(ctx, id); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
}

func TestRegisteredAsMemory(t *testing.T) {
	p, err := persistence.NewPersistence(persistence.ProviderConfig{Type: "memory"}, persistence.PluginConfig{})
	if err != nil {
		t.Fatalf("NewPersistence(memory): %v", err)
	}
	if p.FlowStorage() == nil || p.FileStorage() == nil {
		t.Fatal("memory plugin returned nil storages")
	}
}
