package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/osvaldoandrade/flowdb/pkg/config"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
	"github.com/osvaldoandrade/flowdb/pkg/persistence/memory"
	"github.com/osvaldoandrade/flowdb/pkg/workdir"
)

func silicon() map[string]any {
	return map[string]any{
		"@module": "pymatgen.core.structure",
		"@class":  "Structure",
		"lattice": map[string]any{
			"@module": "pymatgen.core.lattice",
			"@class":  "Lattice",
			"matrix":  []any{[]any{0.0, 2.715, 2.715}, []any{2.715, 0.0, 2.715}, []any{2.715, 2.715, 0.0}},
		},
		"sites": []any{
			map[string]any{"abc": []any{0.0, 0.0, 0.0}, "species": []any{map[string]any{"element": "Si", "occu": 1.0}}},
			map[string]any{"abc": []any{0.25, 0.25, 0.25}, "species": []any{map[string]any{"element": "Si", "occu": 1.0}}},
		},
	}
}

func writeFlow(t *testing.T, status string) string {
	t.Helper()
	root := t.TempDir()
	snap := &workdir.Snapshot{
		NodeID: 10, Class: "Flow", Status: status,
		Works: []workdir.WorkSnapshot{{
			NodeID: 11, Class: "RelaxWork", Status: status,
			Tasks: []workdir.TaskSnapshot{{
				NodeID: 12, Class: "ScfTask", Status: status,
				Input:       map[string]any{"ecut": 8.0},
				InputString: "ecut 8",
				Structure:   silicon(),
				Report:      &workdir.ReportSnapshot{NumWarnings: 2, NumComments: 5},
			}},
		}},
	}
	if err := workdir.WriteSnapshot(root, snap); err != nil {
		t.Fatal(err)
	}
	write := func(path, content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(workdir.TaskDir(root, 0, 0), workdir.OutdataDir, "out_GSR.nc"), "\x89HDF")
	write(filepath.Join(workdir.TaskDir(root, 0, 0), workdir.MainOutput), "Calculation completed.")
	return root
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg, err := config.LoadConfigOptional("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.AdminToken = "secret"
	store, err := memory.NewPlugin(persistence.PluginConfig{})
	if err != nil {
		t.Fatal(err)
	}
	app, err := NewApplication(cfg, WithStore(store), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	SetupMappings(app)
	return app
}

func save(t *testing.T, app *Application, status string) *domain.FlowRecord {
	t.Helper()
	flow, err := workdir.Load(writeFlow(t, status))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := app.Flows.Save(context.Background(), flow)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return rec
}

func do(t *testing.T, app *Application, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	app.Engine.ServeHTTP(w, req)
	return w
}

func TestHTTPIntegrationFlow(t *testing.T) {
	app := newTestApp(t)
	done := save(t, app, domain.StatusCompleted)
	save(t, app, domain.StatusError)

	w := do(t, app, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", w.Code)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows", "")
	var all []domain.FlowRecord
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil || len(all) != 2 {
		t.Fatalf("list flows: status=%d n=%d err=%v", w.Code, len(all), err)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/completed", "")
	var completed []domain.FlowRecord
	if err := json.Unmarshal(w.Body.Bytes(), &completed); err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Fatalf("completed flows = %+v", completed)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows?status=Error", "")
	var failed []domain.FlowRecord
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil || len(failed) != 1 {
		t.Fatalf("status filter: n=%d err=%v", len(failed), err)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/"+done.ID, "")
	var got domain.FlowRecord
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.NodeID != 10 || got.Works[0].Tasks[0].NumComments != 5 {
		t.Fatalf("get flow returned %+v", got)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/"+done.ID+"/works/-1", "")
	var work domain.WorkRecord
	if err := json.Unmarshal(w.Body.Bytes(), &work); err != nil || work.NodeClass != "RelaxWork" {
		t.Fatalf("get work: status=%d work=%+v err=%v", w.Code, work, err)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/"+done.ID+"/files/output_file?path=w0/t0", "")
	if w.Code != http.StatusOK || w.Body.String() != "Calculation completed." {
		t.Fatalf("output file: status=%d body=%q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("output file content type = %q", ct)
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/"+done.ID+"/files/gsr?path=w0/t0", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("gsr file: status=%d type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "out_GSR.nc") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	w = do(t, app, http.MethodGet, "/v1/flowdb/flows/"+done.ID+"/structure?path=w0/t0&final=true", "")
	var st struct {
		Formula  string `json:"formula"`
		NumSites int    `json:"numSites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.Formula != "Si2" || st.NumSites != 2 {
		t.Fatalf("structure: status=%d body=%s", w.Code, w.Body.String())
	}

	w = do(t, app, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "flowdb_flows_saved_total") {
		t.Errorf("metrics endpoint missing flowdb counters (status=%d)", w.Code)
	}
}

func TestHTTPErrors(t *testing.T) {
	app := newTestApp(t)
	rec := save(t, app, domain.StatusCompleted)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown flow", "/v1/flowdb/flows/nope", http.StatusNotFound},
		{"work out of range", "/v1/flowdb/flows/" + rec.ID + "/works/5", http.StatusNotFound},
		{"non-numeric work index", "/v1/flowdb/flows/" + rec.ID + "/works/x", http.StatusBadRequest},
		{"bad node path", "/v1/flowdb/flows/" + rec.ID + "/files/gsr?path=x0", http.StatusBadRequest},
		{"empty slot", "/v1/flowdb/flows/" + rec.ID + "/files/phdos?path=w0/t0", http.StatusNotFound},
		{"task out of range", "/v1/flowdb/flows/" + rec.ID + "/files/gsr?path=w0/t3", http.StatusNotFound},
		{"structure of a work", "/v1/flowdb/flows/" + rec.ID + "/structure?path=w0", http.StatusBadRequest},
		{"bad final flag", "/v1/flowdb/flows/" + rec.ID + "/structure?path=w0/t0&final=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, app, http.MethodGet, tt.path, "")
			if w.Code != tt.want {
				t.Errorf("GET %s status=%d want=%d body=%s", tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHTTPDeleteRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	rec := save(t, app, domain.StatusCompleted)
	path := "/v1/flowdb/flows/" + rec.ID

	if w := do(t, app, http.MethodDelete, path, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("delete without token status=%d", w.Code)
	}
	if w := do(t, app, http.MethodDelete, path, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("delete with wrong token status=%d", w.Code)
	}
	if w := do(t, app, http.MethodDelete, path, "secret"); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}
	if w := do(t, app, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
		t.Fatalf("flow still readable after delete: %d", w.Code)
	}
	if w := do(t, app, http.MethodDelete, path, "secret"); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", w.Code)
	}
}
