package taskmanager

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFromFileOK(t *testing.T) {
	m, err := FromFile(filepath.Join("testdata", "fw_manager_ok.yaml"))
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if err := m.UpdatePolicy(map[string]any{"max_restarts": 30}); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}

	if !m.Policy.RerunSameDir {
		t.Error("rerun_same_dir should be true")
	}
	if m.Policy.MaxRestarts != 30 {
		t.Errorf("max_restarts = %d, want 30", m.Policy.MaxRestarts)
	}
	if !m.Policy.Autoparal {
		t.Error("autoparal should be true")
	}
	// untouched keys keep their defaults
	if m.Policy.TimelimitBuffer != 120 || m.Policy.MPIRunCmd != "mpirun" || !m.Policy.RecoverPreviousJob {
		t.Errorf("defaults lost: %+v", m.Policy)
	}

	tm := m.TaskManager()
	if tm == nil || len(tm.QAdapters) != 1 {
		t.Fatalf("TaskManager() = %+v", tm)
	}
	if tm.QAdapters[0].QName() != "debug" || tm.QAdapters[0].QType() != "slurm" {
		t.Errorf("adapter = %+v", tm.QAdapters[0])
	}
}

func TestFromFileNoQAdapters(t *testing.T) {
	m, err := FromFile(filepath.Join("testdata", "fw_manager_no_qadapters.yaml"))
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if m.TaskManager() != nil {
		t.Errorf("TaskManager() = %+v, want nil", m.TaskManager())
	}
	if m.HasTaskManager() {
		t.Error("HasTaskManager() should be false")
	}
	if m.Policy.MaxRestarts != 10 || m.Policy.ShortJobTimelimit != 600 {
		t.Errorf("defaults not applied: %+v", m.Policy)
	}

	spec, err := m.ShortSingleCoreSpec(0)
	if err != nil || len(spec) != 0 {
		t.Errorf("ShortSingleCoreSpec without adapters = %v, %v", spec, err)
	}
}

func TestFromBytesEmptyQAdapters(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"null", "fw_policy:\n  autoparal: true\nqadapters:\n"},
		{"empty list", "fw_policy:\n  autoparal: true\nqadapters: []\n"},
		{"null with extras", "qadapters: ~\ndb_connector:\n  host: localhost\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromBytes([]byte(tt.doc))
			if err != nil {
				t.Fatalf("FromBytes: %v", err)
			}
			if tm := m.TaskManager(); tm != nil {
				t.Errorf("TaskManager() = %+v, want nil", tm)
			}
			if m.HasTaskManager() {
				t.Error("HasTaskManager() should be false")
			}
		})
	}
}

func TestFromFileUnknownKeys(t *testing.T) {
	_, err := FromFile(filepath.Join("testdata", "fw_manager_unknown_keys.yaml"))
	if !errors.Is(err, ErrUnknownKeys) {
		t.Fatalf("error = %v, want ErrUnknownKeys", err)
	}
	var uk *UnknownKeysError
	if !errors.As(err, &uk) {
		t.Fatalf("error %v is not an UnknownKeysError", err)
	}
	if want := []string{"another_one", "not_a_section"}; !reflect.DeepEqual(uk.Keys, want) {
		t.Errorf("Keys = %v, want %v", uk.Keys, want)
	}
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		check   func(t *testing.T, m *Manager)
	}{
		{
			name: "empty document",
			doc:  "",
			check: func(t *testing.T, m *Manager) {
				if m.Policy != DefaultPolicy() {
					t.Errorf("Policy = %+v", m.Policy)
				}
			},
		},
		{
			name:    "unknown fw_policy key",
			doc:     "fw_policy:\n  max_restart: 3\n",
			wantErr: ErrUnknownKeys,
		},
		{
			name: "extra sections",
			doc:  "qadapters:\n  - queue: {qname: q}\npolicy:\n  autoparal: 1\ndb_connector:\n  host: localhost\n",
			check: func(t *testing.T, m *Manager) {
				tm := m.TaskManager()
				if tm.Policy["autoparal"] != 1 || tm.DBConnector["host"] != "localhost" {
					t.Errorf("sections = %+v", tm)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromBytes([]byte(tt.doc))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromBytes: %v", err)
			}
			tt.check(t, m)
		})
	}

	if _, err := FromBytes([]byte("- just\n- a list\n")); err == nil {
		t.Error("expected error for non-mapping document")
	}
}

func TestUpdatePolicyRejects(t *testing.T) {
	m, err := FromBytes(nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	if err := m.UpdatePolicy(map[string]any{"max_restarts": "many"}); err == nil {
		t.Error("expected type error")
	}
	if err := m.UpdatePolicy(map[string]any{"no_such_option": true}); !errors.Is(err, ErrUnknownKeys) {
		t.Errorf("error = %v, want ErrUnknownKeys", err)
	}
	if m.Policy != DefaultPolicy() {
		t.Errorf("failed updates changed the policy: %+v", m.Policy)
	}

	if err := m.UpdatePolicy(map[string]any{"copy_deps": true, "exec_timeout": 5}); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}
	if !m.Policy.CopyDeps || m.Policy.ExecTimeout != 5 {
		t.Errorf("Policy = %+v", m.Policy)
	}
}

func TestFromUserConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "fw_manager_ok.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("HOME", t.TempDir())
		if err := os.WriteFile(filepath.Join(dir, YAMLFile), data, 0o644); err != nil {
			t.Fatal(err)
		}
		chdir(t, dir)

		m, err := FromUserConfig()
		if err != nil {
			t.Fatalf("FromUserConfig: %v", err)
		}
		if err := m.UpdatePolicy(map[string]any{"max_restarts": 30}); err != nil {
			t.Fatal(err)
		}
		if !m.Policy.RerunSameDir || m.Policy.MaxRestarts != 30 || !m.Policy.Autoparal {
			t.Errorf("Policy = %+v", m.Policy)
		}
	})

	t.Run("home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		chdir(t, t.TempDir())
		cfgDir := filepath.Join(home, ".abinit", "abipy")
		if err := os.MkdirAll(cfgDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cfgDir, YAMLFile), data, 0o644); err != nil {
			t.Fatal(err)
		}

		m, err := FromUserConfig()
		if err != nil {
			t.Fatalf("FromUserConfig: %v", err)
		}
		if m.Path != filepath.Join(cfgDir, YAMLFile) {
			t.Errorf("Path = %s", m.Path)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		chdir(t, t.TempDir())
		if _, err := FromUserConfig(); !errors.Is(err, ErrNoUserConfig) {
			t.Errorf("error = %v, want ErrNoUserConfig", err)
		}
	})
}

func TestDump(t *testing.T) {
	m, err := FromFile(filepath.Join("testdata", "fw_manager_ok.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	again, err := FromBytes(out)
	if err != nil {
		t.Fatalf("reloading dump: %v", err)
	}
	if again.Policy != m.Policy || again.TaskManager().QAdapters[0].QName() != "debug" {
		t.Errorf("dump did not reload: %s", out)
	}
}

// chdir changes the working directory to dir for the duration of the test,
// restoring the previous one on cleanup (equivalent of Go 1.24's t.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
