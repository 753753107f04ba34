// Package taskmanager loads the fw_manager.yaml file that drives job
// submission: the fw_policy block and the queue adapter definitions.
package taskmanager

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLFile is the conventional configuration file name.
const YAMLFile = "fw_manager.yaml"

// recognized top-level sections
var topLevelKeys = map[string]bool{
	"fw_policy":     true,
	"qadapters":     true,
	"policy":        true,
	"db_connector":  true,
	"batch_adapter": true,
}

var (
	// ErrUnknownKeys is returned when a configuration carries keys nobody reads.
	ErrUnknownKeys = errors.New("unknown configuration keys")

	// ErrNoUserConfig is returned by FromUserConfig when no file is found.
	ErrNoUserConfig = errors.New("no " + YAMLFile + " found")
)

// UnknownKeysError names the offending keys, sorted.
type UnknownKeysError struct {
	Section string
	Keys    []string
}

func (e *UnknownKeysError) Error() string {
	where := "top level"
	if e.Section != "" {
		where = e.Section
	}
	return fmt.Sprintf("unknown keys in %s: %s", where, strings.Join(e.Keys, ", "))
}

func (e *UnknownKeysError) Unwrap() error { return ErrUnknownKeys }

// QueueAdapter is one entry of the qadapters list. Sections are kept as
// loose mappings; only the fields the submission helpers need are typed.
type QueueAdapter struct {
	Priority int            `yaml:"priority"`
	Queue    map[string]any `yaml:"queue"`
	Limits   map[string]any `yaml:"limits"`
	Job      map[string]any `yaml:"job"`
	Hardware map[string]any `yaml:"hardware"`
}

// QType returns queue.qtype, "slurm" when unset.
func (q QueueAdapter) QType() string {
	if s, ok := q.Queue["qtype"].(string); ok && s != "" {
		return s
	}
	return "slurm"
}

// QName returns queue.qname.
func (q QueueAdapter) QName() string {
	s, _ := q.Queue["qname"].(string)
	return s
}

// TaskManager groups the sections handed to the job submission layer.
type TaskManager struct {
	QAdapters    []QueueAdapter
	Policy       map[string]any
	DBConnector  map[string]any
	BatchAdapter map[string]any
}

// Manager is a loaded fw_manager.yaml.
type Manager struct {
	Policy Policy

	// Path is the file the manager was loaded from, empty for FromBytes.
	Path string

	tm *TaskManager
}

// FromFile loads path.
func FromFile(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task manager config: %w", err)
	}
	m, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// FromUserConfig looks for fw_manager.yaml in the working directory, then
// in ~/.abinit/abipy.
func FromUserConfig() (*Manager, error) {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, YAMLFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".abinit", "abipy", YAMLFile))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return FromFile(path)
	}
	return nil, fmt.Errorf("%w (searched %s)", ErrNoUserConfig, strings.Join(candidates, ", "))
}

// FromBytes parses a configuration document.
func FromBytes(data []byte) (*Manager, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse task manager config: %w", err)
	}
	doc, err := sections(&root)
	if err != nil {
		return nil, err
	}

	var unknown []string
	for k := range doc {
		if !topLevelKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownKeysError{Keys: unknown}
	}

	m := &Manager{Policy: DefaultPolicy()}
	if n, ok := doc["fw_policy"]; ok {
		if err := decodeStrict(n, &m.Policy); err != nil {
			return nil, fmt.Errorf("fw_policy: %w", err)
		}
	}

	n, ok := doc["qadapters"]
	if !ok {
		return m, nil
	}
	tm := &TaskManager{}
	if err := n.Decode(&tm.QAdapters); err != nil {
		return nil, fmt.Errorf("qadapters: %w", err)
	}
	if len(tm.QAdapters) == 0 {
		return m, nil
	}
	extra := []struct {
		key string
		dst *map[string]any
	}{
		{"policy", &tm.Policy},
		{"db_connector", &tm.DBConnector},
		{"batch_adapter", &tm.BatchAdapter},
	}
	for _, s := range extra {
		if n, ok := doc[s.key]; ok {
			if err := n.Decode(s.dst); err != nil {
				return nil, fmt.Errorf("%s: %w", s.key, err)
			}
		}
	}
	m.tm = tm
	return m, nil
}

// sections indexes the top-level mapping of a parsed document.
func sections(root *yaml.Node) (map[string]*yaml.Node, error) {
	out := make(map[string]*yaml.Node)
	if root.Kind == 0 {
		return out, nil
	}
	n := root
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("task manager config must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[n.Content[i].Value] = n.Content[i+1]
	}
	return out, nil
}

// TaskManager returns the queue configuration, nil when the file configures
// no queue adapter (missing, null or empty qadapters).
func (m *Manager) TaskManager() *TaskManager {
	return m.tm
}

func (m *Manager) HasTaskManager() bool {
	return m.tm != nil && len(m.tm.QAdapters) > 0
}

// UpdatePolicy merges a partial mapping into the policy. Unknown keys and
// values of the wrong type leave the policy untouched.
func (m *Manager) UpdatePolicy(update map[string]any) error {
	cur, err := yaml.Marshal(m.Policy)
	if err != nil {
		return err
	}
	var merged map[string]any
	if err := yaml.Unmarshal(cur, &merged); err != nil {
		return err
	}
	for k, v := range update {
		merged[k] = v
	}
	out, err := yaml.Marshal(merged)
	if err != nil {
		return err
	}
	var n yaml.Node
	if err := yaml.Unmarshal(out, &n); err != nil {
		return err
	}
	p := DefaultPolicy()
	if err := decodeStrict(&n, &p); err != nil {
		return fmt.Errorf("update fw_policy: %w", err)
	}
	m.Policy = p
	return nil
}

// decodeStrict decodes n into dst rejecting keys dst has no field for.
func decodeStrict(n *yaml.Node, dst *Policy) error {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind == yaml.MappingNode {
		known := policyKeys()
		var unknown []string
		for i := 0; i+1 < len(n.Content); i += 2 {
			if k := n.Content[i].Value; !known[k] {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return &UnknownKeysError{Section: "fw_policy", Keys: unknown}
		}
	}
	return n.Decode(dst)
}

// Dump renders the effective configuration as YAML.
func (m *Manager) Dump() ([]byte, error) {
	doc := map[string]any{"fw_policy": m.Policy}
	if m.tm != nil {
		doc["qadapters"] = m.tm.QAdapters
		if m.tm.Policy != nil {
			doc["policy"] = m.tm.Policy
		}
		if m.tm.DBConnector != nil {
			doc["db_connector"] = m.tm.DBConnector
		}
		if m.tm.BatchAdapter != nil {
			doc["batch_adapter"] = m.tm.BatchAdapter
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
