// Package workdir restores a flow from its working directory.
//
// The layout is fixed: a __flow__.json snapshot at the root, work i in w<i>,
// task j of that work in w<i>/t<j>, every node's artifacts in outdata/ and
// the main output of a task in run.abo.
package workdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	SnapshotFile = "__flow__.json"
	OutdataDir   = "outdata"
	MainOutput   = "run.abo"
)

// Snapshot is the serialized state of a flow.
type Snapshot struct {
	NodeID int64          `json:"node_id"`
	Class  string         `json:"class"`
	Status string         `json:"status"`
	Works  []WorkSnapshot `json:"works"`
}

type WorkSnapshot struct {
	NodeID int64          `json:"node_id"`
	Class  string         `json:"class"`
	Status string         `json:"status"`
	Tasks  []TaskSnapshot `json:"tasks"`
}

type TaskSnapshot struct {
	NodeID      int64          `json:"node_id"`
	Class       string         `json:"class"`
	Status      string         `json:"status"`
	Input       map[string]any `json:"input"`
	InputString string         `json:"input_string"`
	// Structure is the tagged dictionary of the input structure.
	Structure map[string]any  `json:"structure"`
	Report    *ReportSnapshot `json:"report,omitempty"`
	// FinalStructure is present once the run produced a relaxed structure.
	FinalStructure map[string]any `json:"final_structure,omitempty"`
}

// ReportSnapshot is the parsed event report of a task.
type ReportSnapshot struct {
	NumWarnings int            `json:"num_warnings"`
	NumErrors   int            `json:"num_errors"`
	NumComments int            `json:"num_comments"`
	Details     map[string]any `json:"details,omitempty"`
}

// WorkDir returns the directory of work i under root.
func WorkDir(root string, i int) string {
	return filepath.Join(root, "w"+strconv.Itoa(i))
}

// TaskDir returns the directory of task j of work i under root.
func TaskDir(root string, i, j int) string {
	return filepath.Join(WorkDir(root, i), "t"+strconv.Itoa(j))
}

// WriteSnapshot lays out the directory tree for snap under root and writes
// the snapshot file.
func WriteSnapshot(root string, snap *Snapshot) error {
	dirs := []string{filepath.Join(root, OutdataDir)}
	for i, w := range snap.Works {
		dirs = append(dirs, filepath.Join(WorkDir(root, i), OutdataDir))
		for j := range w.Tasks {
			dirs = append(dirs, filepath.Join(TaskDir(root, i, j), OutdataDir))
		}
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(root, SnapshotFile), b, 0o644)
}

func readSnapshot(root string) (*Snapshot, error) {
	b, err := os.ReadFile(filepath.Join(root, SnapshotFile))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", SnapshotFile, err)
	}
	return &snap, nil
}
