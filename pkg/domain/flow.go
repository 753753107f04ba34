package domain

import (
	"fmt"
	"time"
)

// FlowCollection is the collection holding flow documents.
const FlowCollection = "flowdata"

// FlowRecord is the top-level document; works and tasks are embedded by
// value, artifacts are referenced through FileRefs.
type FlowRecord struct {
	ID         string `json:"id" bson:"_id"`
	NodeRecord `bson:",inline"`

	Works     []WorkRecord `json:"works" bson:"works"`
	OutFiles  FileSet      `json:"outfiles,omitempty" bson:"outfiles,omitempty"`
	CreatedAt time.Time    `json:"created_at" bson:"created_at"`
}

func (f *FlowRecord) Validate() error {
	out := f.NodeRecord.missingFields()
	if len(f.Works) == 0 {
		out = append(out, "works")
	}
	if err := missing("flow", out); err != nil {
		return err
	}
	for i := range f.Works {
		if err := f.Works[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Field looks a document key up on the flow.
func (f *FlowRecord) Field(name string) (any, bool) {
	if v, ok := f.NodeRecord.field(name); ok {
		return v, true
	}
	switch name {
	case "id", "_id":
		return f.ID, true
	case "works":
		return f.Works, true
	case "outfiles":
		return f.OutFiles, true
	case "created_at":
		return f.CreatedAt, true
	}
	return nil, false
}

// WorkAt returns the i-th work. Negative indices count from the end.
func (f *FlowRecord) WorkAt(i int) (*WorkRecord, error) {
	idx, err := resolveIndex(i, len(f.Works))
	if err != nil {
		return nil, err
	}
	return &f.Works[idx], nil
}

// WorksRange returns works[lo:hi] with both bounds clamped to the sequence.
func (f *FlowRecord) WorksRange(lo, hi int) []WorkRecord {
	lo, hi = clampRange(lo, hi, len(f.Works))
	return f.Works[lo:hi]
}

// FileSets returns every file-set of the flow: the flow's own, then each
// work followed by its tasks.
func (f *FlowRecord) FileSets() []FileSet {
	out := []FileSet{f.OutFiles}
	for i := range f.Works {
		w := &f.Works[i]
		out = append(out, w.OutFiles)
		for j := range w.Tasks {
			out = append(out, w.Tasks[j].OutFiles)
		}
	}
	return out
}

// FilterByStatus keeps the records whose stored status equals status.
func FilterByStatus(records []*FlowRecord, status string) []*FlowRecord {
	var out []*FlowRecord
	for _, r := range records {
		if r != nil && r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// FilterCompleted keeps the records whose status is exactly "Completed".
func FilterCompleted(records []*FlowRecord) []*FlowRecord {
	return FilterByStatus(records, StatusCompleted)
}

func resolveIndex(i, n int) (int, error) {
	idx := i
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, n)
	}
	return idx, nil
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo += n
	}
	if hi < 0 {
		hi += n
	}
	lo = min(max(lo, 0), n)
	hi = min(max(hi, 0), n)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
