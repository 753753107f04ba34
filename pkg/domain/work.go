package domain

// WorkRecord is the document of one work embedded in its flow.
type WorkRecord struct {
	NodeRecord `bson:",inline"`

	Tasks    []TaskRecord `json:"tasks" bson:"tasks"`
	OutFiles FileSet      `json:"outfiles,omitempty" bson:"outfiles,omitempty"`
}

func (w *WorkRecord) Validate() error {
	out := w.NodeRecord.missingFields()
	if len(w.Tasks) == 0 {
		out = append(out, "tasks")
	}
	if err := missing("work", out); err != nil {
		return err
	}
	for i := range w.Tasks {
		if err := w.Tasks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Field looks a document key up on the work. Positional access goes
// through TaskAt and TasksRange.
func (w *WorkRecord) Field(name string) (any, bool) {
	if v, ok := w.NodeRecord.field(name); ok {
		return v, true
	}
	switch name {
	case "tasks":
		return w.Tasks, true
	case "outfiles":
		return w.OutFiles, true
	}
	return nil, false
}

// TaskAt returns the i-th task. Negative indices count from the end.
func (w *WorkRecord) TaskAt(i int) (*TaskRecord, error) {
	idx, err := resolveIndex(i, len(w.Tasks))
	if err != nil {
		return nil, err
	}
	return &w.Tasks[idx], nil
}

// TasksRange returns tasks[lo:hi] with both bounds clamped to the sequence.
func (w *WorkRecord) TasksRange(lo, hi int) []TaskRecord {
	lo, hi = clampRange(lo, hi, len(w.Tasks))
	return w.Tasks[lo:hi]
}
