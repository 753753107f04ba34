package domain

import "github.com/osvaldoandrade/flowdb/pkg/mson"

// TaskResults keeps the structures a task started from and ended with.
// FinalStructure equals InitialStructure when no refined result exists.
type TaskResults struct {
	InitialStructure mson.Dict      `json:"initial_structure" bson:"initial_structure"`
	FinalStructure   map[string]any `json:"final_structure" bson:"final_structure"`
}

func (r *TaskResults) Validate() error {
	var out []string
	if r.InitialStructure == nil {
		out = append(out, "initial_structure")
	}
	if r.FinalStructure == nil {
		out = append(out, "final_structure")
	}
	return missing("task results", out)
}

// TaskRecord is the document of one task embedded in its work.
type TaskRecord struct {
	NodeRecord `bson:",inline"`

	Input    map[string]any `json:"input" bson:"input"`
	InputStr string         `json:"input_str" bson:"input_str"`

	// Quality summary and the counters copied from it at construction time.
	Report      map[string]any `json:"report" bson:"report"`
	NumWarnings int            `json:"num_warnings" bson:"num_warnings"`
	NumErrors   int            `json:"num_errors" bson:"num_errors"`
	NumComments int            `json:"num_comments" bson:"num_comments"`

	Results  *TaskResults `json:"results,omitempty" bson:"results,omitempty"`
	OutFiles FileSet      `json:"outfiles,omitempty" bson:"outfiles,omitempty"`
}

func (t *TaskRecord) Validate() error {
	out := t.NodeRecord.missingFields()
	if t.Input == nil {
		out = append(out, "input")
	}
	if t.InputStr == "" {
		out = append(out, "input_str")
	}
	if t.Report == nil {
		out = append(out, "report")
	}
	if err := missing("task", out); err != nil {
		return err
	}
	if t.Results != nil {
		return t.Results.Validate()
	}
	return nil
}

// Field looks a document key up on the task.
func (t *TaskRecord) Field(name string) (any, bool) {
	if v, ok := t.NodeRecord.field(name); ok {
		return v, true
	}
	switch name {
	case "input":
		return t.Input, true
	case "input_str":
		return t.InputStr, true
	case "report":
		return t.Report, true
	case "num_warnings":
		return t.NumWarnings, true
	case "num_errors":
		return t.NumErrors, true
	case "num_comments":
		return t.NumComments, true
	case "results":
		return t.Results, true
	case "outfiles":
		return t.OutFiles, true
	}
	return nil, false
}
