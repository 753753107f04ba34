package workdir

import (
	"fmt"
	"path/filepath"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
)

type node struct {
	id     int64
	class  string
	status string
	dir    string
}

func (n *node) NodeID() int64            { return n.id }
func (n *node) ClassName() string        { return n.class }
func (n *node) Status() string           { return n.status }
func (n *node) Workdir() string          { return n.dir }
func (n *node) OutDir() domain.OutputDir { return Dir(filepath.Join(n.dir, OutdataDir)) }

// Flow is a flow restored from disk.
type Flow struct {
	node
	works []*Work
}

func (f *Flow) Works() []domain.Work {
	out := make([]domain.Work, len(f.works))
	for i, w := range f.works {
		out[i] = w
	}
	return out
}

type Work struct {
	node
	tasks []domain.Task
}

func (w *Work) Tasks() []domain.Task { return w.tasks }

// Task is a task restored from disk. Tasks whose snapshot carries a final
// structure are returned as *RelaxTask.
type Task struct {
	node
	input  *Input
	report *Report
}

func (t *Task) Input() domain.Input {
	if t.input == nil {
		return nil
	}
	return t.input
}

func (t *Task) EventReport() (domain.EventReport, error) {
	if t.report == nil {
		return nil, nil
	}
	return t.report, nil
}

// OutputFile is the main output of the run.
func (t *Task) OutputFile() string {
	return filepath.Join(t.dir, MainOutput)
}

type RelaxTask struct {
	*Task
	final map[string]any
}

func (t *RelaxTask) FinalStructure() (map[string]any, error) {
	return t.final, nil
}

type Input struct {
	dict      map[string]any
	str       string
	structure map[string]any
}

func (in *Input) AsDict() map[string]any    { return in.dict }
func (in *Input) String() string            { return in.str }
func (in *Input) Structure() map[string]any { return in.structure }

type Report struct {
	snap ReportSnapshot
}

func (r *Report) NumWarnings() int { return r.snap.NumWarnings }
func (r *Report) NumErrors() int   { return r.snap.NumErrors }
func (r *Report) NumComments() int { return r.snap.NumComments }
func (r *Report) AsDict() map[string]any {
	out := map[string]any{
		"num_warnings": r.snap.NumWarnings,
		"num_errors":   r.snap.NumErrors,
		"num_comments": r.snap.NumComments,
	}
	for k, v := range r.snap.Details {
		out[k] = v
	}
	return out
}

// Load restores the flow rooted at root from its snapshot.
func Load(root string) (*Flow, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	snap, err := readSnapshot(abs)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", root, err)
	}

	f := &Flow{node: node{id: snap.NodeID, class: snap.Class, status: snap.Status, dir: abs}}
	for i, ws := range snap.Works {
		w := &Work{node: node{id: ws.NodeID, class: ws.Class, status: ws.Status, dir: WorkDir(abs, i)}}
		for j, ts := range ws.Tasks {
			w.tasks = append(w.tasks, newTask(ts, TaskDir(abs, i, j)))
		}
		f.works = append(f.works, w)
	}
	return f, nil
}

func newTask(ts TaskSnapshot, dir string) domain.Task {
	t := &Task{node: node{id: ts.NodeID, class: ts.Class, status: ts.Status, dir: dir}}
	if ts.Input != nil || ts.InputString != "" {
		t.input = &Input{dict: ts.Input, str: ts.InputString, structure: ts.Structure}
	}
	if ts.Report != nil {
		t.report = &Report{snap: *ts.Report}
	}
	if ts.FinalStructure != nil {
		return &RelaxTask{Task: t, final: ts.FinalStructure}
	}
	return t
}
