package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
)

// FromNode copies the four identifying fields off a live node.
func (s *Schema) FromNode(node domain.Node) (domain.NodeRecord, error) {
	rec := domain.NodeRecord{
		NodeID:    node.NodeID(),
		NodeClass: node.ClassName(),
		Status:    node.Status(),
		Workdir:   node.Workdir(),
	}
	if err := rec.Validate(); err != nil {
		return domain.NodeRecord{}, err
	}
	return rec, nil
}

// FilesFromNode stores every artifact found for node and returns the
// resulting file-set. Missing files leave their slot empty. Each call
// writes new blobs.
func (s *Schema) FilesFromNode(ctx context.Context, node domain.Node) (domain.FileSet, error) {
	out := domain.FileSet{}
	outdir := node.OutDir()

	for _, slot := range s.Slots {
		var path string
		if slot.Name == OutputFileSlot {
			// The main output is not in the output directory.
			mo, ok := node.(domain.MainOutput)
			if !ok {
				continue
			}
			path = mo.OutputFile()
		} else {
			if outdir == nil {
				continue
			}
			p, err := outdir.HasAbiExt(slot.Ext)
			if err != nil {
				return nil, fmt.Errorf("locate %s: %w", slot.Ext, err)
			}
			path = p
		}
		if path == "" {
			continue
		}

		ref, err := s.storeFile(ctx, slot, path)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			out[slot.Name] = ref
		}
	}
	return out, nil
}

func (s *Schema) storeFile(ctx context.Context, slot FileSlot, path string) (*domain.FileRef, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", slot.Name, err)
	}
	name := filepath.Base(path)
	id, err := s.Files.Put(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", slot.Name, err)
	}
	return &domain.FileRef{
		ID:       id,
		Ext:      slot.Ext,
		Form:     slot.Form,
		Filename: name,
		Length:   int64(len(data)),
	}, nil
}

// ResultsFromTask records the input structure and, when the task can
// report one, the final structure. Otherwise final equals initial.
func (s *Schema) ResultsFromTask(task domain.Task) (*domain.TaskResults, error) {
	var initial map[string]any
	if in := task.Input(); in != nil {
		initial = in.Structure()
	}
	res := &domain.TaskResults{
		InitialStructure: initial,
		FinalStructure:   initial,
	}
	if g, ok := task.(domain.GSRReader); ok {
		final, err := g.FinalStructure()
		if err != nil {
			return nil, fmt.Errorf("final structure of node %d: %w", task.NodeID(), err)
		}
		if final != nil {
			res.FinalStructure = final
		}
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// FromTask builds the task document, storing its artifacts on the way.
func (s *Schema) FromTask(ctx context.Context, task domain.Task) (*domain.TaskRecord, error) {
	node, err := s.FromNode(task)
	if err != nil {
		return nil, err
	}
	rec := &domain.TaskRecord{NodeRecord: node}

	input := task.Input()
	if input == nil {
		return nil, &domain.MissingFieldError{Record: "task", Fields: []string{"input", "input_str"}}
	}
	rec.Input = input.AsDict()
	rec.InputStr = input.String()

	report, err := task.EventReport()
	if err != nil {
		return nil, fmt.Errorf("event report of node %d: %w", task.NodeID(), err)
	}
	if report == nil {
		return nil, &domain.MissingFieldError{
			Record: "task",
			Fields: []string{"report", "num_warnings", "num_errors", "num_comments"},
		}
	}
	rec.NumWarnings = report.NumWarnings()
	rec.NumErrors = report.NumErrors()
	rec.NumComments = report.NumComments()
	rec.Report = report.AsDict()

	if rec.Results, err = s.ResultsFromTask(task); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.OutFiles, err = s.FilesFromNode(ctx, task); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromWork builds the work document with its tasks in iteration order.
func (s *Schema) FromWork(ctx context.Context, work domain.Work) (*domain.WorkRecord, error) {
	node, err := s.FromNode(work)
	if err != nil {
		return nil, err
	}
	rec := &domain.WorkRecord{NodeRecord: node}
	for _, task := range work.Tasks() {
		tr, err := s.FromTask(ctx, task)
		if err != nil {
			return nil, err
		}
		rec.Tasks = append(rec.Tasks, *tr)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.OutFiles, err = s.FilesFromNode(ctx, work); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromFlow builds the flow document with a fresh id.
func (s *Schema) FromFlow(ctx context.Context, flow domain.Flow) (*domain.FlowRecord, error) {
	node, err := s.FromNode(flow)
	if err != nil {
		return nil, err
	}
	rec := &domain.FlowRecord{
		ID:         s.newID(),
		NodeRecord: node,
		CreatedAt:  s.now().UTC(),
	}
	for _, work := range flow.Works() {
		wr, err := s.FromWork(ctx, work)
		if err != nil {
			return nil, err
		}
		rec.Works = append(rec.Works, *wr)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.OutFiles, err = s.FilesFromNode(ctx, flow); err != nil {
		return nil, err
	}
	return rec, nil
}
