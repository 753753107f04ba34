package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/osvaldoandrade/flowdb/internal/metrics"
	"github.com/osvaldoandrade/flowdb/internal/tracing"
	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/mson"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
	"github.com/osvaldoandrade/flowdb/pkg/schema"
	"github.com/osvaldoandrade/flowdb/pkg/structure"
	"github.com/osvaldoandrade/flowdb/pkg/workdir"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrBadPath is returned for a node path that is not "", "w<i>" or "w<i>/t<j>".
	ErrBadPath = errors.New("invalid node path")

	// ErrNoFile is returned when the requested slot is empty.
	ErrNoFile = errors.New("no file in slot")

	// ErrNoStructure is returned for tasks stored without results.
	ErrNoStructure = errors.New("no structure recorded")
)

type FlowService interface {
	// Save converts flow, stores its artifacts and inserts the document.
	Save(ctx context.Context, flow domain.Flow) (*domain.FlowRecord, error)
	Get(ctx context.Context, id string) (*domain.FlowRecord, error)
	Work(ctx context.Context, id string, index int) (*domain.WorkRecord, error)
	List(ctx context.Context) ([]*domain.FlowRecord, error)
	ByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error)
	Completed(ctx context.Context) ([]*domain.FlowRecord, error)
	// Delete removes every artifact of the flow, then the document. Artifact
	// failures are returned joined once the document is gone.
	Delete(ctx context.Context, id string) error
	// Restore reloads the live flow from the stored working directory.
	Restore(ctx context.Context, id string) (*workdir.Flow, error)
	OpenFile(ctx context.Context, id, path, slot string) (*schema.FileHandle, error)
	// Structure decodes the initial or final structure of the task at
	// path "w<i>/t<j>".
	Structure(ctx context.Context, id, path string, final bool) (*structure.Structure, error)
}

type flowService struct {
	flows  persistence.FlowStorage
	schema *schema.Schema
	logger *slog.Logger
	tracer trace.Tracer
	mson   *mson.Registry
}

func NewFlowService(flows persistence.FlowStorage, sch *schema.Schema, logger *slog.Logger) FlowService {
	if logger == nil {
		logger = slog.Default()
	}
	reg := mson.NewRegistry()
	structure.Register(reg)
	return &flowService{flows: flows, schema: sch, logger: logger, tracer: tracing.Tracer("flows"), mson: reg}
}

func (s *flowService) Save(ctx context.Context, flow domain.Flow) (*domain.FlowRecord, error) {
	ctx, span := s.tracer.Start(ctx, "flowdb.flow.save",
		trace.WithAttributes(
			attribute.Int64("flowdb.node_id", flow.NodeID()),
			attribute.String("flowdb.workdir", flow.Workdir()),
		),
	)
	defer span.End()

	start := time.Now()
	rec, err := s.schema.FromFlow(ctx, flow)
	metrics.ConversionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		fail(span, err)
		s.logger.Warn("flow conversion failed", "workdir", flow.Workdir(), "err", err)
		return nil, fmt.Errorf("convert flow: %w", err)
	}
	span.SetAttributes(attribute.String("flowdb.flow_id", rec.ID))

	if err := s.flows.Insert(ctx, rec); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("insert flow: %w", err)
	}

	blobs := 0
	for _, fs := range rec.FileSets() {
		for _, slot := range fs.Populated() {
			metrics.BlobsWrittenTotal.WithLabelValues(slot).Inc()
			blobs++
		}
	}
	metrics.FlowsSavedTotal.WithLabelValues(rec.Status).Inc()
	s.logger.Info("flow saved", "id", rec.ID, "node_id", rec.NodeID, "status", rec.Status, "works", len(rec.Works), "blobs", blobs)
	return rec, nil
}

func (s *flowService) Get(ctx context.Context, id string) (*domain.FlowRecord, error) {
	return s.flows.Get(ctx, id)
}

func (s *flowService) Work(ctx context.Context, id string, index int) (*domain.WorkRecord, error) {
	rec, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.WorkAt(index)
}

func (s *flowService) List(ctx context.Context) ([]*domain.FlowRecord, error) {
	return s.flows.List(ctx)
}

func (s *flowService) ByStatus(ctx context.Context, status string) ([]*domain.FlowRecord, error) {
	return s.flows.FindByStatus(ctx, status)
}

func (s *flowService) Completed(ctx context.Context) ([]*domain.FlowRecord, error) {
	return s.ByStatus(ctx, domain.StatusCompleted)
}

func (s *flowService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "flowdb.flow.delete",
		trace.WithAttributes(attribute.String("flowdb.flow_id", id)),
	)
	defer span.End()

	rec, err := s.flows.Get(ctx, id)
	if err != nil {
		fail(span, err)
		return err
	}

	attempted, blobErr := s.schema.DeleteFlowFiles(ctx, rec)
	failed := countErrors(blobErr)
	if failed > 0 {
		metrics.BlobDeleteFailuresTotal.Add(float64(failed))
		s.logger.Warn("flow artifacts not fully deleted", "id", id, "attempted", attempted, "failed", failed, "err", blobErr)
	}

	if err := s.flows.Delete(ctx, id); err != nil {
		fail(span, err)
		return errors.Join(fmt.Errorf("delete flow document: %w", err), blobErr)
	}
	metrics.FlowsDeletedTotal.Inc()
	s.logger.Info("flow deleted", "id", id, "blobs", attempted, "blob_failures", failed)

	if blobErr != nil {
		span.SetStatus(codes.Error, "artifact deletion failed")
	}
	return blobErr
}

func (s *flowService) Restore(ctx context.Context, id string) (*workdir.Flow, error) {
	rec, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return workdir.Load(rec.Workdir)
}

func (s *flowService) OpenFile(ctx context.Context, id, path, slot string) (*schema.FileHandle, error) {
	rec, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fs, err := fileSetAt(rec, path)
	if err != nil {
		return nil, err
	}
	h, ok := s.schema.Handle(fs, slot)
	if !ok {
		return nil, fmt.Errorf("%w: %s at %q", ErrNoFile, slot, path)
	}
	return h, nil
}

func (s *flowService) Structure(ctx context.Context, id, path string, final bool) (*structure.Structure, error) {
	rec, err := s.flows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task, err := taskAt(rec, path)
	if err != nil {
		return nil, err
	}
	if task.Results == nil {
		return nil, fmt.Errorf("%w: task %q", ErrNoStructure, path)
	}
	d := map[string]any(task.Results.InitialStructure)
	if final {
		d = task.Results.FinalStructure
	}
	if d == nil {
		return nil, fmt.Errorf("%w: task %q", ErrNoStructure, path)
	}
	v, err := s.mson.Decode(d)
	if err != nil {
		return nil, err
	}
	st, ok := v.(*structure.Structure)
	if !ok {
		return nil, fmt.Errorf("task %q: structure decoded as %T", path, v)
	}
	return st, nil
}

func taskAt(rec *domain.FlowRecord, path string) (*domain.TaskRecord, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q is not a task path", ErrBadPath, path)
	}
	wi, err := pathIndex(parts[0], "w")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	ti, err := pathIndex(parts[1], "t")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	work, err := rec.WorkAt(wi)
	if err != nil {
		return nil, err
	}
	return work.TaskAt(ti)
}

// fileSetAt resolves "" (the flow), "w<i>" or "w<i>/t<j>".
func fileSetAt(rec *domain.FlowRecord, path string) (domain.FileSet, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return rec.OutFiles, nil
	}
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	wi, err := pathIndex(parts[0], "w")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	work, err := rec.WorkAt(wi)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		return work.OutFiles, nil
	}
	ti, err := pathIndex(parts[1], "t")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	task, err := work.TaskAt(ti)
	if err != nil {
		return nil, err
	}
	return task.OutFiles, nil
}

func pathIndex(part, prefix string) (int, error) {
	if !strings.HasPrefix(part, prefix) {
		return 0, ErrBadPath
	}
	return strconv.Atoi(strings.TrimPrefix(part, prefix))
}

func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range j.Unwrap() {
			n += countErrors(e)
		}
		return n
	}
	return 1
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
