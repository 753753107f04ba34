package schema

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
)

// FileHandle is a stored artifact together with how to open it. Extension
// and mode are fixed when the handle is built.
type FileHandle struct {
	store persistence.FileStorage
	id    string
	ext   string
	form  string
	name  string
}

func NewFileHandle(store persistence.FileStorage, ref *domain.FileRef) *FileHandle {
	return &FileHandle{store: store, id: ref.ID, ext: ref.Ext, form: ref.Form, name: ref.Filename}
}

func (h *FileHandle) ID() string       { return h.id }
func (h *FileHandle) Ext() string      { return h.ext }
func (h *FileHandle) Form() string     { return h.form }
func (h *FileHandle) Filename() string { return h.name }
func (h *FileHandle) IsText() bool     { return h.form == domain.FormText }

func (h *FileHandle) Read(ctx context.Context) ([]byte, error) {
	return h.store.Get(ctx, h.id)
}

func (h *FileHandle) Delete(ctx context.Context) error {
	return h.store.Delete(ctx, h.id)
}

// WriteTemp dumps the blob into a new file in dir (os.TempDir when empty)
// named with the artifact extension, so tools that sniff the suffix can
// open it. The caller removes the file.
func (h *FileHandle) WriteTemp(ctx context.Context, dir string) (string, error) {
	data, err := h.Read(ctx)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "flowdb-*."+h.ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Handle returns the handle of a populated slot of fs.
func (s *Schema) Handle(fs domain.FileSet, slot string) (*FileHandle, bool) {
	ref, ok := fs.Get(slot)
	if !ok {
		return nil, false
	}
	return NewFileHandle(s.Files, ref), true
}

// DeleteFiles deletes every populated blob of fs. A failure does not stop
// the remaining deletions; all failures come back joined. The returned count
// is the number of deletions attempted.
func (s *Schema) DeleteFiles(ctx context.Context, fs domain.FileSet) (int, error) {
	var errs []error
	attempted := 0
	for _, name := range fs.Populated() {
		ref, _ := fs.Get(name)
		attempted++
		if err := s.Files.Delete(ctx, ref.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s (%s): %w", name, ref.ID, err))
		}
	}
	return attempted, errors.Join(errs...)
}

// DeleteFlowFiles runs DeleteFiles over the flow and every work and task in it.
func (s *Schema) DeleteFlowFiles(ctx context.Context, rec *domain.FlowRecord) (int, error) {
	var errs []error
	attempted := 0
	for _, fs := range rec.FileSets() {
		n, err := s.DeleteFiles(ctx, fs)
		attempted += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return attempted, errors.Join(errs...)
}
