// Package schema builds flow documents from live workflow objects.
//
// A Schema value carries everything a conversion needs: the artifact slots
// and the file storage that receives the blobs. Nothing is registered
// globally. Where the documents land is up to the persistence provider.
package schema

import (
	"time"

	"github.com/google/uuid"

	"github.com/osvaldoandrade/flowdb/pkg/domain"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
)

// OutputFileSlot is read from the node's main output, not its output directory.
const OutputFileSlot = "output_file"

// FileSlot describes one named artifact of a file-set.
type FileSlot struct {
	Name string
	Ext  string
	Form string
}

// DefaultSlots are the artifacts collected for every node.
var DefaultSlots = []FileSlot{
	{Name: "gsr", Ext: "GSR.nc", Form: domain.FormBinary},
	{Name: "hist", Ext: "HIST", Form: domain.FormBinary},
	{Name: "phbst", Ext: "PHBST.nc", Form: domain.FormBinary},
	{Name: "phdos", Ext: "PHDOS.nc", Form: domain.FormBinary},
	{Name: "sigres", Ext: "SIGRES.nc", Form: domain.FormBinary},
	{Name: "mdf", Ext: "MDF.nc", Form: domain.FormBinary},
	{Name: "ddb", Ext: "DDB", Form: domain.FormText},
	{Name: OutputFileSlot, Ext: "abo", Form: domain.FormText},
}

type Schema struct {
	Slots []FileSlot
	Files persistence.FileStorage

	now   func() time.Time
	newID func() string
}

type Option func(*Schema)

func WithSlots(slots []FileSlot) Option {
	return func(s *Schema) { s.Slots = slots }
}

func WithClock(now func() time.Time) Option {
	return func(s *Schema) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Schema) { s.newID = fn }
}

// New returns a schema writing blobs to files.
func New(files persistence.FileStorage, opts ...Option) *Schema {
	s := &Schema{
		Slots: DefaultSlots,
		Files: files,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slot returns the slot definition for name.
func (s *Schema) Slot(name string) (FileSlot, bool) {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return FileSlot{}, false
}
