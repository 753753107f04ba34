package domain

import "sort"

// File modes of an artifact slot.
const (
	FormBinary = "b"
	FormText   = "t"
)

// FileRef points at a blob kept in file storage.
type FileRef struct {
	ID       string `json:"id" bson:"id"`
	Ext      string `json:"abiext" bson:"abiext"`
	Form     string `json:"abiform" bson:"abiform"`
	Filename string `json:"filename,omitempty" bson:"filename,omitempty"`
	Length   int64  `json:"length" bson:"length"`
}

// FileSet maps artifact slot names to the blobs stored for a node. Absent
// slots mean the file did not exist at conversion time.
type FileSet map[string]*FileRef

// Get returns the populated reference of slot.
func (fs FileSet) Get(slot string) (*FileRef, bool) {
	ref, ok := fs[slot]
	if !ok || ref == nil || ref.ID == "" {
		return nil, false
	}
	return ref, true
}

// Populated returns the names of the populated slots in sorted order.
func (fs FileSet) Populated() []string {
	out := make([]string, 0, len(fs))
	for name := range fs {
		if _, ok := fs.Get(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
