package mson

// Dict is a generic key-value document that may carry a type tag.
// It is stored as is; Decode is the explicit read path.
type Dict map[string]any

// Type returns the tag of the dictionary.
func (d Dict) Type() (module, class string, err error) {
	return TypeOf(d)
}

// Decode rebuilds the concrete value through reg.
func (d Dict) Decode(reg *Registry) (any, error) {
	return reg.Decode(d)
}
