// Package structure holds the crystal structure decoded from its tagged
// dictionary form.
package structure

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/flowdb/pkg/mson"
)

const (
	Module        = "pymatgen.core.structure"
	Class         = "Structure"
	LatticeModule = "pymatgen.core.lattice"
	LatticeClass  = "Lattice"
)

type Lattice struct {
	Matrix [3][3]float64
}

// Volume is the absolute value of the triple product of the lattice vectors.
func (l Lattice) Volume() float64 {
	a, b, c := l.Matrix[0], l.Matrix[1], l.Matrix[2]
	cross := [3]float64{
		b[1]*c[2] - b[2]*c[1],
		b[2]*c[0] - b[0]*c[2],
		b[0]*c[1] - b[1]*c[0],
	}
	return math.Abs(a[0]*cross[0] + a[1]*cross[1] + a[2]*cross[2])
}

type Specie struct {
	Element   string
	Occupancy float64
}

type Site struct {
	Species []Specie
	Frac    [3]float64
	Label   string
}

type Structure struct {
	Lattice Lattice
	Sites   []Site
	Charge  float64
}

func (s *Structure) NumSites() int { return len(s.Sites) }

func (s *Structure) Volume() float64 { return s.Lattice.Volume() }

// Composition sums site occupancies per element.
func (s *Structure) Composition() map[string]float64 {
	out := make(map[string]float64)
	for _, site := range s.Sites {
		for _, sp := range site.Species {
			out[sp.Element] += sp.Occupancy
		}
	}
	return out
}

// Formula renders the composition with elements in alphabetical order,
// e.g. "O2 Si1".
func (s *Structure) Formula() string {
	comp := s.Composition()
	elems := make([]string, 0, len(comp))
	for el := range comp {
		elems = append(elems, el)
	}
	sort.Strings(elems)
	parts := make([]string, 0, len(elems))
	for _, el := range elems {
		parts = append(parts, el+strconv.FormatFloat(comp[el], 'g', -1, 64))
	}
	return strings.Join(parts, " ")
}

// Register installs the structure and lattice decoders in reg.
func Register(reg *mson.Registry) {
	reg.Register(Module, Class, decodeStructure)
	reg.Register(LatticeModule, LatticeClass, decodeLattice)
}

func decodeLattice(d map[string]any, _ *mson.Registry) (any, error) {
	return parseLattice(d)
}

func parseLattice(d map[string]any) (Lattice, error) {
	var l Lattice
	rows, ok := d["matrix"].([]any)
	if !ok || len(rows) != 3 {
		return l, fmt.Errorf("lattice matrix must have 3 rows")
	}
	for i, row := range rows {
		vec, err := vector3(row)
		if err != nil {
			return l, fmt.Errorf("lattice row %d: %w", i, err)
		}
		l.Matrix[i] = vec
	}
	return l, nil
}

func decodeStructure(d map[string]any, _ *mson.Registry) (any, error) {
	s := &Structure{}
	ld, ok := d["lattice"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing lattice")
	}
	lat, err := parseLattice(ld)
	if err != nil {
		return nil, err
	}
	s.Lattice = lat
	if v, ok := d["charge"]; ok && v != nil {
		c, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("charge: %w", err)
		}
		s.Charge = c
	}
	rawSites, _ := d["sites"].([]any)
	for i, rs := range rawSites {
		sd, ok := rs.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("site %d is not a mapping", i)
		}
		site, err := parseSite(sd)
		if err != nil {
			return nil, fmt.Errorf("site %d: %w", i, err)
		}
		s.Sites = append(s.Sites, site)
	}
	return s, nil
}

func parseSite(d map[string]any) (Site, error) {
	var site Site
	abc, err := vector3(d["abc"])
	if err != nil {
		return site, fmt.Errorf("abc: %w", err)
	}
	site.Frac = abc
	site.Label, _ = d["label"].(string)
	species, _ := d["species"].([]any)
	for _, raw := range species {
		sp, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		el, _ := sp["element"].(string)
		occu := 1.0
		if v, ok := sp["occu"]; ok {
			if occu, err = toFloat(v); err != nil {
				return site, fmt.Errorf("occu: %w", err)
			}
		}
		site.Species = append(site.Species, Specie{Element: el, Occupancy: occu})
	}
	if len(site.Species) == 0 {
		return site, fmt.Errorf("no species")
	}
	if site.Label == "" {
		site.Label = site.Species[0].Element
	}
	return site, nil
}

func vector3(v any) ([3]float64, error) {
	var out [3]float64
	items, ok := v.([]any)
	if !ok || len(items) != 3 {
		return out, fmt.Errorf("expected a list of 3 numbers")
	}
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
