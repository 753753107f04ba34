package workdir

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Dir is an output directory.
type Dir string

// HasAbiExt returns the file of d whose name ends with _<ext> (or with
// _<ext>.nc), "" when there is none. More than one candidate is an error.
func (d Dir) HasAbiExt(ext string) (string, error) {
	if ext != "abo" && !strings.HasPrefix(ext, "_") {
		ext = "_" + ext
	}
	names, err := d.list()
	if err != nil {
		return "", err
	}

	var files []string
	for _, name := range names {
		switch {
		case ext == "_DDB" && strings.HasSuffix(name, ".nc"):
			continue
		case ext == "_DDK" && strings.HasSuffix(name, ".nc"):
			continue
		case ext == "_MDF" && !strings.HasSuffix(name, ".nc"):
			continue
		}
		if strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".nc") {
			files = append(files, name)
		}
	}
	// Some files do not follow the suffix convention, e.g. 1WF.
	if len(files) == 0 {
		for _, name := range names {
			if ok, _ := path.Match("*"+ext+"*", name); ok {
				files = append(files, name)
			}
		}
	}

	switch len(files) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(string(d), files[0]), nil
	default:
		return "", fmt.Errorf("%s: found %d files with extension %s: %s", d, len(files), ext, strings.Join(files, ", "))
	}
}

func (d Dir) list() ([]string, error) {
	entries, err := os.ReadDir(string(d))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
