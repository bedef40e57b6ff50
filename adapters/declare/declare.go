// Package declare loads declared warehouse and resource monitor
// configuration from HCL, YAML and JSON files.
package declare

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"snowops/core/reconcile"
	"snowops/internal/errors"
)

// Format identifies a declaration file syntax
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// Loader reads declarations from a file or a directory of files.
type Loader struct {
	vars map[string]string
}

// NewLoader creates a loader. vars are the values referenced as var.<name>
// in HCL files; they override variable block defaults.
func NewLoader(vars map[string]string) *Loader {
	return &Loader{vars: vars}
}

// Load reads path. A directory is walked and every recognized file is
// loaded in lexical order.
func (l *Loader) Load(path string) (reconcile.DesiredState, error) {
	files, err := discover(path)
	if err != nil {
		return reconcile.DesiredState{}, err
	}

	var hclFiles []string
	for _, file := range files {
		if format, _ := FormatOf(file); format == FormatHCL {
			hclFiles = append(hclFiles, file)
		}
	}
	hclDec := newHCLDecoder(l.vars)
	if len(hclFiles) > 0 {
		if err := hclDec.parse(hclFiles); err != nil {
			return reconcile.DesiredState{}, err
		}
	}

	var state reconcile.DesiredState
	for _, file := range files {
		var d reconcile.DesiredState
		format, _ := FormatOf(file)
		switch format {
		case FormatHCL:
			d, err = hclDec.decodeFile(file)
		case FormatYAML:
			d, err = loadYAML(file)
		case FormatJSON:
			d, err = loadJSON(file)
		}
		if err != nil {
			return reconcile.DesiredState{}, err
		}
		state = state.Merge(d)
	}
	return state, nil
}

func discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Configf("cannot read declarations at %s: %v", path, err)
	}
	if !info.IsDir() {
		if _, ok := FormatOf(path); !ok {
			return nil, errors.Configf("%s: unrecognized declaration format (want .hcl, .yaml, .yml or .json)", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != path && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := FormatOf(p); ok {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to walk "+path, err)
	}
	if len(files) == 0 {
		return nil, errors.Configf("no declaration files under %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// ParseVars reads k=v pairs as given to --var.
func ParseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Configf("invalid --var %q: want name=value", pair)
		}
		vars[k] = v
	}
	return vars, nil
}

func parseError(file string, cause error) error {
	return errors.Validation(fmt.Sprintf("cannot parse %s", file), cause)
}
