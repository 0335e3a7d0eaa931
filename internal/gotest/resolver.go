package gotest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// Resolver maps an import path to the directory holding its sources.
type Resolver interface {
	Dir(pkg string) (string, bool)
}

// ModuleResolver resolves packages of a single module.
type ModuleResolver struct {
	root       string
	modulePath string
}

// NewModuleResolver reads go.mod in root.
func NewModuleResolver(root string) (*ModuleResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module root: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(abs, "go.mod"))
	if err != nil {
		return nil, fmt.Errorf("failed to read go.mod: %w", err)
	}
	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return nil, fmt.Errorf("no module directive in %s", filepath.Join(abs, "go.mod"))
	}
	return &ModuleResolver{root: abs, modulePath: modPath}, nil
}

// FindModuleRoot walks up from dir to the nearest directory containing go.mod.
func FindModuleRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found above %s", dir)
		}
		dir = parent
	}
}

// ModulePath returns the module path declared in go.mod.
func (m *ModuleResolver) ModulePath() string { return m.modulePath }

// Dir returns the source directory of pkg when it belongs to this module.
func (m *ModuleResolver) Dir(pkg string) (string, bool) {
	if pkg == m.modulePath {
		return m.root, true
	}
	rest, ok := strings.CutPrefix(pkg, m.modulePath+"/")
	if !ok {
		return "", false
	}
	return filepath.Join(m.root, filepath.FromSlash(rest)), true
}
