// Package meta probes a project for build metadata. Only package.json is
// consulted; parsing is best-effort and tolerates partial or absent files.
package meta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Info is a minimal summary of the probed project.
type Info struct {
	Name        string   // package name (best-effort)
	Entrypoints []string // e.g. ["src/index.ts"], from "module" then "main"
}

// Detect reads <root>/package.json and extracts defaults for a build. An
// unreadable or malformed file yields a zero Info.
func Detect(root string) Info {
	absRoot, _ := filepath.Abs(root)
	b, err := os.ReadFile(filepath.Join(absRoot, "package.json"))
	if err != nil {
		return Info{}
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return Info{}
	}

	name := strField(obj, "name")
	if name == "" {
		name = filepath.Base(absRoot)
	}

	// Prefer "module" (ESM), then "main" (CJS).
	entry := strField(obj, "module")
	if entry == "" {
		entry = strField(obj, "main")
	}
	var entries []string
	if entry != "" {
		entries = []string{entry}
	}
	return Info{Name: name, Entrypoints: entries}
}

func strField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
