// Package track records which output bundles each source file ended up in.
// Membership is derived from the bundler's metafile after chunking is final,
// and is rebuilt from scratch on every build so no stale entries survive a
// rebuild.
package track

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"stylex-esbuild/internal/sortutil"
)

// Membership maps an absolute source-file path to the set of bundle
// identifiers containing that file.
type Membership map[string]map[string]struct{}

// Add records that file belongs to bundle. Idempotent.
func (m Membership) Add(file, bundle string) {
	set, ok := m[file]
	if !ok {
		set = make(map[string]struct{})
		m[file] = set
	}
	set[bundle] = struct{}{}
}

// Bundles returns the bundle identifiers for file in lexicographic order,
// or nil when the file is in no bundle.
func (m Membership) Bundles(file string) []string {
	set, ok := m[file]
	if !ok {
		return nil
	}
	return sortutil.SortedKeys(set)
}

// metafile mirrors the slice of the bundler's metafile JSON we consume.
type metafile struct {
	Outputs map[string]metaOutput `json:"outputs"`
}

type metaOutput struct {
	EntryPoint string                     `json:"entryPoint"`
	Inputs     map[string]json.RawMessage `json:"inputs"`
}

// FromMetafile builds a fresh membership map from the metafile of a
// finished build. workDir absolutizes the metafile's relative input paths
// so keys line up with the transform step's file keys.
//
// Source maps and non-script outputs are ignored; inputs under a dependency
// directory (node_modules) never enter the map.
func FromMetafile(meta string, workDir string) (Membership, error) {
	var mf metafile
	if err := json.Unmarshal([]byte(meta), &mf); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}

	m := make(Membership)
	for outPath, out := range mf.Outputs {
		if !isScriptOutput(outPath) {
			continue
		}
		id := Identifier(outPath, out.EntryPoint)
		if id == "" {
			continue
		}
		for inPath := range out.Inputs {
			if inDependencyDir(inPath) {
				continue
			}
			abs := inPath
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(workDir, filepath.FromSlash(inPath))
			}
			m.Add(abs, id)
		}
	}
	return m, nil
}

// Identifier derives a stable bundle identifier for an output: the
// entrypoint's base name when the output has one, else the output's own
// base name, else a short content-hash of the output path. Empty means the
// output has no derivable identifier and should be skipped.
func Identifier(outPath, entryPoint string) string {
	if n := baseName(entryPoint); n != "" {
		return n
	}
	if n := baseName(outPath); n != "" {
		return n
	}
	if outPath == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(outPath))
	return hex.EncodeToString(sum[:4])
}

// baseName returns the file name without directory or extension.
func baseName(p string) string {
	if p == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isScriptOutput(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

// inDependencyDir reports whether the path lies inside node_modules.
func inDependencyDir(p string) bool {
	s := filepath.ToSlash(p)
	return strings.HasPrefix(s, "node_modules/") || strings.Contains(s, "/node_modules/")
}
