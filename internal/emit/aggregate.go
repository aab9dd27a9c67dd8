// Package emit turns per-file style rules into one stylesheet asset per
// output bundle: it joins rule records with bundle membership, hands each
// bundle's rule list to the compiler's rule processor, and writes the
// resulting CSS under a content-hashed, template-resolved filename.
package emit

import (
	"stylex-esbuild/internal/stylex"
	"stylex-esbuild/internal/track"
)

// FileRules pairs one source file with the rules extracted from it, in the
// order the compiler emitted them.
type FileRules struct {
	Path  string
	Rules []stylex.Rule
}

// Aggregate joins per-file rules with bundle membership. Files are iterated
// in the given order (rule-recording order, not sorted) and a file's rules
// are appended to every bundle it belongs to. Files with no recorded
// membership, such as modules the bundler dropped, contribute nothing.
func Aggregate(files []FileRules, bundles track.Membership) map[string][]stylex.Rule {
	out := make(map[string][]stylex.Rule)
	for _, f := range files {
		for _, b := range bundles.Bundles(f.Path) {
			out[b] = append(out[b], f.Rules...)
		}
	}
	return out
}
