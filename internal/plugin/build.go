package plugin

import (
	"sync"

	"stylex-esbuild/internal/emit"
	"stylex-esbuild/internal/stylex"
	"stylex-esbuild/internal/track"
)

// Build is the per-build context owning the two bookkeeping maps. The
// transform step may run concurrently across modules, each writing only its
// own file key; the mutex keeps the keyed writes and the insertion-order
// list consistent. Tracking and emission run strictly after module loading,
// so they observe a stable map.
//
// Across watch-mode rebuilds the rules map persists: an incremental rebuild
// only re-transforms changed modules, and dropping rules for untouched ones
// would empty their stylesheets. Bundle membership, by contrast, is fully
// replaced at every build end.
type Build struct {
	mu      sync.Mutex
	rules   map[string][]stylex.Rule
	order   []string
	bundles track.Membership
	assets  []emit.Asset
}

// NewBuild returns an empty build context.
func NewBuild() *Build {
	return &Build{
		rules:   make(map[string][]stylex.Rule),
		bundles: make(track.Membership),
	}
}

// SetRules records the rules extracted from one file, overwriting any prior
// entry for the same path. A file keeps its original position in the
// recording order when overwritten.
func (b *Build) SetRules(path string, rules []stylex.Rule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.rules[path]; !seen {
		b.order = append(b.order, path)
	}
	b.rules[path] = rules
}

// Rules snapshots the recorded rules in insertion order.
func (b *Build) Rules() []emit.FileRules {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]emit.FileRules, 0, len(b.order))
	for _, path := range b.order {
		out = append(out, emit.FileRules{Path: path, Rules: b.rules[path]})
	}
	return out
}

// ReplaceBundles swaps in freshly tracked membership, discarding all prior
// entries.
func (b *Build) ReplaceBundles(m track.Membership) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m == nil {
		m = make(track.Membership)
	}
	b.bundles = m
}

// Bundles returns the current membership map.
func (b *Build) Bundles() track.Membership {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bundles
}

// SetAssets records the assets emitted by the latest build.
func (b *Build) SetAssets(assets []emit.Asset) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assets = assets
}

// Assets returns the assets emitted by the latest build.
func (b *Build) Assets() []emit.Asset {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assets
}
