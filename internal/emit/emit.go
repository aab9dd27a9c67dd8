package emit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"stylex-esbuild/internal/sortutil"
	"stylex-esbuild/internal/stylex"
	"stylex-esbuild/internal/textutil"
	"stylex-esbuild/internal/track"
)

// ProcessFunc is the compiler entry point that turns an ordered rule list
// into one CSS sheet.
type ProcessFunc func(ctx context.Context, rules []stylex.Rule, useCSSLayers bool) (string, error)

// Options configures one emission pass.
type Options struct {
	Outdir       string
	Template     string // filename template; empty means DefaultTemplate
	UseCSSLayers bool
	Hash         HashConfig
	Process      ProcessFunc
	Log          zerolog.Logger
}

// Asset describes one emitted stylesheet.
type Asset struct {
	Bundle string // bundle identifier the sheet belongs to
	Name   string // resolved filename, relative to Outdir
	Path   string // absolute path on disk
	Hash   string // content hash used in the name
	Size   int    // payload size in bytes
}

// Run performs the whole emission pass: aggregate, process, hash, write.
// Bundles are visited in lexicographic order for deterministic output. Any
// failure aborts the pass; assets written before the failure stay on disk
// and the caller records the returned error as a single build error.
func Run(ctx context.Context, files []FileRules, bundles track.Membership, opts Options) ([]Asset, error) {
	if len(files) == 0 {
		return nil, nil
	}
	grouped := Aggregate(files, bundles)
	if len(grouped) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}

	var assets []Asset
	for _, bundle := range sortutil.StablePathSort(ids) {
		css, err := opts.Process(ctx, grouped[bundle], opts.UseCSSLayers)
		if err != nil {
			return assets, fmt.Errorf("bundle %s: %w", bundle, err)
		}
		payload := textutil.EnsureTrailingLF(textutil.NormalizeUTF8LF([]byte(css)))

		hashStr, err := ContentHash(opts.Hash, payload)
		if err != nil {
			return assets, fmt.Errorf("bundle %s: %w", bundle, err)
		}
		name := ResolveName(opts.Template, Chunk{ID: bundle, Name: bundle, Hash: hashStr})
		dest := filepath.Join(opts.Outdir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return assets, fmt.Errorf("bundle %s: %w", bundle, err)
		}
		if err := os.WriteFile(dest, payload, 0o644); err != nil {
			return assets, fmt.Errorf("bundle %s: %w", bundle, err)
		}

		opts.Log.Debug().
			Str("bundle", bundle).
			Str("asset", name).
			Int("bytes", len(payload)).
			Msg("emitted stylesheet")
		assets = append(assets, Asset{
			Bundle: bundle,
			Name:   name,
			Path:   dest,
			Hash:   hashStr,
			Size:   len(payload),
		})
	}
	return assets, nil
}
