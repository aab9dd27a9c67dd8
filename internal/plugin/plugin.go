// Package plugin integrates StyleX extraction into an esbuild build. It
// registers a load hook ahead of the default loaders for every recognized
// source extension, runs matching modules through the external compiler,
// and at build end joins the collected rules with bundle membership to emit
// one hashed stylesheet per bundle.
package plugin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"stylex-esbuild/internal/emit"
	"stylex-esbuild/internal/stylex"
	"stylex-esbuild/internal/track"
)

// Name identifies the plugin in build messages.
const Name = "stylex"

// sourceFilter matches the extensions the interceptor claims. Everything
// else is left to the default loaders.
const sourceFilter = `\.(mjs|cjs|jsx?|mts|cts|tsx?)$`

// Compiler is the narrow surface of the external toolchain the plugin
// needs.
type Compiler interface {
	Transform(ctx context.Context, req stylex.TransformRequest) (*stylex.TransformResult, error)
	ProcessRules(ctx context.Context, rules []stylex.Rule, useCSSLayers bool) (string, error)
}

// Options configures the plugin for one build.
type Options struct {
	// FileName is the stylesheet filename template; empty means
	// emit.DefaultTemplate.
	FileName string

	// ImportSources lists the styling import names gating the transform.
	// Empty means stylex.DefaultImportSources.
	ImportSources []string

	// RawConfig returns the original module text from the load hook; the
	// Babel config files drive the rewrite elsewhere in that mode.
	RawConfig bool

	// UseCSSLayers is forwarded to the rule processor.
	UseCSSLayers bool

	// Hash selects the asset content-hash configuration.
	Hash emit.HashConfig

	Log zerolog.Logger
}

// New builds the esbuild plugin. The build context b survives the plugin
// and is where callers read emitted assets from after the build.
func New(comp Compiler, b *Build, opts Options) api.Plugin {
	return api.Plugin{
		Name: Name,
		Setup: func(pb api.PluginBuild) {
			setup(pb, comp, b, opts)
		},
	}
}

func setup(pb api.PluginBuild, comp Compiler, b *Build, opts Options) {
	// Membership tracking needs the metafile regardless of what the caller
	// configured.
	pb.InitialOptions.Metafile = true

	workDir := pb.InitialOptions.AbsWorkingDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	outDir := pb.InitialOptions.Outdir
	if outDir == "" && pb.InitialOptions.Outfile != "" {
		outDir = filepath.Dir(pb.InitialOptions.Outfile)
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(workDir, outDir)
	}
	withMaps := pb.InitialOptions.Sourcemap != api.SourceMapNone

	pb.OnLoad(api.OnLoadOptions{Filter: sourceFilter}, loadHandler(comp, b, opts, withMaps))
	pb.OnEnd(endHandler(comp, b, opts, workDir, outDir))
}

// loadHandler returns the transformation step. Files that never mention a
// styling import are handed back untouched (empty result, default loading
// continues); compiler failures propagate so the build reports them against
// the offending module.
func loadHandler(comp Compiler, b *Build, opts Options, withMaps bool) func(api.OnLoadArgs) (api.OnLoadResult, error) {
	imports := opts.ImportSources
	return func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		raw, err := os.ReadFile(args.Path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		code := string(raw)
		if !stylex.NeedsTransform(code, imports) {
			return api.OnLoadResult{}, nil
		}

		res, err := comp.Transform(context.Background(), stylex.TransformRequest{
			Filename: args.Path,
			Code:     code,
		})
		if err != nil {
			return api.OnLoadResult{}, err
		}

		if len(res.Rules) > 0 {
			b.SetRules(args.Path, res.Rules)
			if payload, err := json.Marshal(res.Rules); err == nil {
				opts.Log.Debug().
					Str("file", args.Path).
					RawJSON("rules", payload).
					Msg("extracted style rules")
			}
		}

		contents := res.Code
		if opts.RawConfig {
			contents = code
		} else if withMaps && res.Map != "" {
			contents += inlineMap(res.Map)
		}
		return api.OnLoadResult{
			Contents:   &contents,
			Loader:     loaderFor(args.Path),
			ResolveDir: filepath.Dir(args.Path),
		}, nil
	}
}

// endHandler runs tracking, aggregation and emission once chunking is
// final. The whole pass sits behind one error boundary: a failure becomes a
// single build error instead of crashing the build.
func endHandler(comp Compiler, b *Build, opts Options, workDir, outDir string) func(*api.BuildResult) (api.OnEndResult, error) {
	return func(result *api.BuildResult) (api.OnEndResult, error) {
		b.SetAssets(nil)
		if len(result.Errors) > 0 {
			return api.OnEndResult{}, nil
		}

		membership, err := track.FromMetafile(result.Metafile, workDir)
		if err != nil {
			return buildError(err), nil
		}
		b.ReplaceBundles(membership)

		assets, err := emit.Run(context.Background(), b.Rules(), membership, emit.Options{
			Outdir:       outDir,
			Template:     opts.FileName,
			UseCSSLayers: opts.UseCSSLayers,
			Hash:         opts.Hash,
			Process:      comp.ProcessRules,
			Log:          opts.Log,
		})
		b.SetAssets(assets)
		if err != nil {
			return buildError(err), nil
		}
		return api.OnEndResult{}, nil
	}
}

func buildError(err error) api.OnEndResult {
	return api.OnEndResult{
		Errors: []api.Message{{PluginName: Name, Text: err.Error()}},
	}
}

// loaderFor picks the loader for transformed output. The compiler only
// enables syntax parsing, so JSX and type annotations survive the rewrite
// and the loader must still accept them.
func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJSX
	}
}

// inlineMap encodes a source map as an inline sourceMappingURL comment.
func inlineMap(sourceMap string) string {
	return "\n//# sourceMappingURL=data:application/json;base64," +
		base64.StdEncoding.EncodeToString([]byte(sourceMap))
}
