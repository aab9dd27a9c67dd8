// Package main provides the stylex-esbuild CLI: it bundles a JS/TS project
// with esbuild while extracting StyleX rules into one content-hashed CSS
// asset per output bundle.
//
// Usage:
//
//	stylex-esbuild [flags] <entrypoint> [entrypoint...]
//
// With no entrypoints, package.json ("module", then "main") supplies one.
// An optional stylex.config.json in the working directory provides defaults
// that flags override.
//
// Key design goals:
//   - Deterministic output (stable bundle iteration, content-hashed names)
//   - Safe cache workflow (content-addressed entries, atomic writes, -new)
//   - Clear, minimal CLI flags with sensible defaults
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"stylex-esbuild/internal/cache"
	"stylex-esbuild/internal/config"
	"stylex-esbuild/internal/emit"
	"stylex-esbuild/internal/meta"
	"stylex-esbuild/internal/plugin"
	"stylex-esbuild/internal/stylex"
)

// Config carries the parsed CLI flags.
type Config struct {
	outDir     string
	dev        bool
	watch      bool
	debug      bool
	fileName   string
	imports    string // CSV of styling import names
	useLayers  bool
	moduleRes  string // "", "commonJS", "haste"
	rootDir    string
	configPath string
	cacheRoot  string
	newCache   bool
	noCache    bool
	hashFn     string
	hashDigest string
	hashSalt   string
	hashLen    int
	metaOut    string
	minify     bool
	sourcemap  bool
	format     string
	splitting  bool

	entryPoints []string
}

// splitCSV converts a comma-separated list into a slice, trimming spaces
// and dropping empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFlags parses args into a Config. Entrypoints are the positional
// arguments; having none is allowed (package.json may supply one later).
func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("stylex-esbuild", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [flags] <entrypoint> [entrypoint...]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	var cfg Config

	// Build
	fs.StringVar(&cfg.outDir, "outdir", "dist", "output directory for bundles and stylesheets")
	fs.BoolVar(&cfg.dev, "dev", false, "development output (debug class names, readable bundles)")
	fs.BoolVar(&cfg.watch, "watch", false, "rebuild on file changes")
	fs.BoolVar(&cfg.minify, "minify", false, "minify emitted bundles")
	fs.BoolVar(&cfg.sourcemap, "sourcemap", false, "emit linked source maps")
	fs.StringVar(&cfg.format, "format", "esm", "bundle format: esm, cjs or iife")
	fs.BoolVar(&cfg.splitting, "splitting", false, "enable code splitting (esm only)")
	fs.StringVar(&cfg.metaOut, "metafile", "", "write the build metafile JSON to this path")

	// Styling
	fs.StringVar(&cfg.fileName, "filename", "", "stylesheet filename template (default \"[name].stylex.css\")")
	fs.StringVar(&cfg.imports, "imports", "", "comma-separated styling import names (default stylex, @stylexjs/stylex)")
	fs.BoolVar(&cfg.useLayers, "use-layers", false, "wrap generated CSS in cascade layers")
	fs.StringVar(&cfg.moduleRes, "module-resolution", "", "style import resolution: commonJS or haste")
	fs.StringVar(&cfg.rootDir, "root-dir", "", "project root for commonJS style resolution (default cwd)")
	fs.StringVar(&cfg.configPath, "config", "", "path to stylex.config.json (default probe cwd)")

	// Hashing
	fs.StringVar(&cfg.hashFn, "hash", "", "asset hash function: sha256, sha1 or md5 (default sha256)")
	fs.StringVar(&cfg.hashDigest, "hash-digest", "", "asset hash digest: hex or base64 (default hex)")
	fs.StringVar(&cfg.hashSalt, "hash-salt", "", "optional salt mixed into asset hashes")
	fs.IntVar(&cfg.hashLen, "hash-len", 0, "asset hash length in characters (default 8)")

	// Cache & logging
	fs.StringVar(&cfg.cacheRoot, "cache-dir", "", "base cache directory for transform results (default tmp/.sxcache)")
	fs.BoolVar(&cfg.newCache, "new", false, "reset the transform cache for this project before building")
	fs.BoolVar(&cfg.noCache, "no-cache", false, "disable the transform cache")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.entryPoints = fs.Args()

	switch cfg.moduleRes {
	case "", "commonJS", "haste":
	default:
		return Config{}, fmt.Errorf("-module-resolution must be commonJS or haste, got %q", cfg.moduleRes)
	}
	if cfg.splitting && cfg.format != "esm" {
		return Config{}, errors.New("-splitting requires -format esm")
	}
	if cfg.hashLen < 0 {
		return Config{}, fmt.Errorf("-hash-len must be >= 0, got %d", cfg.hashLen)
	}
	return cfg, nil
}

// buildFormat maps the -format flag onto the bundler's format constant.
func buildFormat(name string) (api.Format, error) {
	switch name {
	case "esm":
		return api.FormatESModule, nil
	case "cjs":
		return api.FormatCommonJS, nil
	case "iife":
		return api.FormatIIFE, nil
	}
	return api.FormatDefault, fmt.Errorf("unknown -format %q (want esm, cjs or iife)", name)
}

// buildOptions merges the config file under the CLI flags and produces the
// compiler and plugin option sets. Flags win over the file; the file wins
// over built-in defaults.
func buildOptions(cfg Config, file *config.File, root string) (stylex.Options, plugin.Options) {
	if file == nil {
		file = &config.File{}
	}

	dev := cfg.dev
	if !dev && file.Dev != nil {
		dev = *file.Dev
	}
	useLayers := cfg.useLayers
	if !useLayers && file.UseCSSLayers != nil {
		useLayers = *file.UseCSSLayers
	}
	fileName := cfg.fileName
	if fileName == "" {
		fileName = file.FileName
	}
	imports := splitCSV(cfg.imports)
	if len(imports) == 0 {
		imports = file.ImportSources
	}

	moduleRes := file.ModuleResolution
	if cfg.moduleRes != "" {
		moduleRes = &stylex.ModuleResolution{Type: cfg.moduleRes, RootDir: cfg.rootDir}
	}
	if moduleRes != nil && moduleRes.Type == "commonJS" && moduleRes.RootDir == "" {
		moduleRes.RootDir = root
	}

	hash := emit.HashConfig{
		Function: firstNonEmpty(cfg.hashFn, file.Hash.Function),
		Digest:   firstNonEmpty(cfg.hashDigest, file.Hash.Digest),
		Salt:     firstNonEmpty(cfg.hashSalt, file.Hash.Salt),
		Length:   cfg.hashLen,
	}
	if hash.Length == 0 {
		hash.Length = file.Hash.Length
	}

	compilerOpts := stylex.Options{
		Dev:              dev,
		ImportSources:    imports,
		ModuleResolution: moduleRes,
		StyleXOptions:    file.StyleXOptions,
		Babel:            file.Babel,
	}
	pluginOpts := plugin.Options{
		FileName:      fileName,
		ImportSources: imports,
		RawConfig:     file.Babel.RawConfig,
		UseCSSLayers:  useLayers,
		Hash:          hash,
	}
	return compilerOpts, pluginOpts
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func run(cfg Config) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	configPath := cfg.configPath
	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultFileName)
	}
	file, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if file != nil {
		logger.Debug().Str("config", configPath).Msg("loaded config file")
	}

	entryPoints := cfg.entryPoints
	projectName := filepath.Base(root)
	if info := meta.Detect(root); info.Name != "" {
		projectName = info.Name
		if len(entryPoints) == 0 {
			entryPoints = info.Entrypoints
		}
	}
	if len(entryPoints) == 0 {
		return errors.New("no entrypoints: pass at least one or declare module/main in package.json")
	}

	var store *cache.Store
	if !cfg.noCache {
		dir := cache.Dir(cfg.cacheRoot, root)
		if cfg.newCache {
			_ = cache.Clear(dir)
		}
		store, err = cache.Open(dir, 0)
		if err != nil {
			return fmt.Errorf("open transform cache: %w", err)
		}
	}

	compilerOpts, pluginOpts := buildOptions(cfg, file, root)
	pluginOpts.Log = logger

	compiler, err := stylex.NewCompiler(root, compilerOpts, store, logger)
	if err != nil {
		return err
	}

	format, err := buildFormat(cfg.format)
	if err != nil {
		return err
	}

	b := plugin.NewBuild()
	plugins := []api.Plugin{plugin.New(compiler, b, pluginOpts)}
	if cfg.watch {
		plugins = append(plugins, watchReporter(b, os.Stderr, logger))
	}
	buildOpts := api.BuildOptions{
		EntryPoints:       entryPoints,
		AbsWorkingDir:     root,
		Outdir:            cfg.outDir,
		Bundle:            true,
		Write:             true,
		Metafile:          true,
		Format:            format,
		Splitting:         cfg.splitting,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  cfg.minify,
		MinifyIdentifiers: cfg.minify,
		MinifySyntax:      cfg.minify,
		Plugins:           plugins,
	}
	if cfg.sourcemap {
		buildOpts.Sourcemap = api.SourceMapLinked
	}

	logger.Info().
		Str("project", projectName).
		Strs("entrypoints", entryPoints).
		Str("outdir", cfg.outDir).
		Bool("dev", compilerOpts.Dev).
		Msg("starting build")

	if cfg.watch {
		return runWatch(buildOpts, logger)
	}

	result := api.Build(buildOpts)
	printMessages(os.Stderr, result.Errors, result.Warnings)
	if cfg.metaOut != "" && result.Metafile != "" {
		if err := os.WriteFile(cfg.metaOut, []byte(result.Metafile), 0o644); err != nil {
			return fmt.Errorf("write metafile: %w", err)
		}
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("build failed with %d error(s)", len(result.Errors))
	}

	printSummary(os.Stdout, b.Assets())
	return nil
}

// runWatch keeps a build context alive until interrupted. Rebuild output
// (including stylesheet re-emission) flows through the plugin on every
// change.
func runWatch(buildOpts api.BuildOptions, logger zerolog.Logger) error {
	ctx, ctxErr := api.Context(buildOpts)
	if ctxErr != nil {
		printMessages(os.Stderr, ctxErr.Errors, nil)
		return errors.New("invalid build configuration")
	}
	defer ctx.Dispose()

	if err := ctx.Watch(api.WatchOptions{}); err != nil {
		return err
	}
	logger.Info().Msg("watching for changes (ctrl-c to stop)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("stopping watch")
	return nil
}

func printMessages(w io.Writer, errs, warns []api.Message) {
	for _, m := range api.FormatMessages(warns, api.FormatMessagesOptions{Kind: api.WarningMessage, Color: true}) {
		fmt.Fprint(w, m)
	}
	for _, m := range api.FormatMessages(errs, api.FormatMessagesOptions{Kind: api.ErrorMessage, Color: true}) {
		fmt.Fprint(w, m)
	}
}

// printSummary renders the emitted stylesheet assets as a table.
func printSummary(w io.Writer, assets []emit.Asset) {
	if len(assets) == 0 {
		fmt.Fprintln(w, "No style rules extracted; no stylesheets emitted.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Bundle", "Asset", "Size", "Hash"})
	for _, a := range assets {
		table.Append([]string{a.Bundle, a.Name, formatSize(a.Size), a.Hash})
	}
	table.Render()
}

// watchReporter surfaces rebuild outcomes in watch mode. The bundler's own
// logger stays silent, so without this plugin rebuild errors (including the
// stylesheet emission error) and the asset summary would never reach the
// terminal. It must be registered after the styling plugin: end callbacks
// run in registration order and errors returned by earlier plugins are
// folded into the shared result before later callbacks see it.
func watchReporter(b *plugin.Build, out io.Writer, logger zerolog.Logger) api.Plugin {
	return api.Plugin{
		Name: "watch-report",
		Setup: func(pb api.PluginBuild) {
			pb.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				printMessages(out, result.Errors, result.Warnings)
				if len(result.Errors) > 0 {
					logger.Error().Int("errors", len(result.Errors)).Msg("rebuild failed")
					return api.OnEndResult{}, nil
				}
				logger.Info().Msg("rebuild finished")
				printSummary(out, b.Assets())
				return api.OnEndResult{}, nil
			})
		},
	}
}

func formatSize(n int) string {
	if n < 1024 {
		return strconv.Itoa(n) + " B"
	}
	return fmt.Sprintf("%.1f KiB", float64(n)/1024)
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
