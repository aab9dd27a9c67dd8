package main

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"stylex-esbuild/internal/config"
	"stylex-esbuild/internal/emit"
	"stylex-esbuild/internal/plugin"
	"stylex-esbuild/internal/stylex"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-outdir", "build",
		"-dev",
		"-filename", "css/[name].[hash].css",
		"-imports", "stylex, @acme/css",
		"-hash", "sha1",
		"-hash-len", "12",
		"src/index.tsx", "src/admin.tsx",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.outDir != "build" || !cfg.dev {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.fileName != "css/[name].[hash].css" {
		t.Fatalf("fileName = %q", cfg.fileName)
	}
	if cfg.hashFn != "sha1" || cfg.hashLen != 12 {
		t.Fatalf("hash = %q/%d", cfg.hashFn, cfg.hashLen)
	}
	if !reflect.DeepEqual(cfg.entryPoints, []string{"src/index.tsx", "src/admin.tsx"}) {
		t.Fatalf("entryPoints = %v", cfg.entryPoints)
	}
}

func TestParseFlagsNoEntrypoints(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if len(cfg.entryPoints) != 0 {
		t.Fatalf("entryPoints = %v", cfg.entryPoints)
	}
	if cfg.outDir != "dist" || cfg.format != "esm" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestParseFlagsBadModuleResolution(t *testing.T) {
	if _, err := parseFlags([]string{"-module-resolution", "esm"}); err == nil {
		t.Fatalf("bad -module-resolution accepted")
	}
}

func TestParseFlagsSplittingRequiresESM(t *testing.T) {
	if _, err := parseFlags([]string{"-splitting", "-format", "cjs"}); err == nil {
		t.Fatalf("-splitting with cjs accepted")
	}
	if _, err := parseFlags([]string{"-splitting"}); err != nil {
		t.Fatalf("-splitting with default esm rejected: %v", err)
	}
}

func TestParseFlagsNegativeHashLen(t *testing.T) {
	if _, err := parseFlags([]string{"-hash-len", "-1"}); err == nil {
		t.Fatalf("negative -hash-len accepted")
	}
	if _, err := parseFlags([]string{"-hash-len", "0"}); err != nil {
		t.Fatalf("zero -hash-len rejected: %v", err)
	}
}

// reporterHook registers watchReporter against a fake plugin surface and
// returns its end callback.
func reporterHook(t *testing.T, b *plugin.Build, out io.Writer) func(*api.BuildResult) (api.OnEndResult, error) {
	t.Helper()
	var onEnd func(*api.BuildResult) (api.OnEndResult, error)
	p := watchReporter(b, out, zerolog.Nop())
	p.Setup(api.PluginBuild{
		InitialOptions: &api.BuildOptions{},
		OnEnd:          func(fn func(*api.BuildResult) (api.OnEndResult, error)) { onEnd = fn },
	})
	if onEnd == nil {
		t.Fatalf("reporter registered no end callback")
	}
	return onEnd
}

func TestWatchReporterSurfacesErrors(t *testing.T) {
	var out bytes.Buffer
	onEnd := reporterHook(t, plugin.NewBuild(), &out)

	res, err := onEnd(&api.BuildResult{
		Errors: []api.Message{{PluginName: "stylex", Text: "process style rules: boom"}},
	})
	if err != nil || len(res.Errors) != 0 {
		t.Fatalf("reporter must not add errors: %v %v", res.Errors, err)
	}
	if !strings.Contains(out.String(), "process style rules: boom") {
		t.Fatalf("rebuild error not printed:\n%s", out.String())
	}
}

func TestWatchReporterPrintsSummary(t *testing.T) {
	b := plugin.NewBuild()
	b.SetAssets([]emit.Asset{{Bundle: "main", Name: "main.stylex.css", Hash: "deadbeef", Size: 42}})
	var out bytes.Buffer
	onEnd := reporterHook(t, b, &out)

	if _, err := onEnd(&api.BuildResult{}); err != nil {
		t.Fatalf("end: %v", err)
	}
	for _, want := range []string{"main.stylex.css", "deadbeef"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, out.String())
		}
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{" , ,", nil},
	}
	for _, tc := range cases {
		got := splitCSV(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBuildFormat(t *testing.T) {
	cases := map[string]api.Format{
		"esm":  api.FormatESModule,
		"cjs":  api.FormatCommonJS,
		"iife": api.FormatIIFE,
	}
	for name, want := range cases {
		got, err := buildFormat(name)
		if err != nil || got != want {
			t.Errorf("buildFormat(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := buildFormat("umd"); err == nil {
		t.Errorf("unknown format accepted")
	}
}

func TestBuildOptionsFlagsWinOverFile(t *testing.T) {
	fileDev := false
	file := &config.File{
		Dev:           &fileDev,
		FileName:      "file.css",
		ImportSources: []string{"@from/file"},
		Hash:          config.HashFile{Function: "md5", Length: 4},
	}
	cfg := Config{
		dev:      true,
		fileName: "flag.css",
		imports:  "@from/flag",
		hashFn:   "sha1",
		hashLen:  16,
	}
	compilerOpts, pluginOpts := buildOptions(cfg, file, "/proj")

	if !compilerOpts.Dev {
		t.Fatalf("flag -dev lost to file")
	}
	if pluginOpts.FileName != "flag.css" {
		t.Fatalf("fileName = %q", pluginOpts.FileName)
	}
	if !reflect.DeepEqual(compilerOpts.ImportSources, []string{"@from/flag"}) {
		t.Fatalf("importSources = %v", compilerOpts.ImportSources)
	}
	if pluginOpts.Hash.Function != "sha1" || pluginOpts.Hash.Length != 16 {
		t.Fatalf("hash = %+v", pluginOpts.Hash)
	}
}

func TestBuildOptionsFileFillsGaps(t *testing.T) {
	fileDev := true
	file := &config.File{
		Dev:           &fileDev,
		FileName:      "file.css",
		ImportSources: []string{"@from/file"},
		Hash:          config.HashFile{Function: "md5", Length: 4, Salt: "s"},
	}
	compilerOpts, pluginOpts := buildOptions(Config{}, file, "/proj")

	if !compilerOpts.Dev {
		t.Fatalf("file dev ignored")
	}
	if pluginOpts.FileName != "file.css" {
		t.Fatalf("fileName = %q", pluginOpts.FileName)
	}
	if !reflect.DeepEqual(compilerOpts.ImportSources, []string{"@from/file"}) {
		t.Fatalf("importSources = %v", compilerOpts.ImportSources)
	}
	want := config.HashFile{Function: "md5", Length: 4, Salt: "s"}
	got := config.HashFile{
		Function: pluginOpts.Hash.Function,
		Salt:     pluginOpts.Hash.Salt,
		Length:   pluginOpts.Hash.Length,
	}
	if got != want {
		t.Fatalf("hash = %+v, want %+v", got, want)
	}
}

func TestBuildOptionsNilFile(t *testing.T) {
	compilerOpts, pluginOpts := buildOptions(Config{}, nil, "/proj")
	if compilerOpts.Dev || pluginOpts.FileName != "" || len(compilerOpts.ImportSources) != 0 {
		t.Fatalf("unexpected defaults: %+v %+v", compilerOpts, pluginOpts)
	}
}

func TestBuildOptionsCommonJSRootDefault(t *testing.T) {
	cfg := Config{moduleRes: "commonJS"}
	compilerOpts, _ := buildOptions(cfg, nil, "/proj")
	mr := compilerOpts.ModuleResolution
	if mr == nil || mr.Type != "commonJS" || mr.RootDir != "/proj" {
		t.Fatalf("moduleResolution = %+v", mr)
	}

	cfg = Config{moduleRes: "commonJS", rootDir: "/explicit"}
	compilerOpts, _ = buildOptions(cfg, nil, "/proj")
	if compilerOpts.ModuleResolution.RootDir != "/explicit" {
		t.Fatalf("explicit rootDir lost: %+v", compilerOpts.ModuleResolution)
	}
}

func TestBuildOptionsFileModuleResolution(t *testing.T) {
	file := &config.File{
		ModuleResolution: &stylex.ModuleResolution{Type: "haste"},
	}
	compilerOpts, _ := buildOptions(Config{}, file, "/proj")
	if compilerOpts.ModuleResolution == nil || compilerOpts.ModuleResolution.Type != "haste" {
		t.Fatalf("moduleResolution = %+v", compilerOpts.ModuleResolution)
	}
}

func TestFormatSize(t *testing.T) {
	if got := formatSize(512); got != "512 B" {
		t.Fatalf("got %q", got)
	}
	if got := formatSize(2048); got != "2.0 KiB" {
		t.Fatalf("got %q", got)
	}
}
