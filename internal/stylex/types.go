// Package stylex wraps the StyleX Babel toolchain as an external compiler.
// The toolchain runs out of process: a small embedded ES-module shim is
// executed with Node, receives one JSON request on stdin and answers with
// one JSON response on stdout. Two operations exist:
//
//   - transform: run @stylexjs/babel-plugin over a single module, returning
//     rewritten code, a source map and the extracted style rules
//   - process-rules: turn collected rule metadata into one CSS sheet
//
// The wrapper never retries; a failed invocation is terminal for that call.
package stylex

import "encoding/json"

// DefaultImportSources are the module specifiers that mark a file as using
// the styling API when no explicit list is configured.
var DefaultImportSources = []string{"@stylexjs/stylex", "stylex"}

// ModuleResolution selects how the compiler resolves style imports between
// source files. Type is "commonJS" or "haste"; RootDir is required for
// commonJS resolution.
type ModuleResolution struct {
	Type    string `json:"type"`
	RootDir string `json:"rootDir,omitempty"`
}

// BabelOptions carries extra transform plugins/presets forwarded to Babel,
// plus the raw-config switch. With RawConfig set, Babel resolves .babelrc
// and babel.config.* files itself and the caller keeps the original module
// text (the config-driven pipeline performs the rewrite elsewhere).
type BabelOptions struct {
	Plugins   []string `json:"plugins,omitempty"`
	Presets   []string `json:"presets,omitempty"`
	RawConfig bool     `json:"rawConfig,omitempty"`
}

// Options configures the compiler for one build.
type Options struct {
	// Dev toggles development output (debug class names, no compression).
	Dev bool

	// ImportSources lists the styling import names to recognize.
	// Empty means DefaultImportSources.
	ImportSources []string

	// ModuleResolution is passed through to the Babel plugin.
	ModuleResolution *ModuleResolution

	// StyleXOptions are forwarded verbatim to the Babel plugin and may
	// override any derived option.
	StyleXOptions map[string]any

	// Babel configures the surrounding transform pipeline.
	Babel BabelOptions
}

// TransformRequest identifies one module to compile.
type TransformRequest struct {
	Filename string
	Code     string
}

// Rule is one opaque style rule as serialized by the Babel plugin. The
// wrapper never inspects rule contents; ordering is preserved end to end.
type Rule = json.RawMessage

// TransformResult is the compiler's answer for one module.
type TransformResult struct {
	Code  string `json:"code"`
	Map   string `json:"map,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}
