package stylex

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stylex-esbuild/internal/cache"
)

// compileTimeout bounds a single shim invocation.
const compileTimeout = 30 * time.Second

// Compiler invokes the StyleX Babel toolchain through Node. A Compiler is
// safe for concurrent use: every call spawns its own process and the
// optional cache store synchronizes internally.
type Compiler struct {
	nodePath string
	shimPath string
	opts     Options
	optsFP   string
	store    *cache.Store
	log      zerolog.Logger
}

// NewCompiler locates Node, materializes the shim under root and returns a
// ready compiler. store may be nil to disable transform caching.
func NewCompiler(root string, opts Options, store *cache.Store, logger zerolog.Logger) (*Compiler, error) {
	nodePath, err := findNode()
	if err != nil {
		return nil, err
	}
	shimPath, err := materializeShim(root)
	if err != nil {
		return nil, fmt.Errorf("materialize compiler shim: %w", err)
	}
	if len(opts.ImportSources) == 0 {
		opts.ImportSources = DefaultImportSources
	}
	c := &Compiler{
		nodePath: nodePath,
		shimPath: shimPath,
		opts:     opts,
		store:    store,
		log:      logger,
	}
	c.optsFP = c.fingerprint()
	return c, nil
}

// findNode resolves the Node executable from PATH, then common install
// locations.
func findNode() (string, error) {
	if p, err := exec.LookPath("node"); err == nil {
		return p, nil
	}
	commonPaths := []string{
		"/usr/local/bin/node",
		"/usr/bin/node",
		"/opt/homebrew/bin/node",
		"/home/linuxbrew/.linuxbrew/bin/node",
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("node executable not found in PATH or common locations")
}

// transformPayload is the wire form of a transform request.
type transformPayload struct {
	Op               string            `json:"op"`
	Filename         string            `json:"filename"`
	Code             string            `json:"code"`
	Dev              bool              `json:"dev"`
	ImportSources    []string          `json:"importSources"`
	ModuleResolution *ModuleResolution `json:"moduleResolution,omitempty"`
	StyleXOptions    map[string]any    `json:"styleXOptions,omitempty"`
	Babel            BabelOptions      `json:"babel"`
}

// processPayload is the wire form of a process-rules request.
type processPayload struct {
	Op           string `json:"op"`
	Rules        []Rule `json:"rules"`
	UseCSSLayers bool   `json:"useCSSLayers"`
}

// shimResponse covers both operations; unused fields stay empty.
type shimResponse struct {
	Code  string `json:"code"`
	Map   string `json:"map"`
	Rules []Rule `json:"rules"`
	CSS   string `json:"css"`
	Error string `json:"error"`
}

// Transform compiles one module. The cache is consulted first, keyed by the
// module path and content plus the compiler option fingerprint.
func (c *Compiler) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	key := c.cacheKey(req.Filename, req.Code)
	if c.store != nil {
		if e, ok := c.store.Get(key); ok {
			c.log.Debug().Str("file", req.Filename).Msg("transform cache hit")
			return &TransformResult{Code: e.Code, Map: e.Map, Rules: e.Rules}, nil
		}
	}

	out, err := c.invoke(ctx, transformPayload{
		Op:               "transform",
		Filename:         req.Filename,
		Code:             req.Code,
		Dev:              c.opts.Dev,
		ImportSources:    c.opts.ImportSources,
		ModuleResolution: c.opts.ModuleResolution,
		StyleXOptions:    c.opts.StyleXOptions,
		Babel:            c.opts.Babel,
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Filename, err)
	}
	res := &TransformResult{Code: out.Code, Map: out.Map, Rules: out.Rules}
	if c.store != nil {
		if err := c.store.Put(key, &cache.Entry{Code: res.Code, Map: res.Map, Rules: res.Rules}); err != nil {
			c.log.Debug().Err(err).Str("file", req.Filename).Msg("transform cache write failed")
		}
	}
	return res, nil
}

// ProcessRules turns collected rule metadata into one CSS sheet.
func (c *Compiler) ProcessRules(ctx context.Context, rules []Rule, useCSSLayers bool) (string, error) {
	out, err := c.invoke(ctx, processPayload{
		Op:           "process-rules",
		Rules:        rules,
		UseCSSLayers: useCSSLayers,
	})
	if err != nil {
		return "", fmt.Errorf("process style rules: %w", err)
	}
	return out.CSS, nil
}

// invoke runs the shim once: request JSON on stdin, response JSON on stdout.
func (c *Compiler) invoke(ctx context.Context, payload any) (*shimResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.nodePath, c.shimPath)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	c.log.Debug().
		Str("shim", c.shimPath).
		Dur("elapsed", time.Since(start)).
		Msg("compiler invocation finished")

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("compiler timeout after %s", compileTimeout)
	}

	// The shim reports structured errors on stdout even when it exits
	// non-zero; prefer those over raw stderr.
	var resp shimResponse
	if jsonErr := json.Unmarshal(stdout.Bytes(), &resp); jsonErr == nil {
		if resp.Error != "" {
			return nil, fmt.Errorf("%s", cleanCompileError(resp.Error))
		}
		if runErr == nil {
			return &resp, nil
		}
	}
	if runErr != nil {
		msg := stderr.String()
		if msg == "" {
			msg = stdout.String()
		}
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, fmt.Errorf("%s", cleanCompileError(msg))
	}
	return nil, fmt.Errorf("malformed compiler response: %q", truncate(stdout.String(), 200))
}

// fingerprint digests the option set that affects transform output, so the
// cache key changes whenever options do.
func (c *Compiler) fingerprint() string {
	b, _ := json.Marshal(struct {
		Dev              bool
		ImportSources    []string
		ModuleResolution *ModuleResolution
		StyleXOptions    map[string]any
		Babel            BabelOptions
	}{c.opts.Dev, c.opts.ImportSources, c.opts.ModuleResolution, c.opts.StyleXOptions, c.opts.Babel})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// cacheKey combines the option fingerprint, the module path and the module
// content. The path participates because compiled output depends on it: dev
// class names embed the source filename, commonJS module resolution derives
// variable identity from the defining file, and the source map names it. A
// zero byte separates the variable-length parts.
func (c *Compiler) cacheKey(filename, code string) string {
	h := sha256.New()
	h.Write([]byte(c.optsFP))
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

var (
	reShimPath = regexp.MustCompile(`(/[^\s:]+/)?stylex-shim\.mjs:?\d*`)
	reNodeAt   = regexp.MustCompile(`(?m)^\s*at .*$`)
)

// cleanCompileError strips shim paths and stack-trace noise from Node
// output, keeping the lines a developer actually needs.
func cleanCompileError(msg string) string {
	msg = reShimPath.ReplaceAllString(msg, "")
	msg = reNodeAt.ReplaceAllString(msg, "")

	lines := strings.Split(msg, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return strings.TrimSpace(msg)
	}
	return strings.Join(kept, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
