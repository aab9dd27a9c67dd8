package stylex

import (
	_ "embed"
	"os"
	"path/filepath"
)

//go:embed transform.mjs
var shimSource []byte

// materializeShim writes the embedded shim under the project's
// node_modules/.cache so Node's ESM resolution finds @babel/core and
// @stylexjs/babel-plugin by climbing from the script's own directory.
// The file is overwritten on every call; it is content-stable per release.
func materializeShim(root string) (string, error) {
	dir := filepath.Join(root, "node_modules", ".cache", "stylex-esbuild")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "stylex-shim.mjs")
	if err := os.WriteFile(path, shimSource, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
