package stylex

import "strings"

// NeedsTransform reports whether the raw module text mentions any of the
// configured styling import names. This is a cheap substring heuristic, not
// import-graph analysis: it only gates whether the compiler is invoked at
// all, and the compiler's own module resolution stays authoritative for
// what actually gets transformed.
func NeedsTransform(code string, importSources []string) bool {
	if len(importSources) == 0 {
		importSources = DefaultImportSources
	}
	for _, name := range importSources {
		if name == "" {
			continue
		}
		if strings.Contains(code, name) {
			return true
		}
	}
	return false
}
