package track

import (
	"path/filepath"
	"reflect"
	"testing"
)

const sampleMetafile = `{
  "inputs": {},
  "outputs": {
    "dist/main.js": {
      "entryPoint": "src/main.tsx",
      "inputs": {
        "src/main.tsx": {"bytesInOutput": 100},
        "src/button.tsx": {"bytesInOutput": 50},
        "node_modules/react/index.js": {"bytesInOutput": 900}
      }
    },
    "dist/main.js.map": {
      "inputs": {"src/main.tsx": {"bytesInOutput": 1}}
    },
    "dist/chunk-ABCD1234.js": {
      "inputs": {
        "src/button.tsx": {"bytesInOutput": 50}
      }
    },
    "dist/main.css": {
      "inputs": {"src/theme.css": {"bytesInOutput": 10}}
    }
  }
}`

func TestFromMetafileMembership(t *testing.T) {
	m, err := FromMetafile(sampleMetafile, "/proj")
	if err != nil {
		t.Fatalf("FromMetafile: %v", err)
	}

	mainTSX := filepath.Join("/proj", "src", "main.tsx")
	buttonTSX := filepath.Join("/proj", "src", "button.tsx")

	if got := m.Bundles(mainTSX); !reflect.DeepEqual(got, []string{"main"}) {
		t.Fatalf("main.tsx bundles = %v", got)
	}
	// button.tsx lands in the entry bundle and a shared chunk.
	if got := m.Bundles(buttonTSX); !reflect.DeepEqual(got, []string{"chunk-ABCD1234", "main"}) {
		t.Fatalf("button.tsx bundles = %v", got)
	}
}

func TestFromMetafileSkipsDependencies(t *testing.T) {
	m, err := FromMetafile(sampleMetafile, "/proj")
	if err != nil {
		t.Fatalf("FromMetafile: %v", err)
	}
	dep := filepath.Join("/proj", "node_modules", "react", "index.js")
	if got := m.Bundles(dep); got != nil {
		t.Fatalf("dependency file tracked: %v", got)
	}
}

func TestFromMetafileSkipsNonScriptOutputs(t *testing.T) {
	m, err := FromMetafile(sampleMetafile, "/proj")
	if err != nil {
		t.Fatalf("FromMetafile: %v", err)
	}
	theme := filepath.Join("/proj", "src", "theme.css")
	if got := m.Bundles(theme); got != nil {
		t.Fatalf("css output input tracked: %v", got)
	}
	for file := range m {
		for bundle := range m[file] {
			if bundle == "main.js" {
				t.Fatalf("source map output leaked as bundle %q for %s", bundle, file)
			}
		}
	}
}

func TestFromMetafileMalformed(t *testing.T) {
	if _, err := FromMetafile("{not json", "/proj"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMembershipAddIdempotent(t *testing.T) {
	m := make(Membership)
	m.Add("/a.js", "main")
	m.Add("/a.js", "main")
	if got := m.Bundles("/a.js"); !reflect.DeepEqual(got, []string{"main"}) {
		t.Fatalf("duplicate add not idempotent: %v", got)
	}
}

func TestIdentifierDerivation(t *testing.T) {
	tests := []struct {
		out, entry, want string
	}{
		{"dist/app-X7K2.js", "src/app.tsx", "app"},
		{"dist/chunk-ABCD1234.js", "", "chunk-ABCD1234"},
		{"dist/.js", "", Identifier("dist/.js", "")}, // hash fallback, just stable
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := Identifier(tt.out, tt.entry); got != tt.want {
			t.Fatalf("Identifier(%q, %q) = %q want %q", tt.out, tt.entry, got, tt.want)
		}
	}
	// The hash fallback must be stable and short.
	a := Identifier("dist/.js", "")
	b := Identifier("dist/.js", "")
	if a == "" || a != b || len(a) != 8 {
		t.Fatalf("hash fallback unstable: %q vs %q", a, b)
	}
}
