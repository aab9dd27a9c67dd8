// Package config loads the optional stylex.config.json file and performs
// lightweight validation of it. Validation aggregates every issue into a
// single error so a bad config is reported in one shot.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stylex-esbuild/internal/stylex"
)

// DefaultFileName is probed in the project root when no explicit config
// path is given.
const DefaultFileName = "stylex.config.json"

// File mirrors the JSON config. Pointer fields distinguish "absent" from
// zero values so CLI flags can override only what the file left unset.
type File struct {
	Dev              *bool                    `json:"dev,omitempty"`
	FileName         string                   `json:"fileName,omitempty"`
	ImportSources    []string                 `json:"importSources,omitempty"`
	UseCSSLayers     *bool                    `json:"useCSSLayers,omitempty"`
	ModuleResolution *stylex.ModuleResolution `json:"unstable_moduleResolution,omitempty"`
	StyleXOptions    map[string]any           `json:"styleXOptions,omitempty"`
	Babel            stylex.BabelOptions      `json:"babel,omitempty"`
	Hash             HashFile                 `json:"hash,omitempty"`
}

// HashFile is the content-hash sub-configuration.
type HashFile struct {
	Function string `json:"function,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Salt     string `json:"salt,omitempty"`
	Length   int    `json:"length,omitempty"`
}

// Load reads the config at path. A missing file returns (nil, nil) so
// callers can treat it as "no config" without branching on errors.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s:\n%w", path, err)
	}
	return &f, nil
}

// Validate checks semantic constraints:
//
//   - fileName must be relative, forward-slashed, without ".." segments
//   - moduleResolution.type must be "commonJS" or "haste"; commonJS needs
//     a rootDir
//   - hash.function/digest must be supported; hash.length must be >= 0
//   - importSources entries must be non-empty
func (f *File) Validate() error {
	var errs errlist

	if f.FileName != "" {
		if filepath.IsAbs(f.FileName) {
			errs.add("fileName must be relative, got absolute %q", f.FileName)
		}
		if strings.Contains(f.FileName, `\`) {
			errs.add("fileName must use forward slashes ('/'), found backslash")
		}
		if hasDotDot(f.FileName) {
			errs.add("fileName must not contain '..' segments (got %q)", f.FileName)
		}
	}

	if mr := f.ModuleResolution; mr != nil {
		switch mr.Type {
		case "commonJS":
			if strings.TrimSpace(mr.RootDir) == "" {
				errs.add("unstable_moduleResolution.rootDir is required for commonJS resolution")
			}
		case "haste":
		default:
			errs.add("unstable_moduleResolution.type must be \"commonJS\" or \"haste\", got %q", mr.Type)
		}
	}

	switch f.Hash.Function {
	case "", "sha256", "sha1", "md5":
	default:
		errs.add("hash.function must be one of sha256, sha1, md5 (got %q)", f.Hash.Function)
	}
	switch f.Hash.Digest {
	case "", "hex", "base64":
	default:
		errs.add("hash.digest must be \"hex\" or \"base64\" (got %q)", f.Hash.Digest)
	}
	if f.Hash.Length < 0 {
		errs.add("hash.length must be >= 0 (got %d)", f.Hash.Length)
	}

	for i, s := range f.ImportSources {
		if strings.TrimSpace(s) == "" {
			errs.add("importSources[%d] must be non-empty", i)
		}
	}

	return errs.err()
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
