// Package cache provides the content-addressed transform cache used to skip
// re-running the external compiler on unchanged modules, most usefully
// across watch-mode rebuilds.
//
// It offers:
//   - Content-addressed cache directory derivation (PathKey, Dir)
//   - A Store combining an in-memory LRU with sharded on-disk JSON entries
//   - Atomic entry writes (temporary file + rename)
//
// Conventions:
//   - The cache root defaults to "tmp/.sxcache" unless overridden.
//   - A per-project cache lives at: <root>/<pathKey>/
//   - An entry is stored at:        <root>/<pathKey>/aa/bb/<key>.json
//
// Keys are lowercase hex digests computed by the caller (content hash plus
// an options fingerprint); the store validates shape but never recomputes
// them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheRoot = "tmp/.sxcache"
	defaultMemSize   = 1024
)

// Entry is one cached transform result.
type Entry struct {
	Code  string            `json:"code"`
	Map   string            `json:"map,omitempty"`
	Rules []json.RawMessage `json:"rules,omitempty"`
}

// PathKey returns a short, stable identifier for an absolute project path.
// sha256(absPath), first 12 hex chars.
func PathKey(abs string) string {
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// Dir resolves the cache directory for the given absolute project path.
// If root is empty, it falls back to the default "tmp/.sxcache".
func Dir(root, projectAbs string) string {
	if root == "" {
		root = defaultCacheRoot
	}
	return filepath.Join(root, PathKey(projectAbs))
}

// Store is a two-level transform cache: an LRU in memory over sharded JSON
// files on disk. A Store is safe for concurrent use by multiple transform
// invocations; the memory layer is internally synchronized and the disk
// layer only ever writes a given key once per content version.
type Store struct {
	dir string
	mem *lru.Cache[string, *Entry]
}

// Open prepares a store rooted at dir. memSize bounds the in-memory layer;
// values < 1 use a default.
func Open(dir string, memSize int) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache: empty store directory")
	}
	if memSize < 1 {
		memSize = defaultMemSize
	}
	mem, err := lru.New[string, *Entry](memSize)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, mem: mem}, nil
}

// Get looks a key up, memory first, then disk. Disk hits are promoted into
// the memory layer. A missing or unreadable entry is reported as a miss.
func (s *Store) Get(key string) (*Entry, bool) {
	if !isHex(key) || len(key) < 6 {
		return nil, false
	}
	if e, ok := s.mem.Get(key); ok {
		return e, true
	}
	b, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false
	}
	s.mem.Add(key, &e)
	return &e, true
}

// Put stores an entry under key in both layers. The disk write is atomic:
// a temporary sibling file is renamed into place so concurrent readers
// never observe a partial entry.
func (s *Store) Put(key string, e *Entry) error {
	if !isHex(key) || len(key) < 6 {
		return errors.New("cache: invalid entry key")
	}
	s.mem.Add(key, e)

	path := s.entryPath(key)
	if _, err := os.Stat(path); err == nil {
		return nil // content-addressed: identical key means identical entry
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := json.NewEncoder(f).Encode(e); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Clear removes an entire per-project cache directory. Safe to call when
// the directory does not exist.
func Clear(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(dir)
}

// entryPath shards entries by the first two byte pairs of the key:
// <dir>/aa/bb/<key>.json
func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key[:2], key[2:4], key+".json")
}

// isHex checks if s is a lowercase hex string.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
