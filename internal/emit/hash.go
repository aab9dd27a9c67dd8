package emit

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
)

// HashConfig selects how asset content hashes are computed. Zero values
// mean sha256/hex with an 8-character digest and no salt.
type HashConfig struct {
	Function string // "sha256" (default), "sha1", "md5"
	Digest   string // "hex" (default), "base64"
	Salt     string // optional, hashed before the payload
	Length   int    // truncate the digest to this many characters; 0 = 8
}

const defaultHashLength = 8

func (h HashConfig) withDefaults() HashConfig {
	if h.Function == "" {
		h.Function = "sha256"
	}
	if h.Digest == "" {
		h.Digest = "hex"
	}
	if h.Length == 0 {
		h.Length = defaultHashLength
	}
	return h
}

func newHasher(name string) (hash.Hash, error) {
	switch name {
	case "sha256":
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	}
	return nil, fmt.Errorf("unknown hash function %q", name)
}

// ContentHash digests payload under cfg. Identical payload bytes and
// identical configuration always produce the identical string.
func ContentHash(cfg HashConfig, payload []byte) (string, error) {
	cfg = cfg.withDefaults()
	h, err := newHasher(cfg.Function)
	if err != nil {
		return "", err
	}
	if cfg.Salt != "" {
		h.Write([]byte(cfg.Salt))
	}
	h.Write(payload)
	sum := h.Sum(nil)

	var digest string
	switch cfg.Digest {
	case "hex":
		digest = hex.EncodeToString(sum)
	case "base64":
		digest = base64.RawURLEncoding.EncodeToString(sum)
	default:
		return "", fmt.Errorf("unknown hash digest %q", cfg.Digest)
	}
	if cfg.Length > 0 && len(digest) > cfg.Length {
		digest = digest[:cfg.Length]
	}
	return digest, nil
}
