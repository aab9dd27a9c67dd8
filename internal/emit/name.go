package emit

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultTemplate names one stylesheet per bundle after the bundle itself.
const DefaultTemplate = "[name].stylex.css"

// Chunk is the synthesized descriptor filename templates resolve against.
// For emitted stylesheets, ID and Name are both the bundle identifier and
// Hash is the content hash of the payload.
type Chunk struct {
	ID   string
	Name string
	Hash string
}

var reToken = regexp.MustCompile(`\[(name|id|hash|contenthash|chunkhash)(?::(\d+))?\]`)

// ResolveName substitutes template tokens against c. Supported tokens are
// [name], [id], [hash], [contenthash] and [chunkhash], each with an
// optional :N truncation suffix. Unknown tokens are left untouched.
func ResolveName(template string, c Chunk) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return reToken.ReplaceAllStringFunc(template, func(tok string) string {
		m := reToken.FindStringSubmatch(tok)
		var val string
		switch m[1] {
		case "name":
			val = c.Name
		case "id":
			val = c.ID
		default: // hash, contenthash, chunkhash
			val = c.Hash
		}
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 && n < len(val) {
				val = val[:n]
			}
		}
		return val
	})
}
