// Package glob translates the restricted watch-rule glob grammar into anchored
// regular expressions.
//
// Grammar:
//   - '*' matches within a single path segment and never crosses '/'.
//     A standalone '*' segment matches exactly one non-empty segment.
//   - '**' as a whole segment matches zero or more whole segments. It may
//     appear as a prefix ("**/b"), in the middle ("a/**/b") or as a suffix
//     ("a/**"); "a/**" also matches "a" itself.
//   - Every other character is literal. There is no bracket or brace
//     expansion, and no pattern is ever rejected.
package glob

import (
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	segment     = `[^/]+`
	segmentPart = `[^/]*`
)

// Compile translates pattern into an anchored regular expression.
func Compile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(translate(pattern))
}

// Match reports whether path matches pattern as a whole.
func Match(path, pattern string) bool {
	return Compile(pattern).MatchString(normalize(path))
}

func translate(pattern string) string {
	parts := collapse(strings.Split(normalize(pattern), "/"))
	last := len(parts) - 1

	var b strings.Builder
	b.WriteString("^")
	skipSep := false
	for i, seg := range parts {
		if seg == "**" {
			switch {
			case i == 0 && i == last:
				b.WriteString(".*")
			case i == 0:
				// prefix: any number of leading segments, each with its separator
				b.WriteString(`(?:` + segment + `/)*`)
				skipSep = true
			default:
				// middle or suffix: any number of "/segment" groups
				b.WriteString(`(?:/` + segment + `)*`)
			}
			continue
		}
		if i > 0 && !skipSep {
			b.WriteString("/")
		}
		skipSep = false
		if seg == "*" {
			b.WriteString(segment)
			continue
		}
		writeSegment(&b, seg)
	}
	b.WriteString("$")
	return b.String()
}

// writeSegment escapes seg, turning every run of '*' into a same-segment wildcard.
func writeSegment(b *strings.Builder, seg string) {
	for len(seg) > 0 {
		idx := strings.IndexByte(seg, '*')
		if idx < 0 {
			b.WriteString(regexp.QuoteMeta(seg))
			return
		}
		b.WriteString(regexp.QuoteMeta(seg[:idx]))
		b.WriteString(segmentPart)
		seg = strings.TrimLeft(seg[idx:], "*")
	}
}

// collapse folds adjacent "**" segments; "**/**" means the same as "**".
func collapse(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i, seg := range parts {
		if seg == "**" && i > 0 && parts[i-1] == "**" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func normalize(p string) string {
	return filepath.ToSlash(p)
}

// DefaultCacheSize bounds the number of compiled patterns a Matcher keeps.
const DefaultCacheSize = 256

// Matcher matches paths against patterns, keeping recently compiled patterns
// in a bounded LRU. A Matcher is safe for concurrent use.
type Matcher struct {
	compiled *lru.Cache[string, *regexp.Regexp]
}

// NewMatcher creates a Matcher caching up to size compiled patterns.
func NewMatcher(size int) *Matcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		// only returned for a non-positive size, which is clamped above
		panic(err)
	}
	return &Matcher{compiled: c}
}

// Match reports whether path matches pattern.
func (m *Matcher) Match(path, pattern string) bool {
	re, ok := m.compiled.Get(pattern)
	if !ok {
		re = Compile(pattern)
		m.compiled.Add(pattern, re)
	}
	return re.MatchString(normalize(path))
}

// Len returns the number of cached compiled patterns.
func (m *Matcher) Len() int {
	return m.compiled.Len()
}
