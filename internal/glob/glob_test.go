package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		{"single star one segment", "a/b/c", "a/*/c", true},
		{"single star does not cross separator", "a/b/d/c", "a/*/c", false},
		{"single star needs a segment", "a/c", "a/*/c", false},
		{"suffix doublestar zero segments", "a", "a/**", true},
		{"suffix doublestar many segments", "a/x/y", "a/**", true},
		{"suffix doublestar other root", "b/x", "a/**", false},
		{"prefix doublestar zero segments", "b", "**/b", true},
		{"prefix doublestar many segments", "x/y/b", "**/b", true},
		{"middle doublestar zero segments", "a/b", "a/**/b", true},
		{"middle doublestar many segments", "a/x/y/b", "a/**/b", true},
		{"middle doublestar wrong tail", "a/x/y/c", "a/**/b", false},
		{"star within segment", "src/pkg/A.src", "src/**/*.src", true},
		{"star within segment at root", "src/A.src", "src/**/*.src", true},
		{"extension mismatch", "src/A.go", "src/**/*.src", false},
		{"anchored match", "xsrc/A.src", "src/*.src", false},
		{"dot is literal", "srcXA.src", "src.A.src", false},
		{"regex metachars are literal", "a/(b)+/c", "a/(b)+/c", true},
		{"brackets are literal", "a/[bc]", "a/[bc]", true},
		{"brackets do not expand", "a/b", "a/[bc]", false},
		{"braces do not expand", "a.go", "*.{go,src}", false},
		{"lone doublestar", "any/thing/at/all", "**", true},
		{"repeated doublestar", "x", "**/**", true},
		{"exact literal", "go.mod", "go.mod", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.path, tt.pattern), "Match(%q, %q)", tt.path, tt.pattern)
		})
	}
}

func TestCompile_Anchored(t *testing.T) {
	re := Compile("a/*")
	assert.Equal(t, `^a/[^/]+$`, re.String())
}

func TestMatcher_CachesCompiledPatterns(t *testing.T) {
	m := NewMatcher(2)

	assert.True(t, m.Match("a/b/c", "a/*/c"))
	assert.True(t, m.Match("a/b/c", "a/*/c"))
	assert.Equal(t, 1, m.Len())

	assert.False(t, m.Match("a/b", "b/**"))
	assert.True(t, m.Match("x.src", "*.src"))
	assert.Equal(t, 2, m.Len(), "cache must stay bounded")
}

func TestNewMatcher_ClampsSize(t *testing.T) {
	m := NewMatcher(0)
	assert.True(t, m.Match("a", "a/**"))
	assert.Equal(t, 1, m.Len())
}
