package locator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"", "Foo", "  Foo  ", "\tBadge vergeben\n", "MiXeD Case ", "Fähigkeit", " nbsp "}

	for _, s := range inputs {
		trimmed := TextMatch{Trim: true, CaseSensitive: true}
		assert.Equal(t, Normalize(strings.TrimSpace(s), trimmed), Normalize(s, trimmed), "trim %q", s)

		folded := TextMatch{Trim: false, CaseSensitive: false}
		assert.Equal(t, Normalize(strings.ToLower(s), folded), Normalize(s, folded), "case %q", s)

		both := TextMatch{Trim: true, CaseSensitive: false}
		once := Normalize(s, both)
		assert.Equal(t, once, Normalize(once, both), "twice %q", s)
	}
}

func TestTextMatch_Matches(t *testing.T) {
	tests := []struct {
		name      string
		match     TextMatch
		candidate string
		want      string
		expected  bool
	}{
		{"exact", DefaultTextMatch(), "Foo", "Foo", true},
		{"trimmed candidate", DefaultTextMatch(), "  Foo \n", "Foo", true},
		{"trimmed wanted", DefaultTextMatch(), "Foo", " Foo ", true},
		{"substring never matches", DefaultTextMatch(), "Foobar", "Foo", false},
		{"superstring never matches", DefaultTextMatch(), "Submit Form", "Submit", false},
		{"case sensitive", DefaultTextMatch(), "foo", "Foo", false},
		{"case insensitive", TextMatch{Trim: true, CaseSensitive: false}, "FOO", "foo", true},
		{"untrimmed", TextMatch{Trim: false, CaseSensitive: true}, " Foo ", "Foo", false},
		{"untrimmed exact", TextMatch{Trim: false, CaseSensitive: true}, " Foo ", " Foo ", true},
		{"empty", DefaultTextMatch(), "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.match.Matches(tt.candidate, tt.want))
		})
	}
}

func TestMatchOptions(t *testing.T) {
	cfg := newMatchConfig(nil)
	assert.Equal(t, DefaultTextMatch(), cfg.match)
	assert.Equal(t, DefaultTextTag, cfg.textTag)

	cfg = newMatchConfig([]MatchOption{WithoutTrim(), CaseInsensitive(), WithTextTag("div")})
	assert.False(t, cfg.match.Trim)
	assert.False(t, cfg.match.CaseSensitive)
	assert.Equal(t, "div", cfg.textTag)
}
