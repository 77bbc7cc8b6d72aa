package locator

import "strings"

// DefaultTextTag is the tag that carries a submit button's label
const DefaultTextTag = "span"

// TextMatch holds the normalization flags used by text based locators
type TextMatch struct {
	Trim          bool
	CaseSensitive bool
}

// DefaultTextMatch trims and compares case sensitively
func DefaultTextMatch() TextMatch {
	return TextMatch{Trim: true, CaseSensitive: true}
}

// Normalize applies the flags of m to s
func Normalize(s string, m TextMatch) string {
	if m.Trim {
		s = strings.TrimSpace(s)
	}
	if !m.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

// Matches reports whether candidate equals want after normalizing both.
// Substrings never match.
func (m TextMatch) Matches(candidate, want string) bool {
	return Normalize(candidate, m) == Normalize(want, m)
}

type matchConfig struct {
	match   TextMatch
	textTag string
}

// MatchOption tunes a text based locator
type MatchOption func(*matchConfig)

// WithoutTrim compares text including surrounding whitespace
func WithoutTrim() MatchOption {
	return func(c *matchConfig) {
		c.match.Trim = false
	}
}

// CaseInsensitive lowercases both sides before comparing
func CaseInsensitive() MatchOption {
	return func(c *matchConfig) {
		c.match.CaseSensitive = false
	}
}

// WithTextTag sets the inner tag searched by SubmitButtonWithText
func WithTextTag(tag string) MatchOption {
	return func(c *matchConfig) {
		c.textTag = tag
	}
}

func newMatchConfig(opts []MatchOption) matchConfig {
	c := matchConfig{match: DefaultTextMatch(), textTag: DefaultTextTag}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
