package entities

import (
	"regexp"
	"time"
)

// DefaultPollInterval is used when a DownloadExpectation leaves PollInterval unset
const DefaultPollInterval = 100 * time.Millisecond

// DownloadExpectation describes a file that a test flow expects the browser to
// write into Directory. It lives for one download attempt only.
type DownloadExpectation struct {
	Directory    string
	Pattern      *regexp.Regexp
	Timeout      time.Duration
	PollInterval time.Duration
}

// Interval returns the poll interval, falling back to DefaultPollInterval
func (e DownloadExpectation) Interval() time.Duration {
	if e.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return e.PollInterval
}

// PatternString returns the pattern source, or an empty string if unset
func (e DownloadExpectation) PatternString() string {
	if e.Pattern == nil {
		return ""
	}
	return e.Pattern.String()
}
