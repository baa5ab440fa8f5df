// Package temporal recognizes natural-language time phrases in queries and
// maps them to concrete date ranges.
//
// Ranges are closed intervals. Day boundaries are computed in the parser's
// location, so "yesterday" spans 00:00:00.000 through 23:59:59.999 local time.
package temporal

import (
	"strings"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
)

// Phrase is a recognized time phrase.
type Phrase string

const (
	Yesterday Phrase = "yesterday"
	Today     Phrase = "today"
	ThisWeek  Phrase = "this week"
	LastWeek  Phrase = "last week"
	ThisMonth Phrase = "this month"
	LastMonth Phrase = "last month"
)

// Phrases lists the recognized phrases in priority order. When a query
// contains several, the earliest in this list wins.
var Phrases = []Phrase{Yesterday, Today, ThisWeek, LastWeek, ThisMonth, LastMonth}

// Keywords are the single words that mark a token as temporal.
var Keywords = []string{"yesterday", "today", "week", "month"}

// Detect returns the highest-priority phrase contained in query, matched
// case-insensitively as a substring.
func Detect(query string) (Phrase, bool) {
	lower := strings.ToLower(query)
	for _, phrase := range Phrases {
		if strings.Contains(lower, string(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// Parser resolves phrases against a clock and a location.
type Parser struct {
	now      func() time.Time
	location *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the source of the current instant. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the location that defines calendar days. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the date range named by the first recognized phrase in query.
// The second result is false when no phrase is present.
func (p *Parser) Parse(query string) (core.TimeRange, bool) {
	phrase, ok := Detect(query)
	if !ok {
		return core.TimeRange{}, false
	}
	return p.Resolve(phrase), true
}

// Resolve returns the date range of phrase relative to the current instant.
func (p *Parser) Resolve(phrase Phrase) core.TimeRange {
	now := p.now().In(p.location)

	switch phrase {
	case Yesterday:
		start := startOfDay(now.AddDate(0, 0, -1))
		y, m, d := start.Date()
		end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), p.location)
		return core.TimeRange{Start: start, End: end}
	case Today:
		return core.TimeRange{Start: startOfDay(now), End: now}
	case ThisWeek:
		// Weeks start on Monday.
		offset := (int(now.Weekday()) + 6) % 7
		return core.TimeRange{Start: startOfDay(now.AddDate(0, 0, -offset)), End: now}
	case LastWeek:
		return core.TimeRange{Start: startOfDay(now.AddDate(0, 0, -7)), End: now}
	case ThisMonth:
		y, m, _ := now.Date()
		return core.TimeRange{Start: time.Date(y, m, 1, 0, 0, 0, 0, p.location), End: now}
	case LastMonth:
		return core.TimeRange{Start: startOfDay(now.AddDate(0, -1, 0)), End: now}
	}
	return core.TimeRange{}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
