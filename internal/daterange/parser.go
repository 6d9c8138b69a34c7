// Package daterange turns free-text phrases such as "last 7 days",
// "June 1 to June 15" or "yesterday to today" into an inclusive calendar-day
// interval. Parsing is pure: the reference day is always passed in.
package daterange

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DefaultWindow is the span, in days back from today, used when a phrase
// cannot be interpreted or a range fragment is missing its start.
const DefaultWindow = 7

// Interval is an inclusive [Start, End] range of calendar days. Both ends are
// midnight UTC and Start never falls after End.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days reports how many calendar days the interval covers.
func (iv Interval) Days() int {
	return int(iv.End.Sub(iv.Start).Hours()/24) + 1
}

var lastNDays = regexp.MustCompile(`last\s+(\d+)\s+days?`)

// bareWeekday is a weekday name with no this/last/next qualifier. These
// resolve to the most recent occurrence, never a future one.
var bareWeekday = regexp.MustCompile(`^(?:sunday|sun|monday|mon|tuesday|tue|wednesday|wed|thursday|thur|thu|friday|fri|saturday|sat)$`)

// separators are tried in order; the first one contained in the text wins.
var separators = []string{" to ", " - ", " until "}

// Month names match case-insensitively. Dated layouts carry a year; the
// partial ones are completed with today's year.
var (
	datedLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
		"2 Jan 2006",
	}
	partialLayouts = []string{
		"January 2",
		"Jan 2",
		"2 January",
		"2 Jan",
	}
)

// Parser resolves date-range phrases. The zero value is not usable; call
// NewParser. A Parser is safe for concurrent use.
type Parser struct {
	nl *when.Parser
}

// NewParser builds a Parser with the date rules of the natural-language
// parser. Time-of-day rules are left out so "06-15" or "at 5" never read as
// a clock time on today.
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(
		en.Weekday(rules.Override),
		en.CasualDate(rules.Override),
		en.Deadline(rules.Override),
		en.PastTime(rules.Override),
		en.ExactMonthDate(rules.Override),
	)
	w.Add(common.All...)
	return &Parser{nl: w}
}

var defaultParser = NewParser()

// Parse resolves text against today using a shared Parser.
func Parse(text string, today time.Time) Interval {
	return defaultParser.Parse(text, today)
}

// Parse resolves text into an interval. It always returns a valid interval:
// phrases it cannot interpret yield the last DefaultWindow days.
//
// Resolution order, first match wins:
//  1. "last N days": the N-day window ending today (N=0 is just today).
//  2. "<a> to <b>", "<a> - <b>", "<a> until <b>": split on the first
//     separator type present, at its first occurrence. An unresolvable left
//     side means today-7, an unresolvable right side means today. Inverted
//     ranges are rejected and resolution continues.
//  3. The whole text is a single date or keyword: that day alone.
//  4. The default window.
func (p *Parser) Parse(text string, today time.Time) Interval {
	today = truncateDay(today)
	norm := strings.ToLower(strings.TrimSpace(text))

	if m := lastNDays.FindStringSubmatch(norm); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			back := n - 1
			if back < 0 {
				back = 0
			}
			return Interval{Start: today.AddDate(0, 0, -back), End: today}
		}
	}

	if iv, ok := p.explicitRange(norm, today); ok {
		return iv
	}

	if d, ok := p.resolve(norm, today); ok {
		return Interval{Start: d, End: d}
	}

	return defaultInterval(today)
}

func (p *Parser) explicitRange(norm string, today time.Time) (Interval, bool) {
	for _, sep := range separators {
		if !strings.Contains(norm, sep) {
			continue
		}
		left, right, _ := strings.Cut(norm, sep)

		start, ok := p.resolve(left, today)
		if !ok {
			start = today.AddDate(0, 0, -DefaultWindow)
		}
		end, ok := p.resolve(right, today)
		if !ok {
			end = today
		}
		if start.After(end) {
			return Interval{}, false
		}
		return Interval{Start: start, End: end}, true
	}
	return Interval{}, false
}

// resolve interprets a single date expression relative to today.
func (p *Parser) resolve(fragment string, today time.Time) (time.Time, bool) {
	s := strings.TrimSpace(fragment)
	if s == "" {
		return time.Time{}, false
	}

	switch s {
	case "today", "now":
		return today, true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}

	for _, layout := range datedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	for _, layout := range partialLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	r, err := p.nl.Parse(s, today)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	// A match inside a longer sentence ("may I see...") is not a date.
	if r.Index != 0 || len(r.Text) != len(s) {
		return time.Time{}, false
	}
	d := truncateDay(r.Time)
	if d.After(today) && bareWeekday.MatchString(s) {
		d = d.AddDate(0, 0, -7)
	}
	return d, true
}

func defaultInterval(today time.Time) Interval {
	return Interval{Start: today.AddDate(0, 0, -DefaultWindow), End: today}
}

// truncateDay keeps t's calendar date, expressed as midnight UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
