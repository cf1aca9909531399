package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Pattern pairs a regular expression that locates an overlay timestamp inside
// OCR text with the Go reference layout used to parse the matched substring.
// Patterns are tried in order; the first one whose regexp matches and whose
// match parses cleanly wins.
type Pattern struct {
	Regexp *regexp.Regexp
	Layout string
}

// RangetimeLayout is the timestamp format used by batch rangetime.txt files.
const RangetimeLayout = "20060102_150405.000"

// DefaultPatterns returns the built-in overlay formats, most specific first.
// The DD/MM/YYYY colon-millisecond form is the primary one burned into the
// recordings this tool was written for.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}:\d{3}`), "02/01/2006 15:04:05:000"},
		{regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}:\d{3}`), "01/02/2006 15:04:05:000"},
		{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}`), "2006-01-02 15:04:05.000"},
		{regexp.MustCompile(`\d{2}:\d{2}:\d{2}:\d{3}`), "15:04:05:000"},
		{regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{3}`), "15:04:05.000"},
	}
}

// Parse extracts a timestamp from overlay text by trying each pattern in
// order. Date-less matches are combined with refDate (today when zero). When
// prioritizeTimeOfDay is set, every result has its date replaced with refDate
// so all timestamps from one session compare by time of day alone.
func Parse(text string, patterns []Pattern, refDate time.Time, prioritizeTimeOfDay bool) (time.Time, bool) {
	for _, p := range patterns {
		match := p.Regexp.FindString(text)
		if match == "" {
			continue
		}

		t, err := parseLayout(match, p.Layout)
		if err != nil {
			continue
		}

		if !hasDate(p.Layout) || prioritizeTimeOfDay {
			t = withDate(t, orToday(refDate))
		}
		return t, true
	}
	return time.Time{}, false
}

// ParseRangetime parses a batch-index timestamp (YYYYMMDD_hhmmss.SSS).
func ParseRangetime(s string) (time.Time, error) {
	return time.Parse(RangetimeLayout, strings.TrimSpace(s))
}

// Format renders t with a pattern layout, including the colon-millisecond
// forms that time.Format cannot express.
func Format(t time.Time, layout string) string {
	if base, ok := strings.CutSuffix(layout, ":000"); ok {
		ms := t.Nanosecond() / int(time.Millisecond)
		return t.Format(base) + ":" + pad3(ms)
	}
	return t.Format(layout)
}

// TimeOfDay returns the duration since midnight, millisecond precision kept.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// Compare orders two timestamps, returning -1, 0 or 1. In timeOnly mode the
// date components are ignored: two instants on different days at the same
// wall-clock time compare equal.
func Compare(a, b time.Time, timeOnly bool) int {
	if timeOnly {
		ta, tb := TimeOfDay(a), TimeOfDay(b)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// parseLayout parses value against a Go layout, handling the nonstandard
// colon-separated millisecond field (15:04:05:000) that Go layouts cannot
// express natively.
func parseLayout(value, layout string) (time.Time, error) {
	baseLayout, ok := strings.CutSuffix(layout, ":000")
	if !ok {
		return time.Parse(layout, value)
	}

	cut := strings.LastIndex(value, ":")
	t, err := time.Parse(baseLayout, value[:cut])
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.Atoi(value[cut+1:])
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}

func hasDate(layout string) bool {
	return strings.Contains(layout, "2006")
}

// withDate keeps t's time of day but replaces the calendar date with ref's.
func withDate(t, ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func orToday(ref time.Time) time.Time {
	if ref.IsZero() {
		return time.Now()
	}
	return ref
}

func pad3(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
