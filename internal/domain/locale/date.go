package locale

import (
	"strings"
	"time"
)

// isoFormats are always tried first regardless of locale hints.
var isoFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// defaultFormats is the ordered day/month/year fallback list. Day-first
// formats come before month-first since the supported institution set is
// predominantly day-first.
var defaultFormats = []string{
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// ParseDate parses a locale-formatted date string into a calendar date
// (midnight UTC, no time component). ISO 8601 is tried first, then the given
// formats, then the built-in locale list. Two-digit years resolve through
// Go's fixed 1969-2068 century window. The boolean is false on exhaustion.
func ParseDate(text string, knownFormats ...string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false
	}

	for _, layouts := range [][]string{isoFormats, knownFormats, defaultFormats} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return toDate(t), true
			}
		}
	}
	return time.Time{}, false
}

func toDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
