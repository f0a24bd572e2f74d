package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// continuousSentinels are deadline values that mean "always open". Scrapers
// for German funding sites emit several spellings.
var continuousSentinels = map[string]bool{
	"":            true,
	"laufend":     true,
	"fortlaufend": true,
	"keine":       true,
	"unbefristet": true,
	"offen":       true,
}

// IsContinuousDeadline reports whether the deadline text is one of the
// recognized "no fixed deadline" sentinels (case-insensitive).
func IsContinuousDeadline(text string) bool {
	return continuousSentinels[strings.ToLower(strings.TrimSpace(text))]
}

var (
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	germanDateRe  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	germanShortRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2})$`)
	monthYearRe   = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	bareYearRe    = regexp.MustCompile(`^(\d{4})$`)
)

// ParseDeadline tries the known deadline formats in order and returns the
// parsed date of the first match. Formats, in priority order:
//
//  1. ISO YYYY-MM-DD, with any time/zone suffix ignored.
//  2. German D.M.YYYY.
//  3. Short German D.M.YY, year read as 2000+YY.
//  4. M/YYYY, anchored to the 28th of the month.
//  5. Bare four-digit year, anchored to Dec 31.
//
// The boolean is false when no pattern matches.
func ParseDeadline(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return t, true
		}
	}
	if m := germanDateRe.FindStringSubmatch(text); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := germanShortRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[3])
		return buildDate(strconv.Itoa(2000+year), m[2], m[1])
	}
	if m := monthYearRe.FindStringSubmatch(text); m != nil {
		// The 28th is a safe anchor for every month length.
		return buildDate(m[2], m[1], "28")
	}
	if m := bareYearRe.FindStringSubmatch(text); m != nil {
		return buildDate(m[1], "12", "31")
	}

	return time.Time{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// Reject rollover dates like 31.02.
	if t.Day() != d || t.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return t, true
}

// IsDeadlineOpen decides whether a deadline string still represents an open
// program at the given time. Continuous sentinels and empty values are always
// open. A parsed date is open through the deadline day itself. Unparseable
// text is treated as open: a format the parser does not know must never
// silently exclude a program.
func IsDeadlineOpen(text string, now time.Time) bool {
	if IsContinuousDeadline(text) {
		return true
	}

	deadline, ok := ParseDeadline(text)
	if !ok {
		return true
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !deadline.Before(today)
}

// DaysUntilDeadline returns the whole days between now and the parsed
// deadline. The boolean is false for continuous or unparseable deadlines.
func DaysUntilDeadline(text string, now time.Time) (int, bool) {
	if IsContinuousDeadline(text) {
		return 0, false
	}
	deadline, ok := ParseDeadline(text)
	if !ok {
		return 0, false
	}
	return int(deadline.Sub(now).Hours() / 24), true
}
