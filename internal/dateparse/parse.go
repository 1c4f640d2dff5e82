// Package dateparse resolves the natural-language date expressions the
// agent's add_task/set_due_date tools accept (e.g. "tomorrow", "next
// Friday", "in 3 days") to an absolute UTC instant.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	inPattern       = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks|month|months)$`)
	agoPattern      = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks|month|months)\s+ago$`)
	nextDayPattern  = regexp.MustCompile(`^next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	thisDayPattern  = regexp.MustCompile(`^this\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	onDayPattern    = regexp.MustCompile(`^on\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	bareDayPattern  = regexp.MustCompile(`^(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	isoDatePattern  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	usDatePattern   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	monthDayYearRx  = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2}),?\s+(\d{4})$`)
	dayMonthYearRx  = regexp.MustCompile(`^(\d{1,2})\s+([a-z]+)\s+(\d{4})$`)
	monthDayRx      = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})$`)
	isoDateTimeRx   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})[T\s](\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	atTimePattern   = regexp.MustCompile(`^(.+?)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

// Parse resolves text to an absolute UTC instant, relative to now. now is
// threaded through explicitly rather than read internally so callers (and
// tests) control the reference clock.
func Parse(text string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date text")
	}
	now = now.UTC()

	if t, ok := parseDateTimeWithTime(trimmed, now); ok {
		return t, nil
	}
	if t, ok := parseRelativeDate(trimmed, now); ok {
		return t, nil
	}
	if t, ok := parseWeekday(trimmed, now); ok {
		return t, nil
	}
	if t, ok := parseAbsoluteDate(trimmed, now); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not parse %q as a date", text)
}

func parseRelativeDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	switch lower {
	case "today", "now":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	case "next week":
		return now.AddDate(0, 0, 7), true
	case "next month":
		return now.AddDate(0, 0, 30), true
	case "this week":
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		return now.AddDate(0, 0, -daysSinceMonday), true
	}

	if m := inPattern.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, unitDays(amount, m[2])), true
	}
	if m := agoPattern.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -unitDays(amount, m[2])), true
	}
	return time.Time{}, false
}

// unitDays converts an amount+unit pair to a day count, approximating a
// month as 30 days (matches the approximation the relative-date parser
// this package resolves started from).
func unitDays(amount int, unit string) int {
	switch {
	case strings.HasPrefix(unit, "day"):
		return amount
	case strings.HasPrefix(unit, "week"):
		return amount * 7
	case strings.HasPrefix(unit, "month"):
		return amount * 30
	}
	return 0
}

func parseWeekday(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	if m := nextDayPattern.FindStringSubmatch(lower); m != nil {
		return nextWeekday(now, dayIndex(m[1]), false), true
	}
	if m := thisDayPattern.FindStringSubmatch(lower); m != nil {
		target := dayIndex(m[1])
		current := mondayIndex(now.Weekday())
		return now.AddDate(0, 0, target-current), true
	}
	if m := onDayPattern.FindStringSubmatch(lower); m != nil {
		return nextWeekday(now, dayIndex(m[1]), true), true
	}
	if m := bareDayPattern.FindStringSubmatch(lower); m != nil {
		return nextWeekday(now, dayIndex(m[1]), true), true
	}
	return time.Time{}, false
}

func dayIndex(name string) int {
	for i, n := range dayNames {
		if n == name {
			return i
		}
	}
	return -1
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// nextWeekday returns the next occurrence of targetDay (0=Monday), either
// strictly after now (includeToday=false) or on-or-after now
// (includeToday=true).
func nextWeekday(now time.Time, targetDay int, includeToday bool) time.Time {
	current := mondayIndex(now.Weekday())
	daysAhead := targetDay - current
	if includeToday {
		if daysAhead < 0 {
			daysAhead += 7
		}
	} else {
		if daysAhead <= 0 {
			daysAhead += 7
		}
	}
	return now.AddDate(0, 0, daysAhead)
}

func parseAbsoluteDate(text string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)

	if m := isoDatePattern.FindStringSubmatch(trimmed); m != nil {
		if t, ok := buildDate(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := usDatePattern.FindStringSubmatch(trimmed); m != nil {
		if t, ok := buildDate(m[3], m[1], m[2]); ok {
			return t, true
		}
	}

	lower := strings.ToLower(trimmed)

	if m := monthDayYearRx.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			if t, ok := buildDateWithMonth(m[3], month, m[2]); ok {
				return t, true
			}
		}
	}
	if m := dayMonthYearRx.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[m[2]]; ok {
			if t, ok := buildDateWithMonth(m[3], month, m[1]); ok {
				return t, true
			}
		}
	}
	if m := monthDayRx.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[m[1]]; ok {
			day, err := strconv.Atoi(m[2])
			if err == nil {
				t := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
				if t.Before(now) {
					t = time.Date(now.Year()+1, month, day, 0, 0, 0, 0, time.UTC)
				}
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func buildDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, err1 := strconv.Atoi(yearStr)
	month, err2 := strconv.Atoi(monthStr)
	day, err3 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return validDate(year, time.Month(month), day)
}

func buildDateWithMonth(yearStr string, month time.Month, dayStr string) (time.Time, bool) {
	year, err1 := strconv.Atoi(yearStr)
	day, err2 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	return validDate(year, month, day)
}

// validDate rejects calendar-invalid day/month combinations (e.g.
// Feb 30) rather than silently normalizing them the way time.Date does.
func validDate(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseDateTimeWithTime(text string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)

	if m := isoDateTimeRx.FindStringSubmatch(trimmed); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		second := 0
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
		if month < 1 || month > 12 {
			return time.Time{}, false
		}
		if _, ok := validDate(year, time.Month(month), day); !ok {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
	}

	if m := atTimePattern.FindStringSubmatch(strings.ToLower(trimmed)); m != nil {
		datePart := m[1]
		hour, _ := strconv.Atoi(m[2])
		minute := 0
		if m[3] != "" {
			minute, _ = strconv.Atoi(m[3])
		}
		switch m[4] {
		case "pm":
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}

		parsed, ok := parseRelativeDate(datePart, now)
		if !ok {
			parsed, ok = parseWeekday(datePart, now)
		}
		if !ok {
			parsed, ok = parseAbsoluteDate(datePart, now)
		}
		if !ok {
			return time.Time{}, false
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// FormatRelative renders t relative to now for display (e.g. "tomorrow",
// "in 3 days", "overdue by 2 days").
func FormatRelative(t, now time.Time) string {
	days := int(t.UTC().Sub(now.UTC()).Hours() / 24)
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days == -1:
		return "yesterday"
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	default:
		return fmt.Sprintf("overdue by %d days", -days)
	}
}
