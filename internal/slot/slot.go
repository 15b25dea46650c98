// Package slot maps calendar days and hours to the canonical slot identifiers
// stored in room schedules ("YYYY-MM-DD:HH").
package slot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
)

// HoursPerDay is the number of hourly slots offered for every day of a room.
const HoursPerDay = 24

// ErrInvalidSlot is returned when a slot identifier is not in canonical form.
var ErrInvalidSlot = errors.New("slot: invalid slot id")

// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("slot: invalid date")

const idLength = len("2006-01-02:15")

// DateRange lists every calendar day from start through end inclusive.
// It returns nil when end is before start.
func DateRange(start, end civil.Date) []civil.Date {
	if end.Before(start) {
		return nil
	}
	days := make([]civil.Date, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// ID formats the slot identifier for the given day and hour. Hours outside
// 0..23 produce identifiers that Parse rejects.
func ID(day civil.Date, hour int) string {
	return fmt.Sprintf("%s:%02d", day.String(), hour)
}

// Parse is the inverse of ID.
func Parse(id string) (civil.Date, int, error) {
	if len(id) != idLength || id[10] != ':' {
		return civil.Date{}, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, id)
	}
	day, err := ParseDate(id[:10])
	if err != nil {
		return civil.Date{}, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, id)
	}
	hour, err := strconv.Atoi(id[11:])
	if err != nil || id[11] == '+' || id[11] == '-' || hour < 0 || hour >= HoursPerDay {
		return civil.Date{}, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, id)
	}
	return day, hour, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(value string) (civil.Date, error) {
	d, err := civil.ParseDate(value)
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return d, nil
}

// InRange reports whether id is a valid slot whose day lies within [start, end].
func InRange(id string, start, end civil.Date) bool {
	day, _, err := Parse(id)
	if err != nil {
		return false
	}
	return !day.Before(start) && !day.After(end)
}

// Hours returns the hours of a day in grid order.
func Hours() []int {
	hours := make([]int, HoursPerDay)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

var weekdayLabels = [...]string{
	time.Sunday:    "週日",
	time.Monday:    "週一",
	time.Tuesday:   "週二",
	time.Wednesday: "週三",
	time.Thursday:  "週四",
	time.Friday:    "週五",
	time.Saturday:  "週六",
}

// DisplayDate renders a short zh-TW column label such as "1月1日 週一".
func DisplayDate(d civil.Date) string {
	weekday := d.In(time.UTC).Weekday()
	return fmt.Sprintf("%d月%d日 %s", int(d.Month), d.Day, weekdayLabels[weekday])
}
