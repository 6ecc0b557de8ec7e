package enums

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the lowercase day name promotions store in days_of_week.
type Weekday string

const (
	WeekdayMonday    Weekday = "monday"
	WeekdayTuesday   Weekday = "tuesday"
	WeekdayWednesday Weekday = "wednesday"
	WeekdayThursday  Weekday = "thursday"
	WeekdayFriday    Weekday = "friday"
	WeekdaySaturday  Weekday = "saturday"
	WeekdaySunday    Weekday = "sunday"
)

var weekdayByName = map[Weekday]time.Weekday{
	WeekdayMonday:    time.Monday,
	WeekdayTuesday:   time.Tuesday,
	WeekdayWednesday: time.Wednesday,
	WeekdayThursday:  time.Thursday,
	WeekdayFriday:    time.Friday,
	WeekdaySaturday:  time.Saturday,
	WeekdaySunday:    time.Sunday,
}

// String implements fmt.Stringer.
func (w Weekday) String() string {
	return string(w)
}

// IsValid reports whether the value is a known Weekday.
func (w Weekday) IsValid() bool {
	_, ok := weekdayByName[w]
	return ok
}

// Time converts the value to the time package representation.
func (w Weekday) Time() (time.Weekday, bool) {
	day, ok := weekdayByName[w]
	return day, ok
}

// ParseWeekday converts raw input into a Weekday.
func ParseWeekday(value string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(value)))
	if !w.IsValid() {
		return "", fmt.Errorf("invalid weekday %q", value)
	}
	return w, nil
}
