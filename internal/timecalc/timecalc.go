// Package timecalc holds the shift-duration arithmetic shared by the
// presence state machine and the report form.
package timecalc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is added to negative spans: an end time before the start
// time is read as an overnight shift ending the next day.
const MinutesPerDay = 24 * 60

// ErrMissingTime is returned when a start or end time is empty.
var ErrMissingTime = errors.New("start and end time are required")

// Hours is the derived duration pair of a report.
type Hours struct {
	TotalMinutes   int
	WorkingMinutes int

	// Total and Working are zero-padded "HH:MM".
	Total   string
	Working string
}

// ParseClock parses a wall-clock "HH:MM" value into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingTime
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// Clock formats t as its wall-clock "HH:MM".
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// FormatMinutes renders a minute count as zero-padded "HH:MM".
// Negative inputs render as "00:00".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SpanMinutes returns the minutes from start to end, both minutes since
// midnight, wrapping by one day when end is before start.
func SpanMinutes(start, end int) int {
	total := end - start
	if total < 0 {
		total += MinutesPerDay
	}
	return total
}

// ComputeHours derives total and working hours from "HH:MM" start and end
// times and a break length in minutes. Working time never goes below zero.
func ComputeHours(startTime, endTime string, breakMinutes int) (Hours, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Hours{}, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return Hours{}, err
	}
	if breakMinutes < 0 {
		breakMinutes = 0
	}

	total := SpanMinutes(start, end)
	working := max(0, total-breakMinutes)

	return Hours{
		TotalMinutes:   total,
		WorkingMinutes: working,
		Total:          FormatMinutes(total),
		Working:        FormatMinutes(working),
	}, nil
}

// Recompute returns the hours for the given inputs, or h unchanged when the
// inputs cannot be computed yet (a field is empty or half-typed). Callers
// use it on every edit so derived fields never flash blank.
func (h Hours) Recompute(startTime, endTime string, breakMinutes int) Hours {
	next, err := ComputeHours(startTime, endTime, breakMinutes)
	if err != nil {
		return h
	}
	return next
}

// Elapsed returns now minus since, floored at zero.
func Elapsed(since, now time.Time) time.Duration {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d
}

// FormatElapsed renders a duration as "HH:MM:SS".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
