package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateOf truncates t to its calendar date, expressed as midnight UTC so
// that dates compare with Equal and step with AddDate.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CivilDate returns the calendar date of t as observed in loc.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc))
}

// ParseTimezoneLocation accepts an IANA zone ("Europe/Berlin"), "UTC"/"GMT",
// or a fixed offset ("UTC+3", "UTC-7", "+05:30").
func ParseTimezoneLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	switch strings.ToUpper(tz) {
	case "", "UTC", "GMT", "ETC/UTC":
		return time.UTC, nil
	}

	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}

	offset := tz
	if strings.HasPrefix(strings.ToUpper(offset), "UTC") {
		offset = strings.TrimSpace(offset[3:])
	}
	sec, ok := parseOffset(offset)
	if !ok {
		return nil, fmt.Errorf("unsupported timezone %q", tz)
	}
	return time.FixedZone(offsetName(sec), sec), nil
}

func parseOffset(s string) (int, bool) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}

	hh, mm, found := strings.Cut(s[1:], ":")
	if !found {
		mm = "0"
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 14 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m >= 60 {
		return 0, false
	}

	return sign * (h*3600 + m*60), true
}

func offsetName(sec int) string {
	sign := "+"
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, sec/3600, (sec%3600)/60)
}
