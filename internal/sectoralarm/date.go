package sectoralarm

import (
	"fmt"
	"regexp"
	"sectoralarm/internal/components/chrono"
	"sectoralarm/pkg/htmlutil"
	"strconv"
	"strings"
	"time"
)

var absoluteDateRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2}) (\d{1,2}):(\d{2})$`)
var relativeDateRegex = regexp.MustCompile(`^(.+?) (\d{1,2}):(\d{2})$`)
// the optional offset is informational, the milliseconds are always utc
var epochDateRegex = regexp.MustCompile(`/Date\((-?\d+)(?:[+-]\d{4})?\)/`)

// relative day names as rendered by the portal, mapped to their offset from today
var relativeDays = map[string]int{
	"idag":      0,
	"today":     0,
	"igår":      -1,
	"yesterday": -1,
}

// Normalizer turns the portal's date representations into absolute timestamps.
type Normalizer struct {
	Time chrono.TimeAPI
}

func atoi(text string) int {
	// only ever called on regex groups of digits
	n, _ := strconv.Atoi(text)
	return n
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60
}

// PortalDate parses the dates of the html pages, either "D/M H:MM" without
// a year or "<day name> H:MM" relative to today.
//
// A "D/M" date is placed in the current year unless that would put it in the
// future or the day does not exist this year (29/2), in which case it belongs
// to the previous year.
func (n Normalizer) PortalDate(text string) (Timestamp, error) {
	text = htmlutil.CleanText(text)
	now := n.Time.Now()
	loc := now.Location()

	if groups := absoluteDateRegex.FindStringSubmatch(text); groups != nil {
		day := atoi(groups[1])
		month := atoi(groups[2])
		hour := atoi(groups[3])
		minute := atoi(groups[4])
		if !validClock(hour, minute) || month < 1 || month > 12 {
			return Timestamp{}, fmt.Errorf("%w: %q", ErrUnparseableDate, text)
		}

		build := func(year int) (time.Time, bool) {
			date := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
			return date, date.Day() == day && int(date.Month()) == month
		}

		date, ok := build(now.Year())
		if !ok || date.After(now) {
			date, ok = build(now.Year() - 1)
		}
		if !ok {
			return Timestamp{}, fmt.Errorf("%w: no such day %q", ErrUnparseableDate, text)
		}
		return NewTimestamp(date), nil
	}

	if groups := relativeDateRegex.FindStringSubmatch(text); groups != nil {
		offset, ok := relativeDays[strings.ToLower(groups[1])]
		if !ok {
			return Timestamp{}, fmt.Errorf("%w: unknown day %q", ErrUnparseableDate, text)
		}
		hour := atoi(groups[2])
		minute := atoi(groups[3])
		if !validClock(hour, minute) {
			return Timestamp{}, fmt.Errorf("%w: %q", ErrUnparseableDate, text)
		}

		year, month, day := now.Date()
		date := time.Date(year, month, day+offset, hour, minute, 0, 0, loc)
		return NewTimestamp(date), nil
	}

	return Timestamp{}, fmt.Errorf("%w: no match for %q", ErrUnparseableDate, text)
}

// EpochDate parses the "/Date(<milliseconds>)/" markers of the json api,
// anything else yields an unset timestamp since the api leaves out dates on
// some rows.
func (n Normalizer) EpochDate(text string) Timestamp {
	groups := epochDateRegex.FindStringSubmatch(text)
	if groups == nil {
		return Timestamp{}
	}
	millis, err := strconv.ParseInt(groups[1], 10, 64)
	if err != nil {
		return Timestamp{}
	}
	return NewTimestamp(time.UnixMilli(millis).In(n.Time.Now().Location()))
}
