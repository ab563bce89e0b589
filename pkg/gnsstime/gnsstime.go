// Package gnsstime contains epoch conversions used by GNSS exchange formats.
package gnsstime

import (
	"fmt"
	"time"
)

// The GPS time scale starts at 1980-01-06 00:00:00 UTC.
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

// mjdEpoch is 1858-11-17 00:00:00, the zero point of the Modified Julian Date.
var mjdEpoch = time.Date(1858, 11, 17, 0, 0, 0, 0, time.UTC)

// IsLeapYear reports whether year is a leap year in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// WindowYear expands a two-digit year as used in SINEX time fields.
// The year is first put into the 20th century and moved up one century
// if it falls before 1980, so 99 -> 1999, 85 -> 1985 and 5 -> 2005.
func WindowYear(yy int) (int, error) {
	if yy < 0 || yy > 99 {
		return 0, fmt.Errorf("gnsstime: two-digit year out of range: %d", yy)
	}
	year := yy + 1900
	if year < 1980 {
		year += 100
	}
	return year, nil
}

// YearDoySod converts a year, day-of-year and seconds-of-day to a point in time (UTC).
func YearDoySod(year, doy, sod int) (time.Time, error) {
	if doy < 1 || doy > DaysInYear(year) {
		return time.Time{}, fmt.Errorf("gnsstime: day of year must be in 1..%d: %d", DaysInYear(year), doy)
	}
	if sod < 0 || sod >= 86400 {
		return time.Time{}, fmt.Errorf("gnsstime: seconds of day must be in 0..86399: %d", sod)
	}

	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.AddDate(0, 0, doy-1).Add(time.Duration(sod) * time.Second), nil
}

// MJD returns the Modified Julian Date for t.
func MJD(t time.Time) float64 {
	return t.Sub(mjdEpoch).Seconds() / 86400.0
}

// GPSSeconds returns the elapsed seconds since the start of the GPS time scale.
func GPSSeconds(t time.Time) float64 {
	return t.Sub(gpsEpoch).Seconds()
}
