// Package epoch converts between chat.db timestamps and display timestamps.
//
// chat.db stores message dates as nanoseconds since 2001-01-01T00:00:00Z.
// Everything above the store layer works in milliseconds since the Unix epoch.
package epoch

import "time"

// ReferenceMillis is 2001-01-01T00:00:00Z expressed in Unix milliseconds.
const ReferenceMillis int64 = 978_307_200_000

const nanosPerMilli int64 = 1_000_000

// ToDisplay converts a store timestamp to Unix milliseconds.
// A store value of 0 means "unset" and maps to 0.
func ToDisplay(store int64) int64 {
	if store == 0 {
		return 0
	}
	return floorDiv(store, nanosPerMilli) + ReferenceMillis
}

// ToStore converts Unix milliseconds to a store timestamp.
func ToStore(display int64) int64 {
	return (display - ReferenceMillis) * nanosPerMilli
}

// Time returns the store timestamp as a UTC time. Zero maps to the zero time.
func Time(store int64) time.Time {
	if store == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ToDisplay(store)).UTC()
}

// FromTime returns the display timestamp for t.
func FromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
