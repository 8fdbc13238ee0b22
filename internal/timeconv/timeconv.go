package timeconv

import (
	"fmt"
	"time"
)

// GMTLayout is the timestamp format OASIS uses for INTERVAL*TIME_GMT columns
const GMTLayout = "2006-01-02T15:04:05-00:00"

// DefaultZone is used by UTCToZone when no zone is given
const DefaultZone = "Europe/Istanbul"

// ParseGMT parses an OASIS GMT timestamp into a UTC time
func ParseGMT(s string) (time.Time, error) {
	t, err := time.ParseInLocation(GMTLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing GMT timestamp %q: %w", s, err)
	}
	return t, nil
}

// LoadZone resolves an IANA zone name, falling back to DefaultZone for ""
func LoadZone(zone string) (*time.Location, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", zone, err)
	}
	return loc, nil
}

// UTCToZone treats the wall clock of t as UTC and converts it to zone
func UTCToZone(t time.Time, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	return InLocation(t, loc), nil
}

// InLocation is UTCToZone for an already resolved location
func InLocation(t time.Time, loc *time.Location) time.Time {
	return asUTC(t).In(loc)
}

// ToUTC interprets the wall clock of local as a time in zone and returns the
// matching UTC instant. Wall times skipped or repeated by a DST transition
// are rejected rather than guessed.
func ToUTC(local time.Time, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}

	y, mo, d := local.Date()
	h, mi, s := local.Clock()
	t := time.Date(y, mo, d, h, mi, s, local.Nanosecond(), loc)

	if ty, tmo, td := t.Date(); ty != y || tmo != mo || td != d || t.Hour() != h || t.Minute() != mi {
		return time.Time{}, fmt.Errorf("non-existent time %s in %s", local.Format("2006-01-02 15:04:05"), loc)
	}

	_, offset := t.Zone()
	for _, probe := range []time.Time{t.Add(-time.Hour), t.Add(time.Hour)} {
		_, other := probe.Zone()
		if other == offset {
			continue
		}
		// the same wall clock under the other offset is a second valid instant
		alt := t.Add(time.Duration(offset-other) * time.Second)
		if _, altOffset := alt.Zone(); altOffset == other && sameClock(alt, t) {
			return time.Time{}, fmt.Errorf("ambiguous time %s in %s", local.Format("2006-01-02 15:04:05"), loc)
		}
	}

	return t.UTC(), nil
}

func sameClock(a, b time.Time) bool {
	ay, amo, ad := a.Date()
	by, bmo, bd := b.Date()
	return ay == by && amo == bmo && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

func asUTC(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}
