// Package validate implements the geofence validator: a pure function from
// (current location, working area, policy) to a typed verdict.
package validate

import (
	"time"

	"github.com/bbt-251/geofence-attendance-core/internal/geo"
	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

// ErrorKind identifies why a location failed validation.
type ErrorKind string

const (
	// NoLocation: the employee has no currentLocation at all.
	NoLocation ErrorKind = "NO_LOCATION"
	// SharingEnded: the location was explicitly marked ended.
	SharingEnded ErrorKind = "SHARING_ENDED"
	// StaleLocation: not live and older than the configured max age.
	StaleLocation ErrorKind = "STALE_LOCATION"
	// NotLive: not live but not yet stale either.
	NotLive ErrorKind = "NOT_LIVE"
	// OutsideArea: live, but outside every polygon of the working area.
	OutsideArea ErrorKind = "OUTSIDE_AREA"
	// BadWorkingArea: the working area payload could not be parsed.
	BadWorkingArea ErrorKind = "BAD_WORKING_AREA"
)

// actionable partitions the kinds that should trigger an auto clock-out from
// those that merely mean "can't tell" and should be left alone.
var actionable = map[ErrorKind]bool{
	OutsideArea:   true,
	NotLive:       true,
	SharingEnded:  true,
	StaleLocation: true,
}

// Verdict is the validator's total result: either Valid, or a reason and a
// human-readable message suitable for a notification. Accuracy, Coordinates,
// LocationAgeMinutes and IsLive retain the location snapshot the decision was
// made against, for callers that want to log or display it alongside the
// reason.
type Verdict struct {
	Valid        bool
	Kind         ErrorKind
	ErrorMessage string

	Accuracy           *float64
	Coordinates        *geo.Point
	LocationAgeMinutes *float64
	IsLive             bool
}

// Actionable reports whether this verdict's failure should drive an auto
// clock-out. Valid verdicts are never actionable.
func (v Verdict) Actionable() bool {
	return !v.Valid && actionable[v.Kind]
}

func invalid(kind ErrorKind, msg string, loc *models.CurrentLocation, now time.Time) Verdict {
	v := Verdict{Valid: false, Kind: kind, ErrorMessage: msg}
	if loc != nil {
		v.Accuracy = loc.Accuracy
		coords := geo.Point{Lon: loc.Longitude, Lat: loc.Latitude}
		v.Coordinates = &coords
		ageMinutes := now.Sub(loc.UpdatedAt).Minutes()
		v.LocationAgeMinutes = &ageMinutes
		v.IsLive = loc.IsLive
	}
	return v
}

// Validate is total: every combination of inputs maps to exactly one
// verdict, never a Go error. now is injected for testability.
func Validate(loc *models.CurrentLocation, workingArea string, maxAge time.Duration, now time.Time) Verdict {
	if loc == nil {
		return invalid(NoLocation, "no location has been shared", loc, now)
	}
	if loc.EndedAt != nil {
		return invalid(SharingEnded, "live location sharing has ended", loc, now)
	}

	isLive := loc.IsLive && (loc.LiveUntil == nil || now.Before(*loc.LiveUntil))

	if isLive {
		mp, err := geo.Parse(workingArea)
		if err != nil {
			return invalid(BadWorkingArea, "working area is not configured correctly", loc, now)
		}
		if !mp.Contains(geo.Point{Lon: loc.Longitude, Lat: loc.Latitude}) {
			return invalid(OutsideArea, "employee has left the assigned working area", loc, now)
		}
		ageMinutes := now.Sub(loc.UpdatedAt).Minutes()
		return Verdict{
			Valid:              true,
			Accuracy:           loc.Accuracy,
			Coordinates:        &geo.Point{Lon: loc.Longitude, Lat: loc.Latitude},
			LocationAgeMinutes: &ageMinutes,
			IsLive:             loc.IsLive,
		}
	}

	age := now.Sub(loc.UpdatedAt)
	if age > maxAge {
		return invalid(StaleLocation, "location has not been updated recently", loc, now)
	}
	return invalid(NotLive, "live location sharing is not active", loc, now)
}
