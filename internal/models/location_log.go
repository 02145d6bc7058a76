package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// earthRadiusKm is Earth's mean radius, used only for the informational
// distance-moved metric attached to location logs — not for geofence
// containment, which is ray-casting only.
const earthRadiusKm = 6371.0

// LocationLog is one append-only entry in an employee's location history.
type LocationLog struct {
	ID               string    `json:"id"`
	EmployeeUID      string    `json:"employeeUid"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Source           LocationSource `json:"source"`
	Timestamp        time.Time `json:"timestamp"`
	ChatID           int64     `json:"chatId,omitempty"`
	MessageID        int64     `json:"messageId,omitempty"`
	LivePeriodSeconds *int     `json:"livePeriodSeconds,omitempty"`
	DistanceMovedKm  *float64  `json:"distanceMovedKm,omitempty"`
}

// NewLocationLog builds a LocationLog with a fresh id, computing the
// distance moved from prior when prior is non-nil.
func NewLocationLog(employeeUID string, loc *CurrentLocation, chatID, messageID int64, livePeriod *int, prior *LocationLog) *LocationLog {
	log := &LocationLog{
		ID:                uuid.NewString(),
		EmployeeUID:       employeeUID,
		Latitude:          loc.Latitude,
		Longitude:         loc.Longitude,
		Source:            loc.Source,
		Timestamp:         loc.UpdatedAt,
		ChatID:            chatID,
		MessageID:         messageID,
		LivePeriodSeconds: livePeriod,
	}
	if prior != nil {
		d := haversineKm(prior.Latitude, prior.Longitude, log.Latitude, log.Longitude)
		log.DistanceMovedKm = &d
	}
	return log
}

// haversineKm is an informational-only great-circle distance; never used
// for geofence containment (that's internal/geo's ray-casting engine).
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return math.Round(earthRadiusKm*c*1e6) / 1e6
}
