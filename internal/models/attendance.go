package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrNoPriorClockIn is returned when an auto-clock-out is attempted against
// an attendance record with no open clock-in.
type ErrNoPriorClockIn string

func (e ErrNoPriorClockIn) Error() string { return string(e) }

// WorkedHoursEntry is one clock-in or clock-out stamp within a day.
type WorkedHoursEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // "Clock In" or "Clock Out"
	Hour      string    `json:"hour"`
}

const (
	WorkedHoursTypeClockIn  = "Clock In"
	WorkedHoursTypeClockOut = "Clock Out"
)

// DailyAttendance is one day's entry within an attendance document's values
// array. Day is 1-based; the array index is Day-1.
type DailyAttendance struct {
	ID               string             `json:"id"`
	Day              int                `json:"day"`
	Value            *string            `json:"value,omitempty"`
	Timestamp        time.Time          `json:"timestamp,omitempty"`
	From             string             `json:"from,omitempty"`
	To               string             `json:"to,omitempty"`
	Status           string             `json:"status,omitempty"`
	DailyWorkedHours float64            `json:"dailyWorkedHours,omitempty"`
	WorkedHours      []WorkedHoursEntry `json:"workedHours,omitempty"`
}

const (
	StatusNA        = "N/A"
	StatusSubmitted = "Submitted"
)

// Attendance is the per-employee, per-month attendance document.
type Attendance struct {
	UID                   string            `json:"uid"`
	Year                  int               `json:"year"`
	Month                 string            `json:"month"`
	MonthlyWorkedHours    float64           `json:"monthlyWorkedHours"`
	LastClockInTimestamp  *time.Time        `json:"lastClockInTimestamp,omitempty"`
	Values                []DailyAttendance `json:"values"`
	LastChanged           time.Time         `json:"lastChanged,omitempty"`
}

// MaxDaysInMonth bounds the dense Values array; months never exceed 31 days.
const MaxDaysInMonth = 31

// NormalizeValues reshapes Values into a dense, Day-ordered array of length
// equal to the highest day present (capped at MaxDaysInMonth), filling any
// gaps with empty placeholders. The document store may round-trip the
// values array as a JSON object keyed by numeric string index (e.g. when an
// underlying driver serializes a sparse array as a map) rather than a JSON
// array; UnmarshalAttendanceValues handles that shape, and NormalizeValues then
// produces the dense in-memory form every component operates on.
func (a *Attendance) NormalizeValues() {
	maxDay := 0
	for _, d := range a.Values {
		if d.Day > maxDay {
			maxDay = d.Day
		}
	}
	if maxDay == 0 {
		return
	}
	if maxDay > MaxDaysInMonth {
		maxDay = MaxDaysInMonth
	}
	byDay := make(map[int]DailyAttendance, len(a.Values))
	for _, d := range a.Values {
		if d.Day >= 1 && d.Day <= MaxDaysInMonth {
			byDay[d.Day] = d
		}
	}
	dense := make([]DailyAttendance, maxDay)
	for day := 1; day <= maxDay; day++ {
		if d, ok := byDay[day]; ok {
			dense[day-1] = d
		} else {
			dense[day-1] = DailyAttendance{Day: day, Status: StatusNA}
		}
	}
	a.Values = dense
}

// sparseValues is the shape a values array takes when a driver serializes a
// JSON array of objects as a numeric-keyed JSON object instead (observed
// from some document stores when an array contains holes).
type sparseValues map[string]DailyAttendance

// UnmarshalAttendanceValues decodes a values payload that may be either a
// JSON array or a sparse numeric-keyed JSON object, returning the entries
// found (not yet normalized to a dense array — call NormalizeValues after).
func UnmarshalAttendanceValues(raw json.RawMessage) ([]DailyAttendance, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var asArray []DailyAttendance
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return asArray, nil
	}
	var asMap sparseValues
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("models: values is neither an array nor a keyed object: %w", err)
	}
	out := make([]DailyAttendance, 0, len(asMap))
	for _, d := range asMap {
		out = append(out, d)
	}
	return out, nil
}
