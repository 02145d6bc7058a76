// Package attendance mutates attendance documents: the automatic
// clock-out path driven by the monitor loop, and a classification helper
// for the (out-of-scope) human-initiated clock-out path, kept here for
// parity even though the auto path never calls it.
package attendance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

// autoClockOutValue is the classification code an automatic clock-out
// always records, regardless of how many hours were actually worked —
// the auto path never runs the presence-percentage classifier a
// human-initiated clock-out would.
const autoClockOutValue = "A"

// AutoClockOut records a clock-out against att at now, in the employee's
// timezone. att.LastClockInTimestamp must be set; on success it is cleared.
func AutoClockOut(att *models.Attendance, tz string, now time.Time) error {
	if att.LastClockInTimestamp == nil {
		return models.ErrNoPriorClockIn(fmt.Sprintf("attendance: no open clock-in for %s", att.UID))
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, err = time.LoadLocation(models.DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	// Day indexing stays in UTC, for parity with the human clock-out path —
	// only the recorded hour string is localized.
	clockIn := att.LastClockInTimestamp.UTC()
	day := clockIn.Day()

	att.NormalizeValues()
	if len(att.Values) < day {
		grown := make([]models.DailyAttendance, day)
		copy(grown, att.Values)
		for i := len(att.Values); i < day; i++ {
			grown[i] = models.DailyAttendance{Day: i + 1, Status: models.StatusNA}
		}
		att.Values = grown
	}

	entry := &att.Values[day-1]
	hoursWorked := now.In(loc).Sub(clockIn).Hours()
	if hoursWorked < 0 {
		hoursWorked = 0
	}

	entry.WorkedHours = append(entry.WorkedHours, models.WorkedHoursEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Type:      models.WorkedHoursTypeClockOut,
		Hour:      now.In(loc).Format("3:04 PM"),
	})
	value := autoClockOutValue
	entry.Value = &value
	entry.Status = models.StatusSubmitted
	entry.Timestamp = now
	entry.DailyWorkedHours += hoursWorked

	att.MonthlyWorkedHours += hoursWorked
	att.LastClockInTimestamp = nil
	att.LastChanged = now

	return nil
}

// ClassifyHuman maps a day's worked hours to a presence classification for
// the human-initiated clock-out path. It is never called from the
// automatic path, which always records "A" regardless of hours worked.
func ClassifyHuman(dailyWorkedHours, expectedHours, presentThreshold, halfPresentThreshold float64) string {
	if expectedHours <= 0 {
		return "A"
	}
	pct := dailyWorkedHours / expectedHours
	switch {
	case pct >= presentThreshold:
		return "P"
	case pct >= halfPresentThreshold:
		return "H"
	default:
		return "A"
	}
}

// LastClockOut returns the most recent Clock Out entry recorded for day, or
// nil if none exists.
func LastClockOut(day models.DailyAttendance) *models.WorkedHoursEntry {
	var last *models.WorkedHoursEntry
	for i := range day.WorkedHours {
		e := &day.WorkedHours[i]
		if e.Type != models.WorkedHoursTypeClockOut {
			continue
		}
		if last == nil || e.Timestamp.After(last.Timestamp) {
			last = e
		}
	}
	return last
}
