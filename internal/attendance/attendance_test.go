package attendance

import (
	"testing"
	"time"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

func TestAutoClockOutRequiresPriorClockIn(t *testing.T) {
	att := &models.Attendance{UID: "u1", Year: 2026, Month: "July"}
	err := AutoClockOut(att, "UTC", time.Now())
	if err == nil {
		t.Fatal("expected error when no prior clock-in")
	}
}

func TestAutoClockOutSetsAbsentValueAndClearsClockIn(t *testing.T) {
	clockIn := time.Date(2026, time.July, 15, 9, 0, 0, 0, time.UTC)
	att := &models.Attendance{
		UID:                  "u1",
		Year:                 2026,
		Month:                "July",
		LastClockInTimestamp: &clockIn,
	}
	now := clockIn.Add(4 * time.Hour)

	if err := AutoClockOut(att, "UTC", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if att.LastClockInTimestamp != nil {
		t.Fatal("expected LastClockInTimestamp to be cleared")
	}
	day := att.Values[14]
	if day.Value == nil || *day.Value != "A" {
		t.Fatalf("expected value A, got %+v", day.Value)
	}
	if day.Status != models.StatusSubmitted {
		t.Fatalf("expected status Submitted, got %s", day.Status)
	}
	if day.DailyWorkedHours < 3.9 || day.DailyWorkedHours > 4.1 {
		t.Fatalf("expected ~4 hours worked, got %f", day.DailyWorkedHours)
	}
	if att.MonthlyWorkedHours < 3.9 {
		t.Fatalf("expected monthly hours to accumulate, got %f", att.MonthlyWorkedHours)
	}
	if len(day.WorkedHours) != 1 || day.WorkedHours[0].Type != models.WorkedHoursTypeClockOut {
		t.Fatalf("expected one clock-out entry, got %+v", day.WorkedHours)
	}
}

func TestAutoClockOutPreservesSparseValuesShape(t *testing.T) {
	clockIn := time.Date(2026, time.July, 3, 9, 0, 0, 0, time.UTC)
	existing := models.DailyAttendance{Day: 1, Status: models.StatusSubmitted}
	att := &models.Attendance{
		UID:                  "u1",
		Year:                 2026,
		Month:                "July",
		Values:               []models.DailyAttendance{existing},
		LastClockInTimestamp: &clockIn,
	}
	if err := AutoClockOut(att, "UTC", clockIn.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(att.Values) != 3 {
		t.Fatalf("expected dense array grown to day 3, got len %d", len(att.Values))
	}
	if att.Values[0].Status != models.StatusSubmitted {
		t.Fatalf("expected day 1 to be preserved, got %+v", att.Values[0])
	}
}

func TestAutoClockOutIndexesDayByUTCNotLocalTimezone(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		t.Fatalf("failed to load Africa/Nairobi: %v", err)
	}
	// 00:30 Nairobi (UTC+3) on Aug 1 is still July 31 in UTC.
	clockIn := time.Date(2026, time.August, 1, 0, 30, 0, 0, nairobi)
	att := &models.Attendance{
		UID:                  "u1",
		Year:                 2026,
		Month:                "July",
		LastClockInTimestamp: &clockIn,
	}
	now := clockIn.Add(time.Hour)

	if err := AutoClockOut(att, "Africa/Nairobi", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(att.Values) != 31 {
		t.Fatalf("expected dense array grown to day 31 (UTC day), got len %d", len(att.Values))
	}
	day := att.Values[30]
	if day.Value == nil || *day.Value != "A" {
		t.Fatalf("expected value A on day 31, got %+v", day.Value)
	}
}

func TestClassifyHuman(t *testing.T) {
	if got := ClassifyHuman(8, 8, 0.9, 0.5); got != "P" {
		t.Errorf("expected P, got %s", got)
	}
	if got := ClassifyHuman(4, 8, 0.9, 0.5); got != "H" {
		t.Errorf("expected H, got %s", got)
	}
	if got := ClassifyHuman(1, 8, 0.9, 0.5); got != "A" {
		t.Errorf("expected A, got %s", got)
	}
}
