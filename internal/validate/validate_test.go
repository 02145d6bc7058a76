package validate

import (
	"testing"
	"time"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

const square = `[[[0,0],[0,10],[10,10],[10,0],[0,0]]]`

func TestValidateNoLocation(t *testing.T) {
	v := Validate(nil, square, 10*time.Minute, time.Now())
	if v.Valid || v.Kind != NoLocation {
		t.Fatalf("got %+v", v)
	}
	if v.Actionable() {
		t.Fatal("NoLocation must not be actionable")
	}
}

func TestValidateSharingEnded(t *testing.T) {
	ended := time.Now()
	loc := &models.CurrentLocation{IsLive: false, EndedAt: &ended}
	v := Validate(loc, square, 10*time.Minute, time.Now())
	if v.Valid || v.Kind != SharingEnded || !v.Actionable() {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateLiveInsideArea(t *testing.T) {
	now := time.Now()
	loc := &models.CurrentLocation{IsLive: true, Latitude: 5, Longitude: 5, UpdatedAt: now}
	v := Validate(loc, square, 10*time.Minute, now)
	if !v.Valid {
		t.Fatalf("expected valid, got %+v", v)
	}
}

func TestValidateLiveOutsideArea(t *testing.T) {
	now := time.Now()
	loc := &models.CurrentLocation{IsLive: true, Latitude: 50, Longitude: 50, UpdatedAt: now}
	v := Validate(loc, square, 10*time.Minute, now)
	if v.Valid || v.Kind != OutsideArea || !v.Actionable() {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateBadWorkingArea(t *testing.T) {
	now := time.Now()
	loc := &models.CurrentLocation{IsLive: true, Latitude: 5, Longitude: 5, UpdatedAt: now}
	v := Validate(loc, `not json`, 10*time.Minute, now)
	if v.Valid || v.Kind != BadWorkingArea {
		t.Fatalf("got %+v", v)
	}
	if v.Actionable() {
		t.Fatal("BadWorkingArea must not be actionable")
	}
}

func TestValidateExpiredLiveUntilTreatedAsNotLive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	loc := &models.CurrentLocation{IsLive: true, LiveUntil: &past, UpdatedAt: now.Add(-2 * time.Minute)}
	v := Validate(loc, square, 10*time.Minute, now)
	if v.Valid || v.Kind != NotLive || !v.Actionable() {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateStaleLocation(t *testing.T) {
	now := time.Now()
	loc := &models.CurrentLocation{IsLive: false, UpdatedAt: now.Add(-20 * time.Minute)}
	v := Validate(loc, square, 10*time.Minute, now)
	if v.Valid || v.Kind != StaleLocation || !v.Actionable() {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateNotLiveButFresh(t *testing.T) {
	now := time.Now()
	loc := &models.CurrentLocation{IsLive: false, UpdatedAt: now.Add(-1 * time.Minute)}
	v := Validate(loc, square, 10*time.Minute, now)
	if v.Valid || v.Kind != NotLive || !v.Actionable() {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateTotality(t *testing.T) {
	// Every verdict must have either Valid=true or a non-empty Kind/ErrorMessage.
	now := time.Now()
	locs := []*models.CurrentLocation{
		nil,
		{IsLive: true, Latitude: 5, Longitude: 5, UpdatedAt: now},
		{IsLive: false, UpdatedAt: now},
	}
	for _, l := range locs {
		v := Validate(l, square, 10*time.Minute, now)
		if !v.Valid && (v.Kind == "" || v.ErrorMessage == "") {
			t.Errorf("non-total verdict for %+v: %+v", l, v)
		}
	}
}
