// Package store defines the document-store contract used by the core and
// provides a retrying, circuit-broken wrapper plus a Postgres/pgx-backed
// implementation.
package store

import (
	"context"
	"time"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

// Store is the document-store contract a project's backing database must
// satisfy. Every method is scoped to the store's own project implicitly.
type Store interface {
	// ProjectName identifies which logical database this store serves.
	ProjectName() string

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	GetEmployee(ctx context.Context, uid string) (*models.Employee, error)
	FindEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error)
	UpdateEmployeeLocation(ctx context.Context, uid string, loc *models.CurrentLocation, lastChanged time.Time) error
	AppendLocationLog(ctx context.Context, log *models.LocationLog) error

	GetAttendance(ctx context.Context, uid string, year int, month string) (*models.Attendance, error)
	SaveAttendance(ctx context.Context, att *models.Attendance) error
	ListClockedIn(ctx context.Context, year int, month string) ([]*models.Attendance, error)

	Close()
}
