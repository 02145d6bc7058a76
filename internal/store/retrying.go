package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

// maxRetries and retryInterval implement the "up to 2 retries at 1s
// intervals" policy named by the core's retry contract.
const (
	maxRetries    = 2
	retryInterval = time.Second
)

// retrying wraps a Store with a per-project circuit breaker and a bounded
// retry loop, mirroring the teacher's timescaleDBConn/gobreaker wiring but
// generalized to any Store implementation.
type retrying struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// WithRetry wraps inner with retry + circuit-breaking behavior. The breaker
// is named after inner's project name, which labels its log lines.
func WithRetry(inner Store, logger *zap.Logger) Store {
	name := inner.ProjectName()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store-" + name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("store: circuit breaker state change",
					zap.String("breaker", breakerName), zap.String("from", from.String()), zap.String("to", to.String()))
			}
		},
	})
	return &retrying{inner: inner, breaker: breaker, logger: logger}
}

func (r *retrying) ProjectName() string { return r.inner.ProjectName() }

func (r *retrying) Close() { r.inner.Close() }

func (r *retrying) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, err := r.breaker.Execute(func() (any, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxRetries {
			if r.logger != nil {
				r.logger.Warn("store: operation failed, retrying",
					zap.String("project", r.ProjectName()), zap.String("op", op),
					zap.Int("attempt", attempt+1), zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	return lastErr
}

func (r *retrying) Ping(ctx context.Context) error {
	return r.withRetry(ctx, "Ping", func() error { return r.inner.Ping(ctx) })
}

func (r *retrying) GetEmployee(ctx context.Context, uid string) (*models.Employee, error) {
	var out *models.Employee
	err := r.withRetry(ctx, "GetEmployee", func() error {
		var innerErr error
		out, innerErr = r.inner.GetEmployee(ctx, uid)
		return innerErr
	})
	return out, err
}

func (r *retrying) FindEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	var out *models.Employee
	err := r.withRetry(ctx, "FindEmployeeByChatID", func() error {
		var innerErr error
		out, innerErr = r.inner.FindEmployeeByChatID(ctx, chatID)
		return innerErr
	})
	return out, err
}

func (r *retrying) UpdateEmployeeLocation(ctx context.Context, uid string, loc *models.CurrentLocation, lastChanged time.Time) error {
	return r.withRetry(ctx, "UpdateEmployeeLocation", func() error {
		return r.inner.UpdateEmployeeLocation(ctx, uid, loc, lastChanged)
	})
}

func (r *retrying) AppendLocationLog(ctx context.Context, log *models.LocationLog) error {
	return r.withRetry(ctx, "AppendLocationLog", func() error {
		return r.inner.AppendLocationLog(ctx, log)
	})
}

func (r *retrying) GetAttendance(ctx context.Context, uid string, year int, month string) (*models.Attendance, error) {
	var out *models.Attendance
	err := r.withRetry(ctx, "GetAttendance", func() error {
		var innerErr error
		out, innerErr = r.inner.GetAttendance(ctx, uid, year, month)
		return innerErr
	})
	return out, err
}

func (r *retrying) SaveAttendance(ctx context.Context, att *models.Attendance) error {
	return r.withRetry(ctx, "SaveAttendance", func() error {
		return r.inner.SaveAttendance(ctx, att)
	})
}

func (r *retrying) ListClockedIn(ctx context.Context, year int, month string) ([]*models.Attendance, error) {
	var out []*models.Attendance
	err := r.withRetry(ctx, "ListClockedIn", func() error {
		var innerErr error
		out, innerErr = r.inner.ListClockedIn(ctx, year, month)
		return innerErr
	})
	return out, err
}
