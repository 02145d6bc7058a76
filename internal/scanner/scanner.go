// Package scanner finds every currently clocked-in employee across the
// healthy project databases, joining attendance to employee documents.
package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
)

// ScannedEmployee pairs an attendance document with the employee it
// belongs to, tagged with the project it was found in.
type ScannedEmployee struct {
	Employee    *models.Employee
	Attendance  *models.Attendance
	ProjectName string
}

// Scanner queries every healthy project for clocked-in employees.
type Scanner struct {
	projects *store.Projects
	logger   *zap.Logger
}

// New builds a Scanner over the given project registry.
func New(projects *store.Projects, logger *zap.Logger) *Scanner {
	return &Scanner{projects: projects, logger: logger}
}

// Scan returns every clocked-in employee across the currently healthy
// project stores, for the current UTC year/month. A failure to query one
// project does not abort the scan of the others.
func (s *Scanner) Scan(ctx context.Context, now time.Time) []ScannedEmployee {
	year := now.UTC().Year()
	month := now.UTC().Month().String()

	var out []ScannedEmployee
	for _, st := range s.projects.Healthy(ctx) {
		attendances, err := st.ListClockedIn(ctx, year, month)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("scanner: listing clocked-in failed",
					zap.String("project", st.ProjectName()), zap.Error(err))
			}
			continue
		}
		for _, att := range attendances {
			if att.LastClockInTimestamp == nil {
				continue
			}
			emp, err := st.GetEmployee(ctx, att.UID)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("scanner: joining employee failed",
						zap.String("project", st.ProjectName()), zap.String("uid", att.UID), zap.Error(err))
				}
				continue
			}
			out = append(out, ScannedEmployee{
				Employee:    emp,
				Attendance:  att,
				ProjectName: st.ProjectName(),
			})
		}
	}
	return out
}
