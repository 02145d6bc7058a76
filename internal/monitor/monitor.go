// Package monitor drives the periodic auto-clock-out control loop: scan
// clocked-in employees, validate their location against their working
// area, and mutate attendance documents for actionable failures.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/attendance"
	"github.com/bbt-251/geofence-attendance-core/internal/bus"
	"github.com/bbt-251/geofence-attendance-core/internal/models"
	"github.com/bbt-251/geofence-attendance-core/internal/notify"
	"github.com/bbt-251/geofence-attendance-core/internal/scanner"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
	"github.com/bbt-251/geofence-attendance-core/internal/validate"
)

// Config controls the loop's cadence and behavior.
type Config struct {
	CheckInterval        time.Duration
	MaxLocationAge       time.Duration
	Enabled              bool
	NotificationsEnabled bool
	WarmUp               time.Duration
}

// DefaultConfig matches the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:        5 * time.Minute,
		MaxLocationAge:       10 * time.Minute,
		Enabled:              true,
		NotificationsEnabled: true,
		WarmUp:               30 * time.Second,
	}
}

// TickResult summarizes one employee's outcome within a tick.
type TickResult struct {
	EmployeeUID string
	ProjectName string
	Reason      string
}

// Loop is the monitor's runtime state.
type Loop struct {
	cfg      Config
	scanner  *scanner.Scanner
	projects *store.Projects
	notifier *notify.Notifier
	bus         *bus.Bus
	broadcaster Broadcaster
	logger      *zap.Logger

	clockOutsTotal prometheus.Counter
	tickDuration   prometheus.Histogram
	lastTickAt     prometheus.Gauge

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Broadcaster fans a value out to connected ops dashboard clients
// in-process, independent of the MQTT bus. *api.Feed satisfies this.
type Broadcaster interface {
	Broadcast(payload any)
}

// New builds a Loop. registry is passed as a *prometheus.Registry so the
// monitor's counters are reported alongside the rest of the service's
// metrics. broadcaster may be nil.
func New(cfg Config, sc *scanner.Scanner, projects *store.Projects, notifier *notify.Notifier, b *bus.Bus, broadcaster Broadcaster, registry *prometheus.Registry, logger *zap.Logger) *Loop {
	l := &Loop{
		cfg:         cfg,
		scanner:     sc,
		projects:    projects,
		notifier:    notifier,
		bus:         b,
		broadcaster: broadcaster,
		logger:      logger,
		clockOutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_auto_clock_outs_total",
			Help: "Total number of automatic clock-outs performed.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "monitor_tick_duration_seconds",
			Help: "Duration of each monitor tick.",
		}),
		lastTickAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_last_tick_unixtime",
			Help: "Unix timestamp of the last completed monitor tick.",
		}),
	}
	if registry != nil {
		registry.MustRegister(l.clockOutsTotal, l.tickDuration, l.lastTickAt)
	}
	return l
}

// Running reports whether the loop is currently ticking.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start launches the loop if enabled. It is idempotent — calling Start
// twice without an intervening Stop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.cfg.Enabled || l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.ticker = time.NewTicker(l.cfg.CheckInterval)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		select {
		case <-time.After(l.cfg.WarmUp):
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
		l.ticker.Reset(l.cfg.CheckInterval)
		l.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopCh:
				return
			case <-l.ticker.C:
				l.tick(ctx)
			}
		}
	}()
}

// Stop cancels future ticks; an in-flight tick runs to completion.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	l.ticker.Stop()
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Loop) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		l.tickDuration.Observe(time.Since(start).Seconds())
		l.lastTickAt.Set(float64(time.Now().Unix()))
	}()

	now := time.Now().UTC()
	scanned := l.scanner.Scan(ctx, now)

	var results []TickResult
	for _, se := range scanned {
		if se.Employee.WorkingArea == "" {
			continue
		}

		verdict := validate.Validate(se.Employee.CurrentLocation, se.Employee.WorkingArea, l.cfg.MaxLocationAge, now)
		if !verdict.Actionable() {
			continue
		}

		if l.recentlyClockedOut(se.Attendance, now) {
			continue
		}

		if err := l.mutate(ctx, se, verdict, now); err != nil {
			if l.logger != nil {
				l.logger.Warn("monitor: auto clock-out failed",
					zap.String("employeeUID", se.Employee.UID), zap.Error(err))
			}
			continue
		}

		results = append(results, TickResult{
			EmployeeUID: se.Employee.UID,
			ProjectName: se.ProjectName,
			Reason:      verdict.ErrorMessage,
		})
	}

	for _, r := range results {
		l.clockOutsTotal.Inc()
		event := bus.AutoClockedOutEvent{
			EmployeeUID: r.EmployeeUID,
			ProjectName: r.ProjectName,
			Reason:      r.Reason,
			Timestamp:   now,
		}
		l.bus.PublishAutoClockedOut(event)
		if l.broadcaster != nil {
			l.broadcaster.Broadcast(event)
		}
	}
}

// recentlyClockedOut dedups within the check interval: if the most recent
// Clock Out entry on the clock-in's day is newer than now-CheckInterval,
// this employee was already handled this cycle.
func (l *Loop) recentlyClockedOut(att *models.Attendance, now time.Time) bool {
	if att.LastClockInTimestamp == nil {
		return false
	}
	day := att.LastClockInTimestamp.UTC().Day()
	if day < 1 || day > len(att.Values) {
		return false
	}
	last := attendance.LastClockOut(att.Values[day-1])
	if last == nil {
		return false
	}
	return now.Sub(last.Timestamp) < l.cfg.CheckInterval
}

func (l *Loop) mutate(ctx context.Context, se scanner.ScannedEmployee, verdict validate.Verdict, now time.Time) error {
	st, ok := l.projects.Get(se.ProjectName)
	if !ok {
		return nil
	}

	if err := attendance.AutoClockOut(se.Attendance, se.Employee.EffectiveTimezone(), now); err != nil {
		return err
	}
	if err := st.SaveAttendance(ctx, se.Attendance); err != nil {
		return err
	}

	var manager *models.Employee
	if se.Employee.ReportingLineManager != "" {
		if m, err := st.GetEmployee(ctx, se.Employee.ReportingLineManager); err == nil {
			manager = m
		}
	}
	l.notifier.NotifyAutoClockOut(ctx, se.Employee, manager, verdict.ErrorMessage)
	return nil
}
