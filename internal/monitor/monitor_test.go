package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
	"github.com/bbt-251/geofence-attendance-core/internal/notify"
	"github.com/bbt-251/geofence-attendance-core/internal/scanner"
	"github.com/bbt-251/geofence-attendance-core/internal/store"
	"github.com/bbt-251/geofence-attendance-core/internal/transport"
)

// fakeStore is an in-memory Store used only to exercise the monitor loop.
type fakeStore struct {
	project     string
	employees   map[string]*models.Employee
	attendances map[string]*models.Attendance
	saved       []*models.Attendance
}

func newFakeStore(project string) *fakeStore {
	return &fakeStore{project: project, employees: map[string]*models.Employee{}, attendances: map[string]*models.Attendance{}}
}

func (f *fakeStore) ProjectName() string          { return f.project }
func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

func (f *fakeStore) GetEmployee(ctx context.Context, uid string) (*models.Employee, error) {
	return f.employees[uid], nil
}
func (f *fakeStore) FindEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	for _, e := range f.employees {
		if e.TelegramChatID != nil && *e.TelegramChatID == chatID {
			return e, nil
		}
	}
	return nil, nil
}
func (f *fakeStore) UpdateEmployeeLocation(ctx context.Context, uid string, loc *models.CurrentLocation, lastChanged time.Time) error {
	f.employees[uid].CurrentLocation = loc
	return nil
}
func (f *fakeStore) AppendLocationLog(ctx context.Context, log *models.LocationLog) error { return nil }
func (f *fakeStore) GetAttendance(ctx context.Context, uid string, year int, month string) (*models.Attendance, error) {
	return f.attendances[uid], nil
}
func (f *fakeStore) SaveAttendance(ctx context.Context, att *models.Attendance) error {
	f.attendances[att.UID] = att
	f.saved = append(f.saved, att)
	return nil
}
func (f *fakeStore) ListClockedIn(ctx context.Context, year int, month string) ([]*models.Attendance, error) {
	var out []*models.Attendance
	for _, a := range f.attendances {
		if a.LastClockInTimestamp != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

type noopTransport struct{ events chan transport.InboundEvent }

func (n *noopTransport) Send(ctx context.Context, chatID int64, text string, k *transport.Keyboard) error {
	return nil
}
func (n *noopTransport) Run(ctx context.Context) error                   { return nil }
func (n *noopTransport) Events() <-chan transport.InboundEvent { return n.events }

func TestMonitorTickClocksOutEmployeeWithStaleLocation(t *testing.T) {
	fs := newFakeStore("proj1")
	clockIn := time.Now().Add(-time.Hour)
	fs.employees["u1"] = &models.Employee{
		UID:         "u1",
		WorkingArea: `[[[0,0],[0,10],[10,10],[10,0],[0,0]]]`,
		Timezone:    "UTC",
		CurrentLocation: &models.CurrentLocation{
			IsLive: false, UpdatedAt: time.Now().Add(-30 * time.Minute),
		},
	}
	fs.attendances["u1"] = &models.Attendance{
		UID: "u1", Year: time.Now().Year(), Month: time.Now().Month().String(),
		LastClockInTimestamp: &clockIn,
	}

	projects := store.NewProjects([]store.Store{fs}, nil)
	sc := scanner.New(projects, nil)
	notifier := notify.New(&noopTransport{events: make(chan transport.InboundEvent)}, 10, 5, nil)

	cfg := DefaultConfig()
	loop := New(cfg, sc, projects, notifier, nil, nil, prometheus.NewRegistry(), zap.NewNop())

	loop.tick(context.Background())

	if fs.attendances["u1"].LastClockInTimestamp != nil {
		t.Fatal("expected employee to be clocked out")
	}
	if len(fs.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(fs.saved))
	}
}

func TestMonitorTickSkipsEmployeeInsideArea(t *testing.T) {
	fs := newFakeStore("proj1")
	clockIn := time.Now().Add(-time.Hour)
	fs.employees["u1"] = &models.Employee{
		UID:         "u1",
		WorkingArea: `[[[0,0],[0,10],[10,10],[10,0],[0,0]]]`,
		Timezone:    "UTC",
		CurrentLocation: &models.CurrentLocation{
			IsLive: true, Latitude: 5, Longitude: 5, UpdatedAt: time.Now(),
		},
	}
	fs.attendances["u1"] = &models.Attendance{
		UID: "u1", Year: time.Now().Year(), Month: time.Now().Month().String(),
		LastClockInTimestamp: &clockIn,
	}

	projects := store.NewProjects([]store.Store{fs}, nil)
	sc := scanner.New(projects, nil)
	notifier := notify.New(&noopTransport{events: make(chan transport.InboundEvent)}, 10, 5, nil)

	cfg := DefaultConfig()
	loop := New(cfg, sc, projects, notifier, nil, nil, prometheus.NewRegistry(), zap.NewNop())

	loop.tick(context.Background())

	if fs.attendances["u1"].LastClockInTimestamp == nil {
		t.Fatal("expected employee to remain clocked in")
	}
}
