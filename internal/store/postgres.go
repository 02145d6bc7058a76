package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bbt-251/geofence-attendance-core/internal/models"
)

// PostgresConfig describes how to reach one project's backing database.
type PostgresConfig struct {
	ProjectName     string
	DSN             string
	MaxConns        int32
	ConnectTimeout  time.Duration
}

// postgresStore is a JSONB-document-per-collection implementation of Store.
// The employee and attendance collections are tables of the shape (id text,
// doc jsonb, updated_at timestamptz); employee_location_logs is (id text,
// employee_uid text, doc jsonb, created_at timestamptz). This lets the same Go structs serve every project's database without a
// per-tenant schema migration.
type postgresStore struct {
	projectName string
	pool        *pgxpool.Pool
	logger      *zap.Logger
}

// NewPostgresStore connects a pool for cfg and verifies it's reachable.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parsing dsn for project %s: %w", cfg.ProjectName, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connecting project %s: %w", cfg.ProjectName, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging project %s: %w", cfg.ProjectName, err)
	}

	s := &postgresStore{projectName: cfg.ProjectName, pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *postgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS employee (
			id text PRIMARY KEY,
			doc jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id text PRIMARY KEY,
			doc jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS employee_location_logs (
			id text PRIMARY KEY,
			employee_uid text NOT NULL,
			doc jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_location_logs_employee ON employee_location_logs (employee_uid, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_employee_chat_id ON employee ((doc->>'telegramChatID'))`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_year_month ON attendance ((doc->>'year'), (doc->>'month'))`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensuring schema for project %s: %w", s.projectName, err)
		}
	}
	return nil
}

func (s *postgresStore) ProjectName() string { return s.projectName }

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *postgresStore) Close() {
	s.pool.Close()
}

func attendanceID(uid string, year int, month string) string {
	return fmt.Sprintf("%s:%d:%s", uid, year, month)
}

func (s *postgresStore) GetEmployee(ctx context.Context, uid string) (*models.Employee, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM employee WHERE id = $1`, uid).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("store: get employee %s: %w", uid, err)
	}
	var emp models.Employee
	if err := json.Unmarshal(raw, &emp); err != nil {
		return nil, fmt.Errorf("store: decode employee %s: %w", uid, err)
	}
	return &emp, nil
}

func (s *postgresStore) FindEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM employee WHERE (doc->>'telegramChatID')::bigint = $1 LIMIT 1`, chatID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("store: find employee by chat id %d: %w", chatID, err)
	}
	var emp models.Employee
	if err := json.Unmarshal(raw, &emp); err != nil {
		return nil, fmt.Errorf("store: decode employee for chat id %d: %w", chatID, err)
	}
	return &emp, nil
}

func (s *postgresStore) UpdateEmployeeLocation(ctx context.Context, uid string, loc *models.CurrentLocation, lastChanged time.Time) error {
	emp, err := s.GetEmployee(ctx, uid)
	if err != nil {
		return err
	}
	emp.CurrentLocation = loc
	emp.LastChanged = lastChanged

	raw, err := json.Marshal(emp)
	if err != nil {
		return fmt.Errorf("store: encode employee %s: %w", uid, err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE employee SET doc = $2, updated_at = $3 WHERE id = $1`, uid, raw, lastChanged)
	if err != nil {
		return fmt.Errorf("store: update employee location %s: %w", uid, err)
	}
	return nil
}

func (s *postgresStore) AppendLocationLog(ctx context.Context, log *models.LocationLog) error {
	raw, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("store: encode location log %s: %w", log.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO employee_location_logs (id, employee_uid, doc) VALUES ($1, $2, $3)`,
		log.ID, log.EmployeeUID, raw)
	if err != nil {
		return fmt.Errorf("store: append location log %s: %w", log.ID, err)
	}
	return nil
}

func (s *postgresStore) GetAttendance(ctx context.Context, uid string, year int, month string) (*models.Attendance, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM attendance WHERE id = $1`, attendanceID(uid, year, month)).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("store: get attendance %s/%d/%s: %w", uid, year, month, err)
	}
	att, err := decodeAttendance(raw)
	if err != nil {
		return nil, fmt.Errorf("store: decode attendance %s/%d/%s: %w", uid, year, month, err)
	}
	return att, nil
}

func (s *postgresStore) SaveAttendance(ctx context.Context, att *models.Attendance) error {
	raw, err := json.Marshal(att)
	if err != nil {
		return fmt.Errorf("store: encode attendance %s: %w", att.UID, err)
	}
	id := attendanceID(att.UID, att.Year, att.Month)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO attendance (id, doc, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		id, raw, att.LastChanged)
	if err != nil {
		return fmt.Errorf("store: save attendance %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) ListClockedIn(ctx context.Context, year int, month string) ([]*models.Attendance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM attendance
		WHERE (doc->>'year')::int = $1 AND doc->>'month' = $2
		AND doc->>'lastClockInTimestamp' IS NOT NULL`, year, month)
	if err != nil {
		return nil, fmt.Errorf("store: list clocked-in for %d/%s: %w", year, month, err)
	}
	defer rows.Close()

	var out []*models.Attendance
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan attendance row: %w", err)
		}
		att, err := decodeAttendance(raw)
		if err != nil {
			return nil, fmt.Errorf("store: decode attendance row: %w", err)
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// decodeAttendance unmarshals an attendance document, tolerating a values
// array that round-tripped through the driver as a sparse numeric-keyed
// object rather than a JSON array.
func decodeAttendance(raw []byte) (*models.Attendance, error) {
	var envelope struct {
		UID                  string          `json:"uid"`
		Year                 int             `json:"year"`
		Month                string          `json:"month"`
		MonthlyWorkedHours   float64         `json:"monthlyWorkedHours"`
		LastClockInTimestamp *time.Time      `json:"lastClockInTimestamp,omitempty"`
		Values               json.RawMessage `json:"values"`
		LastChanged          time.Time       `json:"lastChanged,omitempty"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	values, err := models.UnmarshalAttendanceValues(envelope.Values)
	if err != nil {
		return nil, err
	}
	att := &models.Attendance{
		UID:                  envelope.UID,
		Year:                 envelope.Year,
		Month:                envelope.Month,
		MonthlyWorkedHours:   envelope.MonthlyWorkedHours,
		LastClockInTimestamp: envelope.LastClockInTimestamp,
		Values:               values,
		LastChanged:          envelope.LastChanged,
	}
	att.NormalizeValues()
	return att, nil
}
