/*
Package postgres provides a PostgreSQL-backed implementation of leave.Store.

PURPOSE:
  Production store for multi-instance deployments. Same tables and
  semantics as store/sqlite; the differences are how concurrency is
  enforced and how the schema is managed.

CONCURRENCY:
  - LockApplicant takes pg_advisory_xact_lock(applicant id). Two
    submissions for the same teacher serialize on it, so the overlap check
    and the insert behave as one step. The lock is released on commit or
    rollback.
  - Inside WithTx, GetRequest reads with SELECT ... FOR UPDATE so two
    approvers (or an approver and the applicant cancelling) can't both act
    on the same pending row.
  - View runs in a READ ONLY transaction: balances and queues see one
    snapshot.

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded and applied with
  golang-migrate on New().

USAGE:
  store, err := postgres.New(ctx, cfg.Store.Postgres.DSN(), postgres.Options{}, logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: Embedded implementation
  - leave/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configures the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Store implements leave.Store using PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ leave.Store = (*Store)(nil)

// New connects, pings and migrates the database.
func New(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, logger: logger.Named("postgres")}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// migrate applies every pending embedded migration.
func (s *Store) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	if dirty {
		s.logger.Warn("database migration is dirty", zap.Uint("version", version))
	} else {
		s.logger.Info("database migrated", zap.Uint("version", version))
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset deletes all rows and restarts id sequences (dev/demo only).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"TRUNCATE notifications, meetings, leave_requests, leave_categories, teachers RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	return nil
}

// =============================================================================
// UNITS OF WORK (leave.Store interface)
// =============================================================================

// WithTx executes fn within a read-committed transaction. Requests are read
// with row locks.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txRepo{q: sqlTx, lock: true}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View executes fn within a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(leave.Repository) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txRepo{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txRepo struct {
	q querier
	// lock makes GetRequest take a row lock (write units of work only).
	lock bool
}

// =============================================================================
// TEACHERS
// =============================================================================

func (r *txRepo) GetTeacher(ctx context.Context, id generic.TeacherID) (*leave.Teacher, error) {
	var t leave.Teacher
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, subject FROM teachers WHERE id = $1", id,
	).Scan(&t.ID, &t.Name, &t.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	return &t, nil
}

func (r *txRepo) ListTeachers(ctx context.Context, subject string) ([]leave.Teacher, error) {
	query := "SELECT id, name, subject FROM teachers"
	var args []any
	if subject != "" {
		query += " WHERE subject = $1"
		args = append(args, subject)
	}
	query += " ORDER BY id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}
	defer rows.Close()

	var teachers []leave.Teacher
	for rows.Next() {
		var t leave.Teacher
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject); err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

func (r *txRepo) SaveTeacher(ctx context.Context, t *leave.Teacher) error {
	if t.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO teachers (id, name, subject) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, subject = EXCLUDED.subject
		`, t.ID, t.Name, t.Subject)
		if err != nil {
			return fmt.Errorf("failed to save teacher: %w", err)
		}
		return r.syncSequence(ctx, "teachers")
	}
	err := r.q.QueryRowContext(ctx,
		"INSERT INTO teachers (name, subject) VALUES ($1, $2) RETURNING id", t.Name, t.Subject,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to save teacher: %w", err)
	}
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (r *txRepo) GetCategory(ctx context.Context, id generic.CategoryID) (*leave.Category, error) {
	var (
		c     leave.Category
		quota decimal.Decimal
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, annual_quota FROM leave_categories WHERE id = $1", id,
	).Scan(&c.ID, &c.Name, &quota)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.AnnualQuota = generic.Amount{Value: quota, Unit: generic.UnitDays}
	return &c, nil
}

func (r *txRepo) ListCategories(ctx context.Context) ([]leave.Category, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name, annual_quota FROM leave_categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []leave.Category
	for rows.Next() {
		var (
			c     leave.Category
			quota decimal.Decimal
		)
		if err := rows.Scan(&c.ID, &c.Name, &quota); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.AnnualQuota = generic.Amount{Value: quota, Unit: generic.UnitDays}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *txRepo) SaveCategory(ctx context.Context, c *leave.Category) error {
	if c.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO leave_categories (id, name, annual_quota) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, annual_quota = EXCLUDED.annual_quota
		`, c.ID, c.Name, c.AnnualQuota.Value)
		if err != nil {
			return fmt.Errorf("failed to save category: %w", err)
		}
		return r.syncSequence(ctx, "leave_categories")
	}
	err := r.q.QueryRowContext(ctx,
		"INSERT INTO leave_categories (name, annual_quota) VALUES ($1, $2) RETURNING id", c.Name, c.AnnualQuota.Value,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// syncSequence moves a BIGSERIAL past explicitly inserted ids.
func (r *txRepo) syncSequence(ctx context.Context, table string) error {
	_, err := r.q.ExecContext(ctx, fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT MAX(id) FROM %s), 1))", table, table))
	if err != nil {
		return fmt.Errorf("failed to sync %s id sequence: %w", table, err)
	}
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LockApplicant serializes units of work touching one applicant's calendar.
func (r *txRepo) LockApplicant(ctx context.Context, id generic.TeacherID) error {
	if _, err := r.q.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(id)); err != nil {
		return fmt.Errorf("failed to lock applicant %d: %w", id, err)
	}
	return nil
}

func (r *txRepo) InsertRequest(ctx context.Context, req *leave.Request) error {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO leave_requests
		(applicant_id, category_id, start_date, end_date, is_half_day, reason, relief_teacher_id,
		 primary_status, relief_status, rejection_reason, relief_rejection_reason, approver_id,
		 relief_responded_at, resolved_at, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`,
		req.ApplicantID,
		req.CategoryID,
		req.Range.Start.String(),
		req.Range.End.String(),
		req.IsHalfDay,
		req.Reason,
		req.ReliefTeacherID,
		req.PrimaryStatus,
		req.ReliefStatus,
		req.RejectionReason,
		req.ReliefRejectionReason,
		nullTeacher(req.ApproverID),
		nullTime(req.ReliefRespondedAt),
		nullTime(req.ResolvedAt),
		nullTime(req.CancelledAt),
		stamp(req.CreatedAt),
		stamp(req.UpdatedAt),
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

const requestColumns = `id, applicant_id, category_id, start_date, end_date, is_half_day, reason,
	relief_teacher_id, primary_status, relief_status, rejection_reason, relief_rejection_reason,
	approver_id, relief_responded_at, resolved_at, cancelled_at, created_at, updated_at`

func (r *txRepo) GetRequest(ctx context.Context, id generic.RequestID) (*leave.Request, error) {
	query := "SELECT " + requestColumns + " FROM leave_requests WHERE id = $1"
	if r.lock {
		query += " FOR UPDATE"
	}
	requests, err := r.queryRequests(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return &requests[0], nil
}

func (r *txRepo) UpdateRequest(ctx context.Context, req *leave.Request) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE leave_requests SET
			primary_status = $1, relief_status = $2, rejection_reason = $3, relief_rejection_reason = $4,
			approver_id = $5, relief_responded_at = $6, resolved_at = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $10
	`,
		req.PrimaryStatus,
		req.ReliefStatus,
		req.RejectionReason,
		req.ReliefRejectionReason,
		nullTeacher(req.ApproverID),
		nullTime(req.ReliefRespondedAt),
		nullTime(req.ResolvedAt),
		nullTime(req.CancelledAt),
		stamp(req.UpdatedAt),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	return expectOneRow(res, "leave request", int64(req.ID))
}

func (r *txRepo) FindRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var w where
	if f.ApplicantID != 0 {
		w.add("applicant_id = %s", f.ApplicantID)
	}
	if f.ReliefTeacherID != 0 {
		w.add("relief_teacher_id = %s", f.ReliefTeacherID)
	}
	if len(f.PrimaryStatuses) > 0 {
		statuses := make([]any, len(f.PrimaryStatuses))
		for i, st := range f.PrimaryStatuses {
			statuses[i] = string(st)
		}
		w.in("primary_status", statuses)
	}
	if len(f.ReliefStatuses) > 0 {
		statuses := make([]any, len(f.ReliefStatuses))
		for i, st := range f.ReliefStatuses {
			statuses[i] = string(st)
		}
		w.in("relief_status", statuses)
	}
	if f.Overlapping != nil {
		w.add("start_date <= %s", f.Overlapping.End.String())
		w.add("end_date >= %s", f.Overlapping.Start.String())
	}
	if f.StartYear != 0 {
		w.add("start_date >= %s", generic.StartOfYear(f.StartYear).String())
		w.add("start_date <= %s", generic.EndOfYear(f.StartYear).String())
	}

	query := "SELECT " + requestColumns + " FROM leave_requests" + w.sql() + " ORDER BY start_date ASC, id ASC"
	return r.queryRequests(ctx, query, w.args...)
}

func (r *txRepo) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		var (
			req                                      leave.Request
			start, end                               time.Time
			primary, relief                          string
			approverID                               sql.NullInt64
			reliefRespondedAt, resolvedAt, cancelled sql.NullTime
		)
		err := rows.Scan(
			&req.ID, &req.ApplicantID, &req.CategoryID, &start, &end, &req.IsHalfDay, &req.Reason,
			&req.ReliefTeacherID, &primary, &relief, &req.RejectionReason, &req.ReliefRejectionReason,
			&approverID, &reliefRespondedAt, &resolvedAt, &cancelled, &req.CreatedAt, &req.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		req.Range = generic.DateRange{Start: generic.DateOf(start), End: generic.DateOf(end)}
		req.PrimaryStatus = leave.PrimaryStatus(primary)
		req.ReliefStatus = leave.ReliefStatus(relief)
		if approverID.Valid {
			id := generic.TeacherID(approverID.Int64)
			req.ApproverID = &id
		}
		req.ReliefRespondedAt = timePtr(reliefRespondedAt)
		req.ResolvedAt = timePtr(resolvedAt)
		req.CancelledAt = timePtr(cancelled)
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// =============================================================================
// MEETINGS
// =============================================================================

const meetingColumns = `id, teacher_id, counterparty_id, date, time_slot, status,
	alternate_date, alternate_slot, reschedule_reason, created_at, updated_at`

func (r *txRepo) SaveMeeting(ctx context.Context, m *leave.Meeting) error {
	if m.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO meetings (`+meetingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				teacher_id = EXCLUDED.teacher_id, counterparty_id = EXCLUDED.counterparty_id,
				date = EXCLUDED.date, time_slot = EXCLUDED.time_slot, status = EXCLUDED.status,
				alternate_date = EXCLUDED.alternate_date, alternate_slot = EXCLUDED.alternate_slot,
				reschedule_reason = EXCLUDED.reschedule_reason, updated_at = EXCLUDED.updated_at
		`, m.ID, m.TeacherID, m.CounterpartyID, m.Date.String(), m.TimeSlot, m.Status,
			nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason, stamp(m.CreatedAt), stamp(m.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save meeting: %w", err)
		}
		return r.syncSequence(ctx, "meetings")
	}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO meetings (teacher_id, counterparty_id, date, time_slot, status,
			alternate_date, alternate_slot, reschedule_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, m.TeacherID, m.CounterpartyID, m.Date.String(), m.TimeSlot, m.Status,
		nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason, stamp(m.CreatedAt), stamp(m.UpdatedAt),
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}
	return nil
}

func (r *txRepo) GetMeeting(ctx context.Context, id generic.MeetingID) (*leave.Meeting, error) {
	meetings, err := r.queryMeetings(ctx, "SELECT "+meetingColumns+" FROM meetings WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(meetings) == 0 {
		return nil, nil
	}
	return &meetings[0], nil
}

func (r *txRepo) FindMeetings(ctx context.Context, f leave.MeetingFilter) ([]leave.Meeting, error) {
	var w where
	if f.TeacherID != 0 {
		w.add("teacher_id = %s", f.TeacherID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]any, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.in("status", statuses)
	}
	if f.Within != nil {
		w.add("date >= %s", f.Within.Start.String())
		w.add("date <= %s", f.Within.End.String())
	}

	query := "SELECT " + meetingColumns + " FROM meetings" + w.sql() + " ORDER BY date ASC, id ASC"
	if r.lock {
		query += " FOR UPDATE"
	}
	return r.queryMeetings(ctx, query, w.args...)
}

func (r *txRepo) UpdateMeeting(ctx context.Context, m *leave.Meeting) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE meetings SET status = $1, alternate_date = $2, alternate_slot = $3,
			reschedule_reason = $4, updated_at = $5
		WHERE id = $6
	`, m.Status, nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason, stamp(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	return expectOneRow(res, "meeting", int64(m.ID))
}

func (r *txRepo) queryMeetings(ctx context.Context, query string, args ...any) ([]leave.Meeting, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []leave.Meeting
	for rows.Next() {
		var (
			m         leave.Meeting
			date      time.Time
			status    string
			alternate sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.TeacherID, &m.CounterpartyID, &date, &m.TimeSlot, &status,
			&alternate, &m.AlternateSlot, &m.RescheduleReason, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.Date = generic.DateOf(date)
		m.Status = leave.MeetingStatus(status)
		if alternate.Valid {
			d := generic.DateOf(alternate.Time)
			m.AlternateDate = &d
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (r *txRepo) InsertNotification(ctx context.Context, n *leave.Notification) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, title, message, category, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.RecipientID, n.Title, n.Message, n.Category, n.Read, stamp(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *txRepo) ListNotifications(ctx context.Context, recipient generic.TeacherID, unreadOnly bool) ([]leave.Notification, error) {
	query := `SELECT id, recipient_id, title, message, category, is_read, created_at
		FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.QueryContext(ctx, query, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notes []leave.Notification
	for rows.Next() {
		var (
			n        leave.Notification
			category string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &category, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Category = leave.NotificationCategory(category)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *txRepo) MarkNotificationRead(ctx context.Context, id string, recipient generic.TeacherID) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2", id, recipient)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

// add appends cond, replacing its single %s with the next placeholder.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) in(column string, values []any) {
	marks := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		marks[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.conds = append(w.conds, column+" IN ("+strings.Join(marks, ", ")+")")
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func expectOneRow(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullDate(d *generic.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTeacher(id *generic.TeacherID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
