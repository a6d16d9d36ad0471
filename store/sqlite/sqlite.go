/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Persists teachers, leave categories, leave requests, meetings and
  notifications using SQLite. The same statements run on PostgreSQL with
  only placeholder differences (see store/postgres).

INTERFACES IMPLEMENTED:
  leave.Store:      WithTx / View units of work
  leave.Repository: Row operations (through txRepo)

KEY TABLES:
  teachers:         External directory (id, name, subject)
  leave_categories: Reference data with annual quota (0 = unlimited)
  leave_requests:   One row per application, primary + relief sub-states
  meetings:         Parent-teacher meetings
  notifications:    Notification inbox

INDEXES:
  - idx_leave_requests_applicant_range: Overlap checks (hot path)
  - idx_leave_requests_relief:          Relief inbox
  - idx_meetings_teacher_date:          Cascade scan on approval
  - idx_notifications_recipient:        Inbox reads

CONCURRENCY:
  Transactions are opened with BEGIN IMMEDIATE (_txlock=immediate), so a
  unit of work holds the database write lock from its first statement. Two
  submissions for the same teacher therefore run their overlap check and
  insert one after the other, across processes as well. Inside one process
  a sync.RWMutex additionally keeps readers off a half-applied transaction.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewRequestService(store, notifier, logger, leave.Options{})

MIGRATION:
  Schema is auto-migrated on New(). PostgreSQL uses versioned migrations
  (store/postgres/migrations).

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS teachers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_teachers_subject ON teachers(subject);

	CREATE TABLE IF NOT EXISTS leave_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		annual_quota TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		applicant_id INTEGER NOT NULL REFERENCES teachers(id),
		category_id INTEGER NOT NULL REFERENCES leave_categories(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		is_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		reason TEXT NOT NULL DEFAULT '',
		relief_teacher_id INTEGER NOT NULL REFERENCES teachers(id),
		primary_status TEXT NOT NULL DEFAULT 'pending',
		relief_status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT NOT NULL DEFAULT '',
		relief_rejection_reason TEXT NOT NULL DEFAULT '',
		approver_id INTEGER,
		relief_responded_at TEXT,
		resolved_at TEXT,
		cancelled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date),
		CHECK (relief_teacher_id <> applicant_id)
	);

	-- Overlap checks: applicant + status + range
	CREATE INDEX IF NOT EXISTS idx_leave_requests_applicant_range
		ON leave_requests(applicant_id, primary_status, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_relief
		ON leave_requests(relief_teacher_id, relief_status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(primary_status);

	CREATE TABLE IF NOT EXISTS meetings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		teacher_id INTEGER NOT NULL REFERENCES teachers(id),
		counterparty_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		time_slot TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		alternate_date TEXT,
		alternate_slot TEXT NOT NULL DEFAULT '',
		reschedule_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_teacher_date
		ON meetings(teacher_id, date);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		category TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all rows (dev/demo only).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"notifications", "meetings", "leave_requests", "leave_categories", "teachers"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence")
	if err != nil && !strings.Contains(err.Error(), "no such table") {
		return err
	}
	return nil
}

// =============================================================================
// UNITS OF WORK (leave.Store interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txRepo{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View executes fn against the database without a write transaction.
func (s *Store) View(ctx context.Context, fn func(leave.Repository) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&txRepo{q: s.db})
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txRepo runs every statement on one querier (a *sql.Tx or the *sql.DB).
type txRepo struct {
	q querier
}

// =============================================================================
// TEACHERS
// =============================================================================

func (r *txRepo) GetTeacher(ctx context.Context, id generic.TeacherID) (*leave.Teacher, error) {
	var t leave.Teacher
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, subject FROM teachers WHERE id = ?", id,
	).Scan(&t.ID, &t.Name, &t.Subject)
	if err == sql.ErrNoRows {
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
		query += " WHERE subject = ?"
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

// SaveTeacher inserts a teacher, or replaces it when t.ID is set.
func (r *txRepo) SaveTeacher(ctx context.Context, t *leave.Teacher) error {
	if t.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO teachers (id, name, subject) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, subject = excluded.subject
		`, t.ID, t.Name, t.Subject)
		if err != nil {
			return fmt.Errorf("failed to save teacher: %w", err)
		}
		return nil
	}
	res, err := r.q.ExecContext(ctx, "INSERT INTO teachers (name, subject) VALUES (?, ?)", t.Name, t.Subject)
	if err != nil {
		return fmt.Errorf("failed to save teacher: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = generic.TeacherID(id)
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (r *txRepo) GetCategory(ctx context.Context, id generic.CategoryID) (*leave.Category, error) {
	var (
		c     leave.Category
		quota string
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, annual_quota FROM leave_categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &quota)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.AnnualQuota = generic.Amount{Value: generic.MustParseDecimal(quota), Unit: generic.UnitDays}
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
			quota string
		)
		if err := rows.Scan(&c.ID, &c.Name, &quota); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.AnnualQuota = generic.Amount{Value: generic.MustParseDecimal(quota), Unit: generic.UnitDays}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SaveCategory inserts a category, or replaces it when c.ID is set.
func (r *txRepo) SaveCategory(ctx context.Context, c *leave.Category) error {
	quota := c.AnnualQuota.Value.String()
	if c.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO leave_categories (id, name, annual_quota) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, annual_quota = excluded.annual_quota
		`, c.ID, c.Name, quota)
		if err != nil {
			return fmt.Errorf("failed to save category: %w", err)
		}
		return nil
	}
	res, err := r.q.ExecContext(ctx, "INSERT INTO leave_categories (name, annual_quota) VALUES (?, ?)", c.Name, quota)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = generic.CategoryID(id)
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// LockApplicant is a no-op: an IMMEDIATE transaction already holds the
// database write lock.
func (r *txRepo) LockApplicant(ctx context.Context, id generic.TeacherID) error {
	return nil
}

func (r *txRepo) InsertRequest(ctx context.Context, req *leave.Request) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO leave_requests
		(applicant_id, category_id, start_date, end_date, is_half_day, reason, relief_teacher_id,
		 primary_status, relief_status, rejection_reason, relief_rejection_reason, approver_id,
		 relief_responded_at, resolved_at, cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = generic.RequestID(id)
	return nil
}

const requestColumns = `id, applicant_id, category_id, start_date, end_date, is_half_day, reason,
	relief_teacher_id, primary_status, relief_status, rejection_reason, relief_rejection_reason,
	approver_id, relief_responded_at, resolved_at, cancelled_at, created_at, updated_at`

func (r *txRepo) GetRequest(ctx context.Context, id generic.RequestID) (*leave.Request, error) {
	requests, err := r.queryRequests(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
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
			primary_status = ?, relief_status = ?, rejection_reason = ?, relief_rejection_reason = ?,
			approver_id = ?, relief_responded_at = ?, resolved_at = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?
	`,
		req.PrimaryStatus,
		req.ReliefStatus,
		req.RejectionReason,
		req.ReliefRejectionReason,
		nullTeacher(req.ApproverID),
		nullTime(req.ReliefRespondedAt),
		nullTime(req.ResolvedAt),
		nullTime(req.CancelledAt),
		formatTime(req.UpdatedAt),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	return expectOneRow(res, "leave request", int64(req.ID))
}

func (r *txRepo) FindRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.ApplicantID != 0 {
		where = append(where, "applicant_id = ?")
		args = append(args, f.ApplicantID)
	}
	if f.ReliefTeacherID != 0 {
		where = append(where, "relief_teacher_id = ?")
		args = append(args, f.ReliefTeacherID)
	}
	if len(f.PrimaryStatuses) > 0 {
		where = append(where, "primary_status IN ("+placeholders(len(f.PrimaryStatuses))+")")
		for _, st := range f.PrimaryStatuses {
			args = append(args, st)
		}
	}
	if len(f.ReliefStatuses) > 0 {
		where = append(where, "relief_status IN ("+placeholders(len(f.ReliefStatuses))+")")
		for _, st := range f.ReliefStatuses {
			args = append(args, st)
		}
	}
	if f.Overlapping != nil {
		// Inclusive intersection: s <= range.end AND e >= range.start
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}
	if f.StartYear != 0 {
		where = append(where, "start_date >= ? AND start_date <= ?")
		args = append(args, generic.StartOfYear(f.StartYear).String(), generic.EndOfYear(f.StartYear).String())
	}

	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	return r.queryRequests(ctx, query, args...)
}

func (r *txRepo) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (leave.Request, error) {
	var (
		req                                      leave.Request
		start, end, createdAt, updatedAt         string
		primary, relief                          string
		approverID                               sql.NullInt64
		reliefRespondedAt, resolvedAt, cancelled sql.NullString
	)

	err := rows.Scan(
		&req.ID, &req.ApplicantID, &req.CategoryID, &start, &end, &req.IsHalfDay, &req.Reason,
		&req.ReliefTeacherID, &primary, &relief, &req.RejectionReason, &req.ReliefRejectionReason,
		&approverID, &reliefRespondedAt, &resolvedAt, &cancelled, &createdAt, &updatedAt,
	)
	if err != nil {
		return req, fmt.Errorf("failed to scan leave request: %w", err)
	}

	req.Range.Start, _ = generic.ParseDate(start)
	req.Range.End, _ = generic.ParseDate(end)
	req.PrimaryStatus = leave.PrimaryStatus(primary)
	req.ReliefStatus = leave.ReliefStatus(relief)
	if approverID.Valid {
		id := generic.TeacherID(approverID.Int64)
		req.ApproverID = &id
	}
	req.ReliefRespondedAt = parseNullTime(reliefRespondedAt)
	req.ResolvedAt = parseNullTime(resolvedAt)
	req.CancelledAt = parseNullTime(cancelled)
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	return req, nil
}

// =============================================================================
// MEETINGS
// =============================================================================

const meetingColumns = `id, teacher_id, counterparty_id, date, time_slot, status,
	alternate_date, alternate_slot, reschedule_reason, created_at, updated_at`

// SaveMeeting inserts a meeting, or replaces it when m.ID is set.
func (r *txRepo) SaveMeeting(ctx context.Context, m *leave.Meeting) error {
	if m.ID != 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO meetings (`+meetingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				teacher_id = excluded.teacher_id, counterparty_id = excluded.counterparty_id,
				date = excluded.date, time_slot = excluded.time_slot, status = excluded.status,
				alternate_date = excluded.alternate_date, alternate_slot = excluded.alternate_slot,
				reschedule_reason = excluded.reschedule_reason, updated_at = excluded.updated_at
		`, m.ID, m.TeacherID, m.CounterpartyID, m.Date.String(), m.TimeSlot, m.Status,
			nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason,
			formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to save meeting: %w", err)
		}
		return nil
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO meetings (teacher_id, counterparty_id, date, time_slot, status,
			alternate_date, alternate_slot, reschedule_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.TeacherID, m.CounterpartyID, m.Date.String(), m.TimeSlot, m.Status,
		nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = generic.MeetingID(id)
	return nil
}

func (r *txRepo) GetMeeting(ctx context.Context, id generic.MeetingID) (*leave.Meeting, error) {
	meetings, err := r.queryMeetings(ctx, "SELECT "+meetingColumns+" FROM meetings WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(meetings) == 0 {
		return nil, nil
	}
	return &meetings[0], nil
}

func (r *txRepo) FindMeetings(ctx context.Context, f leave.MeetingFilter) ([]leave.Meeting, error) {
	var (
		where []string
		args  []any
	)
	if f.TeacherID != 0 {
		where = append(where, "teacher_id = ?")
		args = append(args, f.TeacherID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Within != nil {
		where = append(where, "date >= ? AND date <= ?")
		args = append(args, f.Within.Start.String(), f.Within.End.String())
	}

	query := "SELECT " + meetingColumns + " FROM meetings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	return r.queryMeetings(ctx, query, args...)
}

func (r *txRepo) UpdateMeeting(ctx context.Context, m *leave.Meeting) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE meetings SET status = ?, alternate_date = ?, alternate_slot = ?,
			reschedule_reason = ?, updated_at = ?
		WHERE id = ?
	`, m.Status, nullDate(m.AlternateDate), m.AlternateSlot, m.RescheduleReason, formatTime(m.UpdatedAt), m.ID)
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
			m                    leave.Meeting
			date, status         string
			alternate            sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&m.ID, &m.TeacherID, &m.CounterpartyID, &date, &m.TimeSlot, &status,
			&alternate, &m.AlternateSlot, &m.RescheduleReason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.Date, _ = generic.ParseDate(date)
		m.Status = leave.MeetingStatus(status)
		if alternate.Valid {
			if d, err := generic.ParseDate(alternate.String); err == nil {
				m.AlternateDate = &d
			}
		}
		m.CreatedAt = parseTime(createdAt)
		m.UpdatedAt = parseTime(updatedAt)
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
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.RecipientID, n.Title, n.Message, n.Category, n.Read, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *txRepo) ListNotifications(ctx context.Context, recipient generic.TeacherID, unreadOnly bool) ([]leave.Notification, error) {
	query := `SELECT id, recipient_id, title, message, category, is_read, created_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.q.QueryContext(ctx, query, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notes []leave.Notification
	for rows.Next() {
		var (
			n         leave.Notification
			category  string
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &category, &n.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Category = leave.NotificationCategory(category)
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *txRepo) MarkNotificationRead(ctx context.Context, id string, recipient generic.TeacherID) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = ? AND recipient_id = ?", id, recipient)
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
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

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
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
