/*
store.go - Persistence interface for the leave engine

PURPOSE:
  Defines the interface between the engine and the database. Services never
  hold a connection of their own: they receive a Store and open an explicit
  unit of work for every public operation.

KEY INTERFACES:
  Repository: Row operations on teachers, categories, requests, meetings
              and notifications
  Store:      Hands out a Repository scoped to a transaction (WithTx) or to
              a read-only snapshot (View)

ATOMIC UNITS OF WORK:
  WithTx() ensures all-or-nothing semantics. Approving a leave updates the
  request and every cascaded meeting; either all rows change or none do.

SERIALIZATION:
  LockApplicant() must block concurrent units of work that lock the same
  teacher until the holder commits or rolls back. Submit takes it before
  its overlap check so two simultaneous submissions can't both pass.
  GetRequest() inside WithTx must return a row that no other unit of work
  can modify until commit (SELECT ... FOR UPDATE or an exclusive database
  lock).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (BEGIN IMMEDIATE)
  - store/postgres/postgres.go: PostgreSQL (advisory + row locks)

SEE ALSO:
  - request.go: Uses Store for every state transition
  - overlap.go: Uses the filters below
*/
package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// FILTERS
// =============================================================================

// RequestFilter selects leave requests. Zero-valued fields don't filter.
type RequestFilter struct {
	ApplicantID     generic.TeacherID
	ReliefTeacherID generic.TeacherID
	PrimaryStatuses []PrimaryStatus
	ReliefStatuses  []ReliefStatus
	// Overlapping keeps requests whose range intersects it.
	Overlapping *generic.DateRange
	// StartYear keeps requests whose range starts in that year.
	StartYear int
}

// MeetingFilter selects meetings. Zero-valued fields don't filter.
type MeetingFilter struct {
	TeacherID generic.TeacherID
	Statuses  []MeetingStatus
	// Within keeps meetings dated inside the range.
	Within *generic.DateRange
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the set of row operations the engine performs.
// Get* methods return (nil, nil) when the row doesn't exist.
type Repository interface {
	// Teachers (external directory)
	GetTeacher(ctx context.Context, id generic.TeacherID) (*Teacher, error)
	ListTeachers(ctx context.Context, subject string) ([]Teacher, error)
	SaveTeacher(ctx context.Context, t *Teacher) error

	// Categories (reference data)
	GetCategory(ctx context.Context, id generic.CategoryID) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	SaveCategory(ctx context.Context, c *Category) error

	// Leave requests
	LockApplicant(ctx context.Context, id generic.TeacherID) error
	InsertRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id generic.RequestID) (*Request, error)
	UpdateRequest(ctx context.Context, r *Request) error
	FindRequests(ctx context.Context, f RequestFilter) ([]Request, error)

	// Meetings
	SaveMeeting(ctx context.Context, m *Meeting) error
	GetMeeting(ctx context.Context, id generic.MeetingID) (*Meeting, error)
	FindMeetings(ctx context.Context, f MeetingFilter) ([]Meeting, error)
	UpdateMeeting(ctx context.Context, m *Meeting) error

	// Notifications
	InsertNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, recipient generic.TeacherID, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string, recipient generic.TeacherID) (bool, error)
}

// =============================================================================
// STORE - Unit-of-work boundary
// =============================================================================

// Store scopes a Repository to a unit of work.
type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the repository is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Repository) error) error

	// View executes fn against a read-only repository.
	View(ctx context.Context, fn func(Repository) error) error
}
