// Package leave implements the teacher leave / relief-teacher / PTM conflict engine.
// It builds on the generic value types with the school-specific records and
// the services that move them through their lifecycles.
package leave

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// LEAVE CATEGORY - Reference data
// =============================================================================

// Category is a kind of leave with an annual quota.
// A zero quota is the unbounded sentinel: the category has no annual limit.
type Category struct {
	ID          generic.CategoryID
	Name        string
	AnnualQuota generic.Amount
}

// Unlimited reports whether the category has no annual limit.
func (c Category) Unlimited() bool { return c.AnnualQuota.IsZero() }

// =============================================================================
// LEAVE REQUEST - One record, two independently owned sub-states
// =============================================================================

// PrimaryStatus is the approver-facing state of a leave request.
type PrimaryStatus string

const (
	PrimaryPending   PrimaryStatus = "pending"
	PrimaryApproved  PrimaryStatus = "approved"
	PrimaryRejected  PrimaryStatus = "rejected"
	PrimaryCancelled PrimaryStatus = "cancelled"
)

// Active reports whether the status still occupies the calendar.
func (s PrimaryStatus) Active() bool { return s == PrimaryPending || s == PrimaryApproved }

// ActivePrimaryStatuses are the statuses considered by overlap checks.
var ActivePrimaryStatuses = []PrimaryStatus{PrimaryPending, PrimaryApproved}

// ReliefStatus is the covering teacher's acceptance state.
type ReliefStatus string

const (
	ReliefPending  ReliefStatus = "pending"
	ReliefApproved ReliefStatus = "approved"
	ReliefRejected ReliefStatus = "rejected"
)

// Decision is what a relief teacher or approver answers.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is one of the two allowed answers.
func (d Decision) Valid() bool { return d == DecisionApproved || d == DecisionRejected }

// Request is a teacher's leave application.
//
// ReliefStatus is only ever written by the named relief teacher and
// PrimaryStatus (apart from self-cancel) only by an approver.
type Request struct {
	ID              generic.RequestID
	ApplicantID     generic.TeacherID
	CategoryID      generic.CategoryID
	Range           generic.DateRange
	IsHalfDay       bool
	Reason          string
	ReliefTeacherID generic.TeacherID

	PrimaryStatus PrimaryStatus
	ReliefStatus  ReliefStatus

	RejectionReason       string
	ReliefRejectionReason string
	ApproverID            *generic.TeacherID

	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReliefRespondedAt *time.Time
	ResolvedAt        *time.Time
	CancelledAt       *time.Time
}

// ConsumedDays is the quota this request uses once approved:
// 0.5 for a half day, otherwise the inclusive day count of its range.
func (r Request) ConsumedDays() generic.Amount {
	if r.IsHalfDay {
		return generic.Days(0.5)
	}
	return generic.NewAmountFromInt(r.Range.Days(), generic.UnitDays)
}

// AwaitingRelief reports whether the approver is still blocked on the relief teacher.
func (r Request) AwaitingRelief() bool { return r.ReliefStatus != ReliefApproved }

// =============================================================================
// MEETING - Parent-teacher meeting
// =============================================================================

type MeetingStatus string

const (
	MeetingPending             MeetingStatus = "pending"
	MeetingApproved            MeetingStatus = "approved"
	MeetingRejected            MeetingStatus = "rejected"
	MeetingCompleted           MeetingStatus = "completed"
	MeetingRescheduleRequested MeetingStatus = "reschedule_requested"
)

// ActiveMeetingStatuses are the statuses a leave approval may cancel.
var ActiveMeetingStatuses = []MeetingStatus{MeetingPending, MeetingApproved}

// Active reports whether the meeting is still expected to take place.
func (s MeetingStatus) Active() bool { return s == MeetingPending || s == MeetingApproved }

// Meeting is a parent-teacher meeting. CounterpartyID is the other party.
type Meeting struct {
	ID               generic.MeetingID
	TeacherID        generic.TeacherID
	CounterpartyID   generic.TeacherID
	Date             generic.Date
	TimeSlot         string
	Status           MeetingStatus
	AlternateDate    *generic.Date
	AlternateSlot    string
	RescheduleReason string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// =============================================================================
// TEACHER - External directory record
// =============================================================================

type Teacher struct {
	ID      generic.TeacherID
	Name    string
	Subject string
}

// TeacherSummary is what relief search returns.
type TeacherSummary struct {
	ID      generic.TeacherID
	Name    string
	Subject string
}

// =============================================================================
// NOTIFICATION
// =============================================================================

type NotificationCategory string

const (
	NotifyReliefRequested  NotificationCategory = "relief_requested"
	NotifyReliefResponded  NotificationCategory = "relief_responded"
	NotifyLeaveApproved    NotificationCategory = "leave_approved"
	NotifyLeaveRejected    NotificationCategory = "leave_rejected"
	NotifyLeaveCancelled   NotificationCategory = "leave_cancelled"
	NotifyMeetingCancelled NotificationCategory = "meeting_reschedule"
)

// Notification is one message for one recipient.
type Notification struct {
	ID          string
	RecipientID generic.TeacherID
	Title       string
	Message     string
	Category    NotificationCategory
	Read        bool
	CreatedAt   time.Time
}
