/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave engine's records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Directory:
    TeacherDTO, CreateTeacherRequest, CategoryDTO, MeetingDTO,
    CreateMeetingRequest

  Leave:
    SubmitLeaveRequest, LeaveRequestDTO, ReliefResponseRequest,
    ResolveRequest, CancelRequest, BalanceDTO

  Notifications:
    NotificationDTO, MarkReadRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required, ranges, enums). Domain rules (overlap, ownership, relief
  gating) stay in the leave package.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain records
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// DIRECTORY
// =============================================================================

// TeacherDTO represents a teacher in API responses.
type TeacherDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
}

// CreateTeacherRequest creates or updates a teacher. A zero id lets the
// store assign one.
type CreateTeacherRequest struct {
	ID      int64  `json:"id" validate:"gte=0"`
	Name    string `json:"name" validate:"required,max=200"`
	Subject string `json:"subject" validate:"max=100"`
}

// CategoryDTO represents a leave category.
type CategoryDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	AnnualQuota float64 `json:"annual_quota"`
	Unlimited   bool    `json:"unlimited"`
}

// MeetingDTO represents a parent-teacher meeting.
type MeetingDTO struct {
	ID               int64   `json:"id"`
	TeacherID        int64   `json:"teacher_id"`
	CounterpartyID   int64   `json:"counterparty_id"`
	Date             string  `json:"date"`
	TimeSlot         string  `json:"time_slot"`
	Status           string  `json:"status"`
	AlternateDate    *string `json:"alternate_date,omitempty"`
	AlternateSlot    string  `json:"alternate_slot,omitempty"`
	RescheduleReason string  `json:"reschedule_reason,omitempty"`
}

// CreateMeetingRequest books a meeting.
type CreateMeetingRequest struct {
	TeacherID      int64  `json:"teacher_id" validate:"required,gt=0"`
	CounterpartyID int64  `json:"counterparty_id" validate:"required,gt=0"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot       string `json:"time_slot" validate:"required,max=50"`
	Status         string `json:"status" validate:"omitempty,oneof=pending approved"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SubmitLeaveRequest is the body of POST /api/leave-requests.
type SubmitLeaveRequest struct {
	ApplicantID     int64  `json:"applicant_id" validate:"required,gt=0"`
	CategoryID      int64  `json:"category_id" validate:"required,gt=0"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsHalfDay       bool   `json:"is_half_day"`
	Reason          string `json:"reason" validate:"max=1000"`
	ReliefTeacherID int64  `json:"relief_teacher_id" validate:"required,gt=0,nefield=ApplicantID"`
}

// ReliefResponseRequest is the relief teacher's answer.
type ReliefResponseRequest struct {
	TeacherID int64  `json:"teacher_id" validate:"required,gt=0"`
	Decision  string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// ResolveRequest is the approver's decision.
type ResolveRequest struct {
	ApproverID int64  `json:"approver_id" validate:"required,gt=0"`
	Decision   string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason     string `json:"reason" validate:"max=1000"`
}

// CancelRequest is the applicant withdrawing their request.
type CancelRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
}

// LeaveRequestDTO represents a leave request with both sub-states.
type LeaveRequestDTO struct {
	ID                    int64   `json:"id"`
	ApplicantID           int64   `json:"applicant_id"`
	CategoryID            int64   `json:"category_id"`
	StartDate             string  `json:"start_date"`
	EndDate               string  `json:"end_date"`
	IsHalfDay             bool    `json:"is_half_day"`
	Days                  float64 `json:"days"`
	Reason                string  `json:"reason,omitempty"`
	ReliefTeacherID       int64   `json:"relief_teacher_id"`
	PrimaryStatus         string  `json:"primary_status"`
	ReliefStatus          string  `json:"relief_status"`
	AwaitingRelief        bool    `json:"awaiting_relief"`
	RejectionReason       string  `json:"rejection_reason,omitempty"`
	ReliefRejectionReason string  `json:"relief_rejection_reason,omitempty"`
	ApproverID            *int64  `json:"approver_id,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
	ReliefRespondedAt     *string `json:"relief_responded_at,omitempty"`
	ResolvedAt            *string `json:"resolved_at,omitempty"`
	CancelledAt           *string `json:"cancelled_at,omitempty"`
}

// BalanceDTO is a teacher's yearly balance.
type BalanceDTO struct {
	TeacherID  int64                `json:"teacher_id"`
	Year       int                  `json:"year"`
	Categories []CategoryBalanceDTO `json:"categories"`
}

// CategoryBalanceDTO is one category row. Remaining is omitted for
// unlimited categories.
type CategoryBalanceDTO struct {
	CategoryID   int64    `json:"category_id"`
	CategoryName string   `json:"category_name"`
	Quota        float64  `json:"quota"`
	Used         float64  `json:"used"`
	Pending      float64  `json:"pending"`
	Remaining    *float64 `json:"remaining,omitempty"`
	Unlimited    bool     `json:"unlimited"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// NotificationDTO represents one inbox entry.
type NotificationDTO struct {
	ID          string `json:"id"`
	RecipientID int64  `json:"recipient_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"created_at"`
}

// MarkReadRequest identifies the inbox owner.
type MarkReadRequest struct {
	TeacherID int64 `json:"teacher_id" validate:"required,gt=0"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTeacherDTO(t leave.Teacher) TeacherDTO {
	return TeacherDTO{ID: int64(t.ID), Name: t.Name, Subject: t.Subject}
}

func toCategoryDTO(c leave.Category) CategoryDTO {
	quota, _ := c.AnnualQuota.Value.Float64()
	return CategoryDTO{ID: int64(c.ID), Name: c.Name, AnnualQuota: quota, Unlimited: c.Unlimited()}
}

func toMeetingDTO(m leave.Meeting) MeetingDTO {
	dto := MeetingDTO{
		ID:               int64(m.ID),
		TeacherID:        int64(m.TeacherID),
		CounterpartyID:   int64(m.CounterpartyID),
		Date:             m.Date.String(),
		TimeSlot:         m.TimeSlot,
		Status:           string(m.Status),
		AlternateSlot:    m.AlternateSlot,
		RescheduleReason: m.RescheduleReason,
	}
	if m.AlternateDate != nil {
		s := m.AlternateDate.String()
		dto.AlternateDate = &s
	}
	return dto
}

func toLeaveRequestDTO(r leave.Request) LeaveRequestDTO {
	days, _ := r.ConsumedDays().Value.Float64()
	dto := LeaveRequestDTO{
		ID:                    int64(r.ID),
		ApplicantID:           int64(r.ApplicantID),
		CategoryID:            int64(r.CategoryID),
		StartDate:             r.Range.Start.String(),
		EndDate:               r.Range.End.String(),
		IsHalfDay:             r.IsHalfDay,
		Days:                  days,
		Reason:                r.Reason,
		ReliefTeacherID:       int64(r.ReliefTeacherID),
		PrimaryStatus:         string(r.PrimaryStatus),
		ReliefStatus:          string(r.ReliefStatus),
		AwaitingRelief:        r.AwaitingRelief(),
		RejectionReason:       r.RejectionReason,
		ReliefRejectionReason: r.ReliefRejectionReason,
		CreatedAt:             r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             r.UpdatedAt.UTC().Format(time.RFC3339),
		ReliefRespondedAt:     formatTimePtr(r.ReliefRespondedAt),
		ResolvedAt:            formatTimePtr(r.ResolvedAt),
		CancelledAt:           formatTimePtr(r.CancelledAt),
	}
	if r.ApproverID != nil {
		id := int64(*r.ApproverID)
		dto.ApproverID = &id
	}
	return dto
}

func toLeaveRequestDTOs(requests []leave.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

func toBalanceDTO(teacherID generic.TeacherID, year int, balances []leave.CategoryBalance) BalanceDTO {
	rows := make([]CategoryBalanceDTO, len(balances))
	for i, b := range balances {
		quota, _ := b.Quota.Value.Float64()
		used, _ := b.Used.Value.Float64()
		pending, _ := b.Pending.Value.Float64()
		rows[i] = CategoryBalanceDTO{
			CategoryID:   int64(b.CategoryID),
			CategoryName: b.CategoryName,
			Quota:        quota,
			Used:         used,
			Pending:      pending,
			Unlimited:    b.Unlimited,
		}
		if b.Remaining != nil {
			remaining, _ := b.Remaining.Value.Float64()
			rows[i].Remaining = &remaining
		}
	}
	return BalanceDTO{TeacherID: int64(teacherID), Year: year, Categories: rows}
}

func toNotificationDTO(n leave.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		RecipientID: int64(n.RecipientID),
		Title:       n.Title,
		Message:     n.Message,
		Category:    string(n.Category),
		Read:        n.Read,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
