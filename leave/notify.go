package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// Notifier is the notification sink. Delivery is best-effort: the engine
// calls it after commit and only logs a returned error.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// =============================================================================
// MESSAGES
// =============================================================================

func reliefRequestedNotice(r Request) Notification {
	return Notification{
		RecipientID: r.ReliefTeacherID,
		Title:       "Relief request",
		Message: fmt.Sprintf("Teacher %d asked you to cover their leave %s (request %d).",
			r.ApplicantID, r.Range, r.ID),
		Category: NotifyReliefRequested,
	}
}

func reliefRespondedNotice(r Request) Notification {
	msg := fmt.Sprintf("Teacher %d %s relief for your leave %s.", r.ReliefTeacherID, r.ReliefStatus, r.Range)
	if r.ReliefStatus == ReliefRejected && r.ReliefRejectionReason != "" {
		msg += " Reason: " + r.ReliefRejectionReason
	}
	return Notification{
		RecipientID: r.ApplicantID,
		Title:       "Relief " + string(r.ReliefStatus),
		Message:     msg,
		Category:    NotifyReliefResponded,
	}
}

func resolvedNotice(r Request) Notification {
	if r.PrimaryStatus == PrimaryApproved {
		return Notification{
			RecipientID: r.ApplicantID,
			Title:       "Leave approved",
			Message:     fmt.Sprintf("Your leave %s was approved.", r.Range),
			Category:    NotifyLeaveApproved,
		}
	}
	msg := fmt.Sprintf("Your leave %s was rejected.", r.Range)
	if r.RejectionReason != "" {
		msg += " Reason: " + r.RejectionReason
	}
	return Notification{
		RecipientID: r.ApplicantID,
		Title:       "Leave rejected",
		Message:     msg,
		Category:    NotifyLeaveRejected,
	}
}

func cancelledNotice(r Request) Notification {
	return Notification{
		RecipientID: r.ReliefTeacherID,
		Title:       "Relief no longer needed",
		Message: fmt.Sprintf("Teacher %d cancelled leave %s; your relief duty is void.",
			r.ApplicantID, r.Range),
		Category: NotifyLeaveCancelled,
	}
}

func meetingCancelledNotice(m Meeting) Notification {
	return Notification{
		RecipientID: m.CounterpartyID,
		Title:       "Meeting needs a new date",
		Message: fmt.Sprintf("Your meeting with teacher %d on %s %s must be rescheduled: %s",
			m.TeacherID, m.Date, m.TimeSlot, m.RescheduleReason),
		Category: NotifyMeetingCancelled,
	}
}

// recipients is used in logs.
func recipients(notes []Notification) []generic.TeacherID {
	ids := make([]generic.TeacherID, len(notes))
	for i, n := range notes {
		ids[i] = n.RecipientID
	}
	return ids
}
