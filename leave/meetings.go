package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
)

// DefaultCancellationReason is written on meetings displaced by approved leave.
const DefaultCancellationReason = "Teacher is on approved leave; please pick a new date"

// =============================================================================
// MEETING CONFLICT CANCELLER
// =============================================================================

// PlanMeetingCancellations selects the meetings an approved leave displaces:
// owned by teacherID, pending or approved, dated inside r.
func PlanMeetingCancellations(meetings []Meeting, teacherID generic.TeacherID, r generic.DateRange) []generic.MeetingID {
	var ids []generic.MeetingID
	for _, m := range meetings {
		if m.TeacherID == teacherID && m.Status.Active() && r.Contains(m.Date) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// MeetingCanceller moves displaced meetings to reschedule_requested. It runs
// only inside the approval's unit of work; a failure here fails the approval.
type MeetingCanceller struct {
	Detector OverlapDetector
	Reason   string
}

// CancelWithin applies the plan for (teacherID, r) and returns the updated
// meetings together with the notifications their counterparties should get.
func (c MeetingCanceller) CancelWithin(ctx context.Context, repo Repository, teacherID generic.TeacherID, r generic.DateRange, now time.Time) ([]Meeting, []Notification, error) {
	candidates, err := c.Detector.MeetingConflicts(ctx, repo, teacherID, r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load meetings: %w", err)
	}

	byID := make(map[generic.MeetingID]Meeting, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m
	}

	reason := c.Reason
	if reason == "" {
		reason = DefaultCancellationReason
	}

	var (
		cancelled []Meeting
		notes     []Notification
	)
	for _, id := range PlanMeetingCancellations(candidates, teacherID, r) {
		m := byID[id]
		m.Status = MeetingRescheduleRequested
		m.RescheduleReason = reason
		m.UpdatedAt = now
		if err := repo.UpdateMeeting(ctx, &m); err != nil {
			return nil, nil, fmt.Errorf("failed to cancel meeting %d: %w", m.ID, err)
		}
		cancelled = append(cancelled, m)
		notes = append(notes, meetingCancelledNotice(m))
	}
	return cancelled, notes, nil
}
