package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// OVERLAP DETECTOR
// =============================================================================

// Source names the relation an overlap check runs against.
type Source string

const (
	SourceLeave    Source = "leave"
	SourceMeetings Source = "meetings"
)

// OverlapDetector answers "does anything non-terminal of this teacher
// intersect the range" against leave requests or meetings. Half-day requests
// occupy their whole date.
type OverlapDetector struct{}

// HasOverlap reports whether teacherID holds a non-terminal record of the
// given source intersecting r.
func (d OverlapDetector) HasOverlap(ctx context.Context, repo Repository, teacherID generic.TeacherID, r generic.DateRange, source Source) (bool, error) {
	switch source {
	case SourceMeetings:
		meetings, err := d.MeetingConflicts(ctx, repo, teacherID, r)
		return len(meetings) > 0, err
	default:
		existing, err := d.LeaveConflict(ctx, repo, teacherID, r)
		return existing != nil, err
	}
}

// LeaveConflict returns the first pending or approved request of teacherID
// intersecting r, or nil.
func (OverlapDetector) LeaveConflict(ctx context.Context, repo Repository, teacherID generic.TeacherID, r generic.DateRange) (*Request, error) {
	requests, err := repo.FindRequests(ctx, RequestFilter{
		ApplicantID:     teacherID,
		PrimaryStatuses: ActivePrimaryStatuses,
		Overlapping:     &r,
	})
	if err != nil {
		return nil, err
	}
	for i := range requests {
		if requests[i].PrimaryStatus.Active() && requests[i].Range.Intersects(r) {
			return &requests[i], nil
		}
	}
	return nil, nil
}

// MeetingConflicts returns the pending or approved meetings of teacherID
// dated inside r.
func (OverlapDetector) MeetingConflicts(ctx context.Context, repo Repository, teacherID generic.TeacherID, r generic.DateRange) ([]Meeting, error) {
	meetings, err := repo.FindMeetings(ctx, MeetingFilter{
		TeacherID: teacherID,
		Statuses:  ActiveMeetingStatuses,
		Within:    &r,
	})
	if err != nil {
		return nil, err
	}
	var conflicts []Meeting
	for _, m := range meetings {
		if m.Status.Active() && generic.SingleDay(m.Date).Intersects(r) {
			conflicts = append(conflicts, m)
		}
	}
	return conflicts, nil
}

// TeachersOnLeave returns every teacher holding a pending or approved
// request intersecting r.
func (OverlapDetector) TeachersOnLeave(ctx context.Context, repo Repository, r generic.DateRange) (map[generic.TeacherID]bool, error) {
	requests, err := repo.FindRequests(ctx, RequestFilter{
		PrimaryStatuses: ActivePrimaryStatuses,
		Overlapping:     &r,
	})
	if err != nil {
		return nil, err
	}
	busy := make(map[generic.TeacherID]bool, len(requests))
	for _, req := range requests {
		if req.PrimaryStatus.Active() && req.Range.Intersects(r) {
			busy[req.ApplicantID] = true
		}
	}
	return busy, nil
}
