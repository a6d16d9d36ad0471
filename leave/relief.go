package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// RELIEF ASSIGNMENT FINDER
// =============================================================================

// ReliefFinder lists colleagues who could cover a leave. Only leave requests
// are consulted for availability; meetings can be rescheduled.
type ReliefFinder struct {
	Detector OverlapDetector
}

// Candidates returns teachers sharing the requester's subject (everyone when
// the requester has none), minus the requester and anyone on pending or
// approved leave intersecting r.
func (f ReliefFinder) Candidates(ctx context.Context, repo Repository, teacherID generic.TeacherID, r generic.DateRange) ([]TeacherSummary, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	requester, err := repo.GetTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, &generic.NotFoundError{Resource: "teacher", ID: int64(teacherID)}
	}

	pool, err := repo.ListTeachers(ctx, requester.Subject)
	if err != nil {
		return nil, err
	}
	busy, err := f.Detector.TeachersOnLeave(ctx, repo, r)
	if err != nil {
		return nil, err
	}

	candidates := make([]TeacherSummary, 0, len(pool))
	for _, t := range pool {
		if t.ID == teacherID || busy[t.ID] {
			continue
		}
		if requester.Subject != "" && t.Subject != requester.Subject {
			continue
		}
		candidates = append(candidates, TeacherSummary{ID: t.ID, Name: t.Name, Subject: t.Subject})
	}
	return candidates, nil
}
