/*
request_test.go - Leave request lifecycle tests

Tests for:
- Submit validation and self-overlap conflicts
- Relief response ownership and freezing after resolution
- Approval gating on relief acceptance
- Meeting cascade on approval, and its rollback
- Cancellation terminality
- Best-effort notifications
*/
package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesPendingRequestAndNotifiesRelief(t *testing.T) {
	svc, _, rec := newTestService(t, leave.Options{})
	ctx := context.Background()

	// WHEN: Teacher A applies for 10-12 June with B as relief
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	// THEN: The request is (pending, pending)
	req, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryPending, req.PrimaryStatus)
	assert.Equal(t, leave.ReliefPending, req.ReliefStatus)
	assert.Equal(t, teacherB, req.ReliefTeacherID)
	assert.Equal(t, "family event", req.Reason)
	assert.True(t, req.Range.Start.Equal(day(time.June, 10)))
	assert.True(t, req.Range.End.Equal(day(time.June, 12)))
	assert.True(t, req.AwaitingRelief())

	// AND: Only the relief teacher was told
	notes := rec.For(teacherB)
	require.Len(t, notes, 1)
	assert.Equal(t, leave.NotifyReliefRequested, notes[0].Category)
	assert.Empty(t, rec.For(teacherA))
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, rec := newTestService(t, leave.Options{})
	ctx := context.Background()

	valid := leave.SubmitInput{
		ApplicantID:     teacherA,
		CategoryID:      casual,
		Range:           june(10, 12),
		ReliefTeacherID: teacherB,
	}

	tests := []struct {
		name   string
		mutate func(in *leave.SubmitInput)
	}{
		{"missing relief teacher", func(in *leave.SubmitInput) { in.ReliefTeacherID = 0 }},
		{"relief is the applicant", func(in *leave.SubmitInput) { in.ReliefTeacherID = teacherA }},
		{"end before start", func(in *leave.SubmitInput) { in.Range = june(12, 10) }},
		{"missing start date", func(in *leave.SubmitInput) { in.Range.Start = generic.Date{} }},
		{"half day over several dates", func(in *leave.SubmitInput) { in.IsHalfDay = true }},
		{"missing category", func(in *leave.SubmitInput) { in.CategoryID = 0 }},
		{"unknown category", func(in *leave.SubmitInput) { in.CategoryID = 77 }},
		{"unknown relief teacher", func(in *leave.SubmitInput) { in.ReliefTeacherID = 404 }},
		{"unknown applicant", func(in *leave.SubmitInput) { in.ApplicantID = 404 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := svc.Submit(ctx, in)

			require.Error(t, err)
			assert.True(t, errors.Is(err, generic.ErrValidation), "got %v", err)
		})
	}

	// Nothing was persisted or sent
	requests, err := svc.ListForApplicant(ctx, teacherA)
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.Empty(t, rec.notes)
}

func TestSubmit_HalfDaySingleDate(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})

	id, err := svc.Submit(context.Background(), leave.SubmitInput{
		ApplicantID:     teacherA,
		CategoryID:      sick,
		Range:           june(5, 5),
		IsHalfDay:       true,
		ReliefTeacherID: teacherB,
	})

	require.NoError(t, err)
	req, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, req.IsHalfDay)
	assert.True(t, req.ConsumedDays().Equal(generic.Days(0.5)))
}

func TestSubmit_OverlapConflict(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	// GIVEN: A pending request for 10-12 June
	existing := submit(t, svc, teacherA, teacherB, june(10, 12))

	// WHEN: Submitting 12-13 June (shares the 12th)
	_, err := svc.Submit(ctx, leave.SubmitInput{
		ApplicantID: teacherA, CategoryID: casual, Range: june(12, 13), ReliefTeacherID: teacherC,
	})

	// THEN: Conflict naming the existing request
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrConflict))
	var conflict *generic.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, existing, conflict.ExistingID)

	// AND: The next day is free
	submit(t, svc, teacherA, teacherC, june(13, 14))

	// AND: Another teacher's leave over the same days is unaffected
	submit(t, svc, teacherB, teacherC, june(10, 12))
}

func TestSubmit_OverlapWithHalfDayOccupiesDate(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, leave.SubmitInput{
		ApplicantID: teacherA, CategoryID: casual, Range: june(5, 5), IsHalfDay: true, ReliefTeacherID: teacherB,
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, leave.SubmitInput{
		ApplicantID: teacherA, CategoryID: casual, Range: june(5, 5), IsHalfDay: true, ReliefTeacherID: teacherB,
	})
	assert.True(t, errors.Is(err, generic.ErrConflict))
}

func TestSubmit_TerminalRequestsDoNotBlock(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	// GIVEN: One cancelled and one rejected request over 10-12 June
	cancelled := submit(t, svc, teacherA, teacherB, june(10, 12))
	_, err := svc.Cancel(ctx, cancelled, teacherA)
	require.NoError(t, err)

	rejected := submit(t, svc, teacherA, teacherB, june(10, 12))
	_, err = svc.Resolve(ctx, rejected, approver, leave.DecisionRejected, "exam week")
	require.NoError(t, err)

	// THEN: The same range can be requested again
	submit(t, svc, teacherA, teacherB, june(10, 12))
}

func TestSubmit_ConcurrentOverlappingRequests(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	// WHEN: Two overlapping submissions race
	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	ranges := []generic.DateRange{june(10, 12), june(11, 13)}
	for i := range ranges {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, leave.SubmitInput{
				ApplicantID: teacherA, CategoryID: casual, Range: ranges[i], ReliefTeacherID: teacherB,
			})
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one wins, the other conflicts
	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, generic.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	requests, err := svc.ListForApplicant(ctx, teacherA)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

// =============================================================================
// RELIEF RESPONSE
// =============================================================================

func TestRespondToRelief_OnlyNamedTeacher(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	// WHEN: Teacher C (not the relief) answers
	_, err := svc.RespondToRelief(ctx, id, teacherC, leave.DecisionApproved, "")

	// THEN: Not found, and nothing changed
	assert.True(t, errors.Is(err, generic.ErrNotFound))
	req, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.ReliefPending, req.ReliefStatus)

	// AND: Unknown request ids are not found either
	_, err = svc.RespondToRelief(ctx, 999, teacherB, leave.DecisionApproved, "")
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

func TestRespondToRelief_RejectAndNotifyApplicant(t *testing.T) {
	svc, _, rec := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	req, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionRejected, " teaching a trip ")

	require.NoError(t, err)
	assert.Equal(t, leave.ReliefRejected, req.ReliefStatus)
	assert.Equal(t, "teaching a trip", req.ReliefRejectionReason)
	assert.Equal(t, leave.PrimaryPending, req.PrimaryStatus)
	require.NotNil(t, req.ReliefRespondedAt)

	notes := rec.For(teacherA)
	require.Len(t, notes, 1)
	assert.Equal(t, leave.NotifyReliefResponded, notes[0].Category)
	assert.Contains(t, notes[0].Message, "teaching a trip")
}

func TestRespondToRelief_CanChangeAnswerWhilePending(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	_, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionRejected, "busy")
	require.NoError(t, err)
	req, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)

	assert.Equal(t, leave.ReliefApproved, req.ReliefStatus)
	assert.Empty(t, req.ReliefRejectionReason)
}

func TestRespondToRelief_FrozenAfterResolution(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	// GIVEN: An approved request
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	approve(t, svc, id, teacherB)

	// WHEN: The relief teacher changes their mind
	_, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionRejected, "changed my mind")

	// THEN: State error, relief stays approved
	assert.True(t, errors.Is(err, generic.ErrState))
	req, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.ReliefApproved, req.ReliefStatus)
	assert.Equal(t, leave.PrimaryApproved, req.PrimaryStatus)
}

func TestRespondToRelief_RevisionAllowedByOption(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{AllowReliefRevisionAfterResolution: true})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	approve(t, svc, id, teacherB)

	req, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionRejected, "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, leave.ReliefRejected, req.ReliefStatus)
	assert.Equal(t, leave.PrimaryApproved, req.PrimaryStatus)
}

func TestRespondToRelief_InvalidDecision(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	_, err := svc.RespondToRelief(context.Background(), id, teacherB, leave.Decision("maybe"), "")

	assert.True(t, errors.Is(err, generic.ErrValidation))
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_ApprovalGatedOnRelief(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	// WHEN: Approving while relief is pending
	_, err := svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")

	// THEN: State error
	var stateErr *generic.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, id, stateErr.RequestID)

	// WHEN: Relief declines, approval is still blocked
	_, err = svc.RespondToRelief(ctx, id, teacherB, leave.DecisionRejected, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")
	assert.True(t, errors.Is(err, generic.ErrState))

	// WHEN: Relief accepts, approval goes through
	_, err = svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)
	req, err := svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryApproved, req.PrimaryStatus)
	require.NotNil(t, req.ApproverID)
	assert.Equal(t, approver, *req.ApproverID)
	assert.NotNil(t, req.ResolvedAt)
}

func TestResolve_RejectWithoutRelief(t *testing.T) {
	svc, _, rec := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	req, err := svc.Resolve(ctx, id, approver, leave.DecisionRejected, "exam week")

	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryRejected, req.PrimaryStatus)
	assert.Equal(t, "exam week", req.RejectionReason)
	notes := rec.For(teacherA)
	require.Len(t, notes, 1)
	assert.Equal(t, leave.NotifyLeaveRejected, notes[0].Category)
}

func TestResolve_OnlyPendingRequests(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	approve(t, svc, id, teacherB)

	_, err := svc.Resolve(ctx, id, approver, leave.DecisionRejected, "")
	assert.True(t, errors.Is(err, generic.ErrState))

	_, err = svc.Resolve(ctx, 999, approver, leave.DecisionApproved, "")
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

// =============================================================================
// MEETING CASCADE
// =============================================================================

func TestResolve_ApprovalReschedulesMeetingsInsideLeave(t *testing.T) {
	svc, store, rec := newTestService(t, leave.Options{MeetingCancellationReason: "On leave"})

	// GIVEN: A has meetings before, inside and after the leave, plus a
	// completed one inside it. B has a meeting on the same day.
	before := addMeeting(t, store, teacherA, day(time.June, 9), leave.MeetingPending)
	inside := addMeeting(t, store, teacherA, day(time.June, 11), leave.MeetingPending)
	insideApproved := addMeeting(t, store, teacherA, day(time.June, 12), leave.MeetingApproved)
	completed := addMeeting(t, store, teacherA, day(time.June, 10), leave.MeetingCompleted)
	after := addMeeting(t, store, teacherA, day(time.June, 13), leave.MeetingApproved)
	colleague := addMeeting(t, store, teacherB, day(time.June, 11), leave.MeetingPending)

	// WHEN: A's leave for 10-12 June is approved
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	rec.Reset()
	approve(t, svc, id, teacherB)

	// THEN: Only A's active meetings inside the range were displaced
	for _, mid := range []generic.MeetingID{inside, insideApproved} {
		m := getMeeting(t, store, mid)
		assert.Equal(t, leave.MeetingRescheduleRequested, m.Status)
		assert.Equal(t, "On leave", m.RescheduleReason)
	}
	assert.Equal(t, leave.MeetingPending, getMeeting(t, store, before).Status)
	assert.Equal(t, leave.MeetingCompleted, getMeeting(t, store, completed).Status)
	assert.Equal(t, leave.MeetingApproved, getMeeting(t, store, after).Status)
	assert.Equal(t, leave.MeetingPending, getMeeting(t, store, colleague).Status)

	// AND: The parent was told for each displaced meeting
	parentNotes := rec.For(parentOne)
	require.Len(t, parentNotes, 2)
	for _, n := range parentNotes {
		assert.Equal(t, leave.NotifyMeetingCancelled, n.Category)
	}
}

func TestResolve_RejectionLeavesMeetingsAlone(t *testing.T) {
	svc, store, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	meeting := addMeeting(t, store, teacherA, day(time.June, 11), leave.MeetingPending)

	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	_, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, id, approver, leave.DecisionRejected, "")
	require.NoError(t, err)

	assert.Equal(t, leave.MeetingPending, getMeeting(t, store, meeting).Status)
}

func TestResolve_RollsBackWhenMeetingUpdateFails(t *testing.T) {
	// GIVEN: A store whose meeting updates fail
	base := newTestStore(t)
	rec := &recorder{}
	svc := leave.NewRequestService(failingMeetingStore{Store: base}, rec, nil, leave.Options{
		Now: func() time.Time { return fixedNow },
	})
	ctx := context.Background()
	meeting := addMeeting(t, base, teacherA, day(time.June, 11), leave.MeetingPending)

	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	_, err := svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)
	rec.Reset()

	// WHEN: Approving
	_, err = svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")

	// THEN: Persistence error, the request is still pending, the meeting untouched
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrPersistence))
	req, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryPending, req.PrimaryStatus)
	assert.Nil(t, req.ApproverID)
	assert.Equal(t, leave.MeetingPending, getMeeting(t, base, meeting).Status)

	// AND: Nothing was announced
	assert.Empty(t, rec.notes)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_Ownership(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))

	_, err := svc.Cancel(ctx, id, teacherB)

	assert.True(t, errors.Is(err, generic.ErrAuthorization))
	req, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryPending, req.PrimaryStatus)
}

func TestCancel_IsTerminal(t *testing.T) {
	svc, _, rec := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	rec.Reset()

	// WHEN: Cancelling a pending request
	req, err := svc.Cancel(ctx, id, teacherA)

	// THEN: Cancelled and relief teacher notified
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryCancelled, req.PrimaryStatus)
	assert.NotNil(t, req.CancelledAt)
	notes := rec.For(teacherB)
	require.Len(t, notes, 1)
	assert.Equal(t, leave.NotifyLeaveCancelled, notes[0].Category)

	// AND: No further transition is possible
	_, err = svc.Cancel(ctx, id, teacherA)
	assert.True(t, errors.Is(err, generic.ErrState))
	_, err = svc.Resolve(ctx, id, approver, leave.DecisionRejected, "")
	assert.True(t, errors.Is(err, generic.ErrState))
	_, err = svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	assert.True(t, errors.Is(err, generic.ErrState))
}

func TestCancel_ApprovedKeepsRescheduledMeetings(t *testing.T) {
	svc, store, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	meeting := addMeeting(t, store, teacherA, day(time.June, 11), leave.MeetingPending)
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	approve(t, svc, id, teacherB)

	req, err := svc.Cancel(ctx, id, teacherA)

	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryCancelled, req.PrimaryStatus)
	assert.Equal(t, leave.MeetingRescheduleRequested, getMeeting(t, store, meeting).Status)
}

func TestCancel_RejectedCannotBeCancelled(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()
	id := submit(t, svc, teacherA, teacherB, june(10, 12))
	_, err := svc.Resolve(ctx, id, approver, leave.DecisionRejected, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, id, teacherA)

	assert.True(t, errors.Is(err, generic.ErrState))
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	store := newTestStore(t)
	rec := &recorder{err: errors.New("smtp down")}
	svc := leave.NewRequestService(store, rec, nil, leave.Options{})
	ctx := context.Background()

	id, err := svc.Submit(ctx, leave.SubmitInput{
		ApplicantID: teacherA, CategoryID: casual, Range: june(10, 12), ReliefTeacherID: teacherB,
	})
	require.NoError(t, err)

	_, err = svc.RespondToRelief(ctx, id, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)
	req, err := svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryApproved, req.PrimaryStatus)
	assert.Len(t, rec.notes, 3)
}

func TestNilNotifier(t *testing.T) {
	store := newTestStore(t)
	svc := leave.NewRequestService(store, nil, nil, leave.Options{})

	_, err := svc.Submit(context.Background(), leave.SubmitInput{
		ApplicantID: teacherA, CategoryID: casual, Range: june(10, 12), ReliefTeacherID: teacherB,
	})

	assert.NoError(t, err)
}

// =============================================================================
// READ MODELS
// =============================================================================

func TestReadModels(t *testing.T) {
	svc, _, _ := newTestService(t, leave.Options{})
	ctx := context.Background()

	first := submit(t, svc, teacherA, teacherB, june(10, 12))
	second := submit(t, svc, teacherC, teacherB, june(2, 3))
	third := submit(t, svc, teacherD, teacherA, june(20, 20))
	approve(t, svc, third, teacherA)
	_, err := svc.RespondToRelief(ctx, first, teacherB, leave.DecisionApproved, "")
	require.NoError(t, err)

	// Relief inbox of B: both, then only the still-pending one
	all, err := svc.ListReliefAssignments(ctx, teacherB)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	pending, err := svc.ListReliefAssignments(ctx, teacherB, leave.ReliefPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)

	// Approver queue: pending primaries, ordered by start date
	queue, err := svc.ListAwaitingResolution(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, second, queue[0].ID)
	assert.True(t, queue[0].AwaitingRelief())
	assert.Equal(t, first, queue[1].ID)
	assert.False(t, queue[1].AwaitingRelief())

	_, err = svc.Get(ctx, 999)
	assert.True(t, errors.Is(err, generic.ErrNotFound))
}
