/*
sqlite_test.go - Repository tests for the SQLite store

Tests for:
- Round-tripping teachers, categories, requests, meetings, notifications
- Request filters (overlap, statuses, year)
- Transaction rollback
- Reset
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

var now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	err = store.WithTx(context.Background(), func(repo leave.Repository) error {
		ctx := context.Background()
		for _, teacher := range []leave.Teacher{
			{ID: 1, Name: "Asha", Subject: "math"},
			{ID: 2, Name: "Bilal", Subject: "math"},
			{ID: 3, Name: "Dana", Subject: "science"},
		} {
			teacher := teacher
			if err := repo.SaveTeacher(ctx, &teacher); err != nil {
				return err
			}
		}
		return repo.SaveCategory(ctx, &leave.Category{ID: 1, Name: "Casual", AnnualQuota: generic.Days(12)})
	})
	require.NoError(t, err)
	return store
}

func june(from, to int) generic.DateRange {
	return generic.DateRange{
		Start: generic.NewDate(2025, time.June, from),
		End:   generic.NewDate(2025, time.June, to),
	}
}

func insertRequest(t *testing.T, store *Store, applicant generic.TeacherID, r generic.DateRange, status leave.PrimaryStatus) leave.Request {
	t.Helper()
	req := leave.Request{
		ApplicantID:     applicant,
		CategoryID:      1,
		Range:           r,
		ReliefTeacherID: 2,
		PrimaryStatus:   status,
		ReliefStatus:    leave.ReliefPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := store.WithTx(context.Background(), func(repo leave.Repository) error {
		return repo.InsertRequest(context.Background(), &req)
	})
	require.NoError(t, err)
	require.NotZero(t, req.ID)
	return req
}

func TestTeachersAndCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.View(ctx, func(repo leave.Repository) error {
		teacher, err := repo.GetTeacher(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, teacher)
		assert.Equal(t, "Asha", teacher.Name)

		missing, err := repo.GetTeacher(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, missing)

		math, err := repo.ListTeachers(ctx, "math")
		require.NoError(t, err)
		assert.Len(t, math, 2)

		all, err := repo.ListTeachers(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		category, err := repo.GetCategory(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, category)
		assert.True(t, category.AnnualQuota.Equal(generic.Days(12)))
		return nil
	})
	require.NoError(t, err)
}

func TestSaveTeacher_AssignsIDAndUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	teacher := leave.Teacher{Name: "Eve", Subject: "art"}
	err := store.WithTx(ctx, func(repo leave.Repository) error {
		if err := repo.SaveTeacher(ctx, &teacher); err != nil {
			return err
		}
		teacher.Subject = "music"
		return repo.SaveTeacher(ctx, &teacher)
	})
	require.NoError(t, err)
	assert.NotZero(t, teacher.ID)

	err = store.View(ctx, func(repo leave.Repository) error {
		got, err := repo.GetTeacher(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, "music", got.Subject)
		return nil
	})
	require.NoError(t, err)
}

func TestRequestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	req := insertRequest(t, store, 1, june(10, 12), leave.PrimaryPending)

	// Update every mutable field
	approver := generic.TeacherID(90)
	resolved := now.Add(time.Hour)
	req.PrimaryStatus = leave.PrimaryApproved
	req.ReliefStatus = leave.ReliefApproved
	req.ApproverID = &approver
	req.ResolvedAt = &resolved
	req.ReliefRespondedAt = &resolved
	req.UpdatedAt = resolved
	err := store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.UpdateRequest(ctx, &req)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo leave.Repository) error {
		got, err := repo.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, leave.PrimaryApproved, got.PrimaryStatus)
		assert.Equal(t, leave.ReliefApproved, got.ReliefStatus)
		require.NotNil(t, got.ApproverID)
		assert.Equal(t, approver, *got.ApproverID)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, got.ResolvedAt.Equal(resolved))
		assert.Nil(t, got.CancelledAt)
		assert.True(t, got.Range.Start.Equal(req.Range.Start))
		assert.True(t, got.Range.End.Equal(req.Range.End))
		assert.True(t, got.CreatedAt.Equal(now))

		missing, err := repo.GetRequest(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRequest_Missing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.UpdateRequest(ctx, &leave.Request{ID: 999, UpdatedAt: now})
	})

	assert.True(t, errors.Is(err, generic.ErrNotFound))
}

func TestFindRequests_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pending := insertRequest(t, store, 1, june(10, 12), leave.PrimaryPending)
	cancelled := insertRequest(t, store, 1, june(20, 22), leave.PrimaryCancelled)
	other := insertRequest(t, store, 3, june(11, 11), leave.PrimaryApproved)
	lastYear := insertRequest(t, store, 1, generic.DateRange{
		Start: generic.NewDate(2024, time.December, 30),
		End:   generic.NewDate(2025, time.January, 2),
	}, leave.PrimaryApproved)

	tests := []struct {
		name   string
		filter leave.RequestFilter
		want   []generic.RequestID
	}{
		{
			name: "active overlapping for applicant",
			filter: leave.RequestFilter{
				ApplicantID:     1,
				PrimaryStatuses: leave.ActivePrimaryStatuses,
				Overlapping:     ptr(june(12, 25)),
			},
			want: []generic.RequestID{pending.ID},
		},
		{
			name:   "everyone overlapping",
			filter: leave.RequestFilter{Overlapping: ptr(june(11, 11))},
			want:   []generic.RequestID{pending.ID, other.ID},
		},
		{
			name:   "start year",
			filter: leave.RequestFilter{ApplicantID: 1, StartYear: 2024},
			want:   []generic.RequestID{lastYear.ID},
		},
		{
			name:   "relief inbox",
			filter: leave.RequestFilter{ReliefTeacherID: 2, ReliefStatuses: []leave.ReliefStatus{leave.ReliefPending}},
			want:   []generic.RequestID{pending.ID, cancelled.ID, other.ID, lastYear.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []generic.RequestID
			err := store.View(ctx, func(repo leave.Repository) error {
				requests, err := repo.FindRequests(ctx, tt.filter)
				for _, r := range requests {
					got = append(got, r.ID)
				}
				return err
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestMeetings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := leave.Meeting{
		TeacherID:      1,
		CounterpartyID: 501,
		Date:           generic.NewDate(2025, time.June, 11),
		TimeSlot:       "10:00-10:30",
		Status:         leave.MeetingPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.SaveMeeting(ctx, &m)
	})
	require.NoError(t, err)
	require.NotZero(t, m.ID)

	alt := generic.NewDate(2025, time.June, 16)
	m.Status = leave.MeetingRescheduleRequested
	m.AlternateDate = &alt
	m.RescheduleReason = "on leave"
	err = store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.UpdateMeeting(ctx, &m)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo leave.Repository) error {
		got, err := repo.GetMeeting(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, leave.MeetingRescheduleRequested, got.Status)
		require.NotNil(t, got.AlternateDate)
		assert.True(t, got.AlternateDate.Equal(alt))
		assert.Equal(t, "on leave", got.RescheduleReason)

		active, err := repo.FindMeetings(ctx, leave.MeetingFilter{
			TeacherID: 1,
			Statuses:  leave.ActiveMeetingStatuses,
			Within:    ptr(june(10, 12)),
		})
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := repo.FindMeetings(ctx, leave.MeetingFilter{TeacherID: 1, Within: ptr(june(11, 11))})
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(repo leave.Repository) error {
		for i, id := range []string{"n-1", "n-2"} {
			n := leave.Notification{
				ID:          id,
				RecipientID: 2,
				Title:       "Relief request",
				Message:     "cover me",
				Category:    leave.NotifyReliefRequested,
				CreatedAt:   now.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.InsertNotification(ctx, &n); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(repo leave.Repository) error {
		ok, err := repo.MarkNotificationRead(ctx, "n-1", 2)
		require.NoError(t, err)
		assert.True(t, ok)

		// Someone else's notification can't be marked
		ok, err = repo.MarkNotificationRead(ctx, "n-2", 1)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo leave.Repository) error {
		all, err := repo.ListNotifications(ctx, 2, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "n-2", all[0].ID, "newest first")

		unread, err := repo.ListNotifications(ctx, 2, true)
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, "n-2", unread[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(repo leave.Repository) error {
		if err := repo.SaveTeacher(ctx, &leave.Teacher{ID: 10, Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(repo leave.Repository) error {
		ghost, err := repo.GetTeacher(ctx, 10)
		require.NoError(t, err)
		assert.Nil(t, ghost)
		return nil
	})
	require.NoError(t, err)
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertRequest(t, store, 1, june(10, 12), leave.PrimaryPending)

	require.NoError(t, store.Reset(ctx))

	err := store.View(ctx, func(repo leave.Repository) error {
		teachers, err := repo.ListTeachers(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, teachers)
		requests, err := repo.FindRequests(ctx, leave.RequestFilter{})
		require.NoError(t, err)
		assert.Empty(t, requests)
		return nil
	})
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }
