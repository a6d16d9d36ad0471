//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/postgres"
)

// Run with:
//   LEAVE_TEST_POSTGRES_DSN="host=localhost port=5432 user=postgres dbname=leave_test sslmode=disable" \
//   go test -tags integration ./store/postgres/...

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("LEAVE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEAVE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := postgres.New(ctx, dsn, postgres.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Reset(ctx))

	err = store.WithTx(ctx, func(repo leave.Repository) error {
		for _, teacher := range []leave.Teacher{
			{ID: 1, Name: "Asha", Subject: "math"},
			{ID: 2, Name: "Bilal", Subject: "math"},
			{ID: 3, Name: "Chen", Subject: "math"},
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

func TestLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := leave.NewRequestService(store, nil, nil, leave.Options{})

	var meeting leave.Meeting
	err := store.WithTx(ctx, func(repo leave.Repository) error {
		meeting = leave.Meeting{
			TeacherID: 1, CounterpartyID: 501,
			Date: generic.NewDate(2025, time.June, 11), Status: leave.MeetingPending,
		}
		return repo.SaveMeeting(ctx, &meeting)
	})
	require.NoError(t, err)

	id, err := svc.Submit(ctx, leave.SubmitInput{
		ApplicantID: 1, CategoryID: 1, Range: june(10, 12), ReliefTeacherID: 2,
	})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, id, 90, leave.DecisionApproved, "")
	assert.True(t, errors.Is(err, generic.ErrState))

	_, err = svc.RespondToRelief(ctx, id, 2, leave.DecisionApproved, "")
	require.NoError(t, err)
	req, err := svc.Resolve(ctx, id, 90, leave.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, leave.PrimaryApproved, req.PrimaryStatus)

	err = store.View(ctx, func(repo leave.Repository) error {
		m, err := repo.GetMeeting(ctx, meeting.ID)
		require.NoError(t, err)
		assert.Equal(t, leave.MeetingRescheduleRequested, m.Status)
		return nil
	})
	require.NoError(t, err)

	balances, err := svc.Balance(ctx, 1, 2025)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].Used.Equal(generic.Days(3)))
}

func TestConcurrentOverlappingSubmissions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := leave.NewRequestService(store, nil, nil, leave.Options{})

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, leave.SubmitInput{
				ApplicantID: 1, CategoryID: 1, Range: june(10, 12), ReliefTeacherID: 2,
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, generic.ErrConflict), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestNotifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	err := store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.InsertNotification(ctx, &leave.Notification{
			ID: id, RecipientID: 2, Title: "Relief request", Message: "cover me",
			Category: leave.NotifyReliefRequested, CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(repo leave.Repository) error {
		ok, err := repo.MarkNotificationRead(ctx, id, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	err = store.View(ctx, func(repo leave.Repository) error {
		unread, err := repo.ListNotifications(ctx, 2, true)
		require.NoError(t, err)
		assert.Empty(t, unread)
		return nil
	})
	require.NoError(t, err)
}
