package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	teacherA  generic.TeacherID = 1 // math, applicant in most tests
	teacherB  generic.TeacherID = 2 // math, relief
	teacherC  generic.TeacherID = 3 // math
	teacherD  generic.TeacherID = 4 // science
	approver  generic.TeacherID = 90
	parentOne generic.TeacherID = 501

	casual generic.CategoryID = 1
	sick   generic.CategoryID = 2
	unpaid generic.CategoryID = 3
)

var fixedNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func day(month time.Month, d int) generic.Date { return generic.NewDate(2025, month, d) }

func june(from, to int) generic.DateRange {
	return generic.DateRange{Start: day(time.June, from), End: day(time.June, to)}
}

// recorder collects dispatched notifications.
type recorder struct {
	mu    sync.Mutex
	notes []leave.Notification
	err   error
}

func (r *recorder) Notify(_ context.Context, n leave.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

func (r *recorder) For(id generic.TeacherID) []leave.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []leave.Notification
	for _, n := range r.notes {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	seed(t, store)
	return store
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	err := store.WithTx(context.Background(), func(repo leave.Repository) error {
		teachers := []leave.Teacher{
			{ID: teacherA, Name: "Asha", Subject: "math"},
			{ID: teacherB, Name: "Bilal", Subject: "math"},
			{ID: teacherC, Name: "Chen", Subject: "math"},
			{ID: teacherD, Name: "Dana", Subject: "science"},
		}
		for i := range teachers {
			if err := repo.SaveTeacher(context.Background(), &teachers[i]); err != nil {
				return err
			}
		}
		categories := []leave.Category{
			{ID: casual, Name: "Casual", AnnualQuota: generic.Days(12)},
			{ID: sick, Name: "Sick", AnnualQuota: generic.Days(10)},
			{ID: unpaid, Name: "Unpaid", AnnualQuota: generic.Days(0)},
		}
		for i := range categories {
			if err := repo.SaveCategory(context.Background(), &categories[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func newTestService(t *testing.T, opts leave.Options) (*leave.RequestService, *sqlite.Store, *recorder) {
	t.Helper()
	store := newTestStore(t)
	rec := &recorder{}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return leave.NewRequestService(store, rec, nil, opts), store, rec
}

func submit(t *testing.T, svc *leave.RequestService, applicant, relief generic.TeacherID, r generic.DateRange) generic.RequestID {
	t.Helper()
	id, err := svc.Submit(context.Background(), leave.SubmitInput{
		ApplicantID:     applicant,
		CategoryID:      casual,
		Range:           r,
		Reason:          "family event",
		ReliefTeacherID: relief,
	})
	require.NoError(t, err)
	return id
}

// approve walks a request through relief acceptance and approval.
func approve(t *testing.T, svc *leave.RequestService, id generic.RequestID, relief generic.TeacherID) *leave.Request {
	t.Helper()
	ctx := context.Background()
	_, err := svc.RespondToRelief(ctx, id, relief, leave.DecisionApproved, "")
	require.NoError(t, err)
	req, err := svc.Resolve(ctx, id, approver, leave.DecisionApproved, "")
	require.NoError(t, err)
	return req
}

func addMeeting(t *testing.T, store leave.Store, teacher generic.TeacherID, date generic.Date, status leave.MeetingStatus) generic.MeetingID {
	t.Helper()
	m := leave.Meeting{
		TeacherID:      teacher,
		CounterpartyID: parentOne,
		Date:           date,
		TimeSlot:       "10:00-10:30",
		Status:         status,
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	err := store.WithTx(context.Background(), func(repo leave.Repository) error {
		return repo.SaveMeeting(context.Background(), &m)
	})
	require.NoError(t, err)
	return m.ID
}

func getMeeting(t *testing.T, store leave.Store, id generic.MeetingID) *leave.Meeting {
	t.Helper()
	var m *leave.Meeting
	err := store.View(context.Background(), func(repo leave.Repository) error {
		var err error
		m, err = repo.GetMeeting(context.Background(), id)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

// failingMeetingStore fails every meeting update inside a unit of work.
type failingMeetingStore struct {
	*sqlite.Store
}

func (s failingMeetingStore) WithTx(ctx context.Context, fn func(leave.Repository) error) error {
	return s.Store.WithTx(ctx, func(repo leave.Repository) error {
		return fn(failingMeetingRepo{Repository: repo})
	})
}

type failingMeetingRepo struct {
	leave.Repository
}

func (failingMeetingRepo) UpdateMeeting(context.Context, *leave.Meeting) error {
	return errors.New("disk I/O error")
}
