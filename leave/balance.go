package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCE CALCULATOR - Derived view, never stored
// =============================================================================

// CategoryBalance is one row of a teacher's yearly balance.
// Remaining is nil when the category is unlimited.
type CategoryBalance struct {
	CategoryID   generic.CategoryID
	CategoryName string
	Quota        generic.Amount
	Used         generic.Amount
	Pending      generic.Amount
	Remaining    *generic.Amount
	Unlimited    bool
}

// BalanceCalculator derives balances from the approved-request set on every
// call, so the result can't drift from the request ledger.
type BalanceCalculator struct{}

// Balance returns one row per category for teacherID in year. Only requests
// whose range starts in year count.
func (BalanceCalculator) Balance(ctx context.Context, repo Repository, teacherID generic.TeacherID, year int) ([]CategoryBalance, error) {
	categories, err := repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := repo.FindRequests(ctx, RequestFilter{
		ApplicantID:     teacherID,
		PrimaryStatuses: ActivePrimaryStatuses,
		StartYear:       year,
	})
	if err != nil {
		return nil, err
	}
	return ComputeBalances(categories, requests, year), nil
}

// ComputeBalances is the pure part of Balance.
func ComputeBalances(categories []Category, requests []Request, year int) []CategoryBalance {
	used := make(map[generic.CategoryID]generic.Amount)
	pending := make(map[generic.CategoryID]generic.Amount)
	window := generic.Year(year)
	for _, r := range requests {
		if !window.Contains(r.Range.Start) {
			continue
		}
		switch r.PrimaryStatus {
		case PrimaryApproved:
			used[r.CategoryID] = addDays(used[r.CategoryID], r.ConsumedDays())
		case PrimaryPending:
			pending[r.CategoryID] = addDays(pending[r.CategoryID], r.ConsumedDays())
		}
	}

	balances := make([]CategoryBalance, 0, len(categories))
	for _, c := range categories {
		b := CategoryBalance{
			CategoryID:   c.ID,
			CategoryName: c.Name,
			Quota:        c.AnnualQuota,
			Used:         addDays(used[c.ID], generic.Days(0)),
			Pending:      addDays(pending[c.ID], generic.Days(0)),
			Unlimited:    c.Unlimited(),
		}
		if !b.Unlimited {
			remaining := c.AnnualQuota.Sub(b.Used)
			b.Remaining = &remaining
		}
		balances = append(balances, b)
	}
	return balances
}

func addDays(total, delta generic.Amount) generic.Amount {
	if total.Unit == "" {
		total = generic.Days(0)
	}
	return total.Add(delta)
}
