/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built school states for demos and manual testing. Each
	scenario resets the database, re-seeds the leave categories and drives
	the engine through its public operations, so notifications and meeting
	cascades are produced exactly as in real use.

THE SCHOOL:

	1 Asha Rao      Mathematics
	2 Ben Okafor    Mathematics
	3 Chitra Iyer   Mathematics
	4 Dev Malhotra  Science
	5 Farah Khan    Mathematics

	Approver id 90 (principal), parent id 501. All dates are in June 2025.

AVAILABLE SCENARIOS:

	relief-pending:    Asha asks for 10-12 June with Ben as relief; a parent
	                   meeting on 11 June is still booked
	ready-to-approve:  Same, and Ben has accepted; the approver can now approve
	approved-leave:    Same, approved; the 11 June meeting awaits rescheduling
	staff-room:        Several overlapping leaves; only Farah can cover Asha

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "relief-pending"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shares the Handler dependencies
  - factory/category.go: SeedCategories
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "relief-pending",
		Name:        "Relief Pending",
		Description: "Leave for 10-12 June awaiting the relief teacher; a parent meeting on 11 June",
	},
	{
		ID:          "ready-to-approve",
		Name:        "Ready to Approve",
		Description: "Relief teacher accepted; approving cancels the 11 June meeting",
	},
	{
		ID:          "approved-leave",
		Name:        "Approved Leave",
		Description: "Leave approved; the 11 June meeting is waiting to be rescheduled",
	},
	{
		ID:          "staff-room",
		Name:        "Staff Room",
		Description: "Overlapping leaves across the maths department; one relief candidate left",
	},
}

const (
	scenarioApprover generic.TeacherID = 90
	scenarioParent   generic.TeacherID = 501
)

var scenarioTeachers = []leave.Teacher{
	{ID: 1, Name: "Asha Rao", Subject: "Mathematics"},
	{ID: 2, Name: "Ben Okafor", Subject: "Mathematics"},
	{ID: 3, Name: "Chitra Iyer", Subject: "Mathematics"},
	{ID: 4, Name: "Dev Malhotra", Subject: "Science"},
	{ID: 5, Name: "Farah Khan", Subject: "Mathematics"},
}

func juneRange(from, to int) generic.DateRange {
	return generic.DateRange{
		Start: generic.NewDate(2025, time.June, from),
		End:   generic.NewDate(2025, time.June, to),
	}
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if generic.IsDomainError(err) {
			h.fail(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every table and re-seeds the leave categories.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetAndSeed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "relief-pending":
		load = func(ctx context.Context) error {
			_, err := h.loadReliefPendingScenario(ctx)
			return err
		}
	case "ready-to-approve":
		load = func(ctx context.Context) error {
			_, err := h.loadReadyToApproveScenario(ctx)
			return err
		}
	case "approved-leave":
		load = h.loadApprovedLeaveScenario
	case "staff-room":
		load = h.loadStaffRoomScenario
	default:
		return &generic.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	if err := h.resetAndSeed(ctx); err != nil {
		return err
	}
	h.currentScenario = ""
	return load(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadReliefPendingScenario(ctx context.Context) (generic.RequestID, error) {
	category, err := h.seedSchool(ctx)
	if err != nil {
		return 0, err
	}
	// One meeting inside the leave window, one after it
	if err := h.saveMeeting(ctx, 1, generic.NewDate(2025, time.June, 11), "15:00-15:30", leave.MeetingApproved); err != nil {
		return 0, err
	}
	if err := h.saveMeeting(ctx, 1, generic.NewDate(2025, time.June, 20), "16:00-16:30", leave.MeetingPending); err != nil {
		return 0, err
	}

	return h.Service.Submit(ctx, leave.SubmitInput{
		ApplicantID:     1,
		CategoryID:      category,
		Range:           juneRange(10, 12),
		Reason:          "Family wedding",
		ReliefTeacherID: 2,
	})
}

func (h *Handler) loadReadyToApproveScenario(ctx context.Context) (generic.RequestID, error) {
	id, err := h.loadReliefPendingScenario(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := h.Service.RespondToRelief(ctx, id, 2, leave.DecisionApproved, ""); err != nil {
		return 0, err
	}
	return id, nil
}

func (h *Handler) loadApprovedLeaveScenario(ctx context.Context) error {
	id, err := h.loadReadyToApproveScenario(ctx)
	if err != nil {
		return err
	}
	_, err = h.Service.Resolve(ctx, id, scenarioApprover, leave.DecisionApproved, "")
	return err
}

func (h *Handler) loadStaffRoomScenario(ctx context.Context) error {
	category, err := h.seedSchool(ctx)
	if err != nil {
		return err
	}

	// Chitra: approved leave 9-13 June, Farah covering
	chitra, err := h.Service.Submit(ctx, leave.SubmitInput{
		ApplicantID: 3, CategoryID: category, Range: juneRange(9, 13),
		Reason: "Conference", ReliefTeacherID: 5,
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.RespondToRelief(ctx, chitra, 5, leave.DecisionApproved, ""); err != nil {
		return err
	}
	if _, err := h.Service.Resolve(ctx, chitra, scenarioApprover, leave.DecisionApproved, ""); err != nil {
		return err
	}

	// Ben: pending half day on 11 June
	if _, err := h.Service.Submit(ctx, leave.SubmitInput{
		ApplicantID: 2, CategoryID: category, Range: juneRange(11, 11), IsHalfDay: true,
		Reason: "Doctor's appointment", ReliefTeacherID: 5,
	}); err != nil {
		return err
	}

	// Dev: science, pending leave on 10 June
	if _, err := h.Service.Submit(ctx, leave.SubmitInput{
		ApplicantID: 4, CategoryID: category, Range: juneRange(10, 10),
		Reason: "Personal", ReliefTeacherID: 1,
	}); err != nil {
		return err
	}

	// Asha: a meeting on 12 June she may have to move
	return h.saveMeeting(ctx, 1, generic.NewDate(2025, time.June, 12), "14:00-14:30", leave.MeetingPending)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) resetAndSeed(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	base := make([]leave.Category, len(h.BaseCategories))
	copy(base, h.BaseCategories)
	return factory.SeedCategories(ctx, h.Store, base)
}

// seedSchool saves the scenario teachers and returns the category every
// scenario request is filed under (the first configured one).
func (h *Handler) seedSchool(ctx context.Context) (generic.CategoryID, error) {
	var category generic.CategoryID
	err := h.Store.WithTx(ctx, func(repo leave.Repository) error {
		for _, t := range scenarioTeachers {
			t := t
			if err := repo.SaveTeacher(ctx, &t); err != nil {
				return err
			}
		}
		categories, err := repo.ListCategories(ctx)
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			return fmt.Errorf("no leave categories configured")
		}
		category = categories[0].ID
		return nil
	})
	return category, err
}

func (h *Handler) saveMeeting(ctx context.Context, teacher generic.TeacherID, date generic.Date, slot string, status leave.MeetingStatus) error {
	now := h.now()
	return h.Store.WithTx(ctx, func(repo leave.Repository) error {
		return repo.SaveMeeting(ctx, &leave.Meeting{
			TeacherID:      teacher,
			CounterpartyID: scenarioParent,
			Date:           date,
			TimeSlot:       slot,
			Status:         status,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	})
}
