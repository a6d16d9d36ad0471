/*
request.go - Leave request lifecycle with a nested relief sub-state

PURPOSE:
  Owns the lifecycle of a single leave application. Two actors resolve it
  independently: the named relief teacher accepts or declines coverage, and
  an approver approves or rejects the leave. Approval is gated on the relief
  teacher having accepted.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────────┐
  │                                                                      │
  │  Submit ──▶ (primary=pending, relief=pending) ──▶ notify relief      │
  │                         │                                            │
  │            RespondToRelief (relief teacher only)                     │
  │                         │                                            │
  │              relief=approved | relief=rejected ──▶ notify applicant  │
  │                         │                                            │
  │             Resolve (approver; approve needs relief=approved)        │
  │                 │                          │                         │
  │          ┌──────────┐                ┌──────────┐                    │
  │          │ Approved │──▶ cancel      │ Rejected │                    │
  │          └──────────┘    meetings    └──────────┘                    │
  │                                                                      │
  │  Cancel (applicant; from pending or approved) ──▶ notify relief      │
  │                                                                      │
  └──────────────────────────────────────────────────────────────────────┘

TRANSACTIONS:
  Every operation runs inside one Store.WithTx unit of work. Submit locks
  the applicant before its overlap check; Resolve updates the request and
  every displaced meeting together. If ANY step fails, ALL changes are
  rolled back.

NOTIFICATIONS:
  Messages are collected while the unit of work runs and handed to the
  Notifier only after commit. A failing Notifier is logged and never fails
  the transition; a rolled-back transition sends nothing.

EXAMPLE:
  svc := leave.NewRequestService(store, notifier, logger, leave.Options{})

  id, err := svc.Submit(ctx, leave.SubmitInput{ApplicantID: 1, ...})
  _, err = svc.RespondToRelief(ctx, id, 2, leave.DecisionApproved, "")
  _, err = svc.Resolve(ctx, id, 99, leave.DecisionApproved, "")

SEE ALSO:
  - overlap.go: Self-conflict check on submit
  - meetings.go: Cascade on approval
  - balance.go: Derived balances
*/
package leave

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// OPTIONS & CONSTRUCTION
// =============================================================================

// Options tunes the request service.
type Options struct {
	// MeetingCancellationReason is written on displaced meetings.
	MeetingCancellationReason string

	// AllowReliefRevisionAfterResolution lets a relief teacher change their
	// answer after the approver resolved the request or the applicant
	// cancelled it. Off by default: once primary status leaves pending the
	// relief answer is frozen.
	AllowReliefRevisionAfterResolution bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// RequestService coordinates leave requests, relief responses and approvals.
type RequestService struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
	opts     Options

	Detector  OverlapDetector
	Balances  BalanceCalculator
	Canceller MeetingCanceller
	Relief    ReliefFinder
}

// NewRequestService wires the service. A nil notifier drops notifications;
// a nil logger is replaced with a no-op logger.
func NewRequestService(store Store, notifier Notifier, logger *zap.Logger, opts Options) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	detector := OverlapDetector{}
	return &RequestService{
		store:     store,
		notifier:  notifier,
		logger:    logger.Named("leave"),
		opts:      opts,
		Detector:  detector,
		Canceller: MeetingCanceller{Detector: detector, Reason: opts.MeetingCancellationReason},
		Relief:    ReliefFinder{Detector: detector},
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is a new leave application.
type SubmitInput struct {
	ApplicantID     generic.TeacherID
	CategoryID      generic.CategoryID
	Range           generic.DateRange
	IsHalfDay       bool
	Reason          string
	ReliefTeacherID generic.TeacherID
}

func (in SubmitInput) validate() error {
	if in.ApplicantID == 0 {
		return &generic.ValidationError{Field: "applicant_id", Message: "is required"}
	}
	if in.ReliefTeacherID == 0 {
		return &generic.ValidationError{Field: "relief_teacher_id", Message: "is required"}
	}
	if in.ReliefTeacherID == in.ApplicantID {
		return &generic.ValidationError{Field: "relief_teacher_id", Message: "must be a different teacher than the applicant"}
	}
	if in.CategoryID == 0 {
		return &generic.ValidationError{Field: "category_id", Message: "is required"}
	}
	if err := in.Range.Validate(); err != nil {
		return err
	}
	if in.IsHalfDay && !in.Range.IsSingleDay() {
		return &generic.ValidationError{Field: "is_half_day", Message: "a half-day request must cover a single date"}
	}
	return nil
}

// Submit creates a leave request in (pending, pending) and asks the relief
// teacher to cover it.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (generic.RequestID, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	in.Reason = strings.TrimSpace(in.Reason)

	var (
		created Request
		outbox  []Notification
	)
	err := s.store.WithTx(ctx, func(repo Repository) error {
		if err := s.requireTeacher(ctx, repo, in.ApplicantID, "applicant_id"); err != nil {
			return err
		}
		if err := s.requireTeacher(ctx, repo, in.ReliefTeacherID, "relief_teacher_id"); err != nil {
			return err
		}
		category, err := repo.GetCategory(ctx, in.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return &generic.ValidationError{Field: "category_id", Message: "unknown leave category"}
		}

		// Serialize against concurrent submissions by the same applicant
		// before reading their calendar.
		if err := repo.LockApplicant(ctx, in.ApplicantID); err != nil {
			return err
		}
		existing, err := s.Detector.LeaveConflict(ctx, repo, in.ApplicantID, in.Range)
		if err != nil {
			return err
		}
		if existing != nil {
			return &generic.ConflictError{
				TeacherID:  in.ApplicantID,
				ExistingID: existing.ID,
				Existing:   existing.Range,
				Requested:  in.Range,
			}
		}

		now := s.opts.Now()
		created = Request{
			ApplicantID:     in.ApplicantID,
			CategoryID:      in.CategoryID,
			Range:           in.Range,
			IsHalfDay:       in.IsHalfDay,
			Reason:          in.Reason,
			ReliefTeacherID: in.ReliefTeacherID,
			PrimaryStatus:   PrimaryPending,
			ReliefStatus:    ReliefPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repo.InsertRequest(ctx, &created); err != nil {
			return err
		}
		outbox = append(outbox, reliefRequestedNotice(created))
		return nil
	})
	if err != nil {
		return 0, generic.WrapPersistence("submit leave request", err)
	}

	s.logger.Info("leave request submitted",
		zap.Int64("request_id", int64(created.ID)),
		zap.Int64("applicant_id", int64(created.ApplicantID)),
		zap.Int64("relief_teacher_id", int64(created.ReliefTeacherID)),
		zap.Stringer("range", created.Range),
		zap.Bool("half_day", created.IsHalfDay),
	)
	s.dispatch(ctx, outbox)
	return created.ID, nil
}

// =============================================================================
// RELIEF RESPONSE
// =============================================================================

// RespondToRelief records the relief teacher's answer. Only the teacher named
// on the request can answer; anyone else gets NotFoundError.
func (s *RequestService) RespondToRelief(ctx context.Context, requestID generic.RequestID, reliefTeacherID generic.TeacherID, decision Decision, reason string) (*Request, error) {
	if !decision.Valid() {
		return nil, &generic.ValidationError{Field: "decision", Message: "must be approved or rejected"}
	}

	var (
		updated Request
		outbox  []Notification
	)
	err := s.store.WithTx(ctx, func(repo Repository) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.ReliefTeacherID != reliefTeacherID {
			return &generic.NotFoundError{Resource: "relief request", ID: int64(requestID)}
		}
		if req.PrimaryStatus != PrimaryPending && !s.opts.AllowReliefRevisionAfterResolution {
			return &generic.StateError{
				RequestID: req.ID,
				Status:    string(req.PrimaryStatus),
				Message:   "relief answer can't change after the request was resolved",
			}
		}

		now := s.opts.Now()
		if decision == DecisionApproved {
			req.ReliefStatus = ReliefApproved
			req.ReliefRejectionReason = ""
		} else {
			req.ReliefStatus = ReliefRejected
			req.ReliefRejectionReason = strings.TrimSpace(reason)
		}
		req.ReliefRespondedAt = &now
		req.UpdatedAt = now
		if err := repo.UpdateRequest(ctx, req); err != nil {
			return err
		}
		updated = *req
		outbox = append(outbox, reliefRespondedNotice(updated))
		return nil
	})
	if err != nil {
		return nil, generic.WrapPersistence("respond to relief", err)
	}

	s.logger.Info("relief response recorded",
		zap.Int64("request_id", int64(updated.ID)),
		zap.Int64("relief_teacher_id", int64(reliefTeacherID)),
		zap.String("relief_status", string(updated.ReliefStatus)),
	)
	s.dispatch(ctx, outbox)
	return &updated, nil
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve approves or rejects a pending request. Approval requires the relief
// teacher to have accepted and cancels the applicant's meetings inside the
// leave window in the same unit of work.
func (s *RequestService) Resolve(ctx context.Context, requestID generic.RequestID, approverID generic.TeacherID, decision Decision, reason string) (*Request, error) {
	if !decision.Valid() {
		return nil, &generic.ValidationError{Field: "decision", Message: "must be approved or rejected"}
	}

	var (
		updated   Request
		cancelled []Meeting
		outbox    []Notification
	)
	err := s.store.WithTx(ctx, func(repo Repository) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &generic.NotFoundError{Resource: "leave request", ID: int64(requestID)}
		}
		if req.PrimaryStatus != PrimaryPending {
			return &generic.StateError{
				RequestID: req.ID,
				Status:    string(req.PrimaryStatus),
				Message:   "only pending requests can be resolved",
			}
		}
		if decision == DecisionApproved && req.ReliefStatus != ReliefApproved {
			return &generic.StateError{
				RequestID: req.ID,
				Status:    string(req.PrimaryStatus),
				Message:   "relief teacher has not accepted",
			}
		}

		now := s.opts.Now()
		approver := approverID
		req.ApproverID = &approver
		req.ResolvedAt = &now
		req.UpdatedAt = now

		if decision == DecisionApproved {
			req.PrimaryStatus = PrimaryApproved
			if err := repo.UpdateRequest(ctx, req); err != nil {
				return err
			}
			var notes []Notification
			cancelled, notes, err = s.Canceller.CancelWithin(ctx, repo, req.ApplicantID, req.Range, now)
			if err != nil {
				return err
			}
			outbox = append(outbox, resolvedNotice(*req))
			outbox = append(outbox, notes...)
		} else {
			req.PrimaryStatus = PrimaryRejected
			req.RejectionReason = strings.TrimSpace(reason)
			if err := repo.UpdateRequest(ctx, req); err != nil {
				return err
			}
			outbox = append(outbox, resolvedNotice(*req))
		}
		updated = *req
		return nil
	})
	if err != nil {
		return nil, generic.WrapPersistence("resolve leave request", err)
	}

	s.logger.Info("leave request resolved",
		zap.Int64("request_id", int64(updated.ID)),
		zap.Int64("approver_id", int64(approverID)),
		zap.String("status", string(updated.PrimaryStatus)),
		zap.Int("meetings_rescheduled", len(cancelled)),
		zap.Any("notified", recipients(outbox)),
	)
	s.dispatch(ctx, outbox)
	return &updated, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws a pending or approved request on behalf of its applicant.
// Meetings already moved to reschedule_requested stay there.
func (s *RequestService) Cancel(ctx context.Context, requestID generic.RequestID, requesterID generic.TeacherID) (*Request, error) {
	var (
		updated Request
		outbox  []Notification
	)
	err := s.store.WithTx(ctx, func(repo Repository) error {
		req, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &generic.NotFoundError{Resource: "leave request", ID: int64(requestID)}
		}
		if req.ApplicantID != requesterID {
			return &generic.AuthorizationError{RequestID: req.ID, ActorID: requesterID, Action: "cancel"}
		}
		if !req.PrimaryStatus.Active() {
			return &generic.StateError{
				RequestID: req.ID,
				Status:    string(req.PrimaryStatus),
				Message:   "request is already closed",
			}
		}

		now := s.opts.Now()
		req.PrimaryStatus = PrimaryCancelled
		req.CancelledAt = &now
		req.UpdatedAt = now
		if err := repo.UpdateRequest(ctx, req); err != nil {
			return err
		}
		updated = *req
		if req.ReliefTeacherID != 0 {
			outbox = append(outbox, cancelledNotice(updated))
		}
		return nil
	})
	if err != nil {
		return nil, generic.WrapPersistence("cancel leave request", err)
	}

	s.logger.Info("leave request cancelled",
		zap.Int64("request_id", int64(updated.ID)),
		zap.Int64("applicant_id", int64(updated.ApplicantID)),
	)
	s.dispatch(ctx, outbox)
	return &updated, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// Get returns a request by id.
func (s *RequestService) Get(ctx context.Context, id generic.RequestID) (*Request, error) {
	var req *Request
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		req, err = repo.GetRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, generic.WrapPersistence("get leave request", err)
	}
	if req == nil {
		return nil, &generic.NotFoundError{Resource: "leave request", ID: int64(id)}
	}
	return req, nil
}

// ListForApplicant returns every request a teacher submitted.
func (s *RequestService) ListForApplicant(ctx context.Context, applicantID generic.TeacherID) ([]Request, error) {
	return s.find(ctx, "list leave requests", RequestFilter{ApplicantID: applicantID})
}

// ListReliefAssignments returns requests naming reliefTeacherID as relief,
// optionally narrowed to the given relief statuses.
func (s *RequestService) ListReliefAssignments(ctx context.Context, reliefTeacherID generic.TeacherID, statuses ...ReliefStatus) ([]Request, error) {
	return s.find(ctx, "list relief assignments", RequestFilter{
		ReliefTeacherID: reliefTeacherID,
		ReliefStatuses:  statuses,
	})
}

// ListAwaitingResolution is the approver queue: every pending request.
// Request.AwaitingRelief tells which ones can't be approved yet.
func (s *RequestService) ListAwaitingResolution(ctx context.Context) ([]Request, error) {
	return s.find(ctx, "list pending leave requests", RequestFilter{
		PrimaryStatuses: []PrimaryStatus{PrimaryPending},
	})
}

// Balance returns the derived yearly balance of a teacher.
func (s *RequestService) Balance(ctx context.Context, teacherID generic.TeacherID, year int) ([]CategoryBalance, error) {
	var balances []CategoryBalance
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		balances, err = s.Balances.Balance(ctx, repo, teacherID, year)
		return err
	})
	if err != nil {
		return nil, generic.WrapPersistence("compute balance", err)
	}
	return balances, nil
}

// FindReliefCandidates lists colleagues who could cover teacherID over r.
func (s *RequestService) FindReliefCandidates(ctx context.Context, teacherID generic.TeacherID, r generic.DateRange) ([]TeacherSummary, error) {
	var candidates []TeacherSummary
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		candidates, err = s.Relief.Candidates(ctx, repo, teacherID, r)
		return err
	})
	if err != nil {
		return nil, generic.WrapPersistence("find relief candidates", err)
	}
	return candidates, nil
}

func (s *RequestService) find(ctx context.Context, op string, f RequestFilter) ([]Request, error) {
	var requests []Request
	err := s.store.View(ctx, func(repo Repository) error {
		var err error
		requests, err = repo.FindRequests(ctx, f)
		return err
	})
	if err != nil {
		return nil, generic.WrapPersistence(op, err)
	}
	return requests, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *RequestService) requireTeacher(ctx context.Context, repo Repository, id generic.TeacherID, field string) error {
	t, err := repo.GetTeacher(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return &generic.ValidationError{Field: field, Message: "unknown teacher"}
	}
	return nil
}

// dispatch hands committed notifications to the sink. Failures are logged only.
func (s *RequestService) dispatch(ctx context.Context, outbox []Notification) {
	if s.notifier == nil {
		return
	}
	now := s.opts.Now()
	for _, n := range outbox {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed",
				zap.Int64("recipient_id", int64(n.RecipientID)),
				zap.String("category", string(n.Category)),
				zap.Error(err),
			)
		}
	}
}
