package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coursehub/internal/auth"
	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const (
	maxTeamRequestMessage = 1000
	maxContactHandle      = 100
)

// EventSink receives team request transitions for the audit trail.
type EventSink interface {
	Record(ctx context.Context, events ...model.TeamRequestEvent)
}

// CreateTeamRequestInput carries the fields of a new team request. Type is
// validated here rather than trusted from the transport layer.
type CreateTeamRequestInput struct {
	AssignmentID    uint
	Type            string
	Message         string
	ContactHandle   string
	CurrentTeamSize *int
}

// TeamRequestOptions tunes the team request engine.
type TeamRequestOptions struct {
	// EagerMatching runs the matching policy inside every create.
	EagerMatching bool
	// RequestTTL is the age after which OPEN requests expire. Zero disables expiry.
	RequestTTL time.Duration
	// PageSize bounds each query issued while iterating a listing.
	PageSize int
}

// TeamRequestService governs the JOIN/RECRUIT request lifecycle.
type TeamRequestService interface {
	Create(ctx context.Context, identity auth.Identity, in CreateTeamRequestInput) (*model.TeamRequest, error)
	List(ctx context.Context, filter repository.TeamRequestFilter) iter.Seq2[model.TeamRequest, error]
	Match(ctx context.Context, identity auth.Identity, requestID uint) (*model.TeamRequest, error)
	Withdraw(ctx context.Context, identity auth.Identity, requestID uint) error
	Events(ctx context.Context, identity auth.Identity, requestID uint) ([]model.TeamRequestEvent, error)
	ExpireStale(ctx context.Context) (int64, error)
}

type teamRequestService struct {
	repo   repository.TeamRequestRepository
	events repository.TeamRequestEventRepository
	sink   EventSink
	opts   TeamRequestOptions
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewTeamRequestService creates the team request engine. sink may be nil.
func NewTeamRequestService(
	repo repository.TeamRequestRepository,
	events repository.TeamRequestEventRepository,
	sink EventSink,
	opts TeamRequestOptions,
	log logrus.FieldLogger,
) TeamRequestService {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	return &teamRequestService{
		repo:   repo,
		events: events,
		sink:   sink,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new OPEN request after validating it. At most one OPEN
// request may exist per requester and assignment.
func (s *teamRequestService) Create(ctx context.Context, identity auth.Identity, in CreateTeamRequestInput) (*model.TeamRequest, error) {
	typ, teamSize, err := validateCreate(in)
	if err != nil {
		return nil, err
	}

	var (
		created *model.TeamRequest
		events  []model.TeamRequestEvent
	)
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.TeamRequestRepository) error {
		assignment, err := repo.LockAssignment(ctx, in.AssignmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("assignment %d: %w", in.AssignmentID, apperrors.ErrNotFound)
			}
			return fmt.Errorf("load assignment: %w", err)
		}
		if !auth.Authorize(identity, canSeeDepartment(assignment.DepartmentID)) {
			return fmt.Errorf("%w: assignment belongs to another department", apperrors.ErrForbidden)
		}

		if _, err := repo.FindActive(ctx, identity.UserID, in.AssignmentID); err == nil {
			return apperrors.ErrDuplicateRequest
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check open request: %w", err)
		}

		activeKey := model.ActiveKeyFor(identity.UserID, in.AssignmentID)
		req := &model.TeamRequest{
			AssignmentID:    in.AssignmentID,
			RequesterID:     identity.UserID,
			Type:            typ,
			Message:         strings.TrimSpace(in.Message),
			ContactHandle:   strings.TrimSpace(in.ContactHandle),
			CurrentTeamSize: teamSize,
			Status:          model.TeamRequestOpen,
			ActiveKey:       &activeKey,
			CreatedAt:       s.now(),
		}
		if err := repo.Create(ctx, req); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrDuplicateRequest
			}
			return fmt.Errorf("create team request: %w", err)
		}
		events = append(events, newEvent(req.ID, identity.UserID, "", model.TeamRequestOpen, "created"))

		if s.opts.EagerMatching {
			matched, err := s.match(ctx, repo, req, identity.UserID)
			if err != nil {
				return err
			}
			events = append(events, matched...)
		}

		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, events...)
	s.log.WithFields(logrus.Fields{
		"request_id":    created.ID,
		"assignment_id": created.AssignmentID,
		"type":          created.Type,
		"status":        created.Status,
	}).Info("team request created")
	return created, nil
}

func validateCreate(in CreateTeamRequestInput) (model.TeamRequestType, *int, error) {
	typ, ok := model.ParseTeamRequestType(in.Type)
	if !ok {
		return "", nil, fmt.Errorf("%w: type must be JOIN or RECRUIT", apperrors.ErrValidation)
	}
	if in.AssignmentID == 0 {
		return "", nil, fmt.Errorf("%w: assignmentId is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Message)) > maxTeamRequestMessage {
		return "", nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrValidation, maxTeamRequestMessage)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.ContactHandle)) > maxContactHandle {
		return "", nil, fmt.Errorf("%w: contact handle exceeds %d characters", apperrors.ErrValidation, maxContactHandle)
	}
	if in.CurrentTeamSize != nil && *in.CurrentTeamSize < 1 {
		return "", nil, fmt.Errorf("%w: currentTeamSize must be at least 1", apperrors.ErrValidation)
	}

	// team size only describes a recruiting team
	if typ == model.TeamRequestJoin {
		return typ, nil, nil
	}
	return typ, in.CurrentTeamSize, nil
}

// List yields the requests matching filter in id order. Each range over the
// returned sequence queries the store afresh, one page at a time.
func (s *teamRequestService) List(ctx context.Context, filter repository.TeamRequestFilter) iter.Seq2[model.TeamRequest, error] {
	return func(yield func(model.TeamRequest, error) bool) {
		var after uint
		for {
			page, err := s.repo.ListPage(ctx, filter, after, s.opts.PageSize)
			if err != nil {
				yield(model.TeamRequest{}, fmt.Errorf("list team requests: %w", err))
				return
			}
			for _, req := range page {
				if !yield(req, nil) {
					return
				}
			}
			if len(page) < s.opts.PageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

// Match runs the matching policy for one of the caller's OPEN requests. The
// request is returned MATCHED when a counterpart was found, OPEN otherwise.
func (s *teamRequestService) Match(ctx context.Context, identity auth.Identity, requestID uint) (*model.TeamRequest, error) {
	var (
		result *model.TeamRequest
		events []model.TeamRequestEvent
	)
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.TeamRequestRepository) error {
		req, err := s.findOwned(ctx, repo.FindByID, identity, requestID)
		if err != nil {
			return err
		}
		if _, err := repo.LockAssignment(ctx, req.AssignmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("assignment %d: %w", req.AssignmentID, apperrors.ErrNotFound)
			}
			return fmt.Errorf("lock assignment: %w", err)
		}

		// re-read under the assignment lock
		req, err = s.findOwned(ctx, repo.FindByIDForUpdate, identity, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return apperrors.ErrAlreadyClosed
		}

		events, err = s.match(ctx, repo, req, identity.UserID)
		if err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, events...)
	return result, nil
}

// match pairs req with the oldest compatible OPEN counterpart, if any. Both
// rows change status only if they are still OPEN.
func (s *teamRequestService) match(ctx context.Context, repo repository.TeamRequestRepository, req *model.TeamRequest, actorID uint) ([]model.TeamRequestEvent, error) {
	candidates, err := repo.ListOpenForUpdate(ctx, req.AssignmentID, req.Type.Counterpart())
	if err != nil {
		return nil, fmt.Errorf("list counterparts: %w", err)
	}
	counterpart, ok := pickCounterpart(req, candidates)
	if !ok {
		return nil, nil
	}

	now := s.now()
	for _, link := range [][2]uint{{req.ID, counterpart.ID}, {counterpart.ID, req.ID}} {
		changed, err := repo.Transition(ctx, link[0], model.TeamRequestOpen, model.TeamRequestMatched, &link[1], now)
		if err != nil {
			return nil, fmt.Errorf("match team request %d: %w", link[0], err)
		}
		if !changed {
			return nil, apperrors.ErrAlreadyClosed
		}
	}

	req.Status = model.TeamRequestMatched
	req.MatchedRequestID = &counterpart.ID
	req.ActiveKey = nil
	req.ClosedAt = &now

	s.log.WithFields(logrus.Fields{
		"request_id":     req.ID,
		"counterpart_id": counterpart.ID,
		"assignment_id":  req.AssignmentID,
	}).Info("team requests matched")

	reason := fmt.Sprintf("matched with %d", counterpart.ID)
	return []model.TeamRequestEvent{
		newEvent(req.ID, actorID, model.TeamRequestOpen, model.TeamRequestMatched, reason),
		newEvent(counterpart.ID, actorID, model.TeamRequestOpen, model.TeamRequestMatched, fmt.Sprintf("matched with %d", req.ID)),
	}, nil
}

// pickCounterpart applies the matching policy: an OPEN request of the opposite
// type on the same assignment from another requester, earliest created first
// and lowest id on ties.
func pickCounterpart(req *model.TeamRequest, candidates []model.TeamRequest) (model.TeamRequest, bool) {
	var (
		best  model.TeamRequest
		found bool
	)
	for _, c := range candidates {
		if c.ID == req.ID ||
			c.RequesterID == req.RequesterID ||
			c.AssignmentID != req.AssignmentID ||
			c.Type != req.Type.Counterpart() ||
			c.Status != model.TeamRequestOpen {
			continue
		}
		if !found || compareAge(c, best) < 0 {
			best, found = c, true
		}
	}
	return best, found
}

func compareAge(a, b model.TeamRequest) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Withdraw closes one of the caller's OPEN requests.
func (s *teamRequestService) Withdraw(ctx context.Context, identity auth.Identity, requestID uint) error {
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.TeamRequestRepository) error {
		req, err := s.findOwned(ctx, repo.FindByIDForUpdate, identity, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return apperrors.ErrAlreadyClosed
		}
		changed, err := repo.Transition(ctx, req.ID, model.TeamRequestOpen, model.TeamRequestWithdrawn, nil, s.now())
		if err != nil {
			return fmt.Errorf("withdraw team request: %w", err)
		}
		if !changed {
			return apperrors.ErrAlreadyClosed
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, newEvent(requestID, identity.UserID, model.TeamRequestOpen, model.TeamRequestWithdrawn, "withdrawn by owner"))
	return nil
}

// Events returns the audit trail of a request to its owner or an assistant.
func (s *teamRequestService) Events(ctx context.Context, identity auth.Identity, requestID uint) ([]model.TeamRequestEvent, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team request %d: %w", requestID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find team request: %w", err)
	}
	if req.RequesterID != identity.UserID && !identity.IsAssistant() {
		return nil, fmt.Errorf("%w: not the owner of team request %d", apperrors.ErrForbidden, requestID)
	}

	events, err := s.events.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list team request events: %w", err)
	}
	return events, nil
}

// ExpireStale moves OPEN requests older than the configured TTL to EXPIRED and
// returns how many changed.
func (s *teamRequestService) ExpireStale(ctx context.Context) (int64, error) {
	if s.opts.RequestTTL <= 0 {
		return 0, nil
	}

	now := s.now()
	cutoff := now.Add(-s.opts.RequestTTL)
	var expired int64
	for {
		page, err := s.repo.ListOpenCreatedBefore(ctx, cutoff, s.opts.PageSize)
		if err != nil {
			return expired, fmt.Errorf("list stale team requests: %w", err)
		}
		for _, req := range page {
			changed, err := s.repo.Transition(ctx, req.ID, model.TeamRequestOpen, model.TeamRequestExpired, nil, now)
			if err != nil {
				return expired, fmt.Errorf("expire team request %d: %w", req.ID, err)
			}
			if changed {
				expired++
				s.record(ctx, newEvent(req.ID, 0, model.TeamRequestOpen, model.TeamRequestExpired, "ttl elapsed"))
			}
		}
		if len(page) < s.opts.PageSize {
			return expired, nil
		}
	}
}

type findFunc func(ctx context.Context, id uint) (*model.TeamRequest, error)

func (s *teamRequestService) findOwned(ctx context.Context, find findFunc, identity auth.Identity, requestID uint) (*model.TeamRequest, error) {
	req, err := find(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team request %d: %w", requestID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find team request: %w", err)
	}
	if req.RequesterID != identity.UserID {
		return nil, fmt.Errorf("%w: not the owner of team request %d", apperrors.ErrForbidden, requestID)
	}
	return req, nil
}

func (s *teamRequestService) record(ctx context.Context, events ...model.TeamRequestEvent) {
	if s.sink == nil || len(events) == 0 {
		return
	}
	s.sink.Record(ctx, events...)
}

func newEvent(requestID, actorID uint, from, to model.TeamRequestStatus, reason string) model.TeamRequestEvent {
	return model.TeamRequestEvent{
		RequestID:  requestID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
	}
}

// canSeeDepartment lets assistants through everywhere and students only into
// their own department.
func canSeeDepartment(departmentID uint) auth.Capability {
	return auth.AnyOf(auth.RequireLevel(model.LevelAssistant), auth.InDepartment(departmentID))
}
