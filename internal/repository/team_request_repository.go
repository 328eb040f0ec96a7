package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursehub/internal/model"
)

// TeamRequestFilter narrows a team request listing. Nil fields match all.
type TeamRequestFilter struct {
	AssignmentID *uint
	RequesterID  *uint
	Status       *model.TeamRequestStatus
	// DepartmentID keeps requests whose assignment belongs to the department.
	DepartmentID *uint
}

// TeamRequestRepository defines team request persistence operations.
type TeamRequestRepository interface {
	// LockAssignment loads the assignment with a row lock held until the
	// surrounding transaction ends. Creates and matches for the same
	// assignment serialize on it.
	LockAssignment(ctx context.Context, assignmentID uint) (*model.Assignment, error)
	Create(ctx context.Context, req *model.TeamRequest) error
	FindByID(ctx context.Context, id uint) (*model.TeamRequest, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.TeamRequest, error)
	// FindActive returns the OPEN request of requesterID on assignmentID, or
	// gorm.ErrRecordNotFound.
	FindActive(ctx context.Context, requesterID, assignmentID uint) (*model.TeamRequest, error)
	ListOpenForUpdate(ctx context.Context, assignmentID uint, typ model.TeamRequestType) ([]model.TeamRequest, error)
	// Transition moves a request from one status to another only if it is
	// still in from. It reports whether the row changed.
	Transition(ctx context.Context, id uint, from, to model.TeamRequestStatus, matchedID *uint, at time.Time) (bool, error)
	ListPage(ctx context.Context, filter TeamRequestFilter, afterID uint, limit int) ([]model.TeamRequest, error)
	ListOpenCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.TeamRequest, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo TeamRequestRepository) error) error
}

type teamRequestRepository struct {
	db *gorm.DB
}

// NewTeamRequestRepository creates a new team request repository.
func NewTeamRequestRepository(db *gorm.DB) TeamRequestRepository {
	return &teamRequestRepository{db: db}
}

func (r *teamRequestRepository) LockAssignment(ctx context.Context, assignmentID uint) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", assignmentID).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts a request. A concurrent OPEN request for the same requester
// and assignment surfaces as gorm.ErrDuplicatedKey.
func (r *teamRequestRepository) Create(ctx context.Context, req *model.TeamRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *teamRequestRepository) FindByID(ctx context.Context, id uint) (*model.TeamRequest, error) {
	var req model.TeamRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.TeamRequest, error) {
	var req model.TeamRequest
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepository) FindActive(ctx context.Context, requesterID, assignmentID uint) (*model.TeamRequest, error) {
	var req model.TeamRequest
	if err := r.db.WithContext(ctx).
		Where("active_key = ?", model.ActiveKeyFor(requesterID, assignmentID)).
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *teamRequestRepository) ListOpenForUpdate(ctx context.Context, assignmentID uint, typ model.TeamRequestType) ([]model.TeamRequest, error) {
	var reqs []model.TeamRequest
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assignment_id = ? AND status = ? AND type = ?", assignmentID, model.TeamRequestOpen, typ).
		Order("created_at, id").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *teamRequestRepository) Transition(ctx context.Context, id uint, from, to model.TeamRequestStatus, matchedID *uint, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":    to,
		"closed_at": at,
	}
	if to.Terminal() {
		updates["active_key"] = nil
	}
	if matchedID != nil {
		updates["matched_request_id"] = *matchedID
	}
	res := r.db.WithContext(ctx).Model(&model.TeamRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPage returns up to limit requests with id greater than afterID in id order.
func (r *teamRequestRepository) ListPage(ctx context.Context, filter TeamRequestFilter, afterID uint, limit int) ([]model.TeamRequest, error) {
	var reqs []model.TeamRequest
	q := r.db.WithContext(ctx).Where("team_requests.id > ?", afterID)
	if filter.AssignmentID != nil {
		q = q.Where("team_requests.assignment_id = ?", *filter.AssignmentID)
	}
	if filter.RequesterID != nil {
		q = q.Where("team_requests.requester_id = ?", *filter.RequesterID)
	}
	if filter.Status != nil {
		q = q.Where("team_requests.status = ?", *filter.Status)
	}
	if filter.DepartmentID != nil {
		q = q.Select("team_requests.*").
			Joins("JOIN assignments ON assignments.id = team_requests.assignment_id").
			Where("assignments.department_id = ?", *filter.DepartmentID)
	}
	if err := q.Order("team_requests.id").Limit(limit).Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *teamRequestRepository) ListOpenCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.TeamRequest, error) {
	var reqs []model.TeamRequest
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TeamRequestOpen, cutoff).
		Order("created_at, id").Limit(limit).Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// WithTransaction executes a function within a database transaction.
func (r *teamRequestRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo TeamRequestRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &teamRequestRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

// TeamRequestEventRepository defines audit event persistence operations.
type TeamRequestEventRepository interface {
	Create(ctx context.Context, event *model.TeamRequestEvent) error
	CreateBatch(ctx context.Context, events []model.TeamRequestEvent) error
	ListByRequest(ctx context.Context, requestID uint) ([]model.TeamRequestEvent, error)
}

type teamRequestEventRepository struct {
	db *gorm.DB
}

// NewTeamRequestEventRepository creates a new team request event repository.
func NewTeamRequestEventRepository(db *gorm.DB) TeamRequestEventRepository {
	return &teamRequestEventRepository{db: db}
}

// Create creates a new event entry.
func (r *teamRequestEventRepository) Create(ctx context.Context, event *model.TeamRequestEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// CreateBatch creates multiple event entries in a single statement per hundred rows.
func (r *teamRequestEventRepository) CreateBatch(ctx context.Context, events []model.TeamRequestEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}

func (r *teamRequestEventRepository) ListByRequest(ctx context.Context, requestID uint) ([]model.TeamRequestEvent, error) {
	var events []model.TeamRequestEvent
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).
		Order("created_at, id").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
