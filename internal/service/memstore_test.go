package service

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"gorm.io/gorm"

	"coursehub/internal/model"
	"coursehub/internal/repository"
)

// memStore is an in-memory TeamRequestRepository. Transactions hold a single
// mutex for their whole duration and roll back on error.
type memStore struct {
	mu          sync.Mutex
	assignments map[uint]model.Assignment
	requests    map[uint]model.TeamRequest
	events      []model.TeamRequestEvent
	nextID      uint

	// skipActiveLookup makes FindActive always miss so the unique key is
	// the only guard left.
	skipActiveLookup bool
	listErr          error
	pageCalls        int
}

func newMemStore(assignments ...model.Assignment) *memStore {
	s := &memStore{
		assignments: make(map[uint]model.Assignment),
		requests:    make(map[uint]model.TeamRequest),
	}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
	return s
}

func (s *memStore) repo() *memRepo { return &memRepo{store: s} }

func (s *memStore) get(id uint) model.TeamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

// put stores req as is, bypassing the engine.
func (s *memStore) put(req model.TeamRequest) model.TeamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.ID = s.nextID
	if req.Status == model.TeamRequestOpen {
		key := model.ActiveKeyFor(req.RequesterID, req.AssignmentID)
		req.ActiveKey = &key
	}
	s.requests[req.ID] = req
	return req
}

type memRepo struct {
	store *memStore
	inTx  bool
}

var _ repository.TeamRequestRepository = (*memRepo)(nil)

func (r *memRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.TeamRequestRepository) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snapshot := maps.Clone(r.store.requests)
	nextID := r.store.nextID
	if err := fn(ctx, &memRepo{store: r.store, inTx: true}); err != nil {
		r.store.requests = snapshot
		r.store.nextID = nextID
		return err
	}
	return nil
}

func (r *memRepo) LockAssignment(_ context.Context, assignmentID uint) (*model.Assignment, error) {
	defer r.lock()()
	a, ok := r.store.assignments[assignmentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *memRepo) Create(_ context.Context, req *model.TeamRequest) error {
	defer r.lock()()
	if req.ActiveKey != nil {
		for _, existing := range r.store.requests {
			if existing.ActiveKey != nil && *existing.ActiveKey == *req.ActiveKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.store.nextID++
	req.ID = r.store.nextID
	r.store.requests[req.ID] = *req
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uint) (*model.TeamRequest, error) {
	defer r.lock()()
	req, ok := r.store.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r *memRepo) FindByIDForUpdate(ctx context.Context, id uint) (*model.TeamRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *memRepo) FindActive(_ context.Context, requesterID, assignmentID uint) (*model.TeamRequest, error) {
	defer r.lock()()
	if r.store.skipActiveLookup {
		return nil, gorm.ErrRecordNotFound
	}
	key := model.ActiveKeyFor(requesterID, assignmentID)
	for _, req := range r.store.requests {
		if req.ActiveKey != nil && *req.ActiveKey == key {
			return &req, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) ListOpenForUpdate(_ context.Context, assignmentID uint, typ model.TeamRequestType) ([]model.TeamRequest, error) {
	defer r.lock()()
	var out []model.TeamRequest
	for _, req := range r.store.requests {
		if req.AssignmentID == assignmentID && req.Type == typ && req.Status == model.TeamRequestOpen {
			out = append(out, req)
		}
	}
	// map order
	return out, nil
}

func (r *memRepo) Transition(_ context.Context, id uint, from, to model.TeamRequestStatus, matchedID *uint, at time.Time) (bool, error) {
	defer r.lock()()
	req, ok := r.store.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.ClosedAt = &at
	if to.Terminal() {
		req.ActiveKey = nil
	}
	if matchedID != nil {
		m := *matchedID
		req.MatchedRequestID = &m
	}
	r.store.requests[id] = req
	return true, nil
}

func (r *memRepo) ListPage(_ context.Context, filter repository.TeamRequestFilter, afterID uint, limit int) ([]model.TeamRequest, error) {
	defer r.lock()()
	r.store.pageCalls++
	if r.store.listErr != nil {
		return nil, r.store.listErr
	}
	ids := slices.Sorted(maps.Keys(r.store.requests))
	var out []model.TeamRequest
	for _, id := range ids {
		req := r.store.requests[id]
		switch {
		case id <= afterID:
		case filter.AssignmentID != nil && req.AssignmentID != *filter.AssignmentID:
		case filter.RequesterID != nil && req.RequesterID != *filter.RequesterID:
		case filter.Status != nil && req.Status != *filter.Status:
		case filter.DepartmentID != nil && r.store.assignments[req.AssignmentID].DepartmentID != *filter.DepartmentID:
		default:
			out = append(out, req)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ListOpenCreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]model.TeamRequest, error) {
	defer r.lock()()
	var out []model.TeamRequest
	for _, id := range slices.Sorted(maps.Keys(r.store.requests)) {
		req := r.store.requests[id]
		if req.Status == model.TeamRequestOpen && req.CreatedAt.Before(cutoff) {
			out = append(out, req)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// memEvents is an in-memory TeamRequestEventRepository and EventSink.
type memEvents struct {
	mu     sync.Mutex
	events []model.TeamRequestEvent
	// batches counts CreateBatch calls.
	batches int
}

var (
	_ repository.TeamRequestEventRepository = (*memEvents)(nil)
	_ EventSink                             = (*memEvents)(nil)
)

func (m *memEvents) Create(_ context.Context, event *model.TeamRequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uint(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *memEvents) CreateBatch(_ context.Context, events []model.TeamRequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	for _, e := range events {
		e.ID = uint(len(m.events) + 1)
		m.events = append(m.events, e)
	}
	return nil
}

func (m *memEvents) ListByRequest(_ context.Context, requestID uint) ([]model.TeamRequestEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TeamRequestEvent
	for _, e := range m.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) Record(ctx context.Context, events ...model.TeamRequestEvent) {
	for i := range events {
		_ = m.Create(ctx, &events[i])
	}
}

func (m *memEvents) all() []model.TeamRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}
