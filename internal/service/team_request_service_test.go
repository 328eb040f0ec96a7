package service

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/auth"
	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const assignmentA uint = 5

var (
	alice     = auth.Identity{UserID: 1, Level: model.LevelStudent, DepartmentID: 1}
	bob       = auth.Identity{UserID: 2, Level: model.LevelStudent, DepartmentID: 1}
	carol     = auth.Identity{UserID: 3, Level: model.LevelStudent, DepartmentID: 1}
	outsider  = auth.Identity{UserID: 9, Level: model.LevelStudent, DepartmentID: 2}
	assistant = auth.Identity{UserID: 10, Level: model.LevelAssistant, DepartmentID: 7}
)

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type engineFixture struct {
	svc    *teamRequestService
	store  *memStore
	events *memEvents
	clock  *stepClock
}

func newEngine(opts TeamRequestOptions) *engineFixture {
	store := newMemStore(
		model.Assignment{ID: assignmentA, DepartmentID: 1, Title: "Compilers project"},
		model.Assignment{ID: 6, DepartmentID: 1, Title: "Networks lab"},
	)
	events := &memEvents{}
	logger, _ := logtest.NewNullLogger()
	svc := NewTeamRequestService(store.repo(), events, events, opts, logger).(*teamRequestService)
	clock := &stepClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return &engineFixture{svc: svc, store: store, events: events, clock: clock}
}

func (f *engineFixture) create(t *testing.T, id auth.Identity, typ string) *model.TeamRequest {
	t.Helper()
	req, err := f.svc.Create(context.Background(), id, CreateTeamRequestInput{AssignmentID: assignmentA, Type: typ})
	require.NoError(t, err)
	return req
}

func collect(t *testing.T, seq iter.Seq2[model.TeamRequest, error]) []model.TeamRequest {
	t.Helper()
	var out []model.TeamRequest
	for req, err := range seq {
		require.NoError(t, err)
		out = append(out, req)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestTeamRequestService_Create(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	req, err := f.svc.Create(context.Background(), alice, CreateTeamRequestInput{
		AssignmentID:  assignmentA,
		Type:          "JOIN",
		Message:       "  looking for a team  ",
		ContactHandle: "+20 100 000 0000",
	})
	require.NoError(t, err)

	assert.NotZero(t, req.ID)
	assert.Equal(t, model.TeamRequestOpen, req.Status)
	assert.Equal(t, model.TeamRequestJoin, req.Type)
	assert.Equal(t, alice.UserID, req.RequesterID)
	assert.Equal(t, "looking for a team", req.Message)
	assert.Equal(t, "+20 100 000 0000", req.ContactHandle)
	assert.Nil(t, req.MatchedRequestID)
	assert.Equal(t, req.ID, f.store.get(req.ID).ID)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.TeamRequestOpen, events[0].ToStatus)
	assert.Equal(t, alice.UserID, events[0].ActorID)
}

func TestTeamRequestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateTeamRequestInput
	}{
		{"lowercase type", CreateTeamRequestInput{AssignmentID: assignmentA, Type: "join"}},
		{"unknown type", CreateTeamRequestInput{AssignmentID: assignmentA, Type: "LEAVE"}},
		{"empty type", CreateTeamRequestInput{AssignmentID: assignmentA}},
		{"missing assignment", CreateTeamRequestInput{Type: "JOIN"}},
		{"long message", CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN", Message: strings.Repeat("x", 1001)}},
		{"long contact", CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN", ContactHandle: strings.Repeat("x", 101)}},
		{"zero team size", CreateTeamRequestInput{AssignmentID: assignmentA, Type: "RECRUIT", CurrentTeamSize: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngine(TeamRequestOptions{})
			_, err := f.svc.Create(context.Background(), alice, tt.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Empty(t, collect(t, f.svc.List(context.Background(), repository.TeamRequestFilter{})))
		})
	}
}

func TestTeamRequestService_Create_TeamSize(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	join, err := f.svc.Create(ctx, alice, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN", CurrentTeamSize: intPtr(3)})
	require.NoError(t, err)
	assert.Nil(t, join.CurrentTeamSize)

	recruit, err := f.svc.Create(ctx, bob, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "RECRUIT", CurrentTeamSize: intPtr(3)})
	require.NoError(t, err)
	require.NotNil(t, recruit.CurrentTeamSize)
	assert.Equal(t, 3, *recruit.CurrentTeamSize)
}

func TestTeamRequestService_Create_Assignment(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, alice, CreateTeamRequestInput{AssignmentID: 404, Type: "JOIN"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Create(ctx, outsider, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Create(ctx, assistant, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "RECRUIT"})
	assert.NoError(t, err)
}

func TestTeamRequestService_Create_Duplicate(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	first := f.create(t, alice, "JOIN")

	_, err := f.svc.Create(ctx, alice, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "RECRUIT"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)

	// other assignment and other user are unaffected
	_, err = f.svc.Create(ctx, alice, CreateTeamRequestInput{AssignmentID: 6, Type: "JOIN"})
	assert.NoError(t, err)
	f.create(t, bob, "JOIN")

	require.NoError(t, f.svc.Withdraw(ctx, alice, first.ID))

	again := f.create(t, alice, "JOIN")
	assert.NotEqual(t, first.ID, again.ID)
}

func TestTeamRequestService_Create_UniqueKeyBackstop(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	f.store.skipActiveLookup = true

	f.create(t, alice, "JOIN")
	_, err := f.svc.Create(context.Background(), alice, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assert.Len(t, collect(t, f.svc.List(context.Background(), repository.TeamRequestFilter{})), 1)
}

func TestTeamRequestService_Create_ConcurrentSingleWinner(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), alice, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrDuplicateRequest):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, dupes)
}

func TestTeamRequestService_NoMatchingByDefault(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	recruit := f.create(t, bob, "RECRUIT")
	join := f.create(t, alice, "JOIN")

	assert.Equal(t, model.TeamRequestOpen, join.Status)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(recruit.ID).Status)
}

func TestTeamRequestService_Match(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	join := f.create(t, alice, "JOIN")
	recruit := f.create(t, bob, "RECRUIT")

	got, err := f.svc.Match(ctx, alice, join.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamRequestMatched, got.Status)
	require.NotNil(t, got.MatchedRequestID)
	assert.Equal(t, recruit.ID, *got.MatchedRequestID)

	storedJoin, storedRecruit := f.store.get(join.ID), f.store.get(recruit.ID)
	assert.Equal(t, model.TeamRequestMatched, storedJoin.Status)
	assert.Equal(t, model.TeamRequestMatched, storedRecruit.Status)
	require.NotNil(t, storedRecruit.MatchedRequestID)
	assert.Equal(t, join.ID, *storedRecruit.MatchedRequestID)
	assert.Nil(t, storedJoin.ActiveKey)
	assert.Nil(t, storedRecruit.ActiveKey)
	assert.NotNil(t, storedJoin.ClosedAt)

	var matched []uint
	for _, e := range f.events.all() {
		if e.ToStatus == model.TeamRequestMatched {
			matched = append(matched, e.RequestID)
		}
	}
	assert.ElementsMatch(t, []uint{join.ID, recruit.ID}, matched)

	// both are terminal now
	_, err = f.svc.Match(ctx, bob, recruit.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyClosed)
}

func TestTeamRequestService_Match_NoCounterpart(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	join := f.create(t, alice, "JOIN")
	f.create(t, bob, "JOIN")

	got, err := f.svc.Match(context.Background(), alice, join.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamRequestOpen, got.Status)
	assert.Nil(t, got.MatchedRequestID)
}

func TestTeamRequestService_Match_SameUserExcluded(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	join := f.create(t, alice, "JOIN")
	// alice's own RECRUIT on the same assignment, inserted behind the engine's back
	own := f.store.put(model.TeamRequest{
		AssignmentID: assignmentA,
		RequesterID:  alice.UserID,
		Type:         model.TeamRequestRecruit,
		Status:       model.TeamRequestOpen,
		CreatedAt:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	got, err := f.svc.Match(context.Background(), alice, join.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TeamRequestOpen, got.Status)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(own.ID).Status)
}

func TestTeamRequestService_Match_FIFO(t *testing.T) {
	f := newEngine(TeamRequestOptions{})

	r1 := f.create(t, bob, "RECRUIT")
	r2 := f.create(t, carol, "RECRUIT")
	require.True(t, r1.CreatedAt.Before(r2.CreatedAt))

	join := f.create(t, alice, "JOIN")
	got, err := f.svc.Match(context.Background(), alice, join.ID)
	require.NoError(t, err)

	require.NotNil(t, got.MatchedRequestID)
	assert.Equal(t, r1.ID, *got.MatchedRequestID)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(r2.ID).Status)
}

func TestTeamRequestService_Match_Ownership(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	join := f.create(t, alice, "JOIN")
	f.create(t, bob, "RECRUIT")

	_, err := f.svc.Match(ctx, bob, join.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(join.ID).Status)

	_, err = f.svc.Match(ctx, alice, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPickCounterpart(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	join := &model.TeamRequest{ID: 10, AssignmentID: assignmentA, RequesterID: 1, Type: model.TeamRequestJoin, Status: model.TeamRequestOpen}

	candidates := []model.TeamRequest{
		{ID: 4, AssignmentID: assignmentA, RequesterID: 3, Type: model.TeamRequestRecruit, Status: model.TeamRequestOpen, CreatedAt: t0.Add(2 * time.Minute)},
		{ID: 3, AssignmentID: assignmentA, RequesterID: 2, Type: model.TeamRequestRecruit, Status: model.TeamRequestOpen, CreatedAt: t0.Add(time.Minute)},
		{ID: 2, AssignmentID: assignmentA, RequesterID: 4, Type: model.TeamRequestRecruit, Status: model.TeamRequestOpen, CreatedAt: t0.Add(time.Minute)},
		// ineligible, although older
		{ID: 1, AssignmentID: assignmentA, RequesterID: 1, Type: model.TeamRequestRecruit, Status: model.TeamRequestOpen, CreatedAt: t0},
		{ID: 5, AssignmentID: assignmentA, RequesterID: 5, Type: model.TeamRequestJoin, Status: model.TeamRequestOpen, CreatedAt: t0},
		{ID: 6, AssignmentID: 99, RequesterID: 6, Type: model.TeamRequestRecruit, Status: model.TeamRequestOpen, CreatedAt: t0},
		{ID: 7, AssignmentID: assignmentA, RequesterID: 7, Type: model.TeamRequestRecruit, Status: model.TeamRequestWithdrawn, CreatedAt: t0},
	}

	got, ok := pickCounterpart(join, candidates)
	require.True(t, ok)
	// earliest eligible createdAt, lower id on the tie
	assert.Equal(t, uint(2), got.ID)

	_, ok = pickCounterpart(join, candidates[3:])
	assert.False(t, ok)

	_, ok = pickCounterpart(join, nil)
	assert.False(t, ok)
}

func TestTeamRequestService_EagerMatching(t *testing.T) {
	f := newEngine(TeamRequestOptions{EagerMatching: true})

	first := f.create(t, bob, "RECRUIT")
	assert.Equal(t, model.TeamRequestOpen, first.Status)

	join := f.create(t, alice, "JOIN")
	assert.Equal(t, model.TeamRequestMatched, join.Status)
	require.NotNil(t, join.MatchedRequestID)
	assert.Equal(t, first.ID, *join.MatchedRequestID)

	// alice is free to post again once matched
	_, err := f.svc.Create(context.Background(), alice, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "RECRUIT"})
	assert.NoError(t, err)
}

func TestTeamRequestService_EagerMatching_AtMostOnce(t *testing.T) {
	f := newEngine(TeamRequestOptions{EagerMatching: true})
	recruit := f.create(t, carol, "RECRUIT")

	var wg sync.WaitGroup
	results := make([]*model.TeamRequest, 2)
	for i, who := range []auth.Identity{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := f.svc.Create(context.Background(), who, CreateTeamRequestInput{AssignmentID: assignmentA, Type: "JOIN"})
			assert.NoError(t, err)
			results[i] = req
		}()
	}
	wg.Wait()
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	var winner *model.TeamRequest
	for _, r := range results {
		if f.store.get(r.ID).Status == model.TeamRequestMatched {
			require.Nil(t, winner, "recruit matched twice")
			winner = r
		}
	}
	require.NotNil(t, winner)

	stored := f.store.get(recruit.ID)
	assert.Equal(t, model.TeamRequestMatched, stored.Status)
	require.NotNil(t, stored.MatchedRequestID)
	assert.Equal(t, winner.ID, *stored.MatchedRequestID)
}

func TestTeamRequestService_Withdraw(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	req := f.create(t, alice, "JOIN")

	assert.ErrorIs(t, f.svc.Withdraw(ctx, alice, 999), apperrors.ErrNotFound)

	assert.ErrorIs(t, f.svc.Withdraw(ctx, bob, req.ID), apperrors.ErrForbidden)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(req.ID).Status)

	require.NoError(t, f.svc.Withdraw(ctx, alice, req.ID))
	stored := f.store.get(req.ID)
	assert.Equal(t, model.TeamRequestWithdrawn, stored.Status)
	assert.Nil(t, stored.ActiveKey)

	assert.ErrorIs(t, f.svc.Withdraw(ctx, alice, req.ID), apperrors.ErrAlreadyClosed)
}

func TestTeamRequestService_Withdraw_Matched(t *testing.T) {
	f := newEngine(TeamRequestOptions{EagerMatching: true})

	recruit := f.create(t, bob, "RECRUIT")
	join := f.create(t, alice, "JOIN")
	require.Equal(t, model.TeamRequestMatched, join.Status)

	assert.ErrorIs(t, f.svc.Withdraw(context.Background(), alice, join.ID), apperrors.ErrAlreadyClosed)
	assert.Equal(t, model.TeamRequestMatched, f.store.get(recruit.ID).Status)
}

func TestTeamRequestService_List(t *testing.T) {
	f := newEngine(TeamRequestOptions{PageSize: 2})
	ctx := context.Background()

	a := f.create(t, alice, "JOIN")
	b := f.create(t, bob, "RECRUIT")
	c := f.create(t, carol, "JOIN")
	_, err := f.svc.Create(ctx, alice, CreateTeamRequestInput{AssignmentID: 6, Type: "JOIN"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Withdraw(ctx, bob, b.ID))

	all := collect(t, f.svc.List(ctx, repository.TeamRequestFilter{}))
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	assignment := assignmentA
	onA := collect(t, f.svc.List(ctx, repository.TeamRequestFilter{AssignmentID: &assignment}))
	assert.Equal(t, []uint{a.ID, b.ID, c.ID}, ids(onA))

	open := model.TeamRequestOpen
	openOnA := collect(t, f.svc.List(ctx, repository.TeamRequestFilter{AssignmentID: &assignment, Status: &open}))
	assert.Equal(t, []uint{a.ID, c.ID}, ids(openOnA))

	mine := alice.UserID
	assert.Len(t, collect(t, f.svc.List(ctx, repository.TeamRequestFilter{RequesterID: &mine})), 2)
}

func TestTeamRequestService_List_LazyAndRestartable(t *testing.T) {
	f := newEngine(TeamRequestOptions{PageSize: 2})
	ctx := context.Background()

	for _, who := range []auth.Identity{alice, bob, carol} {
		f.create(t, who, "JOIN")
	}

	seq := f.svc.List(ctx, repository.TeamRequestFilter{})
	assert.Zero(t, f.store.pageCalls, "nothing is queried before ranging")

	for range seq {
		break
	}
	assert.Equal(t, 1, f.store.pageCalls)

	assert.Len(t, collect(t, seq), 3)

	// ranging again observes new rows
	f.create(t, assistant, "RECRUIT")
	assert.Len(t, collect(t, seq), 4)
}

func TestTeamRequestService_List_Error(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	f.store.listErr = errors.New("connection reset")

	var got error
	for _, err := range f.svc.List(context.Background(), repository.TeamRequestFilter{}) {
		got = err
	}
	assert.ErrorContains(t, got, "connection reset")
}

func TestTeamRequestService_ExpireStale(t *testing.T) {
	ctx := context.Background()

	disabled := newEngine(TeamRequestOptions{})
	disabled.create(t, alice, "JOIN")
	n, err := disabled.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f := newEngine(TeamRequestOptions{RequestTTL: time.Hour, PageSize: 1})
	old := f.clock.now.Add(-2 * time.Hour)
	stale1 := f.store.put(model.TeamRequest{AssignmentID: assignmentA, RequesterID: 1, Type: model.TeamRequestJoin, Status: model.TeamRequestOpen, CreatedAt: old})
	stale2 := f.store.put(model.TeamRequest{AssignmentID: 6, RequesterID: 1, Type: model.TeamRequestJoin, Status: model.TeamRequestOpen, CreatedAt: old})
	closed := f.store.put(model.TeamRequest{AssignmentID: assignmentA, RequesterID: 2, Type: model.TeamRequestJoin, Status: model.TeamRequestWithdrawn, CreatedAt: old})
	fresh := f.create(t, carol, "RECRUIT")

	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, model.TeamRequestExpired, f.store.get(stale1.ID).Status)
	assert.Equal(t, model.TeamRequestExpired, f.store.get(stale2.ID).Status)
	assert.Equal(t, model.TeamRequestWithdrawn, f.store.get(closed.ID).Status)
	assert.Equal(t, model.TeamRequestOpen, f.store.get(fresh.ID).Status)

	for _, e := range f.events.all() {
		if e.ToStatus == model.TeamRequestExpired {
			assert.Zero(t, e.ActorID)
		}
	}

	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTeamRequestService_Events(t *testing.T) {
	f := newEngine(TeamRequestOptions{})
	ctx := context.Background()

	req := f.create(t, alice, "JOIN")
	require.NoError(t, f.svc.Withdraw(ctx, alice, req.ID))

	events, err := f.svc.Events(ctx, alice, req.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.TeamRequestWithdrawn, events[1].ToStatus)

	_, err = f.svc.Events(ctx, bob, req.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Events(ctx, assistant, req.ID)
	assert.NoError(t, err)

	_, err = f.svc.Events(ctx, alice, 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func ids(reqs []model.TeamRequest) []uint {
	out := make([]uint, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}
