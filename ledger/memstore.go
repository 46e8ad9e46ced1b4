package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lucasjlepore/ridestats"
)

// MemoryStore is an in-process Store. Each user transaction works on a copy
// of the user's state that replaces the original only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]*memUser
}

type memUser struct {
	lock  sync.Mutex
	state memState
}

type memState struct {
	buckets    map[PeriodKey]Bucket
	activities map[string]Activity
	curves     ridestats.CurveSet
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*memUser)}
}

func (s *MemoryStore) user(id int64) *memUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = &memUser{state: memState{
			buckets:    make(map[PeriodKey]Bucket),
			activities: make(map[string]Activity),
			curves:     ridestats.CurveSet{},
		}}
		s.users[id] = u
	}
	return u
}

func (s *MemoryStore) WithUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := s.user(userID)
	u.lock.Lock()
	defer u.lock.Unlock()

	work := u.state.clone()
	if err := fn(ctx, &memTx{state: &work}); err != nil {
		return err
	}
	u.state = work
	return nil
}

// UserIDs lists users holding activities, buckets or curves.
func (s *MemoryStore) UserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	users := make(map[int64]*memUser, len(s.users))
	for id, u := range s.users {
		users[id] = u
	}
	s.mu.Unlock()

	var ids []int64
	for id, u := range users {
		u.lock.Lock()
		n := len(u.state.activities) + len(u.state.buckets) + len(u.state.curves)
		u.lock.Unlock()
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (st memState) clone() memState {
	out := memState{
		buckets:    make(map[PeriodKey]Bucket, len(st.buckets)),
		activities: make(map[string]Activity, len(st.activities)),
		curves:     make(ridestats.CurveSet, len(st.curves)),
	}
	for k, v := range st.buckets {
		out.buckets[k] = v
	}
	for k, v := range st.activities {
		out.activities[k] = v
	}
	for k, v := range st.curves {
		out.curves[k] = append(ridestats.PowerCurve(nil), v...)
	}
	return out
}

type memTx struct {
	state *memState
}

func (t *memTx) Bucket(_ context.Context, _ int64, key PeriodKey) (Bucket, bool, error) {
	b, ok := t.state.buckets[key]
	return b, ok, nil
}

func (t *memTx) Buckets(_ context.Context, _ int64) ([]Bucket, error) {
	out := make([]Bucket, 0, len(t.state.buckets))
	for _, b := range t.state.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	return out, nil
}

func (t *memTx) PutBucket(_ context.Context, b Bucket) error {
	t.state.buckets[b.Key] = b
	return nil
}

func (t *memTx) DeleteBuckets(_ context.Context, _ int64) error {
	t.state.buckets = make(map[PeriodKey]Bucket)
	return nil
}

func (t *memTx) Activities(_ context.Context, _ int64) ([]Activity, error) {
	out := make([]Activity, 0, len(t.state.activities))
	for _, a := range t.state.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) Activity(_ context.Context, _ int64, activityID string) (Activity, error) {
	a, ok := t.state.activities[activityID]
	if !ok {
		return Activity{}, fmt.Errorf("activity %s: %w", activityID, ErrNotFound)
	}
	return a, nil
}

func (t *memTx) SaveActivity(_ context.Context, a Activity) error {
	t.state.activities[a.ID] = a
	return nil
}

func (t *memTx) DeleteActivity(_ context.Context, _ int64, activityID string) error {
	if _, ok := t.state.activities[activityID]; !ok {
		return fmt.Errorf("activity %s: %w", activityID, ErrNotFound)
	}
	delete(t.state.activities, activityID)
	return nil
}

func (t *memTx) Curves(_ context.Context, _ int64) (ridestats.CurveSet, error) {
	out := make(ridestats.CurveSet, len(t.state.curves))
	for k, v := range t.state.curves {
		out[k] = v
	}
	return out, nil
}

func (t *memTx) PutCurves(_ context.Context, _ int64, set ridestats.CurveSet) error {
	t.state.curves = make(ridestats.CurveSet, len(set))
	for k, v := range set {
		t.state.curves[k] = append(ridestats.PowerCurve(nil), v...)
	}
	return nil
}
