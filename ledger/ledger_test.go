package ledger

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/codec"
)

var fixedNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Now:          func() time.Time { return fixedNow },
		CurveWindows: []int{3, 6, 12},
	}
}

func ride(id string, date time.Time, km, seconds, gain float64) Activity {
	return Activity{
		ID:            id,
		OwnerID:       7,
		Type:          "ride",
		Date:          date,
		Distance:      km,
		ActiveTime:    seconds,
		ElevationGain: gain,
	}
}

func withPower(a Activity, work int64, peak int) Activity {
	a.TotalWork = &work
	a.MaxPower = &peak
	return a
}

func saveAll(t *testing.T, store Store, activities ...Activity) {
	t.Helper()
	for _, a := range activities {
		err := store.WithUserTx(context.Background(), a.OwnerID, func(ctx context.Context, tx Tx) error {
			return tx.SaveActivity(ctx, a)
		})
		if err != nil {
			t.Fatalf("save %s: %v", a.ID, err)
		}
	}
}

func TestAddDeleteReAddLeavesBucketUnchanged(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), testConfig())
	a := ride("a1", time.Date(2025, 4, 2, 7, 0, 0, 0, time.UTC), 20, 1800, 150)

	if err := l.Add(ctx, a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	allTime := PeriodKey{Type: PeriodAll, ID: AllTimeID}
	before, err := l.Bucket(ctx, 7, allTime)
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if before.MaxSpeed != 20.0/1800.0 || before.ActivityCount != 1 || before.ElapsedTime != 1800 {
		t.Fatalf("unexpected bucket after add: %+v", before)
	}

	if err := l.Delete(ctx, a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := l.Add(ctx, a); err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	after, err := l.Bucket(ctx, 7, allTime)
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("bucket changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestDeleteLeavesMaxStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store, testConfig())
	day := time.Date(2025, 4, 2, 7, 0, 0, 0, time.UTC)
	long := withPower(ride("long", day, 120, 14400, 2100), 2900, 950)
	short := withPower(ride("short", day.Add(24*time.Hour), 30, 3600, 300), 700, 400)

	for _, a := range []Activity{long, short} {
		if err := l.Add(ctx, a); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := l.Delete(ctx, long); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	b, err := l.Bucket(ctx, 7, PeriodKey{Type: PeriodYear, ID: "2025"})
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if b.ActivityCount != 1 || b.Distance != 30 || b.TotalWork != 700 {
		t.Fatalf("sums not decremented: %+v", b)
	}
	if b.MaxDistance != 120 || b.MaxPower != 950 {
		t.Fatalf("expected stale maxima to survive delete: %+v", b)
	}

	// Rebuild from the table clears the stale maxima.
	saveAll(t, store, short)
	if _, err := l.Rebuild(ctx, 7); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	b, _ = l.Bucket(ctx, 7, PeriodKey{Type: PeriodYear, ID: "2025"})
	if b.MaxDistance != 30 || b.MaxPower != 400 {
		t.Fatalf("rebuild kept stale maxima: %+v", b)
	}
}

func TestDeleteWithoutBucketIsNoop(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), testConfig())
	if err := l.Delete(ctx, ride("ghost", fixedNow, 10, 600, 0)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	buckets, err := l.Buckets(ctx, 7)
	if err != nil {
		t.Fatalf("Buckets: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("expected no buckets, got %+v", buckets)
	}
}

func TestRebuildMatchesIncrementalAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store, testConfig())

	jan := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)
	a := withPower(ride("a", jan, 42.5, 5400, 610), 1400, 780)
	b := withPower(ride("b", jan.Add(48*time.Hour), 18, 2400, 90), 520, 610)
	c := withPower(ride("c", jan.AddDate(0, 2, 0), 95, 12000, 1800), 3100, 1020)
	d := ride("d", jan.AddDate(0, 3, 1), 12, 1500, 40)

	// Incremental history that ends with the same table as saved below.
	for _, act := range []Activity{a, b, c, d} {
		if err := l.Add(ctx, act); err != nil {
			t.Fatalf("Add %s: %v", act.ID, err)
		}
	}
	if err := l.Delete(ctx, d); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	incremental, _ := l.Buckets(ctx, 7)

	saveAll(t, store, a, b, c)
	report, err := l.Rebuild(ctx, 7)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Activities != 3 || report.Backfilled != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	first, _ := l.Buckets(ctx, 7)

	// d's April buckets linger at zero in the incremental history only.
	var live []Bucket
	for _, bk := range incremental {
		if bk.ActivityCount > 0 {
			live = append(live, bk)
		}
	}
	if len(live) != len(first) {
		t.Fatalf("incremental has %d live buckets, rebuild %d", len(live), len(first))
	}
	for i := range first {
		if !sameSums(live[i], first[i]) {
			t.Fatalf("bucket %s differs:\nincremental %+v\nrebuild     %+v", first[i].Key, live[i], first[i])
		}
	}

	if _, err := l.Rebuild(ctx, 7); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	second, _ := l.Buckets(ctx, 7)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuild is not idempotent")
	}
}

func sameSums(a, b Bucket) bool {
	near := func(x, y float64) bool { return math.Abs(x-y) < 1e-9 }
	return a.Key == b.Key &&
		a.ActivityCount == b.ActivityCount &&
		a.TotalWork == b.TotalWork &&
		near(a.Distance, b.Distance) &&
		near(a.MovingTime, b.MovingTime) &&
		near(a.ElapsedTime, b.ElapsedTime) &&
		near(a.ElevationGain, b.ElevationGain)
}

func TestRebuildBackfillsPowerAndSkipsCorruptBlobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store, testConfig())

	start := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	samples := make(ridestats.Samples, 3601)
	for i := range samples {
		samples[i] = ridestats.Sample{Timestamp: start.Add(time.Duration(i) * time.Second), Power: ridestats.IntPtr(100)}
	}
	samples[1800].Power = ridestats.IntPtr(640)
	blob, err := codec.EncodeSamples(samples)
	if err != nil {
		t.Fatalf("EncodeSamples: %v", err)
	}

	good := ride("good", start, 30, 3600, 200)
	good.Data = blob
	bad := ride("bad", start.Add(time.Hour*24), 10, 1200, 50)
	bad.Data = []byte("not a parquet file")
	bare := ride("bare", start.Add(time.Hour*48), 5, 600, 0)
	saveAll(t, store, good, bad, bare)

	curveBefore := ridestats.CurveSet{"all": {{Duration: 1, Watts: 1234}}}
	err = store.WithUserTx(ctx, 7, func(ctx context.Context, tx Tx) error {
		return tx.PutCurves(ctx, 7, curveBefore)
	})
	if err != nil {
		t.Fatalf("PutCurves: %v", err)
	}

	report, err := l.Rebuild(ctx, 7)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Activities != 3 || report.Backfilled != 1 || report.BackfillFailed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	var saved Activity
	_ = store.WithUserTx(ctx, 7, func(ctx context.Context, tx Tx) error {
		saved, err = tx.Activity(ctx, 7, "good")
		return err
	})
	// 3599 s at 100 W plus one second at 640 W.
	if saved.TotalWork == nil || *saved.TotalWork != 360 || saved.MaxPower == nil || *saved.MaxPower != 640 {
		t.Fatalf("backfill not persisted: work=%v max=%v", saved.TotalWork, saved.MaxPower)
	}

	all, _ := l.Bucket(ctx, 7, PeriodKey{Type: PeriodAll, ID: AllTimeID})
	if all.ActivityCount != 3 || all.TotalWork != 360 || all.MaxPower != 640 {
		t.Fatalf("unexpected all-time bucket %+v", all)
	}

	curves, err := NewCurveBook(store, testConfig()).Curves(ctx, 7)
	if err != nil {
		t.Fatalf("Curves: %v", err)
	}
	if !reflect.DeepEqual(curves, curveBefore) {
		t.Fatalf("rebuild touched curves: %+v", curves)
	}
}

func TestRebuildBackfillsOnlyMissingFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store, testConfig())

	start := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	samples := ridestats.Samples{
		{Timestamp: start, Power: ridestats.IntPtr(200)},
		{Timestamp: start.Add(time.Second), Power: ridestats.IntPtr(200)},
	}
	blob, err := codec.EncodeSamples(samples)
	if err != nil {
		t.Fatalf("EncodeSamples: %v", err)
	}

	partial := ride("partial", start, 30, 3600, 200)
	work := int64(999)
	partial.TotalWork = &work
	partial.Data = blob
	route := ride("route", start.Add(24*time.Hour), 12, 0, 40)
	route.Type = ActivityTypeRoute
	route.Data = []byte("not a parquet file")
	saveAll(t, store, partial, route)

	report, err := l.Rebuild(ctx, 7)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Backfilled != 1 || report.BackfillFailed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	var saved Activity
	_ = store.WithUserTx(ctx, 7, func(ctx context.Context, tx Tx) error {
		saved, err = tx.Activity(ctx, 7, "partial")
		return err
	})
	if saved.TotalWork == nil || *saved.TotalWork != 999 {
		t.Fatalf("stored TotalWork was overwritten: %v", saved.TotalWork)
	}
	if saved.MaxPower == nil || *saved.MaxPower != 200 {
		t.Fatalf("MaxPower not backfilled: %v", saved.MaxPower)
	}
	all, _ := l.Bucket(ctx, 7, PeriodKey{Type: PeriodAll, ID: AllTimeID})
	if all.TotalWork != 999 || all.MaxPower != 200 {
		t.Fatalf("unexpected all-time bucket %+v", all)
	}
}

type failingTx struct {
	Tx
	puts, failAfter int
}

func (f *failingTx) PutBucket(ctx context.Context, b Bucket) error {
	f.puts++
	if f.puts > f.failAfter {
		return errors.New("disk full")
	}
	return f.Tx.PutBucket(ctx, b)
}

type failingStore struct {
	*MemoryStore
	failAfter int
}

func (s failingStore) WithUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx Tx) error) error {
	return s.MemoryStore.WithUserTx(ctx, userID, func(ctx context.Context, tx Tx) error {
		return fn(ctx, &failingTx{Tx: tx, failAfter: s.failAfter})
	})
}

func TestRebuildFailureKeepsPriorBuckets(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	l := New(mem, testConfig())
	first := ride("one", time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC), 25, 3000, 100)
	if err := l.Add(ctx, first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	saveAll(t, mem, first, ride("two", time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC), 40, 4000, 300))
	before, _ := l.Buckets(ctx, 7)

	broken := New(failingStore{MemoryStore: mem, failAfter: 2}, testConfig())
	if _, err := broken.Rebuild(ctx, 7); err == nil {
		t.Fatalf("expected rebuild to fail")
	}
	after, _ := l.Buckets(ctx, 7)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("failed rebuild changed buckets:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestBucketQueries(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), testConfig())

	empty, err := l.Bucket(ctx, 7, PeriodKey{Type: PeriodMonth, ID: "2019-07"})
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if empty.ActivityCount != 0 || empty.Key.ID != "2019-07" || empty.UserID != 7 {
		t.Fatalf("expected zero bucket, got %+v", empty)
	}
	if _, err := l.Bucket(ctx, 7, PeriodKey{Type: "DECADE", ID: "2020s"}); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	if err := l.Add(ctx, ride("a", time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), 10, 1000, 10)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	years, err := l.Buckets(ctx, 7, PeriodYear, PeriodAll)
	if err != nil {
		t.Fatalf("Buckets: %v", err)
	}
	if len(years) != 2 || years[0].Key.Type != PeriodAll || years[1].Key.ID != "2025" {
		t.Fatalf("unexpected buckets %+v", years)
	}
}

func TestSummarizeRangeExcludesRoutes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store, testConfig())

	route := ride("r", time.Date(2025, 5, 10, 6, 0, 0, 0, time.UTC), 80, 0, 900)
	route.Type = ActivityTypeRoute
	saveAll(t, store,
		withPower(ride("a", time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC), 30, 3600, 400), 800, 500),
		ride("b", time.Date(2025, 5, 20, 6, 0, 0, 0, time.UTC), 50, 5000, 100),
		ride("c", time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC), 10, 1000, 10),
		route,
	)

	from := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	got, err := l.SummarizeRange(ctx, 7, &from, &to)
	if err != nil {
		t.Fatalf("SummarizeRange: %v", err)
	}
	if got.ActivityCount != 2 || got.Distance != 80 || got.TotalWork != 800 || got.MaxElevationGain != 400 {
		t.Fatalf("unexpected range summary %+v", got)
	}
	if got.MaxSpeed != 0.01 {
		t.Fatalf("unexpected max speed %v", got.MaxSpeed)
	}

	all, _ := l.SummarizeRange(ctx, 7, nil, nil)
	if all.ActivityCount != 3 {
		t.Fatalf("expected 3 recorded activities, got %d", all.ActivityCount)
	}
}

func TestWeeklyVolume(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), testConfig())
	for i, day := range []time.Time{
		time.Date(2025, 1, 8, 6, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 5, 6, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 6, 6, 0, 0, 0, time.UTC),
	} {
		if err := l.Add(ctx, ride(string(rune('a'+i)), day, 20, 3600, 100)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	weeks, err := l.WeeklyVolume(ctx, 7, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WeeklyVolume: %v", err)
	}
	if len(weeks) != 1 || weeks[0].Bucket.Key.ID != "2025-W10" || weeks[0].Bucket.ActivityCount != 2 {
		t.Fatalf("unexpected weeks %+v", weeks)
	}
	if want := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC); !weeks[0].WeekStart.Equal(want) {
		t.Fatalf("unexpected week start %s", weeks[0].WeekStart)
	}

	all, _ := l.WeeklyVolume(ctx, 7, time.Time{})
	if len(all) != 2 || all[0].Bucket.Key.ID != "2025-W02" {
		t.Fatalf("unexpected full history %+v", all)
	}
}
