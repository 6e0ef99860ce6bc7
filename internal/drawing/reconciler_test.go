package drawing

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charting-systemv1/internal/model"
)

type fakeLocal struct {
	mu   sync.Mutex
	data map[string][]model.Drawing
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{data: make(map[string][]model.Drawing)}
}

func (f *fakeLocal) Load(_ context.Context, symbol string) ([]model.Drawing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Drawing(nil), f.data[symbol]...), nil
}

func (f *fakeLocal) Save(_ context.Context, symbol string, drawings []model.Drawing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[symbol] = append([]model.Drawing(nil), drawings...)
	return nil
}

type fakeRemote struct {
	mu      sync.Mutex
	data    map[string][]model.Drawing
	nextID  int
	calls   int
	failAll bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string][]model.Drawing)}
}

func (f *fakeRemote) List(_ context.Context, symbol string) ([]model.Drawing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, errors.New("remote unavailable")
	}
	return append([]model.Drawing(nil), f.data[symbol]...), nil
}

func (f *fakeRemote) Create(_ context.Context, symbol string, d model.Drawing) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return "", errors.New("remote unavailable")
	}
	f.nextID++
	d.RemoteID = "srv-" + strconv.Itoa(f.nextID)
	f.data[symbol] = append(f.data[symbol], d)
	return d.RemoteID, nil
}

func (f *fakeRemote) Delete(_ context.Context, symbol, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return errors.New("remote unavailable")
	}
	kept := f.data[symbol][:0]
	for _, d := range f.data[symbol] {
		if d.RemoteID != remoteID {
			kept = append(kept, d)
		}
	}
	f.data[symbol] = kept
	return nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestReconciler(local *fakeLocal, remote RemoteStore) *Reconciler {
	return NewReconciler(Config{
		Symbol:    "SBIN",
		Local:     local,
		Remote:    remote,
		SyncDelay: 10 * time.Millisecond,
	})
}

func TestReconciler_RemoteWinsWhenNonEmpty(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	local.data["SBIN"] = []model.Drawing{{ID: "stale", Type: model.DrawingHLine, Price: 1}}
	remote := newFakeRemote()
	remote.data["SBIN"] = []model.Drawing{{ID: "r1", RemoteID: "r1", Type: model.DrawingHLine, Price: 450}}

	r := newTestReconciler(local, remote)
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	got := r.Drawings()
	require.Len(t, got, 1)
	assert.Equal(t, 450.0, got[0].Price)

	// Adopted remote state also lands in the local cache.
	cached, _ := local.Load(ctx, "SBIN")
	require.Len(t, cached, 1)
	assert.Equal(t, 450.0, cached[0].Price)
}

func TestReconciler_EmptyRemoteFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	local.data["SBIN"] = []model.Drawing{{ID: "d1", Type: model.DrawingHLine, Price: 500}}

	r := newTestReconciler(local, newFakeRemote())
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	got := r.Drawings()
	require.Len(t, got, 1)
	assert.Equal(t, 500.0, got[0].Price)
	assert.True(t, r.RemoteAvailable())
}

func TestReconciler_RemoteFailureDegradesForSession(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	remote := newFakeRemote()
	remote.failAll = true

	r := newTestReconciler(local, remote)
	defer r.Close()
	require.NoError(t, r.Load(ctx))
	assert.False(t, r.RemoteAvailable())
	callsAfterLoad := remote.callCount()

	_, err := r.AddTrendline(ctx,
		model.DrawingPoint{Time: 100, Price: 10},
		model.DrawingPoint{Time: 200, Price: 20},
	)
	require.NoError(t, err)

	// The mutation is retrievable locally.
	cached, _ := local.Load(ctx, "SBIN")
	require.Len(t, cached, 1)
	assert.Equal(t, model.DrawingTrendline, cached[0].Type)

	// No remote call happens after the failed load.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAfterLoad, remote.callCount())
}

func TestReconciler_DebouncedPushReplacesRemote(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	remote := newFakeRemote()
	remote.data["SBIN"] = []model.Drawing{{ID: "old", RemoteID: "old", Type: model.DrawingHLine, Price: 1}}

	r := newTestReconciler(local, remote)
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	_, err := r.AddHorizontalLine(ctx, 777)
	require.NoError(t, err)
	_, err = r.AddHorizontalLine(ctx, 888)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return len(remote.data["SBIN"]) == 3
	}, time.Second, 5*time.Millisecond, "debounced push never landed")

	// Every pushed drawing gets a fresh server id.
	for _, d := range r.Drawings() {
		assert.NotEmpty(t, d.RemoteID)
	}
}

func TestReconciler_PushFailureDisablesFurtherSync(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	remote := newFakeRemote()

	r := newTestReconciler(local, remote)
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	remote.mu.Lock()
	remote.failAll = true
	remote.mu.Unlock()

	_, err := r.AddHorizontalLine(ctx, 100)
	require.NoError(t, err, "optimistic local write survives a doomed remote")

	require.Eventually(t, func() bool { return !r.RemoteAvailable() },
		time.Second, 5*time.Millisecond)
	callsAfterFailure := remote.callCount()

	_, err = r.AddHorizontalLine(ctx, 200)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAfterFailure, remote.callCount(), "degraded session must not retry")

	cached, _ := local.Load(ctx, "SBIN")
	assert.Len(t, cached, 2)
}

func TestReconciler_DegenerateTrendlineDropped(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()

	r := newTestReconciler(local, nil)
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	_, err := r.AddTrendline(ctx,
		model.DrawingPoint{Time: 100, Price: 10},
		model.DrawingPoint{Time: 100, Price: 20},
	)
	assert.ErrorIs(t, err, ErrDegenerate)
	assert.Empty(t, r.Drawings())
	cached, _ := local.Load(ctx, "SBIN")
	assert.Empty(t, cached)
}

func TestReconciler_ClearAll(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	remote := newFakeRemote()

	r := newTestReconciler(local, remote)
	defer r.Close()
	require.NoError(t, r.Load(ctx))

	_, err := r.AddHorizontalLine(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, r.SyncNow(ctx))
	remote.mu.Lock()
	require.Len(t, remote.data["SBIN"], 1)
	remote.mu.Unlock()

	require.NoError(t, r.ClearAll(ctx))
	require.NoError(t, r.SyncNow(ctx))

	assert.Empty(t, r.Drawings())
	cached, _ := local.Load(ctx, "SBIN")
	assert.Empty(t, cached)
	remote.mu.Lock()
	assert.Empty(t, remote.data["SBIN"])
	remote.mu.Unlock()
}

func TestReconciler_RemoteFailureReportsOnce(t *testing.T) {
	ctx := context.Background()
	local := newFakeLocal()
	remote := newFakeRemote()

	var failures atomic.Int64
	r := NewReconciler(Config{
		Symbol:          "SBIN",
		Local:           local,
		Remote:          remote,
		SyncDelay:       10 * time.Millisecond,
		OnRemoteFailure: func() { failures.Add(1) },
	})
	defer r.Close()
	require.NoError(t, r.Load(ctx))
	assert.Zero(t, failures.Load())

	remote.mu.Lock()
	remote.failAll = true
	remote.mu.Unlock()

	_, err := r.AddHorizontalLine(ctx, 100)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return failures.Load() == 1 },
		time.Second, 5*time.Millisecond)

	// Later mutations never reach the degraded remote, so the count holds.
	_, err = r.AddHorizontalLine(ctx, 200)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), failures.Load())
}
