package drawing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"charting-systemv1/internal/model"
)

const defaultSyncDelay = 500 * time.Millisecond

// ErrDegenerate is returned when a mutation would create a drawing with no
// usable geometry. The cache is left untouched.
var ErrDegenerate = errors.New("drawing: degenerate geometry")

// Config configures a Reconciler for one symbol.
type Config struct {
	Symbol string
	Local  LocalStore
	Remote RemoteStore // nil disables remote sync entirely

	// SyncDelay is the debounce quiet period before a push. Zero means the
	// default of 500ms.
	SyncDelay time.Duration

	// OnRemoteFailure is called once per failed remote call, as the session
	// degrades to local-only.
	OnRemoteFailure func()

	Log *slog.Logger
}

// Reconciler holds the in-memory drawing cache for one symbol. Mutations are
// applied optimistically and persisted to the local store synchronously; a
// debounced background push replaces the remote state with the full cache.
// The first failed remote call disables remote sync for the rest of the
// session, after which the reconciler is local only.
type Reconciler struct {
	symbol    string
	local     LocalStore
	remote    RemoteStore
	log       *slog.Logger
	deb       *Debouncer
	onFailure func()

	mu         sync.Mutex
	cache      []model.Drawing
	remoteDown bool
}

// NewReconciler creates a Reconciler. Call Load before mutating.
func NewReconciler(cfg Config) *Reconciler {
	if cfg.SyncDelay <= 0 {
		cfg.SyncDelay = defaultSyncDelay
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Reconciler{
		symbol:    cfg.Symbol,
		local:     cfg.Local,
		remote:    cfg.Remote,
		log:       cfg.Log,
		deb:       NewDebouncer(cfg.SyncDelay),
		onFailure: cfg.OnRemoteFailure,
	}
}

// Load populates the cache. A non-empty remote list wins; a failed or empty
// remote load falls back to the local store. A failed remote load also
// disables remote sync for the session.
func (r *Reconciler) Load(ctx context.Context) error {
	if r.remote != nil {
		remote, err := r.remote.List(ctx, r.symbol)
		if err != nil {
			r.log.Warn("remote drawing load failed, local only for this session",
				"symbol", r.symbol, "err", err)
			r.mu.Lock()
			r.remoteDown = true
			r.mu.Unlock()
			if r.onFailure != nil {
				r.onFailure()
			}
		} else if len(remote) > 0 {
			r.mu.Lock()
			r.cache = remote
			r.mu.Unlock()
			if err := r.local.Save(ctx, r.symbol, remote); err != nil {
				r.log.Warn("local drawing save failed", "symbol", r.symbol, "err", err)
			}
			return nil
		}
	}

	local, err := r.local.Load(ctx, r.symbol)
	if err != nil {
		return errors.Wrap(err, "load local drawings")
	}
	r.mu.Lock()
	r.cache = local
	r.mu.Unlock()
	return nil
}

// AddTrendline appends a trendline anchored at p1 and p2.
func (r *Reconciler) AddTrendline(ctx context.Context, p1, p2 model.DrawingPoint) (model.Drawing, error) {
	d := model.Drawing{
		ID:   uuid.NewString(),
		Type: model.DrawingTrendline,
		P1:   &p1,
		P2:   &p2,
	}
	if d.Degenerate() {
		return model.Drawing{}, ErrDegenerate
	}
	return d, r.apply(ctx, func(cache []model.Drawing) []model.Drawing {
		return append(cache, d)
	})
}

// AddHorizontalLine appends a horizontal line at the given price.
func (r *Reconciler) AddHorizontalLine(ctx context.Context, price float64) (model.Drawing, error) {
	d := model.Drawing{
		ID:    uuid.NewString(),
		Type:  model.DrawingHLine,
		Price: price,
	}
	return d, r.apply(ctx, func(cache []model.Drawing) []model.Drawing {
		return append(cache, d)
	})
}

// ClearAll removes every drawing for the symbol.
func (r *Reconciler) ClearAll(ctx context.Context) error {
	return r.apply(ctx, func([]model.Drawing) []model.Drawing {
		return nil
	})
}

// Drawings returns a snapshot of the cache.
func (r *Reconciler) Drawings() []model.Drawing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Drawing(nil), r.cache...)
}

// RemoteAvailable reports whether remote sync is still live this session.
func (r *Reconciler) RemoteAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote != nil && !r.remoteDown
}

// SyncNow cancels any pending debounced push and pushes immediately. Used on
// shutdown so the last burst of mutations is not lost to the quiet period.
func (r *Reconciler) SyncNow(ctx context.Context) error {
	r.deb.Stop()
	return r.push(ctx)
}

// Close cancels any pending push without running it.
func (r *Reconciler) Close() {
	r.deb.Stop()
}

// apply runs a cache mutation, persists locally right away and schedules the
// debounced remote push.
func (r *Reconciler) apply(ctx context.Context, mutate func([]model.Drawing) []model.Drawing) error {
	r.mu.Lock()
	r.cache = mutate(r.cache)
	snapshot := append([]model.Drawing(nil), r.cache...)
	r.mu.Unlock()

	if err := r.local.Save(ctx, r.symbol, snapshot); err != nil {
		return errors.Wrap(err, "save local drawings")
	}

	r.deb.Trigger(func() {
		if err := r.push(context.Background()); err != nil {
			r.log.Warn("remote drawing sync failed, local only for this session",
				"symbol", r.symbol, "err", err)
		}
	})
	return nil
}

// push replaces the remote state with the full cache: delete everything the
// server has, then recreate from the snapshot. Any failure disables remote
// sync for the rest of the session.
func (r *Reconciler) push(ctx context.Context) error {
	r.mu.Lock()
	if r.remote == nil || r.remoteDown {
		r.mu.Unlock()
		return nil
	}
	snapshot := append([]model.Drawing(nil), r.cache...)
	r.mu.Unlock()

	degrade := func(err error) error {
		r.mu.Lock()
		r.remoteDown = true
		r.mu.Unlock()
		if r.onFailure != nil {
			r.onFailure()
		}
		return err
	}

	existing, err := r.remote.List(ctx, r.symbol)
	if err != nil {
		return degrade(errors.Wrap(err, "list remote drawings"))
	}
	for _, d := range existing {
		if err := r.remote.Delete(ctx, r.symbol, d.RemoteID); err != nil {
			return degrade(errors.Wrap(err, "delete remote drawing"))
		}
	}

	remoteIDs := make(map[string]string, len(snapshot))
	for _, d := range snapshot {
		remoteID, err := r.remote.Create(ctx, r.symbol, d)
		if err != nil {
			return degrade(errors.Wrap(err, "create remote drawing"))
		}
		remoteIDs[d.ID] = remoteID
	}

	// Remote identity churns on every cycle; record the latest assignment.
	r.mu.Lock()
	for i := range r.cache {
		if id, ok := remoteIDs[r.cache[i].ID]; ok {
			r.cache[i].RemoteID = id
		}
	}
	r.mu.Unlock()
	return nil
}
