package hybrid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/i474232898/weather-diary-sync/internal/diary/local"
	"github.com/i474232898/weather-diary-sync/internal/state"
	"github.com/sirupsen/logrus"
)

// Mode selects which stores serve reads and writes.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeCloud  Mode = "cloud"
	ModeHybrid Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, ModeCloud, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown storage mode %q", s)
}

const (
	readCacheTTL     = 30 * time.Second
	syncCooldown     = 30 * time.Second
	recentSyncWindow = 24 * time.Hour
	autoResyncEvery  = 10 * time.Minute
	reconnectDelay   = 30 * time.Second
)

var (
	ErrSyncInProgress  = errors.New("hybrid: sync already in progress")
	ErrRemoteOffline   = errors.New("hybrid: remote store unavailable")
	ErrSyncCooldown    = errors.New("hybrid: sync cooldown active")
	ErrModeNeedsRemote = errors.New("hybrid: mode requires remote availability")
)

// Remote is the part of the diary service the engine depends on.
type Remote interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]diary.Entry, error)
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context, e diary.Entry) error
	Update(ctx context.Context, e diary.Entry) error
	Delete(ctx context.Context, id string) error
	Subscribe(cb func([]diary.Entry)) (cancel func())
}

// Status is the externally visible engine state.
type Status struct {
	Mode             Mode  `json:"mode"`
	RemoteAvailable  bool  `json:"remoteAvailable"`
	Syncing          bool  `json:"syncing"`
	LastSyncMs       int64 `json:"lastSyncMs"`
	LocalDegraded    bool  `json:"localDegraded"`
	ReconnectPending bool  `json:"reconnectPending"`
}

// SyncResult counts the per-entry outcome of one reconciliation round.
type SyncResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Engine reconciles the local and remote diary stores under a mode state
// machine. All state is per-instance; two engines over different stores
// do not interfere.
type Engine struct {
	local  *local.Store
	remote Remote
	states *state.Store
	now    func() time.Time

	mu          sync.Mutex
	mode        Mode
	available   bool
	syncing     bool
	lastSyncAt  time.Time
	cached      []diary.Entry
	cachedAt    time.Time
	unsubscribe func()
	reconnect   *Task
	onUpdate    func([]diary.Entry)
}

// NewEngine wires the stores. Call Initialize before serving traffic.
func NewEngine(localStore *local.Store, remote Remote, states *state.Store, mode Mode) *Engine {
	if mode == "" {
		mode = ModeHybrid
	}
	return &Engine{
		local:  localStore,
		remote: remote,
		states: states,
		now:    time.Now,
		mode:   mode,
	}
}

// OnUpdate registers a callback invoked with the fresh entry list after
// background changes (subscription pushes, reconnect syncs).
func (g *Engine) OnUpdate(cb func([]diary.Entry)) {
	g.mu.Lock()
	g.onUpdate = cb
	g.mu.Unlock()
}

// Initialize probes the remote side, restores the persisted mode and runs
// the initial reconciliation when one is due. It never fails the caller:
// an unreachable remote just means starting in local mode. A nil remote
// means no remote store is configured at all; the engine then pins itself
// to local mode and never arms reconnect probes.
func (g *Engine) Initialize(ctx context.Context) {
	if g.remote == nil {
		g.mu.Lock()
		g.mode = ModeLocal
		g.mu.Unlock()
		logrus.Info("no remote store configured, storage is local-only")
		g.states.Set(state.KeyInitialized, "1")
		return
	}

	if persisted, err := g.states.Get(state.KeyStorageMode); err == nil {
		if mode, err := ParseMode(persisted); err == nil {
			g.mu.Lock()
			g.mode = mode
			g.mu.Unlock()
		}
	}

	available := g.remote.Ping(ctx) == nil
	g.mu.Lock()
	g.available = available
	mode := g.mode
	g.mu.Unlock()

	if !available {
		if mode != ModeLocal {
			logrus.Warn("remote store unreachable, operating locally until reconnect")
			g.scheduleReconnect()
		}
		return
	}

	if mode != ModeLocal {
		g.startSubscription()
		if g.initialSyncDue(ctx) {
			if _, err := g.runSync(ctx, true); err != nil {
				logrus.WithError(err).Warn("initial sync failed")
			}
		}
	}
	g.states.Set(state.KeyInitialized, "1")
}

// initialSyncDue applies the startup gates: a sync that completed within
// the last day is not repeated unless local-only data is pending, judged
// by the remote-vs-local count pre-check.
func (g *Engine) initialSyncDue(ctx context.Context) bool {
	remoteCount, err := g.remote.Count(ctx)
	if err != nil {
		return false
	}
	pendingLocal := len(g.local.List()) > remoteCount

	if raw, err := g.states.Get(state.KeyLastSync); err == nil {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if g.now().Sub(time.UnixMilli(ms)) < recentSyncWindow && !pendingLocal {
				logrus.Debug("skipping initial sync, synced recently with nothing pending")
				return false
			}
		}
	}
	return true
}

// Save persists a new entry according to the current mode. It always
// succeeds from the caller's point of view; remote trouble downgrades the
// mode and schedules a reconnect instead of failing the write. Cloud mode
// writes to the remote store only; the local tier is touched there solely
// as the landing spot for a failed remote write after the downgrade.
func (g *Engine) Save(ctx context.Context, d diary.Draft) diary.Entry {
	g.mu.Lock()
	mode := g.mode
	available := g.available
	g.mu.Unlock()

	if mode == ModeCloud && available {
		entry := diary.Entry{
			ID:        uuid.NewString(),
			Title:     d.Title,
			Content:   d.Content,
			Mood:      d.Mood,
			Weather:   d.Weather,
			Timestamp: g.now().UnixMilli(),
		}
		g.invalidateCache()
		if err := g.remote.Save(ctx, entry); err != nil {
			logrus.WithError(err).Warn("remote save failed, downgrading to local mode")
			g.markUnavailable()
			g.local.Put(entry)
			return entry
		}
		g.touchLastSync()
		return entry
	}

	entry := g.local.Save(d)
	g.invalidateCache()

	if mode == ModeLocal || !available {
		return entry
	}

	if err := g.remote.Save(ctx, entry); err != nil {
		logrus.WithError(err).Warn("remote save failed, downgrading to local mode")
		g.markUnavailable()
		return entry
	}

	// A successful dual write counts as sync activity.
	g.touchLastSync()
	return entry
}

func (g *Engine) touchLastSync() {
	now := g.now()
	g.mu.Lock()
	g.lastSyncAt = now
	g.mu.Unlock()
	g.states.Set(state.KeyLastSync, strconv.FormatInt(now.UnixMilli(), 10))
}

// List returns the current entries for the active mode, with a short read
// cache in front of the remote store.
func (g *Engine) List(ctx context.Context) []diary.Entry {
	g.mu.Lock()
	mode := g.mode
	available := g.available
	if mode != ModeLocal && available && g.cached != nil && g.now().Sub(g.cachedAt) < readCacheTTL {
		cached := append([]diary.Entry(nil), g.cached...)
		g.mu.Unlock()
		return cached
	}
	g.mu.Unlock()

	if mode == ModeLocal || !available {
		return g.local.List()
	}

	remoteEntries, err := g.remote.List(ctx)
	if err != nil {
		logrus.WithError(err).Warn("remote list failed, serving local entries")
		g.markUnavailable()
		return g.local.List()
	}

	merged := remoteEntries
	if mode == ModeHybrid {
		merged = diary.Merge(remoteEntries, g.local.List())
	}

	g.mu.Lock()
	g.cached = append([]diary.Entry(nil), merged...)
	g.cachedAt = g.now()
	g.mu.Unlock()
	return merged
}

// Delete removes an entry optimistically: local removal happens first and
// decides the outcome, the remote removal is best effort in background.
func (g *Engine) Delete(ctx context.Context, id string) error {
	if err := g.local.Delete(id); err != nil && !errors.Is(err, local.ErrNotFound) {
		return err
	}
	g.invalidateCache()

	g.mu.Lock()
	mode := g.mode
	available := g.available
	g.mu.Unlock()
	if mode == ModeLocal || !available {
		return nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := g.remote.Delete(ctx, id); err != nil {
			logrus.WithField("entry", id).WithError(err).
				Warn("remote delete failed, entry will be re-removed on next sync")
		}
	}()
	return nil
}

// Update patches an entry in the stores the current mode writes to: the
// remote store alone in cloud mode, local first with a best-effort remote
// mirror otherwise.
func (g *Engine) Update(ctx context.Context, id string, p diary.Patch) (diary.Entry, error) {
	g.mu.Lock()
	mode := g.mode
	available := g.available
	g.mu.Unlock()

	if mode == ModeCloud && available {
		for _, e := range g.List(ctx) {
			if e.ID != id {
				continue
			}
			updated := p.Apply(e)
			g.invalidateCache()
			if err := g.remote.Update(ctx, updated); err != nil {
				logrus.WithField("entry", id).WithError(err).
					Warn("remote update failed, downgrading to local mode")
				g.markUnavailable()
				g.local.Put(updated)
			}
			return updated, nil
		}
		return diary.Entry{}, local.ErrNotFound
	}

	updated, err := g.local.Update(id, p)
	if err != nil {
		return diary.Entry{}, err
	}
	g.invalidateCache()

	if mode != ModeLocal && available {
		if err := g.remote.Update(ctx, updated); err != nil {
			logrus.WithField("entry", id).WithError(err).Warn("remote update failed")
		}
	}
	return updated, nil
}

// ManualSync runs a reconciliation on demand. It refuses while another
// sync is running and while the remote store is unreachable; the cooldown
// between automatic rounds does not apply here beyond a short floor.
func (g *Engine) ManualSync(ctx context.Context) (SyncResult, error) {
	g.mu.Lock()
	if g.syncing {
		g.mu.Unlock()
		return SyncResult{}, ErrSyncInProgress
	}
	if !g.available {
		g.mu.Unlock()
		return SyncResult{}, ErrRemoteOffline
	}
	g.mu.Unlock()
	return g.runSync(ctx, false)
}

// ShouldSync reports whether a background reconciliation is due.
func (g *Engine) ShouldSync() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode == ModeLocal || !g.available || g.syncing {
		return false
	}
	return g.lastSyncAt.IsZero() || g.now().Sub(g.lastSyncAt) >= autoResyncEvery
}

// BackgroundSync is the scheduler entry point: it honors the cooldown and
// swallows per-run errors after logging them.
func (g *Engine) BackgroundSync(ctx context.Context) {
	if !g.ShouldSync() {
		return
	}
	if _, err := g.runSync(ctx, false); err != nil &&
		!errors.Is(err, ErrSyncCooldown) && !errors.Is(err, ErrSyncInProgress) {
		logrus.WithError(err).Warn("background sync failed")
	}
}

// runSync performs one reconciliation round: pull the remote set, merge
// with local, rewrite local with the merged view, then push entries the
// remote side is missing. At most one round runs at a time.
func (g *Engine) runSync(ctx context.Context, initial bool) (SyncResult, error) {
	g.mu.Lock()
	if g.syncing {
		g.mu.Unlock()
		return SyncResult{}, ErrSyncInProgress
	}
	if !initial && !g.lastSyncAt.IsZero() && g.now().Sub(g.lastSyncAt) < syncCooldown {
		g.mu.Unlock()
		return SyncResult{}, ErrSyncCooldown
	}
	g.syncing = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.syncing = false
		g.mu.Unlock()
	}()

	remoteEntries, err := g.remote.List(ctx)
	if err != nil {
		g.markUnavailable()
		return SyncResult{}, fmt.Errorf("pull: %w", err)
	}

	localEntries := g.local.List()
	merged := diary.Merge(remoteEntries, localEntries)

	if err := g.local.Replace(merged); err != nil {
		return SyncResult{}, fmt.Errorf("store merged view: %w", err)
	}
	g.invalidateCache()

	// Push up what the remote side is missing. Comparison is by content
	// signature, not id, so re-uploads do not duplicate entries.
	remoteSigs := make(map[string]struct{}, len(remoteEntries))
	for _, e := range remoteEntries {
		remoteSigs[diary.Signature(e)] = struct{}{}
	}

	var res SyncResult
	for _, e := range merged {
		if _, ok := remoteSigs[diary.Signature(e)]; ok {
			continue
		}
		if err := g.remote.Save(ctx, e); err != nil {
			logrus.WithField("entry", e.ID).WithError(err).Warn("push failed")
			res.Failed++
			continue
		}
		res.Success++
	}

	now := g.now()
	g.mu.Lock()
	g.lastSyncAt = now
	g.mu.Unlock()
	g.states.Set(state.KeyLastSync, strconv.FormatInt(now.UnixMilli(), 10))

	logrus.WithFields(logrus.Fields{"pushed": res.Success, "failed": res.Failed,
		"total": len(merged)}).Info("sync round complete")
	g.notify(merged)
	return res, nil
}

// SwitchMode moves the engine to a new mode. Cloud and hybrid demand a
// reachable remote store; the switch probes before committing.
func (g *Engine) SwitchMode(ctx context.Context, mode Mode) error {
	if mode != ModeLocal {
		if g.remote == nil {
			return fmt.Errorf("%w: no remote store configured", ErrModeNeedsRemote)
		}
		if err := g.remote.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrModeNeedsRemote, err)
		}
		g.mu.Lock()
		g.available = true
		g.mu.Unlock()
	}

	g.mu.Lock()
	prev := g.mode
	g.mode = mode
	g.mu.Unlock()
	g.invalidateCache()
	g.states.Set(state.KeyStorageMode, string(mode))

	if prev == ModeLocal && mode != ModeLocal {
		g.startSubscription()
		go g.BackgroundSync(context.Background())
	}
	if mode == ModeLocal {
		g.stopSubscription()
		// A deliberate switch to local also abandons any pending reconnect;
		// the user asked to stay offline.
		g.mu.Lock()
		task := g.reconnect
		g.reconnect = nil
		g.mu.Unlock()
		if task != nil {
			task.Cancel()
		}
	}
	logrus.WithFields(logrus.Fields{"from": prev, "to": mode}).Info("storage mode switched")
	return nil
}

// Status snapshots the engine state.
func (g *Engine) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	var lastMs int64
	if !g.lastSyncAt.IsZero() {
		lastMs = g.lastSyncAt.UnixMilli()
	}
	return Status{
		Mode:             g.mode,
		RemoteAvailable:  g.available,
		Syncing:          g.syncing,
		LastSyncMs:       lastMs,
		LocalDegraded:    g.local.Degraded(),
		ReconnectPending: g.reconnect != nil,
	}
}

// Reinitialize re-probes the remote store and reruns the startup path,
// used after long offline periods.
func (g *Engine) Reinitialize(ctx context.Context) {
	g.stopSubscription()
	g.Initialize(ctx)
}

// ResetState drops the persisted engine bookkeeping. Diary entries are
// untouched.
func (g *Engine) ResetState() {
	g.states.Delete(state.KeyInitialized)
	g.states.Delete(state.KeyLastSync)
	g.states.Delete(state.KeyStorageMode)
	g.invalidateCache()
}

// Cleanup stops background work: the change subscription and any pending
// reconnect task.
func (g *Engine) Cleanup() {
	g.stopSubscription()
	g.mu.Lock()
	task := g.reconnect
	g.reconnect = nil
	g.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

func (g *Engine) markUnavailable() {
	g.mu.Lock()
	wasAvailable := g.available
	g.available = false
	if g.mode == ModeHybrid || g.mode == ModeCloud {
		g.mode = ModeLocal
	}
	g.mu.Unlock()
	g.stopSubscription()
	if wasAvailable {
		g.scheduleReconnect()
	}
}

// scheduleReconnect arms a one-shot probe. On success the engine restores
// the persisted mode and runs a sync round to catch up.
func (g *Engine) scheduleReconnect() {
	if g.remote == nil {
		return
	}
	g.mu.Lock()
	if g.reconnect != nil {
		g.mu.Unlock()
		return
	}
	task := After(reconnectDelay, func() {
		g.mu.Lock()
		g.reconnect = nil
		g.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := g.remote.Ping(ctx); err != nil {
			g.scheduleReconnect()
			return
		}

		mode := ModeHybrid
		if persisted, err := g.states.Get(state.KeyStorageMode); err == nil {
			if m, err := ParseMode(persisted); err == nil && m != ModeLocal {
				mode = m
			}
		}
		g.mu.Lock()
		g.available = true
		g.mode = mode
		g.mu.Unlock()
		logrus.WithField("mode", mode).Info("remote store back, mode restored")

		g.startSubscription()
		g.BackgroundSync(context.Background())
	})
	g.reconnect = task
	g.mu.Unlock()
}

// ReconnectDone exposes the pending reconnect's completion channel, nil
// when none is scheduled.
func (g *Engine) ReconnectDone() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reconnect == nil {
		return nil
	}
	return g.reconnect.Done()
}

func (g *Engine) startSubscription() {
	g.mu.Lock()
	if g.unsubscribe != nil {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	cancel := g.remote.Subscribe(func(remoteEntries []diary.Entry) {
		merged := diary.Merge(remoteEntries, g.local.List())
		if err := g.local.Replace(merged); err != nil {
			logrus.WithError(err).Warn("applying pushed changes failed")
			return
		}
		g.invalidateCache()
		g.notify(merged)
	})

	g.mu.Lock()
	if g.unsubscribe != nil {
		g.mu.Unlock()
		cancel()
		return
	}
	g.unsubscribe = cancel
	g.mu.Unlock()
}

func (g *Engine) stopSubscription() {
	g.mu.Lock()
	cancel := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *Engine) invalidateCache() {
	g.mu.Lock()
	g.cached = nil
	g.mu.Unlock()
}

func (g *Engine) notify(entries []diary.Entry) {
	g.mu.Lock()
	cb := g.onUpdate
	g.mu.Unlock()
	if cb != nil {
		cb(entries)
	}
}
