package hybrid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/weather-diary-sync/internal/diary"
	"github.com/i474232898/weather-diary-sync/internal/diary/local"
	"github.com/i474232898/weather-diary-sync/internal/state"
)

type fakeRemote struct {
	mu        sync.Mutex
	entries   map[string]diary.Entry
	offline   bool
	saveErr   error
	listCalls int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: make(map[string]diary.Entry)}
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeRemote) List(ctx context.Context) ([]diary.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.offline {
		return nil, errors.New("connection refused")
	}
	out := make([]diary.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	diary.SortByTimestampDesc(out)
	return out, nil
}

func (f *fakeRemote) Count(ctx context.Context) (int, error) {
	entries, err := f.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (f *fakeRemote) Save(ctx context.Context, e diary.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errors.New("connection refused")
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.entries[e.ID] = e
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, e diary.Entry) error {
	return f.Save(ctx, e)
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errors.New("connection refused")
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeRemote) Subscribe(cb func([]diary.Entry)) func() {
	return func() {}
}

func (f *fakeRemote) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func newTestEngine(t *testing.T, mode Mode, remote *fakeRemote) *Engine {
	t.Helper()
	states, err := state.Open(":memory:")
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	t.Cleanup(func() { states.Close() })

	g := NewEngine(local.NewStore(states), remote, states, mode)
	t.Cleanup(g.Cleanup)
	return g
}

func TestSaveLocalModeSkipsRemote(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeLocal, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "本地", Content: "内容"})
	if e.ID == "" {
		t.Fatal("expected a saved entry")
	}
	if remote.size() != 0 {
		t.Fatal("local mode must not touch the remote store")
	}
}

func TestSaveHybridMirrorsToRemote(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "双写", Content: "内容"})
	if remote.size() != 1 {
		t.Fatalf("expected the entry mirrored to remote, got %d", remote.size())
	}
	if got := g.local.List(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("expected the entry in the local store, got %+v", got)
	}
}

func TestCloudModeSaveSkipsLocalStore(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeCloud, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "云端", Content: "内容"})
	if e.ID == "" || e.Timestamp == 0 {
		t.Fatalf("expected a fully formed entry, got %+v", e)
	}
	if remote.size() != 1 {
		t.Fatalf("expected the entry in the remote store, got %d", remote.size())
	}
	if got := g.local.List(); len(got) != 0 {
		t.Fatalf("cloud mode must not mirror writes locally, got %+v", got)
	}
}

func TestCloudModeSaveFailureLandsLocally(t *testing.T) {
	remote := newFakeRemote()
	remote.saveErr = errors.New("503")
	g := newTestEngine(t, ModeCloud, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "云端", Content: "内容"})
	if g.Status().Mode != ModeLocal {
		t.Fatalf("expected downgrade to local mode, got %s", g.Status().Mode)
	}
	if got := g.local.List(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("the failed remote write must survive locally, got %+v", got)
	}
}

func TestCloudModeUpdateSkipsLocalStore(t *testing.T) {
	remote := newFakeRemote()
	remote.entries["r1"] = diary.Entry{ID: "r1", Title: "原标题", Content: "内容", Timestamp: 1000}
	g := newTestEngine(t, ModeCloud, remote)
	g.available = true

	title := "新标题"
	updated, err := g.Update(context.Background(), "r1", diary.Patch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "新标题" || updated.Content != "内容" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	remote.mu.Lock()
	stored := remote.entries["r1"]
	remote.mu.Unlock()
	if stored.Title != "新标题" {
		t.Fatalf("expected the remote entry patched, got %+v", stored)
	}
	if got := g.local.List(); len(got) != 0 {
		t.Fatalf("cloud mode must not mirror updates locally, got %+v", got)
	}

	if _, err := g.Update(context.Background(), "missing", diary.Patch{Title: &title}); !errors.Is(err, local.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown entry, got %v", err)
	}
}

func TestUnconfiguredRemotePinsLocalMode(t *testing.T) {
	states, err := state.Open(":memory:")
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	t.Cleanup(func() { states.Close() })

	g := NewEngine(local.NewStore(states), nil, states, ModeHybrid)
	t.Cleanup(g.Cleanup)

	g.Initialize(context.Background())
	st := g.Status()
	if st.Mode != ModeLocal {
		t.Fatalf("expected local mode without a remote store, got %s", st.Mode)
	}
	if st.ReconnectPending {
		t.Fatal("no reconnect should be armed without a remote store")
	}

	if err := g.SwitchMode(context.Background(), ModeHybrid); !errors.Is(err, ErrModeNeedsRemote) {
		t.Fatalf("expected ErrModeNeedsRemote, got %v", err)
	}
}

func TestSaveDowngradesOnRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.saveErr = errors.New("503")
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "写入", Content: "内容"})
	if e.ID == "" {
		t.Fatal("the write must survive locally")
	}

	st := g.Status()
	if st.Mode != ModeLocal {
		t.Fatalf("expected downgrade to local mode, got %s", st.Mode)
	}
	if st.RemoteAvailable {
		t.Fatal("remote should be flagged unavailable")
	}
	if !st.ReconnectPending {
		t.Fatal("a reconnect should be scheduled")
	}
	if g.ReconnectDone() == nil {
		t.Fatal("expected an observable reconnect handle")
	}
}

func TestListReadCache(t *testing.T) {
	remote := newFakeRemote()
	remote.entries["r1"] = diary.Entry{ID: "r1", Title: "远程", Content: "内容", Timestamp: 1000}
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true

	now := time.Now()
	g.now = func() time.Time { return now }

	g.List(context.Background())
	g.List(context.Background())
	if remote.listCalls != 1 {
		t.Fatalf("second list within the cache window should not hit remote, got %d calls", remote.listCalls)
	}

	now = now.Add(readCacheTTL + time.Second)
	g.List(context.Background())
	if remote.listCalls != 2 {
		t.Fatalf("an expired cache should refetch, got %d calls", remote.listCalls)
	}
}

func TestManualSyncPushesLocalOnlyEntries(t *testing.T) {
	remote := newFakeRemote()
	remote.entries["r1"] = diary.Entry{ID: "r1", Title: "远程", Content: "内容", Timestamp: 3000}
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true

	g.local.Put(diary.Entry{ID: "l1", Title: "本地一", Content: "内容", Timestamp: 1000})
	g.local.Put(diary.Entry{ID: "l2", Title: "本地二", Content: "内容", Timestamp: 2000})

	res, err := g.ManualSync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Success != 2 || res.Failed != 0 {
		t.Fatalf("expected 2 pushed entries, got %+v", res)
	}
	if remote.size() != 3 {
		t.Fatalf("expected 3 entries remote after sync, got %d", remote.size())
	}
	if got := g.local.List(); len(got) != 3 {
		t.Fatalf("expected the merged view locally, got %d entries", len(got))
	}

	// Immediately after a round the cooldown rejects another one.
	if _, err := g.ManualSync(context.Background()); !errors.Is(err, ErrSyncCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
}

func TestManualSyncRequiresRemote(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeHybrid, remote)

	if _, err := g.ManualSync(context.Background()); !errors.Is(err, ErrRemoteOffline) {
		t.Fatalf("expected ErrRemoteOffline, got %v", err)
	}
}

func TestSyncCountsFailures(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true
	g.local.Put(diary.Entry{ID: "l1", Title: "本地", Content: "内容", Timestamp: 1000})

	remote.saveErr = errors.New("quota exceeded")
	res, err := g.ManualSync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Success != 0 || res.Failed != 1 {
		t.Fatalf("expected the push failure to be counted, got %+v", res)
	}
}

func TestDeleteIsOptimistic(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeHybrid, remote)
	g.available = true

	e := g.Save(context.Background(), diary.Draft{Title: "删除", Content: "内容"})
	if err := g.Delete(context.Background(), e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := g.local.List(); len(got) != 0 {
		t.Fatalf("local removal must be immediate, got %+v", got)
	}
}

func TestSwitchModeRequiresReachableRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.offline = true
	g := newTestEngine(t, ModeLocal, remote)

	if err := g.SwitchMode(context.Background(), ModeCloud); !errors.Is(err, ErrModeNeedsRemote) {
		t.Fatalf("expected ErrModeNeedsRemote, got %v", err)
	}
	if g.Status().Mode != ModeLocal {
		t.Fatal("a rejected switch must not change the mode")
	}

	remote.mu.Lock()
	remote.offline = false
	remote.mu.Unlock()

	if err := g.SwitchMode(context.Background(), ModeCloud); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if g.Status().Mode != ModeCloud {
		t.Fatalf("expected cloud mode, got %s", g.Status().Mode)
	}
}

func TestShouldSyncGates(t *testing.T) {
	remote := newFakeRemote()
	g := newTestEngine(t, ModeHybrid, remote)

	if g.ShouldSync() {
		t.Fatal("must not sync while the remote is unavailable")
	}

	g.available = true
	if !g.ShouldSync() {
		t.Fatal("a never-synced engine should want a sync")
	}

	g.lastSyncAt = time.Now()
	if g.ShouldSync() {
		t.Fatal("a just-synced engine should wait")
	}

	g.lastSyncAt = time.Now().Add(-autoResyncEvery - time.Minute)
	if !g.ShouldSync() {
		t.Fatal("a stale engine should want a sync")
	}

	g.mode = ModeLocal
	if g.ShouldSync() {
		t.Fatal("local mode never syncs")
	}
}

func TestInitializeOfflineStartsLocally(t *testing.T) {
	remote := newFakeRemote()
	remote.offline = true
	g := newTestEngine(t, ModeHybrid, remote)

	g.Initialize(context.Background())
	st := g.Status()
	if st.RemoteAvailable {
		t.Fatal("remote should be unavailable")
	}
	if !st.ReconnectPending {
		t.Fatal("an offline start should schedule a reconnect")
	}
}
