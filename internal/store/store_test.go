package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/config"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func testPattern(t *testing.T, scope pattern.Scope, text string, seen time.Time) pattern.Pattern {
	t.Helper()
	p, err := pattern.NewPattern(scope, pattern.Fragment{Type: pattern.TypeApproach, Content: text}, "sess-1", seen)
	require.NoError(t, err)
	p.Embedding = []float64{0.6, 0.8}
	p.Confidence = 0.5
	p.Score = 1.25
	return p
}

func TestLoadScope_MissingFilesAreEmpty(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.LoadScope(context.Background(), pattern.ScopePlan)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.Clusters)
	assert.Empty(t, snap.Index)

	_, err = os.Stat(filepath.Join(s.Root(), scopesDir))
	assert.True(t, os.IsNotExist(err), "loading must not create files")
}

func TestLoadScope_InvalidScope(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadScope(context.Background(), "nope")
	assert.ErrorIs(t, err, pattern.ErrInvalidScope)
}

func TestSaveScope_RoundTripIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2025, 5, 1, 10, 30, 0, 123456789, time.UTC)

	a := testPattern(t, pattern.ScopeImplement, "write the failing test first", now)
	b := testPattern(t, pattern.ScopeImplement, "run the linter before pushing", now.Add(-time.Hour))
	clusterID := pattern.ClusterID([]string{a.ID, b.ID})
	a.SetCluster(clusterID)
	b.SetCluster(clusterID)

	snap := NewSnapshot(pattern.ScopeImplement)
	snap.Patterns = []pattern.Pattern{a, b}
	snap.Clusters = []pattern.Cluster{{
		ID: clusterID, Scope: pattern.ScopeImplement,
		Members: []string{a.ID, b.ID}, Centroid: []float64{0.6, 0.8}, AvgConfidence: 0.5,
	}}
	snap.RebuildIndex(nil)
	require.NoError(t, s.SaveScope(ctx, snap))

	dir := s.scopeDir(pattern.ScopeImplement)
	before := map[string][]byte{}
	for _, name := range []string{patternsFile, clustersFile, indexFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = data
	}

	loaded, err := s.LoadScope(ctx, pattern.ScopeImplement)
	require.NoError(t, err)
	assert.Equal(t, snap.Patterns, loaded.Patterns)
	assert.Equal(t, snap.Clusters, loaded.Clusters)
	assert.Equal(t, snap.Index, loaded.Index)

	require.NoError(t, s.SaveScope(ctx, loaded))
	for name, want := range before {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}
}

func TestSaveScope_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap := NewSnapshot(pattern.ScopeReview)
	snap.Patterns = []pattern.Pattern{testPattern(t, pattern.ScopeReview, "check error paths", time.Now())}
	require.NoError(t, s.SaveScope(ctx, snap))

	entries, err := os.ReadDir(s.scopeDir(pattern.ScopeReview))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{patternsFile, clustersFile, indexFile}, names)
}

func TestLoadScope_CorruptFileFailsClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := s.scopeDir(pattern.ScopePlan)
	require.NoError(t, os.MkdirAll(dir, 0o700))

	path := filepath.Join(dir, patternsFile)
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":`), 0o600))

	_, err := s.LoadScope(ctx, pattern.ScopePlan)
	require.ErrorIs(t, err, ErrCorruptStore)

	// The corrupt file is left untouched.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, `[{"id":`, string(data))
}

func TestLoadScope_InvalidPatternIsCorrupt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := s.scopeDir(pattern.ScopePlan)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, patternsFile),
		[]byte(`[{"id":"pat_1","scope":"plan","type":"decision","content":"x","frequency":0}]`), 0o600))

	_, err := s.LoadScope(ctx, pattern.ScopePlan)
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestLoadScope_PrunesDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPattern(t, pattern.ScopePlan, "pin dependency versions", time.Now())
	p.SetCluster("clu_missing")

	snap := NewSnapshot(pattern.ScopePlan)
	snap.Patterns = []pattern.Pattern{p}
	snap.Index = map[string]string{"deadbeef": "pat_gone", p.SemanticHash: p.ID}
	require.NoError(t, s.SaveScope(ctx, snap))

	loaded, err := s.LoadScope(ctx, pattern.ScopePlan)
	require.NoError(t, err)
	assert.Nil(t, loaded.Patterns[0].ClusterID)
	assert.Equal(t, map[string]string{p.SemanticHash: p.ID}, loaded.Index)
}

func TestSnapshot_RebuildIndexFollowsAliases(t *testing.T) {
	snap := NewSnapshot(pattern.ScopePlan)
	snap.Patterns = []pattern.Pattern{{ID: "pat_c", SemanticHash: "hc"}}
	snap.Index = map[string]string{"ha": "pat_a", "hb": "pat_b", "hx": "pat_x"}

	snap.RebuildIndex(map[string]string{"pat_a": "pat_b", "pat_b": "pat_c"})

	assert.Equal(t, map[string]string{"ha": "pat_c", "hb": "pat_c", "hc": "pat_c"}, snap.Index)
	assert.Equal(t, 0, snap.Resolve("ha", "pat_zzz"))
	assert.Equal(t, -1, snap.Resolve("hz", "pat_zzz"))
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	snap := NewSnapshot(pattern.ScopeRelease)
	snap.Patterns = []pattern.Pattern{testPattern(t, pattern.ScopeRelease, "tag before publishing", time.Now())}
	require.NoError(t, s.SaveScope(ctx, snap))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(pattern.Scopes()))
	assert.Len(t, all[pattern.ScopeRelease], 1)
	assert.Empty(t, all[pattern.ScopePlan])
}

func TestLockScope_SerializesWriters(t *testing.T) {
	s := newTestStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockScope(pattern.ScopePlan)
			defer unlock()

			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different scopes do not contend.
	unlockPlan := s.LockScope(pattern.ScopePlan)
	unlockReview := s.LockScope(pattern.ScopeReview)
	unlockReview()
	unlockPlan()
}

func TestRecordSession_RotatesOldest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		summary := pattern.SessionSummary{
			SessionID:  "sess/" + string(rune('a'+i)),
			Scope:      pattern.ScopePlan,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			Created:    []string{"pat_x"},
		}
		require.NoError(t, s.RecordSession(ctx, summary, 3))
	}

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "sess/c", sessions[0].SessionID)
	assert.Equal(t, "sess/e", sessions[2].SessionID)
}

func TestEngineConfig_CreatedWithDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cfg, err := s.LoadEngineConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEngine(), cfg)

	_, err = os.Stat(s.ConfigPath())
	assert.NoError(t, err)
}

func TestEngineConfig_InvalidFileFailsClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.ConfigPath(), []byte(`{"version":1,"decay":{"halfLifeDays":-3}}`), 0o600))

	_, err := s.LoadEngineConfig(ctx)
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	data, readErr := os.ReadFile(s.ConfigPath())
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "-3")
}

func TestUpdateEngineConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cfg, err := s.UpdateEngineConfig(ctx, func(c *config.Engine) error {
		c.Capacity.MaxPatternsPerScope = 25
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Capacity.MaxPatternsPerScope)

	// An invalid update is rejected and nothing is written.
	_, err = s.UpdateEngineConfig(ctx, func(c *config.Engine) error {
		c.Thresholds.Dedup = 7
		return nil
	})
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	reloaded, err := s.LoadEngineConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, reloaded.Capacity.MaxPatternsPerScope)
	assert.Equal(t, 0.9, reloaded.Thresholds.Dedup)
}

func TestWriteReport(t *testing.T) {
	s := newTestStore(t)
	path, err := s.WriteReport(context.Background(), "# Patterns\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), reportFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Patterns\n", string(data))
}
