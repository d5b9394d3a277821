package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// Snapshot is the complete persisted state of one scope.
type Snapshot struct {
	Scope    pattern.Scope
	Patterns []pattern.Pattern
	Clusters []pattern.Cluster

	// Index maps semantic hash to pattern ID. Hashes of patterns absorbed
	// by deduplication keep pointing at the surviving representative.
	Index map[string]string
}

// NewSnapshot returns an empty snapshot for scope.
func NewSnapshot(scope pattern.Scope) *Snapshot {
	return &Snapshot{
		Scope:    scope,
		Patterns: []pattern.Pattern{},
		Clusters: []pattern.Cluster{},
		Index:    map[string]string{},
	}
}

// Empty reports whether the scope holds no patterns.
func (sn *Snapshot) Empty() bool {
	return len(sn.Patterns) == 0
}

// Find returns the position of the pattern with id, or -1.
func (sn *Snapshot) Find(id string) int {
	for i := range sn.Patterns {
		if sn.Patterns[i].ID == id {
			return i
		}
	}
	return -1
}

// Resolve looks up a pattern position by semantic hash through the index,
// falling back to the derived pattern ID.
func (sn *Snapshot) Resolve(hash, id string) int {
	if target, ok := sn.Index[hash]; ok {
		if i := sn.Find(target); i >= 0 {
			return i
		}
	}
	return sn.Find(id)
}

// RebuildIndex maps every live pattern's hash to its ID and keeps alias
// entries only while their target still exists. aliases maps absorbed
// pattern IDs to the ID that absorbed them.
func (sn *Snapshot) RebuildIndex(aliases map[string]string) {
	live := make(map[string]struct{}, len(sn.Patterns))
	for i := range sn.Patterns {
		live[sn.Patterns[i].ID] = struct{}{}
	}

	index := make(map[string]string, len(sn.Index)+len(sn.Patterns))
	for hash, id := range sn.Index {
		for range len(aliases) {
			next, ok := aliases[id]
			if !ok || next == id {
				break
			}
			id = next
		}
		if _, ok := live[id]; ok {
			index[hash] = id
		}
	}
	for i := range sn.Patterns {
		index[sn.Patterns[i].SemanticHash] = sn.Patterns[i].ID
	}
	sn.Index = index
}

// LoadScope reads the patterns, clusters and index of one scope.
// Missing files load as empty; unparseable files yield ErrCorruptStore.
func (s *FileStore) LoadScope(ctx context.Context, scope pattern.Scope) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidScope, scope)
	}

	dir := s.scopeDir(scope)
	snap := NewSnapshot(scope)

	if err := readJSON(filepath.Join(dir, patternsFile), "patterns", &snap.Patterns); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, clustersFile), "clusters", &snap.Clusters); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, indexFile), "index", &snap.Index); err != nil {
		return nil, err
	}
	if snap.Patterns == nil {
		snap.Patterns = []pattern.Pattern{}
	}
	if snap.Clusters == nil {
		snap.Clusters = []pattern.Cluster{}
	}
	if snap.Index == nil {
		snap.Index = map[string]string{}
	}

	if err := s.checkSnapshot(dir, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// checkSnapshot enforces structural invariants. Broken records fail the
// load; dangling references left by an interrupted save are pruned.
func (s *FileStore) checkSnapshot(dir string, snap *Snapshot) error {
	path := filepath.Join(dir, patternsFile)
	seen := make(map[string]struct{}, len(snap.Patterns))
	for i := range snap.Patterns {
		p := &snap.Patterns[i]
		if err := p.Validate(); err != nil {
			corruptFilesDetected.WithLabelValues("patterns").Inc()
			return corruptf(path, err)
		}
		if p.Scope != snap.Scope {
			corruptFilesDetected.WithLabelValues("patterns").Inc()
			return corruptf(path, fmt.Errorf("pattern %s has scope %q", p.ID, p.Scope))
		}
		if _, dup := seen[p.ID]; dup {
			corruptFilesDetected.WithLabelValues("patterns").Inc()
			return corruptf(path, fmt.Errorf("duplicate pattern id %s", p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	clusterIDs := make(map[string]struct{}, len(snap.Clusters))
	for _, c := range snap.Clusters {
		if c.ID == "" {
			corruptFilesDetected.WithLabelValues("clusters").Inc()
			return corruptf(filepath.Join(dir, clustersFile), errors.New("cluster without id"))
		}
		clusterIDs[c.ID] = struct{}{}
		for _, m := range c.Members {
			if _, ok := seen[m]; !ok {
				s.logger.Warn("cluster references missing pattern",
					zap.String("scope", string(snap.Scope)),
					zap.String("cluster_id", c.ID),
					zap.String("pattern_id", m))
			}
		}
	}

	for i := range snap.Patterns {
		p := &snap.Patterns[i]
		if p.ClusterID == nil {
			continue
		}
		if _, ok := clusterIDs[*p.ClusterID]; !ok {
			s.logger.Warn("pattern references missing cluster, clearing",
				zap.String("scope", string(snap.Scope)),
				zap.String("pattern_id", p.ID),
				zap.String("cluster_id", *p.ClusterID))
			p.ClusterID = nil
		}
	}

	for hash, id := range snap.Index {
		if _, ok := seen[id]; !ok {
			delete(snap.Index, hash)
		}
	}
	return nil
}

// SaveScope persists all three scope files. Every file is staged before any
// rename, so a failure while staging leaves the previous state untouched.
func (s *FileStore) SaveScope(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !snap.Scope.Valid() {
		return fmt.Errorf("%w: %q", pattern.ErrInvalidScope, snap.Scope)
	}

	patterns := snap.Patterns
	if patterns == nil {
		patterns = []pattern.Pattern{}
	}
	clusters := snap.Clusters
	if clusters == nil {
		clusters = []pattern.Cluster{}
	}
	index := snap.Index
	if index == nil {
		index = map[string]string{}
	}

	dir := s.scopeDir(snap.Scope)
	files := make([]fileContent, 0, 3)
	for _, f := range []struct {
		name string
		v    any
	}{
		{patternsFile, patterns},
		{clustersFile, clusters},
		{indexFile, index},
	} {
		data, err := marshal(f.v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.name, err)
		}
		files = append(files, fileContent{path: filepath.Join(dir, f.name), data: data})
	}

	if err := s.writeFiles(files...); err != nil {
		return fmt.Errorf("saving scope %s: %w", snap.Scope, err)
	}

	patternsStored.WithLabelValues(string(snap.Scope)).Set(float64(len(patterns)))
	clustersStored.WithLabelValues(string(snap.Scope)).Set(float64(len(clusters)))
	s.logger.Debug("scope saved",
		zap.String("scope", string(snap.Scope)),
		zap.Int("patterns", len(patterns)),
		zap.Int("clusters", len(clusters)))
	return nil
}

// LoadAll reads the patterns of every scope.
func (s *FileStore) LoadAll(ctx context.Context) (map[pattern.Scope][]pattern.Pattern, error) {
	out := make(map[pattern.Scope][]pattern.Pattern, len(pattern.Scopes()))
	for _, scope := range pattern.Scopes() {
		snap, err := s.LoadScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		out[scope] = snap.Patterns
	}
	return out, nil
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path, label string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		corruptFilesDetected.WithLabelValues(label).Inc()
		return corruptf(path, err)
	}
	return nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
