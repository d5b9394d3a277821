package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
	"github.com/fyrsmithlabs/patternd/internal/scoring"
	"github.com/fyrsmithlabs/patternd/internal/similarity"
)

// ErrNoFragments is returned when an observation carries nothing to record.
var ErrNoFragments = errors.New("observation has no fragments")

// ObservationResult lists the patterns an observation created or updated.
type ObservationResult struct {
	SessionID string        `json:"sessionId"`
	Scope     pattern.Scope `json:"scope"`
	Created   []string      `json:"created"`
	Updated   []string      `json:"updated"`
}

// RecordObservation folds extracted fragments into the scope's patterns.
//
// Each fragment is matched to an existing pattern through the semantic hash
// index. A match increments frequency, moves lastSeen forward, records the
// session as an example and merges tags; otherwise a new pattern is
// created. Derived confidence, score and embedding are refreshed for every
// touched pattern. The batch is validated up front and either fully
// applied or not at all. An empty sessionID gets a generated one.
func (e *Engine) RecordObservation(ctx context.Context, scope pattern.Scope, fragments []pattern.Fragment, sessionID string) (*ObservationResult, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q", pattern.ErrInvalidScope, scope)
	}
	if len(fragments) == 0 {
		return nil, ErrNoFragments
	}
	for i := range fragments {
		if err := fragments[i].Validate(); err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx = logging.WithSessionID(logging.WithScope(ctx, scope), sessionID)
	log := logging.For(ctx, e.logger)

	cfg := e.Config()
	now := e.clock.Now()
	res := &ObservationResult{SessionID: sessionID, Scope: scope}

	unlock := e.store.LockScope(scope)
	defer unlock()

	snap, err := e.store.LoadScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{})
	for _, f := range fragments {
		text := f.Text()
		hash := pattern.SemanticHash(f.Type, text)
		id := pattern.PatternID(scope, f.Type, text)

		var p *pattern.Pattern
		if i := snap.Resolve(hash, id); i >= 0 {
			p = &snap.Patterns[i]
			p.Observe(f, sessionID, now)
			if _, seen := touched[p.ID]; !seen {
				res.Updated = append(res.Updated, p.ID)
			}
		} else {
			created, err := pattern.NewPattern(scope, f, sessionID, now)
			if err != nil {
				return nil, err
			}
			snap.Patterns = append(snap.Patterns, created)
			p = &snap.Patterns[len(snap.Patterns)-1]
			res.Created = append(res.Created, p.ID)
		}
		touched[p.ID] = struct{}{}
		snap.Index[hash] = p.ID

		scoring.Refresh(p, now, cfg.Decay)
		if !p.HasEmbedding() {
			p.Embedding = similarity.Embed(p.Text())
		}
	}

	if err := e.store.SaveScope(ctx, snap); err != nil {
		return nil, err
	}

	summary := pattern.SessionSummary{
		SessionID:  sessionID,
		Scope:      scope,
		RecordedAt: now,
		Created:    res.Created,
		Updated:    res.Updated,
	}
	if err := e.store.RecordSession(ctx, summary, cfg.Capacity.MaxSessions); err != nil {
		// The patterns are already committed; the summary is traceability only.
		log.Warn("failed to record session summary", zap.Error(err))
	}

	log.Info("observation recorded",
		zap.Int("created", len(res.Created)),
		zap.Int("updated", len(res.Updated)))
	return res, nil
}
