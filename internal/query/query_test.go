package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

var now = time.Date(2025, 8, 15, 9, 0, 0, 0, time.UTC)

type staticSource struct {
	all map[pattern.Scope][]pattern.Pattern
	err error
}

func (s *staticSource) LoadAll(context.Context) (map[pattern.Scope][]pattern.Pattern, error) {
	return s.all, s.err
}

func mk(id string, scope pattern.Scope, typ pattern.Type, score, conf float64, tags ...string) pattern.Pattern {
	return pattern.Pattern{
		ID: id, Scope: scope, Type: typ, Name: "Pattern " + id, Content: "content of " + id,
		Score: score, Confidence: conf, Frequency: 1, Tags: tags, LastSeen: now, FirstSeen: now,
	}
}

func fixture() map[pattern.Scope][]pattern.Pattern {
	return map[pattern.Scope][]pattern.Pattern{
		pattern.ScopePlan: {
			mk("pat_p1", pattern.ScopePlan, pattern.TypeDecision, 1.5, 0.9, "arch"),
			mk("pat_p2", pattern.ScopePlan, pattern.TypeRisk, 0.4, 0.3),
		},
		pattern.ScopeImplement: {
			mk("pat_i1", pattern.ScopeImplement, pattern.TypeApproach, 2.0, 0.8, "go", "testing"),
			mk("pat_i2", pattern.ScopeImplement, pattern.TypeAntiPattern, 0.9, 0.5),
			mk("pat_i3", pattern.ScopeImplement, pattern.TypeApproach, 1.5, 0.6, "go"),
		},
	}
}

func ids(ps []pattern.Pattern) []string {
	out := make([]string, len(ps))
	for i := range ps {
		out[i] = ps[i].ID
	}
	return out
}

func TestApply(t *testing.T) {
	all := fixture()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"everything ranked", Filter{}, []string{"pat_i1", "pat_i3", "pat_p1", "pat_i2", "pat_p2"}},
		{"by scope", Filter{Scopes: []pattern.Scope{pattern.ScopePlan}}, []string{"pat_p1", "pat_p2"}},
		{"by type", Filter{Types: []pattern.Type{pattern.TypeApproach}}, []string{"pat_i1", "pat_i3"}},
		{"min confidence", Filter{MinConfidence: 0.7}, []string{"pat_i1", "pat_p1"}},
		{"min score", Filter{MinScore: 1.0}, []string{"pat_i1", "pat_i3", "pat_p1"}},
		{"all tags", Filter{Tags: []string{"Go", "testing"}}, []string{"pat_i1"}},
		{"text", Filter{Text: "CONTENT OF PAT_P"}, []string{"pat_p1", "pat_p2"}},
		{"limit", Filter{Limit: 2}, []string{"pat_i1", "pat_i3"}},
		{"no match", Filter{Text: "nothing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(all, tt.filter)))
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, (&Filter{}).Validate())
	assert.ErrorIs(t, (&Filter{Scopes: []pattern.Scope{"bogus"}}).Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, (&Filter{Types: []pattern.Type{"bogus"}}).Validate(), pattern.ErrInvalidType)
	assert.ErrorIs(t, (&Filter{MinConfidence: 2}).Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, (&Filter{Limit: -1}).Validate(), ErrInvalidFilter)
}

func TestService_Query(t *testing.T) {
	svc := NewService(&staticSource{all: fixture()})
	got, err := svc.Query(context.Background(), Filter{Types: []pattern.Type{pattern.TypeRisk}})
	require.NoError(t, err)
	assert.Equal(t, []string{"pat_p2"}, ids(got))

	_, err = svc.Query(context.Background(), Filter{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	failing := NewService(&staticSource{err: errors.New("boom")})
	_, err = failing.Query(context.Background(), Filter{})
	assert.EqualError(t, err, "boom")
}

func TestRank_TieBreaksOnID(t *testing.T) {
	ps := []pattern.Pattern{{ID: "pat_b", Score: 1}, {ID: "pat_a", Score: 1}, {ID: "pat_c", Score: 2}}
	Rank(ps)
	assert.Equal(t, []string{"pat_c", "pat_a", "pat_b"}, ids(ps))
}

func TestApply_LargeSetIsCapped(t *testing.T) {
	var ps []pattern.Pattern
	for i := range 30 {
		ps = append(ps, mk(fmt.Sprintf("pat_%02d", i), pattern.ScopeReview, pattern.TypeRisk, float64(i), 0.5))
	}
	got := Apply(map[pattern.Scope][]pattern.Pattern{pattern.ScopeReview: ps}, Filter{Limit: PerTypeLimit})
	require.Len(t, got, PerTypeLimit)
	assert.Equal(t, "pat_29", got[0].ID)
}
