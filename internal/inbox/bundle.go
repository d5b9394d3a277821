package inbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// ErrInvalidBundle is returned for bundle files that cannot be ingested.
var ErrInvalidBundle = errors.New("invalid observation bundle")

// Bundle is one observation file dropped into the inbox.
type Bundle struct {
	Scope     pattern.Scope      `json:"scope"`
	SessionID string             `json:"sessionId,omitempty"`
	Fragments []pattern.Fragment `json:"fragments"`
}

// ParseBundle decodes and validates bundle content.
func ParseBundle(data []byte) (*Bundle, error) {
	b, err := DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeBundle decodes bundle content without validating it, so callers
// can fill in missing fields first.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	return &b, nil
}

// Validate checks the scope and every fragment. The scope is normalized
// in place.
func (b *Bundle) Validate() error {
	scope, err := pattern.ParseScope(string(b.Scope))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	b.Scope = scope
	if len(b.Fragments) == 0 {
		return fmt.Errorf("%w: no fragments", ErrInvalidBundle)
	}
	for i := range b.Fragments {
		if err := b.Fragments[i].Validate(); err != nil {
			return fmt.Errorf("%w: fragment %d: %w", ErrInvalidBundle, i, err)
		}
	}
	return nil
}
