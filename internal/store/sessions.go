package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RecordSession writes a session summary and rotates out the oldest
// summaries beyond maxSessions.
func (s *FileStore) RecordSession(ctx context.Context, summary pattern.SessionSummary, maxSessions int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.SessionID == "" {
		return errors.New("session id is required")
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	data, err := marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding session summary: %w", err)
	}

	name := fmt.Sprintf("%020d-%s.json", summary.RecordedAt.UnixNano(), unsafeName.ReplaceAllString(summary.SessionID, "_"))
	if err := s.writeFile(filepath.Join(s.root, sessionsDir, name), data); err != nil {
		return fmt.Errorf("writing session summary: %w", err)
	}

	return s.rotateSessions(maxSessions)
}

func (s *FileStore) sessionFiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sessionsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	// Zero-padded timestamps make lexical order chronological.
	slices.Sort(names)
	return names, nil
}

func (s *FileStore) rotateSessions(maxSessions int) error {
	if maxSessions < 1 {
		return nil
	}
	names, err := s.sessionFiles()
	if err != nil {
		return err
	}
	for len(names) > maxSessions {
		path := filepath.Join(s.root, sessionsDir, names[0])
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing session %s: %w", names[0], err)
		}
		sessionsEvicted.Inc()
		s.logger.Debug("session summary rotated out", zap.String("file", names[0]))
		names = names[1:]
	}
	return nil
}

// ListSessions returns stored session summaries, oldest first.
func (s *FileStore) ListSessions(ctx context.Context) ([]pattern.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	names, err := s.sessionFiles()
	if err != nil {
		return nil, err
	}

	out := make([]pattern.SessionSummary, 0, len(names))
	for _, name := range names {
		var summary pattern.SessionSummary
		if err := readJSON(filepath.Join(s.root, sessionsDir, name), "session", &summary); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}
