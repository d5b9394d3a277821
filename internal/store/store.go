package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// ErrCorruptStore is returned when a persisted file cannot be parsed or
// violates a structural invariant.
var ErrCorruptStore = errors.New("corrupt pattern store")

const (
	configFile   = "config.json"
	reportFile   = "PATTERNS.md"
	sessionsDir  = "sessions"
	scopesDir    = "scopes"
	patternsFile = "patterns.json"
	clustersFile = "clusters.json"
	indexFile    = "index.json"
)

// FileStore is a JSON-file backed pattern store rooted at one directory.
type FileStore struct {
	root   string
	logger *zap.Logger

	locksMu sync.Mutex
	locks   map[pattern.Scope]*sync.Mutex

	sessionsMu sync.Mutex
	configMu   sync.Mutex
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens (creating if needed) a store rooted at root.
func New(root string, opts ...Option) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("creating store root %s: %w", abs, err)
	}

	s := &FileStore{
		root:   abs,
		logger: zap.NewNop(),
		locks:  make(map[pattern.Scope]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute store root.
func (s *FileStore) Root() string {
	return s.root
}

// LockScope acquires the write lock for one scope and returns its release func.
func (s *FileStore) LockScope(scope pattern.Scope) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[scope]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[scope] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (s *FileStore) scopeDir(scope pattern.Scope) string {
	return filepath.Join(s.root, scopesDir, string(scope))
}

// ReportPath returns the path of the generated PATTERNS.md.
func (s *FileStore) ReportPath() string {
	return filepath.Join(s.root, reportFile)
}

// WriteReport atomically replaces PATTERNS.md.
func (s *FileStore) WriteReport(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := s.ReportPath()
	if err := s.writeFile(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

func corruptf(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCorruptStore, path, err)
}
