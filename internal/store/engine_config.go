package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/config"
)

// ConfigPath returns the path of config.json.
func (s *FileStore) ConfigPath() string {
	return filepath.Join(s.root, configFile)
}

// LoadEngineConfig reads config.json. A missing file is created with
// defaults. An invalid file is an error and is left untouched.
func (s *FileStore) LoadEngineConfig(ctx context.Context) (config.Engine, error) {
	if err := ctx.Err(); err != nil {
		return config.Engine{}, err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	return s.loadEngineConfigLocked()
}

func (s *FileStore) loadEngineConfigLocked() (config.Engine, error) {
	path := s.ConfigPath()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := config.DefaultEngine()
		if err := s.saveEngineConfigLocked(cfg); err != nil {
			return config.Engine{}, err
		}
		s.logger.Info("created default engine config", zap.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return config.Engine{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := config.ParseEngine(data)
	if err != nil {
		corruptFilesDetected.WithLabelValues("config").Inc()
		return config.Engine{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveEngineConfig validates and atomically writes config.json.
func (s *FileStore) SaveEngineConfig(ctx context.Context, cfg config.Engine) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	return s.saveEngineConfigLocked(cfg)
}

func (s *FileStore) saveEngineConfigLocked(cfg config.Engine) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding engine config: %w", err)
	}
	return s.writeFile(s.ConfigPath(), data)
}

// UpdateEngineConfig applies fn to the current config and saves the result
// if it validates. The stored file is unchanged when fn or validation fails.
func (s *FileStore) UpdateEngineConfig(ctx context.Context, fn func(*config.Engine) error) (config.Engine, error) {
	if err := ctx.Err(); err != nil {
		return config.Engine{}, err
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg, err := s.loadEngineConfigLocked()
	if err != nil {
		return config.Engine{}, err
	}
	if err := fn(&cfg); err != nil {
		return config.Engine{}, err
	}
	if err := s.saveEngineConfigLocked(cfg); err != nil {
		return config.Engine{}, err
	}
	return cfg, nil
}
