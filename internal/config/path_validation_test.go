package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfigPath_RejectsPathTraversal(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"double dot escape", "/etc/patternd../etc/passwd"},
		{"sibling prefix", "/etc/patternd-evil/config.yaml"},
		{"multiple escapes", "/etc/patternd/../../etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateConfigPath(tt.path))
		})
	}
}

func TestValidateConfigPath_AllowsValidPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	validPaths := []string{
		filepath.Join(home, ".config", "patternd", "config.yaml"),
		filepath.Join(home, ".config", "patternd", "subdir", "config.yaml"),
		"/etc/patternd/config.yaml",
	}

	for _, path := range validPaths {
		t.Run(path, func(t *testing.T) {
			assert.NoError(t, validateConfigPath(path))
		})
	}
}

func TestValidateConfigPath_RejectsOutsideAllowedDirs(t *testing.T) {
	for _, path := range []string{"/etc/passwd", "/tmp/config.yaml", "/var/lib/patternd/config.yaml"} {
		t.Run(path, func(t *testing.T) {
			assert.Error(t, validateConfigPath(path))
		})
	}
}
