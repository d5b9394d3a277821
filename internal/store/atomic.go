package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// pendingWrite is a temp file waiting to be renamed over its target.
type pendingWrite struct {
	tmp    string
	target string
}

// stage writes data to a synced temp file next to target.
func stage(target string, data []byte) (pendingWrite, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return pendingWrite{}, fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return pendingWrite{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return pendingWrite{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return pendingWrite{}, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return pendingWrite{}, fmt.Errorf("close temp file: %w", err)
	}

	success = true
	return pendingWrite{tmp: tmpPath, target: target}, nil
}

// commit renames every staged file into place. Staged files that were not
// renamed are removed.
func commit(writes []pendingWrite) error {
	for i, w := range writes {
		if err := os.Rename(w.tmp, w.target); err != nil {
			discard(writes[i:])
			return fmt.Errorf("rename %s: %w", w.target, err)
		}
	}
	return nil
}

func discard(writes []pendingWrite) {
	for _, w := range writes {
		_ = os.Remove(w.tmp)
	}
}

// fileContent is one target path and the bytes it should hold.
type fileContent struct {
	path string
	data []byte
}

// writeFiles stages all targets first and renames only once every temp is durable.
func (s *FileStore) writeFiles(files ...fileContent) error {
	start := time.Now()
	writes := make([]pendingWrite, 0, len(files))
	for _, f := range files {
		w, err := stage(f.path, f.data)
		if err != nil {
			discard(writes)
			writesTotal.WithLabelValues("error").Inc()
			return err
		}
		writes = append(writes, w)
	}
	if err := commit(writes); err != nil {
		writesTotal.WithLabelValues("error").Inc()
		return err
	}
	writesTotal.WithLabelValues("success").Inc()
	writeDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (s *FileStore) writeFile(path string, data []byte) error {
	return s.writeFiles(fileContent{path: path, data: data})
}
