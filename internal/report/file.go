package report

// ============================================================================
// Report Files
// Responsibility:
// 1. Write report files atomically (temp file + rename)
// 2. Optionally keep the previous report as a timestamped backup
// ============================================================================

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWriter writes report files into one directory.
type FileWriter struct {
	dir        string
	keepBackup bool
	now        func() time.Time

	mu sync.Mutex
}

// NewFileWriter creates a writer for dir. With keepBackup an existing file
// is renamed to <name>.<timestamp> before being replaced.
func NewFileWriter(dir string, keepBackup bool) *FileWriter {
	return &FileWriter{dir: dir, keepBackup: keepBackup, now: time.Now}
}

// Write renders into <dir>/<name> atomically.
//
// The content goes to a temporary file first and is renamed over the
// target only after render succeeded, so readers never see a half report.
//
// Parameters:
//   - name: file name inside the writer's directory
//   - render: writes the report body
//
// Returns:
//   - string: final path
//   - error: render, write or rename failure
func (fw *FileWriter) Write(name string, render func(w io.Writer) error) (string, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	path := filepath.Join(fw.dir, name)
	tmp, err := os.CreateTemp(fw.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("report: create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	bw := bufio.NewWriter(tmp)
	if err := render(bw); err != nil {
		cleanup()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return "", fmt.Errorf("report: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("report: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: chmod %s: %w", name, err)
	}

	if fw.keepBackup && exists(path) {
		backup := fmt.Sprintf("%s.%s", path, fw.now().Format("20060102_150405"))
		if err := os.Rename(path, backup); err != nil {
			os.Remove(tmpPath)
			return "", fmt.Errorf("report: backup %s: %w", name, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: rename %s: %w", name, err)
	}
	return path, nil
}

// Dir returns the output directory.
func (fw *FileWriter) Dir() string {
	return fw.dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
