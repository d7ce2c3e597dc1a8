package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/storage/attemptlog"
)

// DefaultLogPattern matches per-scenario attempt logs.
const DefaultLogPattern = "ps_logs*.txt"

// DiscoverLogs returns the files in dir matching pattern, sorted by name.
// A missing directory yields no files and no error.
func DiscoverLogs(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultLogPattern
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("report: pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ScenarioName derives a scenario name from a log path (base name without extension).
func ScenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadScenario parses the log at path and computes its metrics with a
// per-operation breakdown.
func LoadScenario(path string, policy metrics.LatencyPolicy) (Scenario, error) {
	records, err := attemptlog.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	if len(records) == 0 {
		return Scenario{}, fmt.Errorf("%w: %s", attemptlog.ErrEmptyLog, path)
	}
	m, err := metrics.ComputeByOperation(records, policy)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{Name: ScenarioName(path), Metrics: m}, nil
}

// Consolidate loads every log matching pattern in dir. Logs without valid
// records are skipped with a warning.
func Consolidate(dir, pattern string, policy metrics.LatencyPolicy, logger *zap.Logger) ([]Scenario, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, err := DiscoverLogs(dir, pattern)
	if err != nil {
		return nil, err
	}

	scenarios := make([]Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path, policy)
		if err != nil {
			logger.Warn("skipping log", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Info("scenario loaded",
			zap.String("scenario", s.Name),
			zap.Int("total", s.Metrics.Total),
			zap.Int("ok", s.Metrics.OK),
			zap.Float64("tps", s.Metrics.Throughput))
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
