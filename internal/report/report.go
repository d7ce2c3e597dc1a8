// ============================================================================
// Scenario Consolidator
// ============================================================================
//
// Package: internal/report
// File: report.go
// Purpose: rank scenarios and compare two runs
//
// Throughput and mean latency are ranked independently: the highest
// throughput wins one, the lowest mean latency wins the other. With exactly
// two scenarios the second is also expressed relative to the first as a
// signed percentage, (b-a)/a*100. A zero baseline has no percentage and is
// reported as not computable.
//
// ============================================================================

package report

import (
	"fmt"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/metrics"
)

// Scenario is a named metrics set, usually one log file.
type Scenario struct {
	Name    string                   `json:"name"`
	Metrics *metrics.ScenarioMetrics `json:"metrics"`
}

// Delta is a relative change in percent.
type Delta struct {
	Value      float64 `json:"value"`
	Computable bool    `json:"computable"`
}

func (d Delta) String() string {
	if !d.Computable {
		return "not computable"
	}
	return fmt.Sprintf("%+.1f%%", d.Value)
}

// Comparison is the result of Compare.
type Comparison struct {
	BestThroughput string `json:"best_throughput"`
	BestLatency    string `json:"best_latency"`

	// Set only when exactly two scenarios are compared.
	ThroughputDelta *Delta `json:"throughput_delta,omitempty"`
	LatencyDelta    *Delta `json:"latency_delta,omitempty"`

	Rows []Row `json:"rows"`
}

// Row is the flat machine-readable form of one scenario.
type Row struct {
	Name          string  `json:"name"`
	Total         int     `json:"total"`
	OK            int     `json:"ok"`
	Error         int     `json:"error"`
	Timeout       int     `json:"timeout"`
	Other         int     `json:"other"`
	PeriodSeconds float64 `json:"period_s"`
	Throughput    float64 `json:"tps"`
	LatencyMean   float64 `json:"lat_mean_s"`
	LatencyP50    float64 `json:"lat_p50_s"`
	LatencyP95    float64 `json:"lat_p95_s"`
	LatencyMax    float64 `json:"lat_max_s"`
}

// Rows flattens scenarios in order, skipping those without metrics.
func Rows(scenarios []Scenario) []Row {
	rows := make([]Row, 0, len(scenarios))
	for _, s := range scenarios {
		if s.Metrics == nil {
			continue
		}
		m := s.Metrics
		rows = append(rows, Row{
			Name:          s.Name,
			Total:         m.Total,
			OK:            m.OK,
			Error:         m.Error,
			Timeout:       m.Timeout,
			Other:         m.Other,
			PeriodSeconds: m.PeriodSeconds,
			Throughput:    m.Throughput,
			LatencyMean:   m.LatencyMean,
			LatencyP50:    m.LatencyP50,
			LatencyP95:    m.LatencyP95,
			LatencyMax:    m.LatencyMax,
		})
	}
	return rows
}

// Compare ranks scenarios by throughput and by mean latency.
// Ties keep the earlier scenario.
func Compare(scenarios []Scenario) Comparison {
	rows := Rows(scenarios)
	c := Comparison{Rows: rows}
	if len(rows) == 0 {
		return c
	}

	best, fastest := rows[0], rows[0]
	for _, r := range rows[1:] {
		if r.Throughput > best.Throughput {
			best = r
		}
		if r.LatencyMean < fastest.LatencyMean {
			fastest = r
		}
	}
	c.BestThroughput = best.Name
	c.BestLatency = fastest.Name

	if len(rows) == 2 {
		a, b := rows[0], rows[1]
		tps := PercentChange(a.Throughput, b.Throughput)
		lat := PercentChange(a.LatencyMean, b.LatencyMean)
		c.ThroughputDelta = &tps
		c.LatencyDelta = &lat
	}
	return c
}

// PercentChange returns (b-a)/a*100, or a non-computable Delta when a is zero.
func PercentChange(a, b float64) Delta {
	if a == 0 {
		return Delta{}
	}
	return Delta{Value: (b - a) / a * 100, Computable: true}
}
