package metrics

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// ErrNoData is returned when there are no records to aggregate.
var ErrNoData = errors.New("metrics: no records")

// MinPeriod floors the observation period so throughput never divides by zero.
const MinPeriod = 1e-6

// SmallSample is the sample size below which p95 is reported as the maximum.
const SmallSample = 20

// LatencyPolicy selects which records contribute latency samples.
type LatencyPolicy int

const (
	// LatencyAll uses every record.
	LatencyAll LatencyPolicy = iota
	// LatencyOKOnly uses only records whose outcome is OK.
	LatencyOKOnly
)

// ScenarioMetrics summarises one set of attempt records.
type ScenarioMetrics struct {
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

	ByOperation map[string]*ScenarioMetrics `json:"by_operation,omitempty"`
}

// Compute aggregates records.
//
// The period spans the earliest to the latest start time. Outcomes other
// than OK, ERROR and TIMEOUT are counted in Other. When the policy leaves
// no latency samples, a single zero sample is used.
//
// Returns:
//   - *ScenarioMetrics: counts, throughput and latency statistics
//   - error: ErrNoData when records is empty
func Compute(records []types.AttemptRecord, policy LatencyPolicy) (*ScenarioMetrics, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	m := &ScenarioMetrics{Total: len(records)}

	first, last := records[0].Start, records[0].Start
	latencies := make([]float64, 0, len(records))
	for _, rec := range records {
		first = math.Min(first, rec.Start)
		last = math.Max(last, rec.Start)

		if !rec.Outcome.Known() {
			m.Other++
		} else {
			switch rec.Outcome {
			case types.OutcomeOK:
				m.OK++
			case types.OutcomeError:
				m.Error++
			case types.OutcomeTimeout:
				m.Timeout++
			}
		}

		if policy == LatencyOKOnly && rec.Outcome != types.OutcomeOK {
			continue
		}
		latencies = append(latencies, rec.Latency())
	}
	if len(latencies) == 0 {
		latencies = append(latencies, 0)
	}

	m.PeriodSeconds = math.Max(last-first, MinPeriod)
	m.Throughput = float64(m.Total) / m.PeriodSeconds

	sort.Float64s(latencies)
	m.LatencyMean = mean(latencies)
	m.LatencyP50 = median(latencies)
	m.LatencyP95 = percentile95(latencies)
	m.LatencyMax = latencies[len(latencies)-1]
	return m, nil
}

// ComputeByOperation computes the overall metrics plus one nested entry per
// operation found in records.
func ComputeByOperation(records []types.AttemptRecord, policy LatencyPolicy) (*ScenarioMetrics, error) {
	m, err := Compute(records, policy)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]types.AttemptRecord)
	for _, rec := range records {
		op := string(rec.Operation)
		groups[op] = append(groups[op], rec)
	}

	m.ByOperation = make(map[string]*ScenarioMetrics, len(groups))
	for op, group := range groups {
		sub, err := Compute(group, policy)
		if err != nil {
			return nil, err
		}
		m.ByOperation[op] = sub
	}
	return m, nil
}

// FilterOperation returns the records whose operation matches op,
// ignoring case.
func FilterOperation(records []types.AttemptRecord, op string) []types.AttemptRecord {
	var out []types.AttemptRecord
	for _, rec := range records {
		if strings.EqualFold(string(rec.Operation), op) {
			out = append(out, rec)
		}
	}
	return out
}

func mean(sorted []float64) float64 {
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile95 uses the exclusive quantile method over 100 cut points.
// Small samples report the maximum instead; the exclusive method
// extrapolates past the data there.
func percentile95(sorted []float64) float64 {
	n := len(sorted)
	if n < SmallSample {
		return sorted[n-1]
	}
	return exclusiveQuantile(sorted, 95, 100)
}

// exclusiveQuantile returns the i-th of the q-1 cut points dividing sorted
// into q intervals, interpolating between order statistics over n+1 ranks.
func exclusiveQuantile(sorted []float64, i, q int) float64 {
	n := len(sorted)
	if n < 2 {
		return sorted[n-1]
	}
	m := n + 1
	j := i * m / q
	if j < 1 {
		j = 1
	} else if j > n-1 {
		j = n - 1
	}
	delta := i*m - j*q
	return (sorted[j-1]*float64(q-delta) + sorted[j]*float64(delta)) / float64(q)
}
