package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CSVHeader is the column order of consolidated CSV reports.
var CSVHeader = []string{
	"escenario", "total", "ok", "error", "timeout",
	"period_s", "tps", "lat_mean_s", "lat_p50_s", "lat_p95_s", "lat_max_s",
}

func f3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// WriteCSV writes a header and one row per scenario.
func WriteCSV(w io.Writer, scenarios []Scenario) error {
	return writeCSV(w, scenarios, true)
}

// AppendCSV writes rows without a header, for appending to an existing report.
func AppendCSV(w io.Writer, scenarios []Scenario) error {
	return writeCSV(w, scenarios, false)
}

func writeCSV(w io.Writer, scenarios []Scenario, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(CSVHeader); err != nil {
			return fmt.Errorf("report: csv header: %w", err)
		}
	}
	for _, r := range Rows(scenarios) {
		record := []string{
			r.Name,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.OK),
			strconv.Itoa(r.Error),
			strconv.Itoa(r.Timeout),
			f3(r.PeriodSeconds),
			f3(r.Throughput),
			f3(r.LatencyMean),
			f3(r.LatencyP50),
			f3(r.LatencyP95),
			f3(r.LatencyMax),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: csv row %s: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMarkdown renders a comparison table followed by the winners and,
// for two scenarios, the relative change of the second against the first.
func WriteMarkdown(w io.Writer, scenarios []Scenario) error {
	cmp := Compare(scenarios)

	var b strings.Builder
	b.WriteString("# Scenario comparison\n\n")
	b.WriteString("| Scenario | Total | OK | ERROR | TIMEOUT | TPS | Lat mean (s) | Lat p95 (s) |\n")
	b.WriteString("|----------|-------|----|-------|---------|-----|--------------|-------------|\n")
	for _, r := range cmp.Rows {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %.2f | %.3f | %.3f |\n",
			r.Name, r.Total, r.OK, r.Error, r.Timeout, r.Throughput, r.LatencyMean, r.LatencyP95)
	}

	if len(cmp.Rows) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "- Best throughput: %s\n", cmp.BestThroughput)
		fmt.Fprintf(&b, "- Best mean latency: %s\n", cmp.BestLatency)
	}
	if cmp.ThroughputDelta != nil {
		a, z := cmp.Rows[0].Name, cmp.Rows[1].Name
		fmt.Fprintf(&b, "- Throughput %s vs %s: %s\n", z, a, cmp.ThroughputDelta)
		fmt.Fprintf(&b, "- Mean latency %s vs %s: %s\n", z, a, cmp.LatencyDelta)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Document is the JSON report envelope.
type Document struct {
	Timestamp    string     `json:"timestamp"`
	NumScenarios int        `json:"num_scenarios"`
	Scenarios    []Scenario `json:"scenarios"`
	Comparison   Comparison `json:"comparison"`
}

// WriteJSON writes scenarios under a timestamped envelope.
func WriteJSON(w io.Writer, scenarios []Scenario, now time.Time) error {
	doc := Document{
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		NumScenarios: len(scenarios),
		Scenarios:    scenarios,
		Comparison:   Compare(scenarios),
	}
	if doc.Scenarios == nil {
		doc.Scenarios = []Scenario{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}
