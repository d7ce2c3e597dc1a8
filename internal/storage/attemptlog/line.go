package attemptlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// FormatLine renders rec in the attempt log format:
//
//	request_id=<id>|tipo=<op>|start=<s>|end=<s>|status=<outcome>|retries=<n>
//
// Timestamps are Unix seconds with six decimals.
func FormatLine(rec types.AttemptRecord) string {
	return fmt.Sprintf("request_id=%s|tipo=%s|start=%.6f|end=%.6f|status=%s|retries=%d",
		rec.RequestID, rec.Operation, rec.Start, rec.End, rec.Outcome, rec.Retries)
}

// linePattern matches a log line. The operation key may be "tipo" or
// "operation" and retries may be absent. Anything before request_id (a
// "PSn|" client tag, a timestamp) and extra trailing key=value fields are
// ignored.
var linePattern = regexp.MustCompile(
	`(?:^|[\s|])request_id=([^|]+)\|(?:tipo|operation)=([^|]+)\|start=([\d.]+)\|end=([\d.]+)\|status=([^|]+)(?:\|retries=(\d+))?(?:\|[^|=]+=[^|]*)*\s*$`)

// ParseLine parses one log line.
// It returns false for lines that do not match; those are skipped, never fatal.
func ParseLine(line string) (types.AttemptRecord, bool) {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return types.AttemptRecord{}, false
	}

	start, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return types.AttemptRecord{}, false
	}
	end, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return types.AttemptRecord{}, false
	}

	retries := 0
	if m[6] != "" {
		if retries, err = strconv.Atoi(m[6]); err != nil {
			return types.AttemptRecord{}, false
		}
	}

	return types.AttemptRecord{
		RequestID: m[1],
		Operation: types.Operation(m[2]),
		Start:     start,
		End:       end,
		Outcome:   types.Outcome(strings.TrimSpace(m[5])),
		Retries:   retries,
	}, true
}
