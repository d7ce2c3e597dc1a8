package attemptlog

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// RecordHandler receives each parsed record in file order.
type RecordHandler func(rec types.AttemptRecord) error

// Replay parses r line by line and calls handler for every valid record.
// Malformed lines are skipped and counted.
//
// Returns:
//
//	skipped - number of lines that did not parse
//	error   - read error or the first handler error
func Replay(r io.Reader, handler RecordHandler) (skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, ok := ParseLine(line)
		if !ok {
			skipped++
			continue
		}
		if err := handler(rec); err != nil {
			return skipped, err
		}
	}
	if err := scanner.Err(); err != nil {
		return skipped, fmt.Errorf("attemptlog: read: %w", err)
	}
	return skipped, nil
}

// Read collects every valid record from r.
func Read(r io.Reader) ([]types.AttemptRecord, error) {
	var records []types.AttemptRecord
	_, err := Replay(r, func(rec types.AttemptRecord) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// ReadFile collects every valid record from the log at path.
func ReadFile(path string) ([]types.AttemptRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("attemptlog: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
