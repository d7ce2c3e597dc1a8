package generator

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// batchFile is the on-disk layout of a generated batch.
type batchFile struct {
	Version  int                     `msgpack:"version"`
	Requests []types.RequestEnvelope `msgpack:"requests"`
}

const batchFileVersion = 1

// WriteBatchFile stores a batch as msgpack, replacing path atomically.
func WriteBatchFile(path string, batch []types.RequestEnvelope) error {
	data, err := msgpack.Marshal(batchFile{Version: batchFileVersion, Requests: batch})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp batch: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename batch: %w", err)
	}
	return nil
}

// ReadBatchFile loads a batch written by WriteBatchFile.
func ReadBatchFile(path string) ([]types.RequestEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var f batchFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode batch file %s: %w", path, err)
	}
	if f.Version != batchFileVersion {
		return nil, fmt.Errorf("unsupported batch file version %d", f.Version)
	}
	return f.Requests, nil
}
