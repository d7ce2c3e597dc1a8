package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeKnown(t *testing.T) {
	for _, o := range []Outcome{OutcomeOK, OutcomeError, OutcomeTimeout} {
		assert.True(t, o.Known(), "%s", o)
	}
	for _, o := range []Outcome{"", "ok", "MAYBE", "FAILED"} {
		assert.False(t, o.Known(), "%q", o)
	}
}

func TestAttemptRecordLatency(t *testing.T) {
	rec := AttemptRecord{Start: 10.25, End: 10.75}
	assert.InDelta(t, 0.5, rec.Latency(), 1e-9)
}
