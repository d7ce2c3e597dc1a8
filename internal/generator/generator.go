// ============================================================================
// Request Batch Generator
// ============================================================================
//
// Package: internal/generator
// File: generator.go
// Purpose: Produce a reproducible batch of signed envelopes with a weighted
//          operation mix
//
// Reproducibility:
//   One math/rand stream, seeded once when a seed is supplied, drives both
//   the operation draw and the id draws. Identical (n, seed, mix) inputs
//   give identical operation sequences and identical target/subject ids.
//   Request ids, nonces and timestamps come from the codec and differ.
//
// ============================================================================

package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/envelope"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// ErrInvalidCount is returned for a negative batch size.
var ErrInvalidCount = errors.New("generator: batch size must not be negative")

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

func (r Range) draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// Default id ranges
var (
	DefaultTargetRange  = Range{Min: 1, Max: 1000}
	DefaultSubjectRange = Range{Min: 1, Max: 100}
)

// Options configures GenerateBatch.
type Options struct {
	N            int    // number of envelopes
	Seed         *int64 // nil = nondeterministic
	Mix          string // "70:30" style weights over the codec's operations
	TargetRange  Range
	SubjectRange Range
}

// GenerateBatch builds opts.N signed envelopes in generation order.
func GenerateBatch(codec *envelope.Codec, opts Options) ([]types.RequestEnvelope, error) {
	if opts.N < 0 {
		return nil, ErrInvalidCount
	}
	if opts.TargetRange == (Range{}) {
		opts.TargetRange = DefaultTargetRange
	}
	if opts.SubjectRange == (Range{}) {
		opts.SubjectRange = DefaultSubjectRange
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	ops := codec.Operations()
	weights := ParseMix(opts.Mix, len(ops))

	batch := make([]types.RequestEnvelope, 0, opts.N)
	for i := 0; i < opts.N; i++ {
		op := ops[pick(rng, weights)]
		target := opts.TargetRange.draw(rng)
		subject := opts.SubjectRange.draw(rng)

		env, err := codec.MakeRequest(op, target, subject)
		if err != nil {
			return nil, fmt.Errorf("generator: item %d: %w", i, err)
		}
		batch = append(batch, env)
	}
	return batch, nil
}

// ParseMix parses "a:b[:c...]" into n weights. Wrong arity, non-integer or
// negative entries, and an all-zero set fall back to equal weights.
// A mix with fewer entries than operations is padded with zeros, so "70:30"
// over three operations never draws the third.
func ParseMix(mix string, n int) []int {
	equal := make([]int, n)
	for i := range equal {
		equal[i] = 1
	}
	if n == 0 {
		return equal
	}

	parts := strings.Split(strings.TrimSpace(mix), ":")
	if mix == "" || len(parts) > n {
		return equal
	}

	weights := make([]int, n)
	sum := 0
	for i, p := range parts {
		w, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || w < 0 {
			return equal
		}
		weights[i] = w
		sum += w
	}
	if sum == 0 {
		return equal
	}
	return weights
}

// pick draws an index with probability proportional to its weight.
func pick(rng *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	r := rng.Intn(total) + 1
	for i, w := range weights {
		if r <= w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}
