// Package random provides seed generation and seeded face sources for rolls.
//
// Seeds come from crypto/rand. A seed drives a math/rand generator so that a
// roll can be replayed exactly when the same seed and notation are supplied.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const maxSeedInt64 = uint64(math.MaxInt64)

var errSeedOutOfRange = errors.New("seed must be between 0 and 9223372036854775807")

// ErrSeedOutOfRange reports a client seed that does not fit in an int64.
func ErrSeedOutOfRange() error {
	return errSeedOutOfRange
}

// RollMode tells whether a roll is live or a replay of an earlier roll.
type RollMode string

const (
	RollModeLive   RollMode = "LIVE"
	RollModeReplay RollMode = "REPLAY"
)

// ParseRollMode maps user input to a RollMode; blank input means live.
func ParseRollMode(value string) (RollMode, error) {
	switch RollMode(value) {
	case "", RollModeLive:
		return RollModeLive, nil
	case RollModeReplay:
		return RollModeReplay, nil
	default:
		return "", fmt.Errorf("unknown roll mode %q", value)
	}
}

// SeedSource records who supplied the seed used for a roll.
type SeedSource string

const (
	SeedSourceServer SeedSource = "SERVER"
	SeedSourceClient SeedSource = "CLIENT"
)

// Request carries the optional seed controls sent with a roll.
type Request struct {
	Seed     *uint64
	RollMode RollMode
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:]) & maxSeedInt64), nil
}

// ResolveSeed picks the seed for a roll. The client seed is used only when
// allowClientSeed accepts the requested mode; otherwise seedFunc supplies one.
func ResolveSeed(req *Request, seedFunc func() (int64, error), allowClientSeed func(RollMode) bool) (int64, SeedSource, RollMode, error) {
	mode := RollModeLive
	if req != nil && req.RollMode != "" {
		mode = req.RollMode
	}

	if req != nil && req.Seed != nil && allowClientSeed != nil && allowClientSeed(mode) {
		if *req.Seed > maxSeedInt64 {
			return 0, "", mode, errSeedOutOfRange
		}
		return int64(*req.Seed), SeedSourceClient, mode, nil
	}

	if seedFunc == nil {
		return 0, "", mode, errors.New("seed generator is not configured")
	}
	seed, err := seedFunc()
	if err != nil {
		return 0, "", mode, fmt.Errorf("generate seed: %w", err)
	}
	return seed, SeedSourceServer, mode, nil
}

// AllowReplay accepts client seeds only for replayed rolls.
func AllowReplay(mode RollMode) bool {
	return mode == RollModeReplay
}

// Source draws faces from a seeded generator. It is not safe for concurrent
// use; build one per roll.
type Source struct {
	rng *rand.Rand
}

// NewSource creates a deterministic source for seed.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// IntRange returns a value in [lo, hi].
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}
