package model

import (
	"math/rand"
	"time"
)

// Clock abstracts wall-clock reads so reservation expiry and meter-value
// timestamps are deterministic under test.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// Rand is the randomness seam for the meter-value synthesizer.
type Rand interface {
	Float64() float64
}

// NewRand returns a process-seeded Rand.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
