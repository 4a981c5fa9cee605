// Package regnum generates human-readable registration numbers for requests.
package regnum

import (
	"fmt"
	"math/rand"
	"time"
)

// Generator produces registration numbers of the form REG-YYYYMM-NNNN where
// NNNN is a zero-padded pseudo-random value. Uniqueness is not guaranteed by
// construction; the unique index on the column is the backstop and callers
// see a conflict error when a collision happens.
type Generator struct {
	Now  func() time.Time
	Rand func(n int) int
}

func New() Generator {
	return Generator{Now: time.Now, Rand: rand.Intn}
}

func (g Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g Generator) intn(n int) int {
	if g.Rand != nil {
		return g.Rand(n)
	}
	return rand.Intn(n)
}

// Next returns a new registration number for the current calendar month.
func (g Generator) Next() string {
	t := g.now()
	return fmt.Sprintf("REG-%04d%02d-%04d", t.Year(), int(t.Month()), g.intn(10000))
}
