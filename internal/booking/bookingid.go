package booking

import (
	"fmt"
	"math/rand/v2"
	"time"
)

type Kind string

const (
	KindAppointment Kind = "appointment"
	KindLabTest     Kind = "lab_test"
)

func (k Kind) prefix() string {
	if k == KindLabTest {
		return "LAB"
	}
	return "APP"
}

// IDGenerator produces display booking identifiers of the form
// <PREFIX><last 6 digits of unix millis><3 digit random>. Only 1000 random
// values exist per millisecond window, so uniqueness is enforced by storage
// and collisions are retried by the caller.
type IDGenerator struct {
	now  func() time.Time
	rand func(n int) int
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now, rand: rand.IntN}
}

func (g *IDGenerator) Generate(kind Kind) string {
	suffix := g.now().UnixMilli() % 1_000_000
	return fmt.Sprintf("%s%06d%03d", kind.prefix(), suffix, g.rand(1000))
}

// Assign stamps *id with a fresh identifier unless one is already present.
func (g *IDGenerator) Assign(kind Kind, id *string) {
	if *id != "" {
		return
	}
	*id = g.Generate(kind)
}
