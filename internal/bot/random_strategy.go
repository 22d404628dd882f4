package bot

import (
	"github.com/mcoot/guessduel-go/internal/dependencies/random"
)

// RandomStrategy picks a uniform guess from the remaining range
type RandomStrategy struct {
	random random.Random
}

// NewRandomStrategy creates a new RandomStrategy
func NewRandomStrategy(rnd random.Random) *RandomStrategy {
	return &RandomStrategy{random: rnd}
}

// Choose returns a random value in b
func (s *RandomStrategy) Choose(b Bounds) int {
	return random.Between(s.random, b.Low, b.High)
}
