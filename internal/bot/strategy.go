package bot

import (
	"errors"
	"fmt"

	"github.com/mcoot/guessduel-go/internal/dependencies/random"
	"github.com/mcoot/guessduel-go/internal/model"
)

// Strategy names
const (
	StrategyBisect = "bisect"
	StrategyRandom = "random"
)

// ErrUnknownStrategy is returned by New for names it does not know
var ErrUnknownStrategy = errors.New("unknown bot strategy")

// Bounds is the inclusive range the secret is known to lie in
type Bounds struct {
	Low  int
	High int
}

// NewBounds starts from the range announced at game start
func NewBounds(secretRange [2]int) Bounds {
	return Bounds{Low: secretRange[0], High: secretRange[1]}
}

// Observe narrows b using a result seen by either player
func (b Bounds) Observe(guess int, result model.GuessResult) Bounds {
	switch result {
	case model.GuessTooLow:
		b.Low = max(b.Low, guess+1)
	case model.GuessTooHigh:
		b.High = min(b.High, guess-1)
	case model.GuessCorrect:
		b.Low, b.High = guess, guess
	}
	return b
}

// Empty reports whether the observations contradict each other
func (b Bounds) Empty() bool {
	return b.Low > b.High
}

// Strategy defines how a bot chooses its next guess
type Strategy interface {
	// Choose returns a guess within b
	Choose(b Bounds) int
}

// New returns the strategy registered under name
func New(name string, rnd random.Random) (Strategy, error) {
	switch name {
	case StrategyBisect:
		return BisectStrategy{}, nil
	case StrategyRandom:
		return NewRandomStrategy(rnd), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// BisectStrategy always guesses the middle of the remaining range
type BisectStrategy struct{}

// Choose returns the midpoint, rounding down
func (BisectStrategy) Choose(b Bounds) int {
	if b.Empty() {
		return b.Low
	}
	return b.Low + (b.High-b.Low)/2
}
