package genome

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"seekers/internal/model"
)

// Direction is one movement command. The ordinal order matters for mutation.
type Direction uint8

const (
	Up Direction = iota
	Right
	Down
	Left
)

// NumDirections is the size of the command alphabet.
const NumDirections = 4

var ErrLengthMismatch = errors.New("genome length mismatch")

var directionCodes = [NumDirections]byte{'U', 'R', 'D', 'L'}

// Screen coordinates: Y grows downward.
var unitVectors = [NumDirections]model.Vec2{
	Up:    {Y: -1},
	Right: {X: 1},
	Down:  {Y: 1},
	Left:  {X: -1},
}

func (d Direction) Valid() bool {
	return d < NumDirections
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Velocity returns the unit vector of d scaled by speed.
func (d Direction) Velocity(speed float64) model.Vec2 {
	if !d.Valid() {
		return model.Vec2{}
	}
	return unitVectors[d].Scale(speed)
}

// Perturb moves d one step along the ordinal scale. The low end always moves
// up, the high end always moves down, anything else goes either way with
// equal probability.
func (d Direction) Perturb(rng *rand.Rand) Direction {
	switch {
	case d == Up:
		return d + 1
	case d == Left:
		return d - 1
	case rng.Intn(2) == 1:
		return d + 1
	default:
		return d - 1
	}
}

// Genome is an ordered, fixed-length sequence of movement commands.
type Genome []Direction

// Random returns n independent, uniformly drawn directions.
func Random(rng *rand.Rand, n int) Genome {
	g := make(Genome, n)
	for i := range g {
		g[i] = Direction(rng.Intn(NumDirections))
	}
	return g
}

func (g Genome) Clone() Genome {
	return append(Genome(nil), g...)
}

// Crossover performs single-point crossover at floor(len/2). The child owns
// fresh storage; neither parent is modified.
func Crossover(a, b Genome) (Genome, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	mid := len(a) / 2
	child := make(Genome, len(a))
	copy(child[:mid], a[:mid])
	copy(child[mid:], b[mid:])
	return child, nil
}

// Mutate perturbs every position independently with probability rate and
// returns the indices that changed.
func (g Genome) Mutate(rng *rand.Rand, rate float64) []int {
	var changed []int
	for i := range g {
		if rng.Float64() < rate {
			g[i] = g[i].Perturb(rng)
			changed = append(changed, i)
		}
	}
	return changed
}

// String encodes the genome as one letter per command (U, R, D, L).
func (g Genome) String() string {
	var sb strings.Builder
	sb.Grow(len(g))
	for _, d := range g {
		if d.Valid() {
			sb.WriteByte(directionCodes[d])
		} else {
			sb.WriteByte('?')
		}
	}
	return sb.String()
}
