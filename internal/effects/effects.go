// Package effects plans the visual transition played on every advance.
package effects

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Mode selects how a transition vector is derived.
type Mode int

const (
	// Directional slides horizontally in the navigation direction.
	Directional Mode = iota
	// RandomizedExit throws the outgoing asset towards a random exit point.
	RandomizedExit
)

func (m Mode) String() string {
	switch m {
	case Directional:
		return "directional"
	case RandomizedExit:
		return "random-exit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "directional", "slide":
		return Directional, nil
	case "random-exit", "random", "randomized-exit":
		return RandomizedExit, nil
	}
	return Directional, fmt.Errorf("unknown transition mode %q", s)
}

// Vector is a displacement in display pixels plus a rotation in degrees.
type Vector struct {
	DX, DY   float64
	Rotation float64
}

// Neg returns the opposite displacement. Rotation is mirrored too.
func (v Vector) Neg() Vector {
	return Vector{DX: -v.DX, DY: -v.DY, Rotation: -v.Rotation}
}

// Scale multiplies the displacement and rotation by t.
func (v Vector) Scale(t float64) Vector {
	return Vector{DX: v.DX * t, DY: v.DY * t, Rotation: v.Rotation * t}
}

// Transition is the ephemeral description of one advance animation.
type Transition struct {
	Mode      Mode
	Direction int
	Vector    Vector
}

// Enter is the offset the incoming asset starts from.
func (t Transition) Enter() Vector {
	if t.Mode == RandomizedExit {
		return Vector{}
	}
	return t.Vector
}

// Exit is the offset the outgoing asset ends at.
func (t Transition) Exit() Vector {
	if t.Mode == RandomizedExit {
		return t.Vector
	}
	return t.Vector.Neg()
}

// Pops reports whether the incoming asset zooms in from a small scale
// instead of sliding.
func (t Transition) Pops() bool { return t.Mode == RandomizedExit }

// DefaultSlideDistance is the horizontal travel of a directional slide.
const DefaultSlideDistance = 1000

// DefaultExitPalette holds the six exit points of the randomized mode.
var DefaultExitPalette = []Vector{
	{DX: -1200, DY: -1200, Rotation: -90},
	{DX: 1200, DY: -1200, Rotation: 90},
	{DX: -1200, DY: 1200, Rotation: -45},
	{DX: 1200, DY: 1200, Rotation: 45},
	{DX: 0, DY: -1500, Rotation: 0},
	{DX: 0, DY: 1500, Rotation: 180},
}

// RandomSource is the injected source of randomness for exit selection.
type RandomSource interface {
	Intn(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// NewSeededSource returns a goroutine-safe deterministic source.
func NewSeededSource(seed int64) RandomSource {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// NewTimeSource seeds from the wall clock.
func NewTimeSource() RandomSource {
	return NewSeededSource(time.Now().UnixNano())
}

// Planner computes a Transition for every advance.
type Planner struct {
	distance float64
	palette  []Vector
	rnd      RandomSource
}

// NewPlanner returns a planner. A non-positive distance, an empty palette or
// a nil source fall back to the defaults.
func NewPlanner(distance float64, palette []Vector, rnd RandomSource) *Planner {
	if distance <= 0 {
		distance = DefaultSlideDistance
	}
	if len(palette) == 0 {
		palette = DefaultExitPalette
	}
	if rnd == nil {
		rnd = NewTimeSource()
	}
	p := make([]Vector, len(palette))
	copy(p, palette)
	return &Planner{distance: distance, palette: p, rnd: rnd}
}

// Plan returns the transition for an advance by direction (+1 or -1).
func (p *Planner) Plan(direction int, mode Mode) Transition {
	dir := 1
	if direction < 0 {
		dir = -1
	}
	tr := Transition{Mode: mode, Direction: dir}
	switch mode {
	case RandomizedExit:
		tr.Vector = p.palette[p.rnd.Intn(len(p.palette))]
	default:
		tr.Mode = Directional
		tr.Vector = Vector{DX: float64(dir) * p.distance}
	}
	return tr
}
