package polynomial

import (
	"cmp"
	"fmt"
	"log"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sarchlab/klocal/model"
)

// System is a higher-order binary energy model. It implements
// model.KLocalModel and model.System.
//
// Each term keeps the number of its variables that are currently 0, so a
// term contributes to the energy exactly when that count is 0. Coordinated
// flips are evaluated on an overlay that patches variable values and zero
// counts without touching the real state.
type System struct {
	name string

	binaries  []int
	keys      [][]int
	values    []float64
	offset    float64
	zeroCount []int
	adj       [][]int
	active    []int
	fixed     mapset.Set[int]

	cadence   int
	callCount uint64

	virtual overlay
}

// overlay is a delta patch over the real state. Only variables flipped to 1
// and the zero counts of their terms are stored.
type overlay struct {
	flipped   []int
	binaries  map[int]int
	zeroCount map[int]int
}

func (o *overlay) clear() {
	o.flipped = o.flipped[:0]
	clear(o.binaries)
	clear(o.zeroCount)
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// NumVariables returns the number of variables, fixed ones included.
func (s *System) NumVariables() int {
	return len(s.binaries)
}

// ActiveVariables returns the variables that are not fixed, ascending.
func (s *System) ActiveVariables() []int {
	return s.active
}

// Value returns the current value of v.
func (s *System) Value(v int) int {
	return s.binaries[v]
}

// State returns a copy of the current assignment.
func (s *System) State() []int {
	return slices.Clone(s.binaries)
}

// SetState replaces the current assignment. Fixed variables must keep their
// values. Any staged candidate is discarded.
func (s *System) SetState(x []int) error {
	if len(x) != len(s.binaries) {
		return fmt.Errorf("%w: %d values for %d variables",
			ErrInvalidState, len(x), len(s.binaries))
	}

	for v, b := range x {
		if b != 0 && b != 1 {
			return fmt.Errorf("%w: variable %d is %d", ErrInvalidState, v, b)
		}

		if s.fixed.Contains(v) && b != s.binaries[v] {
			return fmt.Errorf("%w: variable %d is fixed", ErrInvalidState, v)
		}
	}

	s.virtual.clear()

	for v, b := range x {
		if b != s.binaries[v] {
			s.flip(v)
		}
	}

	return nil
}

// Energy returns the energy of the current assignment.
func (s *System) Energy() float64 {
	energy := s.offset
	for k, zeros := range s.zeroCount {
		if zeros == 0 {
			energy += s.values[k]
		}
	}

	return energy
}

// DeltaEnergySingle returns the energy change of flipping v.
func (s *System) DeltaEnergySingle(v int) float64 {
	b := s.binaries[v]

	sum := 0.0
	for _, k := range s.adj[v] {
		if s.zeroCount[k]-(1-b) == 0 {
			sum += s.values[k]
		}
	}

	return float64(1-2*b) * sum
}

// CommitSingleMove flips v. Flipping a fixed variable panics.
func (s *System) CommitSingleMove(v int) {
	if s.fixed.Contains(v) {
		log.Panicf("%s: variable %d is fixed", s.name, v)
	}

	s.flip(v)
}

func (s *System) flip(v int) {
	if s.binaries[v] == 0 {
		s.binaries[v] = 1
		for _, k := range s.adj[v] {
			s.zeroCount[k]--
		}

		return
	}

	s.binaries[v] = 0
	for _, k := range s.adj[v] {
		s.zeroCount[k]++
	}
}

// Adjacency returns the keys of the terms containing v, sorted by ascending
// coefficient.
func (s *System) Adjacency(v int) []int {
	return s.adj[v]
}

// Priority returns the coefficient of term k. Terms with a positive
// coefficient can only raise the energy when they turn on.
func (s *System) Priority(k int) float64 {
	return s.values[k]
}

// DeltaEnergyKLocal stages setting every variable of term k to 1 and returns
// the energy change. Variables of the term that are already 1 are left
// alone. A term that needs a fixed variable to change is infeasible and
// yields +Inf with an empty overlay.
func (s *System) DeltaEnergyKLocal(k int) float64 {
	s.virtual.clear()

	dE := 0.0
	for _, v := range s.keys[k] {
		if s.virtualValue(v) == 1 {
			continue
		}

		if s.fixed.Contains(v) {
			s.virtual.clear()
			return math.Inf(1)
		}

		dE += s.virtualDelta(v)
		s.virtualFlip(v)
	}

	return dE
}

func (s *System) virtualValue(v int) int {
	if b, ok := s.virtual.binaries[v]; ok {
		return b
	}

	return s.binaries[v]
}

func (s *System) virtualZeroCount(k int) int {
	if zeros, ok := s.virtual.zeroCount[k]; ok {
		return zeros
	}

	return s.zeroCount[k]
}

func (s *System) virtualDelta(v int) float64 {
	b := s.virtualValue(v)

	sum := 0.0
	for _, k := range s.adj[v] {
		if s.virtualZeroCount(k)-(1-b) == 0 {
			sum += s.values[k]
		}
	}

	return float64(1-2*b) * sum
}

// virtualFlip sets v to 1 in the overlay. v must be 0 there.
func (s *System) virtualFlip(v int) {
	s.virtual.binaries[v] = 1
	for _, k := range s.adj[v] {
		s.virtual.zeroCount[k] = s.virtualZeroCount(k) - 1
	}

	s.virtual.flipped = append(s.virtual.flipped, v)
}

// CommitKLocalMove applies the staged candidate to the real state.
func (s *System) CommitKLocalMove() {
	for _, v := range s.virtual.flipped {
		s.flip(v)
	}

	s.virtual.clear()
}

// ResetVirtualState discards the staged candidate.
func (s *System) ResetVirtualState() {
	s.virtual.clear()
}

// Cadence returns the deep-move period.
func (s *System) Cadence() int {
	return s.cadence
}

// CallCount returns the number of completed updater calls.
func (s *System) CallCount() uint64 {
	return s.callCount
}

// IncrementCallCount records one more completed updater call.
func (s *System) IncrementCallCount() {
	s.callCount++
}

// Builder can build Systems.
type Builder struct {
	cadence int
	initial []int
	fixed   map[int]int
}

// MakeBuilder returns a Builder with a cadence of 10 and an all-zero initial
// state.
func MakeBuilder() Builder {
	return Builder{
		cadence: 10,
	}
}

// WithCadence sets how often, in updater calls, deep moves are attempted.
func (b Builder) WithCadence(cadence int) Builder {
	b.cadence = cadence
	return b
}

// WithInitialState sets the starting assignment.
func (b Builder) WithInitialState(x []int) Builder {
	b.initial = x
	return b
}

// WithFixed clamps variables to the given values. Fixed variables are never
// visited by updaters.
func (b Builder) WithFixed(values map[int]int) Builder {
	b.fixed = values
	return b
}

// Build creates a System for a binary polynomial. The polynomial is
// normalized first; its non-constant terms then get the keys 0, 1, ... in
// order. Invalid configuration panics.
func (b Builder) Build(name string, p Polynomial) *System {
	b.mustBeValid(p)

	p = p.Normalize()
	n := p.NumVariables

	s := &System{
		name:     name,
		binaries: make([]int, n),
		adj:      make([][]int, n),
		fixed:    mapset.NewThreadUnsafeSet[int](),
		cadence:  b.cadence,
		virtual: overlay{
			binaries:  make(map[int]int),
			zeroCount: make(map[int]int),
		},
	}

	if b.initial != nil {
		copy(s.binaries, b.initial)
	}

	for v, value := range b.fixed {
		s.binaries[v] = value
		s.fixed.Add(v)
	}

	for _, t := range p.Terms {
		if len(t.Vars) == 0 {
			s.offset += t.Value
			continue
		}

		k := len(s.keys)
		s.keys = append(s.keys, t.Vars)
		s.values = append(s.values, t.Value)

		zeros := 0
		for _, v := range t.Vars {
			s.adj[v] = append(s.adj[v], k)
			if s.binaries[v] == 0 {
				zeros++
			}
		}

		s.zeroCount = append(s.zeroCount, zeros)
	}

	for v := range s.adj {
		slices.SortStableFunc(s.adj[v], func(k1, k2 int) int {
			return cmp.Compare(s.values[k1], s.values[k2])
		})

		if !s.fixed.Contains(v) {
			s.active = append(s.active, v)
		}
	}

	return s
}

func (b Builder) mustBeValid(p Polynomial) {
	if err := p.Validate(); err != nil {
		log.Panic(err)
	}

	if p.VarType != Binary {
		log.Panicf("system needs a BINARY polynomial, got %s", p.VarType)
	}

	if b.cadence <= 0 {
		log.Panicf("cadence must be positive, got %d", b.cadence)
	}

	if b.initial != nil && len(b.initial) != p.NumVariables {
		log.Panicf("initial state has %d values, want %d",
			len(b.initial), p.NumVariables)
	}

	for _, x := range b.initial {
		mustBeBinary(x)
	}

	for v, x := range b.fixed {
		if v < 0 || v >= p.NumVariables {
			log.Panicf("fixed variable %d out of range", v)
		}

		mustBeBinary(x)
	}
}

func mustBeBinary(x int) {
	if x != 0 && x != 1 {
		log.Panicf("value %d is not binary", x)
	}
}

var (
	_ model.KLocalModel = (*System)(nil)
	_ model.System      = (*System)(nil)
)
