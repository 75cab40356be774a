// Package ising provides a quadratic spin model for the single-flip updater.
package ising

import (
	"log"

	"github.com/sarchlab/klocal/model"
	"github.com/sarchlab/klocal/polynomial"
)

type coupling struct {
	neighbor int
	j        float64
}

// System is the energy model
//
//	E(s) = offset + sum_i h_i s_i + sum_{i<j} J_ij s_i s_j,  s_i in {-1, +1}.
//
// It reports spins to updaters as binary values, 0 for -1 and 1 for +1, and
// only supports single flips.
type System struct {
	name string

	spins     []int
	h         []float64
	couplings [][]coupling
	offset    float64
	active    []int
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// ActiveVariables returns all the spins, ascending.
func (s *System) ActiveVariables() []int {
	return s.active
}

// Value returns 1 when spin v is up and 0 when it is down.
func (s *System) Value(v int) int {
	return (s.spins[v] + 1) / 2
}

// Spin returns spin v as -1 or +1.
func (s *System) Spin(v int) int {
	return s.spins[v]
}

// State returns the spins encoded as binary values.
func (s *System) State() []int {
	x := make([]int, len(s.spins))
	for v := range s.spins {
		x[v] = s.Value(v)
	}

	return x
}

// Energy returns the energy of the current spins.
func (s *System) Energy() float64 {
	energy := s.offset
	for i, si := range s.spins {
		energy += s.h[i] * float64(si)

		for _, c := range s.couplings[i] {
			if c.neighbor > i {
				energy += c.j * float64(si*s.spins[c.neighbor])
			}
		}
	}

	return energy
}

// DeltaEnergySingle returns the energy change of flipping spin v.
func (s *System) DeltaEnergySingle(v int) float64 {
	field := s.h[v]
	for _, c := range s.couplings[v] {
		field += c.j * float64(s.spins[c.neighbor])
	}

	return -2 * float64(s.spins[v]) * field
}

// CommitSingleMove flips spin v.
func (s *System) CommitSingleMove(v int) {
	s.spins[v] = -s.spins[v]
}

// Builder can build Systems.
type Builder struct {
	initial []int
}

// MakeBuilder returns a Builder that starts every spin down.
func MakeBuilder() Builder {
	return Builder{}
}

// WithInitialState sets the starting spins, encoded as binary values.
func (b Builder) WithInitialState(x []int) Builder {
	b.initial = x
	return b
}

// Build creates a System from a spin polynomial of degree at most 2.
// Anything else panics.
func (b Builder) Build(name string, p polynomial.Polynomial) *System {
	if err := p.Validate(); err != nil {
		log.Panic(err)
	}

	if p.VarType != polynomial.Spin || p.Degree() > 2 {
		log.Panicf("ising system needs a SPIN polynomial of degree <= 2, "+
			"got %s of degree %d", p.VarType, p.Degree())
	}

	if b.initial != nil && len(b.initial) != p.NumVariables {
		log.Panicf("initial state has %d values, want %d",
			len(b.initial), p.NumVariables)
	}

	p = p.Normalize()
	n := p.NumVariables

	s := &System{
		name:      name,
		spins:     make([]int, n),
		h:         make([]float64, n),
		couplings: make([][]coupling, n),
	}

	for v := range s.spins {
		s.spins[v] = -1
		if b.initial != nil && b.initial[v] == 1 {
			s.spins[v] = 1
		}

		s.active = append(s.active, v)
	}

	for _, t := range p.Terms {
		switch len(t.Vars) {
		case 0:
			s.offset += t.Value
		case 1:
			s.h[t.Vars[0]] += t.Value
		case 2:
			i, j := t.Vars[0], t.Vars[1]
			s.couplings[i] = append(s.couplings[i], coupling{neighbor: j, j: t.Value})
			s.couplings[j] = append(s.couplings[j], coupling{neighbor: i, j: t.Value})
		}
	}

	return s
}

var _ model.System = (*System)(nil)
