// Package model defines the contracts between move generators and the energy
// models they mutate.
//
// A model owns every piece of physical state: the binary assignment, the
// interaction terms, the adjacency of variables to terms and any cached energy
// differences. Move generators only read it and ask it to commit moves.
package model

// Params is the parameter bundle handed to a move generator for one sweep.
type Params struct {
	// Beta is the inverse temperature. It is expected to be non-negative;
	// move generators do not check it.
	Beta float64
}

// UniformSource produces independent draws in [0, 1).
type UniformSource interface {
	Float64() float64
}

// SingleFlipModel is the capability every binary model offers: evaluating and
// applying the flip of one variable.
type SingleFlipModel interface {
	// ActiveVariables returns the variables to visit in one sweep, in order.
	// Fixed variables are not part of it. The slice must not change while a
	// sweep runs.
	ActiveVariables() []int

	// Value returns the current binary value (0 or 1) of v.
	Value(v int) int

	// DeltaEnergySingle returns the energy change of flipping v alone.
	DeltaEnergySingle(v int) float64

	// CommitSingleMove flips v.
	CommitSingleMove(v int)
}

// KLocalModel is a higher-order binary model that can also evaluate
// coordinated multi-variable flips driven by its interaction terms.
//
// Adjacency lists must be sorted so that once a term with a non-negative
// priority is seen, no later term of the same list has a negative priority.
// Move generators rely on that order to stop early and never verify it.
type KLocalModel interface {
	SingleFlipModel

	// Adjacency returns the keys of the terms that involve v.
	Adjacency(v int) []int

	// Priority returns the pruning priority of term k.
	Priority(k int) float64

	// DeltaEnergyKLocal stages the coordinated flip associated with term k in
	// a speculative overlay and returns its energy change. Any previously
	// staged candidate is replaced.
	DeltaEnergyKLocal(k int) float64

	// CommitKLocalMove applies the staged candidate and clears the overlay.
	CommitKLocalMove()

	// ResetVirtualState discards the staged candidate without touching the
	// real state.
	ResetVirtualState()

	// Cadence is the period, in updater calls, of deep-move attempts.
	Cadence() int

	// CallCount is the number of completed updater calls.
	CallCount() uint64

	// IncrementCallCount records one more completed updater call.
	IncrementCallCount()
}

// System is a model the annealer can drive and report on.
type System interface {
	SingleFlipModel

	// Name identifies the system, usually the replica it belongs to.
	Name() string

	// Energy returns the energy of the current state.
	Energy() float64

	// State returns a copy of the current binary assignment.
	State() []int
}
