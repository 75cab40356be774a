// Package updater provides the Monte Carlo move generators that advance a
// binary energy model by one sweep.
//
// KLocal combines ordinary single flips with periodic deep moves. When a
// variable that is currently 0 has a flat single-flip direction, the deep
// move walks the interaction terms touching it and tries the coordinated flip
// of each term, which lets the search leave the plateaus that higher-order
// models are full of. SingleFlip is the plain Metropolis sweep for models that
// cannot evaluate coordinated flips.
package updater

import (
	"github.com/sarchlab/klocal/hooking"
	"github.com/sarchlab/klocal/model"
)

// KLocal is the two-tier move generator for higher-order binary models.
//
// KLocal holds no state of its own besides its hooks. The call counter and
// the cadence live in the model, so one KLocal may serve many models as long
// as they are not updated concurrently.
type KLocal struct {
	*hooking.HookableBase
}

// NewKLocal creates a KLocal updater.
func NewKLocal() *KLocal {
	return &KLocal{HookableBase: hooking.NewHookableBase()}
}

// Update runs one sweep over the active variables of m. Decisions for later
// variables see the moves committed for earlier ones. The call counter of m
// is incremented exactly once, after the sweep.
func (u *KLocal) Update(
	m model.KLocalModel,
	rng model.UniformSource,
	params model.Params,
) {
	deepMoveCall := m.CallCount()%uint64(m.Cadence()) == 0

	for _, v := range m.ActiveVariables() {
		dE := m.DeltaEnergySingle(v)

		if deepMoveCall && dE == 0.0 && m.Value(v) == 0 {
			u.deepMove(m, v, rng, params.Beta)
			continue
		}

		u.singleMove(m, v, dE, rng, params.Beta)
	}

	m.IncrementCallCount()
}

// deepMove walks the adjacency list of v, giving every term up to the first
// one with a positive priority its own accept or reject decision.
func (u *KLocal) deepMove(
	m model.KLocalModel,
	v int,
	rng model.UniformSource,
	beta float64,
) {
	for _, k := range m.Adjacency(v) {
		if Prune(m.Priority(k)) {
			return
		}

		dE := m.DeltaEnergyKLocal(k)
		candidate := Move{Kind: MoveKLocal, Variable: v, Term: k, DeltaE: dE}

		if Accept(dE, beta, rng) {
			m.CommitKLocalMove()
			report(u, HookPosMoveAccepted, candidate)

			continue
		}

		m.ResetVirtualState()
		report(u, HookPosMoveRejected, candidate)

		m.CommitSingleMove(v)
		report(u, HookPosMoveAccepted, Move{Kind: MoveFallback, Variable: v, Term: -1})
	}
}

func (u *KLocal) singleMove(
	m model.SingleFlipModel,
	v int,
	dE float64,
	rng model.UniformSource,
	beta float64,
) {
	move := Move{Kind: MoveSingle, Variable: v, Term: -1, DeltaE: dE}

	if Accept(dE, beta, rng) {
		m.CommitSingleMove(v)
		report(u, HookPosMoveAccepted, move)

		return
	}

	report(u, HookPosMoveRejected, move)
}

// SingleFlip is the ordinary Metropolis sweep.
type SingleFlip struct {
	*hooking.HookableBase
}

// NewSingleFlip creates a SingleFlip updater.
func NewSingleFlip() *SingleFlip {
	return &SingleFlip{HookableBase: hooking.NewHookableBase()}
}

// Update visits every active variable of m once and flips it when the
// Metropolis criterion accepts the flip.
func (u *SingleFlip) Update(
	m model.SingleFlipModel,
	rng model.UniformSource,
	params model.Params,
) {
	for _, v := range m.ActiveVariables() {
		dE := m.DeltaEnergySingle(v)
		move := Move{Kind: MoveSingle, Variable: v, Term: -1, DeltaE: dE}

		if Accept(dE, params.Beta, rng) {
			m.CommitSingleMove(v)
			report(u, HookPosMoveAccepted, move)

			continue
		}

		report(u, HookPosMoveRejected, move)
	}
}

func report(domain hooking.Hookable, pos *hooking.HookPos, move Move) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   move,
	})
}
