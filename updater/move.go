package updater

import (
	"sync/atomic"

	"github.com/sarchlab/klocal/hooking"
)

// HookPosMoveAccepted triggers after a move is committed.
var HookPosMoveAccepted = &hooking.HookPos{Name: "MoveAccepted"}

// HookPosMoveRejected triggers after a move is turned down.
var HookPosMoveRejected = &hooking.HookPos{Name: "MoveRejected"}

// MoveKind tells how a move was generated.
type MoveKind int

// Kinds of moves.
const (
	// MoveSingle is an ordinary single-variable flip.
	MoveSingle MoveKind = iota

	// MoveKLocal is a coordinated flip of all the variables of one term.
	MoveKLocal

	// MoveFallback is the single flip committed after a rejected k-local
	// candidate.
	MoveFallback

	numMoveKinds
)

func (k MoveKind) String() string {
	switch k {
	case MoveSingle:
		return "single"
	case MoveKLocal:
		return "k_local"
	case MoveFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MoveKinds lists every kind of move, in declaration order.
func MoveKinds() []MoveKind {
	return []MoveKind{MoveSingle, MoveKLocal, MoveFallback}
}

// A Move is the hook item reported for each decision an updater takes.
type Move struct {
	Kind     MoveKind
	Variable int

	// Term is the key of the term driving a k-local move, -1 otherwise.
	Term int

	// DeltaE is the energy change the decision was based on. Fallback flips
	// are committed without evaluation and report zero.
	DeltaE float64
}

// A MoveCounter is a hook that tallies accepted and rejected moves per kind.
// It is safe to share among updaters running in different goroutines.
type MoveCounter struct {
	accepted [numMoveKinds]atomic.Uint64
	rejected [numMoveKinds]atomic.Uint64
}

// NewMoveCounter creates a MoveCounter with all tallies at zero.
func NewMoveCounter() *MoveCounter {
	return &MoveCounter{}
}

// Func counts the move carried by ctx.
func (c *MoveCounter) Func(ctx hooking.HookCtx) {
	move, ok := ctx.Item.(Move)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosMoveAccepted:
		c.accepted[move.Kind].Add(1)
	case HookPosMoveRejected:
		c.rejected[move.Kind].Add(1)
	}
}

// Accepted returns how many moves of the kind were committed.
func (c *MoveCounter) Accepted(kind MoveKind) uint64 {
	return c.accepted[kind].Load()
}

// Rejected returns how many moves of the kind were turned down.
func (c *MoveCounter) Rejected(kind MoveKind) uint64 {
	return c.rejected[kind].Load()
}

// AcceptanceRate returns the fraction of evaluated moves that were committed.
// Fallback flips are not evaluated and do not count.
func (c *MoveCounter) AcceptanceRate() float64 {
	var accepted, total uint64
	for _, kind := range []MoveKind{MoveSingle, MoveKLocal} {
		accepted += c.Accepted(kind)
		total += c.Accepted(kind) + c.Rejected(kind)
	}

	if total == 0 {
		return 0
	}

	return float64(accepted) / float64(total)
}
