package updater

import (
	"math"

	"github.com/sarchlab/klocal/model"
)

// Accept applies the Metropolis criterion to an energy change dE. Moves that
// do not raise the energy are always taken and consume no draw. Uphill moves
// are taken when exp(-beta*dE) exceeds a fresh draw from rng.
func Accept(dE, beta float64, rng model.UniformSource) bool {
	if dE <= 0 {
		return true
	}

	return math.Exp(-beta*dE) > rng.Float64()
}

// Prune reports whether a deep move stops walking an adjacency list at a term
// with the given priority.
func Prune(priority float64) bool {
	return priority > 0
}
