// Package schedule produces the inverse-temperature trajectories that drive
// an annealing run.
package schedule

import (
	"log"
	"math"
)

// A Step runs Sweeps sweeps at inverse temperature Beta.
type Step struct {
	Beta   float64
	Sweeps int
}

// A Schedule is the ordered list of steps of one run.
type Schedule []Step

// TotalSweeps returns the number of sweeps over all steps.
func (s Schedule) TotalSweeps() int {
	total := 0
	for _, step := range s {
		total += step.Sweeps
	}

	return total
}

// Geometric grows beta geometrically from betaMin to betaMax over points
// steps of sweepsPerPoint sweeps each. A single point runs at betaMax.
func Geometric(betaMin, betaMax float64, points, sweepsPerPoint int) Schedule {
	mustBeValid(betaMin, betaMax, points, sweepsPerPoint)

	if betaMin <= 0 {
		log.Panicf("geometric schedule needs a positive beta_min, got %g", betaMin)
	}

	if points == 1 {
		return Schedule{{Beta: betaMax, Sweeps: sweepsPerPoint}}
	}

	ratio := math.Pow(betaMax/betaMin, 1/float64(points-1))

	s := make(Schedule, points)
	beta := betaMin
	for i := range s {
		s[i] = Step{Beta: beta, Sweeps: sweepsPerPoint}
		beta *= ratio
	}

	s[points-1].Beta = betaMax

	return s
}

// Linear grows beta linearly from betaMin to betaMax over points steps of
// sweepsPerPoint sweeps each. A single point runs at betaMax.
func Linear(betaMin, betaMax float64, points, sweepsPerPoint int) Schedule {
	mustBeValid(betaMin, betaMax, points, sweepsPerPoint)

	if points == 1 {
		return Schedule{{Beta: betaMax, Sweeps: sweepsPerPoint}}
	}

	s := make(Schedule, points)
	for i := range s {
		frac := float64(i) / float64(points-1)
		s[i] = Step{Beta: betaMin + frac*(betaMax-betaMin), Sweeps: sweepsPerPoint}
	}

	return s
}

// Constant runs all sweeps at the same beta.
func Constant(beta float64, sweeps int) Schedule {
	mustBeValid(beta, beta, 1, sweeps)

	return Schedule{{Beta: beta, Sweeps: sweeps}}
}

func mustBeValid(betaMin, betaMax float64, points, sweepsPerPoint int) {
	if betaMin < 0 || betaMax < betaMin {
		log.Panicf("need 0 <= beta_min <= beta_max, got %g and %g",
			betaMin, betaMax)
	}

	if points <= 0 || sweepsPerPoint <= 0 {
		log.Panicf("need positive points and sweeps per point, got %d and %d",
			points, sweepsPerPoint)
	}
}
