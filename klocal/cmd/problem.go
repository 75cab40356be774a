package cmd

import (
	"fmt"
	"strconv"

	"github.com/sarchlab/klocal/annealing"
	"github.com/sarchlab/klocal/ising"
	"github.com/sarchlab/klocal/model"
	"github.com/sarchlab/klocal/polynomial"
	"github.com/sarchlab/klocal/randsrc"
)

// Model kinds picked for a problem.
const (
	kindPolynomial = "polynomial"
	kindIsing      = "ising"
)

// problem is a loaded problem together with how to build its replicas.
type problem struct {
	name    string
	varType polynomial.VarType
	kind    string
	factory annealing.Factory
}

// newProblem picks the model for p by what it needs. Binary polynomials get
// the k-local system. Quadratic spin problems without fixed variables get the
// Ising model; other spin problems are rewritten over binary variables.
// Fixed values are given as binary values, 0 for spin -1 and 1 for spin +1.
func newProblem(
	name string,
	p polynomial.Polynomial,
	cadence int,
	fixed map[int]int,
) (*problem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	for v, x := range fixed {
		if v < 0 || v >= p.NumVariables {
			return nil, fmt.Errorf("fixed variable %d: %w",
				v, polynomial.ErrVariableOutOfRange)
		}

		if x != 0 && x != 1 {
			return nil, fmt.Errorf("fixed variable %d: value %d is not 0 or 1", v, x)
		}
	}

	if cadence <= 0 {
		return nil, fmt.Errorf("cadence must be positive, got %d", cadence)
	}

	pr := &problem{name: name, varType: p.VarType}
	n := p.NumVariables

	if p.VarType == polynomial.Spin && p.Degree() <= 2 && len(fixed) == 0 {
		pr.kind = kindIsing
		pr.factory = func(_ int, rng *randsrc.Source) model.System {
			return ising.MakeBuilder().
				WithInitialState(rng.Binaries(n)).
				Build(name, p)
		}

		return pr, nil
	}

	binary, err := p.ToBinary()
	if err != nil {
		return nil, err
	}

	pr.kind = kindPolynomial
	pr.factory = func(_ int, rng *randsrc.Source) model.System {
		return polynomial.MakeBuilder().
			WithCadence(cadence).
			WithInitialState(rng.Binaries(n)).
			WithFixed(fixed).
			Build(name, binary)
	}

	return pr, nil
}

// format renders a state the way the problem states its variables.
func (pr *problem) format(x []int) string {
	out := make([]byte, 0, 3*len(x))
	for i, b := range x {
		if i > 0 {
			out = append(out, ',')
		}

		if pr.varType == polynomial.Spin {
			out = strconv.AppendInt(out, int64(2*b-1), 10)
			continue
		}

		out = strconv.AppendInt(out, int64(b), 10)
	}

	return string(out)
}

// parseFixed turns --fix values into variable indices.
func parseFixed(raw map[string]int) (map[int]int, error) {
	fixed := make(map[int]int, len(raw))
	for key, x := range raw {
		v, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("fixed variable %q: %w", key, err)
		}

		fixed[v] = x
	}

	return fixed, nil
}
