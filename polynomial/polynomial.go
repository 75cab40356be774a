// Package polynomial describes binary and spin polynomials and provides
// System, the higher-order binary energy model that the k-local updater
// drives.
package polynomial

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// VarType is the domain of the variables of a polynomial.
type VarType string

// Supported variable types.
const (
	// Binary variables take values in {0, 1}.
	Binary VarType = "BINARY"

	// Spin variables take values in {-1, +1}.
	Spin VarType = "SPIN"
)

// maxExpansionDegree bounds the degree ToBinary accepts. A spin term of
// degree d expands into 2^d binary terms.
const maxExpansionDegree = 24

// Validation errors.
var (
	ErrUnknownVarType     = errors.New("unknown variable type")
	ErrNegativeSize       = errors.New("number of variables is negative")
	ErrVariableOutOfRange = errors.New("variable index out of range")
	ErrNonFiniteValue     = errors.New("coefficient is not finite")
	ErrDegreeTooHigh      = errors.New("term degree too high to expand")
	ErrInvalidState       = errors.New("invalid state")
)

// A Term is one monomial: the product of its variables scaled by Value. A
// term without variables is a constant offset.
type Term struct {
	Vars  []int   `json:"vars"`
	Value float64 `json:"value"`
}

// A Polynomial is an energy function over NumVariables variables.
type Polynomial struct {
	VarType      VarType `json:"vartype"`
	NumVariables int     `json:"num_variables"`
	Terms        []Term  `json:"terms"`
}

// Validate checks variable indices and coefficients.
func (p Polynomial) Validate() error {
	if p.VarType != Binary && p.VarType != Spin {
		return fmt.Errorf("%w: %q", ErrUnknownVarType, p.VarType)
	}

	if p.NumVariables < 0 {
		return ErrNegativeSize
	}

	for i, t := range p.Terms {
		if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
			return fmt.Errorf("term %d: %w", i, ErrNonFiniteValue)
		}

		for _, v := range t.Vars {
			if v < 0 || v >= p.NumVariables {
				return fmt.Errorf("term %d: %w: %d not in [0, %d)",
					i, ErrVariableOutOfRange, v, p.NumVariables)
			}
		}
	}

	return nil
}

// Degree returns the largest number of variables in a term.
func (p Polynomial) Degree() int {
	degree := 0
	for _, t := range p.Terms {
		degree = max(degree, len(t.Vars))
	}

	return degree
}

// Normalize returns an equivalent polynomial in canonical form. Variables
// inside a term are sorted and repeated variables are reduced (x*x = x for
// binary, s*s = 1 for spin). Terms over the same variables are merged, in
// order of first appearance, and terms that end up with a zero coefficient
// are dropped.
func (p Polynomial) Normalize() Polynomial {
	out := Polynomial{
		VarType:      p.VarType,
		NumVariables: p.NumVariables,
	}

	index := make(map[string]int)
	for _, t := range p.Terms {
		vars := reduceVars(t.Vars, p.VarType)
		key := termKey(vars)

		if i, ok := index[key]; ok {
			out.Terms[i].Value += t.Value
			continue
		}

		index[key] = len(out.Terms)
		out.Terms = append(out.Terms, Term{Vars: vars, Value: t.Value})
	}

	out.Terms = slices.DeleteFunc(out.Terms, func(t Term) bool {
		return t.Value == 0
	})

	return out
}

func reduceVars(vars []int, varType VarType) []int {
	sorted := slices.Clone(vars)
	slices.Sort(sorted)

	reduced := make([]int, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}

		multiplicity := j - i
		if varType == Binary || multiplicity%2 == 1 {
			reduced = append(reduced, sorted[i])
		}

		i = j
	}

	return reduced
}

func termKey(vars []int) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = strconv.Itoa(v)
	}

	return strings.Join(parts, ",")
}

// ToBinary rewrites a spin polynomial over binary variables using
// s = 2x - 1. The result is normalized and has the same energy for
// corresponding assignments. Binary polynomials are only normalized.
func (p Polynomial) ToBinary() (Polynomial, error) {
	if p.VarType == Binary {
		return p.Normalize(), nil
	}

	if p.VarType != Spin {
		return Polynomial{}, fmt.Errorf("%w: %q", ErrUnknownVarType, p.VarType)
	}

	spin := p.Normalize()
	out := Polynomial{VarType: Binary, NumVariables: p.NumVariables}

	for i, t := range spin.Terms {
		degree := len(t.Vars)
		if degree > maxExpansionDegree {
			return Polynomial{}, fmt.Errorf("term %d: %w: %d > %d",
				i, ErrDegreeTooHigh, degree, maxExpansionDegree)
		}

		// prod(2x_i - 1) = sum over subsets T of 2^|T| (-1)^(d-|T|) prod x_T
		for mask := 0; mask < 1<<degree; mask++ {
			vars := make([]int, 0, degree)
			for bit, v := range t.Vars {
				if mask&(1<<bit) != 0 {
					vars = append(vars, v)
				}
			}

			coef := t.Value * math.Ldexp(1, len(vars))
			if (degree-len(vars))%2 == 1 {
				coef = -coef
			}

			out.Terms = append(out.Terms, Term{Vars: vars, Value: coef})
		}
	}

	return out.Normalize(), nil
}

// Evaluate returns the energy of a binary assignment, interpreting entries
// as spins (0 is -1, 1 is +1) when the polynomial is a spin polynomial.
func (p Polynomial) Evaluate(x []int) float64 {
	energy := 0.0
	for _, t := range p.Terms {
		prod := t.Value
		for _, v := range t.Vars {
			switch {
			case p.VarType == Spin && x[v] == 0:
				prod = -prod
			case p.VarType == Binary && x[v] == 0:
				prod = 0
			}
		}

		energy += prod
	}

	return energy
}
