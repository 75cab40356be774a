package polynomial

import (
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// allAssignments enumerates every binary vector of length n.
func allAssignments(n int) [][]int {
	out := [][]int{}
	for mask := 0; mask < 1<<n; mask++ {
		x := make([]int, n)
		for i := range x {
			x[i] = (mask >> i) & 1
		}
		out = append(out, x)
	}

	return out
}

var _ = Describe("Polynomial", func() {
	Context("normalize", func() {
		It("should sort, reduce and merge binary terms", func() {
			p := Polynomial{
				VarType:      Binary,
				NumVariables: 3,
				Terms: []Term{
					{Vars: []int{2, 0, 0}, Value: 1},
					{Vars: []int{1}, Value: 4},
					{Vars: []int{0, 2}, Value: 2},
					{Vars: []int{1}, Value: -4},
				},
			}

			n := p.Normalize()

			Expect(n.Terms).To(Equal([]Term{{Vars: []int{0, 2}, Value: 3}}))
		})

		It("should cancel squared spins", func() {
			p := Polynomial{
				VarType:      Spin,
				NumVariables: 2,
				Terms: []Term{
					{Vars: []int{1, 0, 1}, Value: 1},
					{Vars: []int{0, 0}, Value: 2},
				},
			}

			n := p.Normalize()

			Expect(n.Terms).To(Equal([]Term{
				{Vars: []int{0}, Value: 1},
				{Vars: []int{}, Value: 2},
			}))
		})

		It("should not modify the receiver", func() {
			p := Polynomial{
				VarType:      Binary,
				NumVariables: 2,
				Terms:        []Term{{Vars: []int{1, 0}, Value: 1}},
			}

			p.Normalize()

			Expect(p.Terms[0].Vars).To(Equal([]int{1, 0}))
		})
	})

	Context("validate", func() {
		It("should reject out-of-range variables", func() {
			p := Polynomial{
				VarType:      Binary,
				NumVariables: 2,
				Terms:        []Term{{Vars: []int{0, 2}, Value: 1}},
			}

			Expect(p.Validate()).To(MatchError(ErrVariableOutOfRange))
		})

		It("should reject non-finite coefficients", func() {
			p := Polynomial{
				VarType:      Binary,
				NumVariables: 1,
				Terms:        []Term{{Vars: []int{0}, Value: math.NaN()}},
			}

			Expect(p.Validate()).To(MatchError(ErrNonFiniteValue))
		})

		It("should reject unknown variable types", func() {
			Expect(Polynomial{VarType: "QUBIT"}.Validate()).
				To(MatchError(ErrUnknownVarType))
		})
	})

	Context("to binary", func() {
		It("should preserve the energy of every assignment", func() {
			spin := Polynomial{
				VarType:      Spin,
				NumVariables: 4,
				Terms: []Term{
					{Vars: []int{0, 1, 2}, Value: -1.5},
					{Vars: []int{1, 3}, Value: 0.75},
					{Vars: []int{2}, Value: 2},
					{Vars: []int{}, Value: 0.25},
				},
			}

			binary, err := spin.ToBinary()

			Expect(err).NotTo(HaveOccurred())
			Expect(binary.VarType).To(Equal(Binary))
			Expect(binary.Degree()).To(Equal(3))
			for _, x := range allAssignments(4) {
				Expect(binary.Evaluate(x)).To(BeNumerically("~", spin.Evaluate(x), 1e-12))
			}
		})

		It("should refuse degrees it cannot expand", func() {
			vars := make([]int, maxExpansionDegree+1)
			for i := range vars {
				vars[i] = i
			}
			spin := Polynomial{
				VarType:      Spin,
				NumVariables: len(vars),
				Terms:        []Term{{Vars: vars, Value: 1}},
			}

			_, err := spin.ToBinary()

			Expect(err).To(MatchError(ErrDegreeTooHigh))
		})
	})

	Context("load", func() {
		It("should default the variable type and infer the size", func() {
			p, err := Load(strings.NewReader(
				`{"terms": [{"vars": [0, 4], "value": -1}]}`))

			Expect(err).NotTo(HaveOccurred())
			Expect(p.VarType).To(Equal(Binary))
			Expect(p.NumVariables).To(Equal(5))
		})

		It("should reject unknown fields", func() {
			_, err := Load(strings.NewReader(`{"terms": [], "beta": 1}`))

			Expect(err).To(HaveOccurred())
		})

		It("should validate what it loads", func() {
			_, err := Load(strings.NewReader(
				`{"num_variables": 1, "terms": [{"vars": [3], "value": 1}]}`))

			Expect(err).To(MatchError(ErrVariableOutOfRange))
		})
	})
})
