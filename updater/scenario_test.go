package updater

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/klocal/model"
	"github.com/sarchlab/klocal/polynomial"
)

// drawSequence hands out a fixed list of draws and remembers how many were
// taken.
type drawSequence struct {
	draws []float64
	used  int
}

func (s *drawSequence) Float64() float64 {
	u := s.draws[s.used]
	s.used++

	return u
}

var _ = Describe("KLocal on a polynomial system", func() {
	// E = -x0 x1 x2 + 3 x1 x2. The triple term has key 0 and the pair key 1.
	toy := polynomial.Polynomial{
		VarType:      polynomial.Binary,
		NumVariables: 3,
		Terms: []polynomial.Term{
			{Vars: []int{0, 1, 2}, Value: -1},
			{Vars: []int{1, 2}, Value: 3},
		},
	}

	It("should follow the hand-computed trajectory of one call", func() {
		sys := polynomial.MakeBuilder().WithCadence(1).Build("toy", toy)
		rng := &drawSequence{draws: []float64{0.5, 0.1, 0.99}}
		counter := NewMoveCounter()
		u := NewKLocal()
		u.AcceptHook(counter)

		u.Update(sys, rng, model.Params{Beta: 1})

		// x0: flat and off, the triple costs +2, draw 0.5 rejects it, x0
		// flips alone. x1: flat again, the triple still costs +2, draw 0.1
		// accepts it, the pair is pruned. x2: single flip down by 2, taken
		// without a draw.
		Expect(rng.used).To(Equal(2))
		Expect(sys.State()).To(Equal([]int{1, 1, 0}))
		Expect(sys.Energy()).To(Equal(0.0))
		Expect(sys.CallCount()).To(Equal(uint64(1)))

		Expect(counter.Rejected(MoveKLocal)).To(Equal(uint64(1)))
		Expect(counter.Accepted(MoveFallback)).To(Equal(uint64(1)))
		Expect(counter.Accepted(MoveKLocal)).To(Equal(uint64(1)))
		Expect(counter.Accepted(MoveSingle)).To(Equal(uint64(1)))
		Expect(counter.Rejected(MoveSingle)).To(BeZero())
	})

	It("should only run ordinary flips between cadence points", func() {
		sys := polynomial.MakeBuilder().WithCadence(2).Build("toy", toy)
		sys.IncrementCallCount()
		rng := &drawSequence{draws: []float64{0.01}}
		counter := NewMoveCounter()
		u := NewKLocal()
		u.AcceptHook(counter)

		u.Update(sys, rng, model.Params{Beta: 1})

		// x0 and x1 are flat and flip; x2 would now turn on both terms for
		// +2 and draw 0.01 takes it.
		Expect(rng.used).To(Equal(1))
		Expect(sys.State()).To(Equal([]int{1, 1, 1}))
		Expect(counter.Accepted(MoveKLocal)).To(BeZero())
		Expect(sys.CallCount()).To(Equal(uint64(2)))
	})
})

var _ = Describe("SingleFlip", func() {
	It("should take downhill flips and leave uphill ones to the draw", func() {
		p := polynomial.Polynomial{
			VarType:      polynomial.Binary,
			NumVariables: 2,
			Terms: []polynomial.Term{
				{Vars: []int{0}, Value: -1},
				{Vars: []int{1}, Value: 5},
			},
		}
		sys := polynomial.MakeBuilder().Build("linear", p)
		rng := &drawSequence{draws: []float64{0.5}}

		NewSingleFlip().Update(sys, rng, model.Params{Beta: 1})

		Expect(sys.State()).To(Equal([]int{1, 0}))
		Expect(rng.used).To(Equal(1))
		Expect(sys.CallCount()).To(BeZero())
	})
})
