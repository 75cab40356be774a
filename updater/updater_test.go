package updater

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/klocal/model"
)

var _ = Describe("Accept", func() {
	var (
		mockCtrl *gomock.Controller
		rng      *MockUniformSource
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rng = NewMockUniformSource(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should accept non-positive changes without drawing", func() {
		Expect(Accept(0, 1, rng)).To(BeTrue())
		Expect(Accept(-3.5, 0.1, rng)).To(BeTrue())
		Expect(Accept(-1e-12, 100, rng)).To(BeTrue())
	})

	It("should accept uphill moves iff the draw is below exp(-beta*dE)", func() {
		threshold := math.Exp(-1.0)

		rng.EXPECT().Float64().Return(threshold - 1e-9)
		Expect(Accept(1, 1, rng)).To(BeTrue())

		rng.EXPECT().Float64().Return(threshold + 1e-9)
		Expect(Accept(1, 1, rng)).To(BeFalse())

		rng.EXPECT().Float64().Return(threshold)
		Expect(Accept(1, 1, rng)).To(BeFalse())
	})

	It("should accept every uphill move at beta zero", func() {
		rng.EXPECT().Float64().Return(0.999999)
		Expect(Accept(50, 0, rng)).To(BeTrue())
	})

	It("should never accept an infinite energy change", func() {
		rng.EXPECT().Float64().Return(0.0).Times(2)
		Expect(Accept(math.Inf(1), 1, rng)).To(BeFalse())
		Expect(Accept(math.Inf(1), 0, rng)).To(BeFalse())
	})
})

var _ = Describe("Prune", func() {
	It("should prune only strictly positive priorities", func() {
		Expect(Prune(-2)).To(BeFalse())
		Expect(Prune(0)).To(BeFalse())
		Expect(Prune(0.5)).To(BeTrue())
	})
})

var _ = Describe("KLocal", func() {
	var (
		mockCtrl *gomock.Controller
		m        *MockKLocalModel
		rng      *MockUniformSource
		u        *KLocal
		counter  *MoveCounter
		params   model.Params
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		m = NewMockKLocalModel(mockCtrl)
		rng = NewMockUniformSource(mockCtrl)
		u = NewKLocal()
		counter = NewMoveCounter()
		u.AcceptHook(counter)
		params = model.Params{Beta: 1}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	expectCounter := func(callCount uint64, cadence int) {
		m.EXPECT().CallCount().Return(callCount).AnyTimes()
		m.EXPECT().Cadence().Return(cadence).AnyTimes()
		m.EXPECT().IncrementCallCount().Times(1)
	}

	DescribeTable("deep-move gating",
		func(onCadence, flat, off bool, wantDeep bool) {
			callCount := uint64(6)
			if !onCadence {
				callCount = 7
			}
			expectCounter(callCount, 3)

			dE := 0.0
			if !flat {
				dE = 2.0
			}

			value := 0
			if !off {
				value = 1
			}

			m.EXPECT().ActiveVariables().Return([]int{4})
			m.EXPECT().DeltaEnergySingle(4).Return(dE)
			m.EXPECT().Value(4).Return(value).AnyTimes()

			switch {
			case wantDeep:
				m.EXPECT().Adjacency(4).Return([]int{})
			case flat:
				m.EXPECT().CommitSingleMove(4)
			default:
				rng.EXPECT().Float64().Return(0.99)
			}

			u.Update(m, rng, params)
		},
		Entry("on cadence, flat, off", true, true, true, true),
		Entry("on cadence, flat, on", true, true, false, false),
		Entry("on cadence, sloped, off", true, false, true, false),
		Entry("on cadence, sloped, on", true, false, false, false),
		Entry("off cadence, flat, off", false, true, true, false),
		Entry("off cadence, flat, on", false, true, false, false),
		Entry("off cadence, sloped, off", false, false, true, false),
		Entry("off cadence, sloped, on", false, false, false, false),
	)

	It("should stop at the first positive priority even if the list is unsorted", func() {
		expectCounter(0, 1)
		m.EXPECT().ActiveVariables().Return([]int{0})
		m.EXPECT().DeltaEnergySingle(0).Return(0.0)
		m.EXPECT().Value(0).Return(0)
		m.EXPECT().Adjacency(0).Return([]int{10, 11, 12, 13})
		m.EXPECT().Priority(10).Return(-2.0)
		m.EXPECT().Priority(11).Return(-1.0)
		m.EXPECT().Priority(12).Return(0.5)
		m.EXPECT().DeltaEnergyKLocal(10).Return(-1.0)
		m.EXPECT().DeltaEnergyKLocal(11).Return(-0.5)
		m.EXPECT().CommitKLocalMove().Times(2)

		u.Update(m, rng, params)

		Expect(counter.Accepted(MoveKLocal)).To(Equal(uint64(2)))
	})

	It("should evaluate every non-positive term of a sorted list", func() {
		expectCounter(0, 1)
		m.EXPECT().ActiveVariables().Return([]int{0})
		m.EXPECT().DeltaEnergySingle(0).Return(0.0)
		m.EXPECT().Value(0).Return(0)
		m.EXPECT().Adjacency(0).Return([]int{0, 1, 2, 3})
		m.EXPECT().Priority(0).Return(-2.0)
		m.EXPECT().Priority(1).Return(-1.0)
		m.EXPECT().Priority(2).Return(-0.5)
		m.EXPECT().Priority(3).Return(1.0)
		m.EXPECT().DeltaEnergyKLocal(gomock.Any()).Return(0.0).Times(3)
		m.EXPECT().CommitKLocalMove().Times(3)

		u.Update(m, rng, params)
	})

	It("should roll back and fall back to a single flip on rejection", func() {
		expectCounter(0, 1)
		m.EXPECT().ActiveVariables().Return([]int{2})
		m.EXPECT().DeltaEnergySingle(2).Return(0.0)
		m.EXPECT().Value(2).Return(0)
		m.EXPECT().Adjacency(2).Return([]int{5, 6})
		m.EXPECT().Priority(5).Return(-1.0)
		m.EXPECT().Priority(6).Return(-1.0)

		gomock.InOrder(
			m.EXPECT().DeltaEnergyKLocal(5).Return(3.0),
			rng.EXPECT().Float64().Return(0.5),
			m.EXPECT().ResetVirtualState(),
			m.EXPECT().CommitSingleMove(2),
			m.EXPECT().DeltaEnergyKLocal(6).Return(1.0),
			rng.EXPECT().Float64().Return(0.1),
			m.EXPECT().CommitKLocalMove(),
		)

		u.Update(m, rng, params)

		Expect(counter.Rejected(MoveKLocal)).To(Equal(uint64(1)))
		Expect(counter.Accepted(MoveFallback)).To(Equal(uint64(1)))
		Expect(counter.Accepted(MoveKLocal)).To(Equal(uint64(1)))
	})

	It("should increment the counter once per call, even with no variables", func() {
		calls := 0
		m.EXPECT().CallCount().DoAndReturn(func() uint64 {
			return uint64(calls)
		}).AnyTimes()
		m.EXPECT().Cadence().Return(2).AnyTimes()
		m.EXPECT().ActiveVariables().Return([]int{}).Times(3)
		m.EXPECT().IncrementCallCount().Do(func() { calls++ }).Times(3)

		for i := 0; i < 3; i++ {
			u.Update(m, rng, params)
		}

		Expect(calls).To(Equal(3))
	})

	It("should not draw for flat or downhill single flips", func() {
		expectCounter(1, 2)
		m.EXPECT().ActiveVariables().Return([]int{0, 1})
		m.EXPECT().DeltaEnergySingle(0).Return(-1.0)
		m.EXPECT().DeltaEnergySingle(1).Return(0.0)
		m.EXPECT().CommitSingleMove(0)
		m.EXPECT().CommitSingleMove(1)

		u.Update(m, rng, params)

		Expect(counter.Accepted(MoveSingle)).To(Equal(uint64(2)))
		Expect(counter.AcceptanceRate()).To(Equal(1.0))
	})
})
