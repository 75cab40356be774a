package annealing

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/klocal/hooking"
	"github.com/sarchlab/klocal/model"
	"github.com/sarchlab/klocal/polynomial"
	"github.com/sarchlab/klocal/randsrc"
	"github.com/sarchlab/klocal/schedule"
	"github.com/sarchlab/klocal/updater"
)

// chain is a ferromagnetic binary chain whose ground state is all ones with
// energy -(n-1).
func chain(n int) polynomial.Polynomial {
	p := polynomial.Polynomial{VarType: polynomial.Binary, NumVariables: n}
	for i := 0; i+1 < n; i++ {
		p.Terms = append(p.Terms, polynomial.Term{Vars: []int{i, i + 1}, Value: -1})
	}

	return p
}

func chainFactory(n int) Factory {
	p := chain(n)

	return func(replica int, rng *randsrc.Source) model.System {
		return polynomial.MakeBuilder().
			WithCadence(2).
			WithInitialState(rng.Binaries(n)).
			Build("chain", p)
	}
}

// singleFlipOnly hides the k-local capability of a system.
type singleFlipOnly struct {
	model.System
}

var _ = Describe("Annealer", func() {
	var (
		sched   schedule.Schedule
		builder Builder
	)

	BeforeEach(func() {
		sched = schedule.Geometric(0.1, 10, 20, 5)
		builder = MakeBuilder().
			WithSchedule(sched).
			WithReplicas(4).
			WithWorkers(2).
			WithSeed(42)
	})

	It("should find the ground state of a chain", func() {
		a := builder.Build()

		results, err := a.Run(context.Background(), chainFactory(6))

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		Expect(results[0].BestEnergy).To(Equal(-5.0))
		Expect(results[0].BestState).To(Equal([]int{1, 1, 1, 1, 1, 1}))
	})

	It("should return one sorted result per replica", func() {
		a := builder.Build()

		results, err := a.Run(context.Background(), chainFactory(8))

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		replicas := map[int]bool{}
		for i, r := range results {
			replicas[r.Replica] = true
			Expect(r.Name).To(Equal("chain"))
			Expect(r.Sweeps).To(Equal(sched.TotalSweeps()))
			Expect(r.BestEnergy).To(BeNumerically("<=", r.Energy))
			if i > 0 {
				Expect(r.BestEnergy).To(BeNumerically(">=", results[i-1].BestEnergy))
			}
		}
		Expect(replicas).To(HaveLen(4))
	})

	It("should be reproducible for a fixed seed", func() {
		first, err := builder.Build().Run(context.Background(), chainFactory(10))
		Expect(err).NotTo(HaveOccurred())

		second, err := builder.Build().Run(context.Background(), chainFactory(10))
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})

	It("should invoke sweep hooks once per sweep", func() {
		a := builder.Build()

		var sweeps, bad atomic.Int64
		a.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			record, ok := ctx.Item.(SweepRecord)
			if ctx.Pos != HookPosSweepEnd || !ok ||
				record.BestEnergy > record.Energy {
				bad.Add(1)
			}
			sweeps.Add(1)
		}))

		_, err := a.Run(context.Background(), chainFactory(6))

		Expect(err).NotTo(HaveOccurred())
		Expect(bad.Load()).To(BeZero())
		Expect(uint64(sweeps.Load())).To(Equal(a.TotalSweeps()))
		Expect(a.FinishedSweeps()).To(Equal(a.TotalSweeps()))
	})

	It("should keep a snapshot of every replica", func() {
		a := builder.Build()

		_, ok := a.Snapshot(0)
		Expect(ok).To(BeFalse())

		results, err := a.Run(context.Background(), chainFactory(6))
		Expect(err).NotTo(HaveOccurred())

		for _, r := range results {
			snap, ok := a.Snapshot(r.Replica)
			Expect(ok).To(BeTrue())
			Expect(snap.Sweep).To(Equal(r.Sweeps))
			Expect(snap.BestEnergy).To(Equal(r.BestEnergy))
			Expect(snap.BestState).To(Equal(r.BestState))
		}
	})

	It("should use k-local moves only when the model supports them", func() {
		a := builder.Build()
		counter := updater.NewMoveCounter()
		a.AcceptMoveHook(counter)

		_, err := a.Run(context.Background(),
			func(replica int, rng *randsrc.Source) model.System {
				return singleFlipOnly{chainFactory(6)(replica, rng)}
			})

		Expect(err).NotTo(HaveOccurred())
		Expect(counter.Accepted(updater.MoveKLocal)).To(BeZero())
		Expect(counter.Rejected(updater.MoveKLocal)).To(BeZero())
		Expect(counter.Accepted(updater.MoveSingle)).NotTo(BeZero())

		a = builder.Build()
		counter = updater.NewMoveCounter()
		a.AcceptMoveHook(counter)

		_, err = a.Run(context.Background(), chainFactory(6))

		Expect(err).NotTo(HaveOccurred())
		Expect(counter.Accepted(updater.MoveKLocal) +
			counter.Rejected(updater.MoveKLocal)).NotTo(BeZero())
	})

	It("should stop when the context is cancelled", func() {
		a := builder.WithWorkers(1).Build()

		ctx, cancel := context.WithCancel(context.Background())
		a.AcceptHook(hooking.HookFunc(func(hooking.HookCtx) {
			cancel()
		}))

		results, err := a.Run(ctx, chainFactory(6))

		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(results).To(BeEmpty())
		Expect(a.FinishedSweeps()).To(Equal(uint64(1)))
	})

	It("should hold sweeps while paused", func() {
		a := builder.Build()
		a.Pause()
		a.Pause()

		done := make(chan error)
		go func() {
			_, err := a.Run(context.Background(), chainFactory(6))
			done <- err
		}()

		Consistently(a.FinishedSweeps, 50*time.Millisecond).Should(BeZero())

		a.Continue()
		a.Continue()
		Expect(a.IsPaused()).To(BeFalse())

		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		Expect(a.FinishedSweeps()).To(Equal(a.TotalSweeps()))
	})

	It("should return when cancelled while paused", func() {
		a := builder.Build()
		a.Pause()
		Expect(a.IsPaused()).To(BeTrue())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := a.Run(ctx, chainFactory(6))
			done <- err
		}()

		Consistently(a.FinishedSweeps, 50*time.Millisecond).Should(BeZero())
		cancel()

		var err error
		Eventually(done, 2*time.Second).Should(Receive(&err))
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(a.FinishedSweeps()).To(BeZero())
		Expect(a.IsPaused()).To(BeTrue())
	})

	It("should panic on invalid configuration", func() {
		Expect(func() { builder.WithReplicas(0).Build() }).To(Panic())
		Expect(func() { builder.WithWorkers(0).Build() }).To(Panic())
		Expect(func() { builder.WithSchedule(nil).Build() }).To(Panic())
	})
})
