// Package annealing drives energy models through an inverse-temperature
// schedule, one updater call per sweep, over independent replicas.
package annealing

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/klocal/hooking"
	"github.com/sarchlab/klocal/model"
	"github.com/sarchlab/klocal/randsrc"
	"github.com/sarchlab/klocal/schedule"
	"github.com/sarchlab/klocal/updater"
)

// HookPosSweepEnd triggers after every sweep of every replica, with a
// SweepRecord as the item. Replicas run concurrently, so hooks attached to an
// Annealer must be safe for concurrent use.
var HookPosSweepEnd = &hooking.HookPos{Name: "SweepEnd"}

// A Factory builds the model of one replica. It may draw from rng, which is
// the replica's own stream, to pick an initial state.
type Factory func(replica int, rng *randsrc.Source) model.System

// A SweepRecord describes a replica right after a sweep.
type SweepRecord struct {
	Replica    int
	Sweep      int
	Beta       float64
	Energy     float64
	BestEnergy float64
}

// A Snapshot is the latest known progress of a replica.
type Snapshot struct {
	Replica    int
	Name       string
	Sweep      int
	Beta       float64
	Energy     float64
	BestEnergy float64
	BestState  []int
}

// A Result is the outcome of one replica.
type Result struct {
	Replica    int
	Name       string
	Sweeps     int
	State      []int
	Energy     float64
	BestState  []int
	BestEnergy float64
}

// Annealer runs replicas through a schedule.
type Annealer struct {
	*hooking.HookableBase

	schedule schedule.Schedule
	replicas int
	workers  int
	seed     uint64

	moveHooks []hooking.Hook

	// resume is open while the annealer is paused and closed by Continue.
	pauseLock sync.Mutex
	resume    chan struct{}

	finishedSweeps atomic.Uint64

	snapshotLock sync.Mutex
	snapshots    map[int]*Snapshot
}

// Builder can build Annealers.
type Builder struct {
	schedule schedule.Schedule
	replicas int
	workers  int
	seed     uint64
}

// MakeBuilder returns a Builder for one replica per CPU run on a
// geometric schedule from beta 0.1 to 10 over 1000 sweeps.
func MakeBuilder() Builder {
	return Builder{
		schedule: schedule.Geometric(0.1, 10, 1000, 1),
		replicas: 1,
		workers:  runtime.NumCPU(),
	}
}

// WithSchedule sets the inverse-temperature schedule.
func (b Builder) WithSchedule(s schedule.Schedule) Builder {
	b.schedule = s
	return b
}

// WithReplicas sets how many independent replicas run.
func (b Builder) WithReplicas(n int) Builder {
	b.replicas = n
	return b
}

// WithWorkers caps how many replicas run at the same time.
func (b Builder) WithWorkers(n int) Builder {
	b.workers = n
	return b
}

// WithSeed sets the seed every replica stream is derived from.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// Build creates the Annealer.
func (b Builder) Build() *Annealer {
	if b.replicas <= 0 {
		log.Panicf("need at least one replica, got %d", b.replicas)
	}

	if b.workers <= 0 {
		log.Panicf("need at least one worker, got %d", b.workers)
	}

	if b.schedule.TotalSweeps() == 0 {
		log.Panic("schedule has no sweeps")
	}

	return &Annealer{
		HookableBase: hooking.NewHookableBase(),
		schedule:     b.schedule,
		replicas:     b.replicas,
		workers:      b.workers,
		seed:         b.seed,
		snapshots:    make(map[int]*Snapshot),
	}
}

// AcceptMoveHook registers a hook on the updater of every replica. It sees
// every move decision, from all replicas concurrently.
func (a *Annealer) AcceptMoveHook(hook hooking.Hook) {
	a.moveHooks = append(a.moveHooks, hook)
}

// Replicas returns the number of replicas.
func (a *Annealer) Replicas() int {
	return a.replicas
}

// TotalSweeps returns the number of sweeps a full run performs over all
// replicas.
func (a *Annealer) TotalSweeps() uint64 {
	return uint64(a.replicas * a.schedule.TotalSweeps())
}

// FinishedSweeps returns the number of sweeps done so far over all
// replicas.
func (a *Annealer) FinishedSweeps() uint64 {
	return a.finishedSweeps.Load()
}

// Pause stops every replica before its next sweep. Sweeps already running
// complete.
func (a *Annealer) Pause() {
	a.pauseLock.Lock()
	defer a.pauseLock.Unlock()

	if a.resume == nil {
		a.resume = make(chan struct{})
	}
}

// Continue lets paused replicas run again.
func (a *Annealer) Continue() {
	a.pauseLock.Lock()
	defer a.pauseLock.Unlock()

	if a.resume != nil {
		close(a.resume)
		a.resume = nil
	}
}

// IsPaused tells whether replicas are held before their next sweep.
func (a *Annealer) IsPaused() bool {
	a.pauseLock.Lock()
	defer a.pauseLock.Unlock()

	return a.resume != nil
}

// waitIfPaused blocks while the annealer is paused. It gives up when ctx is
// done.
func (a *Annealer) waitIfPaused(ctx context.Context) error {
	a.pauseLock.Lock()
	resume := a.resume
	a.pauseLock.Unlock()

	if resume != nil {
		select {
		case <-resume:
		case <-ctx.Done():
		}
	}

	return ctx.Err()
}

// Snapshot returns the latest progress of a replica. It is false for
// replicas that have not started.
func (a *Annealer) Snapshot(replica int) (Snapshot, bool) {
	a.snapshotLock.Lock()
	defer a.snapshotLock.Unlock()

	s, ok := a.snapshots[replica]
	if !ok {
		return Snapshot{}, false
	}

	out := *s
	out.BestState = slices.Clone(s.BestState)

	return out, true
}

// Run anneals every replica and returns their results sorted by best
// energy. When ctx is cancelled, replicas stop before their next sweep and
// Run returns the context error along with the results of the replicas that
// completed.
func (a *Annealer) Run(ctx context.Context, factory Factory) ([]Result, error) {
	results := make([]*Result, a.replicas)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i := 0; i < a.replicas; i++ {
		g.Go(func() error {
			r, err := a.runReplica(gctx, i, factory)
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}

			results[i] = r

			return nil
		})
	}

	err := g.Wait()

	done := make([]Result, 0, a.replicas)
	for _, r := range results {
		if r != nil {
			done = append(done, *r)
		}
	}

	slices.SortStableFunc(done, func(x, y Result) int {
		return cmp.Compare(x.BestEnergy, y.BestEnergy)
	})

	return done, err
}

func (a *Annealer) runReplica(
	ctx context.Context,
	replica int,
	factory Factory,
) (*Result, error) {
	rng := randsrc.New(randsrc.Derive(a.seed, uint64(replica)))
	sys := factory(replica, rng)
	sweep := a.sweepFunc(sys, rng)

	best := sys.State()
	bestEnergy := sys.Energy()
	a.updateSnapshot(replica, sys.Name(), SweepRecord{
		Replica:    replica,
		Energy:     bestEnergy,
		BestEnergy: bestEnergy,
	}, best)

	n := 0
	for _, step := range a.schedule {
		params := model.Params{Beta: step.Beta}

		for i := 0; i < step.Sweeps; i++ {
			if err := a.waitIfPaused(ctx); err != nil {
				return nil, err
			}

			sweep(params)

			n++
			energy := sys.Energy()

			var improved []int
			if energy < bestEnergy {
				bestEnergy = energy
				best = sys.State()
				improved = best
			}

			record := SweepRecord{
				Replica:    replica,
				Sweep:      n,
				Beta:       step.Beta,
				Energy:     energy,
				BestEnergy: bestEnergy,
			}
			a.updateSnapshot(replica, sys.Name(), record, improved)
			a.finishedSweeps.Add(1)

			a.InvokeHook(hooking.HookCtx{
				Domain: a,
				Pos:    HookPosSweepEnd,
				Item:   record,
			})
		}
	}

	return &Result{
		Replica:    replica,
		Name:       sys.Name(),
		Sweeps:     n,
		State:      sys.State(),
		Energy:     sys.Energy(),
		BestState:  best,
		BestEnergy: bestEnergy,
	}, nil
}

// sweepFunc picks the updater by capability: models that can evaluate
// coordinated flips get the k-local updater.
func (a *Annealer) sweepFunc(
	sys model.System,
	rng model.UniformSource,
) func(model.Params) {
	if m, ok := sys.(model.KLocalModel); ok {
		u := updater.NewKLocal()
		for _, h := range a.moveHooks {
			u.AcceptHook(h)
		}

		return func(p model.Params) { u.Update(m, rng, p) }
	}

	u := updater.NewSingleFlip()
	for _, h := range a.moveHooks {
		u.AcceptHook(h)
	}

	return func(p model.Params) { u.Update(sys, rng, p) }
}

// updateSnapshot stores the record; bestState is only copied in when it
// changed.
func (a *Annealer) updateSnapshot(
	replica int,
	name string,
	record SweepRecord,
	bestState []int,
) {
	a.snapshotLock.Lock()
	defer a.snapshotLock.Unlock()

	s, ok := a.snapshots[replica]
	if !ok {
		s = &Snapshot{Replica: replica, Name: name}
		a.snapshots[replica] = s
	}

	s.Sweep = record.Sweep
	s.Beta = record.Beta
	s.Energy = record.Energy
	s.BestEnergy = record.BestEnergy

	if bestState != nil {
		s.BestState = slices.Clone(bestState)
	}
}
