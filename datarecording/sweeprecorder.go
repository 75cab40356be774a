package datarecording

import (
	"strconv"
	"strings"

	"github.com/sarchlab/klocal/annealing"
	"github.com/sarchlab/klocal/hooking"
)

type sweepEntry struct {
	Replica    int
	Sweep      int
	Beta       float64
	Energy     float64
	BestEnergy float64
}

type resultEntry struct {
	Replica    int
	Name       string
	Sweeps     int
	Energy     float64
	BestEnergy float64
	BestState  string
}

// SweepRecorder is a hook that records annealer sweeps into the sweeps
// table. Results go to the results table.
type SweepRecorder struct {
	recorder DataRecorder
	interval int
}

// NewSweepRecorder creates the sweeps and results tables on recorder. Only
// every interval-th sweep of a replica is kept; interval 1 records
// everything.
func NewSweepRecorder(recorder DataRecorder, interval int) *SweepRecorder {
	if interval <= 0 {
		interval = 1
	}

	recorder.CreateTable("sweeps", sweepEntry{})
	recorder.CreateTable("results", resultEntry{})

	return &SweepRecorder{
		recorder: recorder,
		interval: interval,
	}
}

// Func records the sweep carried by ctx.
func (r *SweepRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != annealing.HookPosSweepEnd {
		return
	}

	record, ok := ctx.Item.(annealing.SweepRecord)
	if !ok || record.Sweep%r.interval != 0 {
		return
	}

	r.recorder.InsertData("sweeps", sweepEntry(record))
}

// RecordResults writes the final results and flushes.
func (r *SweepRecorder) RecordResults(results []annealing.Result) {
	for _, res := range results {
		r.recorder.InsertData("results", resultEntry{
			Replica:    res.Replica,
			Name:       res.Name,
			Sweeps:     res.Sweeps,
			Energy:     res.Energy,
			BestEnergy: res.BestEnergy,
			BestState:  FormatState(res.BestState),
		})
	}

	r.recorder.Flush()
}

// FormatState renders an assignment as comma-separated values.
func FormatState(x []int) string {
	var b strings.Builder
	for i, v := range x {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.Itoa(v))
	}

	return b.String()
}
