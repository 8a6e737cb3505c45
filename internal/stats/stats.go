// Package stats accumulates the per-thread telemetry named in spec §7
// ("per-thread end-of-run summaries with total/mean/stddev task time and
// idle percentage broken down by I/O, decode, color-conversion, and
// memcpy"). The master's periodic progress line is emitted by
// internal/cluster, not here. No statistics library
// appears anywhere in the example pack, so the mean/stddev accumulation
// here is standard-library only (DESIGN.md records this).
//
// Unlike the source, every phase this package tracks is actually recorded
// by its caller — spec §9 calls out the source's decode_time field as
// never assigned and total_mempcy_time as inconsistently spelled with its
// producer; this port has no analogous dead field.
package stats

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Phase names one of the four breakdown categories in spec §7.
type Phase int

const (
	PhaseIO Phase = iota
	PhaseDecode
	PhaseColorConversion
	PhaseMemcpy
	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhaseIO:
		return "io"
	case PhaseDecode:
		return "decode"
	case PhaseColorConversion:
		return "color_conversion"
	case PhaseMemcpy:
		return "memcpy"
	default:
		return "unknown"
	}
}

// Recorder accumulates task and phase timings for a single worker thread.
// Not safe for concurrent use — one Recorder per loader/evaluator thread.
type Recorder struct {
	taskCount int64
	taskSum   time.Duration
	taskSumSq float64 // sum of squared durations, in seconds^2, for stddev

	idle time.Duration
	busy time.Duration

	phaseSum [numPhases]time.Duration
}

// RecordTask records the wall-clock time of one completed work item (one
// loader frame-range decode, or one evaluator work item).
func (r *Recorder) RecordTask(d time.Duration) {
	r.taskCount++
	r.taskSum += d
	secs := d.Seconds()
	r.taskSumSq += secs * secs
	r.busy += d
}

// RecordIdle records time spent blocked on a queue pop or buffer acquire.
func (r *Recorder) RecordIdle(d time.Duration) {
	r.idle += d
}

// RecordPhase attributes d to one of the four breakdown categories.
func (r *Recorder) RecordPhase(p Phase, d time.Duration) {
	r.phaseSum[p] += d
}

// Summary is the end-of-run report for one thread (spec §7).
type Summary struct {
	TaskCount    int64
	TotalTask    time.Duration
	MeanTask     time.Duration
	StddevTask   time.Duration
	IdlePercent  float64
	PhasePercent map[string]float64
}

// Summarize computes the final report from accumulated samples.
func (r *Recorder) Summarize() Summary {
	s := Summary{
		TaskCount:    r.taskCount,
		TotalTask:    r.taskSum,
		PhasePercent: make(map[string]float64, numPhases),
	}
	if r.taskCount > 0 {
		meanSecs := r.taskSum.Seconds() / float64(r.taskCount)
		s.MeanTask = time.Duration(meanSecs * float64(time.Second))

		variance := r.taskSumSq/float64(r.taskCount) - meanSecs*meanSecs
		if variance < 0 {
			variance = 0 // guards against float rounding producing a tiny negative
		}
		s.StddevTask = time.Duration(math.Sqrt(variance) * float64(time.Second))
	}

	total := r.idle + r.busy
	if total > 0 {
		s.IdlePercent = 100 * r.idle.Seconds() / total.Seconds()
	}

	phaseTotal := time.Duration(0)
	for _, d := range r.phaseSum {
		phaseTotal += d
	}
	for p := Phase(0); p < numPhases; p++ {
		if phaseTotal > 0 {
			s.PhasePercent[p.String()] = 100 * r.phaseSum[p].Seconds() / phaseTotal.Seconds()
		} else {
			s.PhasePercent[p.String()] = 0
		}
	}
	return s
}

// Log emits the summary as structured fields under the given logger,
// tagged with the thread's role and id.
func (s Summary) Log(log *zap.SugaredLogger, role string, id int) {
	log.Infow("thread summary",
		"role", role,
		"id", id,
		"task_count", s.TaskCount,
		"total_task", s.TotalTask,
		"mean_task", s.MeanTask,
		"stddev_task", s.StddevTask,
		"idle_percent", s.IdlePercent,
		"phase_percent", s.PhasePercent,
	)
}
