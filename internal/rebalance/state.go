package rebalance

import "github.com/hearthcache/slab/internal/slabs"

// Signal mirrors the coordinator/worker handshake of §4.4: Idle means
// no job is pending or running, Requested means Reassign has queued
// one and is waiting for the worker to pick it up, Running means the
// worker owns the job until it reaches S3 Finish or gives up.
type Signal int32

const (
	SignalIdle Signal = iota
	SignalRequested
	SignalRunning
)

func (s Signal) String() string {
	switch s {
	case SignalIdle:
		return "idle"
	case SignalRequested:
		return "requested"
	case SignalRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Phase names the worker's position in the S0-S3 state machine (§4.4).
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseStart
	PhaseScan
	PhaseFinish
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "S0_idle"
	case PhaseStart:
		return "S1_start"
	case PhaseScan:
		return "S2_scan"
	case PhaseFinish:
		return "S3_finish"
	default:
		return "unknown"
	}
}

// job is the mutable record of one in-flight or just-finished
// reassignment. It is only ever touched by the worker goroutine except
// for the fields the coordinator reads back through Status.
type job struct {
	srcID, dstID int
	victim       *slabs.Page
	cursor       int64
	claimed      map[int64]bool
	busyThisPass int
	phase        Phase

	rescues        int64
	evictionsNomem int64
	inlineReclaim  int64
	busyTotal      int64
}

// Status is a point-in-time snapshot of the current or most recently
// completed job, safe to read concurrently with the worker.
type Status struct {
	Phase          Phase
	SrcID, DstID   int
	Rescues        int64
	EvictionsNomem int64
	InlineReclaim  int64
	BusyTotal      int64
}
