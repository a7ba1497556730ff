// Package simcore implements the discrete-event packet simulation engine:
// scheduler, port/QP arbitration, chunk dependency tracking and policy
// firing for CCL workloads.
package simcore

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Use errors.Is against these to classify a failure;
// EngineError wraps one of them plus the offending packet/time context.
var (
	ErrInvalidPolicy    = errors.New("invalid policy")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrRoute            = errors.New("route error")
	ErrDuplicatePacket  = errors.New("duplicate packet")
	ErrInvalidDelay     = errors.New("invalid delay")
)

// EngineError is the catch-all wrapper surfaced to callers for runtime
// failures (RouteError, DuplicatePacket) that abort a run. It carries the
// offending packet's identity and the simulated time at which it occurred.
type EngineError struct {
	Time    float64
	ChunkID string
	Seq     int
	Node    string
	Err     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error at t=%.9f node=%s chunk=%s seq=%d: %v",
		e.Time, e.Node, e.ChunkID, e.Seq, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func newEngineError(now float64, node string, p *Packet, err error) *EngineError {
	ee := &EngineError{Time: now, Node: node, Err: err}
	if p != nil {
		ee.ChunkID = p.ChunkID
		ee.Seq = p.Seq
	}
	return ee
}
