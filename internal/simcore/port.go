package simcore

import "fmt"

// qpKey identifies a QPQueue by the flow that owns it.
type qpKey struct {
	originSrc string
	qpid      int
}

// txCompletePayload is the Event payload scheduled to free a Port once a
// packet's serialization finishes.
type txCompletePayload struct {
	port *Port
}

// arrivalPayload is the Event payload scheduled when a packet reaches the
// next hop on a link.
type arrivalPayload struct {
	packet *Packet
	node   string
}

// Port is the single-server output of a directed link: strict round-robin
// arbiter over its QPQueues with a configurable per-visit quantum.
type Port struct {
	Owner            string
	Peer             string
	LineRateBPS      float64
	PropDelaySeconds float64
	Quantum          int

	qps     []*QPQueue
	index   map[qpKey]int
	cursor  int
	busy    bool
	busyUntil float64

	busyTimeTotal float64
}

func newPort(owner, peer string, lineRateBPS, propDelaySeconds float64, quantum int) (*Port, error) {
	if quantum < 1 {
		return nil, fmt.Errorf("port %s->%s quantum %d: %w", owner, peer, quantum, ErrInvalidConfig)
	}
	return &Port{
		Owner:            owner,
		Peer:             peer,
		LineRateBPS:      lineRateBPS,
		PropDelaySeconds: propDelaySeconds,
		Quantum:          quantum,
		index:            make(map[qpKey]int),
	}, nil
}

// getOrCreateQP returns the QPQueue for (originSrc, qpid), appending a new
// one at the end of the round-robin list if it doesn't exist yet — new QPs
// never disturb existing arbitration order.
func (port *Port) getOrCreateQP(originSrc string, qpid int) *QPQueue {
	k := qpKey{originSrc, qpid}
	if i, ok := port.index[k]; ok {
		return port.qps[i]
	}
	q := newQPQueue(originSrc, qpid)
	port.index[k] = len(port.qps)
	port.qps = append(port.qps, q)
	return q
}

// Enqueue adds a packet to the owning QP and, if the port is idle, triggers
// immediate arbitration.
func (port *Port) Enqueue(p *Packet, sched *EventScheduler) error {
	q := port.getOrCreateQP(p.SrcNode, p.QPIDAtSource)
	q.Enqueue(p)
	if !port.busy && port.busyUntil <= sched.Now() {
		return port.dispatch(sched)
	}
	return nil
}

// onTxComplete is invoked when a scheduled TxComplete event fires: it frees
// the port and, if any QP still has work, arbitrates the next packet.
func (port *Port) onTxComplete(sched *EventScheduler) error {
	port.busy = false
	return port.dispatch(sched)
}

// dispatch selects the next packet to serve per strict round-robin with
// quantum, and schedules its TxComplete/Arrival events. A no-op if the port
// is already busy or every QP is empty.
func (port *Port) dispatch(sched *EventScheduler) error {
	if port.busy || len(port.qps) == 0 {
		return nil
	}
	// len(port.qps)+1 tries: a QP whose quantum resets on this pass still
	// needs one more iteration to actually be served, since the reset
	// itself consumes a try without dequeuing a packet.
	for tries := 0; tries <= len(port.qps); tries++ {
		q := port.qps[port.cursor]
		if q.IsEmpty() || q.packetsServedInVisit >= port.Quantum {
			q.packetsServedInVisit = 0
			port.cursor = (port.cursor + 1) % len(port.qps)
			continue
		}
		p := q.Dequeue()
		q.packetsServedInVisit++

		effectiveRate := port.LineRateBPS
		if p.RateBPS < effectiveRate {
			effectiveRate = p.RateBPS
		}
		txTime := float64(p.SizeBytes) * 8 / effectiveRate

		now := sched.Now()
		start := now
		if port.busyUntil > start {
			start = port.busyUntil
		}
		port.busyUntil = start + txTime
		port.busyTimeTotal += txTime
		port.busy = true

		txDelay := port.busyUntil - now
		if err := sched.Schedule(txDelay, EventTxComplete, txCompletePayload{port: port}); err != nil {
			return err
		}
		arrivalDelay := txDelay + port.PropDelaySeconds
		if err := sched.Schedule(arrivalDelay, EventArrival, arrivalPayload{packet: p, node: port.Peer}); err != nil {
			return err
		}
		return nil
	}
	return nil
}

// Utilization returns busy_time / elapsed for this port over [0, elapsed].
func (port *Port) Utilization(elapsed float64) float64 {
	if elapsed <= 0 {
		return 0
	}
	return port.busyTimeTotal / elapsed
}
