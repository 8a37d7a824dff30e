// Package comm provides the process-group primitives the distributed
// index builder runs on: blocking collectives (barrier, broadcast,
// gather, all-gather) and tagged non-blocking point-to-point messaging.
//
// The protocol is SPMD: every rank must issue the identical sequence of
// collective calls. There are no timeouts; a rank that never reaches a
// collective stalls the whole group.
package comm

// Direction is the direction a point-to-point message travels through
// the rank ordering.
type Direction uint8

const (
	// DirLeft marks a message sent to a lower rank.
	DirLeft Direction = 1
	// DirRight marks a message sent to a higher rank.
	DirRight Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return "invalid"
}

// Envelope is the structured header carried by every point-to-point
// message. Direction and Offset replace bare integer tags: the receiver
// states which window slot it is draining and the pair is validated on
// receipt instead of inferred.
type Envelope struct {
	Direction Direction
	Offset    int // 1-based offset within the neighbor window
	Payload   []byte
}

// Request tracks an in-flight non-blocking send.
type Request interface {
	// Wait blocks until the send has been handed to the transport.
	Wait() error
}

// WaitAll joins a batch of requests, returning the first error.
func WaitAll(reqs []Request) error {
	var first error
	for _, r := range reqs {
		if err := r.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Group is one rank's view of a fixed process group.
type Group interface {
	Rank() int
	Size() int

	// Barrier blocks until every rank reaches it.
	Barrier()

	// Broadcast returns root's payload on every rank. Non-root callers
	// pass nil.
	Broadcast(root int, payload []byte) []byte

	// Gather collects every rank's payload at root, in rank order.
	// Payloads may differ in length. Non-root callers receive nil.
	Gather(root int, payload []byte) [][]byte

	// AllGather collects every rank's payload on every rank, in rank
	// order.
	AllGather(payload []byte) [][]byte

	// ISend starts a non-blocking send of env to peer.
	ISend(peer int, env Envelope) Request

	// Recv blocks until a message from peer with the given direction and
	// offset arrives and returns its payload. Messages from the same
	// peer carrying other envelopes are held for later Recv calls.
	Recv(peer int, dir Direction, offset int) ([]byte, error)
}
