package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metrics"
)

// mailboxDepth is the per-link buffer; sends beyond it fall back to an
// asynchronous goroutine so ISend never blocks the caller.
const mailboxDepth = 64

// Hub wires a fixed-size in-process group together. Each rank obtains its
// Group view through Join; ranks then run the protocol on their own
// goroutines.
type Hub struct {
	size int
	rdv  *rendezvous
	mail [][]chan []byte // mail[from][to]
}

// NewHub creates the shared state for a group of the given size.
func NewHub(size int) *Hub {
	if size <= 0 {
		panic(errors.Newf(errors.ErrorTypeConfiguration, "comm.hub", "invalid group size %d", size))
	}
	mail := make([][]chan []byte, size)
	for from := range mail {
		mail[from] = make([]chan []byte, size)
		for to := range mail[from] {
			mail[from][to] = make(chan []byte, mailboxDepth)
		}
	}
	return &Hub{
		size: size,
		rdv:  newRendezvous(size),
		mail: mail,
	}
}

// Join returns rank's view of the group. Each rank must be joined exactly
// once.
func (h *Hub) Join(rank int) Group {
	if rank < 0 || rank >= h.size {
		panic(errors.Newf(errors.ErrorTypeValidation, "comm.join", "rank %d outside group of size %d", rank, h.size))
	}
	return &procGroup{
		hub:     h,
		rank:    rank,
		pending: make([][]Envelope, h.size),
	}
}

// Launch runs fn once per rank on its own goroutine and joins them,
// returning the first error. This is how tests and the simulator stand up
// an SPMD group inside one process.
func Launch(size int, fn func(g Group) error) error {
	hub := NewHub(size)
	var eg errgroup.Group
	for rank := 0; rank < size; rank++ {
		g := hub.Join(rank)
		eg.Go(func() error {
			return fn(g)
		})
	}
	return eg.Wait()
}

// procGroup is one rank's endpoint. It is not safe for concurrent use;
// each rank drives its endpoint from a single goroutine, mirroring one
// process in a real deployment.
type procGroup struct {
	hub  *Hub
	rank int

	// pending holds decoded envelopes received from a peer while waiting
	// for a different direction/offset pair.
	pending [][]Envelope
}

func (g *procGroup) Rank() int { return g.rank }
func (g *procGroup) Size() int { return g.hub.size }

func (g *procGroup) Barrier() {
	metrics.CollectiveOps.WithLabelValues("barrier").Inc()
	g.hub.rdv.exchange("barrier", g.rank, nil)
}

func (g *procGroup) Broadcast(root int, payload []byte) []byte {
	metrics.CollectiveOps.WithLabelValues("broadcast").Inc()
	all := g.hub.rdv.exchange("broadcast", g.rank, payload)
	return all[root]
}

func (g *procGroup) Gather(root int, payload []byte) [][]byte {
	metrics.CollectiveOps.WithLabelValues("gather").Inc()
	all := g.hub.rdv.exchange("gather", g.rank, payload)
	if g.rank != root {
		return nil
	}
	return all
}

func (g *procGroup) AllGather(payload []byte) [][]byte {
	metrics.CollectiveOps.WithLabelValues("allgather").Inc()
	return g.hub.rdv.exchange("allgather", g.rank, payload)
}

type sendRequest struct {
	done chan struct{}
}

func (r *sendRequest) Wait() error {
	<-r.done
	return nil
}

func (g *procGroup) ISend(peer int, env Envelope) Request {
	if peer < 0 || peer >= g.hub.size || peer == g.rank {
		panic(errors.Newf(errors.ErrorTypeValidation, "comm.isend", "invalid peer %d from rank %d", peer, g.rank))
	}
	frame := EncodeFrame(env)
	req := &sendRequest{done: make(chan struct{})}
	ch := g.hub.mail[g.rank][peer]
	select {
	case ch <- frame:
		close(req.done)
	default:
		go func() {
			ch <- frame
			close(req.done)
		}()
	}
	return req
}

func (g *procGroup) Recv(peer int, dir Direction, offset int) ([]byte, error) {
	if peer < 0 || peer >= g.hub.size || peer == g.rank {
		return nil, errors.Newf(errors.ErrorTypeValidation, "comm.recv", "invalid peer %d from rank %d", peer, g.rank)
	}

	// Drain anything already matched and parked.
	for i, env := range g.pending[peer] {
		if env.Direction == dir && env.Offset == offset {
			g.pending[peer] = append(g.pending[peer][:i], g.pending[peer][i+1:]...)
			return env.Payload, nil
		}
	}

	ch := g.hub.mail[peer][g.rank]
	for {
		frame := <-ch
		env, err := DecodeFrame(frame)
		if err != nil {
			return nil, err
		}
		if env.Direction == dir && env.Offset == offset {
			return env.Payload, nil
		}
		g.pending[peer] = append(g.pending[peer], env)
	}
}

// rendezvous implements every collective through one synchronized
// exchange: all ranks deposit a payload, the last arrival publishes the
// round, and everyone reads the full rank-ordered slice. Because all
// ranks must issue the same sequence of collectives, a single exchange
// point suffices; a mismatched operation name is a protocol violation
// and fatal.
type rendezvous struct {
	mu   sync.Mutex
	cond *sync.Cond

	size    int
	gen     uint64
	arrived int
	op      string
	slots   [][]byte
	result  [][]byte
}

func newRendezvous(size int) *rendezvous {
	r := &rendezvous{
		size:  size,
		slots: make([][]byte, size),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *rendezvous) exchange(op string, rank int, payload []byte) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.arrived == 0 {
		r.op = op
	} else if r.op != op {
		panic(fmt.Sprintf("comm: collective mismatch: rank %d issued %q while group is in %q", rank, op, r.op))
	}

	gen := r.gen
	r.slots[rank] = payload
	r.arrived++
	if r.arrived == r.size {
		result := make([][]byte, r.size)
		copy(result, r.slots)
		r.result = result
		r.arrived = 0
		r.gen++
		r.cond.Broadcast()
	} else {
		for gen == r.gen {
			r.cond.Wait()
		}
	}
	return r.result
}
