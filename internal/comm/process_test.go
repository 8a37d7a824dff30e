package comm

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcast(t *testing.T) {
	var mu sync.Mutex
	got := map[int]string{}

	err := Launch(4, func(g Group) error {
		var payload []byte
		if g.Rank() == 2 {
			payload = []byte("coarse leaves")
		}
		out := g.Broadcast(2, payload)
		mu.Lock()
		got[g.Rank()] = string(out)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for rank := 0; rank < 4; rank++ {
		assert.Equal(t, "coarse leaves", got[rank])
	}
}

func TestGatherVariableLength(t *testing.T) {
	var rootSaw [][]byte

	err := Launch(3, func(g Group) error {
		payload := make([]byte, g.Rank()+1)
		for i := range payload {
			payload[i] = byte(g.Rank())
		}
		gathered := g.Gather(0, payload)
		if g.Rank() == 0 {
			rootSaw = gathered
		} else if gathered != nil {
			return fmt.Errorf("rank %d received gather results", g.Rank())
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, rootSaw, 3)
	for rank, payload := range rootSaw {
		assert.Len(t, payload, rank+1)
	}
}

func TestAllGatherOrdersByRank(t *testing.T) {
	err := Launch(4, func(g Group) error {
		all := g.AllGather(EncodeInt32(int32(g.Rank() * 10)))
		for r, payload := range all {
			if int(DecodeInt32(payload)) != r*10 {
				return fmt.Errorf("slot %d holds %d", r, DecodeInt32(payload))
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBarrierReusable(t *testing.T) {
	err := Launch(3, func(g Group) error {
		for i := 0; i < 10; i++ {
			g.Barrier()
		}
		return nil
	})
	require.NoError(t, err)
}

// Receives must match on direction and offset even when messages from
// the same peer arrive in a different order than they are drained.
func TestRecvMatchesOutOfOrder(t *testing.T) {
	err := Launch(2, func(g Group) error {
		if g.Rank() == 0 {
			reqs := []Request{
				g.ISend(1, Envelope{Direction: DirRight, Offset: 2, Payload: []byte("second")}),
				g.ISend(1, Envelope{Direction: DirRight, Offset: 1, Payload: []byte("first")}),
				g.ISend(1, Envelope{Direction: DirLeft, Offset: 1, Payload: []byte("other")}),
			}
			return WaitAll(reqs)
		}

		first, err := g.Recv(0, DirRight, 1)
		if err != nil {
			return err
		}
		second, err := g.Recv(0, DirRight, 2)
		if err != nil {
			return err
		}
		other, err := g.Recv(0, DirLeft, 1)
		if err != nil {
			return err
		}
		if string(first) != "first" || string(second) != "second" || string(other) != "other" {
			return fmt.Errorf("mismatched payloads: %q %q %q", first, second, other)
		}
		return nil
	})
	require.NoError(t, err)
}

// ISend must not block even when the mailbox buffer is saturated.
func TestISendBeyondMailboxDepth(t *testing.T) {
	const messages = mailboxDepth * 3

	err := Launch(2, func(g Group) error {
		if g.Rank() == 0 {
			reqs := make([]Request, 0, messages)
			for i := 1; i <= messages; i++ {
				reqs = append(reqs, g.ISend(1, Envelope{Direction: DirRight, Offset: i, Payload: EncodeInt32(int32(i))}))
			}
			return WaitAll(reqs)
		}
		for i := 1; i <= messages; i++ {
			payload, err := g.Recv(0, DirRight, i)
			if err != nil {
				return err
			}
			if int(DecodeInt32(payload)) != i {
				return fmt.Errorf("offset %d carried %d", i, DecodeInt32(payload))
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRecvRejectsInvalidPeer(t *testing.T) {
	err := Launch(2, func(g Group) error {
		if g.Rank() != 0 {
			return nil
		}
		_, err := g.Recv(5, DirLeft, 1)
		if err == nil {
			return fmt.Errorf("expected error for invalid peer")
		}
		return nil
	})
	require.NoError(t, err)
}
