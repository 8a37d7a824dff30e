package dtable

import (
	"github.com/sagpant/mlpack/internal/comm"
	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/table"
)

// Contribution is a named, addressed slice of points moving from one
// rank to another during redistribution. On the send side it packages
// the owner's points assigned to the target rank; on the receive side it
// decodes straight into a window of the pre-allocated new local buffer.
type Contribution struct {
	Owner   int
	Target  int
	Attrs   int
	Entries int

	values []float64
	ids    []int64
}

const contributionHeaderSize = 16

// BuildContribution collects the points of t that assignments map to
// target, on behalf of owner.
func BuildContribution(t *table.Table, assignments []int, owner, target int) *Contribution {
	c := &Contribution{Owner: owner, Target: target, Attrs: t.AttributeCount()}
	for pos, tgt := range assignments {
		if tgt != target {
			continue
		}
		c.values = append(c.values, t.Row(pos)...)
		c.ids = append(c.ids, t.ID(pos))
		c.Entries++
	}
	return c
}

// Encode serializes the contribution: a fixed header, the provenance
// ids, then the point values.
func (c *Contribution) Encode() []byte {
	buf := make([]byte, 0, contributionHeaderSize+c.Entries*(8+c.Attrs*8))
	buf = comm.PutInt32(buf, int32(c.Owner))
	buf = comm.PutInt32(buf, int32(c.Target))
	buf = comm.PutInt32(buf, int32(c.Attrs))
	buf = comm.PutInt32(buf, int32(c.Entries))
	buf = comm.PutInt64s(buf, c.ids)
	buf = comm.PutFloat64s(buf, c.values)
	return buf
}

// DecodeContribution parses a received contribution into the front of
// the supplied buffer windows, returning the sender's descriptor. The
// caller advances its write cursor by Entries.
func DecodeContribution(payload []byte, target, attrs int, values []float64, ids []int64) (*Contribution, error) {
	if len(payload) < contributionHeaderSize {
		return nil, errors.New(errors.ErrorTypeNetwork, "contribution.decode", "payload shorter than header")
	}
	c := &Contribution{
		Owner:   int(comm.Int32At(payload, 0)),
		Target:  int(comm.Int32At(payload, 4)),
		Attrs:   int(comm.Int32At(payload, 8)),
		Entries: int(comm.Int32At(payload, 12)),
	}
	if c.Target != target {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "contribution.decode",
			"contribution addressed to rank %d arrived at rank %d", c.Target, target)
	}
	if c.Attrs != attrs {
		return nil, errors.Newf(errors.ErrorTypeProtocol, "contribution.decode",
			"contribution carries %d attributes, table has %d", c.Attrs, attrs)
	}
	want := contributionHeaderSize + c.Entries*8 + c.Entries*attrs*8
	if len(payload) != want {
		return nil, errors.Newf(errors.ErrorTypeNetwork, "contribution.decode",
			"payload is %d bytes, header describes %d", len(payload), want)
	}
	if c.Entries*attrs > len(values) || c.Entries > len(ids) {
		return nil, errors.Newf(errors.ErrorTypeComputation, "contribution.decode",
			"contribution of %d points overruns the receive buffer", c.Entries)
	}

	comm.Int64sAt(payload, contributionHeaderSize, c.Entries, ids[:c.Entries])
	comm.Float64sAt(payload, contributionHeaderSize+c.Entries*8, c.Entries*attrs, values[:c.Entries*attrs])
	return c, nil
}

// extractSelf copies the caller's retained points (those assigned back
// to itself) into the front of the buffer windows and returns how many
// it wrote. A retained set larger than the window is reported the same
// way an oversized received contribution is.
func extractSelf(t *table.Table, assignments []int, self int, values []float64, ids []int64) (int, error) {
	retained := 0
	for _, tgt := range assignments {
		if tgt == self {
			retained++
		}
	}
	attrs := t.AttributeCount()
	if retained*attrs > len(values) || retained > len(ids) {
		return 0, errors.Newf(errors.ErrorTypeComputation, "contribution.extract_self",
			"%d retained points overrun the receive buffer", retained)
	}

	n := 0
	for pos, tgt := range assignments {
		if tgt != self {
			continue
		}
		copy(values[n*attrs:(n+1)*attrs], t.Row(pos))
		ids[n] = t.ID(pos)
		n++
	}
	return n, nil
}
