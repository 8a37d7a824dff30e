package comm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	env := Envelope{Direction: DirLeft, Offset: 3, Payload: []byte{1, 2, 3, 4, 5}}

	decoded, err := DecodeFrame(EncodeFrame(env))
	require.NoError(t, err)
	assert.Equal(t, DirLeft, decoded.Direction)
	assert.Equal(t, 3, decoded.Offset)
	assert.Equal(t, env.Payload, decoded.Payload)
}

func TestFrameCompressesLargePayloads(t *testing.T) {
	// Highly repetitive payload well above the compression threshold.
	payload := bytes.Repeat([]byte("abcdefgh"), 1024)
	env := Envelope{Direction: DirRight, Offset: 1, Payload: payload}

	frame := EncodeFrame(env)
	assert.Less(t, len(frame), len(payload))

	decoded, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded.Payload)
}

func TestDecodeFrameRejectsShortInput(t *testing.T) {
	_, err := DecodeFrame([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNumericCodecs(t *testing.T) {
	floats := []float64{0, -1.5, 3.25, 1e300}
	buf := PutFloat64s(nil, floats)
	out := make([]float64, len(floats))
	Float64sAt(buf, 0, len(floats), out)
	assert.Equal(t, floats, out)

	ints := []int64{0, -7, 1 << 50}
	buf = PutInt64s(nil, ints)
	iout := make([]int64, len(ints))
	Int64sAt(buf, 0, len(ints), iout)
	assert.Equal(t, ints, iout)

	assert.Equal(t, int32(-42), DecodeInt32(EncodeInt32(-42)))
	assert.Equal(t, floats, DecodeFloat64s(EncodeFloat64s(floats)))
}
