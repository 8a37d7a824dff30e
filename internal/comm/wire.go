package comm

import (
	"encoding/binary"
	"math"

	"github.com/golang/snappy"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metrics"
)

const (
	// frameHeaderSize: Direction(1) + Flags(1) + Offset(4) + RawLen(4)
	frameHeaderSize = 10

	flagCompressed = 0x1

	// compressThreshold is the payload size below which snappy is not
	// attempted.
	compressThreshold = 512
)

// EncodeFrame serializes an envelope, snappy-compressing the payload when
// that saves space.
func EncodeFrame(env Envelope) []byte {
	payload := env.Payload
	flags := byte(0)
	if len(payload) >= compressThreshold {
		if compressed := snappy.Encode(nil, payload); len(compressed) < len(payload) {
			metrics.ContributionBytes.WithLabelValues("raw").Add(float64(len(payload)))
			metrics.ContributionBytes.WithLabelValues("compressed").Add(float64(len(compressed)))
			payload = compressed
			flags |= flagCompressed
		}
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(env.Direction)
	frame[1] = flags
	binary.BigEndian.PutUint32(frame[2:6], uint32(env.Offset))
	binary.BigEndian.PutUint32(frame[6:10], uint32(len(env.Payload)))
	copy(frame[frameHeaderSize:], payload)
	return frame
}

// DecodeFrame parses a frame back into an envelope, decompressing the
// payload when the sender compressed it.
func DecodeFrame(frame []byte) (Envelope, error) {
	if len(frame) < frameHeaderSize {
		return Envelope{}, errors.New(errors.ErrorTypeNetwork, "comm.decode", "frame too short")
	}
	env := Envelope{
		Direction: Direction(frame[0]),
		Offset:    int(binary.BigEndian.Uint32(frame[2:6])),
	}
	rawLen := int(binary.BigEndian.Uint32(frame[6:10]))
	payload := frame[frameHeaderSize:]
	if frame[1]&flagCompressed != 0 {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return Envelope{}, errors.Wrap(err, errors.ErrorTypeNetwork, "comm.decode", "snappy payload")
		}
		payload = decoded
	}
	if len(payload) != rawLen {
		return Envelope{}, errors.Newf(errors.ErrorTypeNetwork, "comm.decode",
			"payload length %d does not match header %d", len(payload), rawLen)
	}
	env.Payload = payload
	return env, nil
}

// PutInt32 appends v to dst in big-endian order.
func PutInt32(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

// Int32At reads a big-endian int32 at offset off.
func Int32At(src []byte, off int) int32 {
	return int32(binary.BigEndian.Uint32(src[off : off+4]))
}

// PutFloat64s appends vs to dst.
func PutFloat64s(dst []byte, vs []float64) []byte {
	for _, v := range vs {
		dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}

// Float64sAt decodes n float64s starting at offset off into out.
func Float64sAt(src []byte, off, n int, out []float64) {
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(src[off+i*8 : off+i*8+8]))
	}
}

// PutInt64s appends vs to dst.
func PutInt64s(dst []byte, vs []int64) []byte {
	for _, v := range vs {
		dst = binary.BigEndian.AppendUint64(dst, uint64(v))
	}
	return dst
}

// Int64sAt decodes n int64s starting at offset off into out.
func Int64sAt(src []byte, off, n int, out []int64) {
	for i := 0; i < n; i++ {
		out[i] = int64(binary.BigEndian.Uint64(src[off+i*8 : off+i*8+8]))
	}
}

// EncodeInt32 encodes a single int32 payload, the common shape for count
// handshakes.
func EncodeInt32(v int32) []byte {
	return PutInt32(nil, v)
}

// DecodeInt32 reads a single int32 payload.
func DecodeInt32(payload []byte) int32 {
	return Int32At(payload, 0)
}

// EncodeFloat64s encodes a bare float64 vector payload.
func EncodeFloat64s(vs []float64) []byte {
	return PutFloat64s(make([]byte, 0, len(vs)*8), vs)
}

// DecodeFloat64s decodes a bare float64 vector payload.
func DecodeFloat64s(payload []byte) []float64 {
	out := make([]float64, len(payload)/8)
	Float64sAt(payload, 0, len(out), out)
	return out
}
