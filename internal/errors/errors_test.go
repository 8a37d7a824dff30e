package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredErrorFormatting(t *testing.T) {
	err := New(ErrorTypeValidation, "indexData", "sample probability out of range")
	assert.Equal(t, "[validation] indexData: sample probability out of range", err.Error())

	wrapped := Wrap(fmt.Errorf("disk full"), ErrorTypeStorage, "save", "write shard")
	assert.Equal(t, "[storage] save: write shard: disk full", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeNetwork, "recv", "should vanish"))
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeComputation, "redistribute", "cursor %d != owned %d", 3, 5)
	assert.Contains(t, err.Error(), "cursor 3 != owned 5")
	assert.Equal(t, ErrorTypeComputation, err.Type)
}

func TestUnwrapAndSentinels(t *testing.T) {
	err := Wrap(ErrInvalidRank, ErrorTypeValidation, "localEntryCount", "rank 7")
	require.True(t, stderrors.Is(err, ErrInvalidRank))
	require.True(t, Is(err, ErrInvalidRank))
	assert.False(t, Is(err, ErrEnvelopeMismatch))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeProtocol, "broadcast", "empty frame")
	assert.True(t, IsType(err, ErrorTypeProtocol))
	assert.False(t, IsType(err, ErrorTypeNetwork))

	// Type detection survives further wrapping.
	outer := fmt.Errorf("during indexData: %w", err)
	assert.True(t, IsType(outer, ErrorTypeProtocol))

	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeProtocol))
}

func TestWithContext(t *testing.T) {
	err := New(ErrorTypeNetwork, "isend", "peer unreachable").
		WithContext("peer", 3).
		WithContext("offset", 1)
	assert.Equal(t, 3, err.Context["peer"])
	assert.Equal(t, 1, err.Context["offset"])
}

func TestCaptureStack(t *testing.T) {
	err := New(ErrorTypeComputation, "op", "msg")
	assert.NotEmpty(t, err.Stack)
}
