package colo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagingBufferReuse(t *testing.T) {
	buf, err := newStagingBuffer(64)
	require.NoError(t, err)

	_, err = buf.Write([]byte("first checkpoint state"))
	require.NoError(t, err)
	assert.Equal(t, 22, buf.Len())

	buf.Reset()
	assert.Zero(t, buf.Len())

	_, err = buf.Write([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), buf.Bytes())
}

func TestStagingBufferInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := newStagingBuffer(capacity)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBufferAllocation)
	}
}
