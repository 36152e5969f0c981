//go:build linux

package afpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeSizeSmallSnapLen(t *testing.T) {
	frameSize, blockSize, numBlocks, err := recomputeSize(8, 1500, 4096)
	require.NoError(t, err)

	assert.Equal(t, 1552, frameSize)
	assert.Zero(t, frameSize%16)
	assert.Zero(t, blockSize%4096)
	assert.Zero(t, blockSize%frameSize)
	assert.Equal(t, 397312, blockSize)
	assert.Equal(t, 21, numBlocks)
}

func TestRecomputeSizeLargeSnapLen(t *testing.T) {
	frameSize, blockSize, numBlocks, err := recomputeSize(8, 65535, 4096)
	require.NoError(t, err)

	assert.Equal(t, 69632, frameSize)
	assert.Zero(t, frameSize%16)
	assert.LessOrEqual(t, blockSize, 4*1024*1024)
	assert.Zero(t, blockSize%4096)
	assert.Zero(t, blockSize%frameSize)
	assert.Equal(t, 60*frameSize, blockSize)
	assert.Equal(t, 2, numBlocks)
}

func TestRecomputeSizeLayoutAccepted(t *testing.T) {
	for _, snapLen := range []int{64, 1500, 9000, 65535, 262144} {
		for _, pageSize := range []int{4096, 16384, 65536} {
			frameSize, blockSize, numBlocks, err := recomputeSize(8, snapLen, pageSize)
			require.NoError(t, err)

			assert.Zero(t, frameSize%16, "snap %d page %d", snapLen, pageSize)
			assert.Zero(t, blockSize%pageSize, "snap %d page %d", snapLen, pageSize)
			assert.Zero(t, blockSize%frameSize, "snap %d page %d", snapLen, pageSize)
			assert.GreaterOrEqual(t, frameSize, snapLen, "snap %d page %d", snapLen, pageSize)
			assert.Positive(t, numBlocks)
		}
	}
}

func TestRecomputeSizeAtLeastOneBlock(t *testing.T) {
	_, _, numBlocks, err := recomputeSize(1, 65535, 4096)
	require.NoError(t, err)
	assert.Equal(t, 1, numBlocks)
}

func TestRecomputeSizeInvalid(t *testing.T) {
	_, _, _, err := recomputeSize(0, 1500, 4096)
	assert.Error(t, err)
	_, _, _, err = recomputeSize(8, 0, 4096)
	assert.Error(t, err)
	_, _, _, err = recomputeSize(8, 1500, 1000)
	assert.Error(t, err)
}
