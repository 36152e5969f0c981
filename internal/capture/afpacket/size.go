//go:build linux

package afpacket

import (
	"fmt"
)

// recomputeSize derives a PACKET_MMAP ring layout close to ringBufferSizeMB:
// frameSize aligned to TPACKET_ALIGNMENT, blockSize a multiple of both the
// page size and frameSize, capped at 4 MB. When the least common multiple
// exceeds the cap, frameSize is widened to a whole number of pages.
func recomputeSize(ringBufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16 // TPACKET_ALIGNMENT for AF_PACKET
	const tpacketHdrLen = 52    // TPACKET2_HDRLEN or TPACKET3_HDRLEN (approximate)

	// Validate input parameters
	if ringBufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("capture.buffer_size_mb must be positive, got %d", ringBufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("capture.snap_len must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("pageSize must be positive and multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	targetBytes := ringBufferSizeMB * 1024 * 1024

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	const maxBlockSize = 4 * 1024 * 1024
	blockSize = max(lcm(pageSize, frameSize), pageSize, frameSize)
	if blockSize > maxBlockSize {
		frameSize = alignUp(frameSize, pageSize)
		blockSize = max(maxBlockSize/frameSize, 1) * frameSize
	}

	numBlocks = max(targetBytes/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// gcd computes the greatest common divisor of two integers
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm computes the least common multiple of two integers
func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return (a * b) / gcd(a, b)
}
