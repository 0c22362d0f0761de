package anysgd

import (
	"encoding/binary"
	"math"
)

// A Hasher is a SampleList which can fingerprint each of
// its samples, typically by hashing the sample's source
// name.
type Hasher interface {
	SampleList
	Hash(i int) []byte
}

// HashSplit deterministically partitions a Hasher into a
// left and right part, for example a validation set and a
// training set.
//
// A sample lands on the left when the leading 64 bits of
// its hash fall in the first leftRatio of the hash space,
// so a sample's side never depends on the other samples.
//
// The Hasher is reordered in place.
func HashSplit(h Hasher, leftRatio float64) (left, right SampleList) {
	n := h.Len()
	if leftRatio <= 0 {
		return h.Slice(0, 0), h.Slice(0, n)
	} else if leftRatio >= 1 {
		return h.Slice(0, n), h.Slice(0, 0)
	}
	cutoff := hashCutoff(leftRatio)
	split := 0
	for i := 0; i < n; i++ {
		if hashPrefix(h.Hash(i)) < cutoff {
			h.Swap(split, i)
			split++
		}
	}
	return h.Slice(0, split), h.Slice(split, n)
}

func hashCutoff(ratio float64) uint64 {
	scaled := ratio * math.Exp2(64)
	if scaled >= math.Exp2(64) {
		return math.MaxUint64
	}
	return uint64(scaled)
}

// hashPrefix reads a hash as a big-endian integer,
// zero-padding short hashes.
func hashPrefix(hash []byte) uint64 {
	var buf [8]byte
	copy(buf[:], hash)
	return binary.BigEndian.Uint64(buf[:])
}
