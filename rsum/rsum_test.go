// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsum

import (
	"testing"

	"github.com/hooklift/assert"
)

// TestRollMatchesCompute verifies that incrementally rolling the checksum
// byte-by-byte across a buffer arrives at the same value as computing it
// fresh at each window position, the rolling-sum correctness property.
func TestRollMatchesCompute(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	blocksize := 8

	cur := Compute(data[0:blocksize], blocksize)
	for pos := 0; pos+blocksize < len(data); pos++ {
		want := Compute(data[pos+1:pos+1+blocksize], blocksize)
		cur = cur.Roll(blocksize, data[pos], data[pos+blocksize])
		assert.Equals(t, want.A, cur.A)
		assert.Equals(t, want.B, cur.B)
	}
}

func TestComputeZeroPadsShortBlock(t *testing.T) {
	full := Compute([]byte("ab\x00\x00"), 4)
	short := Compute([]byte("ab"), 4)
	assert.Equals(t, full.Value(), short.Value())
}

func TestMaskValue(t *testing.T) {
	v := uint32(0xAABBCCDD)
	assert.Equals(t, uint32(0x000000DD), MaskValue(v, 1))
	assert.Equals(t, uint32(0x0000CCDD), MaskValue(v, 2))
	assert.Equals(t, uint32(0x00BBCCDD), MaskValue(v, 3))
	assert.Equals(t, v, MaskValue(v, 4))
}

func TestMaskValueIdempotent(t *testing.T) {
	v := uint32(0xAABBCCDD)
	once := MaskValue(v, 2)
	twice := MaskValue(once, 2)
	assert.Equals(t, once, twice)
}

func TestMaskedMatchesMaskValue(t *testing.T) {
	s := Compute([]byte("abcdefgh"), 8)
	assert.Equals(t, MaskValue(s.Value(), 2), s.Masked(2))
}
