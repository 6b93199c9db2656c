// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package needed

import (
	"testing"

	"github.com/hooklift/assert"
)

func TestNewFullContainsEverything(t *testing.T) {
	s := NewFull(10)
	assert.Equals(t, int64(10), s.Count())
	for id := int64(0); id < 10; id++ {
		assert.Cond(t, s.Contains(id), "expected block to be needed")
	}
}

func TestRemoveMiddleSplitsInterval(t *testing.T) {
	s := NewFull(5) // [0,5)
	s.Remove(2)
	assert.Cond(t, !s.Contains(2), "block 2 should be removed")
	assert.Cond(t, s.Contains(0) && s.Contains(1), "left remainder should remain")
	assert.Cond(t, s.Contains(3) && s.Contains(4), "right remainder should remain")
	assert.Equals(t, int64(4), s.Count())
}

func TestRemoveLeftAndRightTrim(t *testing.T) {
	s := NewFull(5)
	s.Remove(0)
	assert.Cond(t, !s.Contains(0), "left edge removed")
	assert.Cond(t, s.Contains(1), "remainder intact")

	s.Remove(4)
	assert.Cond(t, !s.Contains(4), "right edge removed")
	assert.Equals(t, int64(3), s.Count())
}

func TestRemoveWholeIntervalDisappears(t *testing.T) {
	s := NewFull(1)
	s.Remove(0)
	assert.Equals(t, int64(0), s.Count())
	assert.Cond(t, !s.Contains(0), "sole block removed")
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewFull(3)
	s.Remove(1)
	s.Remove(1)
	assert.Equals(t, int64(2), s.Count())
}

func TestAddIsInverseOfRemove(t *testing.T) {
	s := NewFull(5)
	s.Remove(2)
	s.Add(2)
	assert.Equals(t, int64(5), s.Count())
	assert.Equals(t, []int64{0, 1, 2, 3, 4}, s.IDs())
}

func TestAddCoalescesBothSides(t *testing.T) {
	s := NewFull(5)
	s.Remove(1)
	s.Remove(2)
	s.Remove(3)
	assert.Equals(t, int64(2), s.Count())

	s.Add(2)
	s.Add(1)
	s.Add(3)
	assert.Equals(t, int64(5), s.Count())
	assert.Equals(t, []Interval{{Lo: 0, Hi: 5}}, s.Ranges(0))
}

func TestAddOutOfRangeIsNoop(t *testing.T) {
	s := NewFull(3)
	s.Add(99)
	s.Add(-1)
	assert.Equals(t, int64(3), s.Count())
}

func TestIDsAndCountAgree(t *testing.T) {
	s := NewFull(8)
	s.Remove(0)
	s.Remove(3)
	s.Remove(4)
	s.Remove(7)
	ids := s.IDs()
	assert.Equals(t, s.Count(), int64(len(ids)))
	assert.Equals(t, []int64{1, 2, 5, 6}, ids)
}

func TestByteRangesAlignedAndClipped(t *testing.T) {
	// 3 blocks of 10 bytes, but the file is only 25 bytes long (short last block).
	s := NewFull(3)
	ranges := s.ByteRanges(10, 25)
	assert.Equals(t, 1, len(ranges))
	assert.Equals(t, ByteRange{Lo: 0, Hi: 24}, ranges[0])
}

func TestByteRangesSkipsFullyRemovedIntervals(t *testing.T) {
	s := NewFull(4)
	s.Remove(1)
	s.Remove(2)
	ranges := s.ByteRanges(10, 40)
	assert.Equals(t, 2, len(ranges))
	assert.Equals(t, ByteRange{Lo: 0, Hi: 9}, ranges[0])
	assert.Equals(t, ByteRange{Lo: 30, Hi: 39}, ranges[1])
}

func TestRangesRespectsLimit(t *testing.T) {
	s := NewFull(10)
	s.Remove(5) // splits into two intervals: [0,5) and [6,10)
	all := s.Ranges(0)
	assert.Equals(t, 2, len(all))
	limited := s.Ranges(1)
	assert.Equals(t, 1, len(limited))
	assert.Equals(t, all[0], limited[0])
}
