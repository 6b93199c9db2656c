// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockindex implements the two-level weak-checksum lookup used to
// find candidate target blocks during a seed scan: a mod-size bucket table
// plus a bit-hash negative filter, per spec.md §4.3.
package blockindex

import (
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/rsum"
)

type entry struct {
	weak    uint32
	blockID int64
	next    int // index into the entries pool, -1 terminates the chain
}

// Index answers "which needed blocks have this weak checksum", in file
// order, for a fixed weak-checksum wire width.
type Index struct {
	blocks  []control.BlockChecksum
	weakLen int

	buckets    []int // bucket head -> index into entries, -1 if empty
	bucketMask uint32
	entries    []entry

	bithash    []byte
	bitMask    uint32
	neededSize int64
}

// minBuckets bounds chain length even for tiny needed sets.
const minBuckets = 32

// New builds an index over neededIDs, a sorted slice of block ids still
// needed, consulting blocks (the full per-block checksum table, indexed by
// block id) for their weak sums.
func New(blocks []control.BlockChecksum, neededIDs []int64, weakLen int) *Index {
	bucketCount := nextPow2(len(neededIDs) * 2)
	if bucketCount < minBuckets {
		bucketCount = minBuckets
	}

	ix := &Index{
		blocks:     blocks,
		weakLen:    weakLen,
		buckets:    make([]int, bucketCount),
		bucketMask: uint32(bucketCount - 1),
		entries:    make([]entry, 0, len(neededIDs)),
		neededSize: int64(len(neededIDs)),
	}
	for i := range ix.buckets {
		ix.buckets[i] = -1
	}

	bitBits := nextPow2(bucketCount * 4)
	ix.bithash = make([]byte, bitBits/8)
	ix.bitMask = uint32(bitBits - 1)

	for _, id := range neededIDs {
		ix.insert(id)
	}
	return ix
}

func (ix *Index) insert(id int64) {
	masked := rsum.MaskValue(ix.blocks[id].Weak, ix.weakLen)
	bucket := ix.bucketKey(masked)
	e := entry{weak: masked, blockID: id, next: ix.buckets[bucket]}
	ix.entries = append(ix.entries, e)
	ix.buckets[bucket] = len(ix.entries) - 1
	ix.setBit(masked)
}

func (ix *Index) bucketKey(masked uint32) uint32 {
	return masked & ix.bucketMask
}

// bitProjection spreads bits from both halves of the weak sum so the
// negative filter doesn't degenerate to the same low bits the bucket table
// already uses.
func (ix *Index) bitProjection(masked uint32) uint32 {
	return (masked ^ (masked >> 13) ^ (masked >> 23)) & ix.bitMask
}

func (ix *Index) setBit(masked uint32) {
	p := ix.bitProjection(masked)
	ix.bithash[p/8] |= 1 << (p % 8)
}

func (ix *Index) testBit(masked uint32) bool {
	p := ix.bitProjection(masked)
	return ix.bithash[p/8]&(1<<(p%8)) != 0
}

// Lookup returns the needed block ids whose recorded weak sum matches
// weak (already masked to this index's weak-checksum width), in file
// order. It returns nil quickly via the bit-hash when nothing can match.
func (ix *Index) Lookup(weak uint32) []int64 {
	if len(ix.entries) == 0 || !ix.testBit(weak) {
		return nil
	}
	bucket := ix.bucketKey(weak)
	var hits []int64
	for i := ix.buckets[bucket]; i != -1; i = ix.entries[i].next {
		if ix.entries[i].weak == weak {
			hits = append(hits, ix.entries[i].blockID)
		}
	}
	if len(hits) < 2 {
		return hits
	}
	// Buckets are built by prepending, so restore file order.
	for l, r := 0, len(hits)-1; l < r; l, r = l+1, r-1 {
		hits[l], hits[r] = hits[r], hits[l]
	}
	return hits
}

// NeededCount reports how many ids this index was built over.
func (ix *Index) NeededCount() int64 {
	return ix.neededSize
}

// BucketCount reports the bucket table size, the quantity ShouldRebuild
// weighs the current needed count against (spec.md §4.3, §9).
func (ix *Index) BucketCount() int {
	return len(ix.buckets)
}

// ShouldRebuild reports whether the current needed count has shrunk enough
// relative to this index's bucket table to be worth rebuilding.
func (ix *Index) ShouldRebuild(currentNeeded int64) bool {
	if currentNeeded < 32 && ix.neededSize >= 32 {
		return true
	}
	return currentNeeded*2 < int64(len(ix.buckets))/2
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
