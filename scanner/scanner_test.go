// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scanner

import (
	"bytes"
	"testing"

	"github.com/hooklift/assert"
	"github.com/zsgo/zsync/blockindex"
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/needed"
	"github.com/zsgo/zsync/store"
)

// buildTarget generates a control.Target in memory for use as a scan
// target, without going through the .zsync wire format.
func buildTarget(t *testing.T, data []byte, blocksize int64, seqMatches int) *control.Target {
	t.Helper()
	var buf bytes.Buffer
	target, err := control.Generate(&buf, bytes.NewReader(data), control.GeneratorOptions{
		BlockSize: blocksize,
		URLs:      []string{"http://example.com/f"},
	})
	assert.Ok(t, err)
	if seqMatches > 0 {
		target.SeqMatches = seqMatches
	}
	return target
}

func newScanner(t *testing.T, target *control.Target) (*Scanner, *needed.Set) {
	t.Helper()
	ns := needed.NewFull(target.NumBlocks)
	idx := blockindex.New(target.Blocks, ns.IDs(), target.WeakLen)
	st, err := store.New(t.TempDir(), target.BlockSize, target.Length)
	assert.Ok(t, err)
	t.Cleanup(func() { st.Close() })
	sc, err := New(target, idx, ns, st, nil)
	assert.Ok(t, err)
	return sc, ns
}

func TestScanIdenticalSeedFindsEveryBlock(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64) // 1024 bytes
	target := buildTarget(t, data, 64, 0)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(data)))
	assert.Equals(t, int64(0), ns.Count())
}

func TestScanOffsetShiftedSeedStillFindsBlocks(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64)
	target := buildTarget(t, data, 64, 0)

	// Prepend 17 bytes of garbage so every target block appears at a
	// non-block-aligned offset in the seed; the rolling checksum must still
	// find it.
	shifted := append(bytes.Repeat([]byte{0xFF}, 17), data...)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(shifted)))
	assert.Equals(t, int64(0), ns.Count())
}

func TestScanUnrelatedSeedFindsNothing(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64)
	target := buildTarget(t, data, 64, 0)

	garbage := bytes.Repeat([]byte{0x99}, len(data))
	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(garbage)))
	assert.Equals(t, target.NumBlocks, ns.Count())
}

func TestScanShortSeedBelowBlocksizeIsNoop(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64)
	target := buildTarget(t, data, 64, 0)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader([]byte("short"))))
	assert.Equals(t, target.NumBlocks, ns.Count())
}

func TestScanConsecutiveMatchRequirementDiscardsSingleton(t *testing.T) {
	// A seed holding a copy of block 0 that is not followed by block 1 is
	// not enough evidence when k=2: only a genuinely consecutive pair of
	// blocks should commit.
	block := bytes.Repeat([]byte{0xAB}, 32)
	data := append(append([]byte{}, block...), bytes.Repeat([]byte{0xCD}, 32)...)
	target := buildTarget(t, data, 32, 2)

	isolated := append(bytes.Repeat([]byte{0x11}, 10), block...)
	isolated = append(isolated, bytes.Repeat([]byte{0x22}, 10)...)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(isolated)))
	// Only a lone, non-consecutive candidate: with k=2 it must not commit.
	assert.Equals(t, int64(2), ns.Count())
}

func TestScanConsecutivePairCommitsAtK2(t *testing.T) {
	// With k=2 forced, a genuinely consecutive pair of blocks must still
	// commit: the pending run has to survive the blocksize-byte gap
	// between confirming block 0 and reaching the position where its
	// successor, block 1, starts.
	block0 := bytes.Repeat([]byte{0xAB}, 32)
	block1 := bytes.Repeat([]byte{0xCD}, 32)
	data := append(append([]byte{}, block0...), block1...)
	target := buildTarget(t, data, 32, 2)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(data)))
	assert.Equals(t, int64(0), ns.Count())
}

func TestScanIdentitySeedFindsShortFinalBlock(t *testing.T) {
	// Scenario A: an identity seed whose length is not a multiple of the
	// blocksize. The final, short block's reference hash was computed over
	// a zero-padded block, so the scan must pad the seed's tail the same
	// way to find it.
	full := bytes.Repeat([]byte("0123456789"), 300) // 3000 bytes
	data := full[:2500]
	target := buildTarget(t, data, 1024, 0)
	assert.Equals(t, int64(3), target.NumBlocks) // 2 full blocks + 1 short (452 bytes)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(data)))
	assert.Equals(t, int64(0), ns.Count())
}

func TestScanIdentitySeedSingleShortBlockFile(t *testing.T) {
	// Degenerate case: a file with exactly one block, shorter than the
	// blocksize. Its own identity seed must still confirm it.
	data := []byte("just a few bytes, fewer than the blocksize")
	target := buildTarget(t, data, 1024, 0)
	assert.Equals(t, int64(1), target.NumBlocks)

	sc, ns := newScanner(t, target)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(data)))
	assert.Equals(t, int64(0), ns.Count())
}

func TestScanRecorderReceivesMatches(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 8)
	target := buildTarget(t, data, 16, 0)

	ns := needed.NewFull(target.NumBlocks)
	idx := blockindex.New(target.Blocks, ns.IDs(), target.WeakLen)
	st, err := store.New(t.TempDir(), target.BlockSize, target.Length)
	assert.Ok(t, err)
	defer st.Close()

	rec := &recordingRecorder{}
	sc, err := New(target, idx, ns, st, rec)
	assert.Ok(t, err)
	assert.Ok(t, sc.ScanSeed(bytes.NewReader(data)))

	assert.Equals(t, int(target.NumBlocks), len(rec.matches))
}

type recordingRecorder struct {
	matches []int64
}

func (r *recordingRecorder) OnMatch(blockID, seedOffset int64) {
	r.matches = append(r.matches, blockID)
}
