// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hooklift/assert"
	"github.com/zsgo/zsync/strongsum"
)

func genTarget(t *testing.T, data []byte, blocksize int64) (*Target, []byte) {
	var buf bytes.Buffer
	target, err := Generate(&buf, bytes.NewReader(data), GeneratorOptions{
		BlockSize: blocksize,
		Filename:  "widget.bin",
		URLs:      []string{"http://example.com/widget.bin"},
	})
	assert.Ok(t, err)
	return target, buf.Bytes()
}

func TestGenerateThenParseRoundTrips(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 300) // 4800 bytes, uneven w.r.t. blocksize
	target, encoded := genTarget(t, data, 1024)

	parsed, err := Parse(bytes.NewReader(encoded), "")
	assert.Ok(t, err)

	assert.Equals(t, target.Length, parsed.Length)
	assert.Equals(t, target.BlockSize, parsed.BlockSize)
	assert.Equals(t, target.NumBlocks, parsed.NumBlocks)
	assert.Equals(t, target.SeqMatches, parsed.SeqMatches)
	assert.Equals(t, target.WeakLen, parsed.WeakLen)
	assert.Equals(t, target.StrongLen, parsed.StrongLen)
	assert.Equals(t, target.SHA1, parsed.SHA1)
	assert.Equals(t, target.URLs, parsed.URLs)
	assert.Equals(t, len(target.Blocks), len(parsed.Blocks))

	for i := range target.Blocks {
		assert.Equals(t, target.Blocks[i].Strong, parsed.Blocks[i].Strong)
	}
}

func TestGenerateHandlesShortLastBlock(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 1000) // not a multiple of the blocksize
	target, encoded := genTarget(t, data, 256)
	assert.Equals(t, int64(4), target.NumBlocks) // 3 full blocks + 1 short block of 232 bytes

	parsed, err := Parse(bytes.NewReader(encoded), "")
	assert.Ok(t, err)
	assert.Equals(t, target.NumBlocks, parsed.NumBlocks)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	raw := "zsync: 0.0.1\nLength: 10\nBlocksize: 4\nHash-Lengths: 1,2,4\nURL: http://x/y\n\n"
	_, err := Parse(strings.NewReader(raw), "")
	assert.Cond(t, err != nil, "expected an incompatible-version error")
}

func TestParseRejectsNonPowerOfTwoBlocksize(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 10\nBlocksize: 100\nHash-Lengths: 1,2,4\nURL: http://x/y\n\n"
	_, err := Parse(strings.NewReader(raw), "")
	assert.Cond(t, err != nil, "expected a malformed-control error for a non power-of-two blocksize")
}

func TestParseRejectsMissingRequiredHeader(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nBlocksize: 4\nHash-Lengths: 1,2,4\nURL: http://x/y\n\n"
	_, err := Parse(strings.NewReader(raw), "")
	assert.Cond(t, err != nil, "expected a malformed-control error for missing Length")
}

func TestParseRejectsUnsafeUnknownHeader(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 10\nBlocksize: 4\nHash-Lengths: 1,2,4\nURL: http://x/y\nX-Custom: 1\n\n"
	_, err := Parse(strings.NewReader(raw), "")
	assert.Cond(t, err != nil, "expected a malformed-control error for an unsafe unknown header")
}

func TestParseAllowsHeaderListedAsSafe(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 16\nBlocksize: 16\nHash-Lengths: 1,2,4\nSafe: X-Custom\nX-Custom: 1\nURL: http://x/y\n\n"
	body := make([]byte, 6) // w=2 + s=4, one 16-byte block
	_, err := Parse(bytes.NewReader(append([]byte(raw), body...)), "")
	assert.Ok(t, err)
}

func TestParseResolvesRelativeURLAgainstReferer(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 16\nBlocksize: 16\nHash-Lengths: 1,2,4\nURL: widget.bin\n\n"
	body := make([]byte, 6)
	target, err := Parse(bytes.NewReader(append([]byte(raw), body...)), "http://example.com/dir/widget.zsync")
	assert.Ok(t, err)
	assert.Equals(t, []string{"http://example.com/dir/widget.bin"}, target.URLs)
}

func TestParseDefaultsToMD4WithoutHashAlgorithmHeader(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 16\nBlocksize: 16\nHash-Lengths: 1,2,4\nURL: http://x/y\n\n"
	body := make([]byte, 6)
	target, err := Parse(bytes.NewReader(append([]byte(raw), body...)), "")
	assert.Ok(t, err)
	assert.Equals(t, strongsum.MD4, target.Algorithm)
}

func TestGenerateSHA1AlgorithmRoundTrips(t *testing.T) {
	data := bytes.Repeat([]byte("zsync"), 500)
	var buf bytes.Buffer
	_, err := Generate(&buf, bytes.NewReader(data), GeneratorOptions{
		BlockSize: 512,
		URLs:      []string{"http://example.com/f"},
		Algorithm: strongsum.SHA1,
	})
	assert.Ok(t, err)

	parsed, err := Parse(bytes.NewReader(buf.Bytes()), "")
	assert.Ok(t, err)
	assert.Equals(t, strongsum.SHA1, parsed.Algorithm)
}

func TestParseRejectsTruncatedChecksumTable(t *testing.T) {
	raw := "zsync: " + SupportedVersion + "\nLength: 16\nBlocksize: 16\nHash-Lengths: 1,2,4\nURL: http://x/y\n\n"
	_, err := Parse(strings.NewReader(raw), "") // no table bytes at all
	assert.Cond(t, err != nil, "expected a malformed-control error for a truncated table")
}

func TestChooseSizesStayWithinSpecBounds(t *testing.T) {
	cases := []struct {
		length, blocksize int64
	}{
		{1024, 512},
		{10 * 1024 * 1024, 2048},
		{4096, 4096},
		{1 << 30, 1 << 16},
	}
	for _, c := range cases {
		k, w, s := ChooseSizes(c.length, c.blocksize)
		assert.Cond(t, k == 1 || k == 2, "k out of range")
		assert.Cond(t, w >= 2 && w <= 4, "w out of range")
		assert.Cond(t, s >= 4 && s <= 16, "s out of range")
	}
}

func TestChooseSizesGrowsWithFileSize(t *testing.T) {
	_, _, sSmall := ChooseSizes(4096, 4096)
	_, _, sLarge := ChooseSizes(100<<30, 4096)
	assert.Cond(t, sLarge >= sSmall, "strong hash length should not shrink for a much larger file")
}
