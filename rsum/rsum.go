// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rsum implements the Adler-style weak rolling checksum used to
// scan a seed file for blocks of a target file, after the fashion of
// rsync's rolling checksum.
package rsum

// Sum holds the two 16-bit accumulators of the rolling checksum.
type Sum struct {
	A uint32
	B uint32
}

const mod16 = 1 << 16

// Compute returns the rolling checksum of block, which is treated as if it
// were exactly blocksize bytes: shorter blocks (the final, short block of a
// file) are implicitly zero-padded on the right to blocksize bytes, per the
// hashing rule for the trailing block.
func Compute(block []byte, blocksize int) Sum {
	var a, b uint32
	n := len(block)
	for i := 0; i < blocksize; i++ {
		var x uint32
		if i < n {
			x = uint32(block[i])
		}
		a += x
		b += uint32(blocksize-i) * x
	}
	return Sum{A: a % mod16, B: b % mod16}
}

// Value returns the 32-bit rolling checksum as transmitted on the wire.
func (s Sum) Value() uint32 {
	return (s.A << 16) | s.B
}

// Roll advances the checksum by one byte: old leaves the window, new enters
// it. blocksize is the fixed window width.
func (s Sum) Roll(blocksize int, old, new byte) Sum {
	a := (s.A - uint32(old) + uint32(new)) & (mod16 - 1)
	b := (s.B - uint32(blocksize)*uint32(old) + a) & (mod16 - 1)
	return Sum{A: a, B: b}
}

// Masked returns the low-order w bytes of the 32-bit rolling checksum, the
// same truncation rule the control-file codec uses when it writes a weak
// checksum of wire width w (spec.md §3, §4.7): w<=2 drops the "a" component
// entirely (only "b" participates), w==3 keeps the low 8 bits of "a", w>=4
// keeps all 16 bits of "a". "b" participates in full for w>=2; w==1 keeps
// only its low 8 bits.
func (s Sum) Masked(w int) uint32 {
	return MaskValue(s.Value(), w)
}

// MaskValue applies the same low-order-w-bytes truncation as Sum.Masked to
// an already-computed 32-bit value. It is idempotent: masking a value that
// is already truncated to w bytes (e.g. one decoded straight off the wire)
// leaves it unchanged, so callers never need to know whether a weak sum
// came from a live rolling computation or a parsed control file.
func MaskValue(v uint32, w int) uint32 {
	if w >= 4 {
		return v
	}
	bits := uint(8 * w)
	return v & ((1 << bits) - 1)
}
