// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import "math"

// ChooseSizes derives sound checksum widths for a file of the given length
// and blocksize, per the sizing discipline in spec.md §3.
func ChooseSizes(length, blocksize int64) (k, w, s int) {
	L := float64(length)
	B := float64(blocksize)

	k = 1
	wf := (math.Log2(L) + math.Log2(B) - 8.6) / 8
	W := int(math.Ceil(wf))
	if W > 4 {
		W = 4
		k = 2
	}
	if W < 2 {
		W = 2
	}

	ratio := 1 + L/B
	sf1 := (20 + math.Log2(L) + math.Log2(ratio)) / (8 * float64(k))
	sf2 := (20 + math.Log2(ratio)) / 8
	S := int(math.Ceil(math.Max(sf1, sf2)))
	if S < 4 {
		S = 4
	}
	if S > 16 {
		S = 16
	}

	return k, W, S
}
