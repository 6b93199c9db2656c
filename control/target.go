// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package control implements the .zsync control-file codec: parsing the
// header/checksum-table format described in spec.md §6.1 and generating it
// from a source file per the sizing discipline in spec.md §3.
package control

import (
	"time"

	"github.com/zsgo/zsync/strongsum"
)

// SupportedVersion is the highest zsync control-file format version this
// implementation parses and emits.
const SupportedVersion = "0.6.2"

// BlockChecksum is one entry of the per-block checksum table: the weak
// rolling checksum (zero-extended to a full 32-bit value per spec.md §3)
// and the leading S bytes of the strong hash.
type BlockChecksum struct {
	Weak   uint32
	Strong []byte
}

// Target is the immutable, parsed description of a file being synchronized:
// block layout, checksum table, and header hints. It is produced once by
// Parse or Generate and never mutated afterward.
type Target struct {
	Version    string
	MinVersion string

	Filename string
	MTime    time.Time
	HasMTime bool

	BlockSize int64
	Length    int64
	NumBlocks int64

	SeqMatches int // k
	WeakLen    int // W, bytes
	StrongLen  int // S, bytes

	Algorithm strongsum.Algorithm

	URLs []string

	SHA1    [20]byte
	HasSHA1 bool

	Blocks []BlockChecksum // indexed by block id, len == NumBlocks
}
