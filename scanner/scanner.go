// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package scanner implements the byte-level seed scan that discovers which
// target blocks a seed stream already contains, per spec.md §4.4.
package scanner

import (
	"bytes"
	"hash"
	"io"

	"github.com/pkg/errors"
	"github.com/zsgo/zsync/blockindex"
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/needed"
	"github.com/zsgo/zsync/rsum"
	"github.com/zsgo/zsync/store"
	"github.com/zsgo/zsync/strongsum"
)

// Recorder is an optional observer notified of each confirmed match, used
// by the range-planner CLI to report which seed byte ranges were reused.
type Recorder interface {
	OnMatch(blockID int64, seedOffset int64)
}

// Scanner scans seed streams against a single target's block index.
type Scanner struct {
	target *control.Target
	index  *blockindex.Index
	needed *needed.Set
	store  *store.Store
	hasher hash.Hash

	recorder Recorder
}

// New builds a Scanner. index must have been built (or rebuilt) from the
// current contents of needed.
func New(target *control.Target, index *blockindex.Index, needed *needed.Set, st *store.Store, recorder Recorder) (*Scanner, error) {
	h, err := strongsum.New(target.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		target:   target,
		index:    index,
		needed:   needed,
		store:    st,
		hasher:   h,
		recorder: recorder,
	}, nil
}

type pendingMatch struct {
	id    int64
	start int
}

// ScanSeed reads r fully and scans it for target blocks. Any block it
// confirms is written to the target store and removed from the needed set.
// A read error is wrapped and returned to the caller as a SeedIOError,
// which spec.md §7 treats as non-fatal: the caller should skip this seed
// and continue.
func (sc *Scanner) ScanSeed(r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "scanner: reading seed")
	}
	return sc.scanBuffer(buf)
}

// atOrZero reads buf[i], treating any index at or past the end of the seed
// as a zero byte: sliding a window past EOF is the same as the historical
// librcksum padding the trailing partial read to a full block before
// hashing it (spec.md §4.4 step 4, §9).
func atOrZero(buf []byte, i int) byte {
	if i < len(buf) {
		return buf[i]
	}
	return 0
}

// blockAt returns the blocksize bytes of buf starting at pos, zero-padding
// on the right when pos+blocksize runs past the end of buf. The short
// final block of a file is hashed this way by control.Generate, so a seed
// that ends exactly at that block must be read the same way to match it.
func blockAt(buf []byte, pos, blocksize int) []byte {
	if pos+blocksize <= len(buf) {
		return buf[pos : pos+blocksize]
	}
	b := make([]byte, blocksize)
	if pos < len(buf) {
		copy(b, buf[pos:])
	}
	return b
}

func (sc *Scanner) scanBuffer(buf []byte) error {
	blocksize := int(sc.target.BlockSize)
	n := len(buf)
	if n == 0 {
		return nil
	}

	cur := rsum.Compute(blockAt(buf, 0, blocksize), blocksize)
	pos := 0

	var pending []pendingMatch
	k := sc.target.SeqMatches
	if k < 1 {
		k = 1
	}

	commit := func() error {
		for _, pm := range pending {
			block := blockAt(buf, pm.start, blocksize)
			if err := sc.store.WriteBlock(pm.id, block); err != nil {
				return errors.Wrap(err, "scanner: writing confirmed block")
			}
			sc.needed.Remove(pm.id)
			if sc.recorder != nil {
				sc.recorder.OnMatch(pm.id, int64(pm.start))
			}
		}
		pending = pending[:0]
		return nil
	}

	for {
		weak := cur.Masked(sc.target.WeakLen)
		matchedID := int64(-1)
		atSuccessorPos := false

		if len(pending) > 0 {
			// A run is in progress: the only candidate worth confirming is
			// the structural successor of the last confirmed block, and
			// only once pos has rolled all the way to where that successor
			// would start. Every intermediate position in between leaves
			// the pending run untouched instead of discarding it, so the
			// run survives the blocksize-byte gap between a block and its
			// successor (spec.md §4.4 step 4).
			last := pending[len(pending)-1]
			wantPos := last.start + blocksize
			if pos == wantPos {
				atSuccessorPos = true
				if candidates := sc.index.Lookup(weak); len(candidates) > 0 {
					wantID := last.id + 1
					for _, id := range candidates {
						if id == wantID && sc.needed.Contains(id) {
							ok, err := sc.confirm(buf, pos, id)
							if err != nil {
								return err
							}
							if ok {
								matchedID = id
							}
							break
						}
					}
				}
			}
		} else if candidates := sc.index.Lookup(weak); len(candidates) > 0 {
			for _, id := range candidates {
				if !sc.needed.Contains(id) {
					continue
				}
				ok, err := sc.confirm(buf, pos, id)
				if err != nil {
					return err
				}
				if ok {
					matchedID = id
					break
				}
			}
		}

		if matchedID >= 0 {
			pending = append(pending, pendingMatch{id: matchedID, start: pos})
			if len(pending) >= k {
				if err := commit(); err != nil {
					return err
				}
			}
		} else if atSuccessorPos {
			// Reached the successor position and it didn't confirm: the
			// run is broken, discard it.
			pending = pending[:0]
		}

		if sc.needed.Count() == 0 {
			return nil
		}
		if pos >= n-1 {
			break
		}
		old := atOrZero(buf, pos)
		next := atOrZero(buf, pos+blocksize)
		cur = cur.Roll(blocksize, old, next)
		pos++
	}
	return nil
}

func (sc *Scanner) confirm(buf []byte, pos int, id int64) (bool, error) {
	blocksize := int(sc.target.BlockSize)
	block := blockAt(buf, pos, blocksize)
	digest, err := strongsum.HashBlock(sc.hasher, block, blocksize)
	if err != nil {
		return false, errors.Wrap(err, "scanner: hashing candidate block")
	}
	prefix := digest[:sc.target.StrongLen]
	return bytes.Equal(prefix, sc.target.Blocks[id].Strong), nil
}
