// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package needed tracks which target blocks have not yet been obtained, as
// a canonical sorted, disjoint, maximally-coalesced set of half-open
// block-id intervals over [0,N).
package needed

// Interval is a half-open block-id range [Lo, Hi).
type Interval struct {
	Lo, Hi int64
}

// Set is the needed-block set.
type Set struct {
	n         int64
	intervals []Interval
}

// NewFull returns a Set with every block in [0,n) marked needed.
func NewFull(n int64) *Set {
	s := &Set{n: n}
	if n > 0 {
		s.intervals = []Interval{{Lo: 0, Hi: n}}
	}
	return s
}

// Contains reports whether block id is still needed.
func (s *Set) Contains(id int64) bool {
	for _, iv := range s.intervals {
		if id >= iv.Lo && id < iv.Hi {
			return true
		}
		if id < iv.Lo {
			break
		}
	}
	return false
}

// Remove marks block id present (no longer needed). No-op if already absent.
func (s *Set) Remove(id int64) {
	for i, iv := range s.intervals {
		if id < iv.Lo || id >= iv.Hi {
			continue
		}
		switch {
		case iv.Lo == id && iv.Hi == id+1:
			// whole interval disappears
			s.intervals = append(s.intervals[:i], s.intervals[i+1:]...)
		case iv.Lo == id:
			s.intervals[i].Lo = id + 1
		case iv.Hi == id+1:
			s.intervals[i].Hi = id
		default:
			left := Interval{Lo: iv.Lo, Hi: id}
			right := Interval{Lo: id + 1, Hi: iv.Hi}
			s.intervals = append(s.intervals[:i], append([]Interval{left, right}, s.intervals[i+1:]...)...)
		}
		return
	}
}

// Add marks block id needed again (used when a received block fails
// strong-hash verification and must be re-fetched). It is the inverse of
// Remove and keeps the interval list coalesced.
func (s *Set) Add(id int64) {
	if id < 0 || id >= s.n || s.Contains(id) {
		return
	}
	// Find insertion point.
	pos := len(s.intervals)
	for i, iv := range s.intervals {
		if id < iv.Lo {
			pos = i
			break
		}
	}
	merged := Interval{Lo: id, Hi: id + 1}
	s.intervals = append(s.intervals, Interval{})
	copy(s.intervals[pos+1:], s.intervals[pos:])
	s.intervals[pos] = merged
	s.coalesceAround(pos)
}

func (s *Set) coalesceAround(pos int) {
	// Merge with the following interval if adjacent.
	if pos+1 < len(s.intervals) && s.intervals[pos].Hi == s.intervals[pos+1].Lo {
		s.intervals[pos].Hi = s.intervals[pos+1].Hi
		s.intervals = append(s.intervals[:pos+1], s.intervals[pos+2:]...)
	}
	// Merge with the preceding interval if adjacent.
	if pos > 0 && s.intervals[pos-1].Hi == s.intervals[pos].Lo {
		s.intervals[pos-1].Hi = s.intervals[pos].Hi
		s.intervals = append(s.intervals[:pos], s.intervals[pos+1:]...)
	}
}

// Ranges returns up to limit intervals (or all of them if limit <= 0).
func (s *Set) Ranges(limit int) []Interval {
	if limit <= 0 || limit > len(s.intervals) {
		limit = len(s.intervals)
	}
	out := make([]Interval, limit)
	copy(out, s.intervals[:limit])
	return out
}

// IDs expands the interval set into individual block ids. Intended for
// building/rebuilding the block hash index, whose needed-count is bounded
// by the target's block count.
func (s *Set) IDs() []int64 {
	out := make([]int64, 0, s.Count())
	for _, iv := range s.intervals {
		for id := iv.Lo; id < iv.Hi; id++ {
			out = append(out, id)
		}
	}
	return out
}

// Count returns the total number of needed blocks.
func (s *Set) Count() int64 {
	var c int64
	for _, iv := range s.intervals {
		c += iv.Hi - iv.Lo
	}
	return c
}

// ByteRange is an inclusive [Lo, Hi] byte range.
type ByteRange struct {
	Lo, Hi int64
}

// ByteRanges converts the current needed block-id intervals into inclusive
// byte ranges against a file of the given blocksize and total length.
func (s *Set) ByteRanges(blocksize, length int64) []ByteRange {
	out := make([]ByteRange, 0, len(s.intervals))
	for _, iv := range s.intervals {
		lo := iv.Lo * blocksize
		hi := iv.Hi * blocksize
		if hi > length {
			hi = length
		}
		if hi <= lo {
			continue
		}
		out = append(out, ByteRange{Lo: lo, Hi: hi - 1})
	}
	return out
}
