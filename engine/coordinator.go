// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package engine implements the reconstruction coordinator (spec.md §4.8
// and §2 component H): seed ingestion, byte-range derivation and fetch,
// received-block verification, and final whole-file verification/install.
package engine

import (
	"bytes"
	"context"
	"hash"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/zsgo/zsync/blockindex"
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/needed"
	"github.com/zsgo/zsync/scanner"
	"github.com/zsgo/zsync/store"
	"github.com/zsgo/zsync/strongsum"
)

// Coordinator drives a single reconstruction run. It holds no
// package-level state; every run gets its own instance (spec.md §5, §9).
type Coordinator struct {
	target  *control.Target
	outPath string
	workDir string

	needed *needed.Set
	index  *blockindex.Index
	store  *store.Store
	hasher hash.Hash

	seenSeeds  map[string]bool
	failedURLs map[string]bool
	rng        *rand.Rand
}

// New creates a Coordinator for reconstructing target at outPath. It opens
// the target store immediately (phase "Init" of spec.md §4.8).
func New(target *control.Target, outPath string) (*Coordinator, error) {
	workDir := filepath.Dir(outPath)
	if workDir == "" {
		workDir = "."
	}
	st, err := store.New(workDir, target.BlockSize, target.Length)
	if err != nil {
		return nil, err
	}
	h, err := strongsum.New(target.Algorithm)
	if err != nil {
		st.Close()
		return nil, err
	}

	ns := needed.NewFull(target.NumBlocks)
	idx := blockindex.New(target.Blocks, ns.IDs(), target.WeakLen)

	return &Coordinator{
		target:     target,
		outPath:    outPath,
		workDir:    workDir,
		needed:     ns,
		index:      idx,
		store:      st,
		hasher:     h,
		seenSeeds:  map[string]bool{},
		failedURLs: map[string]bool{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// NeededCount reports how many blocks are still needed.
func (c *Coordinator) NeededCount() int64 {
	return c.needed.Count()
}

// Abort releases resources without installing anything, leaving the
// in-progress temp file (renamed to outPath+".part" if IngestSeeds already
// ran, or still under its random temp name otherwise) on disk for a future
// run to reuse as a seed, per spec.md §5's retention rule.
func (c *Coordinator) Abort() error {
	return c.store.Close()
}

func (c *Coordinator) rebuildIndexIfDue() {
	if c.index.ShouldRebuild(c.needed.Count()) {
		c.index = blockindex.New(c.target.Blocks, c.needed.IDs(), c.target.WeakLen)
	}
}

// IngestSeeds scans every candidate seed in turn: the existing output file
// (if any), a prior ".part" file (if any), then the caller-supplied seeds,
// deduplicated by path string. Seeds that do not exist are skipped
// silently; other unreadable seeds are skipped and reported in the returned
// warnings for the caller to log, not treated as fatal (spec.md §7).
// After ingestion the coordinator's in-progress temp file is adopted as the
// new ".part" file.
func (c *Coordinator) IngestSeeds(seedPaths []string) []error {
	var warnings []error

	candidates := append([]string{c.outPath, c.partPath()}, seedPaths...)
	for _, p := range candidates {
		clean := filepath.Clean(p)
		if c.seenSeeds[clean] {
			continue
		}
		c.seenSeeds[clean] = true

		if c.needed.Count() == 0 {
			break
		}

		f, err := os.Open(clean)
		if err != nil {
			if !os.IsNotExist(err) {
				warnings = append(warnings, errors.Wrapf(err, "engine: seed %q", clean))
			}
			continue
		}

		sc, err := scanner.New(c.target, c.index, c.needed, c.store, nil)
		if err != nil {
			f.Close()
			warnings = append(warnings, err)
			continue
		}
		scanErr := sc.ScanSeed(f)
		f.Close()
		if scanErr != nil {
			warnings = append(warnings, errors.Wrapf(scanErr, "engine: seed %q", clean))
			continue
		}
		c.rebuildIndexIfDue()
	}

	if err := c.store.Rename(c.partPath()); err != nil {
		warnings = append(warnings, err)
	}
	return warnings
}

func (c *Coordinator) partPath() string {
	return c.outPath + ".part"
}

// FetchMissing drives the fetch/receive phases (spec.md §4.8 phases 3-4):
// while blocks remain needed and at least one URL hasn't failed, it picks
// a live URL at random, requests the needed byte ranges, and verifies each
// response. A URL that errors on any range is marked failed for the rest
// of the run; unfetched ranges are retried against another URL on the next
// iteration. Returns ErrNoUsableURLs if blocks remain needed once every
// URL has failed.
func (c *Coordinator) FetchMissing(ctx context.Context, f Fetcher) error {
	live := append([]string(nil), c.target.URLs...)

	for c.needed.Count() > 0 && len(live) > 0 {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "engine: fetch cancelled")
		default:
		}

		i := c.rng.Intn(len(live))
		url := live[i]
		ranges := c.needed.ByteRanges(c.target.BlockSize, c.target.Length)

		failed := false
		for _, br := range ranges {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "engine: fetch cancelled")
			default:
			}

			data, err := f.Fetch(ctx, url, br.Lo, br.Hi)
			if err != nil {
				failed = true
				break
			}
			if err := c.receiveRange(br, data); err != nil {
				if errors.Cause(err) != ErrShortResponse {
					return err
				}
				failed = true
				break
			}
		}

		if failed {
			c.failedURLs[url] = true
			live = append(live[:i], live[i+1:]...)
		}
	}

	if c.needed.Count() > 0 {
		return ErrNoUsableURLs
	}
	return nil
}

// receiveRange validates and stores a received buffer for the byte range
// br (always block-aligned at its start by construction of ByteRanges),
// zero-padding only the file's true final block before hashing (spec.md
// §9, redesign flag b). A block that fails strong-hash verification is
// discarded and re-added to the needed set (spec.md §7's
// StrongHashMismatch handling); the URL is not penalized for it.
func (c *Coordinator) receiveRange(br needed.ByteRange, data []byte) error {
	want := br.Hi - br.Lo + 1
	if int64(len(data)) > want {
		data = data[:want]
	}
	isFinalRange := br.Hi == c.target.Length-1
	if int64(len(data)) < want && !isFinalRange {
		return errors.Wrapf(ErrShortResponse, "range [%d,%d]: got %d of %d bytes", br.Lo, br.Hi, len(data), want)
	}

	blocksize := c.target.BlockSize
	blockID := br.Lo / blocksize
	offset := int64(0)

	for offset < int64(len(data)) {
		isFinalBlock := (blockID+1)*blocksize >= c.target.Length
		remaining := int64(len(data)) - offset
		take := blocksize
		if remaining < blocksize {
			if !isFinalBlock {
				return errors.Wrapf(ErrShortResponse, "incomplete block %d in received range [%d,%d]", blockID, br.Lo, br.Hi)
			}
			take = remaining
		}

		chunk := data[offset : offset+take]
		offset += take

		block := chunk
		if int64(len(chunk)) < blocksize {
			block = make([]byte, blocksize)
			copy(block, chunk)
		}

		digest, err := strongsum.HashBlock(c.hasher, block, int(blocksize))
		if err != nil {
			return errors.Wrap(err, "engine: hashing received block")
		}
		prefix := digest[:c.target.StrongLen]
		if bytes.Equal(prefix, c.target.Blocks[blockID].Strong) {
			if err := c.store.WriteBlock(blockID, block); err != nil {
				return err
			}
			c.needed.Remove(blockID)
		} else {
			c.needed.Add(blockID)
		}

		blockID++
	}

	c.rebuildIndexIfDue()
	return nil
}

// Verify implements phase 5 of spec.md §4.8: truncate the temp file to the
// target's declared length, then compare its SHA-1 against the control
// file's declared whole-file hash, if any.
func (c *Coordinator) Verify() (Result, error) {
	if err := c.store.TruncateToLength(); err != nil {
		return ResultFailed, err
	}
	if !c.target.HasSHA1 {
		return ResultNoHash, nil
	}

	sr := io.NewSectionReader(c.store, 0, c.target.Length)
	sum, err := strongsum.WholeFileSHA1(sr)
	if err != nil {
		return ResultFailed, err
	}
	if sum != c.target.SHA1 {
		return ResultFailed, ErrWholeFileHashMismatch
	}
	return ResultOK, nil
}

// Install implements phase 6 of spec.md §4.8: the previous file at outPath
// (if any) is hard-linked aside as "<outPath>.zs-old" (falling back to a
// rename if hard-linking isn't possible, e.g. a cross-device outPath), the
// temp file is renamed into place, and the control file's MTime hint, if
// present, is restored.
func (c *Coordinator) Install() error {
	if _, err := os.Stat(c.outPath); err == nil {
		oldAside := c.outPath + ".zs-old"
		_ = os.Remove(oldAside)
		if err := os.Link(c.outPath, oldAside); err != nil {
			_ = os.Rename(c.outPath, oldAside)
		}
	}
	if err := c.store.Rename(c.outPath); err != nil {
		return err
	}
	if c.target.HasMTime {
		_ = os.Chtimes(c.outPath, c.target.MTime, c.target.MTime)
	}
	return nil
}

// TempPath returns the coordinator's current in-progress file path,
// whatever name it currently has (random temp name, or the adopted .part
// name after IngestSeeds runs).
func (c *Coordinator) TempPath() string {
	return c.store.Path()
}
