// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/zsgo/zsync/rsum"
	"github.com/zsgo/zsync/strongsum"
)

// DefaultBlockSize is used by the generator when the caller does not
// specify one.
const DefaultBlockSize = 4096

// GeneratorOptions configures Generate. Unlike the historical zsyncmake,
// which kept the source file length and the running SHA-1 context at file
// scope (spec.md §9), every generation is scoped to one GeneratorOptions
// value and one call to Generate, so concurrent generations never collide.
type GeneratorOptions struct {
	BlockSize int64
	Filename  string
	URLs      []string
	MTime     time.Time
	HasMTime  bool
	Algorithm strongsum.Algorithm
}

// Generate reads all of r, writes a .zsync control file to w, and returns
// the Target it describes. r need not support seeking; Generate reads it
// exactly once.
func Generate(w io.Writer, r io.Reader, opts GeneratorOptions) (*Target, error) {
	blocksize := opts.BlockSize
	if blocksize == 0 {
		blocksize = DefaultBlockSize
	}
	if blocksize <= 0 || blocksize&(blocksize-1) != 0 {
		return nil, errors.Errorf("control: blocksize %d is not a positive power of two", blocksize)
	}
	if len(opts.URLs) == 0 {
		return nil, errors.New("control: at least one URL is required")
	}

	blockHasher, err := strongsum.New(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	wholeHasher := strongsum.NewSHA1()

	var blocks []BlockChecksum
	var length int64
	buf := make([]byte, blocksize)

	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			block := buf[:n]
			if _, err := wholeHasher.Write(block); err != nil {
				return nil, errors.Wrap(err, "control: hashing whole file")
			}
			weak := rsum.Compute(block, int(blocksize))
			digest, err := strongsum.HashBlock(blockHasher, block, int(blocksize))
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, BlockChecksum{Weak: weak.Value(), Strong: digest})
			length += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return nil, errors.Wrap(rerr, "control: reading source")
		}
	}

	if length == 0 {
		return nil, errors.New("control: cannot generate a control file for an empty source")
	}

	k, wBytes, s := ChooseSizes(length, blocksize)
	for i := range blocks {
		blocks[i].Strong = strongsum.Truncate(blocks[i].Strong, s)
	}

	var sha1 [20]byte
	copy(sha1[:], wholeHasher.Sum(nil))

	t := &Target{
		Version:    SupportedVersion,
		Filename:   opts.Filename,
		MTime:      opts.MTime,
		HasMTime:   opts.HasMTime,
		BlockSize:  blocksize,
		Length:     length,
		NumBlocks:  int64(len(blocks)),
		SeqMatches: k,
		WeakLen:    wBytes,
		StrongLen:  s,
		Algorithm:  opts.Algorithm,
		URLs:       opts.URLs,
		SHA1:       sha1,
		HasSHA1:    true,
		Blocks:     blocks,
	}

	if err := Write(w, t); err != nil {
		return nil, err
	}
	return t, nil
}
