// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package strongsum computes the per-block strong hash and the whole-file
// hash used to confirm weak-checksum matches and to validate a fully
// reconstructed target.
package strongsum

import (
	"hash"
	"io"

	sha1simd "github.com/minio/sha1-simd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/md4"
)

// Algorithm identifies which strong hash a control file's checksum table was
// built with. The control file is the sole source of truth for this choice;
// it is never hard-coded by a caller.
type Algorithm int

const (
	// MD4 is the historical zsync wire format.
	MD4 Algorithm = iota
	// SHA1 is used by modern deployments that opt in via the control
	// file's Hash-Algorithm header.
	SHA1
)

// New returns a fresh hash.Hash for algo.
func New(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD4:
		return md4.New(), nil
	case SHA1:
		return sha1simd.New(), nil
	default:
		return nil, errors.Errorf("strongsum: unknown algorithm %d", algo)
	}
}

// HashBlock resets h and hashes block as a zero-padded blocksize-byte
// block, returning the full digest (caller truncates to the control file's
// S). h is reused across blocks the way the teacher's Signatures loop
// reuses its hash.Hash with Reset between reads.
func HashBlock(h hash.Hash, block []byte, blocksize int) ([]byte, error) {
	if len(block) > blocksize {
		return nil, errors.Errorf("strongsum: block of %d bytes exceeds blocksize %d", len(block), blocksize)
	}
	h.Reset()
	if _, err := h.Write(block); err != nil {
		return nil, errors.Wrap(err, "strongsum: hashing block")
	}
	if pad := blocksize - len(block); pad > 0 {
		if _, err := h.Write(make([]byte, pad)); err != nil {
			return nil, errors.Wrap(err, "strongsum: hashing block padding")
		}
	}
	return h.Sum(nil), nil
}

// BlockDigest is a one-shot convenience wrapper around HashBlock for
// callers that do not keep a long-lived hasher around.
func BlockDigest(algo Algorithm, block []byte, blocksize int) ([]byte, error) {
	h, err := New(algo)
	if err != nil {
		return nil, err
	}
	return HashBlock(h, block, blocksize)
}

// Truncate returns the leading s bytes of digest, or all of digest when it
// is shorter than s bytes.
func Truncate(digest []byte, s int) []byte {
	if s > len(digest) {
		s = len(digest)
	}
	return digest[:s]
}

// NewSHA1 returns a fresh whole-file SHA-1 hasher. The whole-file hash is
// always SHA-1 regardless of which algorithm the block checksum table uses
// (spec.md §3).
func NewSHA1() hash.Hash {
	return sha1simd.New()
}

// WholeFileSHA1 computes the SHA-1 of r's entire, unpadded content.
func WholeFileSHA1(r io.Reader) ([20]byte, error) {
	var out [20]byte
	h := sha1simd.New()
	if _, err := io.Copy(h, r); err != nil {
		return out, errors.Wrap(err, "strongsum: computing whole-file sha1")
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
