// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package engine

import "github.com/pkg/errors"

// Sentinel causes, distinguishable via errors.Cause, per spec.md §7.
var (
	// ErrNoUsableURLs means the needed set is still non-empty but every
	// mirror URL has failed at least once during this run.
	ErrNoUsableURLs = errors.New("engine: no usable urls remain")
	// ErrWholeFileHashMismatch means every block reported present but the
	// reconstructed file's SHA-1 disagrees with the control file.
	ErrWholeFileHashMismatch = errors.New("engine: whole-file hash mismatch")
	// ErrShortResponse means a fetcher returned fewer bytes than
	// requested and the data stops before the end of a block that is not
	// the file's final block, which spec.md §6.3 treats as an error.
	// FetchMissing marks the URL that produced it as failed.
	ErrShortResponse = errors.New("engine: short response for a non-final byte range")
)

// Result mirrors the exit-code contract of spec.md §4.8 phase 5.
type Result int

const (
	// ResultFailed means a hash mismatch or IO error occurred; the
	// partial file is kept as .part.
	ResultFailed Result = -1
	// ResultNoHash means the control file carried no whole-file hash, so
	// completeness could not be cryptographically verified.
	ResultNoHash Result = 0
	// ResultOK means the reconstructed file's SHA-1 matched.
	ResultOK Result = 1
)
