// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import "github.com/pkg/errors"

// Sentinel causes distinguishable via errors.Cause, per spec.md §7.
var (
	// ErrMalformedControl covers header syntax errors, unknown required
	// keys, bad numeric fields, and a truncated checksum table.
	ErrMalformedControl = errors.New("control: malformed control file")
	// ErrIncompatibleVersion covers a zsync or Min-Version field outside
	// the range this implementation supports.
	ErrIncompatibleVersion = errors.New("control: incompatible zsync version")
)
