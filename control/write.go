// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/zsgo/zsync/strongsum"
)

// Write emits t's header block and packed checksum table to w, in the
// canonical order used by the historical zsyncmake (original_source/make.c):
// zsync, Filename, MTime, Blocksize, Length, Hash-Lengths, URL(s), SHA-1.
func Write(w io.Writer, t *Target) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "zsync: %s\n", SupportedVersion)
	if t.Filename != "" {
		fmt.Fprintf(bw, "Filename: %s\n", t.Filename)
	}
	if t.HasMTime {
		fmt.Fprintf(bw, "MTime: %s\n", t.MTime.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	}
	fmt.Fprintf(bw, "Blocksize: %d\n", t.BlockSize)
	fmt.Fprintf(bw, "Length: %d\n", t.Length)
	fmt.Fprintf(bw, "Hash-Lengths: %d,%d,%d\n", t.SeqMatches, t.WeakLen, t.StrongLen)
	if t.Algorithm == strongsum.SHA1 {
		fmt.Fprintf(bw, "Hash-Algorithm: SHA-1\n")
		fmt.Fprintf(bw, "Safe: Hash-Algorithm\n")
	}
	for _, u := range t.URLs {
		fmt.Fprintf(bw, "URL: %s\n", u)
	}
	if t.HasSHA1 {
		fmt.Fprintf(bw, "SHA-1: %s\n", hex.EncodeToString(t.SHA1[:]))
	}
	fmt.Fprint(bw, "\n")

	for _, b := range t.Blocks {
		weakBytes := encodeWeak(b.Weak, t.WeakLen)
		if _, err := bw.Write(weakBytes); err != nil {
			return errors.Wrap(err, "control: writing checksum table")
		}
		if len(b.Strong) != t.StrongLen {
			return errors.Errorf("control: block strong hash has %d bytes, want %d", len(b.Strong), t.StrongLen)
		}
		if _, err := bw.Write(b.Strong); err != nil {
			return errors.Wrap(err, "control: writing checksum table")
		}
	}

	return errors.Wrap(bw.Flush(), "control: flushing output")
}

// encodeWeak keeps only the trailing w bytes of the 32-bit weak checksum,
// network byte order, per spec.md §4.7.
func encodeWeak(weak uint32, w int) []byte {
	full := []byte{byte(weak >> 24), byte(weak >> 16), byte(weak >> 8), byte(weak)}
	return full[4-w:]
}
