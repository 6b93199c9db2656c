// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store implements the temporary file that holds the partially (and
// eventually fully) reconstructed target, per spec.md §4.6.
package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store is the target temp-file store. It accepts writes only at
// block-aligned offsets and whole block lengths (the final block is
// zero-padded by the caller before it reaches WriteBlock, per spec.md
// §4.6), and its file descriptor can be handed off to another owner via
// TakeFile, mirroring the historical rcksum_filename/rcksum_filehandle
// ownership transfer (spec.md §9).
type Store struct {
	f         *os.File
	path      string
	blockSize int64
	length    int64
	taken     bool
}

// New creates a uniquely named temporary file under dir to hold a target of
// the given blockSize and length.
func New(dir string, blockSize, length int64) (*Store, error) {
	name := filepath.Join(dir, "."+uuid.NewString()+".zs-tmp")
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "store: creating temp file")
	}
	return &Store{f: f, path: name, blockSize: blockSize, length: length}, nil
}

// Path returns the temp file's current path.
func (s *Store) Path() string {
	return s.path
}

// WriteBlock writes data, which must be exactly blockSize bytes (the
// caller zero-pads the logical final block before calling this), at block
// id's aligned offset.
func (s *Store) WriteBlock(id int64, data []byte) error {
	if int64(len(data)) != s.blockSize {
		return errors.Errorf("store: block %d has %d bytes, want exactly %d", id, len(data), s.blockSize)
	}
	off := id * s.blockSize
	if _, err := s.f.WriteAt(data, off); err != nil {
		return errors.Wrapf(err, "store: writing block %d at offset %d", id, off)
	}
	return nil
}

// ReadAt satisfies io.ReaderAt against the temp file's current contents.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Rename moves the temp file to newPath, e.g. adopting it as a .part file
// between seed-scan attempts (spec.md §4.8 phase 2).
func (s *Store) Rename(newPath string) error {
	if err := os.Rename(s.path, newPath); err != nil {
		return errors.Wrap(err, "store: renaming temp file")
	}
	s.path = newPath
	return nil
}

// TruncateToLength truncates the temp file to exactly its target length.
// The temp file may have grown past that length because the last block was
// written at its full, padded blockSize (spec.md §3's "temp file's length
// may exceed L" invariant).
func (s *Store) TruncateToLength() error {
	if err := s.f.Truncate(s.length); err != nil {
		return errors.Wrap(err, "store: truncating to final length")
	}
	return errors.Wrap(s.f.Sync(), "store: syncing temp file")
}

// TakeFile transfers ownership of the underlying *os.File to the caller.
// Calling it a second time returns nil, mirroring the historical
// rcksum_filehandle's single-use ownership transfer.
func (s *Store) TakeFile() *os.File {
	f := s.f
	s.f = nil
	s.taken = true
	return f
}

// Close releases the temp file's handle (a no-op once ownership was taken).
// It never removes the file from disk, whatever name it currently has, so
// an uninstalled temp or .part file stays in place for a future run to use
// as a seed (spec.md §5).
func (s *Store) Close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	return errors.Wrap(f.Close(), "store: closing temp file")
}

var _ io.ReaderAt = (*Store)(nil)
