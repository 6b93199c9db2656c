// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package control

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zsgo/zsync/strongsum"
)

// canonicalKeys maps a lowercased header key to its canonical spelling, so
// parsing tolerates the case variance real-world .zsync producers exhibit.
var canonicalKeys = map[string]string{
	"zsync":          "zsync",
	"min-version":    "Min-Version",
	"length":         "Length",
	"blocksize":      "Blocksize",
	"hash-lengths":   "Hash-Lengths",
	"url":            "URL",
	"filename":       "Filename",
	"mtime":          "MTime",
	"sha-1":          "SHA-1",
	"safe":           "Safe",
	"z-filename":     "Z-Filename",
	"z-url":          "Z-URL",
	"z-map2":         "Z-Map2",
	"recompress":     "Recompress",
	"hash-algorithm": "Hash-Algorithm",
}

// alwaysIgnored keys are recognized but explicitly unsupported: the spec
// says to warn and ignore them rather than abort parsing.
var alwaysIgnored = map[string]bool{
	"Z-Filename": true,
	"Z-URL":      true,
	"Z-Map2":     true,
	"Recompress": true,
}

// Parse reads a .zsync control file from r. refererURL, if non-empty, is
// used to resolve relative URL: headers (spec.md §6.1).
func Parse(r io.Reader, refererURL string) (*Target, error) {
	br := bufio.NewReader(r)
	headers := map[string][]string{}

	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			return nil, errors.Wrapf(ErrMalformedControl, "header line without ':': %q", trimmed)
		}
		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])
		canon, known := canonicalKeys[strings.ToLower(key)]
		if !known {
			canon = key
		}
		headers[canon] = append(headers[canon], value)
		if err != nil {
			if err == io.EOF {
				return nil, errors.Wrap(ErrMalformedControl, "control file ended before the header/body separator")
			}
			return nil, errors.Wrap(err, "control: reading header")
		}
	}

	safe := map[string]bool{}
	for _, v := range headers["Safe"] {
		for _, k := range strings.Fields(v) {
			safe[k] = true
		}
	}
	for key := range headers {
		if _, ok := canonicalKeys[strings.ToLower(key)]; ok {
			continue
		}
		if safe[key] {
			continue
		}
		return nil, errors.Wrapf(ErrMalformedControl, "unknown required header %q", key)
	}

	t := &Target{}

	zsyncVal, ok := single(headers, "zsync")
	if !ok {
		return nil, errors.Wrap(ErrMalformedControl, "missing required zsync header")
	}
	if zsyncVal != SupportedVersion {
		return nil, errors.Wrapf(ErrIncompatibleVersion, "unsupported zsync version %q", zsyncVal)
	}
	t.Version = zsyncVal

	if mv, ok := single(headers, "Min-Version"); ok {
		if mv > SupportedVersion {
			return nil, errors.Wrapf(ErrIncompatibleVersion, "control file requires Min-Version %q", mv)
		}
		t.MinVersion = mv
	}

	lengthStr, ok := single(headers, "Length")
	if !ok {
		return nil, errors.Wrap(ErrMalformedControl, "missing required Length header")
	}
	length, err := strconv.ParseInt(lengthStr, 10, 64)
	if err != nil || length <= 0 {
		return nil, errors.Wrapf(ErrMalformedControl, "invalid Length %q", lengthStr)
	}
	t.Length = length

	blocksizeStr, ok := single(headers, "Blocksize")
	if !ok {
		return nil, errors.Wrap(ErrMalformedControl, "missing required Blocksize header")
	}
	blocksize, err := strconv.ParseInt(blocksizeStr, 10, 64)
	// Validate the parsed value directly, not a field assigned from it:
	// the historical implementation checked the destination struct field
	// before the assignment took place, which could never catch anything
	// (spec.md §9, redesign flag a).
	if err != nil || blocksize <= 0 || blocksize&(blocksize-1) != 0 {
		return nil, errors.Wrapf(ErrMalformedControl, "invalid (non power-of-two) Blocksize %q", blocksizeStr)
	}
	t.BlockSize = blocksize

	hashLengthsStr, ok := single(headers, "Hash-Lengths")
	if !ok {
		return nil, errors.Wrap(ErrMalformedControl, "missing required Hash-Lengths header")
	}
	k, w, s, err := parseHashLengths(hashLengthsStr)
	if err != nil {
		return nil, err
	}
	t.SeqMatches, t.WeakLen, t.StrongLen = k, w, s

	urlVals := headers["URL"]
	if len(urlVals) == 0 {
		return nil, errors.Wrap(ErrMalformedControl, "at least one URL header is required")
	}
	urls := make([]string, 0, len(urlVals))
	for _, raw := range urlVals {
		resolved, err := resolveURL(raw, refererURL)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedControl, "invalid URL %q: %v", raw, err)
		}
		urls = append(urls, resolved)
	}
	t.URLs = urls

	if fn, ok := single(headers, "Filename"); ok {
		if strings.Contains(fn, "/") {
			return nil, errors.Wrapf(ErrMalformedControl, "Filename %q must not contain '/'", fn)
		}
		t.Filename = fn
	}

	if mt, ok := single(headers, "MTime"); ok {
		parsed, err := time.Parse(time.RFC1123Z, mt)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedControl, "invalid MTime %q: %v", mt, err)
		}
		t.MTime = parsed
		t.HasMTime = true
	}

	if sh, ok := single(headers, "SHA-1"); ok {
		if len(sh) != 40 {
			return nil, errors.Wrapf(ErrMalformedControl, "SHA-1 must be 40 hex chars, got %q", sh)
		}
		decoded, err := hex.DecodeString(sh)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedControl, "invalid SHA-1 %q: %v", sh, err)
		}
		copy(t.SHA1[:], decoded)
		t.HasSHA1 = true
	}

	t.Algorithm = strongsum.MD4
	if alg, ok := single(headers, "Hash-Algorithm"); ok {
		switch strings.ToUpper(alg) {
		case "MD4":
			t.Algorithm = strongsum.MD4
		case "SHA-1", "SHA1":
			t.Algorithm = strongsum.SHA1
		default:
			return nil, errors.Wrapf(ErrMalformedControl, "unknown Hash-Algorithm %q", alg)
		}
	}

	t.NumBlocks = (t.Length + t.BlockSize - 1) / t.BlockSize
	if t.NumBlocks < 1 {
		return nil, errors.Wrap(ErrMalformedControl, "computed zero blocks for non-empty file")
	}

	recordLen := w + s
	table := make([]byte, int(t.NumBlocks)*recordLen)
	if _, err := io.ReadFull(br, table); err != nil {
		return nil, errors.Wrap(ErrMalformedControl, "truncated checksum table")
	}

	blocks := make([]BlockChecksum, t.NumBlocks)
	for i := 0; i < int(t.NumBlocks); i++ {
		rec := table[i*recordLen : (i+1)*recordLen]
		weak := decodeWeak(rec[:w])
		strong := make([]byte, s)
		copy(strong, rec[w:])
		blocks[i] = BlockChecksum{Weak: weak, Strong: strong}
	}
	t.Blocks = blocks

	return t, nil
}

func parseHashLengths(v string) (k, w, s int, err error) {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Wrapf(ErrMalformedControl, "Hash-Lengths must have 3 fields, got %q", v)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, errors.Wrapf(ErrMalformedControl, "invalid Hash-Lengths field %q", p)
		}
		nums[i] = n
	}
	k, w, s = nums[0], nums[1], nums[2]
	if k < 1 || k > 2 {
		return 0, 0, 0, errors.Wrapf(ErrMalformedControl, "Hash-Lengths k=%d out of range [1,2]", k)
	}
	if w < 1 || w > 4 {
		return 0, 0, 0, errors.Wrapf(ErrMalformedControl, "Hash-Lengths W=%d out of range [1,4]", w)
	}
	if s < 3 || s > 16 {
		return 0, 0, 0, errors.Wrapf(ErrMalformedControl, "Hash-Lengths S=%d out of range [3,16]", s)
	}
	return k, w, s, nil
}

func decodeWeak(b []byte) uint32 {
	padded := make([]byte, 4)
	copy(padded[4-len(b):], b)
	return binary.BigEndian.Uint32(padded)
}

func resolveURL(raw, referer string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || referer == "" {
		return raw, nil
	}
	base, err := url.Parse(referer)
	if err != nil {
		return raw, nil
	}
	return base.ResolveReference(u).String(), nil
}

func single(headers map[string][]string, key string) (string, bool) {
	vals := headers[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

