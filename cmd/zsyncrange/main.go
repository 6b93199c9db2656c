// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command zsyncrange plans a reconstruction against a local seed without
// fetching anything, emitting the byte spans it would reuse from the seed
// and the byte ranges it would still need to download, per spec.md §9's
// zsyncranges.c-derived supplemented feature.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zsgo/zsync/blockindex"
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/needed"
	"github.com/zsgo/zsync/scanner"
	"github.com/zsgo/zsync/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type plan struct {
	Length   int64             `json:"length"`
	Checksum map[string]string `json:"checksum,omitempty"`
	Reuse    [][3]int64        `json:"reuse"`
	Download [][2]int64        `json:"download"`
}

type match struct {
	blockID    int64
	seedOffset int64
}

type recorder struct {
	matches []match
}

func (r *recorder) OnMatch(blockID, seedOffset int64) {
	r.matches = append(r.matches, match{blockID: blockID, seedOffset: seedOffset})
}

func run(args []string) int {
	var referer string

	cmd := &cobra.Command{
		Use:           "zsyncrange <control-file> <seed-file>",
		Short:         "Print the reuse/download plan for reconstructing against a seed",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			cf, err := os.Open(posArgs[0])
			if err != nil {
				return errors.Wrap(err, "zsyncrange: opening control file")
			}
			defer cf.Close()

			target, err := control.Parse(cf, referer)
			if err != nil {
				return err
			}

			seedFile, err := os.Open(posArgs[1])
			if err != nil {
				return errors.Wrap(err, "zsyncrange: opening seed file")
			}
			defer seedFile.Close()

			p, err := computePlan(target, seedFile)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	cmd.Flags().StringVarP(&referer, "url", "u", "", "referer URL for resolving relative control-file URLs")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zsyncrange:", err)
		return 2
	}
	return 0
}

// computePlan scans seedFile against target using a scratch, discarded
// block store (the scanner's commit path always writes confirmed blocks
// somewhere; here that somewhere is thrown away once the plan is read back
// out of the recorder and the needed set).
func computePlan(target *control.Target, seedFile *os.File) (*plan, error) {
	st, err := store.New(os.TempDir(), target.BlockSize, target.Length)
	if err != nil {
		return nil, err
	}
	defer func() {
		path := st.Path()
		st.Close()
		os.Remove(path)
	}()

	ns := needed.NewFull(target.NumBlocks)
	idx := blockindex.New(target.Blocks, ns.IDs(), target.WeakLen)
	rec := &recorder{}

	sc, err := scanner.New(target, idx, ns, st, rec)
	if err != nil {
		return nil, err
	}
	if err := sc.ScanSeed(seedFile); err != nil {
		return nil, err
	}

	p := &plan{
		Length:   target.Length,
		Reuse:    buildReuse(rec.matches, target),
		Download: buildDownload(ns, target),
	}
	if target.HasSHA1 {
		p.Checksum = map[string]string{"SHA-1": hex.EncodeToString(target.SHA1[:])}
	}
	return p, nil
}

// buildReuse turns the scanner's per-block match events into merged
// [dst, src, len] spans, coalescing runs where both the destination offset
// and the seed offset advance contiguously.
func buildReuse(matches []match, target *control.Target) [][3]int64 {
	if len(matches) == 0 {
		return [][3]int64{}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].blockID < matches[j].blockID })

	blocksize := target.BlockSize
	blockLen := func(id int64) int64 {
		dst := id * blocksize
		if dst+blocksize > target.Length {
			return target.Length - dst
		}
		return blocksize
	}

	out := make([][3]int64, 0, len(matches))
	dst := matches[0].blockID * blocksize
	src := matches[0].seedOffset
	length := blockLen(matches[0].blockID)

	for _, m := range matches[1:] {
		mdst := m.blockID * blocksize
		mlen := blockLen(m.blockID)
		if mdst == dst+length && m.seedOffset == src+length {
			length += mlen
			continue
		}
		out = append(out, [3]int64{dst, src, length})
		dst, src, length = mdst, m.seedOffset, mlen
	}
	out = append(out, [3]int64{dst, src, length})
	return out
}

func buildDownload(ns *needed.Set, target *control.Target) [][2]int64 {
	ranges := ns.ByteRanges(target.BlockSize, target.Length)
	out := make([][2]int64, len(ranges))
	for i, r := range ranges {
		out[i] = [2]int64{r.Lo, r.Hi}
	}
	return out
}
