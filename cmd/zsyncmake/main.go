// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command zsyncmake generates a .zsync control file describing a data
// file, per spec.md §6.2.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/zsgo/zsync/control"
	"github.com/zsgo/zsync/internal/logutil"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		blockSize int64
		outFile   string
		filename  string
		urls      []string
		verbose   bool
		doProfile bool
	)

	cmd := &cobra.Command{
		Use:           "zsyncmake [input-file]",
		Short:         "Generate a .zsync control file for a data file",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			if doProfile {
				defer profile.Start().Stop()
			}
			log := logutil.New(verbose, false)

			var in io.Reader = os.Stdin
			var inPath string
			var mtime time.Time
			hasMTime := false

			if len(posArgs) == 1 {
				inPath = posArgs[0]
				f, err := os.Open(inPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
				if st, err := f.Stat(); err == nil {
					mtime = st.ModTime()
					hasMTime = true
				}
				if filename == "" {
					filename = inPath
				}
			}

			if outFile == "" {
				if inPath != "" {
					outFile = inPath + ".zsync"
				} else {
					outFile = "out.zsync"
				}
			}

			if len(urls) == 0 {
				if inPath == "" {
					return fmt.Errorf("zsyncmake: at least one -u URL is required when reading from stdin")
				}
				urls = []string{inPath}
				log.Warn().Str("url", inPath).Msg("no -u given, emitting a relative URL; keep the .zsync next to the data file")
			}

			out, err := os.Create(outFile)
			if err != nil {
				return err
			}
			defer out.Close()

			opts := control.GeneratorOptions{
				BlockSize: blockSize,
				Filename:  filename,
				URLs:      urls,
				MTime:     mtime,
				HasMTime:  hasMTime,
			}
			target, err := control.Generate(out, in, opts)
			if err != nil {
				return err
			}

			log.Info().
				Str("output", outFile).
				Int64("length", target.Length).
				Str("size", humanize.Bytes(uint64(target.Length))).
				Int64("blocks", target.NumBlocks).
				Msg("control file written")
			return nil
		},
	}

	cmd.Flags().Int64VarP(&blockSize, "blocksize", "b", control.DefaultBlockSize, "block size, power of two")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output control file path")
	cmd.Flags().StringVarP(&filename, "filename", "f", "", "suggested output filename hint")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "mirror URL (repeatable)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	cmd.Flags().BoolVar(&doProfile, "profile", false, "enable CPU profiling")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zsyncmake:", err)
		return 2
	}
	return 0
}
