/*
Copyright © 2018-2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/addrdb/internal/cache"
	"github.com/blacktop/addrdb/internal/colors"
	"github.com/blacktop/addrdb/internal/utils"
	"github.com/blacktop/addrdb/pkg/binary"
	"github.com/blacktop/addrdb/pkg/scan"
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("segment", "", "Restrict the scan to one segment (e.g. __TEXT)")
	scanCmd.Flags().String("start", "", "Restrict the scan to a file offset (hex or decimal)")
	scanCmd.Flags().String("size", "", "Byte count to scan from --start (hex or decimal)")
	scanCmd.Flags().Int("max", 100, "Maximum number of matches to report")
	viper.BindPFlag("scan.segment", scanCmd.Flags().Lookup("segment"))
	viper.BindPFlag("scan.start", scanCmd.Flags().Lookup("start"))
	viper.BindPFlag("scan.size", scanCmd.Flags().Lookup("size"))
	viper.BindPFlag("scan.max", scanCmd.Flags().Lookup("max"))
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:           "scan <BINARY> <PATTERN>",
	Short:         "Search a binary for a wildcard byte pattern",
	Example:       `  addrdb scan Cyberpunk2077 "48 89 5C 24 ?? 55 48 8D"`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		segName := viper.GetString("scan.segment")
		startStr := viper.GetString("scan.start")
		sizeStr := viper.GetString("scan.size")
		maxMatches := viper.GetInt("scan.max")

		if segName != "" && (startStr != "" || sizeStr != "") {
			return fmt.Errorf("--segment and --start/--size are mutually exclusive")
		}

		binaryPath := filepath.Clean(args[0])
		pattern := args[1]

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := cache.New(filepath.Join(os.TempDir(), "addrdb"), true)
		if err != nil {
			return err
		}
		file := binary.NewFile(binaryPath, binary.NewMachoInspector(binaryPath), c)
		if err := file.Validate(); err != nil {
			return err
		}

		segs, err := file.SegmentMap(ctx)
		if err != nil {
			return err
		}

		var rng *scan.Range
		if segName != "" {
			seg := segs.Segment(segName)
			if seg == nil {
				return fmt.Errorf("segment %s not found in %s", segName, binaryPath)
			}
			rng = &scan.Range{Off: seg.Offset, Size: seg.Filesz}
			log.WithFields(log.Fields{
				"segment": seg.Name,
				"off":     fmt.Sprintf("%#x", seg.Offset),
				"size":    fmt.Sprintf("%#x", seg.Filesz),
			}).Debug("Restricting scan")
		} else if startStr != "" {
			start, err := utils.ConvertStrToInt(startStr)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", startStr, err)
			}
			size, err := utils.ConvertStrToInt(sizeStr)
			if err != nil {
				return fmt.Errorf("invalid --size %q: %w", sizeStr, err)
			}
			rng = &scan.Range{Off: start, Size: size}
		}

		matches, err := scan.NewScanner(binaryPath).Scan(pattern, rng, maxMatches)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			log.Warn("no matches")
			return nil
		}

		for _, off := range matches {
			fmt.Printf("%s\n", colors.Green().Sprintf("%#08x", off))
		}
		log.Infof("%d match(es)", len(matches))
		return nil
	},
}
