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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/blacktop/addrdb/internal/cache"
	"github.com/blacktop/addrdb/internal/utils"
	"github.com/blacktop/addrdb/pkg/binary"
	"github.com/blacktop/addrdb/pkg/demangle"
	"github.com/blacktop/addrdb/pkg/hashes"
	"github.com/blacktop/addrdb/pkg/output"
	"github.com/blacktop/addrdb/pkg/resolve"
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("symbols", "s", "", "Symbol-mapping JSON file")
	generateCmd.Flags().StringP("manual", "m", "", "Manual-override JSON file")
	generateCmd.Flags().StringP("output", "o", "addresses.json", "Output address-database path")
	generateCmd.Flags().String("game-version", "2.3.1", "Game version recorded in the output header")
	generateCmd.Flags().String("hashes", "", "Hash-constant source file (skips the default search)")
	generateCmd.Flags().String("sdk-root", ".", "Project root searched for hash-constant sources")
	generateCmd.Flags().IntP("workers", "p", resolve.DefaultWorkers(), "Number of resolution workers")
	generateCmd.Flags().Duration("timeout", 30*time.Second, "Per-name resolution timeout")
	generateCmd.Flags().Bool("no-cache", false, "Disable the segment/symbol/demangle cache")
	generateCmd.Flags().String("cache-dir", filepath.Join(os.TempDir(), "addrdb"), "Cache directory")
	generateCmd.Flags().Bool("use-tools", false, "Parse segments/symbols via otool/nm instead of natively")
	viper.BindPFlag("generate.symbols", generateCmd.Flags().Lookup("symbols"))
	viper.BindPFlag("generate.manual", generateCmd.Flags().Lookup("manual"))
	viper.BindPFlag("generate.output", generateCmd.Flags().Lookup("output"))
	viper.BindPFlag("generate.game-version", generateCmd.Flags().Lookup("game-version"))
	viper.BindPFlag("generate.hashes", generateCmd.Flags().Lookup("hashes"))
	viper.BindPFlag("generate.sdk-root", generateCmd.Flags().Lookup("sdk-root"))
	viper.BindPFlag("generate.workers", generateCmd.Flags().Lookup("workers"))
	viper.BindPFlag("generate.timeout", generateCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("generate.no-cache", generateCmd.Flags().Lookup("no-cache"))
	viper.BindPFlag("generate.cache-dir", generateCmd.Flags().Lookup("cache-dir"))
	viper.BindPFlag("generate.use-tools", generateCmd.Flags().Lookup("use-tools"))
}

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:           "generate <BINARY>",
	Aliases:       []string{"gen", "g"},
	Short:         "Resolve hash constants against a Mach-O binary and emit the address database",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// flags
		symbolsPath := viper.GetString("generate.symbols")
		manualPath := viper.GetString("generate.manual")
		outputPath := viper.GetString("generate.output")
		gameVersion := viper.GetString("generate.game-version")
		hashesPath := viper.GetString("generate.hashes")
		sdkRoot := viper.GetString("generate.sdk-root")
		workers := viper.GetInt("generate.workers")
		taskTimeout := viper.GetDuration("generate.timeout")
		noCache := viper.GetBool("generate.no-cache")
		cacheDir := viper.GetString("generate.cache-dir")
		useTools := viper.GetBool("generate.use-tools")

		binaryPath := filepath.Clean(args[0])

		// SIGINT/SIGTERM stop further submissions; whatever already
		// resolved still gets written out
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := cache.New(cacheDir, !noCache)
		if err != nil {
			return err
		}

		var insp binary.Inspector
		if useTools {
			insp = binary.NewToolInspector(binaryPath)
		} else {
			insp = binary.NewMachoInspector(binaryPath)
		}
		file := binary.NewFile(binaryPath, insp, c)

		if err := file.Validate(); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"binary":  binaryPath,
			"output":  outputPath,
			"workers": workers,
		}).Info("Generating address database")

		segs, err := file.SegmentMap(ctx)
		if err != nil {
			return err
		}
		for _, seg := range segs.Segments() {
			utils.Indent(log.Debug, 2)(seg.String())
		}

		var reg hashes.Registry
		if hashesPath != "" {
			reg, err = hashes.LoadFile(hashesPath)
		} else {
			reg, err = hashes.Load(hashes.DefaultCandidates(sdkRoot))
		}
		if err != nil {
			return err
		}

		// manual overrides load in parallel with the symbol index build
		var overrides map[string]resolve.Override
		index := resolve.NewIndex()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if manualPath == "" {
				return nil
			}
			var lerr error
			overrides, lerr = resolve.LoadOverrides(manualPath)
			return lerr
		})
		g.Go(func() error {
			if symbolsPath == "" {
				return nil
			}
			mapping, lerr := resolve.LoadMapping(symbolsPath)
			if lerr != nil {
				return lerr
			}
			pool := demangle.NewPool(workers, c)
			if lerr := pool.Start(); lerr != nil {
				return lerr
			}
			defer pool.Stop()
			index = resolve.BuildIndex(gctx, mapping, pool, demangle.DefaultBatchTimeout)
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		opts := resolve.Options{
			Workers:     workers,
			TaskTimeout: taskTimeout,
		}

		var p *mpb.Progress
		var bar *mpb.Bar
		if !Verbose && term.IsTerminal(int(os.Stdout.Fd())) {
			p = mpb.New(mpb.WithWidth(80))
			bar = p.New(int64(len(reg)),
				mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding("-").Rbound("]"),
				mpb.PrependDecorators(
					decor.Name("resolving ", decor.WC{W: 10}),
					decor.CountersNoUnit("%d/%d"),
				),
				mpb.AppendDecorators(
					decor.Percentage(),
					decor.Name(" "),
					decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done"),
				),
				mpb.BarRemoveOnComplete(),
			)
			opts.OnResult = func() { bar.Increment() }
		}

		log.Infof("Resolving %d hash constants", len(reg))
		resolver := resolve.NewResolver(file, segs, index, overrides)
		entries, stats := resolver.Resolve(ctx, reg, opts)

		if bar != nil {
			bar.Abort(true)
			p.Wait()
		}
		if ctx.Err() != nil {
			log.Warn("shutdown requested, writing partial results")
		}

		if err := output.Write(output.Build(entries, stats, gameVersion), outputPath); err != nil {
			return err
		}

		stats.Report()
		return nil
	},
}
