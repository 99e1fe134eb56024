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
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/addrdb/internal/colors"
	"github.com/blacktop/addrdb/pkg/hashes"
)

func init() {
	rootCmd.AddCommand(hashesCmd)

	hashesCmd.Flags().String("source", "", "Hash-constant source file (skips the default search)")
	hashesCmd.Flags().String("sdk-root", ".", "Project root searched for hash-constant sources")
	viper.BindPFlag("hashes.source", hashesCmd.Flags().Lookup("source"))
	viper.BindPFlag("hashes.sdk-root", hashesCmd.Flags().Lookup("sdk-root"))
}

// hashesCmd represents the hashes command
var hashesCmd = &cobra.Command{
	Use:           "hashes",
	Short:         "List the hash constants parsed from the SDK headers",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath := viper.GetString("hashes.source")
		sdkRoot := viper.GetString("hashes.sdk-root")

		var reg hashes.Registry
		var err error
		if sourcePath != "" {
			reg, err = hashes.LoadFile(sourcePath)
		} else {
			reg, err = hashes.Load(hashes.DefaultCandidates(sdkRoot))
		}
		if err != nil {
			return err
		}

		names := make([]string, 0, len(reg))
		for name := range reg {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("%s  %s\n", colors.Faint().Sprintf("0x%08X", reg[name]), name)
		}
		fmt.Printf("\n%s hash constants\n", colors.Bold().Sprint(humanize.Comma(int64(len(reg)))))
		return nil
	},
}
