// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
)

// reports the metadata for the onyx-analysis binary itself
var versionRegistry analysis.PackageRegistry = analysis.BuildInfoRegistry{}

func newVersionCmd() *cobra.Command {
	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of onyx-analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := versionRegistry.Lookup("")
			if err != nil {
				meta = analysis.PackageMetadata{Name: "onyx-analysis", Version: "dev"}
			}
			if meta.Version == "" || meta.Version == "(devel)" {
				meta.Version = "dev"
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return encodeJSON(out, meta)
			case short:
				_, err = fmt.Fprintln(out, meta.Version)
			default:
				_, err = fmt.Fprintf(out, "onyx-analysis %s (%s)\n", meta.Version, meta.Name)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the version number only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version metadata as JSON")
	return cmd
}
