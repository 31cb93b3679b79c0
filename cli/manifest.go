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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
	"github.com/climb-tre/onyx-analysis-helper/frictionless"
)

func newManifestCmd() *cobra.Command {
	var name, recordFile string
	cmd := &cobra.Command{
		Use:   "manifest <dir>",
		Short: "Print the Frictionless data package describing an outputs directory",
		Long: `Print the Frictionless data package describing an outputs directory. Given
an analysis record with --record, the package also carries the analysis's
name, description, pipeline version and URL, and the records it analysed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkg *frictionless.DataPackage
			var err error
			if recordFile != "" {
				var record *analysis.Record
				record, err = analysis.ReadJSON(recordFile)
				if err != nil {
					return err
				}
				record.Report = ""
				record.Outputs = args[0]
				pkg, err = frictionless.NewAnalysisPackage(record)
			} else {
				if name == "" {
					name = filepath.Base(filepath.Clean(args[0]))
				}
				pkg, err = frictionless.NewOutputsPackage(name, args[0])
			}
			if err != nil {
				return err
			}
			if err := pkg.Validate(); err != nil {
				return err
			}
			return encodeJSON(cmd.OutOrStdout(), pkg)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "package name (default: the directory name)")
	cmd.Flags().StringVar(&recordFile, "record", "", "analysis record (JSON) describing the outputs")
	return cmd
}
