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

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <record.json>",
		Short: "Check an analysis record written as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := analysis.ReadJSON(args[0])
			if err != nil {
				return err
			}
			result := record.Check()
			if err := encodeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Passed() {
				return ExitError{
					Code:    checkFailedStatus,
					Message: fmt.Sprintf("%s: %s", args[0], result.Err()),
				}
			}
			return nil
		},
	}
}
