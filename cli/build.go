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
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
	"github.com/climb-tre/onyx-analysis-helper/config"
)

// options for assembling a record from the command line
type buildOptions struct {
	Name        string
	Description string
	Methods     string
	Results     string
	TopResult   string
	SampleId    string
	Server      string
	Output      string
	Package     string
	Config      string
	Write       string
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble and check an analysis record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "analysis name")
	flags.StringVar(&opts.Description, "description", "", "analysis description")
	flags.StringVar(&opts.Methods, "methods", "", "analysis methods as a JSON object")
	flags.StringVar(&opts.Results, "results", "", "result metrics as a JSON object")
	flags.StringVar(&opts.TopResult, "top-result", "", "headline result of the analysis")
	flags.StringVar(&opts.SampleId, "sample-id", "", "Onyx sample identifier the analysis refers to")
	flags.StringVar(&opts.Server, "server", "", "Onyx server holding the sample (e.g. mscape)")
	flags.StringVar(&opts.Output, "output", "", "report file or outputs directory")
	flags.StringVar(&opts.Package, "package", "", "pipeline package (default: the main module)")
	flags.StringVar(&opts.Config, "config", "", "YAML configuration with servers and packages")
	flags.StringVarP(&opts.Write, "write", "w", "", "write the record to this JSON file instead of stdout")
	return cmd
}

// decodes a JSON flag value, leaving non-object values for the record to reject
func decodeFlag(flag, value string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("--%s is not valid JSON: %s", flag, err)
	}
	return v, nil
}

func runBuild(cmd *cobra.Command, opts buildOptions) error {
	var registry analysis.PackageRegistry = analysis.BuildInfoRegistry{}
	if opts.Config != "" {
		if err := initConfig(opts.Config); err != nil {
			return err
		}
		registry = config.PackageRegistry()
		if opts.Package == "" {
			opts.Package = config.Pipeline.Package
		}
		if _, found := config.Servers[opts.Server]; opts.Server != "" && !found {
			return fmt.Errorf("server '%s' is not configured", opts.Server)
		}
	}

	// every step is attempted so that all problems are reported at once
	record := analysis.NewRecord()
	var errs *multierror.Error
	errs = multierror.Append(errs, record.AddAnalysisDetails(opts.Name, opts.Description))
	errs = multierror.Append(errs, record.AddPackageMetadata(registry, opts.Package))
	if opts.Methods != "" {
		methods, err := decodeFlag("methods", opts.Methods)
		if err == nil {
			err = record.AddMethods(methods)
		}
		errs = multierror.Append(errs, err)
	}
	if opts.Results != "" {
		results, err := decodeFlag("results", opts.Results)
		if err == nil {
			err = record.AddResults(opts.TopResult, results)
		}
		errs = multierror.Append(errs, err)
	}
	errs = multierror.Append(errs, record.AddServerRecords(opts.SampleId, opts.Server))
	errs = multierror.Append(errs, record.AddOutputLocation(opts.Output))
	errs = multierror.Append(errs, record.Check().Err())

	if opts.Write != "" {
		if err := record.WriteJSON(opts.Write); err != nil {
			return err
		}
	} else if err := encodeJSON(cmd.OutOrStdout(), record); err != nil {
		return err
	}

	if err := errs.ErrorOrNil(); err != nil {
		return ExitError{Code: checkFailedStatus, Message: err.Error()}
	}
	return nil
}
