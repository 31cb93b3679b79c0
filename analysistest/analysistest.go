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


// This package contains testing utilities for the Onyx analysis helper.
package analysistest

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Enables DEBUG log messages for the helper's structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

// Redirects the default structured log to a buffer, returning the buffer and a
// function that restores the previous logger.
func CaptureLogs() (*bytes.Buffer, func()) {
	previous := slog.Default()
	var buffer bytes.Buffer
	h := slog.NewTextHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(h))
	return &buffer, func() {
		slog.SetDefault(previous)
	}
}

// output locations created by CreateOutputs
type Outputs struct {
	// path to a single report file
	Report string
	// path to a directory of output files
	Directory string
	// paths of the files within Directory, relative to it
	Files []string
}

// the files written into an outputs directory by CreateOutputs
var outputFiles = map[string]string{
	"summary.tsv":        "sample\tpass\tfail\nSAMPLE001\t120\t3\n",
	"qc/read_counts.csv": "sample,reads\nSAMPLE001,123\n",
	"qc/depth.json":      `{"min_depth": 30, "mean_depth": 41.5}`,
}

// Creates a report file and a directory of output files within the given
// directory, for exercising output locations.
func CreateOutputs(root string) (Outputs, error) {
	outputs := Outputs{
		Report:    filepath.Join(root, "report.html"),
		Directory: filepath.Join(root, "outputs"),
	}
	err := os.WriteFile(outputs.Report,
		[]byte("<html><body>QC statistics</body></html>\n"), 0644)
	if err != nil {
		return outputs, fmt.Errorf("Couldn't write report: %s", err)
	}
	for name, contents := range outputFiles {
		path := filepath.Join(outputs.Directory, name)
		err = os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return outputs, fmt.Errorf("Couldn't create output directory: %s", err)
		}
		err = os.WriteFile(path, []byte(contents), 0644)
		if err != nil {
			return outputs, fmt.Errorf("Couldn't write output file %s: %s", name, err)
		}
		outputs.Files = append(outputs.Files, filepath.ToSlash(name))
	}
	return outputs, nil
}
