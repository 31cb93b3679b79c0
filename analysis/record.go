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


// The analysis package assembles and checks the metadata describing a single
// bioinformatics analysis before it is submitted to Onyx. Fields are added one
// at a time; each add operation validates its own input and returns an error
// (logging it as well) rather than panicking, so callers can try several
// fields and decide afterward whether to proceed. Check performs the final
// pass over the whole record.
package analysis

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// the layout used for analysis dates (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// returns the current time (replaced in tests)
var now = time.Now

// a record describing an analysis to be submitted to Onyx
type Record struct {
	// local identifier for this draft record (not submitted to Onyx)
	Id uuid.UUID
	// date on which the analysis was run (YYYY-MM-DD)
	AnalysisDate string
	// short name and free-text description of the analysis
	Name        string
	Description string
	// name, version, and project URL of the pipeline that ran the analysis
	PipelineName    string
	PipelineVersion string
	PipelineURL     string
	// the command used to run the pipeline (optional)
	PipelineCommand string
	// analysis parameters, e.g. QC thresholds
	Methods map[string]any
	// headline result of the analysis
	Result string
	// result metrics keyed by name
	ResultMetrics map[string]any
	// record identifiers keyed by server name ("mscape", "synthscape", ...)
	ServerRecords map[string][]string
	// the single report file OR the outputs directory for the analysis
	Report  string
	Outputs string
	// identifiers of related analyses and other records (optional)
	UpstreamAnalyses   []string
	DownstreamAnalyses []string
	Identifiers        []string
	// fields assigned by Onyx to a submitted analysis (never submitted)
	AnalysisId    string
	Site          string
	PublishedDate string

	// names of attributes in decoded input that are unrecognized or malformed
	invalidAttributes []string
}

// creates a new, empty analysis record with a fresh draft identifier
func NewRecord() *Record {
	return &Record{
		Id:            uuid.New(),
		ServerRecords: make(map[string][]string),
	}
}

// logs and returns the given error
func fail(err error) error {
	slog.Error(err.Error())
	return err
}

// sets the name and description of the analysis, and sets the analysis date
// to today if it hasn't already been set
func (r *Record) AddAnalysisDetails(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return fail(MissingFieldError{Field: "name"})
	}
	if strings.TrimSpace(description) == "" {
		return fail(MissingFieldError{Field: "description"})
	}
	r.Name = name
	r.Description = description
	if r.AnalysisDate == "" {
		r.AnalysisDate = now().Format(DateLayout)
	}
	return nil
}

// sets the pipeline name, version, and URL from the metadata for the given
// package in the given registry. An empty package name refers to the program
// that is running.
func (r *Record) AddPackageMetadata(registry PackageRegistry, packageName string) error {
	if registry == nil {
		return fail(PackageNotFoundError{
			Package: packageName,
			Message: "no package registry was given",
		})
	}
	meta, err := registry.Lookup(packageName)
	if err != nil {
		return fail(err)
	}
	if meta.Name == "" || meta.Version == "" {
		return fail(PackageNotFoundError{
			Package: packageName,
			Message: "metadata has no name or version",
		})
	}
	r.PipelineName = meta.Name
	r.PipelineVersion = meta.Version
	r.PipelineURL = meta.URL
	return nil
}

// sets the methods (analysis parameters) for the record. methods must be a
// non-empty mapping with string keys.
func (r *Record) AddMethods(methods any) error {
	m, err := mappingField("methods", methods)
	if err != nil {
		return fail(err)
	}
	r.Methods = m
	return nil
}

// sets the headline result and the result metrics for the record. results
// must be a non-empty mapping with string keys.
func (r *Record) AddResults(topResult string, results any) error {
	if strings.TrimSpace(topResult) == "" {
		return fail(MissingFieldError{Field: "result"})
	}
	m, err := mappingField("result_metrics", results)
	if err != nil {
		return fail(err)
	}
	r.Result = topResult
	r.ResultMetrics = m
	return nil
}

// adds a record identifier for the given sample on the named server.
// Identifiers accumulate per server; adding an identifier that is already
// present has no effect.
func (r *Record) AddServerRecords(sampleId, serverName string) error {
	if strings.TrimSpace(sampleId) == "" {
		return fail(MissingFieldError{Field: "sample_id"})
	}
	if strings.TrimSpace(serverName) == "" {
		return fail(MissingFieldError{Field: "server_name"})
	}
	if r.ServerRecords == nil {
		r.ServerRecords = make(map[string][]string)
	}
	if !slices.Contains(r.ServerRecords[serverName], sampleId) {
		r.ServerRecords[serverName] = append(r.ServerRecords[serverName], sampleId)
	}
	return nil
}

// sets the output location for the analysis: a path to an existing file sets
// the report, and a path to an existing directory sets the outputs. Only one
// output location may be set.
func (r *Record) AddOutputLocation(path string) error {
	if strings.TrimSpace(path) == "" {
		return fail(MissingFieldError{Field: "output_location"})
	}
	if existing := r.outputLocation(); existing != "" {
		return fail(OutputAlreadySetError{Path: path, Existing: existing})
	}
	info, err := os.Stat(path)
	if err != nil {
		return fail(OutputPathError{Path: path, Message: err.Error()})
	}
	path = filepath.Clean(path)
	switch {
	case info.Mode().IsRegular():
		r.Report = path
	case info.IsDir():
		r.Outputs = path
	default:
		return fail(OutputPathError{
			Path:    path,
			Message: fmt.Sprintf("neither a regular file nor a directory (%s)", info.Mode().Type()),
		})
	}
	return nil
}

// sets the command used to run the pipeline
func (r *Record) AddPipelineCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fail(MissingFieldError{Field: "pipeline_command"})
	}
	r.PipelineCommand = command
	return nil
}

// adds the identifier of an analysis whose outputs this analysis consumed
func (r *Record) AddUpstreamAnalysis(analysisId string) error {
	return r.appendTo(&r.UpstreamAnalyses, "upstream_analyses", analysisId)
}

// adds the identifier of an analysis that consumes this analysis's outputs
func (r *Record) AddDownstreamAnalysis(analysisId string) error {
	return r.appendTo(&r.DownstreamAnalyses, "downstream_analyses", analysisId)
}

// adds an external identifier associated with the analysis
func (r *Record) AddIdentifier(identifier string) error {
	return r.appendTo(&r.Identifiers, "identifiers", identifier)
}

func (r *Record) appendTo(list *[]string, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fail(MissingFieldError{Field: field})
	}
	if !slices.Contains(*list, value) {
		*list = append(*list, value)
	}
	return nil
}

// returns whichever output location has been set, or an empty string
func (r *Record) outputLocation() string {
	if r.Report != "" {
		return r.Report
	}
	return r.Outputs
}

// validates a caller-supplied mapping-valued field, returning a copy of it
func mappingField(field string, value any) (map[string]any, error) {
	m, ok := toMapping(value)
	if !ok {
		return nil, InvalidTypeError{Field: field, Type: fmt.Sprintf("%T", value)}
	}
	if len(m) == 0 {
		return nil, EmptyFieldError{Field: field}
	}
	return m, nil
}

// converts the given value to a mapping with string keys, returning false if
// the value isn't a map or its keys aren't strings
func toMapping(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return maps.Clone(m), true
	}
	if value == nil {
		return nil, false
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}
