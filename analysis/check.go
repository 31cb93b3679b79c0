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


package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"
)

// the outcome of checking an analysis record
type CheckResult struct {
	// true if one or more required fields are missing
	RequiredFieldFail bool `json:"required_field_fail"`
	// true if one or more populated fields are malformed
	AttributeFail bool `json:"attribute_fail"`
	// names of missing required fields
	MissingFields []string `json:"missing_fields,omitempty"`
	// names of malformed or unrecognized fields
	InvalidFields []string `json:"invalid_fields,omitempty"`
}

// returns true if the record passed both parts of the check
func (c CheckResult) Passed() bool {
	return !c.RequiredFieldFail && !c.AttributeFail
}

// returns a CheckError describing a failed check, or nil if the check passed
func (c CheckResult) Err() error {
	if c.Passed() {
		return nil
	}
	return CheckError{
		MissingFields: c.MissingFields,
		InvalidFields: c.InvalidFields,
	}
}

// checks that all required fields in the record are present and that all
// populated fields are well formed, logging any problems found. The record
// is not modified.
func (r *Record) Check() CheckResult {
	var result CheckResult

	result.MissingFields = r.missingFields()
	if len(result.MissingFields) > 0 {
		result.RequiredFieldFail = true
		slog.Error(fmt.Sprintf("Missing required fields: %s",
			strings.Join(result.MissingFields, ", ")))
	}

	result.InvalidFields = r.invalidFields()
	if len(result.InvalidFields) > 0 {
		result.AttributeFail = true
		slog.Error(fmt.Sprintf("Invalid attributes in onyx analysis: %s",
			strings.Join(result.InvalidFields, ", ")))
	}

	if result.Passed() {
		slog.Debug(fmt.Sprintf("Analysis record %s passed all checks", r.Id.String()))
	}
	return result
}

// returns the names of required fields that have not been set
func (r *Record) missingFields() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if r.Description == "" {
		missing = append(missing, "description")
	}
	if len(r.Methods) == 0 {
		missing = append(missing, "methods")
	}
	if r.Result == "" {
		missing = append(missing, "result")
	}
	if len(r.ResultMetrics) == 0 {
		missing = append(missing, "result_metrics")
	}
	if r.numServerRecords() == 0 {
		missing = append(missing, "server_records")
	}
	if (r.Report == "") == (r.Outputs == "") { // neither or both
		missing = append(missing, "report|outputs")
	}
	return missing
}

func (r *Record) numServerRecords() int {
	n := 0
	for _, ids := range r.ServerRecords {
		n += len(ids)
	}
	return n
}

// returns the sorted names of populated fields that are malformed, and of
// any unrecognized attributes decoded into the record
func (r *Record) invalidFields() []string {
	var invalid []string
	for field, value := range map[string]string{
		"name":             r.Name,
		"description":      r.Description,
		"result":           r.Result,
		"pipeline_name":    r.PipelineName,
		"pipeline_version": r.PipelineVersion,
		"pipeline_command": r.PipelineCommand,
		"report":           r.Report,
		"outputs":          r.Outputs,
	} {
		if value != "" && strings.TrimSpace(value) == "" {
			invalid = append(invalid, field)
		}
	}
	if r.AnalysisDate != "" {
		if _, err := time.Parse(DateLayout, r.AnalysisDate); err != nil {
			invalid = append(invalid, "analysis_date")
		}
	}
	if r.PipelineURL != "" {
		if u, err := url.Parse(r.PipelineURL); err != nil || !u.IsAbs() || u.Host == "" {
			invalid = append(invalid, "pipeline_url")
		}
	}
	if r.Methods != nil && !encodable(r.Methods) {
		invalid = append(invalid, "methods")
	}
	if r.ResultMetrics != nil && !encodable(r.ResultMetrics) {
		invalid = append(invalid, "result_metrics")
	}
	for server, ids := range r.ServerRecords {
		if strings.TrimSpace(server) == "" || slices.ContainsFunc(ids, blank) {
			invalid = append(invalid, ServerRecordsField(server))
		}
	}
	for field, list := range map[string][]string{
		"upstream_analyses":   r.UpstreamAnalyses,
		"downstream_analyses": r.DownstreamAnalyses,
		"identifiers":         r.Identifiers,
	} {
		if slices.ContainsFunc(list, blank) {
			invalid = append(invalid, field)
		}
	}
	invalid = append(invalid, r.invalidAttributes...)
	slices.Sort(invalid)
	return slices.Compact(invalid)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// returns true if the given mapping can be encoded as a JSON object
func encodable(m map[string]any) bool {
	_, err := json.Marshal(m)
	return err == nil
}
