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
	"os"
	"slices"
	"strings"
)

// suffix of the Onyx field holding a server's record identifiers
const recordsSuffix = "_records"

// returns the name of the Onyx field holding record identifiers for the
// given server
func ServerRecordsField(server string) string {
	return server + recordsSuffix
}

// returns the record's populated fields as a plain mapping keyed by Onyx
// field name, suitable for handing to an Onyx client. Methods and result
// metrics are encoded as JSON strings, and each server's identifiers appear
// under "<server>_records".
func (r *Record) Fields() map[string]any {
	fields := make(map[string]any)
	for field, value := range map[string]string{
		"analysis_date":    r.AnalysisDate,
		"name":             r.Name,
		"description":      r.Description,
		"pipeline_name":    r.PipelineName,
		"pipeline_version": r.PipelineVersion,
		"pipeline_url":     r.PipelineURL,
		"pipeline_command": r.PipelineCommand,
		"result":           r.Result,
		"report":           r.Report,
		"outputs":          r.Outputs,
	} {
		if value != "" {
			fields[field] = value
		}
	}
	for field, value := range map[string]map[string]any{
		"methods":        r.Methods,
		"result_metrics": r.ResultMetrics,
	} {
		if value != nil {
			if b, err := json.Marshal(value); err == nil {
				fields[field] = string(b)
			}
		}
	}
	for field, value := range map[string][]string{
		"upstream_analyses":   r.UpstreamAnalyses,
		"downstream_analyses": r.DownstreamAnalyses,
		"identifiers":         r.Identifiers,
	} {
		if len(value) > 0 {
			fields[field] = slices.Clone(value)
		}
	}
	for server, ids := range r.ServerRecords {
		if len(ids) > 0 {
			fields[ServerRecordsField(server)] = slices.Clone(ids)
		}
	}
	return fields
}

// encodes the record's fields (including those assigned by Onyx) as a JSON
// object
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := r.Fields()
	for field, value := range map[string]string{
		"analysis_id":    r.AnalysisId,
		"site":           r.Site,
		"published_date": r.PublishedDate,
	} {
		if value != "" {
			fields[field] = value
		}
	}
	return json.Marshal(fields)
}

// decodes a JSON object into the record, replacing its contents. Unrecognized
// or malformed attributes don't cause an error here; they are logged and
// reported by Check.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	decoded := NewRecord()
	decoded.setFields(fields)
	*r = *decoded
	return nil
}

// sets the record's attributes from the given mapping of Onyx field names to
// values
func (r *Record) setFields(fields map[string]any) {
	text := map[string]*string{
		"analysis_date":    &r.AnalysisDate,
		"name":             &r.Name,
		"description":      &r.Description,
		"pipeline_name":    &r.PipelineName,
		"pipeline_version": &r.PipelineVersion,
		"pipeline_url":     &r.PipelineURL,
		"pipeline_command": &r.PipelineCommand,
		"result":           &r.Result,
		"report":           &r.Report,
		"outputs":          &r.Outputs,
		"analysis_id":      &r.AnalysisId,
		"site":             &r.Site,
		"published_date":   &r.PublishedDate,
	}
	mappings := map[string]*map[string]any{
		"methods":        &r.Methods,
		"result_metrics": &r.ResultMetrics,
	}
	lists := map[string]*[]string{
		"upstream_analyses":   &r.UpstreamAnalyses,
		"downstream_analyses": &r.DownstreamAnalyses,
		"identifiers":         &r.Identifiers,
	}

	invalid := make([]string, 0)
	for field, value := range fields {
		if value == nil {
			continue
		}
		ok := true
		if s, found := text[field]; found {
			*s, ok = value.(string)
		} else if m, found := mappings[field]; found {
			*m, ok = decodeMapping(value)
		} else if l, found := lists[field]; found {
			*l, ok = decodeList(value)
		} else if server, found := strings.CutSuffix(field, recordsSuffix); found && server != "" {
			var ids []string
			ids, ok = decodeList(value)
			if ok && len(ids) > 0 {
				r.ServerRecords[server] = ids
			}
		} else {
			ok = false
		}
		if !ok {
			invalid = append(invalid, field)
		}
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		slog.Error(fmt.Sprintf("Invalid attribute in onyx analysis: %s",
			strings.Join(invalid, ", ")))
	}
	r.invalidAttributes = invalid
}

// decodes a mapping given either as a JSON object or as a string containing
// one
func decodeMapping(value any) (map[string]any, bool) {
	if s, ok := value.(string); ok {
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
			return nil, false
		}
		return m, true
	}
	m, ok := value.(map[string]any)
	return m, ok
}

// decodes a list of strings, accepting a lone string as a list of one
func decodeList(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, true
		}
		return []string{v}, true
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			list = append(list, s)
		}
		return list, true
	default:
		return nil, false
	}
}

// checks the record and writes it to the given file as JSON. The record is
// written even if the check fails, so it can be inspected and corrected.
func (r *Record) WriteJSON(path string) error {
	r.Check()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// reads an analysis record from the given JSON file
func ReadJSON(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	record := NewRecord()
	err = json.Unmarshal(data, record)
	if err != nil {
		return nil, err
	}
	return record, nil
}
