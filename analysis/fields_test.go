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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/climb-tre/onyx-analysis-helper/analysistest"
)

func TestFields(t *testing.T) {
	assert := assert.New(t)
	record := completeRecord(t)
	assert.Nil(record.AddServerRecords("C-000000001", "mscape"))
	assert.Nil(record.AddIdentifier("I-3333333333"))

	fields := record.Fields()
	assert.Equal(map[string]any{
		"analysis_date":      "2025-08-21",
		"name":               "qc-run",
		"description":        "QC statistics",
		"methods":            `{"min_depth":30}`,
		"result":             "pass",
		"result_metrics":     `{"fail":3,"pass":120}`,
		"report":             outputs.Report,
		"synthscape_records": []string{"SAMPLE001"},
		"mscape_records":     []string{"C-000000001"},
		"identifiers":        []string{"I-3333333333"},
	}, fields)

	// the mapping doesn't alias the record
	fields["identifiers"].([]string)[0] = "changed"
	assert.Equal("I-3333333333", record.Identifiers[0])
}

func TestFieldsOfEmptyRecord(t *testing.T) {
	assert.Empty(t, NewRecord().Fields())
}

func TestReadJSON(t *testing.T) {
	assert := assert.New(t)
	record, err := ReadJSON("testdata/example_onyx_analysis.json")
	assert.Nil(err)
	assert.Equal("test-analysis", record.Name)
	assert.Equal("This is a test analysis", record.Description)
	assert.Equal("2025-08-21", record.AnalysisDate)
	assert.Equal("test-pipeline", record.PipelineName)
	assert.Equal("0.1.0", record.PipelineVersion)
	assert.Equal("test result", record.Result)
	assert.Equal("path/to/outputs", record.Outputs)
	assert.Empty(record.Report)
	assert.Equal(map[string]any{
		"method1": "method example 1",
		"method2": "method example 2",
	}, record.Methods)
	assert.Equal(map[string]any{
		"Example result 1": 9.0,
		"Example result 2": "Fail",
		"Example result 3": 0.3,
	}, record.ResultMetrics)
	assert.Equal([]string{"C-123456789"}, record.ServerRecords["synthscape"])
	assert.Empty(record.UpstreamAnalyses)
	assert.True(record.Check().Passed())
}

func TestReadJSONReportsInvalidAttributes(t *testing.T) {
	assert := assert.New(t)
	logs, restore := analysistest.CaptureLogs()
	defer restore()

	record, err := ReadJSON("testdata/example_onyx_analysis_fail.json")
	assert.Nil(err)
	assert.Contains(logs.String(),
		"Invalid attribute in onyx analysis: invalid_field, result_metrics")

	// methods given as an object are accepted
	assert.Equal(map[string]any{"method1": "method example 1"}, record.Methods)

	result := record.Check()
	assert.True(result.RequiredFieldFail)
	assert.Equal([]string{"result_metrics"}, result.MissingFields)
	assert.True(result.AttributeFail)
	assert.Equal([]string{"invalid_field", "result_metrics"}, result.InvalidFields)
}

func TestReadJSONFailures(t *testing.T) {
	assert := assert.New(t)
	_, err := ReadJSON("testdata/no_such_file.json")
	assert.NotNil(err)

	path := filepath.Join(TESTING_DIR, "not_an_object.json")
	assert.Nil(os.WriteFile(path, []byte(`["name", "description"]`), 0644))
	_, err = ReadJSON(path)
	assert.NotNil(err)
}

func TestWriteAndReadJSON(t *testing.T) {
	assert := assert.New(t)
	record := completeRecord(t)
	assert.Nil(record.AddPipelineCommand("qc-run -i SAMPLE001"))
	record.AnalysisId = "A-1234567890"

	path := filepath.Join(TESTING_DIR, "onyx_analysis.json")
	err := record.WriteJSON(path)
	assert.Nil(err)
	assert.FileExists(path)

	record1, err := ReadJSON(path)
	assert.Nil(err)
	assert.NotEqual(record.Id, record1.Id)
	assert.Equal(record.Name, record1.Name)
	assert.Equal(record.Description, record1.Description)
	assert.Equal(record.AnalysisDate, record1.AnalysisDate)
	assert.Equal(record.PipelineCommand, record1.PipelineCommand)
	assert.Equal(record.Result, record1.Result)
	assert.Equal(record.Report, record1.Report)
	assert.Equal(record.ServerRecords, record1.ServerRecords)
	assert.Equal("A-1234567890", record1.AnalysisId)
	assert.Equal(map[string]any{"min_depth": 30.0}, record1.Methods)
	assert.True(record1.Check().Passed())
}

func TestWriteJSONWritesIncompleteRecords(t *testing.T) {
	assert := assert.New(t)
	record := NewRecord()
	assert.Nil(record.AddAnalysisDetails("qc-run", "QC statistics"))

	path := filepath.Join(TESTING_DIR, "incomplete_analysis.json")
	assert.Nil(record.WriteJSON(path))

	data, err := os.ReadFile(path)
	assert.Nil(err)
	var fields map[string]any
	assert.Nil(json.Unmarshal(data, &fields))
	assert.Equal(map[string]any{
		"analysis_date": "2025-08-21",
		"name":          "qc-run",
		"description":   "QC statistics",
	}, fields)
}

func TestUnmarshalServerRecordsAsString(t *testing.T) {
	assert := assert.New(t)
	var record Record
	err := json.Unmarshal([]byte(`{"mscape_records": "C-1", "synthscape_records": [1, 2],
		"_records": ["C-2"], "name": 7}`), &record)
	assert.Nil(err)
	assert.Equal(map[string][]string{"mscape": {"C-1"}}, record.ServerRecords)
	assert.Equal([]string{"_records", "name", "synthscape_records"}, record.invalidAttributes)
}
