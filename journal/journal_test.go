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


// These tests must be run serially, since the journal is coordinated by a
// single goroutine.

package journal

import (
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
	"github.com/climb-tre/onyx-analysis-helper/analysistest"
	"github.com/climb-tre/onyx-analysis-helper/config"
	"github.com/climb-tre/onyx-analysis-helper/frictionless"
)

// runs all tests serially
func TestRunner(t *testing.T) {
	tester := SerialTests{Test: t}
	tester.TestInitAndFinalize()
	tester.TestRequestsFailWhenClosed()
	tester.TestRecordPassedAnalysis()
	tester.TestRecordFailedAnalysis()
	tester.TestRecheckReplacesRecord()
	tester.TestRecordRejectsBadStatus()
	tester.TestRecordsInTimeRange()
	tester.TestFinalizeReleasesConcurrentCallers()
}

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	var status int
	setup()
	status = m.Run()
	breakdown()
	os.Exit(status)
}

// this function gets called at the beginning of a test session
func setup() {
	analysistest.EnableDebugLogging()

	log.Print("Creating testing directory...\n")
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "onyx-analysis-journal-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}

	// read in the config file with TESTING_DIR replaced
	myConfig := strings.ReplaceAll(journalConfig, "TESTING_DIR", TESTING_DIR)
	err = config.Init([]byte(myConfig))
	if err != nil {
		log.Panicf("Couldn't initialize configuration: %s", err)
	}

	// Create the data directory where the analysis journal lives
	err = os.Mkdir(config.Service.DataDirectory, 0755)
	if err != nil {
		log.Panicf("Couldn't create data directory: %s", err)
	}

	outputs, err = analysistest.CreateOutputs(TESTING_DIR)
	if err != nil {
		log.Panicf("Couldn't create test outputs: %s", err)
	}
}

// this function gets called after all tests have been run
func breakdown() {
	if IsOpen() {
		Finalize()
	}
	if TESTING_DIR != "" {
		log.Printf("Deleting testing directory %s...\n", TESTING_DIR)
		os.RemoveAll(TESTING_DIR)
	}
}

// To run the tests serially, we attach them to a SerialTests type and
// have them run by a a single test runner.
type SerialTests struct{ Test *testing.T }

func (t *SerialTests) TestInitAndFinalize() {
	assert := assert.New(t.Test)

	assert.False(IsOpen())
	err := Init()
	assert.Nil(err)
	assert.True(IsOpen())
	err = Init() // no effect
	assert.Nil(err)
	err = Finalize()
	assert.Nil(err)
	assert.False(IsOpen())
	err = Finalize() // no effect
	assert.Nil(err)
}

func (t *SerialTests) TestRequestsFailWhenClosed() {
	assert := assert.New(t.Test)

	err := RecordAnalysis(Record{Id: uuid.New(), Status: "passed"})
	assert.IsType(&NotOpenError{}, err)
	_, err = AnalysisRecord(uuid.New())
	assert.IsType(&NotOpenError{}, err)
	_, err = Records(time.Now().Add(-time.Hour), time.Now())
	assert.IsType(&NotOpenError{}, err)
}

func (t *SerialTests) TestRecordPassedAnalysis() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	record := passingAnalysis(t.Test)
	manifest, err := frictionless.NewAnalysisPackage(record)
	assert.Nil(err)

	entry := NewRecord(record, record.Check())
	entry.Manifest = manifest
	assert.Equal("passed", entry.Status)
	err = RecordAnalysis(entry)
	assert.Nil(err)

	entry1, err := AnalysisRecord(record.Id)
	assert.Nil(err)
	assert.Equal(entry.Id, entry1.Id)
	assert.Equal(entry.Name, entry1.Name)
	assert.Equal(entry.AnalysisDate, entry1.AnalysisDate)
	assert.Equal(entry.Status, entry1.Status)
	assert.True(entry.CheckTime.Equal(entry1.CheckTime))
	assert.False(entry1.RequiredFieldFail)
	assert.False(entry1.AttributeFail)
	assert.Empty(entry1.MissingFields)
	assert.Equal(record.Outputs, entry1.Fields["outputs"])
	assert.Equal(`{"min_depth":30}`, entry1.Fields["methods"])
	assert.Equal([]any{"SAMPLE001"}, entry1.Fields["synthscape_records"])

	assert.NotNil(entry1.Manifest)
	assert.Equal(manifest.Name, entry1.Manifest.Name)
	assert.Equal(manifest.Resources, entry1.Manifest.Resources)
	assert.Equal(manifest.Sources, entry1.Manifest.Sources)

	_, err = AnalysisRecord(uuid.New())
	assert.IsType(&RecordNotFoundError{}, err)

	err = Finalize()
	assert.Nil(err)
}

func (t *SerialTests) TestRecordFailedAnalysis() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	record := analysis.NewRecord()
	assert.Nil(record.AddAnalysisDetails("qc-run", "QC statistics"))
	entry := NewRecord(record, record.Check())
	assert.Equal("failed", entry.Status)
	err = RecordAnalysis(entry)
	assert.Nil(err)

	entry1, err := AnalysisRecord(record.Id)
	assert.Nil(err)
	assert.Equal("failed", entry1.Status)
	assert.True(entry1.RequiredFieldFail)
	assert.False(entry1.AttributeFail)
	assert.Equal(entry.MissingFields, entry1.MissingFields)
	assert.Nil(entry1.Manifest)

	err = Finalize()
	assert.Nil(err)
}

func (t *SerialTests) TestRecheckReplacesRecord() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	record := passingAnalysis(t.Test)
	record.Result = ""
	err = RecordAnalysis(NewRecord(record, record.Check()))
	assert.Nil(err)

	assert.Nil(record.AddResults("pass", map[string]any{"pass": 120}))
	err = RecordAnalysis(NewRecord(record, record.Check()))
	assert.Nil(err)

	entry, err := AnalysisRecord(record.Id)
	assert.Nil(err)
	assert.Equal("passed", entry.Status)

	err = Finalize()
	assert.Nil(err)
}

func (t *SerialTests) TestRecordRejectsBadStatus() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	err = RecordAnalysis(Record{Id: uuid.New(), Status: "submitted"})
	assert.IsType(&NewRecordError{}, err)

	err = Finalize()
	assert.Nil(err)
}

func (t *SerialTests) TestRecordsInTimeRange() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	start := time.Now().UTC()
	ids := make([]uuid.UUID, 0)
	for i := 0; i < 3; i++ {
		record := passingAnalysis(t.Test)
		entry := NewRecord(record, record.Check())
		entry.CheckTime = start.Add(time.Duration(i+1) * time.Minute)
		assert.Nil(RecordAnalysis(entry))
		ids = append(ids, record.Id)
	}

	records, err := Records(start, start.Add(150*time.Second))
	assert.Nil(err)
	assert.Equal(2, len(records))
	assert.Equal(ids[0], records[0].Id)
	assert.Equal(ids[1], records[1].Id)

	records, err = Records(start.Add(time.Hour), start.Add(2*time.Hour))
	assert.Nil(err)
	assert.Empty(records)

	err = Finalize()
	assert.Nil(err)
}

func (t *SerialTests) TestFinalizeReleasesConcurrentCallers() {
	assert := assert.New(t.Test)

	err := Init()
	assert.Nil(err)

	// callers keep recording until the journal refuses them
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry := Record{Id: uuid.New(), Status: "failed", CheckTime: time.Now()}
			for {
				if err := RecordAnalysis(entry); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)

	err = Finalize()
	assert.Nil(err)
	assert.False(IsOpen())

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		assert.Fail("journal callers still blocked after Finalize")
		return
	}
	close(errs)
	for err := range errs {
		assert.IsType(&NotOpenError{}, err)
	}
}

// returns an analysis record that passes its check
func passingAnalysis(t *testing.T) *analysis.Record {
	record := analysis.NewRecord()
	assert.Nil(t, record.AddAnalysisDetails("qc-run", "QC statistics"))
	assert.Nil(t, record.AddMethods(map[string]any{"min_depth": 30}))
	assert.Nil(t, record.AddResults("pass", map[string]any{"pass": 120, "fail": 3}))
	assert.Nil(t, record.AddServerRecords("SAMPLE001", "synthscape"))
	assert.Nil(t, record.AddOutputLocation(outputs.Directory))
	return record
}

// temporary testing directory
var TESTING_DIR string

// output locations created within the testing directory
var outputs analysistest.Outputs

// configuration
const journalConfig string = `
service:
  name: test
  port: 8080
  max_connections: 100
  data_dir: TESTING_DIR/data
servers:
  synthscape:
    name: Synthetic mSCAPE
    synthetic: true
`
