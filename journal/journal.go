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


package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
	"github.com/climb-tre/onyx-analysis-helper/config"
	"github.com/climb-tre/onyx-analysis-helper/frictionless"
)

// This is the analysis journal, which logs every checked analysis record. The
// journal is a table of check records (one per analysis draft, updated each
// time the draft is checked) and a table of output manifests.

// the name of the journal's database file within the data directory
const databaseFile = "analysis_journal.db"

// a record storing the outcome of checking an analysis
type Record struct {
	// draft identifier of the analysis
	Id uuid.UUID `json:"id"`
	// name and date of the analysis
	Name         string `json:"name"`
	AnalysisDate string `json:"analysis_date"`
	// time at which the analysis was checked
	CheckTime time.Time `json:"check_time"`
	// status of the check ("passed" or "failed")
	Status string `json:"status"`
	// flags and field names reported by the check
	RequiredFieldFail bool     `json:"required_field_fail"`
	AttributeFail     bool     `json:"attribute_fail"`
	MissingFields     []string `json:"missing_fields"`
	InvalidFields     []string `json:"invalid_fields"`
	// the analysis's fields as they would be submitted to Onyx
	Fields map[string]any `json:"fields"`
	// manifest describing the analysis's outputs directory, if any (stored
	// separate from record)
	Manifest *frictionless.DataPackage `json:"-"`
}

// creates a journal record for the given analysis and the result of checking it
func NewRecord(record *analysis.Record, result analysis.CheckResult) Record {
	status := "passed"
	if !result.Passed() {
		status = "failed"
	}
	return Record{
		Id:                record.Id,
		Name:              record.Name,
		AnalysisDate:      record.AnalysisDate,
		CheckTime:         time.Now().UTC(),
		Status:            status,
		RequiredFieldFail: result.RequiredFieldFail,
		AttributeFail:     result.AttributeFail,
		MissingFields:     result.MissingFields,
		InvalidFields:     result.InvalidFields,
		Fields:            record.Fields(),
	}
}

// initialize the analysis journal, creating its database in the configured
// data directory if needed
func Init() error {
	if IsOpen() {
		return nil
	}
	opened := make(chan error)
	go analysisJournalProcess(opened)
	return <-opened
}

// closes the analysis journal (if it's been opened). Requests that are still
// in flight either complete or fail with a NotOpenError.
func Finalize() error {
	shutdown, exited, ok := closeChannels()
	if !ok {
		return nil
	}
	done := make(chan reply, 1)
	select {
	case shutdown <- done:
		return (<-done).Error
	case <-exited:
		return nil
	}
}

// returns true if the journal is open for reading and writing, false if not
func IsOpen() bool {
	channels_.Mutex.Lock()
	defer channels_.Mutex.Unlock()
	return channels_.Open
}

// records a checked analysis, replacing any earlier record for the same draft
// record: the record containing the outcome of the check
func RecordAnalysis(record Record) error {
	switch record.Status {
	case "passed", "failed":
		// pass-through (see below)
	default:
		return &NewRecordError{
			Id:      record.Id,
			Message: fmt.Sprintf("Invalid status: %s", record.Status),
		}
	}
	r, err := send(request{Kind: createRecord, Record: record})
	if err != nil {
		return err
	}
	return r.Error
}

// retrieves the record for the analysis with the given draft ID
func AnalysisRecord(id uuid.UUID) (Record, error) {
	r, err := send(request{Kind: fetchRecord, Id: id})
	if err != nil {
		return Record{}, err
	}
	if r.Error != nil {
		return Record{}, r.Error
	}
	return r.Records[0], nil
}

// retrieves records for analyses checked within the time range with the given
// (inclusive) bounds
// start: the beginning of the time period of interest
// stop: the end of the time period of interest
func Records(start, stop time.Time) ([]Record, error) {
	r, err := send(request{Kind: fetchRecords, Range: TimeRange{Start: start, Stop: stop}})
	if err != nil {
		return nil, err
	}
	return r.Records, r.Error
}

//-----------
// Internals
//-----------

// The analysis journal gets its own goroutine, which owns the database
// connection. Each request carries its own reply channel so that concurrent
// callers (e.g. service handlers) receive their own responses.

type TimeRange struct {
	Start, Stop time.Time
}

type requestKind int

const (
	createRecord requestKind = iota
	fetchRecord
	fetchRecords
)

type request struct {
	Kind   requestKind
	Record Record
	Id     uuid.UUID
	Range  TimeRange
	Reply  chan reply
}

type reply struct {
	Records []Record
	Error   error
}

var channels_ struct {
	Mutex sync.Mutex
	Open  bool // true if channels are open, false if not
	Input struct {
		Requests chan request    // for creating and fetching records
		Shutdown chan chan reply // for shutting down the database
	}
	Exited chan struct{} // closed when the journal goroutine returns
}

// sends a request to the journal goroutine and waits for its reply
func send(req request) (reply, error) {
	channels_.Mutex.Lock()
	if !channels_.Open {
		channels_.Mutex.Unlock()
		return reply{}, &NotOpenError{}
	}
	req.Reply = make(chan reply, 1)
	requests := channels_.Input.Requests
	exited := channels_.Exited
	channels_.Mutex.Unlock()

	// an accepted request is always answered before the goroutine exits
	select {
	case requests <- req:
		return <-req.Reply, nil
	case <-exited:
		return reply{}, &NotOpenError{}
	}
}

func analysisJournalProcess(opened chan<- error) {

	// open the database, creating the schema if necessary
	dbPath := filepath.Join(config.Service.DataDirectory, databaseFile)
	conn, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		opened <- &CantOpenError{
			Message: err.Error(),
		}
		return
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	if err != nil {
		conn.Close()
		opened <- &CantOpenError{
			Message: err.Error(),
		}
		return
	}

	requests, shutdown, exited := openChannels()
	defer close(exited)
	slog.Debug(fmt.Sprintf("Opened analysis journal %s", dbPath))
	opened <- nil

	// handle requests
	for {
		select {

		case req := <-requests:
			var r reply
			switch req.Kind {
			case createRecord:
				r.Error = storeRecord(conn, req.Record)
			case fetchRecord:
				var record Record
				record, r.Error = fetchRecordById(conn, req.Id)
				r.Records = []Record{record}
			case fetchRecords:
				r.Records, r.Error = fetchRecordsInRange(conn, req.Range.Start, req.Range.Stop)
			}
			req.Reply <- r

		case done := <-shutdown:
			var r reply
			err := conn.Close()
			if err != nil {
				r.Error = &CantCloseError{
					Message: err.Error(),
				}
			}
			done <- r
			return
		}
	}
}

func openChannels() (chan request, chan chan reply, chan struct{}) {
	channels_.Mutex.Lock()
	defer channels_.Mutex.Unlock()
	channels_.Open = true
	channels_.Input.Requests = make(chan request)
	channels_.Input.Shutdown = make(chan chan reply)
	channels_.Exited = make(chan struct{})
	return channels_.Input.Requests, channels_.Input.Shutdown, channels_.Exited
}

// marks the channels closed so no new requests are sent, returning the
// channel on which the journal goroutine awaits its shutdown request and the
// channel closed when it exits. ok is false if the journal wasn't open.
func closeChannels() (shutdown chan chan reply, exited chan struct{}, ok bool) {
	channels_.Mutex.Lock()
	defer channels_.Mutex.Unlock()
	if !channels_.Open {
		return nil, nil, false
	}
	channels_.Open = false
	return channels_.Input.Shutdown, channels_.Exited, true
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  analysis_date TEXT NOT NULL,
  check_time INTEGER NOT NULL,
  status TEXT NOT NULL,
  required_field_fail INTEGER NOT NULL,
  attribute_fail INTEGER NOT NULL,
  missing_fields TEXT NOT NULL,
  invalid_fields TEXT NOT NULL,
  fields TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_by_check_time ON analyses (check_time);
CREATE TABLE IF NOT EXISTS manifests (
  id TEXT PRIMARY KEY,
  manifest TEXT NOT NULL
);
`

const selectRecords = `
SELECT analyses.id, name, analysis_date, check_time, status, required_field_fail,
       attribute_fail, missing_fields, invalid_fields, fields, manifest
FROM analyses LEFT JOIN manifests ON analyses.id = manifests.id
`

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func storeRecord(conn *sqlite.Conn, record Record) (err error) {
	defer sqlitex.Save(conn)(&err)

	var encoded [3][]byte
	for i, v := range []any{record.MissingFields, record.InvalidFields, record.Fields} {
		encoded[i], err = json.Marshal(v)
		if err != nil {
			return &NewRecordError{
				Id:      record.Id,
				Message: err.Error(),
			}
		}
	}

	err = sqlitex.Execute(conn, `INSERT OR REPLACE INTO analyses
(id, name, analysis_date, check_time, status, required_field_fail, attribute_fail,
 missing_fields, invalid_fields, fields)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			record.Id.String(),
			record.Name,
			record.AnalysisDate,
			record.CheckTime.UnixNano(),
			record.Status,
			boolToInt(record.RequiredFieldFail),
			boolToInt(record.AttributeFail),
			string(encoded[0]),
			string(encoded[1]),
			string(encoded[2]),
		},
	})
	if err != nil {
		return err
	}

	// store the manifest for the analysis's outputs (indexed by UUID)
	if record.Manifest != nil {
		jsonManifest, err := json.Marshal(record.Manifest)
		if err != nil {
			return &NewRecordError{
				Id:      record.Id,
				Message: err.Error(),
			}
		}
		return sqlitex.Execute(conn, `INSERT OR REPLACE INTO manifests (id, manifest) VALUES (?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{record.Id.String(), string(jsonManifest)},
			})
	}
	return sqlitex.Execute(conn, `DELETE FROM manifests WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{record.Id.String()},
		})
}

// reads the record in the current row of the given statement
func scanRecord(stmt *sqlite.Stmt) (Record, error) {
	var record Record
	var err error
	record.Id, err = uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return record, err
	}
	record.Name = stmt.ColumnText(1)
	record.AnalysisDate = stmt.ColumnText(2)
	record.CheckTime = time.Unix(0, stmt.ColumnInt64(3)).UTC()
	record.Status = stmt.ColumnText(4)
	record.RequiredFieldFail = stmt.ColumnInt64(5) != 0
	record.AttributeFail = stmt.ColumnInt64(6) != 0
	for i, v := range []any{&record.MissingFields, &record.InvalidFields, &record.Fields} {
		err = json.Unmarshal([]byte(stmt.ColumnText(7+i)), v)
		if err != nil {
			return record, &InvalidRecordError{
				Id:      record.Id,
				Message: err.Error(),
			}
		}
	}
	if m := stmt.ColumnText(10); m != "" {
		record.Manifest = new(frictionless.DataPackage)
		err = json.Unmarshal([]byte(m), record.Manifest)
		if err != nil {
			return record, &InvalidRecordError{
				Id:      record.Id,
				Message: "unable to retrieve manifest for analysis outputs",
			}
		}
	}
	return record, nil
}

func fetchRecordById(conn *sqlite.Conn, id uuid.UUID) (Record, error) {
	var record Record
	found := false
	err := sqlitex.Execute(conn, selectRecords+`WHERE analyses.id = ?`, &sqlitex.ExecOptions{
		Args: []any{id.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			record, err = scanRecord(stmt)
			found = true
			return err
		},
	})
	if err != nil {
		return record, err
	}
	if !found {
		return record, &RecordNotFoundError{Id: id}
	}
	return record, nil
}

func fetchRecordsInRange(conn *sqlite.Conn, start, stop time.Time) ([]Record, error) {
	records := make([]Record, 0)
	err := sqlitex.Execute(conn,
		selectRecords+`WHERE check_time BETWEEN ? AND ? ORDER BY check_time`,
		&sqlitex.ExecOptions{
			Args: []any{start.UnixNano(), stop.UnixNano()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			},
		})
	return records, err
}
