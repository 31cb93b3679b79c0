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


package services

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
	"github.com/climb-tre/onyx-analysis-helper/config"
	"github.com/climb-tre/onyx-analysis-helper/frictionless"
	"github.com/climb-tre/onyx-analysis-helper/journal"
)

// Version numbers
var majorVersion = 0
var minorVersion = 1
var patchVersion = 0

// Version string
var version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// This type implements the AnalysisService interface, checking analysis
// records submitted as JSON and journaling the results.
type validationService struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server
	// guards Stopped, which is set once the service has been shut down
	Mutex   sync.Mutex
	Stopped bool
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root
func (service *validationService) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type ServersOutput struct {
	Body []ServerResponse `doc:"A list of the Onyx servers to which analyses may refer"`
}

// handler method for querying all configured servers
func (service *validationService) getServers(ctx context.Context,
	input *struct{}) (*ServersOutput, error) {

	slog.Info("Querying Onyx servers...")
	output := &ServersOutput{
		Body: make([]ServerResponse, 0),
	}
	for id, server := range config.Servers {
		output.Body = append(output.Body, ServerResponse{
			Id:        id,
			Name:      server.Name,
			Synthetic: server.Synthetic,
		})
	}
	slices.SortFunc(output.Body, func(s1, s2 ServerResponse) int { // sort by ID
		return cmp.Compare(s1.Id, s2.Id)
	})
	return output, nil
}

type CheckOutput struct {
	Body CheckResponse `doc:"The outcome of checking the analysis"`
}

// converts a journal record to a check response
func checkResponse(record journal.Record) CheckResponse {
	return CheckResponse{
		Id:                record.Id,
		Status:            record.Status,
		CheckTime:         record.CheckTime,
		RequiredFieldFail: record.RequiredFieldFail,
		AttributeFail:     record.AttributeFail,
		MissingFields:     record.MissingFields,
		InvalidFields:     record.InvalidFields,
		Fields:            record.Fields,
		Manifest:          record.Manifest,
	}
}

// checks that the given analysis only refers to configured servers, updating
// the check result accordingly
func checkServers(record *analysis.Record, result *analysis.CheckResult) {
	for server := range record.ServerRecords {
		if _, found := config.Servers[server]; !found {
			slog.Error(fmt.Sprintf("Analysis %s refers to unknown server '%s'",
				record.Id.String(), server))
			result.AttributeFail = true
			result.InvalidFields = append(result.InvalidFields,
				analysis.ServerRecordsField(server))
		}
	}
	slices.Sort(result.InvalidFields)
	result.InvalidFields = slices.Compact(result.InvalidFields)
}

// returns true if path lies within (or is) the directory root
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolves the outputs directory of an analysis, which must lie within the
// configured outputs directory
func outputsPath(outputs string) (string, error) {
	if config.Service.OutputsDirectory == "" {
		return "", huma.Error403Forbidden("Output manifests are not enabled on this service")
	}
	if !filepath.IsAbs(outputs) {
		return "", huma.Error422UnprocessableEntity(
			fmt.Sprintf("Outputs directory %s is not an absolute path", outputs))
	}
	var root string
	configured, err := filepath.Abs(config.Service.OutputsDirectory)
	if err == nil {
		root, err = filepath.EvalSymlinks(configured)
	}
	if err != nil {
		return "", huma.Error500InternalServerError(
			fmt.Sprintf("Invalid outputs directory in configuration: %s", err.Error()))
	}

	// the path is checked as given and again once symbolic links are resolved
	forbidden := huma.Error403Forbidden(
		fmt.Sprintf("Outputs directory %s is outside the directory served for manifests", outputs))
	outputs = filepath.Clean(outputs)
	if !within(configured, outputs) && !within(root, outputs) {
		return "", forbidden
	}
	dir, err := filepath.EvalSymlinks(outputs)
	if err != nil {
		return "", huma.Error422UnprocessableEntity(
			fmt.Sprintf("Couldn't describe outputs %s: %s", outputs, err.Error()))
	}
	if !within(root, dir) {
		slog.Error(fmt.Sprintf("Outputs directory %s resolves to %s, outside %s", outputs, dir, root))
		return "", forbidden
	}
	return dir, nil
}

// describes the outputs of the given analysis with a validated data package
func outputsManifest(record analysis.Record) (*frictionless.DataPackage, error) {
	dir, err := outputsPath(record.Outputs)
	if err != nil {
		return nil, err
	}
	record.Outputs = dir
	pkg, err := frictionless.NewAnalysisPackage(&record)
	if err == nil {
		err = pkg.Validate()
	}
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("Couldn't describe outputs %s: %s", dir, err.Error()))
	}
	return pkg, nil
}

// handler method for checking an analysis record
func (service *validationService) checkAnalysis(ctx context.Context,
	input *struct {
		Manifest bool            `query:"manifest" doc:"describe the analysis's outputs directory with a Frictionless data package"`
		Body     json.RawMessage `doc:"An analysis record given as a JSON object keyed by Onyx field name" contentType:"application/json"`
	}) (*CheckOutput, error) {

	var record analysis.Record
	err := json.Unmarshal(input.Body, &record)
	if err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid analysis record: %s", err.Error()))
	}
	slog.Info(fmt.Sprintf("Checking analysis %s (%s)...", record.Id.String(), record.Name))

	result := record.Check()
	checkServers(&record, &result)
	entry := journal.NewRecord(&record, result)

	if input.Manifest && record.Outputs != "" {
		entry.Manifest, err = outputsManifest(record)
		if err != nil {
			return nil, err
		}
	}

	err = journal.RecordAnalysis(entry)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &CheckOutput{
		Body: checkResponse(entry),
	}, nil
}

// handler method for retrieving a previous check
func (service *validationService) getCheck(ctx context.Context,
	input *struct {
		Id string `path:"id" doc:"The UUID of a checked analysis"`
	}) (*CheckOutput, error) {

	id, err := uuid.Parse(input.Id)
	if err != nil {
		return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid analysis ID: %s", input.Id))
	}
	record, err := journal.AnalysisRecord(id)
	if err != nil {
		if _, notFound := err.(*journal.RecordNotFoundError); notFound {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &CheckOutput{
		Body: checkResponse(record),
	}, nil
}

type ChecksOutput struct {
	Body []CheckResponse `doc:"Checks performed within the requested period, oldest first"`
}

// handler method for listing the checks performed within a period
func (service *validationService) getChecks(ctx context.Context,
	input *struct {
		Start string `query:"start" doc:"beginning of the period (RFC 3339, default: 24 hours before stop)"`
		Stop  string `query:"stop" doc:"end of the period (RFC 3339, default: now)"`
	}) (*ChecksOutput, error) {

	stop := time.Now().UTC()
	if input.Stop != "" {
		t, err := time.Parse(time.RFC3339, input.Stop)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid stop time: %s", input.Stop))
		}
		stop = t
	}
	start := stop.Add(-24 * time.Hour)
	if input.Start != "" {
		t, err := time.Parse(time.RFC3339, input.Start)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid start time: %s", input.Start))
		}
		start = t
	}
	if stop.Before(start) {
		return nil, huma.Error400BadRequest("The start of the period must not follow its stop")
	}

	records, err := journal.Records(start, stop)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	output := &ChecksOutput{
		Body: make([]CheckResponse, len(records)),
	}
	for i, record := range records {
		output.Body[i] = checkResponse(record)
	}
	return output, nil
}

// returns the uptime for the service in seconds
func (service *validationService) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// constructs an analysis validation service given our configuration
func NewValidationService() (AnalysisService, error) {

	// validate our configuration
	if len(config.Servers) == 0 {
		return nil, fmt.Errorf("No servers were specified.")
	}

	service := new(validationService)
	service.Name = config.Service.Name
	service.Version = version
	service.Port = -1
	service.StartTime = time.Now()

	// set up routing
	service.Router = mux.NewRouter()
	service.API = humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(service.API, "/", service.getRoot)

	// API v1
	huma.Get(service.API, "/api/v1/servers", service.getServers)
	huma.Register(service.API, huma.Operation{
		OperationID:   "check-analysis",
		Method:        http.MethodPost,
		Path:          "/api/v1/analyses/check",
		Summary:       "Check an analysis record",
		DefaultStatus: http.StatusOK,
	}, service.checkAnalysis)
	huma.Get(service.API, "/api/v1/analyses", service.getChecks)
	huma.Get(service.API, "/api/v1/analyses/{id}", service.getCheck)

	service.Server = &http.Server{
		Handler: service.Router,
	}

	return service, nil
}

// starts the analysis validation service
func (service *validationService) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	// a service that was shut down before starting stays down
	service.Mutex.Lock()
	if service.Stopped {
		service.Mutex.Unlock()
		return nil
	}
	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		service.Mutex.Unlock()
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// open the analysis journal
	err = journal.Init()
	service.Mutex.Unlock()
	if err != nil {
		return err
	}

	// start the server
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *validationService) Shutdown(ctx context.Context) error {
	service.stop()
	err := service.Server.Shutdown(ctx)
	journal.Finalize()
	return err
}

// marks the service as stopped, waiting for a concurrent Start to finish
// opening its listener and journal
func (service *validationService) stop() {
	service.Mutex.Lock()
	defer service.Mutex.Unlock()
	service.Stopped = true
}

// closes down the service abruptly, freeing all resources
func (service *validationService) Close() {
	service.stop()
	service.Server.Close()
	journal.Finalize()
}
