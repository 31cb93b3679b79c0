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
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/climb-tre/onyx-analysis-helper/frictionless"
)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"Onyx analysis helper" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a response for a server-related query (GET)
type ServerResponse struct {
	Id        string `json:"id" example:"synthscape" doc:"server identifier, the prefix of its records field"`
	Name      string `json:"name" example:"Synthetic mSCAPE"`
	Synthetic bool   `json:"synthetic" doc:"true if the server holds synthetic (test) data"`
}

// a response for an analysis check (POST) or a query for a previous check
// (GET)
type CheckResponse struct {
	// draft identifier for the checked analysis
	Id uuid.UUID `json:"id" doc:"a UUID identifying the checked analysis"`
	// status of the check
	Status string `json:"status" example:"passed" doc:"passed or failed"`
	// time at which the analysis was checked
	CheckTime time.Time `json:"check_time"`
	// failure flags
	RequiredFieldFail bool `json:"required_field_fail" doc:"true if required fields are missing"`
	AttributeFail     bool `json:"attribute_fail" doc:"true if populated fields are malformed"`
	// offending field names
	MissingFields []string `json:"missing_fields" doc:"names of missing required fields"`
	InvalidFields []string `json:"invalid_fields" doc:"names of malformed or unrecognized fields"`
	// the analysis's fields as they would be submitted to Onyx
	Fields map[string]any `json:"fields" doc:"the analysis fields keyed by Onyx field name"`
	// manifest for the analysis's outputs directory (if requested)
	Manifest *frictionless.DataPackage `json:"manifest,omitempty" doc:"a Frictionless data package describing the outputs"`
}

// AnalysisService defines the interface for our analysis validation service.
type AnalysisService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}
