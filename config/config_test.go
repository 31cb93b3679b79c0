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


package config

// These tests verify that we can properly configure the analysis helper with
// YAML input.
import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// a valid service config entry
const VALID_SERVICE string = `
service:
  name: Onyx analysis checks
  port: 8080
  max_connections: 100
  data_dir: ${ONYX_ANALYSIS_DATA_DIR}
`

// a valid pipeline config entry
const VALID_PIPELINE string = `
pipeline:
  package: qc-pipeline
  packages:
    qc-pipeline:
      version: 0.1.0
      url: https://github.com/example/qc-pipeline
    climb-onyx-client:
      name: climb-onyx-client
      version: 0.14.0
`

// a valid servers config entry
const VALID_SERVERS string = `
servers:
  mscape:
    name: mSCAPE
  synthscape:
    name: Synthetic mSCAPE
    synthetic: true
`

// tests whether config.Init reports an error for blank input
func TestInitRejectsBlankInput(t *testing.T) {
	b := []byte("")
	err := Init(b)
	assert.NotNil(t, err, "Blank config didn't trigger an error.")
}

// tests whether config.Init reports an error for an invalid port
func TestInitRejectsBadPort(t *testing.T) {
	yaml := "service:\n  port: -1\n\n" + VALID_PIPELINE + VALID_SERVERS
	b := []byte(yaml)
	err := Init(b)
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
	yaml = "service:\n  port: 1000000\n\n" + VALID_PIPELINE + VALID_SERVERS
	b = []byte(yaml)
	err = Init(b)
	assert.NotNil(t, err, "Config with bad port didn't trigger an error.")
}

// tests whether config.Init reports an error for a bad max number of
// connections
func TestInitRejectsBadMaxConnections(t *testing.T) {
	yaml := "service:\n  max_connections: 0\n\n" + VALID_PIPELINE + VALID_SERVERS
	b := []byte(yaml)
	err := Init(b)
	assert.NotNil(t, err, "Config with bad max_connections didn't trigger an error.")
}

// tests whether config.Init reports an error when no servers are defined
func TestInitRejectsNoServersDefined(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE
	b := []byte(yaml)
	err := Init(b)
	assert.NotNil(t, err, "Config with no servers didn't trigger an error.")
}

// tests whether config.Init reports an error for a relative outputs directory
func TestInitRejectsRelativeOutputsDirectory(t *testing.T) {
	yaml := VALID_SERVICE + "  outputs_dir: outputs\n" + VALID_PIPELINE + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with relative outputs_dir didn't trigger an error.")

	yaml = VALID_SERVICE + "  outputs_dir: /srv/analyses\n" + VALID_PIPELINE + VALID_SERVERS
	err = Init([]byte(yaml))
	assert.Nil(t, err)
	assert.Equal(t, "/srv/analyses", Service.OutputsDirectory)
}

// tests whether config.Init rejects server names that can't prefix an Onyx
// records field
func TestInitRejectsBadServerName(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE + `
servers:
  M-Scape:
    name: mSCAPE
`
	b := []byte(yaml)
	err := Init(b)
	assert.NotNil(t, err, "Config with bad server name didn't trigger an error.")

	yaml = VALID_SERVICE + VALID_PIPELINE + `
servers:
  mscape:
    synthetic: false
`
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with unnamed server didn't trigger an error.")
}

// tests whether config.Init rejects a pipeline package without metadata
func TestInitRejectsMissingPipelineMetadata(t *testing.T) {
	yaml := VALID_SERVICE + `
pipeline:
  package: qc-pipeline
` + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.NotNil(t, err, "Config with missing pipeline metadata didn't trigger an error.")

	yaml = VALID_SERVICE + `
pipeline:
  packages:
    qc-pipeline:
      url: https://github.com/example/qc-pipeline
` + VALID_SERVERS
	err = Init([]byte(yaml))
	assert.NotNil(t, err, "Config with unversioned package didn't trigger an error.")
}

// Tests whether config.Init returns no error for a configuration that is
// valid.
func TestInitAcceptsValidInput(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE + VALID_SERVERS
	b := []byte(yaml)
	err := Init(b)
	assert.Nil(t, err, fmt.Sprintf("Valid YAML input produced an error: %s", err))
}

// Tests whether config.Init properly initializes its globals for valid input.
func TestInitProperlySetsGlobals(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE + VALID_SERVERS
	b := []byte(yaml)
	err := Init(b)
	assert.Nil(t, err, fmt.Sprintf("Valid YAML input produced an error: %s", err))

	// Check data
	assert.Equal(t, "Onyx analysis checks", Service.Name)
	assert.Equal(t, 8080, Service.Port)
	assert.Equal(t, 100, Service.MaxConnections)
	assert.Equal(t, TESTING_DATA_DIR, Service.DataDirectory)
	assert.Equal(t, "qc-pipeline", Pipeline.Package)
	assert.Equal(t, 2, len(Pipeline.Packages))
	assert.Equal(t, 2, len(Servers))
	assert.True(t, Servers["synthscape"].Synthetic)
	assert.False(t, Servers["mscape"].Synthetic)
}

// Tests whether the configured package registry resolves pipeline metadata.
func TestPackageRegistry(t *testing.T) {
	yaml := VALID_SERVICE + VALID_PIPELINE + VALID_SERVERS
	err := Init([]byte(yaml))
	assert.Nil(t, err)

	meta, err := PackageRegistry().Lookup("")
	assert.Nil(t, err)
	assert.Equal(t, "qc-pipeline", meta.Name)
	assert.Equal(t, "0.1.0", meta.Version)
	assert.Equal(t, "https://github.com/example/qc-pipeline", meta.URL)

	meta, err = PackageRegistry().Lookup("climb-onyx-client")
	assert.Nil(t, err)
	assert.Equal(t, "0.14.0", meta.Version)

	_, err = PackageRegistry().Lookup("not-installed")
	assert.NotNil(t, err)
}

// data directory substituted into the service config
const TESTING_DATA_DIR string = "/tmp/onyx-analysis-data"

// this function gets called at the beginning of a test session
func setup() {
	os.Setenv("ONYX_ANALYSIS_DATA_DIR", TESTING_DATA_DIR)
}

// this function gets called after all tests have been run
func breakdown() {
	os.Unsetenv("ONYX_ANALYSIS_DATA_DIR")
}

// This runs setup, runs all tests, and does breakdown.
func TestMain(m *testing.M) {
	var status int
	setup()
	status = m.Run()
	breakdown()
	os.Exit(status)
}
