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

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
)

// a type with service configuration parameters
type serviceConfig struct {
	// Name of the service, reported at its root endpoint.
	Name string `json:"name" yaml:"name"`
	// Port on which the service listens.
	Port int `json:"port" yaml:"port"`
	// Maximum number of allowed incoming connections.
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
	// Directory in which the analysis journal is kept.
	DataDirectory string `json:"data_dir" yaml:"data_dir"`
	// Directory holding analysis outputs that the service may describe with
	// manifests. Manifests are disabled if this is empty.
	OutputsDirectory string `json:"outputs_dir" yaml:"outputs_dir"`
}

// a type describing the pipeline whose analyses are being recorded
type pipelineConfig struct {
	// Name of the pipeline's package, used when no package name is given to
	// AddPackageMetadata.
	Package string `json:"package" yaml:"package"`
	// Metadata for the pipeline and any other packages, keyed by package name.
	Packages map[string]analysis.PackageMetadata `json:"packages" yaml:"packages"`
}

// global config variables
var Service serviceConfig
var Pipeline pipelineConfig
var Servers map[string]serverConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Service  serviceConfig           `yaml:"service"`
	Pipeline pipelineConfig          `yaml:"pipeline"`
	Servers  map[string]serverConfig `yaml:"servers"`
}

// This helper locates and reads a configuration file, returning an error
// indicating success or failure. All environment variables of the form
// ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Service.Name = "Onyx analysis helper"
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.Service.DataDirectory = "."
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		log.Printf("Couldn't parse configuration data: %s\n", err)
		return err
	}

	// copy the config data into place
	Service = conf.Service
	Pipeline = conf.Pipeline
	Servers = conf.Servers

	return err
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	if params.DataDirectory == "" {
		return fmt.Errorf("No data directory (data_dir) was given!")
	}
	if params.OutputsDirectory != "" && !filepath.IsAbs(params.OutputsDirectory) {
		return fmt.Errorf("Invalid outputs_dir: %s (must be an absolute path)",
			params.OutputsDirectory)
	}
	return nil
}

// This helper validates the pipeline's package metadata.
func validatePipeline(params pipelineConfig) error {
	if params.Package != "" {
		if _, found := params.Packages[params.Package]; !found {
			return fmt.Errorf("No metadata was given for the pipeline package '%s'",
				params.Package)
		}
	}
	for name, meta := range params.Packages {
		if meta.Version == "" {
			return fmt.Errorf("No version was given for package '%s'", name)
		}
	}
	return nil
}

// This helper validates the given configfile, returning an error that indicates
// success or failure.
func validateConfig() error {
	err := validateServiceParameters(Service)
	if err != nil {
		return err
	}

	err = validatePipeline(Pipeline)
	if err != nil {
		return err
	}

	// Were we given any servers?
	if len(Servers) == 0 {
		return fmt.Errorf("No servers were provided!")
	}
	for name, server := range Servers {
		err = server.validate(name)
		if err != nil {
			return err
		}
	}
	return nil
}

// Returns a registry that resolves package metadata from the configuration
// first and then from the build information of the running binary.
func PackageRegistry() analysis.PackageRegistry {
	return analysis.ChainRegistry{
		analysis.StaticRegistry{
			Default:  Pipeline.Package,
			Packages: Pipeline.Packages,
		},
		analysis.BuildInfoRegistry{},
	}
}

// Initializes the helper's configuration using the given YAML byte data.
func Init(yamlData []byte) error {

	// Read the configuration from our YAML file.
	err := readConfig(yamlData)
	if err != nil {
		return err
	}

	// Validate the configuration.
	err = validateConfig()
	return err
}
