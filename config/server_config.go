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
	"regexp"
)

// server names become the prefix of Onyx "<server>_records" fields
var serverNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// a type describing an Onyx server (project) to which analyses are submitted
type serverConfig struct {
	// a descriptive name for the server
	Name string `yaml:"name"`
	// true if the server holds synthetic (test) data
	Synthetic bool `yaml:"synthetic"`
	// the Onyx domain that hosts the server's records (optional)
	Domain string `yaml:"domain,omitempty"`
}

func (server serverConfig) validate(key string) error {
	if !serverNamePattern.MatchString(key) {
		return fmt.Errorf("Invalid server name: '%s' (must be lowercase alphanumeric)", key)
	}
	if server.Name == "" {
		return fmt.Errorf("No name was given for server '%s'", key)
	}
	return nil
}
