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
	"runtime/debug"
	"strings"
)

// metadata describing a pipeline package
type PackageMetadata struct {
	// the name of the package
	Name string `json:"name" yaml:"name"`
	// the package's version
	Version string `json:"version" yaml:"version"`
	// the URL of the package's project page
	URL string `json:"url" yaml:"url"`
}

// a source of package metadata. Lookup("") returns the metadata for the
// package that is running the analysis.
type PackageRegistry interface {
	Lookup(packageName string) (PackageMetadata, error)
}

// a registry with explicitly configured package metadata. This is the
// portable way of supplying pipeline metadata.
type StaticRegistry struct {
	// the name of the package returned by Lookup("")
	Default string
	// metadata, keyed by package name
	Packages map[string]PackageMetadata
}

func (reg StaticRegistry) Lookup(packageName string) (PackageMetadata, error) {
	name := packageName
	if name == "" {
		name = reg.Default
	}
	meta, found := reg.Packages[name]
	if name == "" || !found {
		return PackageMetadata{}, PackageNotFoundError{Package: packageName}
	}
	if meta.Name == "" {
		meta.Name = name
	}
	return meta, nil
}

// reads build information embedded in the running binary (replaced in tests)
var readBuildInfo = debug.ReadBuildInfo

// a registry that reads the module information embedded in the running Go
// binary. Package names are module paths; Lookup("") returns the main module.
type BuildInfoRegistry struct{}

func (reg BuildInfoRegistry) Lookup(packageName string) (PackageMetadata, error) {
	info, ok := readBuildInfo()
	if !ok {
		return PackageMetadata{}, PackageNotFoundError{
			Package: packageName,
			Message: "no build information is embedded in this binary",
		}
	}
	var module *debug.Module
	if packageName == "" || packageName == info.Main.Path {
		module = &info.Main
	} else {
		for _, dep := range info.Deps {
			if dep.Path == packageName {
				module = dep
				break
			}
		}
	}
	if module == nil || module.Path == "" {
		return PackageMetadata{}, PackageNotFoundError{Package: packageName}
	}
	// module paths name the repository host for all but vanity imports
	return PackageMetadata{
		Name:    module.Path,
		Version: strings.TrimPrefix(module.Version, "v"),
		URL:     "https://" + module.Path,
	}, nil
}

// a registry that consults a list of registries in order, returning the first
// metadata found
type ChainRegistry []PackageRegistry

func (reg ChainRegistry) Lookup(packageName string) (PackageMetadata, error) {
	err := error(PackageNotFoundError{Package: packageName})
	for _, r := range reg {
		var meta PackageMetadata
		meta, err = r.Lookup(packageName)
		if err == nil {
			return meta, nil
		}
	}
	return PackageMetadata{}, err
}
