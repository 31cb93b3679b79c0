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


package frictionless

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"

	"github.com/climb-tre/onyx-analysis-helper/analysis"
)

// characters not permitted in Frictionless package and resource names
var invalidNameChars = regexp.MustCompile(`[^-a-z0-9._/]+`)

// converts the given string to a valid Frictionless name
func validName(s string) string {
	name := invalidNameChars.ReplaceAllString(strings.ToLower(s), "_")
	if name == "" {
		return "_"
	}
	return name
}

// creates a data package describing the files within the given directory of
// analysis outputs. Files are listed in order of their paths, which are
// relative to the directory.
func NewOutputsPackage(name, directory string) (*DataPackage, error) {
	info, err := os.Stat(directory)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", directory)
	}

	pkg := DataPackage{
		Name:      validName(name),
		Created:   time.Now().UTC().Format(time.RFC3339),
		Profile:   "data-package",
		Resources: make([]DataResource, 0),
	}
	err = filepath.WalkDir(directory, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil // directories, symlinks, devices, ...
		}
		relPath, err := filepath.Rel(directory, p)
		if err != nil {
			return err
		}
		resource, err := newFileResource(p, filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		pkg.Resources = append(pkg.Resources, resource)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// resource names must be unique; fall back to full paths on collisions
	names := make(map[string]int)
	for _, res := range pkg.Resources {
		names[res.Name]++
	}
	for i, res := range pkg.Resources {
		if names[res.Name] > 1 {
			pkg.Resources[i].Name = validName(res.Path)
		}
	}
	slices.SortFunc(pkg.Resources, func(a, b DataResource) int {
		return strings.Compare(a.Path, b.Path)
	})

	slog.Debug(fmt.Sprintf("Described %d output file(s) (%d bytes) in %s",
		len(pkg.Resources), pkg.Bytes(), directory))
	return &pkg, nil
}

// creates a data package describing the outputs directory of the given
// analysis, with package metadata taken from the analysis record
func NewAnalysisPackage(record *analysis.Record) (*DataPackage, error) {
	if record.Outputs == "" {
		return nil, fmt.Errorf("Analysis %s has no outputs directory", record.Id.String())
	}
	name := record.Name
	if strings.TrimSpace(name) == "" {
		name = record.Id.String()
	}
	pkg, err := NewOutputsPackage(name, record.Outputs)
	if err != nil {
		return nil, err
	}
	pkg.Title = record.Name
	pkg.Description = record.Description
	pkg.Version = record.PipelineVersion
	pkg.Homepage = record.PipelineURL

	servers := make([]string, 0, len(record.ServerRecords))
	for server := range record.ServerRecords {
		servers = append(servers, server)
	}
	slices.Sort(servers)
	for _, server := range servers {
		for _, id := range record.ServerRecords[server] {
			pkg.Sources = append(pkg.Sources, DataSource{
				Path:  server + "/" + id,
				Title: fmt.Sprintf("%s record %s", server, id),
			})
		}
	}
	for _, id := range record.UpstreamAnalyses {
		pkg.Sources = append(pkg.Sources, DataSource{
			Path:  "analysis/" + id,
			Title: fmt.Sprintf("upstream analysis %s", id),
		})
	}
	return pkg, nil
}

// creates a data resource for the file at the given path
func newFileResource(filePath, relPath string) (DataResource, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return DataResource{}, err
	}
	defer file.Close()

	hash := md5.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return DataResource{}, err
	}

	ext := path.Ext(relPath)
	mediaType := mime.TypeByExtension(ext)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return DataResource{
		Bytes:     int(size),
		Format:    strings.TrimPrefix(strings.ToLower(ext), "."),
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		MediaType: mediaType,
		Name:      validName(strings.TrimSuffix(relPath, ext)),
		Path:      relPath,
	}, nil
}

// validates the given data package against the Frictionless data package
// profile
func (pkg DataPackage) Validate() error {
	descriptor, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	_, err = datapackage.FromString(string(descriptor), "manifest.json",
		validator.InMemoryLoader())
	if err != nil {
		return fmt.Errorf("Invalid data package '%s': %s", pkg.Name, err)
	}
	return nil
}
