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

// A data package manifest for the outputs of an analysis
// (https://specs.frictionlessdata.io/data-package/). Package-level metadata
// comes from the analysis record: its name and description, the version and
// URL of the pipeline that produced it, and the Onyx records it analysed.
type DataPackage struct {
	// when the manifest was generated (RFC 3339)
	Created string `json:"created,omitempty"`
	// the analysis description
	Description string `json:"description,omitempty"`
	// the pipeline's URL
	Homepage string `json:"homepage,omitempty"`
	// lower-case package identifier derived from the analysis name
	Name string `json:"name"`
	// always "data-package"
	Profile string `json:"profile,omitempty"`
	// one resource per output file, sorted by path
	Resources []DataResource `json:"resources"`
	// the Onyx records and upstream analyses the outputs were derived from
	Sources []DataSource `json:"sources,omitempty"`
	// the analysis name
	Title string `json:"title,omitempty"`
	// the pipeline's version
	Version string `json:"version,omitempty"`
}

// returns the total size in bytes of the package's resources
func (pkg DataPackage) Bytes() int {
	total := 0
	for _, res := range pkg.Resources {
		total += res.Bytes
	}
	return total
}

// an output file within an analysis's outputs directory
// (https://specs.frictionlessdata.io/data-resource/)
type DataResource struct {
	// file size
	Bytes int `json:"bytes"`
	// lower-case file extension without its dot ("tsv", "json", ...)
	Format string `json:"format"`
	// hex-encoded MD5 checksum of the file
	Hash string `json:"hash"`
	// media type guessed from the file extension
	MediaType string `json:"mediatype,omitempty"`
	// unique identifier of the resource within its package
	Name string `json:"name"`
	// slash-separated path relative to the outputs directory
	Path string `json:"path"`
}

// something an analysis's outputs were derived from
type DataSource struct {
	// an identifier for the source ("<server>/<sample id>" or
	// "analysis/<analysis id>")
	Path string `json:"path,omitempty"`
	Title string `json:"title"`
}
