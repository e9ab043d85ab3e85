// Package attachment resolves stored relative evidence paths to absolute
// URLs. Resolution is pure string work over a base URL fixed at startup;
// no I/O happens at read time.
package attachment

import "strings"

// Resolver turns stored relative paths into absolute URLs
type Resolver struct {
	baseURL string
}

// NewResolver creates a resolver for the given base URL. The base is
// normalized once; a trailing slash is dropped.
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve maps a stored relative path to an absolute URL. The empty path
// resolves to the empty string, mirroring a null column.
func (r *Resolver) Resolve(relativePath string) string {
	if relativePath == "" {
		return ""
	}
	return r.baseURL + "/" + strings.TrimLeft(relativePath, "/")
}
