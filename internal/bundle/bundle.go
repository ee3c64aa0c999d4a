// Package bundle provides the pre-built loader bundle: the static text
// assets the panel document is assembled from, plus URL resolution for
// resources the page fetches at runtime.
package bundle

import (
	"embed"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed assets
var assetsFS embed.FS

// Well-known resource names.
const (
	ResIndexHTML   = "index.html"
	ResLoaderJS    = "loader.js"
	ResCustomJS    = "custom.js"
	ResSimulatorJS = "simulator.js"
	ResSimHTML     = "sim.html"
)

// MountPath is the URL prefix resources are served under.
const MountPath = "/bundle"

// Bundle resolves resource text, preferring an on-disk bundle
// directory (the external build step's drop-in location) over the
// embedded defaults.
type Bundle struct {
	dir string
}

// New creates a Bundle. dir may be empty, in which case only the
// embedded assets are used.
func New(dir string) *Bundle {
	return &Bundle{dir: dir}
}

// Resource returns the text of the named bundle asset.
func (b *Bundle) Resource(name string) (string, error) {
	if b.dir != "" {
		data, err := os.ReadFile(filepath.Join(b.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading bundle resource %s: %w", name, err)
		}
	}

	data, err := assetsFS.ReadFile(path.Join("assets", name))
	if err != nil {
		return "", fmt.Errorf("reading embedded resource %s: %w", name, err)
	}
	return string(data), nil
}

// ResolveURL maps a resource-relative path to its host-addressable URL.
func ResolveURL(rel string) string {
	return MountPath + "/" + strings.TrimPrefix(rel, "/")
}

// Handler serves the raw bundle assets. Mount it at MountPath.
func (b *Bundle) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || strings.Contains(name, "..") {
			http.NotFound(w, r)
			return
		}
		text, err := b.Resource(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType(name))
		w.Write([]byte(text))
	})
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
