// Package workspace gives the panel controller its view of the open
// project: target and web configuration, the simulator frame document,
// and the custom-script override lookup.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/config"
)

// Workspace is a handle to one project root.
type Workspace struct {
	Root string

	targetConfigFile string
	webConfigFile    string
	bundle           *bundle.Bundle
}

// Active resolves the workspace the configuration points at.
func Active(cfg *config.Config, b *bundle.Bundle) (*Workspace, error) {
	root, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	return &Workspace{
		Root:             root,
		targetConfigFile: cfg.TargetConfigFile,
		webConfigFile:    cfg.WebConfigFile,
		bundle:           b,
	}, nil
}

// Exists reports whether the workspace-relative path exists.
func (w *Workspace) Exists(rel string) (bool, error) {
	_, err := os.Stat(filepath.Join(w.Root, rel))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("probing %s: %w", rel, err)
}

// ReadFile reads a workspace-relative file.
func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(w.Root, rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// TargetConfig fetches the project's target configuration. The content
// is opaque to simview beyond being valid JSON.
func (w *Workspace) TargetConfig(ctx context.Context) (json.RawMessage, error) {
	return w.readJSON(ctx, w.targetConfigFile)
}

// WebConfig fetches the project's web configuration.
func (w *Workspace) WebConfig(ctx context.Context) (json.RawMessage, error) {
	return w.readJSON(ctx, w.webConfigFile)
}

func (w *Workspace) readJSON(ctx context.Context, rel string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := w.ReadFile(rel)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parsing %s: invalid JSON", rel)
	}
	return json.RawMessage(data), nil
}

// SimHTML returns the simulator frame document: the workspace's own
// sim.html when present, the bundle default otherwise.
func (w *Workspace) SimHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ok, err := w.Exists(bundle.ResSimHTML)
	if err != nil {
		return "", err
	}
	if ok {
		data, err := w.ReadFile(bundle.ResSimHTML)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return w.bundle.Resource(bundle.ResSimHTML)
}

// FindOverride checks the candidate paths in order and returns the
// content of the first that exists. Candidates may be plain relative
// paths or doublestar globs; glob matches are taken in sorted order.
// Absence of all candidates is not an error.
func (w *Workspace) FindOverride(candidates []string) ([]byte, bool, error) {
	for _, cand := range candidates {
		rel, found, err := w.resolveCandidate(cand)
		if err != nil {
			return nil, false, err
		}
		if !found {
			continue
		}
		data, err := w.ReadFile(rel)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

func (w *Workspace) resolveCandidate(cand string) (string, bool, error) {
	cand = filepath.ToSlash(cand)

	if !isGlob(cand) {
		ok, err := w.Exists(cand)
		return cand, ok, err
	}

	matches, err := doublestar.Glob(os.DirFS(w.Root), cand)
	if err != nil {
		return "", false, fmt.Errorf("matching override pattern %s: %w", cand, err)
	}
	matches = regularFiles(os.DirFS(w.Root), matches)
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Strings(matches)
	return matches[0], true, nil
}

func isGlob(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func regularFiles(fsys fs.FS, paths []string) []string {
	var out []string
	for _, p := range paths {
		if fi, err := fs.Stat(fsys, p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}
