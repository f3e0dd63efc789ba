// Package detect discovers the layout of an editor-hosting project.
//
// # Detection Algorithm
//
// Detection is DETERMINISTIC: given the same directory contents, it always
// produces the same Project. It looks for:
//
//  1. The editor library: the first known library listed in package.json
//     dependencies whose distribution directory exists under node_modules
//  2. Entry scripts: files named main or index with a script extension,
//     searched in the source directories, sorted
//  3. The default document: the first index.html in the source directories
//
// Directories in filekind.IgnoredDirs and the default static root are never
// descended into.
package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/filekind"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

// KnownLibraries are editor distributions detect recognizes, in preference order.
var KnownLibraries = []string{"modern-monaco", "monaco-editor"}

// SourceDirs are searched for entries and the default document, in order.
var SourceDirs = []string{"src", "web", "app", "."}

// EntryNames are the base names an entry script may have.
var EntryNames = []string{"main", "index"}

// entryExtensions are the script extensions an entry may use.
var entryExtensions = []string{".js", ".mjs", ".jsx", ".ts", ".tsx"}

// Project is what detection found. Empty fields mean nothing was found.
type Project struct {
	LibraryName     string   `json:"library_name,omitempty"`
	LibrarySource   string   `json:"library_source,omitempty"` // relative to the project root, slash separated
	SourceDir       string   `json:"source_dir,omitempty"`
	Entries         []string `json:"entries,omitempty"`
	DefaultDocument string   `json:"default_document,omitempty"`
}

// packageJSON holds the fields of package.json detection reads.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Detect inspects root.
func Detect(root string) (*Project, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	p := &Project{}

	name, src, err := Library(root)
	if err != nil {
		return nil, err
	}
	p.LibraryName, p.LibrarySource = name, src

	for _, dir := range SourceDirs {
		entries, err := Entries(filepath.Join(root, dir))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}
		p.SourceDir = dir
		for _, e := range entries {
			p.Entries = append(p.Entries, filepath.ToSlash(filepath.Join(dir, e)))
		}
		break
	}

	dirs := SourceDirs
	if p.SourceDir != "" {
		dirs = append([]string{p.SourceDir}, SourceDirs...)
	}
	for _, dir := range dirs {
		doc := filepath.Join(root, dir, "index.html")
		if fileExists(doc) {
			p.DefaultDocument = filepath.ToSlash(filepath.Join(dir, "index.html"))
			break
		}
	}

	return p, nil
}

// Library finds the editor distribution declared in root's package.json.
// It returns empty strings when none is declared or installed.
func Library(root string) (name, source string, err error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read package.json: %w", err)
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", "", fmt.Errorf("failed to parse package.json: %w", err)
	}

	for _, lib := range KnownLibraries {
		_, dep := pkg.Dependencies[lib]
		_, devDep := pkg.DevDependencies[lib]
		if !dep && !devDep {
			continue
		}
		for _, dist := range []string{"dist", "esm", "min"} {
			rel := filepath.Join("node_modules", lib, dist)
			if dirExists(filepath.Join(root, rel)) {
				return lib, filepath.ToSlash(rel), nil
			}
		}
	}
	return "", "", nil
}

// Entries lists entry scripts under dir, relative to it and sorted.
//
// An entry is a file whose base name is in EntryNames and whose extension is
// a script extension. Declaration files (.d.ts) never count.
func Entries(dir string) ([]string, error) {
	if !dirExists(dir) {
		return nil, fmt.Errorf("source directory %s: %w", dir, fs.ErrNotExist)
	}

	// The static root holds build output and the mirrored library.
	ignored := filekind.IgnoreDirSet([]string{config.DefaultRoot})
	var found []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && isIgnoredDir(d.Name(), ignored) {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasSuffix(name, ".d.ts") {
			return nil
		}
		ext := filekind.Ext(name)
		if !slices.Contains(entryExtensions, ext) {
			return nil
		}
		if !slices.Contains(EntryNames, strings.TrimSuffix(name, filepath.Ext(name))) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Shallow entries first, then lexical, so src/main.js beats src/x/main.js.
	slices.SortFunc(found, func(a, b string) int {
		if da, db := strings.Count(a, "/"), strings.Count(b, "/"); da != db {
			return da - db
		}
		return strings.Compare(a, b)
	})
	return found, nil
}

func isIgnoredDir(name string, ignored map[string]bool) bool {
	for prefix := range ignored {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
