// Package filekind is the single source of truth for the extension sets
// editorhost uses to classify files.
//
// The watcher, the static server and the verifier all ask this package
// rather than keeping their own lists, so a file is never "source" to one
// component and "asset" to another.
package filekind

import (
	"path"
	"strings"
)

// SourceExtensions are the application source files that trigger a rebuild
// when they change.
var SourceExtensions = []string{
	".js", ".mjs", ".cjs", ".jsx",
	".ts", ".mts", ".tsx",
	".css", ".html", ".json",
}

// ImmutableAssetExtensions are served with a long-lived cache header. The
// editor distribution is versioned by package, so these never change under
// a given URL.
var ImmutableAssetExtensions = []string{
	".js", ".mjs", ".wasm", ".css",
	".woff", ".woff2", ".ttf", ".otf",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
}

// ScriptExtensions identify module, worker and data requests. A missing
// file with one of these extensions is a 404, never the default document.
var ScriptExtensions = []string{
	".js", ".mjs", ".cjs", ".ts", ".wasm", ".map", ".json", ".css",
}

// IgnoredDirs contains directory prefixes to skip while watching.
//
// Prefix matching means "." matches ".git", ".cache", ".editorhost" etc.
var IgnoredDirs = []string{
	".",            // Hidden directories
	"node_modules", // Installed packages
	"dist",         // Distribution output
	"build",        // Generic build output
	"coverage",     // Test coverage output
}

// ContentTypeOverrides pins the MIME type of extensions the platform
// database gets wrong or lacks. Browsers refuse module workers and
// streaming wasm compilation without these exact values.
var ContentTypeOverrides = map[string]string{
	".mjs":  "application/javascript",
	".wasm": "application/wasm",
}

// ExtensionSet returns a lookup set for a list of extensions.
func ExtensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// IgnoreDirSet returns a set of ignored directory prefixes,
// combining defaults with any additional patterns.
func IgnoreDirSet(additional []string) map[string]bool {
	dirs := make(map[string]bool)
	for _, dir := range IgnoredDirs {
		dirs[dir] = true
	}
	for _, dir := range additional {
		dirs[dir] = true
	}
	return dirs
}

var (
	immutableSet = ExtensionSet(ImmutableAssetExtensions)
	scriptSet    = ExtensionSet(ScriptExtensions)
)

// Ext returns the lowercased extension of a slash-separated path.
func Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

// IsImmutable reports whether p should be cached for a year.
func IsImmutable(p string) bool {
	return immutableSet[Ext(p)]
}

// IsScript reports whether p names a script, wasm, map or data file.
func IsScript(p string) bool {
	return scriptSet[Ext(p)]
}

// LooksLikeFile reports whether a URL path contains a dot anywhere or ends
// in a script extension. Such requests never fall back to the default
// document.
func LooksLikeFile(urlPath string) bool {
	return strings.Contains(urlPath, ".") || IsScript(urlPath)
}
