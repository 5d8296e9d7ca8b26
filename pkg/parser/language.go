// Package parser manages tree-sitter C++ parsers for the raw
// declaration extractor.
package parser

import (
	"path/filepath"
	"strings"
)

// headerExtensions are the file extensions treated as C++ headers.
var headerExtensions = map[string]bool{
	".h":   true,
	".hh":  true,
	".hpp": true,
	".hxx": true,
	".ipp": true,
	".inl": true,
}

// IsHeaderFile reports whether a path looks like a C++ header. Extensionless
// files are accepted too, since standard-library style headers carry none.
func IsHeaderFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return true
	}
	return headerExtensions[ext]
}

// HeaderGlobs returns the glob patterns matching header files, used by
// watch mode to decide which filesystem events warrant a regeneration.
func HeaderGlobs() []string {
	globs := make([]string, 0, len(headerExtensions))
	for ext := range headerExtensions {
		globs = append(globs, "**/*"+ext)
	}
	return globs
}
