// Package pathfilter decides which notebook files and directories become nodes.
package pathfilter

import (
	"regexp"
	"strings"
)

// Config extends the default filter rules.
type Config struct {
	IgnoredPatterns   []string `yaml:"ignored_patterns" toml:"ignored_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions" toml:"allowed_extensions"`
}

// PathFilter filters notebook paths by ignore globs and node file extension.
type PathFilter struct {
	ignored           []*regexp.Regexp
	allowedExtensions []string
}

// New creates a new PathFilter with the given configuration. Invalid globs
// are ignored.
func New(config *Config) *PathFilter {
	patterns := []string{
		".treefind/**",
		".git/**",
		"node_modules/**",
		".DS_Store",
		"Thumbs.db",
	}
	pf := &PathFilter{
		allowedExtensions: []string{
			".md",
			".markdown",
			".txt",
		},
	}

	if config != nil {
		patterns = append(patterns, config.IgnoredPatterns...)
		pf.allowedExtensions = append(pf.allowedExtensions, config.AllowedExtensions...)
	}
	for _, pattern := range patterns {
		if re, err := compileGlob(pattern); err == nil {
			pf.ignored = append(pf.ignored, re)
		}
	}
	return pf
}

// compileGlob converts a glob pattern to an anchored regex.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	// Normalize pattern path separators (Windows compatibility)
	normalizedPattern := strings.ReplaceAll(pattern, "\\", "/")

	// Escape all regex special chars first
	regexPattern := regexp.QuoteMeta(normalizedPattern)

	regexPattern = strings.ReplaceAll(regexPattern, `\*\*`, ".*")  // ** matches any
	regexPattern = strings.ReplaceAll(regexPattern, `\*`, "[^/]*") // * matches non-slash
	regexPattern = strings.ReplaceAll(regexPattern, `\?`, "[^/]")  // ? matches single char

	return regexp.Compile("^" + regexPattern + "$")
}

func normalize(path string) string {
	return strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
}

func (pf *PathFilter) ignoredPath(path string) bool {
	for _, re := range pf.ignored {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// IsAllowed reports whether a relative path may be read at all.
func (pf *PathFilter) IsAllowed(path string) bool {
	return !pf.ignoredPath(normalize(path))
}

// AllowsDir reports whether the children below a relative directory may be read.
func (pf *PathFilter) AllowsDir(path string) bool {
	return !pf.ignoredPath(strings.TrimSuffix(normalize(path), "/") + "/")
}

// IsNodeFile reports whether a relative file path holds a node.
func (pf *PathFilter) IsNodeFile(path string) bool {
	return pf.IsAllowed(path) && pf.Extension(path) != ""
}

// Extension returns the allowed node extension a path ends with, or "".
func (pf *PathFilter) Extension(path string) string {
	lowerPath := strings.ToLower(normalize(path))
	for _, ext := range pf.allowedExtensions {
		if strings.HasSuffix(lowerPath, strings.ToLower(ext)) && len(lowerPath) > len(ext) {
			return path[len(path)-len(ext):]
		}
	}
	return ""
}

// FilterPaths filters a slice of paths to only the node files.
func (pf *PathFilter) FilterPaths(paths []string) []string {
	var allowed []string
	for _, path := range paths {
		if pf.IsNodeFile(path) {
			allowed = append(allowed, path)
		}
	}
	return allowed
}
