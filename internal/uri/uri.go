// Package uri provides links to notebook nodes.
package uri

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/taigrr/treefind/internal/types"
)

// Scheme is the URI scheme of node links.
const Scheme = "treefind"

// GenerateNodeURI generates a link to a node file inside a notebook.
// Uses the absolute path format: treefind:///absolute/path/to/node#id
func GenerateNodeURI(notebookPath, nodePath string, id types.NodeID) string {
	cleanPath := strings.TrimPrefix(nodePath, "/")
	absolutePath := strings.TrimSuffix(notebookPath, "/") + "/" + cleanPath

	// Node files are addressed without their markdown extension
	for _, ext := range []string{".md", ".markdown"} {
		absolutePath = strings.TrimSuffix(absolutePath, ext)
	}

	// URI encode the path, but keep slashes as slashes
	parts := strings.Split(absolutePath, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	encodedPath := strings.TrimPrefix(strings.Join(parts, "/"), "/")

	out := Scheme + ":///" + encodedPath
	if id != types.NoNode {
		out += "#" + strconv.FormatInt(int64(id), 10)
	}
	return out
}

// ParseNodeURI returns the absolute path and node id of a node link. The id
// is types.NoNode when the link has no fragment.
func ParseNodeURI(raw string) (string, types.NodeID, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", types.NoNode, fmt.Errorf("invalid node uri: %w", err)
	}
	if u.Scheme != Scheme {
		return "", types.NoNode, fmt.Errorf("invalid node uri scheme %q", u.Scheme)
	}
	id := types.NoNode
	if u.Fragment != "" {
		n, err := strconv.ParseInt(u.Fragment, 10, 64)
		if err != nil {
			return "", types.NoNode, fmt.Errorf("invalid node id %q: %w", u.Fragment, err)
		}
		id = types.NodeID(n)
	}
	return u.Path, id, nil
}
