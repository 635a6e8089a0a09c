package objects

import (
	"encoding/base64"
	"strings"

	"github.com/taigrr/treefind/internal/offsets"
)

// Link target prefixes.
const (
	LinkWeb    = "webs"
	LinkFile   = "file"
	LinkFolder = "fold"
	LinkNode   = "node"
)

// DecodeLink returns the human-readable target of a stored link:
// "webs URL" yields the URL as stored, "file"/"fold" carry a base64 path,
// "node ID [anchor]" yields "ID [anchor]". Anything else is returned verbatim.
func DecodeLink(link string) string {
	kind, rest, ok := strings.Cut(link, " ")
	if !ok {
		return link
	}
	switch kind {
	case LinkWeb, LinkNode:
		return rest
	case LinkFile, LinkFolder:
		if b, err := base64.StdEncoding.DecodeString(rest); err == nil {
			return string(b)
		}
		return rest
	}
	return link
}

// EncodeLink stores a decoded target back under the prefix of the original link.
func EncodeLink(original, decoded string) string {
	kind, _, ok := strings.Cut(original, " ")
	if !ok {
		return decoded
	}
	switch kind {
	case LinkWeb, LinkNode:
		return kind + " " + decoded
	case LinkFile, LinkFolder:
		return kind + " " + base64.StdEncoding.EncodeToString([]byte(decoded))
	}
	return decoded
}

// ReplaceInLink replaces the code point range [start, end) of the decoded
// target of link and returns the re-encoded link.
func ReplaceInLink(link string, start, end int, repl string) string {
	decoded := DecodeLink(link)
	return EncodeLink(link, ReplaceRange(decoded, start, end, repl))
}

// ReplaceRange replaces the code point range [start, end) of s.
func ReplaceRange(s string, start, end int, repl string) string {
	bs := offsets.CodepointToByte(s, start)
	be := offsets.CodepointToByte(s, end)
	return s[:bs] + repl + s[be:]
}
