// Package frontmatter handles the YAML frontmatter that carries node metadata
// and embedded objects in a notebook file.
package frontmatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/taigrr/treefind/internal/types"
	"gopkg.in/yaml.v3"
)

type (
	// Node is the frontmatter of a notebook file.
	Node struct {
		ID              int64     `yaml:"id,omitempty"`
		Name            string    `yaml:"name,omitempty"`
		Tags            []string  `yaml:"tags,omitempty"`
		Sequence        int       `yaml:"sequence,omitempty"`
		ReadOnly        bool      `yaml:"readonly,omitempty"`
		Exclude         bool      `yaml:"exclude,omitempty"`
		ExcludeChildren bool      `yaml:"exclude_children,omitempty"`
		Created         time.Time `yaml:"created,omitempty"`
		Modified        time.Time `yaml:"modified,omitempty"`
		Objects         []Object  `yaml:"objects,omitempty"`
		Links           []Link    `yaml:"links,omitempty"`
	}

	// Object is an embedded object at a display offset of the node text.
	Object struct {
		Kind     string     `yaml:"kind"`
		Offset   int        `yaml:"offset"`
		Code     string     `yaml:"code,omitempty"`
		Language string     `yaml:"language,omitempty"`
		Cells    [][]string `yaml:"cells,omitempty"`
		Link     string     `yaml:"link,omitempty"`
		Anchor   string     `yaml:"anchor,omitempty"`
		Filename string     `yaml:"filename,omitempty"`
	}

	// Link is a hyperlink run over [Start, End) of the display text.
	Link struct {
		Start  int    `yaml:"start"`
		End    int    `yaml:"end"`
		Target string `yaml:"target"`
	}

	// Parsed is a notebook file split into frontmatter and body text.
	Parsed struct {
		Node           Node
		Body           string
		HasFrontmatter bool
	}
)

// Handler parses and writes notebook frontmatter.
type Handler struct{}

// New creates a new Handler.
func New() *Handler {
	return &Handler{}
}

// Parse splits a file's content into frontmatter and body. Content without a
// frontmatter block is all body.
func (h *Handler) Parse(content string) (Parsed, error) {
	result := Parsed{Body: content}

	if !strings.HasPrefix(content, "---\n") {
		return result, nil
	}

	var yamlContent string
	endIndex := strings.Index(content[4:], "\n---\n")
	switch {
	case endIndex >= 0:
		yamlContent = content[4 : endIndex+4]
		result.Body = content[endIndex+4+5:]
	case strings.HasSuffix(content, "\n---"):
		yamlContent = content[4 : len(content)-4]
		result.Body = ""
	default:
		return result, nil
	}

	if err := yaml.Unmarshal([]byte(yamlContent), &result.Node); err != nil {
		return Parsed{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if err := h.Validate(result.Node); err != nil {
		return Parsed{}, err
	}
	result.HasFrontmatter = true
	return result, nil
}

// Stringify writes the frontmatter block followed by the body.
func (h *Handler) Stringify(node Node, body string) (string, error) {
	if err := h.Validate(node); err != nil {
		return "", err
	}
	yamlBytes, err := yaml.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("failed to stringify frontmatter: %w", err)
	}
	return "---\n" + string(yamlBytes) + "---\n" + body, nil
}

// Validate checks that object kinds are known and offsets are usable.
func (h *Handler) Validate(node Node) error {
	var errs []string
	for i, obj := range node.Objects {
		kind, ok := types.ParseObjectKind(obj.Kind)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("objects[%d]: unknown kind %q", i, obj.Kind))
		case kind == types.KindHyperlink:
			errs = append(errs, fmt.Sprintf("objects[%d]: hyperlinks belong in links", i))
		}
		if obj.Offset < 0 {
			errs = append(errs, fmt.Sprintf("objects[%d]: negative offset %d", i, obj.Offset))
		}
	}
	for i, link := range node.Links {
		if link.Start < 0 || link.End <= link.Start {
			errs = append(errs, fmt.Sprintf("links[%d]: invalid range [%d,%d)", i, link.Start, link.End))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid frontmatter: %s", strings.Join(errs, ", "))
	}
	return nil
}

// Meta converts the frontmatter into node metadata. fallbackName is used when
// the frontmatter has no name.
func (n Node) Meta(fallbackName string) types.NodeMeta {
	name := n.Name
	if name == "" {
		name = fallbackName
	}
	return types.NodeMeta{
		ID:              types.NodeID(n.ID),
		Name:            name,
		Tags:            n.Tags,
		Sequence:        n.Sequence,
		ReadOnly:        n.ReadOnly,
		Excluded:        n.Exclude,
		ExcludeChildren: n.ExcludeChildren,
		Created:         n.Created,
		Modified:        n.Modified,
	}
}

// EmbeddedObjects converts the objects block. The frontmatter must be valid.
func (n Node) EmbeddedObjects() []types.EmbeddedObject {
	out := make([]types.EmbeddedObject, 0, len(n.Objects))
	for _, obj := range n.Objects {
		kind, _ := types.ParseObjectKind(obj.Kind)
		out = append(out, types.EmbeddedObject{
			Kind:     kind,
			Offset:   obj.Offset,
			Code:     obj.Code,
			Language: obj.Language,
			Cells:    obj.Cells,
			Link:     obj.Link,
			Anchor:   obj.Anchor,
			Filename: obj.Filename,
		})
	}
	return out
}

// LinkRuns converts the links block.
func (n Node) LinkRuns() []types.LinkRun {
	out := make([]types.LinkRun, 0, len(n.Links))
	for _, link := range n.Links {
		out = append(out, types.LinkRun{Start: link.Start, End: link.End, Target: link.Target})
	}
	return out
}

// FromNode builds the frontmatter for a node's metadata and content.
func FromNode(meta types.NodeMeta, objs []types.EmbeddedObject, links []types.LinkRun) Node {
	n := Node{
		ID:              int64(meta.ID),
		Name:            meta.Name,
		Tags:            meta.Tags,
		Sequence:        meta.Sequence,
		ReadOnly:        meta.ReadOnly,
		Exclude:         meta.Excluded,
		ExcludeChildren: meta.ExcludeChildren,
		Created:         meta.Created,
		Modified:        meta.Modified,
	}
	for _, obj := range objs {
		n.Objects = append(n.Objects, Object{
			Kind:     obj.Kind.String(),
			Offset:   obj.Offset,
			Code:     obj.Code,
			Language: obj.Language,
			Cells:    obj.Cells,
			Link:     obj.Link,
			Anchor:   obj.Anchor,
			Filename: obj.Filename,
		})
	}
	for _, run := range links {
		n.Links = append(n.Links, Link{Start: run.Start, End: run.End, Target: run.Target})
	}
	return n
}
