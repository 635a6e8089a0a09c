// Package types defines the data structures shared by the search engine and its hosts.
package types

import "time"

// NodeID identifies a node in a document tree. Zero means no node.
type NodeID int64

// NoNode is the zero NodeID.
const NoNode NodeID = 0

type (
	// NodeMeta contains the properties of a node that are not part of its text stream.
	NodeMeta struct {
		ID              NodeID    `json:"id"`
		Name            string    `json:"name"`
		Tags            []string  `json:"tags,omitempty"`
		Sequence        int       `json:"sequence,omitempty"`
		ReadOnly        bool      `json:"readOnly,omitempty"`
		Excluded        bool      `json:"excluded,omitempty"`
		ExcludeChildren bool      `json:"excludeChildren,omitempty"`
		Created         time.Time `json:"created"`
		Modified        time.Time `json:"modified"`
	}

	// NodeInfo is a listing entry for a node.
	NodeInfo struct {
		NodeMeta
		Path     string `json:"path"`
		Parent   NodeID `json:"parent,omitempty"`
		Children int    `json:"children"`
		URI      string `json:"uri,omitempty"`
	}
)
