package types

import (
	"fmt"
	"strconv"
)

// PatternError reports a pattern that cannot be compiled.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "invalid pattern " + strconv.Quote(e.Pattern) + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error { return e.Err }

// ReadOnlyError reports a replacement attempted on a read-only node.
type ReadOnlyError struct {
	Node NodeID
	Name string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("node %d (%s) is read-only", e.Node, e.Name)
}

// ContentUnavailableError reports a node whose text could not be loaded.
type ContentUnavailableError struct {
	Node NodeID
	Err  error
}

func (e *ContentUnavailableError) Error() string {
	return fmt.Sprintf("content of node %d unavailable: %v", e.Node, e.Err)
}

func (e *ContentUnavailableError) Unwrap() error { return e.Err }

// ObjectMismatchError reports a handle that no longer resolves to the object it was taken from.
type ObjectMismatchError struct {
	Handle  ObjectHandle
	Message string
}

func (e *ObjectMismatchError) Error() string {
	return fmt.Sprintf("object %s at %d in node %d: %s", e.Handle.Kind, e.Handle.Offset, e.Handle.Node, e.Message)
}
