package scenegraph

import "github.com/pkg/errors"

// Hierarchy errors. Every Attach/Detach failure wraps one of these, so callers
// can match with errors.Is.
var (
	ErrNilNode         = errors.New("nil node")
	ErrCycle           = errors.New("attachment would create a cycle")
	ErrAlreadyParented = errors.New("node already has a parent")
	ErrCapacity        = errors.New("maximum number of children reached")
	ErrMaxDepth        = errors.New("maximum hierarchy depth exceeded")
	ErrNotAttached     = errors.New("node has no parent")
)
