package scenegraph

import (
	"unsafe"

	"github.com/akmonengine/scenegraph/transform"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var defaultConfig = DefaultConfig()

// Node is an element of the hierarchy. Position, Rotation and Scale are written
// directly by the caller; the matrices are derived from them by UpdateLocalMatrix
// and UpdateWorldMatrix.
type Node struct {
	ID   uuid.UUID
	Name string

	// Local transform inputs
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3

	// AutoUpdate recomposes the local matrix on every update pass.
	// When false, the caller owns the local matrix (see SetLocalMatrix).
	AutoUpdate bool

	localMatrix mgl64.Mat4
	worldMatrix mgl64.Mat4
	dirtyWorld  bool

	// last composed inputs, only read with change detection
	composed    transform.Transform
	hasComposed bool

	parent   *Node
	children []*Node

	config *Config
}

// NewNode creates a parentless node with an identity transform, using the
// unbounded default configuration
func NewNode(name string) *Node {
	return newNode(name, &defaultConfig)
}

func newNode(name string, config *Config) *Node {
	t := transform.NewTransform()

	return &Node{
		ID:          uuid.New(),
		Name:        name,
		Position:    t.Position,
		Rotation:    t.Rotation,
		Scale:       t.Scale,
		AutoUpdate:  true,
		localMatrix: mgl64.Ident4(),
		worldMatrix: mgl64.Ident4(),
		config:      config,
	}
}

// NodeSize is the storage footprint of a single node, without its children slice backing array
func NodeSize() uintptr {
	return unsafe.Sizeof(Node{})
}

// settings falls back to the default configuration for zero-value nodes
func (n *Node) settings() *Config {
	if n.config == nil {
		return &defaultConfig
	}
	return n.config
}

func (n *Node) String() string {
	return n.Name
}

// Transform returns the current local inputs
func (n *Node) Transform() transform.Transform {
	return transform.Transform{Position: n.Position, Rotation: n.Rotation, Scale: n.Scale}
}

// LocalMatrix returns the cached local matrix, in column-major order
func (n *Node) LocalMatrix() mgl64.Mat4 {
	return n.localMatrix
}

// WorldMatrix returns the cached world matrix, in column-major order
func (n *Node) WorldMatrix() mgl64.Mat4 {
	return n.worldMatrix
}

// WorldPosition returns the translation of the cached world matrix
func (n *Node) WorldPosition() mgl64.Vec3 {
	return transform.Translation(n.worldMatrix)
}

// SetLocalMatrix replaces the local matrix of a node that does not auto update.
// The world matrix is recomputed on the next pass, and the next auto update
// recomposes from Position, Rotation and Scale even if they did not change.
func (n *Node) SetLocalMatrix(m mgl64.Mat4) {
	n.localMatrix = m
	n.hasComposed = false
	n.dirtyWorld = true
}

// UpdateLocalMatrix composes the local matrix from Position, Rotation and Scale,
// and marks the world matrix stale. It does nothing if AutoUpdate is false.
func (n *Node) UpdateLocalMatrix() {
	if !n.AutoUpdate {
		return
	}

	current := n.Transform()
	if n.settings().ChangeDetection {
		if n.hasComposed && current.Equal(n.composed) {
			return
		}
		n.composed = current
		n.hasComposed = true
	}

	transform.Compose(&n.localMatrix, current.Position, current.Rotation, current.Scale)
	n.dirtyWorld = true
}

type updateFrame struct {
	node  *Node
	force bool
}

// UpdateWorldMatrix brings the world matrix of n and all its descendants in sync
// with their ancestors. Once a node's world matrix is recomputed, every node below
// it is recomputed too, whatever its own dirty state.
//
// The walk is depth-first, children in insertion order, driven by an explicit
// stack so that deep hierarchies do not grow the goroutine stack.
func (n *Node) UpdateWorldMatrix(force bool) {
	n.updateWorld(force)
}

// updateWorld returns the number of world matrices recomputed
func (n *Node) updateWorld(force bool) int {
	recomputed := 0
	stack := []updateFrame{{node: n, force: force}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := frame.node
		node.UpdateLocalMatrix()

		childForce := frame.force
		if node.dirtyWorld || frame.force {
			if node.parent == nil {
				transform.Copy(&node.worldMatrix, &node.localMatrix)
			} else {
				transform.MultiplyMatrices(&node.worldMatrix, &node.parent.worldMatrix, &node.localMatrix)
			}

			node.dirtyWorld = false
			childForce = true
			recomputed++
		}

		// reversed, so the first child is popped first
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, updateFrame{node: node.children[i], force: childForce})
		}
	}

	return recomputed
}

// Parent returns the parent node, nil for a root
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether the node has no parent
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Root returns the topmost ancestor of n, n itself for a root
func (n *Node) Root() *Node {
	root := n
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Children returns a copy of the ordered children list
func (n *Node) Children() []*Node {
	children := make([]*Node, len(n.children))
	copy(children, n.children)
	return children
}

// NumChildren returns the number of direct children
func (n *Node) NumChildren() int {
	return len(n.children)
}

// Child returns the i-th child in insertion order. It panics if i is out of range.
func (n *Node) Child(i int) *Node {
	return n.children[i]
}

// Depth returns the number of ancestors of n
func (n *Node) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// IsAncestorOf reports whether n is a strict ancestor of other
func (n *Node) IsAncestorOf(other *Node) bool {
	if other == nil {
		return false
	}
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Traverse walks the subtree of n depth-first, parents before children,
// children in insertion order. Returning false from fn skips the node's children.
func (n *Node) Traverse(fn func(node *Node) bool) {
	stack := []*Node{n}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(node) {
			continue
		}
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, node.children[i])
		}
	}
}

// height returns the number of levels below n
func (n *Node) height() int {
	type level struct {
		node  *Node
		depth int
	}

	maxDepth := 0
	stack := []level{{n, 0}}
	for len(stack) > 0 {
		l := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		maxDepth = max(maxDepth, l.depth)
		for _, child := range l.node.children {
			stack = append(stack, level{child, l.depth + 1})
		}
	}
	return maxDepth
}

// validateAttach checks every precondition of placing child under n, except
// the single-parent rule which Attach and Reparent handle differently
func (n *Node) validateAttach(child *Node) error {
	if child == nil {
		return errors.Wrapf(ErrNilNode, "attach under %q", n.Name)
	}
	if child == n || child.IsAncestorOf(n) {
		return errors.Wrapf(ErrCycle, "attach %q under %q", child.Name, n.Name)
	}

	if maxChildren := n.settings().MaxChildren; maxChildren > 0 && len(n.children) >= maxChildren {
		return errors.Wrapf(ErrCapacity, "attach %q under %q (%d children)", child.Name, n.Name, maxChildren)
	}

	if maxDepth := n.settings().MaxDepth; maxDepth > 0 {
		if depth := n.Depth() + 1 + child.height(); depth > maxDepth {
			return errors.Wrapf(ErrMaxDepth, "attach %q under %q (depth %d > %d)", child.Name, n.Name, depth, maxDepth)
		}
	}

	return nil
}

// Attach appends child to the children of n. The child must be a root and must
// not be an ancestor of n. Nothing is modified when an error is returned.
// No matrix is recomputed; the next update pass picks up the new parent.
func (n *Node) Attach(child *Node) error {
	if err := n.validateAttach(child); err != nil {
		return err
	}
	if child.parent != nil {
		return errors.Wrapf(ErrAlreadyParented, "attach %q under %q (parent %q)", child.Name, n.Name, child.parent.Name)
	}

	n.attach(child)
	return nil
}

func (n *Node) attach(child *Node) {
	if n.children == nil && n.settings().MaxChildren > 0 {
		n.children = make([]*Node, 0, n.settings().MaxChildren)
	}
	n.children = append(n.children, child)
	child.parent = n
	child.dirtyWorld = true
}

// Detach removes n from its parent's children, keeping the order of its siblings.
// n becomes a root; its world matrix is recomputed on the next pass.
func (n *Node) Detach() error {
	if n.parent == nil {
		return errors.Wrapf(ErrNotAttached, "detach %q", n.Name)
	}

	n.detach()
	return nil
}

func (n *Node) detach() {
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			copy(siblings[i:], siblings[i+1:])
			siblings[len(siblings)-1] = nil
			n.parent.children = siblings[:len(siblings)-1]
			break
		}
	}

	n.parent = nil
	n.dirtyWorld = true
}

// Reparent moves n under newParent, detaching it from its current parent first.
// The move is validated before anything is detached. Reparenting under the
// current parent is a no-op.
func (n *Node) Reparent(newParent *Node) error {
	if newParent == nil {
		return errors.Wrapf(ErrNilNode, "reparent %q", n.Name)
	}
	if n.parent == newParent {
		return nil
	}
	if err := newParent.validateAttach(n); err != nil {
		return err
	}

	if n.parent != nil {
		n.detach()
	}
	newParent.attach(n)
	return nil
}
