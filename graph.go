package scenegraph

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/akmonengine/scenegraph/transform"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Graph owns a forest of root nodes and the configuration shared by the nodes it creates
type Graph struct {
	Config Config
	Events Events

	// Roots in insertion order. Each root subtree is updated independently.
	Roots       []*Node
	SpatialGrid *SpatialGrid

	nodes     map[uuid.UUID]graphEntry
	nextOrder uint64
	logger    *slog.Logger
}

// graphEntry remembers when a node joined the graph, to keep adoption order stable
type graphEntry struct {
	node  *Node
	order uint64
}

// NewGraph creates an empty graph. A nil logger falls back to slog.Default().
func NewGraph(config Config, logger *slog.Logger) (*Graph, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid graph config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{
		Config: config,
		Events: NewEvents(),
		nodes:  make(map[uuid.UUID]graphEntry),
		logger: logger,
	}
	if config.GridCellSize > 0 {
		g.SpatialGrid = NewSpatialGrid(config.GridCellSize, config.GridCells)
	}

	logger.Debug("scene graph created",
		"max_children", config.MaxChildren,
		"max_depth", config.MaxDepth,
		"change_detection", config.ChangeDetection,
		"workers", config.Workers,
	)

	return g, nil
}

// NewNode creates a node bound to the graph configuration and adds it as a root
func (g *Graph) NewNode(name string) *Node {
	n := newNode(name, &g.Config)
	g.index(n)
	g.Roots = append(g.Roots, n)
	return n
}

// Find returns the node created by this graph with the given id
func (g *Graph) Find(id uuid.UUID) (*Node, bool) {
	entry, ok := g.nodes[id]
	return entry.node, ok
}

// index registers the subtree of n, keeping the order of nodes already known
func (g *Graph) index(n *Node) {
	n.Traverse(func(node *Node) bool {
		if _, ok := g.nodes[node.ID]; !ok {
			g.nodes[node.ID] = graphEntry{node: node, order: g.nextOrder}
			g.nextOrder++
		}
		return true
	})
}

// Len returns the number of nodes owned by the graph
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddRoot adopts a parentless node, along with its subtree
func (g *Graph) AddRoot(n *Node) error {
	if n == nil {
		return errors.Wrap(ErrNilNode, "add root")
	}
	if n.parent != nil {
		return errors.Wrapf(ErrAlreadyParented, "add root %q (parent %q)", n.Name, n.parent.Name)
	}
	if g.rootIndex(n) != -1 {
		return nil
	}

	g.index(n)
	g.Roots = append(g.Roots, n)
	return nil
}

// RemoveRoot drops a root and its whole subtree from the graph. A node detached
// through Node.Detach and not adopted yet counts as a root.
func (g *Graph) RemoveRoot(n *Node) {
	if n == nil || n.parent != nil {
		return
	}
	k := g.rootIndex(n)
	if k == -1 {
		if entry, ok := g.nodes[n.ID]; !ok || entry.node != n {
			return
		}
	} else {
		g.Roots = append(g.Roots[:k], g.Roots[k+1:]...)
	}

	n.Traverse(func(node *Node) bool {
		delete(g.nodes, node.ID)
		return true
	})
}

func (g *Graph) rootIndex(n *Node) int {
	for i, r := range g.Roots {
		if r == n {
			return i
		}
	}
	return -1
}

// Attach places child under parent. A child that was a root of the graph stops being one.
func (g *Graph) Attach(parent, child *Node) error {
	if parent == nil {
		return errors.Wrap(ErrNilNode, "attach to nil parent")
	}
	if err := parent.Attach(child); err != nil {
		g.logger.Debug("attach rejected", "error", err)
		return err
	}

	if k := g.rootIndex(child); k != -1 {
		g.Roots = append(g.Roots[:k], g.Roots[k+1:]...)
	}
	g.index(child)
	g.Events.record(AttachEvent{Parent: parent, Child: child})
	return nil
}

// Detach removes n from its parent; n becomes a root of the graph
func (g *Graph) Detach(n *Node) error {
	if n == nil {
		return errors.Wrap(ErrNilNode, "detach")
	}
	parent := n.parent
	if err := n.Detach(); err != nil {
		g.logger.Debug("detach rejected", "error", err)
		return err
	}

	g.Roots = append(g.Roots, n)
	g.Events.record(DetachEvent{Parent: parent, Child: n})
	return nil
}

// Update runs a world matrix pass on every root, rebuilds the spatial index and flushes the events
func (g *Graph) Update() {
	g.pruneRoots()

	recomputed := make([]int, len(g.Roots))
	indices := make([]int, len(g.Roots))
	for i := range indices {
		indices[i] = i
	}

	// root subtrees are disjoint, each one is walked by a single goroutine
	task(max(DEFAULT_WORKERS, g.Config.Workers), indices, func(i int) {
		recomputed[i] = g.Roots[i].updateWorld(false)
	})

	for i, root := range g.Roots {
		g.Events.record(WorldUpdateEvent{Root: root, Recomputed: recomputed[i]})
	}

	if g.SpatialGrid != nil {
		g.SpatialGrid.Clear()
		g.Walk(func(node *Node) bool {
			g.SpatialGrid.Insert(node)
			return true
		})
	}

	g.Events.flush()
}

// pruneRoots reconciles Roots with hierarchy changes made behind the graph's back.
// Roots attached through Node.Attach are dropped, they are reached through their
// new ancestor. Indexed nodes detached through Node.Detach are adopted as roots,
// in the order they joined the graph.
func (g *Graph) pruneRoots() {
	n := 0
	listed := make(map[*Node]bool, len(g.Roots))
	for _, root := range g.Roots {
		if root.parent == nil {
			g.Roots[n] = root
			listed[root] = true
			n++
		}
	}
	clear(g.Roots[n:])
	g.Roots = g.Roots[:n]

	var orphans []graphEntry
	for _, entry := range g.nodes {
		if entry.node.parent == nil && !listed[entry.node] {
			orphans = append(orphans, entry)
		}
	}
	if len(orphans) == 0 {
		return
	}

	slices.SortFunc(orphans, func(a, b graphEntry) int {
		return cmp.Compare(a.order, b.order)
	})
	for _, entry := range orphans {
		g.logger.Debug("adopting detached node as root", "node", entry.node.Name)
		g.Roots = append(g.Roots, entry.node)
	}
}

// Walk traverses every root subtree in root order
func (g *Graph) Walk(fn func(node *Node) bool) {
	for _, root := range g.Roots {
		root.Traverse(fn)
	}
}

// Query returns the nodes whose world position lies in box, as of the last Update.
// Without spatial index, every node is tested.
func (g *Graph) Query(box transform.AABB) []*Node {
	if g.SpatialGrid != nil {
		return g.SpatialGrid.Query(box)
	}

	var result []*Node
	g.Walk(func(node *Node) bool {
		if box.ContainsPoint(node.WorldPosition()) {
			result = append(result, node)
		}
		return true
	})
	return result
}

// Bounds returns the box enclosing the cached world position of every node
func (g *Graph) Bounds() transform.AABB {
	bounds := transform.EmptyAABB()
	g.Walk(func(node *Node) bool {
		bounds = bounds.Extend(node.WorldPosition())
		return true
	})
	return bounds
}
