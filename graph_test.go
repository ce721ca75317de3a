package scenegraph

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/akmonengine/scenegraph/transform"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

func newTestGraph(t *testing.T, config Config) *Graph {
	t.Helper()

	g, err := NewGraph(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewGraph(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())

	if g.Len() != 0 || len(g.Roots) != 0 {
		t.Error("new graph should be empty")
	}
	if g.SpatialGrid != nil {
		t.Error("spatial index should be off without grid_cell_size")
	}
}

func TestNewGraph_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.MaxDepth = -3

	if _, err := NewGraph(config, nil); err == nil {
		t.Error("NewGraph() with a negative depth should fail")
	}
}

func TestGraph_NewNodeUsesConfig(t *testing.T) {
	config := DefaultConfig()
	config.MaxChildren = 1
	g := newTestGraph(t, config)

	parent := g.NewNode("parent")
	if err := g.Attach(parent, g.NewNode("first")); err != nil {
		t.Fatal(err)
	}
	if err := g.Attach(parent, g.NewNode("second")); !errors.Is(err, ErrCapacity) {
		t.Errorf("error = %v, want ErrCapacity", err)
	}

	found, ok := g.Find(parent.ID)
	if !ok || found != parent {
		t.Error("Find() should return the node created by the graph")
	}
}

// =============================================================================
// Hierarchy Tests
// =============================================================================

func TestGraph_AttachDetachRoots(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	parent, child := g.NewNode("parent"), g.NewNode("child")

	if len(g.Roots) != 2 {
		t.Fatalf("Roots = %v, want 2 roots", g.Roots)
	}

	if err := g.Attach(parent, child); err != nil {
		t.Fatal(err)
	}
	if len(g.Roots) != 1 || g.Roots[0] != parent {
		t.Errorf("Roots after attach = %v, want [parent]", g.Roots)
	}

	if err := g.Detach(child); err != nil {
		t.Fatal(err)
	}
	if len(g.Roots) != 2 || g.Roots[1] != child {
		t.Errorf("Roots after detach = %v, want [parent child]", g.Roots)
	}

	if err := g.Detach(child); !errors.Is(err, ErrNotAttached) {
		t.Errorf("error = %v, want ErrNotAttached", err)
	}
	if err := g.Attach(nil, child); !errors.Is(err, ErrNilNode) {
		t.Errorf("error = %v, want ErrNilNode", err)
	}
}

func TestGraph_AddRemoveRoot(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())

	outside := NewNode("outside")
	leaf := NewNode("leaf")
	if err := outside.Attach(leaf); err != nil {
		t.Fatal(err)
	}

	if err := g.AddRoot(outside); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRoot(outside); err != nil {
		t.Errorf("adding a root twice error = %v, want nil", err)
	}
	if len(g.Roots) != 1 || g.Len() != 2 {
		t.Errorf("Roots = %d, Len() = %d, want 1 and 2", len(g.Roots), g.Len())
	}
	if _, ok := g.Find(leaf.ID); !ok {
		t.Error("AddRoot should index the whole subtree")
	}

	if err := g.AddRoot(leaf); !errors.Is(err, ErrAlreadyParented) {
		t.Errorf("error = %v, want ErrAlreadyParented", err)
	}

	g.RemoveRoot(outside)
	if len(g.Roots) != 0 || g.Len() != 0 {
		t.Error("RemoveRoot should drop the subtree")
	}
}

// =============================================================================
// Update Tests
// =============================================================================

func TestGraph_Update(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			config := DefaultConfig()
			config.Workers = workers
			g := newTestGraph(t, config)

			var leaves []*Node
			for i := 0; i < 10; i++ {
				root := g.NewNode(fmt.Sprintf("root-%d", i))
				root.Position = mgl64.Vec3{float64(i), 0, 0}

				leaf := g.NewNode(fmt.Sprintf("leaf-%d", i))
				leaf.Position = mgl64.Vec3{0, 1, 0}
				if err := g.Attach(root, leaf); err != nil {
					t.Fatal(err)
				}
				leaves = append(leaves, leaf)
			}

			g.Update()

			for i, leaf := range leaves {
				if got := leaf.WorldPosition(); got != (mgl64.Vec3{float64(i), 1, 0}) {
					t.Errorf("%s WorldPosition() = %v, want (%d, 1, 0)", leaf.Name, got, i)
				}
			}
		})
	}
}

func TestGraph_UpdateEvents(t *testing.T) {
	g := newTestGraph(t, changeDetectionConfig())
	attach, update := &eventCapture{}, &eventCapture{}
	g.Events.Subscribe(ON_ATTACH, attach.capture)
	g.Events.Subscribe(ON_WORLD_UPDATE, update.capture)

	root, child := g.NewNode("root"), g.NewNode("child")
	if err := g.Attach(root, child); err != nil {
		t.Fatal(err)
	}
	if attach.count() != 0 {
		t.Error("events should wait for Update")
	}

	g.Update()
	if attach.count() != 1 {
		t.Errorf("Expected 1 attach event, got %d", attach.count())
	}
	if update.count() != 1 || update.events[0].(WorldUpdateEvent).Recomputed != 2 {
		t.Errorf("update events = %v, want one pass recomputing 2", update.events)
	}

	update.reset()
	g.Update()
	if update.count() != 1 || update.events[0].(WorldUpdateEvent).Recomputed != 0 {
		t.Errorf("update events = %v, want one clean pass", update.events)
	}
}

func TestGraph_UpdatePrunesHiddenRoots(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	a, b := g.NewNode("a"), g.NewNode("b")

	// attached behind the graph's back
	if err := a.Attach(b); err != nil {
		t.Fatal(err)
	}
	g.Update()

	if len(g.Roots) != 1 || g.Roots[0] != a {
		t.Errorf("Roots = %v, want [a]", g.Roots)
	}
}

func TestGraph_UpdateAdoptsDetachedNodes(t *testing.T) {
	g := newTestGraph(t, changeDetectionConfig())
	root, first, second := g.NewNode("root"), g.NewNode("first"), g.NewNode("second")
	root.Position = mgl64.Vec3{10, 0, 0}
	first.Position = mgl64.Vec3{1, 0, 0}
	second.Position = mgl64.Vec3{2, 0, 0}
	for _, child := range []*Node{first, second} {
		if err := g.Attach(root, child); err != nil {
			t.Fatal(err)
		}
	}
	g.Update()

	if got := second.WorldPosition(); got != (mgl64.Vec3{12, 0, 0}) {
		t.Fatalf("second WorldPosition() = %v, want (12, 0, 0)", got)
	}

	// detached behind the graph's back, in reverse order
	if err := second.Detach(); err != nil {
		t.Fatal(err)
	}
	if err := first.Detach(); err != nil {
		t.Fatal(err)
	}
	g.Update()

	if len(g.Roots) != 3 || g.Roots[0] != root || g.Roots[1] != first || g.Roots[2] != second {
		t.Errorf("Roots = %v, want [root first second]", g.Roots)
	}
	if got := first.WorldPosition(); got != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("first WorldPosition() = %v, want (1, 0, 0)", got)
	}
	if got := second.WorldPosition(); got != (mgl64.Vec3{2, 0, 0}) {
		t.Errorf("second WorldPosition() = %v, want (2, 0, 0)", got)
	}
}

func TestGraph_RemoveDetachedNode(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	root, child := g.NewNode("root"), g.NewNode("child")
	if err := g.Attach(root, child); err != nil {
		t.Fatal(err)
	}

	if err := child.Detach(); err != nil {
		t.Fatal(err)
	}
	g.RemoveRoot(child)
	g.Update()

	if _, ok := g.Find(child.ID); ok {
		t.Error("RemoveRoot should drop a detached node")
	}
	if len(g.Roots) != 1 || g.Roots[0] != root {
		t.Errorf("Roots = %v, want [root]", g.Roots)
	}
}

func TestGraph_QueryAndBounds(t *testing.T) {
	for _, cellSize := range []float64{0, 1} {
		t.Run(fmt.Sprintf("cell size %v", cellSize), func(t *testing.T) {
			config := DefaultConfig()
			config.GridCellSize = cellSize
			g := newTestGraph(t, config)

			root := g.NewNode("root")
			root.Position = mgl64.Vec3{10, 0, 0}
			near := g.NewNode("near")
			near.Position = mgl64.Vec3{0, 0.5, 0}
			far := g.NewNode("far")
			far.Position = mgl64.Vec3{0, 0, -20}
			for _, child := range []*Node{near, far} {
				if err := g.Attach(root, child); err != nil {
					t.Fatal(err)
				}
			}
			g.Update()

			got := g.Query(transform.AABB{Min: mgl64.Vec3{9, -1, -1}, Max: mgl64.Vec3{11, 1, 1}})
			if len(got) != 2 || got[0] != root || got[1] != near {
				t.Errorf("Query() = %v, want [root near]", got)
			}

			everything := g.Query(transform.AABB{Min: mgl64.Vec3{-1e20, -1e20, -1e20}, Max: mgl64.Vec3{1e20, 1e20, 1e20}})
			if len(everything) != 3 {
				t.Errorf("Query() over a huge box = %v, want all 3 nodes", everything)
			}

			bounds := g.Bounds()
			if bounds.Min != (mgl64.Vec3{10, 0, -20}) || bounds.Max != (mgl64.Vec3{10, 0.5, 0}) {
				t.Errorf("Bounds() = %+v", bounds)
			}
		})
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkGraphUpdateWide(b *testing.B) {
	g, _ := NewGraph(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	for i := 0; i < 100; i++ {
		root := g.NewNode("root")
		for j := 0; j < 100; j++ {
			_ = g.Attach(root, g.NewNode("child"))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Update()
	}
}

func BenchmarkUpdateWorldMatrixDeep(b *testing.B) {
	config := changeDetectionConfig()
	top := newNode("leaf", &config)
	for i := 0; i < 1000; i++ {
		parent := newNode("level", &config)
		_ = parent.Attach(top)
		top = parent
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		top.Position[0] = float64(i)
		top.UpdateWorldMatrix(false)
	}
}
