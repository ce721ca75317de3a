package scenegraph

import (
	"math"
	"sort"

	"github.com/akmonengine/scenegraph/transform"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey - coordinates of a grid cell in 3D space
type CellKey struct {
	X, Y, Z int
}

// Cell - indices of the nodes whose world position falls in the cell
type Cell struct {
	nodeIndices []int
}

// SpatialGrid - hashed uniform grid over node world positions
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
	nodes    []*Node

	// box enclosing every indexed position
	bounds transform.AABB
}

// cells beyond this coordinate do not convert to int exactly
const maxCellCoord = 1 << 52

// NewSpatialGrid - creates a grid of numCells buckets, rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].nodeIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
		bounds:   transform.EmptyAABB(),
	}
}

// nextPowerOfTwo - rounds up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert - indexes the node under its current cached world position
func (sg *SpatialGrid) Insert(node *Node) {
	index := len(sg.nodes)
	sg.nodes = append(sg.nodes, node)

	position := node.WorldPosition()
	sg.bounds = sg.bounds.Extend(position)

	cellIdx := sg.hashCell(sg.worldToCell(position))
	sg.cells[cellIdx].nodeIndices = append(sg.cells[cellIdx].nodeIndices, index)
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].nodeIndices = sg.cells[i].nodeIndices[:0]
	}
	clear(sg.nodes)
	sg.nodes = sg.nodes[:0]
	sg.bounds = transform.EmptyAABB()
}

// Bounds returns the box enclosing every indexed position, empty when nothing is indexed
func (sg *SpatialGrid) Bounds() transform.AABB {
	return sg.bounds
}

// Len returns the number of indexed nodes
func (sg *SpatialGrid) Len() int {
	return len(sg.nodes)
}

// Query - returns the indexed nodes whose world position lies inside box, in insertion order
func (sg *SpatialGrid) Query(box transform.AABB) []*Node {
	if box.IsEmpty() || len(sg.nodes) == 0 || !box.Overlaps(sg.bounds) {
		return nil
	}

	// A box spanning more cells than there are buckets visits every bucket anyway.
	// The span is measured before any int conversion, which saturates on huge boxes.
	span := 1.0
	for i := 0; i < 3; i++ {
		lo := math.Floor(box.Min[i] / sg.cellSize)
		hi := math.Floor(box.Max[i] / sg.cellSize)
		if math.IsNaN(lo) || math.IsNaN(hi) || math.Abs(lo) > maxCellCoord || math.Abs(hi) > maxCellCoord {
			return sg.scan(box)
		}
		span *= hi - lo + 1
	}
	if span >= float64(len(sg.cells)) {
		return sg.scan(box)
	}

	minCell := sg.worldToCell(box.Min)
	maxCell := sg.worldToCell(box.Max)

	seen := make(map[int]bool)
	var indices []int
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})

				for _, nodeIdx := range sg.cells[cellIdx].nodeIndices {
					if seen[nodeIdx] {
						continue
					}
					seen[nodeIdx] = true

					if box.ContainsPoint(sg.nodes[nodeIdx].WorldPosition()) {
						indices = append(indices, nodeIdx)
					}
				}
			}
		}
	}
	sort.Ints(indices)

	result := make([]*Node, len(indices))
	for i, idx := range indices {
		result[i] = sg.nodes[idx]
	}
	return result
}

func (sg *SpatialGrid) scan(box transform.AABB) []*Node {
	var result []*Node
	for _, node := range sg.nodes {
		if box.ContainsPoint(node.WorldPosition()) {
			result = append(result, node)
		}
	}
	return result
}

// worldToCell - converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - hashes a cell to a bucket index
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
