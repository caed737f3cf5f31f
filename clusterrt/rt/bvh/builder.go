// Package bvh builds a bounding volume hierarchy over axis-aligned boxes and
// answers overlap queries against it. The scene uses it to frustum-cull its
// models without testing every box.
package bvh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Node is an inner node when Leaf < 0, otherwise it holds item Leaf.
type Node struct {
	Min   mgl32.Vec3
	Max   mgl32.Vec3
	Left  int32
	Right int32
	Leaf  int32
}

type item struct {
	min      mgl32.Vec3
	max      mgl32.Vec3
	centroid mgl32.Vec3
	index    int
}

// Tree is immutable once built; rebuild it when the boxes change.
type Tree struct {
	Nodes []Node
}

// Build splits at the median centroid of the longest axis until every leaf
// holds one box.
func Build(aabbs [][2]mgl32.Vec3) *Tree {
	t := &Tree{}
	if len(aabbs) == 0 {
		return t
	}
	items := make([]item, len(aabbs))
	for i, b := range aabbs {
		items[i] = item{min: b[0], max: b[1], centroid: b[0].Add(b[1]).Mul(0.5), index: i}
	}
	t.Nodes = make([]Node, 0, 2*len(items)-1)
	t.build(items)
	return t
}

func (t *Tree) build(items []item) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Leaf: -1})

	inf := float32(math.Inf(1))
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, it := range items {
		for k := 0; k < 3; k++ {
			minB[k] = min(minB[k], it.min[k])
			maxB[k] = max(maxB[k], it.max[k])
		}
	}
	t.Nodes[idx].Min = minB
	t.Nodes[idx].Max = maxB

	if len(items) == 1 {
		t.Nodes[idx].Leaf = int32(items[0].index)
		return idx
	}

	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	left := t.build(items[:mid])
	right := t.build(items[mid:])
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	return idx
}

func (t *Tree) Len() int { return len(t.Nodes) }

// Query calls visit for every leaf whose box passes overlaps. Subtrees whose
// bounds fail are skipped, so overlaps must be conservative: a box that fails
// must not contain any box that passes. The number of overlap tests is
// returned.
func (t *Tree) Query(overlaps func(box [2]mgl32.Vec3) bool, visit func(index int)) int {
	if len(t.Nodes) == 0 {
		return 0
	}
	tests := 0
	stack := []int32{0}
	for len(stack) > 0 {
		n := &t.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		tests++
		if !overlaps([2]mgl32.Vec3{n.Min, n.Max}) {
			continue
		}
		if n.Leaf >= 0 {
			visit(int(n.Leaf))
			continue
		}
		stack = append(stack, n.Right, n.Left)
	}
	return tests
}
