package octree

import (
	"testing"

	"github.com/dvoraklabs/splashmc"
)

func TestOrderLeavesByCostDescending(t *testing.T) {
	leaves := []*Node[int, float64]{
		{Data: NodeData[int, float64]{Particles: &ParticleSet{Particles: make([]int, 3)}}},
		{Data: NodeData[int, float64]{Particles: &ParticleSet{Particles: make([]int, 9)}}},
		{Data: NodeData[int, float64]{Particles: &ParticleSet{Particles: make([]int, 1)}}},
	}
	ordered := orderLeavesByCost(leaves)
	if len(ordered) != 3 {
		t.Fatalf("orderLeavesByCost returned %d leaves, want 3", len(ordered))
	}
	for i := 0; i < len(ordered)-1; i++ {
		cur := ordered[i].Data.Particles.NonGhostCount()
		next := ordered[i+1].Data.Particles.NonGhostCount()
		if cur < next {
			t.Fatalf("leaves not in descending cost order: %d before %d", cur, next)
		}
	}
	if got := ordered[0].Data.Particles.NonGhostCount(); got != 9 {
		t.Fatalf("largest leaf first: got count %d, want 9", got)
	}
}

// TestOrderLeavesByCostBreaksTiesWithoutDroppingLeaves builds several
// leaves sharing the same non-ghost count -- splaytree.Tree treats
// Compare==0 as the same key, so without leafTask's UID tiebreaker every
// leaf but the first of a given count would be silently dropped on
// Insert, and the fixed len(leaves)-iteration pop loop would then hand
// back a nil node once the tree ran dry.
func TestOrderLeavesByCostBreaksTiesWithoutDroppingLeaves(t *testing.T) {
	const n = 5
	leaves := make([]*Node[int, float64], n)
	for i := range leaves {
		leaves[i] = &Node[int, float64]{Data: NodeData[int, float64]{Particles: &ParticleSet{Particles: make([]int, 4)}}}
	}
	ordered := orderLeavesByCost(leaves)
	if len(ordered) != n {
		t.Fatalf("orderLeavesByCost returned %d leaves, want %d -- equal-count leaves were dropped", len(ordered), n)
	}
	seen := make(map[*Node[int, float64]]bool, n)
	for _, l := range ordered {
		if l == nil {
			t.Fatal("orderLeavesByCost returned a nil leaf")
		}
		seen[l] = true
	}
	if len(seen) != n {
		t.Fatalf("orderLeavesByCost returned %d distinct leaves, want %d", len(seen), n)
	}
}

func TestCollectLeavesSkipsSplitNodes(t *testing.T) {
	leaf1 := &Node[int, float64]{}
	leaf2 := &Node[int, float64]{}
	root := &Node[int, float64]{}
	root.Children[0] = leaf1
	root.Children[1] = leaf2

	var out []*Node[int, float64]
	collectLeaves(root, &out)
	if len(out) != 2 {
		t.Fatalf("collectLeaves found %d leaves, want 2", len(out))
	}
}

func TestLeafSubdomainMatchesNodeRange(t *testing.T) {
	g := smallGrid(t)
	min, _ := g.TryPointIndex(1, 0, 0)
	max, _ := g.TryPointIndex(4, 2, 2)
	n := &Node[int, float64]{MinCorner: min, MaxCorner: max}

	sub, err := leafSubdomain(g, n)
	if err != nil {
		t.Fatalf("leafSubdomain: %v", err)
	}
	local := sub.Subdomain()
	cells := local.CellsPerDim()
	if cells != [3]int{3, 2, 2} {
		t.Fatalf("leaf subdomain cellsPerDim = %v, want [3 2 2]", cells)
	}
	if sub.Offset() != min {
		t.Fatalf("leaf subdomain offset = %v, want %v", sub.Offset(), min)
	}
}

// globalScalarField returns a LeafDensityFunc that samples f at every
// global point covered by a leaf's local grid, remapping each local point
// through InvMapPoint so the resulting map is keyed in the leaf's own
// local frame, as InterpolateSkipBoundary requires.
func globalScalarField(f func(i, j, k int) float64) LeafDensityFunc[int, float64] {
	return func(sub *splashmc.SubdomainGrid[int, float64], leaf *Node[int, float64]) (*splashmc.DensityMap[int, float64], error) {
		local := sub.Subdomain()
		density := splashmc.NewDensityMap[int, float64]()
		points := local.PointsPerDim()
		for i := 0; i < points[0]; i++ {
			for j := 0; j < points[1]; j++ {
				for k := 0; k < points[2]; k++ {
					p, ok := local.TryPointIndex(i, j, k)
					if !ok {
						continue
					}
					global, ok := sub.InvMapPoint(p)
					if !ok {
						continue
					}
					gi, gj, gk := global.Components()
					density.Set(local.FlattenPointIndex(p), f(gi, gj, gk))
				}
			}
		}
		return density, nil
	}
}

func TestMeshLeavesMeshesEveryLeaf(t *testing.T) {
	g := smallGrid(t)
	tree, err := New[int, float64](g, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	densityFor := globalScalarField(func(i, j, k int) float64 { return float64(i) })

	gen := splashmc.DefaultTriangleGenerator[int]{}
	if err := tree.MeshLeaves(g, densityFor, 1.5, gen); err != nil {
		t.Fatalf("MeshLeaves: %v", err)
	}
	if tree.Root.Data.Patch == nil {
		t.Fatal("single-leaf tree's root should hold a patch after MeshLeaves")
	}
}

// TestMeshLeavesUsesLocallyKeyedDensityAtNonzeroOffset builds a tree with
// two leaves split along X, so the positive leaf has a nonzero offset, and
// checks that each leaf's own density map reads the right global value at
// local index 0 -- a single map shared across leaves in the global frame
// would read the same (wrong) value for both.
func TestMeshLeavesUsesLocallyKeyedDensityAtNonzeroOffset(t *testing.T) {
	g, err := splashmc.NewUniformGrid[int, float64](splashmc.Vector3[float64]{}, [3]int{8, 4, 4}, 1.0)
	if err != nil {
		t.Fatalf("NewUniformGrid: %v", err)
	}
	tree, err := New[int, float64](g, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	min, _ := g.TryPointIndex(0, 0, 0)
	mid, _ := g.TryPointIndex(4, 0, 0)
	negMax, _ := g.TryPointIndex(4, 4, 4)
	max, _ := g.TryPointIndex(8, 4, 4)
	negLeaf := &Node[int, float64]{MinCorner: min, MaxCorner: negMax, Data: NodeData[int, float64]{Particles: &ParticleSet{}}}
	posLeaf := &Node[int, float64]{MinCorner: mid, MaxCorner: max, Data: NodeData[int, float64]{Particles: &ParticleSet{}}}
	tree.Root.Children[0] = negLeaf
	tree.Root.Children[1] = posLeaf

	densityFor := globalScalarField(func(i, j, k int) float64 { return float64(i) })
	gen := splashmc.DefaultTriangleGenerator[int]{}
	if err := tree.MeshLeaves(g, densityFor, 1.5, gen); err != nil {
		t.Fatalf("MeshLeaves: %v", err)
	}
	if negLeaf.Data.Patch == nil || posLeaf.Data.Patch == nil {
		t.Fatal("both leaves should hold a patch after MeshLeaves")
	}

	negSub, err := leafSubdomain(g, negLeaf)
	if err != nil {
		t.Fatalf("leafSubdomain(neg): %v", err)
	}
	posSub, err := leafSubdomain(g, posLeaf)
	if err != nil {
		t.Fatalf("leafSubdomain(pos): %v", err)
	}
	negDensity, err := densityFor(negSub, negLeaf)
	if err != nil {
		t.Fatalf("densityFor(neg): %v", err)
	}
	posDensity, err := densityFor(posSub, posLeaf)
	if err != nil {
		t.Fatalf("densityFor(pos): %v", err)
	}
	localOrigin, _ := negSub.Subdomain().TryPointIndex(0, 0, 0)
	flat := negSub.Subdomain().FlattenPointIndex(localOrigin)
	negV, ok := negDensity.Get(flat)
	if !ok || negV != 0 {
		t.Fatalf("negative leaf's local origin density = %v, want 0 (global x=0)", negV)
	}
	posV, ok := posDensity.Get(flat)
	if !ok || posV != 4 {
		t.Fatalf("positive leaf's local origin density = %v, want 4 (global x=4)", posV)
	}
}
