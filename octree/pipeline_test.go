package octree

import (
	"testing"

	"github.com/dvoraklabs/splashmc"
)

// TestFullPipelineSubdivideMeshStitchMatchesSingleDomain exercises the
// decomposition pipeline end to end: subdivide an 8x8x8 grid into its 8
// octants, mesh every leaf from its own locally-keyed density, stitch
// bottom-up across all three axes, and compare the result to the same
// field meshed as a single skip-boundary leaf over the whole domain.
func TestFullPipelineSubdivideMeshStitchMatchesSingleDomain(t *testing.T) {
	const threshold = 3.5

	g, err := splashmc.NewUniformGrid[int, float64](splashmc.Vector3[float64]{}, [3]int{8, 8, 8}, 1.0)
	if err != nil {
		t.Fatalf("NewUniformGrid: %v", err)
	}
	densityAt := func(i, j, k int) float64 { return float64(i) }

	wholeOffset, _ := g.TryPointIndex(0, 0, 0)
	wholeSub, err := splashmc.NewSubdomainGrid(g, wholeOffset, [3]int{8, 8, 8})
	if err != nil {
		t.Fatalf("NewSubdomainGrid(whole): %v", err)
	}
	wholeDensity := splashmc.NewDensityMap[int, float64]()
	wholeLocal := wholeSub.Subdomain()
	wholePts := wholeLocal.PointsPerDim()
	for i := 0; i < wholePts[0]; i++ {
		for j := 0; j < wholePts[1]; j++ {
			for k := 0; k < wholePts[2]; k++ {
				p, _ := wholeLocal.TryPointIndex(i, j, k)
				wholeDensity.Set(wholeLocal.FlattenPointIndex(p), densityAt(i, j, k))
			}
		}
	}
	gen := splashmc.DefaultTriangleGenerator[int]{}
	wholePatch, err := splashmc.NewLeafSurfacePatch(wholeSub, wholeDensity, threshold, gen)
	if err != nil {
		t.Fatalf("NewLeafSurfacePatch(whole): %v", err)
	}
	if len(wholePatch.Mesh.Triangles) == 0 {
		t.Fatal("single-leaf reference mesh has no triangles; test setup is wrong")
	}

	// One particle at the center of each of the 8 octants, well clear of
	// the split planes at (4,4,4) relative to the chosen margin, so the
	// root splits exactly once into 8 single-particle leaves.
	positions := []splashmc.Vector3[float64]{
		{X: 2, Y: 2, Z: 2}, {X: 6, Y: 2, Z: 2},
		{X: 2, Y: 6, Z: 2}, {X: 6, Y: 6, Z: 2},
		{X: 2, Y: 2, Z: 6}, {X: 6, Y: 2, Z: 6},
		{X: 2, Y: 6, Z: 6}, {X: 6, Y: 6, Z: 6},
	}
	tree, err := New[int, float64](g, len(positions))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	criterion := NewMaxParticleCriterion[int, float64](1)
	if err := tree.SubdivideWithMargin(g, positions, criterion, 0.5); err != nil {
		t.Fatalf("SubdivideWithMargin: %v", err)
	}
	if tree.Root.IsLeaf() {
		t.Fatal("root should have split into 8 octants")
	}

	densityFor := func(sub *splashmc.SubdomainGrid[int, float64], leaf *Node[int, float64]) (*splashmc.DensityMap[int, float64], error) {
		local := sub.Subdomain()
		density := splashmc.NewDensityMap[int, float64]()
		lp := local.PointsPerDim()
		for i := 0; i < lp[0]; i++ {
			for j := 0; j < lp[1]; j++ {
				for k := 0; k < lp[2]; k++ {
					p, ok := local.TryPointIndex(i, j, k)
					if !ok {
						continue
					}
					global, ok := sub.InvMapPoint(p)
					if !ok {
						continue
					}
					gi, gj, gk := global.Components()
					density.Set(local.FlattenPointIndex(p), densityAt(gi, gj, gk))
				}
			}
		}
		return density, nil
	}

	if err := tree.MeshLeaves(g, densityFor, threshold, gen); err != nil {
		t.Fatalf("MeshLeaves: %v", err)
	}

	if err := StitchSurfacePatches(tree.Root, threshold, gen); err != nil {
		t.Fatalf("StitchSurfacePatches: %v", err)
	}

	if tree.Root.Data.Patch == nil {
		t.Fatal("root should hold a single stitched patch after StitchSurfacePatches")
	}
	if !tree.Root.IsLeaf() {
		t.Fatal("root should have no children left once stitching folds them back into one patch")
	}
	if got := tree.Root.Data.Patch.StitchingLevel; got != 1 {
		t.Fatalf("one full three-axis stitch of fresh leaves should leave level 1, got %d", got)
	}

	got := tree.Root.Data.Patch.Mesh.Triangles
	if len(got) != len(wholePatch.Mesh.Triangles) {
		t.Fatalf("stitched octree mesh has %d triangles, single-leaf reference has %d", len(got), len(wholePatch.Mesh.Triangles))
	}

	seen := make(map[splashmc.Vector3[float64]]int, len(tree.Root.Data.Patch.Mesh.Vertices))
	for _, v := range tree.Root.Data.Patch.Mesh.Vertices {
		seen[v]++
	}
	for v, count := range seen {
		if count > 1 {
			t.Fatalf("stitched octree mesh has %d duplicate vertices at %v", count, v)
		}
	}
}

// TestMeshLeavesParallelAndStitchParallelAgreeWithSequential checks order
// independence over the same pipeline: the parallel subdivide/mesh/stitch
// variants must produce the same triangle count as their sequential
// counterparts.
func TestMeshLeavesParallelAndStitchParallelAgreeWithSequential(t *testing.T) {
	const threshold = 3.5

	g, err := splashmc.NewUniformGrid[int, float64](splashmc.Vector3[float64]{}, [3]int{8, 8, 8}, 1.0)
	if err != nil {
		t.Fatalf("NewUniformGrid: %v", err)
	}
	densityAt := func(i, j, k int) float64 { return float64(i) }
	densityFor := func(sub *splashmc.SubdomainGrid[int, float64], leaf *Node[int, float64]) (*splashmc.DensityMap[int, float64], error) {
		local := sub.Subdomain()
		density := splashmc.NewDensityMap[int, float64]()
		lp := local.PointsPerDim()
		for i := 0; i < lp[0]; i++ {
			for j := 0; j < lp[1]; j++ {
				for k := 0; k < lp[2]; k++ {
					p, ok := local.TryPointIndex(i, j, k)
					if !ok {
						continue
					}
					global, ok := sub.InvMapPoint(p)
					if !ok {
						continue
					}
					gi, gj, gk := global.Components()
					density.Set(local.FlattenPointIndex(p), densityAt(gi, gj, gk))
				}
			}
		}
		return density, nil
	}
	positions := []splashmc.Vector3[float64]{
		{X: 2, Y: 2, Z: 2}, {X: 6, Y: 2, Z: 2},
		{X: 2, Y: 6, Z: 2}, {X: 6, Y: 6, Z: 2},
		{X: 2, Y: 2, Z: 6}, {X: 6, Y: 2, Z: 6},
		{X: 2, Y: 6, Z: 6}, {X: 6, Y: 6, Z: 6},
	}
	criterion := NewMaxParticleCriterion[int, float64](1)
	gen := splashmc.DefaultTriangleGenerator[int]{}

	seqTree, err := New[int, float64](g, len(positions))
	if err != nil {
		t.Fatalf("New(seq): %v", err)
	}
	if err := seqTree.SubdivideWithMargin(g, positions, criterion, 0.5); err != nil {
		t.Fatalf("SubdivideWithMargin: %v", err)
	}
	if err := seqTree.MeshLeaves(g, densityFor, threshold, gen); err != nil {
		t.Fatalf("MeshLeaves: %v", err)
	}
	if err := StitchSurfacePatches(seqTree.Root, threshold, gen); err != nil {
		t.Fatalf("StitchSurfacePatches: %v", err)
	}

	parTree, err := New[int, float64](g, len(positions))
	if err != nil {
		t.Fatalf("New(par): %v", err)
	}
	if err := parTree.SubdivideWithMarginParallel(g, positions, criterion, 0.5, ParallelPolicy{}); err != nil {
		t.Fatalf("SubdivideWithMarginParallel: %v", err)
	}
	if err := parTree.MeshLeavesParallel(g, densityFor, threshold, gen); err != nil {
		t.Fatalf("MeshLeavesParallel: %v", err)
	}
	if err := StitchSurfacePatchesParallel(parTree.Root, threshold, gen); err != nil {
		t.Fatalf("StitchSurfacePatchesParallel: %v", err)
	}

	if len(parTree.Root.Data.Patch.Mesh.Triangles) != len(seqTree.Root.Data.Patch.Mesh.Triangles) {
		t.Fatalf("parallel pipeline produced %d triangles, sequential produced %d",
			len(parTree.Root.Data.Patch.Mesh.Triangles), len(seqTree.Root.Data.Patch.Mesh.Triangles))
	}
}
