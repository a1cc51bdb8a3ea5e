package octree

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/unixpickle/splaytree"

	"github.com/dvoraklabs/splashmc"
)

// leafTask orders leaves by non-ghost particle count, largest first, so
// MeshLeavesParallel's worker pool pulls the most expensive leaves before
// the cheap ones instead of whatever order collectLeaves happened to
// produce. UID breaks ties between leaves of equal count: splaytree.Tree
// treats Compare==0 as the same key, so without a tiebreaker every leaf
// but the first of a given count would be silently dropped on Insert.
type leafTask[I splashmc.Index, R splashmc.Real] struct {
	node  *Node[I, R]
	count int
	uid   int
}

func newLeafTask[I splashmc.Index, R splashmc.Real](node *Node[I, R], count int, counter *int) *leafTask[I, R] {
	*counter++
	return &leafTask[I, R]{node: node, count: count, uid: *counter}
}

func (t *leafTask[I, R]) Compare(other *leafTask[I, R]) int {
	switch {
	case t.count < other.count:
		return -1
	case t.count > other.count:
		return 1
	case t.uid < other.uid:
		return -1
	case t.uid > other.uid:
		return 1
	default:
		return 0
	}
}

func orderLeavesByCost[I splashmc.Index, R splashmc.Real](leaves []*Node[I, R]) []*Node[I, R] {
	queue := &splaytree.Tree[*leafTask[I, R]]{}
	var uidCounter int
	for _, leaf := range leaves {
		count := 0
		if leaf.Data.Particles != nil {
			count = leaf.Data.Particles.NonGhostCount()
		}
		queue.Insert(newLeafTask(leaf, count, &uidCounter))
	}
	ordered := make([]*Node[I, R], 0, len(leaves))
	for range leaves {
		next := queue.Max()
		queue.Delete(next)
		ordered = append(ordered, next.node)
	}
	return ordered
}

// leafSubdomain builds the SubdomainGrid covering a leaf node's range of
// the background grid.
func leafSubdomain[I splashmc.Index, R splashmc.Real](grid *splashmc.UniformGrid[I, R], n *Node[I, R]) (*splashmc.SubdomainGrid[I, R], error) {
	minI, minJ, minK := n.MinCorner.Components()
	maxI, maxJ, maxK := n.MaxCorner.Components()
	cellsPerDim := [3]I{maxI - minI, maxJ - minJ, maxK - minK}
	return splashmc.NewSubdomainGrid(grid, n.MinCorner, cellsPerDim)
}

// collectLeaves gathers every current leaf node, depth-first, so siblings
// stay adjacent.
func collectLeaves[I splashmc.Index, R splashmc.Real](n *Node[I, R], out *[]*Node[I, R]) {
	if n.IsLeaf() {
		*out = append(*out, n)
		return
	}
	for _, c := range n.Children {
		if c != nil {
			collectLeaves(c, out)
		}
	}
}

// LeafDensityFunc produces a leaf's own density map, keyed in that leaf's
// local subdomain frame as InterpolateSkipBoundary requires:
// every leaf but the one at the grid's origin has a nonzero offset, so a
// single shared, globally-keyed map would be misread as local by all the
// others.
type LeafDensityFunc[I splashmc.Index, R splashmc.Real] func(sub *splashmc.SubdomainGrid[I, R], leaf *Node[I, R]) (*splashmc.DensityMap[I, R], error)

// MeshLeaves runs the leaf (skip-boundary) marching cubes variant on every
// current leaf of the tree, sequentially, storing the resulting
// SurfacePatch in each leaf's NodeData. densityFor is called once per leaf
// to produce that leaf's own locally-keyed density map.
func (t *Octree[I, R]) MeshLeaves(grid *splashmc.UniformGrid[I, R], densityFor LeafDensityFunc[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	var leaves []*Node[I, R]
	collectLeaves(t.Root, &leaves)
	for _, leaf := range leaves {
		if err := meshOneLeaf(grid, leaf, densityFor, threshold, generator); err != nil {
			return err
		}
	}
	return nil
}

// MeshLeavesParallel behaves like MeshLeaves but fans the leaves out over
// runtime.GOMAXPROCS(0) worker goroutines with a plain sync.WaitGroup --
// leaf meshing is embarrassingly parallel and has no error to propagate
// across goroutines in the common case, so errgroup is reserved for the
// genuinely fallible fan-out (subdivision, stitching).
func (t *Octree[I, R]) MeshLeavesParallel(grid *splashmc.UniformGrid[I, R], densityFor LeafDensityFunc[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	var leaves []*Node[I, R]
	collectLeaves(t.Root, &leaves)
	if len(leaves) == 0 {
		return nil
	}
	leaves = orderLeavesByCost(leaves)

	workers := runtime.GOMAXPROCS(0)
	if workers > len(leaves) {
		workers = len(leaves)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	next := make(chan int, len(leaves))
	for i := range leaves {
		next <- i
	}
	close(next)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range next {
				if err := meshOneLeaf(grid, leaves[idx], densityFor, threshold, generator); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func meshOneLeaf[I splashmc.Index, R splashmc.Real](grid *splashmc.UniformGrid[I, R], leaf *Node[I, R], densityFor LeafDensityFunc[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	if leaf.Data.Particles == nil {
		return errors.New("octree: leaf has no particle set to mesh")
	}
	sub, err := leafSubdomain(grid, leaf)
	if err != nil {
		return errors.Wrap(err, "octree: building leaf subdomain")
	}
	density, err := densityFor(sub, leaf)
	if err != nil {
		return errors.Wrap(err, "octree: producing leaf density map")
	}
	patch, err := splashmc.NewLeafSurfacePatch(sub, density, threshold, generator)
	if err != nil {
		return errors.Wrap(err, "octree: meshing leaf")
	}
	leaf.Data = NodeData[I, R]{Patch: patch}
	return nil
}
