package octree

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dvoraklabs/splashmc"
)

// StitchSurfacePatches folds every node's 8 meshed-leaf children back into
// a single SurfacePatch, bottom-up: children are stitched first (if they
// themselves have children), then this node's own 8 (by now all-leaf)
// children are merged pairwise along X, then Y, then Z. A node with no
// children is left untouched; once every child's subtree has been
// stitched, a child still lacking a patch makes this return an error.
func StitchSurfacePatches[I splashmc.Index, R splashmc.Real](node *Node[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	if node.IsLeaf() {
		return nil
	}
	for _, c := range node.Children {
		if err := StitchSurfacePatches(c, threshold, generator); err != nil {
			return err
		}
	}
	return stitchChildren(node, threshold, generator)
}

// StitchSurfacePatchesParallel behaves like StitchSurfacePatches but
// stitches independent subtrees concurrently via errgroup, so a malformed
// subdomain adjacency surfaces as a returned error instead of a panic
// crossing a goroutine boundary.
func StitchSurfacePatchesParallel[I splashmc.Index, R splashmc.Real](node *Node[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	if node.IsLeaf() {
		return nil
	}
	var g errgroup.Group
	for _, c := range node.Children {
		c := c
		g.Go(func() error { return StitchSurfacePatchesParallel(c, threshold, generator) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return stitchChildren(node, threshold, generator)
}

func stitchChildren[I splashmc.Index, R splashmc.Real](node *Node[I, R], threshold R, generator splashmc.TriangleGenerator[I]) error {
	patches := make(map[OctantDirections]*splashmc.SurfacePatch[I, R], 8)
	for _, octant := range allOctants() {
		child := node.Children[octant.index()]
		if child == nil || !child.IsLeaf() || child.Data.Patch == nil {
			return errors.New("octree: stitch_children called before all children were meshed into leaves")
		}
		patches[octant] = child.Data.Patch
	}

	for _, axis := range [3]splashmc.Axis{splashmc.AxisX, splashmc.AxisY, splashmc.AxisZ} {
		if err := stitchAlongAxis(patches, axis, threshold, generator); err != nil {
			return err
		}
	}

	if len(patches) != 1 {
		return errors.Errorf("octree: stitching left %d patches, expected 1", len(patches))
	}
	var result *splashmc.SurfacePatch[I, R]
	for _, p := range patches {
		result = p
	}
	result.StitchingLevel++

	node.Children = [8]*Node[I, R]{}
	node.Data = NodeData[I, R]{Patch: result}
	return nil
}

// stitchAlongAxis merges every octant pair differing only along axis,
// mutating patches in place: each merged pair's two entries are removed
// and replaced by one entry at the octant key with axis set Positive.
func stitchAlongAxis[I splashmc.Index, R splashmc.Real](patches map[OctantDirections]*splashmc.SurfacePatch[I, R], axis splashmc.Axis, threshold R, generator splashmc.TriangleGenerator[I]) error {
	for _, octant := range allOctants() {
		if octant.direction(axis) == Positive {
			continue
		}
		negative, ok := patches[octant]
		if !ok {
			continue
		}
		positiveOctant := octant.withDirection(axis, Positive)
		positive, ok := patches[positiveOctant]
		if !ok {
			return errors.Errorf("octree: missing positive-side child for stitching axis %d", axis)
		}

		stitched, err := splashmc.StitchMeshes(threshold, axis, negative, positive, generator)
		if err != nil {
			return errors.Wrap(err, "octree: stitching children")
		}
		delete(patches, octant)
		delete(patches, positiveOctant)
		patches[positiveOctant] = stitched
	}
	return nil
}
