package splashmc

import "github.com/pkg/errors"

// MCOptions configures the top-level triangulation entry points.
// StrictConsistency enables an extra O(cells) re-derivation pass that
// cross-checks every recorded corner sign directly against the density
// map, catching a CellData/density-map disagreement that would otherwise
// only surface as a subtly wrong triangle. It costs a full density lookup
// per corner, so it defaults to off.
type MCOptions struct {
	StrictConsistency bool
	Profiler          Profiler
}

func (o MCOptions) profiler() Profiler {
	if o.Profiler == nil {
		return NoopProfiler{}
	}
	return o.Profiler
}

// TriangulateDensityMap runs the full (non-subdivided) marching cubes
// pipeline over grid/density and returns a freshly built mesh. This is the
// primary entry point for callers not using the octree decomposition.
func TriangulateDensityMap[I Index, R Real](grid *UniformGrid[I, R], density *DensityMap[I, R], threshold R, opts MCOptions) (*TriMesh3d[R], error) {
	mesh := NewTriMesh3d[R]()
	if err := TriangulateDensityMapAppend(grid, density, threshold, mesh, opts); err != nil {
		return nil, err
	}
	return mesh, nil
}

// TriangulateDensityMapAppend runs the full marching cubes pipeline and
// appends the resulting triangles and vertices onto an existing mesh,
// letting a caller accumulate several independently-triangulated regions
// into one buffer without a separate merge pass.
func TriangulateDensityMapAppend[I Index, R Real](grid *UniformGrid[I, R], density *DensityMap[I, R], threshold R, mesh *TriMesh3d[R], opts MCOptions) error {
	end := opts.profiler().Begin("splashmc.TriangulateDensityMap")
	defer end()

	input := InterpolatePointsToCellData(grid, density, threshold, &mesh.Vertices)
	if opts.StrictConsistency {
		if err := checkCellDataConsistency(grid, density, threshold, input); err != nil {
			return err
		}
	}
	TriangulateWithCriterion[I, R](grid, input, mesh, IdentityCriterion{}, DefaultTriangleGenerator[I]{})
	return nil
}

// TriangulateSubdomainAppend runs the skip-boundary marching cubes variant
// over one subdomain and appends the resulting triangles onto mesh: cells
// on the subdomain's outer faces are left unmeshed, since they belong to a
// stitching slab against some neighbor. The boundary data collected during
// the pass is discarded; callers that need it for stitching should build a
// SurfacePatch via NewLeafSurfacePatch instead.
func TriangulateSubdomainAppend[I Index, R Real](sub *SubdomainGrid[I, R], density *DensityMap[I, R], threshold R, mesh *TriMesh3d[R], opts MCOptions) error {
	end := opts.profiler().Begin("splashmc.TriangulateSubdomainAppend")
	defer end()

	input, _, err := InterpolateSkipBoundary(sub, density, threshold, &mesh.Vertices)
	if err != nil {
		return err
	}
	if opts.StrictConsistency {
		if err := checkCellDataConsistency(sub.Subdomain(), density, threshold, input); err != nil {
			return err
		}
	}
	TriangulateWithCriterion[I, R](sub.Subdomain(), input, mesh, SkipBoundaryCells{}, DefaultTriangleGenerator[I]{})
	return nil
}

// checkCellDataConsistency re-derives every discovered cell's 8 corner
// signs directly from the density map and compares them against what
// pass A/B recorded.
func checkCellDataConsistency[I Index, R Real](grid *UniformGrid[I, R], density *DensityMap[I, R], threshold R, input *MarchingCubesInput[I]) error {
	for flat, cd := range input.Cells {
		cell, ok := grid.TryUnflattenCellIndex(flat)
		if !ok {
			return errors.Errorf("consistency check: cell index %v out of range", flat)
		}
		for corner := 0; corner < 8; corner++ {
			p := grid.CellCorner(cell, corner)
			v, ok := density.Get(grid.FlattenPointIndex(p))
			wantAbove := ok && v > threshold
			gotAbove := cd.CornerAboveThreshold[corner] == Above
			if wantAbove != gotAbove {
				return errors.Errorf(
					"consistency check: cell %v corner %d disagrees with density map (recorded above=%v, density says above=%v)",
					cell, corner, gotAbove, wantAbove,
				)
			}
		}
	}
	return nil
}
