package splashmc

import "github.com/pkg/errors"

// This file implements the two-pass marching cubes kernel: pass A walks
// the density map and records an interpolated vertex on every edge that
// crosses the threshold, discovering cells lazily; pass B sweeps every
// cell pass A touched and resolves any corner its edges didn't already
// pin down, directly from the density map. The three variants (full,
// skip-boundary, stitching-interior) share this core and differ only in
// which points/edges pass A is allowed to walk and whether pass B treats
// an already-Above corner as final.

// pointSkipFunc reports whether p must be excluded from pass A, both as a
// walk source and as a crossing target.
type pointSkipFunc[I Index] func(p PointIndex[I]) bool

// edgeSkipFunc reports whether the specific edge between p and q (already
// known to individually pass pointSkipFunc) must still be excluded.
type edgeSkipFunc[I Index] func(p, q PointIndex[I]) bool

func noPointSkip[I Index](PointIndex[I]) bool               { return false }
func noEdgeSkip[I Index](PointIndex[I], PointIndex[I]) bool { return false }

func edgeBetween[I Index](p, q PointIndex[I]) EdgeIndex[I] {
	pi, pj, pk := p.Components()
	qi, qj, qk := q.Components()
	switch {
	case pi != qi:
		if pi < qi {
			return EdgeIndex[I]{Low: p, Axis: 0}
		}
		return EdgeIndex[I]{Low: q, Axis: 0}
	case pj != qj:
		if pj < qj {
			return EdgeIndex[I]{Low: p, Axis: 1}
		}
		return EdgeIndex[I]{Low: q, Axis: 1}
	default:
		if pk < qk {
			return EdgeIndex[I]{Low: p, Axis: 2}
		}
		return EdgeIndex[I]{Low: q, Axis: 2}
	}
}

// runPassA walks every below-threshold density map entry and, for each
// neighbor crossing the threshold, records an interpolated vertex on the
// connecting edge against every cell sharing it.
func runPassA[I Index, R Real](
	grid *UniformGrid[I, R],
	density *DensityMap[I, R],
	threshold R,
	vertices *[]Vector3[R],
	input *MarchingCubesInput[I],
	skipPoint pointSkipFunc[I],
	skipEdge edgeSkipFunc[I],
) {
	density.Iterate(func(flat I, value R) {
		if value > threshold {
			return
		}
		p, ok := grid.TryUnflattenPointIndex(flat)
		if !ok || skipPoint(p) {
			return
		}
		for _, e := range grid.NeighborEdges(p) {
			q := e.Low
			if q == p {
				q = e.High()
			}
			if skipPoint(q) || skipEdge(p, q) {
				continue
			}
			qv, ok := density.Get(grid.FlattenPointIndex(q))
			if !ok || qv <= threshold {
				continue
			}
			alpha := (threshold - value) / (qv - value)
			pos := grid.PointCoordinates(p).Lerp(grid.PointCoordinates(q), alpha)
			vi := len(*vertices)
			*vertices = append(*vertices, pos)

			edge := edgeBetween(p, q)
			for _, cell := range grid.CellsAdjacentToEdge(edge) {
				cd := input.GetOrCreate(grid.FlattenCellIndex(cell))
				localEdge := grid.LocalEdgeIndexOf(cell, edge)
				cd.SetVertex(localEdge, vi)
				qCorner, ok := grid.LocalPointIndexOf(cell, q)
				if !ok {
					panic("splashmc: crossing edge's upper endpoint is not a corner of an adjacent cell")
				}
				cd.CornerAboveThreshold[qCorner] = Above
			}
		}
	})
}

// runPassB completes the corner classification of every cell pass A
// touched. When preserveAbove is false every corner is re-derived from the
// density map unconditionally, so a corner already marked Above by pass A
// can still flip to Below -- required by the stitching-interior variant,
// whose merged density values can legitimately disagree with the values
// that produced the original per-patch classification.
func runPassB[I Index, R Real](
	grid *UniformGrid[I, R],
	density *DensityMap[I, R],
	threshold R,
	input *MarchingCubesInput[I],
	preserveAbove bool,
) {
	for flatCell, cd := range input.Cells {
		cell, ok := grid.TryUnflattenCellIndex(flatCell)
		if !ok {
			panic("splashmc: marching cubes input references a cell outside the grid")
		}
		for corner := 0; corner < 8; corner++ {
			if preserveAbove && cd.CornerAboveThreshold[corner] == Above {
				continue
			}
			p := grid.CellCorner(cell, corner)
			v, ok := density.Get(grid.FlattenPointIndex(p))
			if ok && v > threshold {
				cd.CornerAboveThreshold[corner] = Above
			} else {
				cd.CornerAboveThreshold[corner] = Below
			}
		}
	}
}

// InterpolatePointsToCellData runs the full (non-subdivided) variant: no
// point or edge is excluded, and pass B trusts pass A's Above markings.
func InterpolatePointsToCellData[I Index, R Real](
	grid *UniformGrid[I, R],
	density *DensityMap[I, R],
	threshold R,
	vertices *[]Vector3[R],
) *MarchingCubesInput[I] {
	input := NewMarchingCubesInput[I]()
	runPassA(grid, density, threshold, vertices, input, noPointSkip[I], noEdgeSkip[I])
	runPassB(grid, density, threshold, input, true)
	return input
}

// InterpolateSkipBoundary runs the octree-leaf variant over a subdomain's
// local grid: edges leading into the outermost point layer are rejected,
// since those cells belong to the stitching slab and will be re-meshed
// with merged density data once their neighbor leaf is known. While the
// density map is walked, the two-layer-deep boundary density slab for each
// face the subdomain actually has is also collected, so the stitcher does
// not need another pass over the density data.
// The subdomain must be at least 3 cells wide on every axis: anything
// thinner has no interior cells left once the boundary layer is rejected,
// and its two-layer boundary slabs would overlap each other.
func InterpolateSkipBoundary[I Index, R Real](
	sub *SubdomainGrid[I, R],
	density *DensityMap[I, R],
	threshold R,
	vertices *[]Vector3[R],
) (input *MarchingCubesInput[I], boundaryDensity [6]*DensityMap[I, R], err error) {
	local := sub.Subdomain()
	for axis, n := range local.CellsPerDim() {
		if n < 3 {
			return nil, boundaryDensity, errors.Errorf(
				"skip-boundary interpolation: subdomain is %d cells wide on axis %d, needs at least 3", n, axis)
		}
	}
	for i := range boundaryDensity {
		boundaryDensity[i] = NewDensityMap[I, R]()
	}

	density.Iterate(func(flat I, value R) {
		p, ok := local.TryUnflattenPointIndex(flat)
		if !ok {
			return
		}
		faces := local.ClassifyPoint(p)
		if !faces.IsEmpty() {
			collectBoundarySlab(local, p, value, density, faces, boundaryDensity)
		}
	})

	outerLayer := func(p PointIndex[I]) bool { return !local.ClassifyPoint(p).IsEmpty() }

	input = NewMarchingCubesInput[I]()
	runPassA(local, density, threshold, vertices, input, outerLayer, noEdgeSkip[I])
	runPassB(local, density, threshold, input, true)
	return input, boundaryDensity, nil
}

// faceAxisAndSign gives, per face bit (in the faceNegX..facePosZ order),
// the axis it lies on and its outward direction; the inward neighbor is
// one step against that sign.
var faceAxisAndSign = [6]struct {
	axis int
	sign int
}{
	{0, -1}, {0, 1}, {1, -1}, {1, 1}, {2, -1}, {2, 1},
}

func collectBoundarySlab[I Index, R Real](
	local *UniformGrid[I, R],
	p PointIndex[I],
	value R,
	density *DensityMap[I, R],
	faces GridBoundaryFaceFlags,
	out [6]*DensityMap[I, R],
) {
	bits := [6]GridBoundaryFaceFlags{faceNegX, facePosX, faceNegY, facePosY, faceNegZ, facePosZ}
	flatP := local.FlattenPointIndex(p)
	for idx, bit := range bits {
		if faces&bit == 0 {
			continue
		}
		out[idx].Set(flatP, value)
		fa := faceAxisAndSign[idx]
		i, j, k := p.Components()
		switch fa.axis {
		case 0:
			i -= I(fa.sign)
		case 1:
			j -= I(fa.sign)
		default:
			k -= I(fa.sign)
		}
		if inward, ok := local.TryPointIndex(i, j, k); ok {
			if v, ok := density.Get(local.FlattenPointIndex(inward)); ok {
				out[idx].Set(local.FlattenPointIndex(inward), v)
			}
		}
	}
}

// InterpolateStitchingInterior runs the seam variant over a thin subdomain
// (2 cells deep along axis), adding to an already-populated seed input
// (the merged boundary cell data from the two patches being stitched, see
// MergeBoundaryData). Points on faces orthogonal to axis are excluded --
// those lie on the outer boundary of both patches, which neither side's
// skip-boundary pass meshed and which StitchingInterior also rejects --
// and edges lying wholly on either of the two stitching faces are skipped,
// since a vertex already exists there from the original patches. Pass B
// does not trust any inherited Above marking: merged density can disagree
// with the value that produced it originally.
func InterpolateStitchingInterior[I Index, R Real](
	slab *UniformGrid[I, R],
	mergedDensity *DensityMap[I, R],
	threshold R,
	vertices *[]Vector3[R],
	axis Axis,
	seed *MarchingCubesInput[I],
) *MarchingCubesInput[I] {
	orthogonalFaces := axis.faceBits() ^ (faceNegX | facePosX | faceNegY | facePosY | faceNegZ | facePosZ)
	skipOrthogonal := func(p PointIndex[I]) bool {
		return slab.ClassifyPoint(p)&orthogonalFaces != 0
	}
	axisFaces := axis.faceBits()
	skipOnSeam := func(p, q PointIndex[I]) bool {
		edge := edgeBetween(p, q)
		if edge.Axis == int(axis) {
			return false
		}
		pFaces := slab.ClassifyPoint(p) & axisFaces
		qFaces := slab.ClassifyPoint(q) & axisFaces
		return pFaces != 0 && pFaces == qFaces
	}

	if seed == nil {
		seed = NewMarchingCubesInput[I]()
	}
	runPassA(slab, mergedDensity, threshold, vertices, seed, skipOrthogonal, skipOnSeam)
	runPassB(slab, mergedDensity, threshold, seed, false)
	return seed
}

// TriangulateWithCriterion emits triangles for every cell in input whose
// boundary-face classification criterion accepts, resolving each edge's
// vertex through generator and appending to mesh.
func TriangulateWithCriterion[I Index, R Real](
	grid *UniformGrid[I, R],
	input *MarchingCubesInput[I],
	mesh *TriMesh3d[R],
	criterion TriangulationCriterion,
	generator TriangleGenerator[I],
) {
	for flatCell, cd := range input.Cells {
		cell, ok := grid.TryUnflattenCellIndex(flatCell)
		if !ok {
			panic("splashmc: marching cubes input references a cell outside the grid")
		}
		if criterion.Reject(grid.ClassifyCell(cell)) {
			continue
		}
		for _, tri := range Triangulate(cd.CornerSigns()) {
			mesh.AddTriangle([3]int{
				generator.ResolveVertex(flatCell, cell, cd, int(tri[0])),
				generator.ResolveVertex(flatCell, cell, cd, int(tri[1])),
				generator.ResolveVertex(flatCell, cell, cd, int(tri[2])),
			})
		}
	}
}
