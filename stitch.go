package splashmc

import "github.com/pkg/errors"

// axisFaceIndex maps an axis to the (negative-face, positive-face) indices
// used throughout this package's [6]T arrays (faceNegX..facePosZ order).
func axisFaceIndex(axis Axis) (neg, pos int) {
	return 2 * int(axis), 2*int(axis) + 1
}

// buildStitchSubdomain returns the thin, 2-cell-deep slab spanning the
// shared face of negative and positive, and the combined subdomain
// covering both patches end to end along axis.
func buildStitchSubdomain[I Index, R Real](negative, positive *SubdomainGrid[I, R], axis Axis) (slab, combined *SubdomainGrid[I, R], err error) {
	global := negative.Global()
	negCells := negative.Subdomain().CellsPerDim()
	posCells := positive.Subdomain().CellsPerDim()
	for a := 0; a < 3; a++ {
		if a == int(axis) {
			continue
		}
		if negCells[a] != posCells[a] {
			return nil, nil, errors.Errorf("stitch: cross-section mismatch on axis %d: %d vs %d", a, negCells[a], posCells[a])
		}
	}

	negOffI, negOffJ, negOffK := negative.Offset().Components()
	negOff := [3]I{negOffI, negOffJ, negOffK}
	posOffI, posOffJ, posOffK := positive.Offset().Components()
	posOff := [3]I{posOffI, posOffJ, posOffK}
	if negOff[axis]+negCells[axis] != posOff[axis] {
		return nil, nil, errors.Errorf("stitch: patches are not adjacent along axis %d", axis)
	}

	slabOffset := negOff
	slabOffset[axis] = negOff[axis] + negCells[axis] - 1
	slabCells := negCells
	slabCells[axis] = 2
	slabOffsetPoint, ok := global.TryPointIndex(slabOffset[0], slabOffset[1], slabOffset[2])
	if !ok {
		return nil, nil, errors.Errorf("stitch: slab offset %v out of range", slabOffset)
	}
	slab, err = NewSubdomainGrid(global, slabOffsetPoint, slabCells)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stitch: slab subdomain")
	}

	combinedCells := negCells
	combinedCells[axis] = negCells[axis] + posCells[axis]
	negOffsetPoint := negative.Offset()
	combined, err = NewSubdomainGrid(global, negOffsetPoint, combinedCells)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stitch: combined subdomain")
	}
	return slab, combined, nil
}

// unionBoundaryData merges two BoundaryData already expressed in the same
// target index space, where overlapping cell data is an error and
// overlapping density samples are averaged (see MergeBoundaryData) -- used
// to recombine the 4 faces orthogonal to the stitching axis, whose cells
// partition rather than overlap.
func unionBoundaryData[I Index, R Real](a, b *BoundaryData[I, R]) (*BoundaryData[I, R], error) {
	return MergeBoundaryData(a, b, 0)
}

// overlayAuthoritativeCellData folds the slab's freshly re-interpolated
// boundary cell data (already expressed in target's index space) onto an
// orthogonal face's already-merged BoundaryData:
// the slab's corner classification wins outright, since it was derived
// from the merged seam density rather than either original patch's own
// view, and its iso-surface vertices are unioned in -- a disagreement on
// the same edge's vertex is a consistency violation, not a thing to
// silently overwrite.
func overlayAuthoritativeCellData[I Index, R Real](base *BoundaryData[I, R], overlay map[I]*CellData) (*BoundaryData[I, R], error) {
	out := &BoundaryData[I, R]{Density: base.Density, CellData: make(map[I]*CellData, len(base.CellData))}
	for flat, cd := range base.CellData {
		out.CellData[flat] = cd.Clone()
	}
	for flat, slabCD := range overlay {
		existing, ok := out.CellData[flat]
		if !ok {
			out.CellData[flat] = slabCD.Clone()
			continue
		}
		existing.CornerAboveThreshold = slabCD.CornerAboveThreshold
		for e := range slabCD.IsoSurfaceVertices {
			if !slabCD.HasIsoSurfaceVertex[e] {
				continue
			}
			if existing.HasIsoSurfaceVertex[e] && existing.IsoSurfaceVertices[e] != slabCD.IsoSurfaceVertices[e] {
				return nil, errors.Errorf("stitch: slab boundary cell %v disagrees with existing vertex on edge %d", flat, e)
			}
			existing.IsoSurfaceVertices[e] = slabCD.IsoSurfaceVertices[e]
			existing.HasIsoSurfaceVertex[e] = true
		}
	}
	return out, nil
}

// StitchMeshes joins two adjacent patches' meshes along axis into one:
// remap each side's shared-face boundary data into
// the stitching slab, merge it (averaging overlapping density, erroring on
// colliding cell ownership), concatenate the two meshes, re-triangulate the
// slab's interior with the merged density, collect the slab's own boundary
// cell data, and overlay it onto the four faces orthogonal to axis -- the
// slab's re-interpolated corner signs are authoritative there, and its
// iso-surface vertices are unioned into what the two original patches
// already contributed. The result carries the larger of the two inputs'
// StitchingLevel; the caller (the octree package) bumps it once per full
// three-axis stitch of a node's children, not once per pairwise merge.
func StitchMeshes[I Index, R Real](
	threshold R,
	axis Axis,
	negative, positive *SurfacePatch[I, R],
	generator TriangleGenerator[I],
) (*SurfacePatch[I, R], error) {
	slab, combined, err := buildStitchSubdomain(negative.Subdomain, positive.Subdomain, axis)
	if err != nil {
		return nil, err
	}

	negFace, posFace := axisFaceIndex(axis)

	negBoundary, err := ToDomain(negative.Subdomain, slab, negative.BoundaryData[posFace])
	if err != nil {
		return nil, errors.Wrap(err, "stitch: remap negative boundary")
	}
	posBoundary, err := ToDomain(positive.Subdomain, slab, positive.BoundaryData[negFace])
	if err != nil {
		return nil, errors.Wrap(err, "stitch: remap positive boundary")
	}

	vertexOffset := len(negative.Mesh.Vertices)
	mergedSeam, err := MergeBoundaryData(negBoundary, posBoundary, vertexOffset)
	if err != nil {
		return nil, errors.Wrap(err, "stitch: merge seam boundary")
	}

	mesh := negative.Mesh
	mesh.Append(positive.Mesh)

	seedInput := &MarchingCubesInput[I]{Cells: mergedSeam.CellData}
	InterpolateStitchingInterior(slab.Subdomain(), mergedSeam.Density, threshold, &mesh.Vertices, axis, seedInput)
	TriangulateWithCriterion[I, R](slab.Subdomain(), seedInput, mesh, StitchingInterior{Axis: axis}, generator)
	slabBoundaryCells := CollectBoundaryCellData(slab.Subdomain(), seedInput)

	var combinedBoundary [6]*BoundaryData[I, R]
	for face := 0; face < 6; face++ {
		if face == negFace {
			remapped, err := ToDomain(negative.Subdomain, combined, negative.BoundaryData[negFace])
			if err != nil {
				return nil, errors.Wrap(err, "stitch: remap negative outer face")
			}
			combinedBoundary[face] = remapped
			continue
		}
		if face == posFace {
			shifted := shiftCellDataVertices(positive.BoundaryData[posFace], vertexOffset)
			remapped, err := ToDomain(positive.Subdomain, combined, shifted)
			if err != nil {
				return nil, errors.Wrap(err, "stitch: remap positive outer face")
			}
			combinedBoundary[face] = remapped
			continue
		}
		negSide, err := ToDomain(negative.Subdomain, combined, negative.BoundaryData[face])
		if err != nil {
			return nil, errors.Wrap(err, "stitch: remap negative orthogonal face")
		}
		posSide, err := ToDomain(positive.Subdomain, combined, shiftCellDataVertices(positive.BoundaryData[face], vertexOffset))
		if err != nil {
			return nil, errors.Wrap(err, "stitch: remap positive orthogonal face")
		}
		merged, err := unionBoundaryData(negSide, posSide)
		if err != nil {
			return nil, errors.Wrap(err, "stitch: overlay orthogonal face")
		}

		slabFace := NewBoundaryData[I, R]()
		slabFace.CellData = slabBoundaryCells[face]
		remappedSlabFace, err := ToDomain(slab, combined, slabFace)
		if err != nil {
			return nil, errors.Wrap(err, "stitch: remap slab orthogonal face")
		}
		overlaid, err := overlayAuthoritativeCellData(merged, remappedSlabFace.CellData)
		if err != nil {
			return nil, errors.Wrap(err, "stitch: overlay slab orthogonal face")
		}
		combinedBoundary[face] = overlaid
	}

	level := negative.StitchingLevel
	if positive.StitchingLevel > level {
		level = positive.StitchingLevel
	}
	return &SurfacePatch[I, R]{
		Mesh:           mesh,
		Subdomain:      combined,
		BoundaryData:   combinedBoundary,
		StitchingLevel: level,
	}, nil
}

// shiftCellDataVertices returns a copy of data whose cell vertex indices
// are shifted by offset, matching the shift applied to positive's mesh
// when it is appended after negative's.
func shiftCellDataVertices[I Index, R Real](data *BoundaryData[I, R], offset int) *BoundaryData[I, R] {
	out := &BoundaryData[I, R]{Density: data.Density, CellData: make(map[I]*CellData, len(data.CellData))}
	for flat, cd := range data.CellData {
		shifted := cd.Clone()
		for e := range shifted.IsoSurfaceVertices {
			if shifted.HasIsoSurfaceVertex[e] {
				shifted.IsoSurfaceVertices[e] += offset
			}
		}
		out.CellData[flat] = shifted
	}
	return out
}
