package splashmc

// SurfacePatch is the mesh produced for one subdomain together with
// everything a neighboring patch needs to stitch seamlessly against it:
// the six-face boundary snapshot, and a stitching level counting how many
// full stitch rounds have already folded this patch into a larger one
// (diagnostics only).
type SurfacePatch[I Index, R Real] struct {
	Mesh           *TriMesh3d[R]
	Subdomain      *SubdomainGrid[I, R]
	BoundaryData   [6]*BoundaryData[I, R]
	StitchingLevel int
}

// NewLeafSurfacePatch builds a patch directly from an octree leaf's local
// density map: runs the skip-boundary MC variant, triangulates every
// non-boundary cell, and assembles the six-face boundary snapshot. The
// subdomain must be at least 3 cells wide on every axis (see
// InterpolateSkipBoundary).
func NewLeafSurfacePatch[I Index, R Real](
	sub *SubdomainGrid[I, R],
	density *DensityMap[I, R],
	threshold R,
	generator TriangleGenerator[I],
) (*SurfacePatch[I, R], error) {
	local := sub.Subdomain()
	mesh := NewTriMesh3d[R]()

	input, boundaryDensity, err := InterpolateSkipBoundary(sub, density, threshold, &mesh.Vertices)
	if err != nil {
		return nil, err
	}
	TriangulateWithCriterion[I, R](local, input, mesh, SkipBoundaryCells{}, generator)

	boundaryCells := CollectBoundaryCellData(local, input)
	var boundary [6]*BoundaryData[I, R]
	for i := range boundary {
		boundary[i] = &BoundaryData[I, R]{Density: boundaryDensity[i], CellData: boundaryCells[i]}
	}

	return &SurfacePatch[I, R]{
		Mesh:         mesh,
		Subdomain:    sub,
		BoundaryData: boundary,
	}, nil
}
