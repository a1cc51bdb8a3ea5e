package splashmc

import "fmt"

// TriangleGenerator resolves the vertex index recorded on a cell's local
// edge while emitting triangles. Every edge a triangulation entry names is
// expected to already carry a vertex from pass A/B; a missing one is a
// consistency bug in the MC input, not a recoverable condition.
type TriangleGenerator[I Index] interface {
	ResolveVertex(flatCell I, cell CellIndex[I], cd *CellData, localEdge int) int
}

// DefaultTriangleGenerator panics with a terse message on a missing vertex.
type DefaultTriangleGenerator[I Index] struct{}

func (DefaultTriangleGenerator[I]) ResolveVertex(flatCell I, cell CellIndex[I], cd *CellData, localEdge int) int {
	if !cd.HasIsoSurfaceVertex[localEdge] {
		panic("splashmc: triangulation referenced an edge with no iso-surface vertex")
	}
	return cd.IsoSurfaceVertices[localEdge]
}

// DebugTriangleGenerator panics with the cell index, local edge and corner
// mask attached, for tracking down a missing vertex during development.
type DebugTriangleGenerator[I Index] struct{}

func (DebugTriangleGenerator[I]) ResolveVertex(flatCell I, cell CellIndex[I], cd *CellData, localEdge int) int {
	if !cd.HasIsoSurfaceVertex[localEdge] {
		i, j, k := cell.Components()
		panic(fmt.Sprintf(
			"splashmc: missing iso-surface vertex on local edge %d of cell (%v,%v,%v) [flat=%v], corner signs=%v",
			localEdge, i, j, k, flatCell, cd.CornerAboveThreshold,
		))
	}
	return cd.IsoSurfaceVertices[localEdge]
}
