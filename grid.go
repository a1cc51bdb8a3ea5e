package splashmc

import (
	"math"

	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"
)

// localCornerOffsets gives the (di, dj, dk) offset of each of the 8 local
// corners of a cell, in the "around the square" convention: corners 0-3
// trace the bottom face (z = 0) counter-clockwise, corners 4-7 trace the
// top face (z = 1) in the same order, corner c+4 directly above corner c.
// This is the layout assumed by the triangulation table in
// mctable.go; every other component takes its corner/edge order from here.
var localCornerOffsets = [8][3]int8{
	{0, 0, 0}, // 0
	{1, 0, 0}, // 1
	{1, 1, 0}, // 2
	{0, 1, 0}, // 3
	{0, 0, 1}, // 4
	{1, 0, 1}, // 5
	{1, 1, 1}, // 6
	{0, 1, 1}, // 7
}

// localEdge describes one of the 12 local edges of a cell: the axis it
// runs along, and the local corner index (into localCornerOffsets) at its
// low end.
type localEdge struct {
	axis       int
	baseCorner int
}

var localEdges = [12]localEdge{
	{0, 0}, // e0:  0-1 (x)
	{1, 1}, // e1:  1-2 (y)
	{0, 3}, // e2:  3-2 (x)
	{1, 0}, // e3:  0-3 (y)
	{0, 4}, // e4:  4-5 (x)
	{1, 5}, // e5:  5-6 (y)
	{0, 7}, // e6:  7-6 (x)
	{1, 4}, // e7:  4-7 (y)
	{2, 0}, // e8:  0-4 (z)
	{2, 1}, // e9:  1-5 (z)
	{2, 2}, // e10: 2-6 (z)
	{2, 3}, // e11: 3-7 (z)
}

// localEdgeCandidateFaces gives, per local edge, the mask of boundary faces
// (among those not orthogonal to the edge's own axis) that the edge could
// possibly lie on. Intersecting with a cell's actual GridBoundaryFaceFlags
// yields the faces the edge really touches.
var localEdgeCandidateFaces = [12]GridBoundaryFaceFlags{
	faceNegY | faceNegZ,
	facePosX | faceNegZ,
	facePosY | faceNegZ,
	faceNegX | faceNegZ,
	faceNegY | facePosZ,
	facePosX | facePosZ,
	facePosY | facePosZ,
	faceNegX | facePosZ,
	faceNegX | faceNegY,
	facePosX | faceNegY,
	facePosX | facePosY,
	faceNegX | facePosY,
}

// localCornerIndexByOffset maps a corner's (di, dj, dk) offset back to its
// local corner index; built once from localCornerOffsets.
var localCornerIndexByOffset = func() map[[3]int8]int {
	m := make(map[[3]int8]int, 8)
	for i, off := range localCornerOffsets {
		m[off] = i
	}
	return m
}()

// GridBoundaryFaceFlags is a 6-bit mask classifying a point or cell by
// which of the six outer faces of the grid it lies on.
type GridBoundaryFaceFlags uint8

const (
	faceNegX GridBoundaryFaceFlags = 1 << iota
	facePosX
	faceNegY
	facePosY
	faceNegZ
	facePosZ
)

// IsEmpty reports whether the point/cell lies in the grid's interior.
func (f GridBoundaryFaceFlags) IsEmpty() bool { return f == 0 }

// Contains reports whether the mask includes the given face.
func (f GridBoundaryFaceFlags) Contains(face GridBoundaryFaceFlags) bool {
	return f&face != 0
}

// PointIndex is a validated (i, j, k) coordinate of a grid corner point.
type PointIndex[I Index] struct {
	i, j, k I
}

// Components returns the raw (i, j, k) coordinates.
func (p PointIndex[I]) Components() (I, I, I) { return p.i, p.j, p.k }

// CellIndex is a validated (i, j, k) coordinate of a grid cell.
type CellIndex[I Index] struct {
	i, j, k I
}

// Components returns the raw (i, j, k) coordinates.
func (c CellIndex[I]) Components() (I, I, I) { return c.i, c.j, c.k }

// EdgeIndex is an ordered pair of points along one axis, origin-low: Low is
// the endpoint closer to the grid origin on that axis.
type EdgeIndex[I Index] struct {
	Low  PointIndex[I]
	Axis int
}

// High returns the far endpoint of the edge.
func (e EdgeIndex[I]) High() PointIndex[I] {
	i, j, k := e.Low.i, e.Low.j, e.Low.k
	switch e.Axis {
	case 0:
		i++
	case 1:
		j++
	case 2:
		k++
	}
	return PointIndex[I]{i, j, k}
}

// UniformGrid is an axis-aligned lattice of points spaced cellSize apart,
// with cellsPerDim cells in each dimension.
type UniformGrid[I Index, R Real] struct {
	origin       Vector3[R]
	cellSize     R
	cellsPerDim  [3]I
	pointsPerDim [3]I
}

// NewUniformGrid builds a grid with the given origin, per-axis cell counts
// and uniform cell edge length. Every cell count must be >= 1, the cell
// size must be positive, and the total point count must fit in I.
func NewUniformGrid[I Index, R Real](origin Vector3[R], cellsPerDim [3]I, cellSize R) (*UniformGrid[I, R], error) {
	for axis, n := range cellsPerDim {
		if n < 1 {
			return nil, errors.Errorf("grid construction: cellsPerDim[%d] = %d, must be >= 1", axis, n)
		}
	}
	totalPoints := int64(1)
	for _, n := range cellsPerDim {
		pts := int64(n) + 1
		if pts <= 0 || totalPoints > math.MaxInt64/pts || int64(I(totalPoints*pts)) != totalPoints*pts {
			return nil, errors.Errorf("grid construction: %v cells per axis give more points than the index type can count", cellsPerDim)
		}
		totalPoints *= pts
	}
	if cellSize <= 0 {
		return nil, errors.Errorf("grid construction: cellSize = %v, must be positive", cellSize)
	}
	return &UniformGrid[I, R]{
		origin:       origin,
		cellSize:     cellSize,
		cellsPerDim:  cellsPerDim,
		pointsPerDim: [3]I{cellsPerDim[0] + 1, cellsPerDim[1] + 1, cellsPerDim[2] + 1},
	}, nil
}

// CellsPerDim returns the number of cells along each axis.
func (g *UniformGrid[I, R]) CellsPerDim() [3]I { return g.cellsPerDim }

// PointsPerDim returns the number of grid points along each axis.
func (g *UniformGrid[I, R]) PointsPerDim() [3]I { return g.pointsPerDim }

// CellSize returns the uniform cell edge length.
func (g *UniformGrid[I, R]) CellSize() R { return g.cellSize }

// Origin returns the grid's origin corner.
func (g *UniformGrid[I, R]) Origin() Vector3[R] { return g.origin }

// TryPointIndex validates (i, j, k) as a point index on this grid.
func (g *UniformGrid[I, R]) TryPointIndex(i, j, k I) (PointIndex[I], bool) {
	if i < 0 || j < 0 || k < 0 {
		return PointIndex[I]{}, false
	}
	if i >= g.pointsPerDim[0] || j >= g.pointsPerDim[1] || k >= g.pointsPerDim[2] {
		return PointIndex[I]{}, false
	}
	return PointIndex[I]{i, j, k}, true
}

// TryCellIndex validates (i, j, k) as a cell index on this grid.
func (g *UniformGrid[I, R]) TryCellIndex(i, j, k I) (CellIndex[I], bool) {
	if i < 0 || j < 0 || k < 0 {
		return CellIndex[I]{}, false
	}
	if i >= g.cellsPerDim[0] || j >= g.cellsPerDim[1] || k >= g.cellsPerDim[2] {
		return CellIndex[I]{}, false
	}
	return CellIndex[I]{i, j, k}, true
}

// FlattenPointIndex computes the flat index of p, lexicographic with k
// outermost.
func (g *UniformGrid[I, R]) FlattenPointIndex(p PointIndex[I]) I {
	return p.i + g.pointsPerDim[0]*(p.j+g.pointsPerDim[1]*p.k)
}

// TryUnflattenPointIndex inverts FlattenPointIndex.
func (g *UniformGrid[I, R]) TryUnflattenPointIndex(flat I) (PointIndex[I], bool) {
	if flat < 0 {
		return PointIndex[I]{}, false
	}
	total := g.pointsPerDim[0] * g.pointsPerDim[1] * g.pointsPerDim[2]
	if flat >= total {
		return PointIndex[I]{}, false
	}
	i := flat % g.pointsPerDim[0]
	rest := flat / g.pointsPerDim[0]
	j := rest % g.pointsPerDim[1]
	k := rest / g.pointsPerDim[1]
	return PointIndex[I]{i, j, k}, true
}

// FlattenCellIndex computes the flat index of c, lexicographic with k
// outermost.
func (g *UniformGrid[I, R]) FlattenCellIndex(c CellIndex[I]) I {
	return c.i + g.cellsPerDim[0]*(c.j+g.cellsPerDim[1]*c.k)
}

// TryUnflattenCellIndex inverts FlattenCellIndex.
func (g *UniformGrid[I, R]) TryUnflattenCellIndex(flat I) (CellIndex[I], bool) {
	if flat < 0 {
		return CellIndex[I]{}, false
	}
	total := g.cellsPerDim[0] * g.cellsPerDim[1] * g.cellsPerDim[2]
	if flat >= total {
		return CellIndex[I]{}, false
	}
	i := flat % g.cellsPerDim[0]
	rest := flat / g.cellsPerDim[0]
	j := rest % g.cellsPerDim[1]
	k := rest / g.cellsPerDim[1]
	return CellIndex[I]{i, j, k}, true
}

// PointCoordinates returns the world-space position of p.
func (g *UniformGrid[I, R]) PointCoordinates(p PointIndex[I]) Vector3[R] {
	return Vector3[R]{
		X: g.origin.X + R(p.i)*g.cellSize,
		Y: g.origin.Y + R(p.j)*g.cellSize,
		Z: g.origin.Z + R(p.k)*g.cellSize,
	}
}

// CellCorner returns the global point index of the cell's local corner
// (0-7, see localCornerOffsets).
func (g *UniformGrid[I, R]) CellCorner(c CellIndex[I], corner int) PointIndex[I] {
	off := localCornerOffsets[corner]
	return PointIndex[I]{c.i + I(off[0]), c.j + I(off[1]), c.k + I(off[2])}
}

// CellEdge returns the global edge index of the cell's local edge (0-11).
func (g *UniformGrid[I, R]) CellEdge(c CellIndex[I], edge int) EdgeIndex[I] {
	le := localEdges[edge]
	base := g.CellCorner(c, le.baseCorner)
	return EdgeIndex[I]{Low: base, Axis: le.axis}
}

// LocalEdgeIndexOf finds which of cell c's 12 local edges corresponds to
// the global edge e. It panics if e is not an edge of c -- callers must
// only invoke this for edges already known to touch the cell.
func (g *UniformGrid[I, R]) LocalEdgeIndexOf(c CellIndex[I], e EdgeIndex[I]) int {
	off := [3]int8{int8(e.Low.i - c.i), int8(e.Low.j - c.j), int8(e.Low.k - c.k)}
	baseCorner, ok := localCornerIndexByOffset[off]
	if !ok {
		panic("splashmc: edge does not touch cell")
	}
	for idx, le := range localEdges {
		if le.axis == e.Axis && le.baseCorner == baseCorner {
			return idx
		}
	}
	panic("splashmc: edge does not touch cell")
}

// LocalPointIndexOf finds which local corner (0-7) of cell c the global
// point p is, returning false if p is not a corner of c.
func (g *UniformGrid[I, R]) LocalPointIndexOf(c CellIndex[I], p PointIndex[I]) (int, bool) {
	off := [3]int8{int8(p.i - c.i), int8(p.j - c.j), int8(p.k - c.k)}
	idx, ok := localCornerIndexByOffset[off]
	return idx, ok
}

// NeighborEdges enumerates the up-to-6 axis-aligned edges incident to p,
// each correctly ordered origin-low.
func (g *UniformGrid[I, R]) NeighborEdges(p PointIndex[I]) []EdgeIndex[I] {
	result := make([]EdgeIndex[I], 0, 6)
	for axis := 0; axis < 3; axis++ {
		if lo, ok := g.stepPoint(p, axis, -1); ok {
			result = append(result, EdgeIndex[I]{Low: lo, Axis: axis})
		}
		if _, ok := g.stepPoint(p, axis, 1); ok {
			result = append(result, EdgeIndex[I]{Low: p, Axis: axis})
		}
	}
	return result
}

func (g *UniformGrid[I, R]) stepPoint(p PointIndex[I], axis int, delta I) (PointIndex[I], bool) {
	i, j, k := p.i, p.j, p.k
	switch axis {
	case 0:
		i += delta
	case 1:
		j += delta
	case 2:
		k += delta
	}
	return g.TryPointIndex(i, j, k)
}

// CellsAdjacentToEdge enumerates the up-to-4 cells sharing the edge e.
func (g *UniformGrid[I, R]) CellsAdjacentToEdge(e EdgeIndex[I]) []CellIndex[I] {
	otherAxes := otherTwoAxes(e.Axis)
	result := make([]CellIndex[I], 0, 4)
	for _, dOther1 := range [2]I{-1, 0} {
		for _, dOther2 := range [2]I{-1, 0} {
			ijk := [3]I{e.Low.i, e.Low.j, e.Low.k}
			ijk[otherAxes[0]] += dOther1
			ijk[otherAxes[1]] += dOther2
			if c, ok := g.TryCellIndex(ijk[0], ijk[1], ijk[2]); ok {
				result = append(result, c)
			}
		}
	}
	return result
}

func otherTwoAxes(axis int) [2]int {
	switch axis {
	case 0:
		return [2]int{1, 2}
	case 1:
		return [2]int{0, 2}
	default:
		return [2]int{0, 1}
	}
}

// ClassifyPoint reports which outer faces of the grid p lies on.
func (g *UniformGrid[I, R]) ClassifyPoint(p PointIndex[I]) GridBoundaryFaceFlags {
	var f GridBoundaryFaceFlags
	if p.i == 0 {
		f |= faceNegX
	}
	if p.i == g.pointsPerDim[0]-1 {
		f |= facePosX
	}
	if p.j == 0 {
		f |= faceNegY
	}
	if p.j == g.pointsPerDim[1]-1 {
		f |= facePosY
	}
	if p.k == 0 {
		f |= faceNegZ
	}
	if p.k == g.pointsPerDim[2]-1 {
		f |= facePosZ
	}
	return f
}

// ClassifyCell reports which outer faces of the grid c lies on.
func (g *UniformGrid[I, R]) ClassifyCell(c CellIndex[I]) GridBoundaryFaceFlags {
	var f GridBoundaryFaceFlags
	if c.i == 0 {
		f |= faceNegX
	}
	if c.i == g.cellsPerDim[0]-1 {
		f |= facePosX
	}
	if c.j == 0 {
		f |= faceNegY
	}
	if c.j == g.cellsPerDim[1]-1 {
		f |= facePosY
	}
	if c.k == 0 {
		f |= faceNegZ
	}
	if c.k == g.cellsPerDim[2]-1 {
		f |= facePosZ
	}
	return f
}

// ClassifyLocalEdge reports which of cell face flags the cell's local edge
// (0-11) touches.
func ClassifyLocalEdge(cellFaces GridBoundaryFaceFlags, localEdgeIdx int) GridBoundaryFaceFlags {
	return cellFaces & localEdgeCandidateFaces[localEdgeIdx]
}

// ClampInt restricts v to [lo, hi], mirroring mc.go's reach for
// essentials.MinInt/MaxInt over a hand-rolled min/max pair. Exported for the
// octree package's split-point calculation, which must keep a node's
// midpoint strictly inside (lower, upper) on every axis so neither child
// ever comes out zero cells wide.
func ClampInt(v, lo, hi int) int {
	return essentials.MaxInt(lo, essentials.MinInt(v, hi))
}
