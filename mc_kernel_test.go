package splashmc

import (
	"math"
	"testing"
)

func singleCellGrid(t *testing.T) *UniformGrid[int, float64] {
	t.Helper()
	g, err := NewUniformGrid[int, float64](Vector3[float64]{}, [3]int{1, 1, 1}, 1.0)
	if err != nil {
		t.Fatalf("NewUniformGrid: %v", err)
	}
	return g
}

// TestInterpolateEmptyMap: an empty density map must touch no cells and
// emit no vertices.
func TestInterpolateEmptyMap(t *testing.T) {
	g := singleCellGrid(t)
	density := NewDensityMap[int, float64]()
	var vertices []Vector3[float64]

	input := InterpolatePointsToCellData(g, density, 0.25, &vertices)
	if len(vertices) != 0 {
		t.Fatalf("expected 0 vertices, got %d", len(vertices))
	}
	if len(input.Cells) != 0 {
		t.Fatalf("expected 0 cells touched, got %d", len(input.Cells))
	}
}

// TestInterpolateMixedCornerCell runs the full two-pass kernel over a
// single cell with mixed corner values and checks the corner signs, the
// set of crossing edges, and the emitted triangle count.
func TestInterpolateMixedCornerCell(t *testing.T) {
	g := singleCellGrid(t)
	density := NewDensityMap[int, float64]()
	values := [8]float64{0.0, 0.75, 1.0, 0.5, 0.0, 0.0, 1.0, 0.0}
	cell, _ := g.TryCellIndex(0, 0, 0)
	for corner, v := range values {
		p := g.CellCorner(cell, corner)
		density.Set(g.FlattenPointIndex(p), v)
	}

	var vertices []Vector3[float64]
	threshold := 0.25
	input := InterpolatePointsToCellData(g, density, threshold, &vertices)

	if len(input.Cells) != 1 {
		t.Fatalf("expected exactly 1 touched cell, got %d", len(input.Cells))
	}
	flat := g.FlattenCellIndex(cell)
	cd, ok := input.Cells[flat]
	if !ok {
		t.Fatal("the single cell was not recorded")
	}

	wantAbove := [8]bool{false, true, true, true, false, false, true, false}
	gotAbove := cd.CornerSigns()
	if gotAbove != wantAbove {
		t.Fatalf("corner_above_threshold = %v, want %v", gotAbove, wantAbove)
	}

	wantEdges := map[int]bool{0: true, 3: true, 5: true, 6: true, 9: true, 11: true}
	for e := 0; e < 12; e++ {
		if cd.HasIsoSurfaceVertex[e] != wantEdges[e] {
			t.Errorf("edge %d: HasIsoSurfaceVertex=%v, want %v", e, cd.HasIsoSurfaceVertex[e], wantEdges[e])
		}
	}

	tris := Triangulate(gotAbove)
	mesh := NewTriMesh3d[float64]()
	mesh.Vertices = vertices
	TriangulateWithCriterion[int, float64](g, input, mesh, IdentityCriterion{}, DefaultTriangleGenerator[int]{})
	if len(mesh.Triangles) != len(tris) {
		t.Fatalf("emitted %d triangles, table predicts %d", len(mesh.Triangles), len(tris))
	}
}

// TestAdjacentCellsShareEdgeVertex: when two cells share an edge that
// crosses the threshold, both cells' CellData must reference the same
// vertex index at that shared edge.
func TestAdjacentCellsShareEdgeVertex(t *testing.T) {
	g, err := NewUniformGrid[int, float64](Vector3[float64]{}, [3]int{2, 1, 1}, 1.0)
	if err != nil {
		t.Fatalf("NewUniformGrid: %v", err)
	}
	density := NewDensityMap[int, float64]()
	pts := g.PointsPerDim()
	for i := 0; i < pts[0]; i++ {
		for j := 0; j < pts[1]; j++ {
			for k := 0; k < pts[2]; k++ {
				p, _ := g.TryPointIndex(i, j, k)
				density.Set(g.FlattenPointIndex(p), 0.0)
			}
		}
	}
	// Only the shared-face point (1,1,0) is above threshold, so the y-edge
	// from (1,0,0) to (1,1,0) crosses it and belongs to both cells.
	above, _ := g.TryPointIndex(1, 1, 0)
	density.Set(g.FlattenPointIndex(above), 1.0)

	var vertices []Vector3[float64]
	input := InterpolatePointsToCellData(g, density, 0.5, &vertices)

	if len(input.Cells) != 2 {
		t.Fatalf("expected both cells touched, got %d", len(input.Cells))
	}
	low, _ := g.TryPointIndex(1, 0, 0)
	sharedEdge := EdgeIndex[int]{Low: low, Axis: 1}

	cells := g.CellsAdjacentToEdge(sharedEdge)
	if len(cells) != 2 {
		t.Fatalf("shared edge should touch 2 cells in a 2x1x1 grid, got %d", len(cells))
	}
	var recorded []int
	for _, cell := range cells {
		cd, ok := input.Cells[g.FlattenCellIndex(cell)]
		if !ok {
			t.Fatalf("cell %v was not touched by pass A", cell)
		}
		localEdge := g.LocalEdgeIndexOf(cell, sharedEdge)
		if !cd.HasIsoSurfaceVertex[localEdge] {
			t.Fatalf("cell %v has no vertex on the shared crossing edge", cell)
		}
		recorded = append(recorded, cd.IsoSurfaceVertices[localEdge])
	}
	if recorded[0] != recorded[1] {
		t.Fatalf("the two cells record different vertices %d and %d on the same edge", recorded[0], recorded[1])
	}
}

// TestInterpolateSingleCornerVertexPosition: with a single corner above
// the threshold, the one emitted triangle's vertices must sit on the three
// incident cell edges at the interpolation parameter.
func TestInterpolateSingleCornerVertexPosition(t *testing.T) {
	g := singleCellGrid(t)
	density := NewDensityMap[int, float64]()
	cell, _ := g.TryCellIndex(0, 0, 0)
	const threshold = 0.25
	const vLow, vHigh = 0.0, 1.0
	for corner := 0; corner < 8; corner++ {
		v := vLow
		if corner == 2 {
			v = vHigh
		}
		p := g.CellCorner(cell, corner)
		density.Set(g.FlattenPointIndex(p), v)
	}

	var vertices []Vector3[float64]
	input := InterpolatePointsToCellData(g, density, threshold, &vertices)

	flat := g.FlattenCellIndex(cell)
	cd := input.Cells[flat]
	signs := cd.CornerSigns()
	var wantAbove [8]bool
	wantAbove[2] = true
	if signs != wantAbove {
		t.Fatalf("corner signs = %v, want %v", signs, wantAbove)
	}

	tris := Triangulate(signs)
	if len(tris) != 1 {
		t.Fatalf("expected exactly 1 triangle, got %d", len(tris))
	}

	alpha := (threshold - vLow) / (vHigh - vLow)
	wantOnEdge := func(edge int) {
		if !cd.HasIsoSurfaceVertex[edge] {
			t.Fatalf("edge %d should carry a vertex", edge)
		}
		vi := cd.IsoSurfaceVertices[edge]
		pos := vertices[vi]
		le := localEdges[edge]
		lowOff := localCornerOffsets[le.baseCorner]
		var low, high Vector3[float64]
		low = g.PointCoordinates(g.CellCorner(cell, le.baseCorner))
		highOff := lowOff
		highOff[le.axis]++
		highCorner := localCornerIndexByOffset[highOff]
		high = g.PointCoordinates(g.CellCorner(cell, highCorner))
		// alpha runs from the below-threshold endpoint toward corner 2.
		from, to := low, high
		if le.baseCorner == 2 {
			from, to = high, low
		}
		want := from.Lerp(to, alpha)
		if math.Abs(pos.X-want.X) > 1e-9 || math.Abs(pos.Y-want.Y) > 1e-9 || math.Abs(pos.Z-want.Z) > 1e-9 {
			t.Fatalf("edge %d vertex at %v, want %v", edge, pos, want)
		}
	}
	for _, tri := range tris[0:1] {
		for _, e := range tri {
			wantOnEdge(int(e))
		}
	}
}
