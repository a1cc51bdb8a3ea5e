package splashmc

// TriMesh3d is an indexed triangle mesh: a flat vertex buffer plus
// triangles stored as triples of vertex indices. A mesh is owned outright
// by whichever SurfacePatch currently holds it; merging two meshes shifts
// one side's indices rather than copying or aliasing vertex storage.
type TriMesh3d[R Real] struct {
	Vertices  []Vector3[R]
	Triangles [][3]int
}

// NewTriMesh3d returns an empty mesh.
func NewTriMesh3d[R Real]() *TriMesh3d[R] {
	return &TriMesh3d[R]{}
}

// AddVertex appends a vertex and returns its index.
func (m *TriMesh3d[R]) AddVertex(v Vector3[R]) int {
	idx := len(m.Vertices)
	m.Vertices = append(m.Vertices, v)
	return idx
}

// AddTriangle appends a triangle of vertex indices.
func (m *TriMesh3d[R]) AddTriangle(t [3]int) {
	m.Triangles = append(m.Triangles, t)
}

// Append concatenates other onto m: other's vertices are appended
// unchanged, and other's triangle indices are shifted by m's vertex count
// before appending, so that every index still resolves to the vertex it
// originally pointed to. Used by patch merging, where "positive" is always
// the mesh being appended.
func (m *TriMesh3d[R]) Append(other *TriMesh3d[R]) (vertexOffset int) {
	vertexOffset = len(m.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, t := range other.Triangles {
		m.Triangles = append(m.Triangles, [3]int{
			t[0] + vertexOffset,
			t[1] + vertexOffset,
			t[2] + vertexOffset,
		})
	}
	return vertexOffset
}
