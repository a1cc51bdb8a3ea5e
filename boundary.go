package splashmc

import "github.com/pkg/errors"

// BoundaryData is the snapshot of a patch's own surface-facing data on one
// of its six outer faces: the two-layer density slab collected while
// meshing and the (partial) CellData of every cell touching that face,
// keyed by the patch's own local flat cell index.
type BoundaryData[I Index, R Real] struct {
	Density  *DensityMap[I, R]
	CellData map[I]*CellData
}

// NewBoundaryData returns an empty boundary data record.
func NewBoundaryData[I Index, R Real]() *BoundaryData[I, R] {
	return &BoundaryData[I, R]{Density: NewDensityMap[I, R](), CellData: make(map[I]*CellData)}
}

// CollectBoundaryCellData extracts, for each of the 6 faces, the CellData
// of every cell in input whose ClassifyCell touches that face. A cell on
// an edge or corner of the subdomain is recorded under every face it
// touches. Cloned, so later mutation of the patch's interior input cannot
// retroactively change a boundary snapshot already handed to a stitch.
func CollectBoundaryCellData[I Index, R Real](sub *UniformGrid[I, R], input *MarchingCubesInput[I]) [6]map[I]*CellData {
	var out [6]map[I]*CellData
	for i := range out {
		out[i] = make(map[I]*CellData)
	}
	bits := [6]GridBoundaryFaceFlags{faceNegX, facePosX, faceNegY, facePosY, faceNegZ, facePosZ}
	for flat, cd := range input.Cells {
		cell, ok := sub.TryUnflattenCellIndex(flat)
		if !ok {
			continue
		}
		faces := sub.ClassifyCell(cell)
		if faces.IsEmpty() {
			continue
		}
		for idx, bit := range bits {
			if faces&bit != 0 {
				out[idx][flat] = cd.Clone()
			}
		}
	}
	return out
}

// ToDomain remaps a BoundaryData collected against src into target's local
// flat-index space: density values are re-keyed by point index, and cell
// data is re-keyed by cell index, with each cell's 12 edge vertex indices
// left untouched -- they reference positions in the owning patch's mesh,
// which is shifted wholesale (not per-vertex) when patches are merged.
func ToDomain[I Index, R Real](src, target *SubdomainGrid[I, R], data *BoundaryData[I, R]) (*BoundaryData[I, R], error) {
	out := NewBoundaryData[I, R]()
	srcLocal := src.Subdomain()
	data.Density.Iterate(func(flat I, v R) {
		if mapped, ok := src.MapFlatPointIndexTo(target, flat); ok {
			out.Density.Set(mapped, v)
		}
	})
	for flat, cd := range data.CellData {
		mapped, ok := src.MapFlatCellIndexTo(target, flat)
		if !ok {
			cell, _ := srcLocal.TryUnflattenCellIndex(flat)
			return nil, errors.Errorf("boundary remap: cell %v of source subdomain has no image in target subdomain", cell)
		}
		out.CellData[mapped] = cd.Clone()
	}
	return out, nil
}

// MergeBoundaryData combines the negative- and positive-side BoundaryData
// of two patches meeting at a shared face, both already expressed in the
// target subdomain's local index space (via ToDomain). Overlapping density
// samples are averaged. Overlapping cell data is a fatal inconsistency: the
// two patches disagree about a cell they both claim to own. positive's
// iso-surface vertex indices are shifted by vertexOffset (the vertex count
// already contributed by negative's mesh) before merging, so they keep
// pointing at the right vertex once the two meshes are concatenated.
func MergeBoundaryData[I Index, R Real](negative, positive *BoundaryData[I, R], vertexOffset int) (*BoundaryData[I, R], error) {
	out := NewBoundaryData[I, R]()
	negative.Density.Iterate(func(flat I, v R) { out.Density.Set(flat, v) })
	positive.Density.Iterate(func(flat I, v R) {
		if existing, ok := out.Density.Get(flat); ok {
			out.Density.Set(flat, (existing+v)/2)
		} else {
			out.Density.Set(flat, v)
		}
	})

	for flat, cd := range negative.CellData {
		out.CellData[flat] = cd.Clone()
	}
	for flat, cd := range positive.CellData {
		if _, collide := out.CellData[flat]; collide {
			return nil, errors.Errorf("boundary merge: cell %v is claimed by both patches being stitched", flat)
		}
		shifted := cd.Clone()
		for e := range shifted.IsoSurfaceVertices {
			if shifted.HasIsoSurfaceVertex[e] {
				shifted.IsoSurfaceVertices[e] += vertexOffset
			}
		}
		out.CellData[flat] = shifted
	}
	return out, nil
}
