package splashmc

// This file builds the 256-entry marching cubes triangulation table: for
// every 8-bit corner-sign mask, up to 5 triangles expressed as triples of
// local edge indices (0-11, see localEdges in grid.go).
//
// The construction works by rotation closure: a ~20-entry base table of
// corner configurations (up to rotation) is expanded to all 256 cases by
// applying the 24-element rotation group of the cube and recording any
// not-yet-seen intersection mask. The rotation group is enumerated
// directly as the signed axis permutations of determinant +1 acting on
// the corner offsets, so no generator matrices need to be transcribed by
// hand. The base table is keyed by "binary count" corner order (corner c
// at bit c of the mask, edges implicit as corner pairs); the rest of this
// package uses the classic "around the square" corner/edge order fixed by
// grid.go's localCornerOffsets/localEdges, so the bc-keyed table is
// relabeled through a fixed corner permutation once, at package init,
// rather than hand-transcribed in the new order (which would be easy to
// get subtly wrong for a 256-case table).

// bcCorner is a corner index in binary-count order: bit i of the mask set
// means corner i is "inside". Corner i has local offset
// (i&1, (i>>1)&1, (i>>2)&1).
type bcCorner uint8

type bcRotation [8]bcCorner

func (m bcRotation) applyCorner(c bcCorner) bcCorner { return m[c] }

func (m bcRotation) applyTriangle(t bcTriangle) bcTriangle {
	var res bcTriangle
	for i, c := range t {
		res[i] = m.applyCorner(c)
	}
	return res
}

type bcIntersections uint8

func newBCIntersections(trueCorners ...bcCorner) bcIntersections {
	var res bcIntersections
	for _, c := range trueCorners {
		res |= 1 << c
	}
	return res
}

func (m bcIntersections) inside(c bcCorner) bool { return m&(1<<c) != 0 }

func (m bcRotation) applyIntersections(i bcIntersections) bcIntersections {
	var res bcIntersections
	for c := bcCorner(0); c < 8; c++ {
		if i.inside(c) {
			res |= 1 << m.applyCorner(c)
		}
	}
	return res
}

// bcTriangle is a triangle whose vertices are midpoints of the 3 cube
// edges identified by the 3 corner pairs (t[0],t[1]), (t[2],t[3]),
// (t[4],t[5]).
type bcTriangle [6]bcCorner

// allBCRotations enumerates the cube's 24 rotations as corner
// permutations. Every rotation of the cube is a signed permutation of the
// coordinate axes: rotated axis a reads source axis perm[a], possibly
// mirrored. Of the 6*8 = 48 signed permutations, the 24 with determinant
// +1 are proper rotations (the rest are reflections); each one acts on a
// corner by permuting and flipping the bits of its binary-count offset.
func allBCRotations() []bcRotation {
	axisPerms := [6][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	permParity := [6]int{1, -1, -1, 1, 1, -1}

	result := make([]bcRotation, 0, 24)
	for p, perm := range axisPerms {
		for flips := 0; flips < 8; flips++ {
			det := permParity[p]
			for axis := 0; axis < 3; axis++ {
				if flips&(1<<axis) != 0 {
					det = -det
				}
			}
			if det != 1 {
				continue
			}

			var rot bcRotation
			for c := bcCorner(0); c < 8; c++ {
				var image bcCorner
				for axis := 0; axis < 3; axis++ {
					bit := (c >> perm[axis]) & 1
					if flips&(1<<axis) != 0 {
						bit ^= 1
					}
					image |= bit << axis
				}
				rot[c] = image
			}
			result = append(result, rot)
		}
	}
	return result
}

// baseBCTriangleTable encodes the marching cubes lookup table (up to cube
// rotations), from "A survey of the marching cubes algorithm" (2006).
var baseBCTriangleTable = map[bcIntersections][]bcTriangle{
	newBCIntersections(): {},
	newBCIntersections(0): {
		{0, 1, 0, 2, 0, 4},
	},
	newBCIntersections(0, 1): {
		{0, 4, 1, 5, 0, 2},
		{1, 5, 1, 3, 0, 2},
	},
	newBCIntersections(0, 5): {
		{0, 1, 0, 2, 0, 4},
		{5, 7, 1, 5, 4, 5},
	},
	newBCIntersections(0, 7): {
		{0, 1, 0, 2, 0, 4},
		{6, 7, 3, 7, 5, 7},
	},
	newBCIntersections(1, 2, 3): {
		{0, 1, 1, 5, 0, 2},
		{0, 2, 1, 5, 2, 6},
		{2, 6, 1, 5, 3, 7},
	},
	newBCIntersections(0, 1, 7): {
		{0, 4, 1, 5, 0, 2},
		{1, 5, 1, 3, 0, 2},
		{6, 7, 3, 7, 5, 7},
	},
	newBCIntersections(1, 4, 7): {
		{4, 6, 4, 5, 0, 4},
		{1, 5, 1, 3, 0, 1},
		{6, 7, 3, 7, 5, 7},
	},
	newBCIntersections(0, 1, 2, 3): {
		{0, 4, 1, 5, 3, 7},
		{0, 4, 3, 7, 2, 6},
	},
	newBCIntersections(0, 2, 3, 6): {
		{0, 1, 4, 6, 0, 4},
		{0, 1, 6, 7, 4, 6},
		{0, 1, 1, 3, 6, 7},
		{1, 3, 3, 7, 6, 7},
	},
	newBCIntersections(1, 2, 5, 6): {
		{0, 2, 2, 3, 6, 7},
		{0, 2, 6, 7, 4, 6},
		{0, 1, 4, 5, 5, 7},
		{5, 7, 1, 3, 0, 1},
	},
	newBCIntersections(0, 2, 3, 7): {
		{0, 4, 0, 1, 2, 6},
		{0, 1, 5, 7, 2, 6},
		{2, 6, 5, 7, 6, 7},
		{0, 1, 1, 3, 5, 7},
	},
	newBCIntersections(1, 2, 3, 4): {
		{0, 1, 1, 5, 0, 2},
		{0, 2, 1, 5, 2, 6},
		{2, 6, 1, 5, 3, 7},
		{4, 5, 0, 4, 4, 6},
	},
	newBCIntersections(1, 2, 4, 7): {
		{0, 1, 1, 5, 1, 3},
		{0, 2, 2, 3, 2, 6},
		{4, 5, 0, 4, 4, 6},
		{5, 7, 6, 7, 3, 7},
	},
	newBCIntersections(1, 2, 3, 6): {
		{0, 2, 0, 1, 4, 6},
		{0, 1, 3, 7, 4, 6},
		{0, 1, 1, 5, 3, 7},
		{4, 6, 3, 7, 6, 7},
	},
	newBCIntersections(0, 2, 3, 5, 6): {
		{0, 1, 4, 6, 0, 4},
		{0, 1, 6, 7, 4, 6},
		{0, 1, 1, 3, 6, 7},
		{1, 3, 3, 7, 6, 7},
		{5, 7, 1, 5, 4, 5},
	},
	newBCIntersections(2, 3, 4, 5, 6): {
		{5, 7, 1, 5, 0, 4},
		{0, 4, 6, 7, 5, 7},
		{0, 2, 6, 7, 0, 4},
		{0, 2, 3, 7, 6, 7},
		{0, 2, 1, 3, 3, 7},
	},
	newBCIntersections(0, 4, 5, 6, 7): {
		{1, 5, 0, 1, 0, 2},
		{0, 2, 2, 6, 1, 5},
		{1, 5, 2, 6, 3, 7},
	},
	newBCIntersections(1, 2, 3, 4, 5, 6): {
		{0, 2, 0, 1, 0, 4},
		{3, 7, 6, 7, 5, 7},
	},
	newBCIntersections(1, 2, 3, 4, 6, 7): {
		{0, 2, 4, 5, 0, 4},
		{0, 2, 5, 7, 4, 5},
		{0, 2, 1, 5, 5, 7},
		{0, 1, 1, 5, 0, 2},
	},
	newBCIntersections(2, 3, 4, 5, 6, 7): {
		{1, 5, 0, 4, 0, 2},
		{1, 3, 1, 5, 0, 2},
	},
	newBCIntersections(1, 2, 3, 4, 5, 6, 7): {
		{0, 2, 0, 1, 0, 4},
	},
	newBCIntersections(0, 1, 2, 3, 4, 5, 6, 7): {},
}

func buildBCTable() [256][]bcTriangle {
	rotations := allBCRotations()
	result := map[bcIntersections][]bcTriangle{}

	for baseInts, baseTris := range baseBCTriangleTable {
		for _, rot := range rotations {
			newInts := rot.applyIntersections(baseInts)
			if _, ok := result[newInts]; !ok {
				newTris := make([]bcTriangle, 0, len(baseTris))
				for _, t := range baseTris {
					newTris = append(newTris, rot.applyTriangle(t))
				}
				result[newInts] = newTris
			}
		}
	}

	var arr [256][]bcTriangle
	for key, value := range result {
		arr[key] = value
	}
	return arr
}

// bcToClassicCorner permutes a binary-count corner index to the classic
// "around the square" corner index used by grid.go's localCornerOffsets.
// It is its own inverse: it only swaps (2,3) and (6,7), the two corner
// pairs where the two conventions disagree.
var bcToClassicCorner = [8]int{0, 1, 3, 2, 4, 5, 7, 6}

func permuteBCMask(mask bcIntersections) uint8 {
	var out uint8
	for c := 0; c < 8; c++ {
		if mask.inside(bcCorner(c)) {
			out |= 1 << uint(bcToClassicCorner[c])
		}
	}
	return out
}

// classicEdgePairIndex maps a pair of classic corner indices to the local
// edge index connecting them, built from grid.go's localEdges table.
var classicEdgePairIndex = func() map[[2]int]int {
	m := make(map[[2]int]int, 12)
	for idx, le := range localEdges {
		baseOff := localCornerOffsets[le.baseCorner]
		highOff := baseOff
		highOff[le.axis]++
		highCorner := localCornerIndexByOffset[highOff]
		key := sortedPair(le.baseCorner, highCorner)
		m[key] = idx
	}
	return m
}()

func sortedPair(a, b int) [2]int {
	if a < b {
		return [2]int{a, b}
	}
	return [2]int{b, a}
}

// mcTriangulationTable is the final 256-entry table, indexed by classic
// corner-sign mask (bit c set means classic corner c is above threshold),
// each entry up to 5 triangles of local edge indices 0-11.
var mcTriangulationTable = func() [256][][3]uint8 {
	bcTable := buildBCTable()
	var out [256][][3]uint8
	for bcMask := 0; bcMask < 256; bcMask++ {
		classicMask := permuteBCMask(bcIntersections(bcMask))
		tris := bcTable[bcMask]
		converted := make([][3]uint8, len(tris))
		for i, t := range tris {
			for pair := 0; pair < 3; pair++ {
				a := bcToClassicCorner[t[pair*2]]
				b := bcToClassicCorner[t[pair*2+1]]
				edge, ok := classicEdgePairIndex[sortedPair(a, b)]
				if !ok {
					panic("splashmc: triangulation table: no edge between adjacent corners")
				}
				converted[i][pair] = uint8(edge)
			}
		}
		out[classicMask] = converted
	}
	return out
}()

// Triangulate returns, for the given 8 corner above-threshold flags
// (classic corner order), up to 5 triangles as triples of local edge
// indices in {0..11}.
func Triangulate(cornerAbove [8]bool) [][3]uint8 {
	var mask uint8
	for c := 0; c < 8; c++ {
		if cornerAbove[c] {
			mask |= 1 << uint(c)
		}
	}
	return mcTriangulationTable[mask]
}
