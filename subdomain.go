package splashmc

import "github.com/pkg/errors"

// SubdomainGrid pairs a global UniformGrid with a child UniformGrid that
// covers a rectangular sub-range of it, located by offset (a point index on
// the global grid).
type SubdomainGrid[I Index, R Real] struct {
	global *UniformGrid[I, R]
	local  *UniformGrid[I, R]
	offset PointIndex[I]
}

// NewSubdomainGrid builds the child grid covering cellsPerDim cells
// starting at offset within global.
func NewSubdomainGrid[I Index, R Real](global *UniformGrid[I, R], offset PointIndex[I], cellsPerDim [3]I) (*SubdomainGrid[I, R], error) {
	gc := global.CellsPerDim()
	oi, oj, ok := offset.Components()
	if oi+cellsPerDim[0] > gc[0] || oj+cellsPerDim[1] > gc[1] || ok+cellsPerDim[2] > gc[2] {
		return nil, errors.Errorf("subdomain grid: %v cells at offset %v exceeds global grid %v", cellsPerDim, offset, gc)
	}
	local, err := NewUniformGrid[I, R](global.PointCoordinates(offset), cellsPerDim, global.CellSize())
	if err != nil {
		return nil, errors.Wrap(err, "subdomain grid")
	}
	return &SubdomainGrid[I, R]{global: global, local: local, offset: offset}, nil
}

// Global returns the parent grid.
func (s *SubdomainGrid[I, R]) Global() *UniformGrid[I, R] { return s.global }

// Subdomain returns the child grid.
func (s *SubdomainGrid[I, R]) Subdomain() *UniformGrid[I, R] { return s.local }

// Offset returns the child's origin point index on the global grid.
func (s *SubdomainGrid[I, R]) Offset() PointIndex[I] { return s.offset }

// toGlobalPoint re-expresses a local point index in global coordinates.
func (s *SubdomainGrid[I, R]) toGlobalPoint(p PointIndex[I]) (I, I, I) {
	i, j, k := p.Components()
	oi, oj, ok := s.offset.Components()
	return i + oi, j + oj, k + ok
}

// InvMapPoint converts a point index on the child grid into the
// corresponding point index on the global grid.
func (s *SubdomainGrid[I, R]) InvMapPoint(p PointIndex[I]) (PointIndex[I], bool) {
	gi, gj, gk := s.toGlobalPoint(p)
	return s.global.TryPointIndex(gi, gj, gk)
}

// InvMapCell converts a cell index on the child grid into the
// corresponding cell index on the global grid.
func (s *SubdomainGrid[I, R]) InvMapCell(c CellIndex[I]) (CellIndex[I], bool) {
	i, j, k := c.Components()
	oi, oj, ok := s.offset.Components()
	return s.global.TryCellIndex(i+oi, j+oj, k+ok)
}

// MapFlatPointIndexTo unflattens flat in s's local grid, converts through
// global coordinates, and re-flattens in other's local grid. It returns
// false if the resulting position lies outside other's subdomain.
func (s *SubdomainGrid[I, R]) MapFlatPointIndexTo(other *SubdomainGrid[I, R], flat I) (I, bool) {
	p, ok := s.local.TryUnflattenPointIndex(flat)
	if !ok {
		return 0, false
	}
	gi, gj, gk := s.toGlobalPoint(p)
	ooi, ooj, ook := other.offset.Components()
	op, ok := other.local.TryPointIndex(gi-ooi, gj-ooj, gk-ook)
	if !ok {
		return 0, false
	}
	return other.local.FlattenPointIndex(op), true
}

// MapFlatCellIndexTo unflattens flat in s's local grid, converts through
// global coordinates, and re-flattens in other's local grid. It returns
// false if the resulting position lies outside other's subdomain.
func (s *SubdomainGrid[I, R]) MapFlatCellIndexTo(other *SubdomainGrid[I, R], flat I) (I, bool) {
	c, ok := s.local.TryUnflattenCellIndex(flat)
	if !ok {
		return 0, false
	}
	i, j, k := c.Components()
	oi, oj, ok2 := s.offset.Components()
	gi, gj, gk := i+oi, j+oj, k+ok2
	ooi, ooj, ook := other.offset.Components()
	oc, ok3 := other.local.TryCellIndex(gi-ooi, gj-ooj, gk-ook)
	if !ok3 {
		return 0, false
	}
	return other.local.FlattenCellIndex(oc), true
}
