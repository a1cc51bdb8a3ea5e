package splashmc

import "sort"

// DensityMap is a sparse mapping from flat point index to scalar density
// value. Absence of an entry means "strictly below threshold" for every
// consumer in this package; producers must uphold that invariant (see
// MCOptions.StrictConsistency).
type DensityMap[I Index, R Real] struct {
	byIndex map[I]R
}

// NewDensityMap returns an empty density map.
func NewDensityMap[I Index, R Real]() *DensityMap[I, R] {
	return &DensityMap[I, R]{byIndex: make(map[I]R)}
}

// Get looks up the density value at a flat point index.
func (d *DensityMap[I, R]) Get(flatPointIndex I) (R, bool) {
	v, ok := d.byIndex[flatPointIndex]
	return v, ok
}

// Set inserts or overwrites the density value at a flat point index.
func (d *DensityMap[I, R]) Set(flatPointIndex I, value R) {
	d.byIndex[flatPointIndex] = value
}

// Len returns the number of entries.
func (d *DensityMap[I, R]) Len() int {
	return len(d.byIndex)
}

// Iterate calls f once per entry in ascending flat-index order. The map
// itself is an ordinary Go map (point lookup is the hot path, not ordered
// traversal); sorting the keys on demand keeps iteration deterministic
// without paying for an ordered container on every Set.
func (d *DensityMap[I, R]) Iterate(f func(flatPointIndex I, value R)) {
	keys := make([]I, 0, len(d.byIndex))
	for k := range d.byIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		f(k, d.byIndex[k])
	}
}
