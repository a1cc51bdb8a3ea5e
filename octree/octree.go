// Package octree implements the spatial decomposition of a particle set
// over a background UniformGrid: recursive octant splitting with a
// ghost-particle margin around each child, followed by bottom-up stitching
// of the per-leaf surface patches built from the root package's marching
// cubes kernel.
package octree

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dvoraklabs/splashmc"
)

// Direction is which half of a split axis a child octant falls on.
type Direction int

const (
	Negative Direction = iota
	Positive
)

// OctantDirections identifies one of the 8 octants of a split node by its
// direction along each axis.
type OctantDirections struct {
	X, Y, Z Direction
}

// index returns the 0-7 slot used by Node.Children, x fastest, matching
// the background grid's own flat-index convention.
func (o OctantDirections) index() int {
	idx := 0
	if o.X == Positive {
		idx |= 1
	}
	if o.Y == Positive {
		idx |= 2
	}
	if o.Z == Positive {
		idx |= 4
	}
	return idx
}

func (o OctantDirections) direction(axis splashmc.Axis) Direction {
	switch axis {
	case splashmc.AxisX:
		return o.X
	case splashmc.AxisY:
		return o.Y
	default:
		return o.Z
	}
}

func (o OctantDirections) withDirection(axis splashmc.Axis, d Direction) OctantDirections {
	switch axis {
	case splashmc.AxisX:
		o.X = d
	case splashmc.AxisY:
		o.Y = d
	default:
		o.Z = d
	}
	return o
}

// allOctants enumerates all 8 OctantDirections in index order.
func allOctants() [8]OctantDirections {
	var out [8]OctantDirections
	for i := 0; i < 8; i++ {
		out[i] = OctantDirections{
			X: Direction(i & 1),
			Y: Direction((i >> 1) & 1),
			Z: Direction((i >> 2) & 1),
		}
	}
	return out
}

// ParticleSet is the data carried by a leaf node before it is meshed: the
// indices (into the caller's particle position slice) of every particle
// assigned to this node, including ghosts pulled in from a neighboring
// octant by the subdivision margin.
type ParticleSet struct {
	Particles          []int
	GhostParticleCount int
}

// NonGhostCount returns how many of Particles are this node's own
// (non-ghost) particles.
func (p ParticleSet) NonGhostCount() int { return len(p.Particles) - p.GhostParticleCount }

// NodeData is the union of what an octree node can hold: nothing yet (a
// node freshly split has empty data until its children are built), a
// pending particle set (a leaf not yet meshed), or a finished surface
// patch (a leaf that has been meshed, or an interior node whose children
// have all been stitched back into one patch).
type NodeData[I splashmc.Index, R splashmc.Real] struct {
	Particles *ParticleSet
	Patch     *splashmc.SurfacePatch[I, R]
}

// Node is one node of the octree: a rectangular range of the background
// grid (by point index), its data, and up to 8 children once split.
type Node[I splashmc.Index, R splashmc.Real] struct {
	Children  [8]*Node[I, R]
	MinCorner splashmc.PointIndex[I]
	MaxCorner splashmc.PointIndex[I]
	Data      NodeData[I, R]
}

// IsLeaf reports whether n has not yet been split.
func (n *Node[I, R]) IsLeaf() bool {
	for _, c := range n.Children {
		if c != nil {
			return false
		}
	}
	return true
}

// Octree holds the root node of the spatial decomposition.
type Octree[I splashmc.Index, R splashmc.Real] struct {
	Root *Node[I, R]
}

// New builds an octree with a single leaf node owning all nParticles
// particles (indices 0..nParticles-1), spanning the whole grid.
func New[I splashmc.Index, R splashmc.Real](grid *splashmc.UniformGrid[I, R], nParticles int) (*Octree[I, R], error) {
	pointsPerDim := grid.PointsPerDim()
	min, ok := grid.TryPointIndex(0, 0, 0)
	if !ok {
		return nil, errors.New("octree: grid has no points")
	}
	max, ok := grid.TryPointIndex(pointsPerDim[0]-1, pointsPerDim[1]-1, pointsPerDim[2]-1)
	if !ok {
		return nil, errors.New("octree: grid has no points")
	}
	particles := make([]int, nParticles)
	for i := range particles {
		particles[i] = i
	}
	return &Octree[I, R]{Root: &Node[I, R]{
		MinCorner: min,
		MaxCorner: max,
		Data:      NodeData[I, R]{Particles: &ParticleSet{Particles: particles}},
	}}, nil
}

// DefaultMaxParticleCount picks a leaf particle-count limit as a function
// of hardware parallelism: roughly one leaf's worth of particles per
// available worker.
func DefaultMaxParticleCount(numParticles int) int {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	perWorker := numParticles / workers
	if perWorker < 1 {
		perWorker = 1
	}
	return perWorker
}

const (
	defaultMinTaskSize    = 8192
	defaultTasksPerWorker = 8
)

// ParallelPolicy controls how much work a single node must carry before
// the parallel subdivision path fans its per-particle classification out
// over chunked goroutines. The zero value picks defaults.
type ParallelPolicy struct {
	// MinTaskSize is the smallest particle count for which chunked
	// classification pays for its goroutine overhead; nodes below it are
	// split sequentially even on the parallel path.
	MinTaskSize int
	// TasksPerWorker sets how many chunks each worker receives, keeping
	// chunks small enough that uneven octants still balance.
	TasksPerWorker int
}

func (p ParallelPolicy) minTaskSize() int {
	if p.MinTaskSize > 0 {
		return p.MinTaskSize
	}
	return defaultMinTaskSize
}

func (p ParallelPolicy) chunkSize(numParticles int) int {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	tasks := p.TasksPerWorker
	if tasks <= 0 {
		tasks = defaultTasksPerWorker
	}
	c := numParticles / (workers * tasks)
	if c < 1 {
		c = 1
	}
	return c
}

// SplitCriterion decides whether a leaf node should be split further.
type SplitCriterion[I splashmc.Index, R splashmc.Real] interface {
	ShouldSplit(n *Node[I, R]) bool
}

// maxParticleAndExtent combines the particle-count and minimum-extent
// criteria with logical AND.
type maxParticleAndExtent[I splashmc.Index, R splashmc.Real] struct {
	maxParticles int
}

func (c maxParticleAndExtent[I, R]) ShouldSplit(n *Node[I, R]) bool {
	if n.Data.Particles == nil {
		return false
	}
	if n.Data.Particles.NonGhostCount() <= c.maxParticles {
		return false
	}
	minI, minJ, minK := n.MinCorner.Components()
	maxI, maxJ, maxK := n.MaxCorner.Components()
	return maxI-minI >= 2 && maxJ-minJ >= 2 && maxK-minK >= 2
}

// NewMaxParticleCriterion returns the default combined split criterion:
// split while there are more than maxParticles non-ghost particles and the
// node is still at least 2 cells wide along every axis.
func NewMaxParticleCriterion[I splashmc.Index, R splashmc.Real](maxParticles int) SplitCriterion[I, R] {
	return maxParticleAndExtent[I, R]{maxParticles: maxParticles}
}

// NewSubdivided builds an octree spanning the whole grid over all of
// positions and immediately subdivides it according to criterion, with the
// given ghost margin. With enableMultiThreading, subdivision runs the
// level-parallel path under policy; otherwise it runs sequentially and
// policy is ignored.
func NewSubdivided[I splashmc.Index, R splashmc.Real](
	grid *splashmc.UniformGrid[I, R],
	positions []splashmc.Vector3[R],
	criterion SplitCriterion[I, R],
	margin R,
	enableMultiThreading bool,
	policy ParallelPolicy,
) (*Octree[I, R], error) {
	t, err := New[I, R](grid, len(positions))
	if err != nil {
		return nil, err
	}
	if enableMultiThreading {
		err = t.SubdivideWithMarginParallel(grid, positions, criterion, margin, policy)
	} else {
		err = t.SubdivideWithMargin(grid, positions, criterion, margin)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SubdivideWithMargin recursively splits the tree breadth-first according
// to criterion, giving each split a margin of ghost particles around its
// children's boundary.
func (t *Octree[I, R]) SubdivideWithMargin(grid *splashmc.UniformGrid[I, R], positions []splashmc.Vector3[R], criterion SplitCriterion[I, R], margin R) error {
	queue := []*Node[I, R]{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !criterion.ShouldSplit(n) {
			continue
		}
		if err := n.split(grid, positions, margin); err != nil {
			return err
		}
		queue = append(queue, n.Children[:]...)
	}
	return nil
}

// SubdivideWithMarginParallel behaves like SubdivideWithMargin but splits
// every node of a BFS level concurrently, using errgroup so a malformed
// node (one whose split point cannot be resolved on the grid) aborts the
// whole subdivision instead of panicking across a goroutine boundary.
// Within each node, particle classification additionally fans out over
// chunks once the node's particle count clears policy's minimum task
// size.
func (t *Octree[I, R]) SubdivideWithMarginParallel(grid *splashmc.UniformGrid[I, R], positions []splashmc.Vector3[R], criterion SplitCriterion[I, R], margin R, policy ParallelPolicy) error {
	level := []*Node[I, R]{t.Root}
	for len(level) > 0 {
		var toSplit []*Node[I, R]
		for _, n := range level {
			if criterion.ShouldSplit(n) {
				toSplit = append(toSplit, n)
			}
		}
		if len(toSplit) == 0 {
			return nil
		}

		var g errgroup.Group
		for _, n := range toSplit {
			n := n
			g.Go(func() error { return n.splitParallel(grid, positions, margin, policy) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var next []*Node[I, R]
		for _, n := range toSplit {
			next = append(next, n.Children[:]...)
		}
		level = next
	}
	return nil
}

// axisMembership records, per axis, whether a particle falls on the
// negative and/or positive side of the split plane once the margin is
// applied; a particle within |margin| of the plane belongs to both.
type axisMembership struct{ neg, pos bool }

// classifyRelative computes a particle's margin membership on every axis
// and its main (no-margin) octant from its position relative to the split
// point.
func classifyRelative[R splashmc.Real](relComponents [3]R, margin R) ([3]axisMembership, OctantDirections) {
	var main OctantDirections
	var m [3]axisMembership
	for axis := 0; axis < 3; axis++ {
		d := Negative
		if relComponents[axis] >= 0 {
			d = Positive
		}
		main = main.withDirection(splashmc.Axis(axis), d)
		m[axis] = axisMembership{
			neg: relComponents[axis] < margin,
			pos: relComponents[axis] > -margin,
		}
	}
	return m, main
}

// octantContains reports whether a particle with the given per-axis
// membership belongs to octant o.
func octantContains(m [3]axisMembership, o OctantDirections) bool {
	belongs := func(am axisMembership, d Direction) bool {
		if d == Negative {
			return am.neg
		}
		return am.pos
	}
	return belongs(m[0], o.X) && belongs(m[1], o.Y) && belongs(m[2], o.Z)
}

// split performs one octree split of a leaf particle-set node into its 8
// children, classifying every particle into the octants its margin
// distance to the split planes reaches.
func (n *Node[I, R]) split(grid *splashmc.UniformGrid[I, R], positions []splashmc.Vector3[R], margin R) error {
	ps := n.Data.Particles
	if ps == nil {
		return errors.New("octree: split called on a node with no particle set")
	}

	splitPoint, err := splitPointOf(grid, n.MinCorner, n.MaxCorner)
	if err != nil {
		return err
	}
	splitCoords := grid.PointCoordinates(splitPoint)

	membership := make([][3]axisMembership, len(ps.Particles))
	mainOctant := make([]OctantDirections, len(ps.Particles))
	for idx, particleIdx := range ps.Particles {
		rel := positions[particleIdx].Sub(splitCoords)
		membership[idx], mainOctant[idx] = classifyRelative([3]R{rel.X, rel.Y, rel.Z}, margin)
	}

	var children [8]*Node[I, R]
	for _, octant := range allOctants() {
		minCorner, err := combinePointIndex(grid, octant, n.MinCorner, splitPoint)
		if err != nil {
			return err
		}
		maxCorner, err := combinePointIndex(grid, octant, splitPoint, n.MaxCorner)
		if err != nil {
			return err
		}

		var childParticles []int
		ghostCount := 0
		for idx, particleIdx := range ps.Particles {
			if octantContains(membership[idx], octant) {
				childParticles = append(childParticles, particleIdx)
				if mainOctant[idx] != octant {
					ghostCount++
				}
			}
		}

		children[octant.index()] = &Node[I, R]{
			MinCorner: minCorner,
			MaxCorner: maxCorner,
			Data: NodeData[I, R]{Particles: &ParticleSet{
				Particles:          childParticles,
				GhostParticleCount: ghostCount,
			}},
		}
	}

	n.Children = children
	n.Data = NodeData[I, R]{}
	return nil
}

// splitParallel behaves like split but fans the per-particle
// classification out over chunked goroutines with per-chunk counter
// arrays that are reduced afterwards, and constructs the 8 children
// concurrently, each preallocated from the reduced counters. Nodes below
// the policy's minimum task size fall back to the sequential path.
func (n *Node[I, R]) splitParallel(grid *splashmc.UniformGrid[I, R], positions []splashmc.Vector3[R], margin R, policy ParallelPolicy) error {
	ps := n.Data.Particles
	if ps == nil {
		return errors.New("octree: split called on a node with no particle set")
	}
	total := len(ps.Particles)
	if total < policy.minTaskSize() {
		return n.split(grid, positions, margin)
	}

	splitPoint, err := splitPointOf(grid, n.MinCorner, n.MaxCorner)
	if err != nil {
		return err
	}
	splitCoords := grid.PointCoordinates(splitPoint)

	membership := make([][3]axisMembership, total)

	octants := allOctants()
	chunk := policy.chunkSize(total)
	numChunks := (total + chunk - 1) / chunk
	type counterSet struct{ counts, nonGhost [8]int }
	perChunk := make([]counterSet, numChunks)

	var wg sync.WaitGroup
	for c := 0; c < numChunks; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			start := c * chunk
			end := start + chunk
			if end > total {
				end = total
			}
			local := &perChunk[c]
			for idx := start; idx < end; idx++ {
				rel := positions[ps.Particles[idx]].Sub(splitCoords)
				m, main := classifyRelative([3]R{rel.X, rel.Y, rel.Z}, margin)
				membership[idx] = m
				local.nonGhost[main.index()]++
				for _, octant := range octants {
					if octantContains(m, octant) {
						local.counts[octant.index()]++
					}
				}
			}
		}(c)
	}
	wg.Wait()

	var counts, nonGhost [8]int
	for _, cs := range perChunk {
		for i := 0; i < 8; i++ {
			counts[i] += cs.counts[i]
			nonGhost[i] += cs.nonGhost[i]
		}
	}

	var children [8]*Node[I, R]
	var g errgroup.Group
	for _, octant := range octants {
		octant := octant
		g.Go(func() error {
			minCorner, err := combinePointIndex(grid, octant, n.MinCorner, splitPoint)
			if err != nil {
				return err
			}
			maxCorner, err := combinePointIndex(grid, octant, splitPoint, n.MaxCorner)
			if err != nil {
				return err
			}
			childParticles := make([]int, 0, counts[octant.index()])
			for idx, particleIdx := range ps.Particles {
				if octantContains(membership[idx], octant) {
					childParticles = append(childParticles, particleIdx)
				}
			}
			children[octant.index()] = &Node[I, R]{
				MinCorner: minCorner,
				MaxCorner: maxCorner,
				Data: NodeData[I, R]{Particles: &ParticleSet{
					Particles:          childParticles,
					GhostParticleCount: counts[octant.index()] - nonGhost[octant.index()],
				}},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n.Children = children
	n.Data = NodeData[I, R]{}
	return nil
}

// combinePointIndex takes the component of a on each axis the octant
// points Negative on, and the component of b on each axis it points
// Positive on -- used to build a child's min corner (a=parent min,
// b=split point) and max corner (a=split point, b=parent max).
func combinePointIndex[I splashmc.Index, R splashmc.Real](grid *splashmc.UniformGrid[I, R], o OctantDirections, a, b splashmc.PointIndex[I]) (splashmc.PointIndex[I], error) {
	ai, aj, ak := a.Components()
	bi, bj, bk := b.Components()
	pick := func(d Direction, lo, hi I) I {
		if d == Negative {
			return lo
		}
		return hi
	}
	i := pick(o.X, ai, bi)
	j := pick(o.Y, aj, bj)
	k := pick(o.Z, ak, bk)
	p, ok := grid.TryPointIndex(i, j, k)
	if !ok {
		return splashmc.PointIndex[I]{}, errors.Errorf("octree: combined corner (%v,%v,%v) out of range", i, j, k)
	}
	return p, nil
}

// splitPointOf returns the midpoint between lower and upper on every axis,
// clamped strictly inside (lower, upper) so neither resulting child can
// ever come out zero cells wide even when an axis's extent is as small as
// the 2-cell floor maxParticleAndExtent enforces.
func splitPointOf[I splashmc.Index, R splashmc.Real](grid *splashmc.UniformGrid[I, R], lower, upper splashmc.PointIndex[I]) (splashmc.PointIndex[I], error) {
	li, lj, lk := lower.Components()
	ui, uj, uk := upper.Components()
	mi := splashmc.ClampInt(int(li+ui)/2, int(li)+1, int(ui)-1)
	mj := splashmc.ClampInt(int(lj+uj)/2, int(lj)+1, int(uj)-1)
	mk := splashmc.ClampInt(int(lk+uk)/2, int(lk)+1, int(uk)-1)
	p, ok := grid.TryPointIndex(I(mi), I(mj), I(mk))
	if !ok {
		return splashmc.PointIndex[I]{}, errors.Errorf("octree: split point (%v,%v,%v) out of range", mi, mj, mk)
	}
	return p, nil
}
