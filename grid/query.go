package grid

import (
	"github.com/aquarius2019/spatialgrid/vecmath"
)

// SphereQueryBuilder builds spherical region queries against grids bound to
// semantics S. Queries come in two flavours: cached queries precompute an
// origin-relative classification of the cells the sphere can touch, so
// repeat queries at different origins skip most geometry tests; uncached
// queries recompute the offset cube on each run. Box region queries are not
// supported; the index is sphere-only.
type SphereQueryBuilder[S Semantics, T any] struct {
	radius float64
}

func NewSphereQueryBuilder[S Semantics, T any]() *SphereQueryBuilder[S, T] {
	var sem S
	return &SphereQueryBuilder[S, T]{radius: sem.CellSize()}
}

func (b *SphereQueryBuilder[S, T]) SetRadius(radius float64) *SphereQueryBuilder[S, T] {
	b.radius = radius
	return b
}

// Build returns the uncached query.
func (b *SphereQueryBuilder[S, T]) Build() SphereQuery[S, T] {
	return SphereQuery[S, T]{radius: b.radius}
}

// BuildCached classifies every cell offset the sphere can touch into one of
// three lists:
//
//   - inner: cells entirely inside the sphere wherever the origin falls
//     within its own cell. Members are emitted without any geometry test.
//   - edge: cells that may intersect; members need the per-element test.
//   - outer: the boundary shell of the offset cube; the cell's own AABB is
//     tested against the sphere before members are considered.
func (b *SphereQueryBuilder[S, T]) BuildCached() CachedSphereQuery[S, T] {
	var sem S

	query := CachedSphereQuery[S, T]{radius: b.radius}

	cs := sem.CellSize()
	bounds := roundToInt32(b.radius/cs) + 1
	extent := cellExtent(sem)
	// Shrink the radius by the worst-case distance between a sphere origin
	// and its cell's corners.
	effectiveRadiusSq := vecmath.Square(b.radius - halfDiagonal(sem))

	NewCellRange(bounds).ForEach(func(index CellIndex) {
		center := vecmath.Vec3{X: float64(index.X) * cs, Y: float64(index.Y) * cs, Z: float64(index.Z) * cs}

		// The cell corner farthest from the query origin.
		var farthest vecmath.Vec3
		if center.X > 0 {
			farthest.X = center.X + extent.X
		} else {
			farthest.X = center.X - extent.X
		}
		if center.Y > 0 {
			farthest.Y = center.Y + extent.Y
		} else {
			farthest.Y = center.Y - extent.Y
		}
		if center.Z > 0 {
			farthest.Z = center.Z + extent.Z
		} else {
			farthest.Z = center.Z - extent.Z
		}

		if farthest.SizeSquared() <= effectiveRadiusSq {
			query.innerCells = append(query.innerCells, index)
		} else if abs32(index.X) < bounds && abs32(index.Y) < bounds && abs32(index.Z) < bounds {
			query.edgeCells = append(query.edgeCells, index)
		} else {
			query.outerCells = append(query.outerCells, index)
		}
	})

	return query
}

// SphereQuery is the uncached flavour: only the radius is stored.
type SphereQuery[S Semantics, T any] struct {
	radius float64
}

func (q *SphereQuery[S, T]) Radius() float64 {
	return q.radius
}

// WithOrigin binds the query to an origin for one run.
func (q *SphereQuery[S, T]) WithOrigin(origin vecmath.Vec3) QueryIter[S, T] {
	return QueryIter[S, T]{query: q, origin: origin}
}

// CachedSphereQuery carries the precomputed inner/edge/outer cell offsets.
// It is independent of any particular origin or grid.
type CachedSphereQuery[S Semantics, T any] struct {
	radius     float64
	innerCells []CellIndex
	edgeCells  []CellIndex
	outerCells []CellIndex
}

func (q *CachedSphereQuery[S, T]) Radius() float64 {
	return q.radius
}

// CellCount returns the number of cells the query would visit.
func (q *CachedSphereQuery[S, T]) CellCount() int {
	return len(q.innerCells) + len(q.edgeCells) + len(q.outerCells)
}

// WithOrigin binds the query to an origin for one run.
func (q *CachedSphereQuery[S, T]) WithOrigin(origin vecmath.Vec3) CachedQueryIter[S, T] {
	return CachedQueryIter[S, T]{query: q, origin: origin}
}

// QueryIter is an uncached query bound to an origin.
type QueryIter[S Semantics, T any] struct {
	query  *SphereQuery[S, T]
	origin vecmath.Vec3
}

// Each visits every element that overlaps the sphere around the origin and
// whose host cell's AABB meets that sphere; an element whose surface reaches
// into the sphere from a cell whose AABB does not is not visited. It takes
// no lock; callers must not mutate the grid concurrently.
func (it QueryIter[S, T]) Each(g *Grid[S, T], fn func(ElementID, *Element[T])) {
	if it.query == nil {
		return
	}

	radius := it.query.radius
	if radius <= 0 {
		return
	}
	radiusSq := radius * radius

	scanElement := func(id ElementID, element *Element[T]) {
		if element.Bounds.OverlapsSphere(it.origin, radius) {
			fn(id, element)
		}
	}
	scanCell := func(cell *Cell) {
		if vecmath.BoxIntersectsSphereSq(cell.bounds, it.origin, radiusSq) {
			g.ForEachElementInCell(cell, scanElement)
		}
	}

	cellRange := NewCellRange(roundToInt32(radius/g.sem.CellSize()) + 1)
	if cellRange.Count() > g.NumCells() {
		g.ForEachCell(func(_ CellIndex, cell *Cell) {
			scanCell(cell)
		})
		return
	}

	offset := g.LocationToCoordinates(it.origin)
	cellRange.ForEachOffset(offset, func(coords CellIndex) {
		g.GetCellFunc(coords, scanCell)
	})
}

// CachedQueryIter is a cached query bound to an origin.
type CachedQueryIter[S Semantics, T any] struct {
	query  *CachedSphereQuery[S, T]
	origin vecmath.Vec3
}

// Each visits the elements that overlap the sphere around the origin. Inner
// cells are emitted wholesale, edge cells after the per-element test, outer
// cells only when their AABB meets the sphere. When the grid holds fewer
// cells than the query would visit, every grid cell whose AABB meets the
// sphere is scanned instead. On outer cells and on that fallback, an element
// whose surface reaches into the sphere from a cell whose AABB does not is
// not visited. No lock is taken; callers must not mutate the grid
// concurrently.
func (it CachedQueryIter[S, T]) Each(g *Grid[S, T], fn func(ElementID, *Element[T])) {
	if it.query == nil {
		return
	}

	radius := it.query.radius
	if radius <= 0 {
		return
	}
	radiusSq := radius * radius

	scanElement := func(id ElementID, element *Element[T]) {
		if element.Bounds.OverlapsSphere(it.origin, radius) {
			fn(id, element)
		}
	}

	if it.query.CellCount() > g.NumCells() {
		g.ForEachCell(func(_ CellIndex, cell *Cell) {
			if vecmath.BoxIntersectsSphereSq(cell.bounds, it.origin, radiusSq) {
				g.ForEachElementInCell(cell, scanElement)
			}
		})
		return
	}

	offset := g.LocationToCoordinates(it.origin)

	for _, coords := range it.query.innerCells {
		if cell := g.GetCell(coords.Add(offset)); cell != nil && cell.HasElements() {
			g.ForEachElementInCell(cell, fn)
		}
	}

	for _, coords := range it.query.edgeCells {
		if cell := g.GetCell(coords.Add(offset)); cell != nil {
			g.ForEachElementInCell(cell, scanElement)
		}
	}

	for _, coords := range it.query.outerCells {
		cell := g.GetCell(coords.Add(offset))
		if cell != nil && vecmath.BoxIntersectsSphereSq(cell.bounds, it.origin, radiusSq) {
			g.ForEachElementInCell(cell, scanElement)
		}
	}
}
