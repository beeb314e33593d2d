package grid

import (
	"sync"

	"github.com/aquarius2019/spatialgrid/slotmap"
	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ElementID is the opaque handle returned by AddElement. The zero ElementID
// is never live.
type ElementID = slotmap.ID

// Element is what the grid stores per id: the host cell, the bounds, and
// the caller's payload.
type Element[T any] struct {
	Cell   CellIndex
	Bounds Bounds
	Data   T
}

// Cell holds the ids of the elements whose origin rounds into it, and its
// own geometric bounds (center ± half cell on every axis). A cell may be
// empty between a remove and the next ClearEmptyCells.
type Cell struct {
	elements []ElementID
	bounds   vecmath.Box
}

func (c *Cell) Bounds() vecmath.Box {
	return c.bounds
}

func (c *Cell) HasElements() bool {
	return len(c.elements) > 0
}

func (c *Cell) NumElements() int {
	return len(c.elements)
}

// ForEachID visits the member ids in insertion-minus-churn order.
func (c *Cell) ForEachID(fn func(ElementID)) {
	for _, id := range c.elements {
		fn(id)
	}
}

func (c *Cell) insert(id ElementID) {
	c.elements = append(c.elements, id)
}

func (c *Cell) erase(id ElementID) {
	for i, member := range c.elements {
		if member == id {
			last := len(c.elements) - 1
			c.elements[i] = c.elements[last]
			c.elements = c.elements[:last]
			return
		}
	}
}

// Grid is the uniform spatial index. Mutating operations serialize on a
// grid-wide mutex; read accessors and queries take no lock and rely on the
// caller keeping readers and writers in separate phases.
type Grid[S Semantics, T any] struct {
	sem      S
	origin   vecmath.Vec3
	elements *slotmap.Map[Element[T]]
	cells    map[CellIndex]*Cell
	envelope vecmath.Box
	mutex    sync.Mutex
}

// NewGrid creates a grid anchored at origin. The semantics binding is
// validated here: a non-positive cell size or a max element radius of half
// a cell or more is a programmer error and fatal.
func NewGrid[S Semantics, T any](origin vecmath.Vec3) *Grid[S, T] {
	var sem S

	if sem.CellSize() <= 0 {
		logs.Fatal(errors.New("cell size must be greater than zero").
			WithTag("semantics", sem.Name()).
			WithTag("cell_size", sem.CellSize()))
	}
	if sem.MaxElementRadius() >= halfCellSize(sem) {
		logs.Fatal(errors.New("max element radius must be less than half cell size").
			WithTag("semantics", sem.Name()).
			WithTag("cell_size", sem.CellSize()).
			WithTag("max_element_radius", sem.MaxElementRadius()))
	}

	return &Grid[S, T]{
		sem:      sem,
		origin:   origin,
		elements: slotmap.New[Element[T]](64),
		cells:    make(map[CellIndex]*Cell),
	}
}

func (g *Grid[S, T]) CellSize() float64 {
	return g.sem.CellSize()
}

func (g *Grid[S, T]) NumCells() int {
	return len(g.cells)
}

func (g *Grid[S, T]) NumElements() int {
	return g.elements.Len()
}

func (g *Grid[S, T]) Origin() vecmath.Vec3 {
	return g.origin
}

// Envelope returns the AABB covering every cell that has ever held an
// element. It never shrinks, not even when cells are cleared; callers who
// need a tight envelope rebuild the grid.
func (g *Grid[S, T]) Envelope() vecmath.Box {
	return g.envelope
}

// LocationToCoordinates rounds a world location to the nearest lattice
// cell.
func (g *Grid[S, T]) LocationToCoordinates(worldLocation vecmath.Vec3) CellIndex {
	return RoundVecToCell(vecmath.Mul(vecmath.Sub(worldLocation, g.origin), 1/g.sem.CellSize()))
}

func (g *Grid[S, T]) CellCenter(coords CellIndex) vecmath.Vec3 {
	cs := g.sem.CellSize()
	return vecmath.Vec3{
		X: g.origin.X + float64(coords.X)*cs,
		Y: g.origin.Y + float64(coords.Y)*cs,
		Z: g.origin.Z + float64(coords.Z)*cs,
	}
}

func (g *Grid[S, T]) IsCellWithinBounds(coords CellIndex) bool {
	return g.envelope.IsInside(g.CellCenter(coords))
}

// AddElement stores data under the given bounds and returns its handle.
// Bounds whose radius reaches half a cell are a programmer error and fatal:
// the traversal neighbourhood sweep relies on every element overlapping at
// most the 3x3x3 cells around its host.
func (g *Grid[S, T]) AddElement(bounds Bounds, data T) ElementID {
	if bounds.Radius() >= halfCellSize(g.sem) {
		logs.Fatal(errors.New("element radius must be less than half cell size").
			WithTag("semantics", g.sem.Name()).
			WithTag("radius", bounds.Radius()).
			WithTag("cell_size", g.sem.CellSize()))
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	coords := g.LocationToCoordinates(bounds.Origin)

	id := g.elements.Insert(Element[T]{Cell: coords, Bounds: bounds, Data: data})
	g.findOrAddCell(coords).insert(id)

	instrumentAddElement(g.sem.Name())
	return id
}

// RemoveElement is a no-op on a stale or out-of-range id. The element's
// cell is kept even when it becomes empty; reclaim is deferred to
// ClearEmptyCells.
func (g *Grid[S, T]) RemoveElement(id ElementID) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if element, ok := g.elements.Remove(id); ok {
		if cell, ok := g.cells[element.Cell]; ok {
			cell.erase(id)
		}
		instrumentRemoveElement(g.sem.Name())
	}
}

// UpdateElementLocation moves an element's origin, rehoming it when the new
// origin rounds to a different cell. Stale ids are silently ignored.
func (g *Grid[S, T]) UpdateElementLocation(id ElementID, newLocation vecmath.Vec3) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	element := g.elements.Get(id)
	if element == nil {
		return
	}

	element.Bounds.Origin = newLocation

	newCoords := g.LocationToCoordinates(newLocation)
	if newCoords == element.Cell {
		return
	}

	if prevCell, ok := g.cells[element.Cell]; ok {
		prevCell.erase(id)
	}
	g.findOrAddCell(newCoords).insert(id)
	element.Cell = newCoords
}

// ClearEmptyCells removes every cell with no members. The envelope is left
// untouched.
func (g *Grid[S, T]) ClearEmptyCells() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for coords, cell := range g.cells {
		if !cell.HasElements() {
			delete(g.cells, coords)
		}
	}
	instrumentSetCellGauge(g.sem.Name(), len(g.cells))
}

// GetElement is not thread safe with respect to concurrent mutation.
func (g *Grid[S, T]) GetElement(id ElementID) *Element[T] {
	return g.elements.Get(id)
}

// GetCell is not thread safe with respect to concurrent mutation.
func (g *Grid[S, T]) GetCell(coords CellIndex) *Cell {
	return g.cells[coords]
}

// GetCellFunc calls fn with the cell at coords if it exists. Not thread
// safe.
func (g *Grid[S, T]) GetCellFunc(coords CellIndex, fn func(*Cell)) {
	if cell, ok := g.cells[coords]; ok {
		fn(cell)
	}
}

// ForEachCell is not thread safe.
func (g *Grid[S, T]) ForEachCell(fn func(CellIndex, *Cell)) {
	for coords, cell := range g.cells {
		fn(coords, cell)
	}
}

// ForEachElement is not thread safe.
func (g *Grid[S, T]) ForEachElement(fn func(ElementID, *Element[T])) {
	g.elements.ForEach(fn)
}

// ForEachElementInCell resolves each member id of the cell to its element.
// Not thread safe.
func (g *Grid[S, T]) ForEachElementInCell(cell *Cell, fn func(ElementID, *Element[T])) {
	for _, id := range cell.elements {
		g.elements.ApplyAt(id, fn)
	}
}

func (g *Grid[S, T]) findOrAddCell(coords CellIndex) *Cell {
	cell, ok := g.cells[coords]
	if !ok {
		bounds := vecmath.BoxFromCenterExtent(g.CellCenter(coords), cellExtent(g.sem))
		cell = &Cell{bounds: bounds}
		g.cells[coords] = cell
		g.envelope = g.envelope.Union(bounds)
		instrumentSetCellGauge(g.sem.Name(), len(g.cells))
	}
	return cell
}
