package grid

import (
	"math"

	"github.com/aquarius2019/spatialgrid/vecmath"
)

// LineTrace walks the cells a segment crosses, in order of parametric
// entry, and reports the elements the segment intersects. At each visited
// cell the full 3x3x3 neighbourhood is swept: an element's origin may sit
// in a neighbour cell while its surface still overlaps this one, and the
// insert-time radius check guarantees no overlap extends further.
type LineTrace[S Semantics, T any] struct {
	start  vecmath.Vec3
	end    vecmath.Vec3
	dir    vecmath.Vec3
	invDir vecmath.Vec3
	delta  vecmath.Vec3
	step   CellIndex
}

// NewLineTrace builds a traversal for the segment [start, end].
func NewLineTrace[S Semantics, T any](start, end vecmath.Vec3) LineTrace[S, T] {
	var sem S

	dir := vecmath.Sub(end, start).SafeNormal()
	return newLineTrace[S, T](sem, start, end, dir)
}

// NewLineTraceDir builds a traversal for the segment starting at start and
// running length along direction.
func NewLineTraceDir[S Semantics, T any](start, direction vecmath.Vec3, length float64) LineTrace[S, T] {
	var sem S

	return newLineTrace[S, T](sem, start, vecmath.Add(start, vecmath.Mul(direction, length)), direction)
}

func newLineTrace[S Semantics, T any](sem S, start, end, dir vecmath.Vec3) LineTrace[S, T] {
	cs := sem.CellSize()
	invDir := dir.Reciprocal()

	step := CellIndex{X: -1, Y: -1, Z: -1}
	if dir.X > 0 {
		step.X = 1
	}
	if dir.Y > 0 {
		step.Y = 1
	}
	if dir.Z > 0 {
		step.Z = 1
	}

	return LineTrace[S, T]{
		start:  start,
		end:    end,
		dir:    dir,
		invDir: invDir,
		delta: vecmath.Vec3{
			X: math.Abs(cs * invDir.X),
			Y: math.Abs(cs * invDir.Y),
			Z: math.Abs(cs * invDir.Z),
		},
		step: step,
	}
}

// Multi visits the elements the segment intersects, in no particular
// order, with the element's hit point. Only members of cells whose AABB the
// line crosses are tested, so an element whose surface reaches the segment
// from a cell the line does not cross is not reported. No lock is taken;
// callers must not mutate the grid concurrently.
func (t *LineTrace[S, T]) Multi(g *Grid[S, T], fn func(ElementID, *Element[T], vecmath.Vec3)) {
	if t.dir.IsZero() {
		return
	}

	hitPoint, ok := vecmath.LineBoxHitPoint(g.Envelope(), t.start, t.end, t.dir, t.invDir)
	if !ok {
		return
	}

	checkedCells := make(map[CellIndex]struct{}, 100)
	currentCell := g.LocationToCoordinates(hitPoint)
	endCell := g.LocationToCoordinates(t.end)
	tMax := t.initialTMax(g, currentCell, hitPoint)

	if !hitPoint.Equal(t.start) {
		t.progress(&currentCell, &tMax)
	}

	maxSteps := t.calculateMaxSteps(g, hitPoint)

	for step := 0; step < maxSteps; step++ {
		t.checkAll(g, currentCell, checkedCells, fn)

		if currentCell == endCell || !g.IsCellWithinBounds(currentCell) {
			break
		}

		t.progress(&currentCell, &tMax)
	}
}

// Single returns the hit closest to the segment start. A miss carries
// Location at the segment end once the segment has reached the envelope, and
// InvalidLocation when the direction is zero or the envelope is missed. The
// walk continues past the first blocking hit until the current cell's entry
// distance exceeds the best hit's distance: an element whose origin lies
// further along may still present a nearer surface.
func (t *LineTrace[S, T]) Single(g *Grid[S, T]) QueryResult {
	result := newQueryResult()

	if t.dir.IsZero() {
		return result
	}

	hitPoint, ok := vecmath.LineBoxHitPoint(g.Envelope(), t.start, t.end, t.dir, t.invDir)
	if !ok {
		return result
	}

	result.Location = t.end

	checkedCells := make(map[CellIndex]struct{}, 100)
	currentCell := g.LocationToCoordinates(hitPoint)
	endCell := g.LocationToCoordinates(t.end)
	tMax := t.initialTMax(g, currentCell, hitPoint)

	// Parametric distances below are measured from hitPoint; startOffset
	// rebases them onto the segment start.
	startOffset := vecmath.Sub(hitPoint, t.start).Size()
	entry := 0.0

	if !hitPoint.Equal(t.start) {
		entry = t.progress(&currentCell, &tMax)
	}

	maxSteps := t.calculateMaxSteps(g, hitPoint)

	for steps := 0; steps < maxSteps; steps++ {
		t.checkClosest(g, currentCell, checkedCells, &result)

		if currentCell == endCell || !g.IsCellWithinBounds(currentCell) {
			break
		}
		if result.BlockingHit &&
			vecmath.Square(startOffset+entry) > vecmath.DistSquared(t.start, result.ImpactPoint) {
			break
		}

		entry = t.progress(&currentCell, &tMax)
	}

	return result
}

func (t *LineTrace[S, T]) initialTMax(g *Grid[S, T], currentCell CellIndex, hitPoint vecmath.Vec3) vecmath.Vec3 {
	extent := cellExtent(g.sem)
	cellOrigin := g.CellCenter(currentCell)
	t1 := vecmath.MulVec(vecmath.Sub(vecmath.Sub(cellOrigin, extent), hitPoint), t.invDir)
	t2 := vecmath.MulVec(vecmath.Sub(vecmath.Add(cellOrigin, extent), hitPoint), t.invDir)
	return vecmath.Max(t1, t2)
}

// calculateMaxSteps bounds the walk even under numerical pathologies.
func (t *LineTrace[S, T]) calculateMaxSteps(g *Grid[S, T], hitPoint vecmath.Vec3) int {
	cs := g.sem.CellSize()
	delta := vecmath.Sub(t.end, hitPoint)

	return int(math.Ceil(math.Abs(delta.X)/cs)) +
		int(math.Ceil(math.Abs(delta.Y)/cs)) +
		int(math.Ceil(math.Abs(delta.Z)/cs)) + 1
}

// progress steps into the cell whose boundary is crossed next and returns
// the parametric distance at which it was entered. Ties break x before y
// before z.
func (t *LineTrace[S, T]) progress(currentCell *CellIndex, tMax *vecmath.Vec3) float64 {
	if tMax.X <= tMax.Y && tMax.X <= tMax.Z {
		entry := tMax.X
		currentCell.X += t.step.X
		tMax.X += t.delta.X
		return entry
	} else if tMax.Y <= tMax.Z {
		entry := tMax.Y
		currentCell.Y += t.step.Y
		tMax.Y += t.delta.Y
		return entry
	}

	entry := tMax.Z
	currentCell.Z += t.step.Z
	tMax.Z += t.delta.Z
	return entry
}

func (t *LineTrace[S, T]) checkAll(g *Grid[S, T], offset CellIndex, checkedCells map[CellIndex]struct{}, fn func(ElementID, *Element[T], vecmath.Vec3)) {
	scanElement := func(id ElementID, element *Element[T]) {
		if hit, ok := element.Bounds.LineHitPoint(t.start, t.end, t.dir, t.invDir); ok {
			fn(id, element, hit)
		}
	}
	scanCell := func(cell *Cell) {
		if cell.HasElements() && vecmath.LineIntersectsBox(cell.bounds, t.start, t.invDir) {
			g.ForEachElementInCell(cell, scanElement)
		}
	}

	NewCellRange(1).ForEachOffset(offset, func(coords CellIndex) {
		if _, done := checkedCells[coords]; done {
			return
		}
		checkedCells[coords] = struct{}{}
		g.GetCellFunc(coords, scanCell)
	})
}

func (t *LineTrace[S, T]) checkClosest(g *Grid[S, T], offset CellIndex, checkedCells map[CellIndex]struct{}, closest *QueryResult) {
	scanElement := func(id ElementID, element *Element[T]) {
		hit, ok := element.Bounds.LineHitPoint(t.start, t.end, t.dir, t.invDir)
		if !ok {
			return
		}
		if !closest.BlockingHit ||
			vecmath.DistSquared(t.start, hit) < vecmath.DistSquared(t.start, closest.ImpactPoint) {
			closest.BlockingHit = true
			closest.Location = hit
			closest.ImpactPoint = hit
			closest.Element = id
		}
	}
	scanCell := func(cell *Cell) {
		if cell.HasElements() && vecmath.LineIntersectsBox(cell.bounds, t.start, t.invDir) {
			g.ForEachElementInCell(cell, scanElement)
		}
	}

	NewCellRange(1).ForEachOffset(offset, func(coords CellIndex) {
		if _, done := checkedCells[coords]; done {
			return
		}
		checkedCells[coords] = struct{}{}
		g.GetCellFunc(coords, scanCell)
	})
}
