package grid

import (
	"testing"

	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/stretchr/testify/require"
)

// testSemantics is the binding used across the package tests: 100-unit
// cells holding elements up to (but excluding) radius 50.
type testSemantics struct{}

func (testSemantics) Name() string              { return "test" }
func (testSemantics) CellSize() float64         { return 100 }
func (testSemantics) MaxElementRadius() float64 { return 49 }

type payload struct {
	Tag string
}

func newTestGrid() *Grid[testSemantics, payload] {
	return NewGrid[testSemantics, payload](vecmath.Vec3{})
}

func TestLocationToCoordinates(t *testing.T) {
	g := newTestGrid()

	require.Equal(t, CellIndex{0, 0, 0}, g.LocationToCoordinates(vecmath.Vec3{10, 10, 10}))
	require.Equal(t, CellIndex{0, 0, 0}, g.LocationToCoordinates(vecmath.Vec3{49, -49, 0}))
	require.Equal(t, CellIndex{1, 0, 0}, g.LocationToCoordinates(vecmath.Vec3{51, 0, 0}))
	require.Equal(t, CellIndex{3, 0, 0}, g.LocationToCoordinates(vecmath.Vec3{250, 10, 10}))
	require.Equal(t, CellIndex{-1, 0, 0}, g.LocationToCoordinates(vecmath.Vec3{-51, 0, 0}))
}

func TestCellBoundaryIsConsistent(t *testing.T) {
	g := newTestGrid()

	// a location exactly on the half-cell line classifies the same way on
	// insert and on update
	onBoundary := vecmath.Vec3{50, 0, 0}
	insertCoords := g.LocationToCoordinates(onBoundary)

	id := g.AddElement(SphereBounds(onBoundary, 5), payload{})
	require.Equal(t, insertCoords, g.GetElement(id).Cell)

	g.UpdateElementLocation(id, onBoundary)
	require.Equal(t, insertCoords, g.GetElement(id).Cell)
}

func TestCellCenter(t *testing.T) {
	g := NewGrid[testSemantics, payload](vecmath.Vec3{7, 0, 0})

	require.True(t, g.CellCenter(CellIndex{0, 0, 0}).Equal(vecmath.Vec3{7, 0, 0}))
	require.True(t, g.CellCenter(CellIndex{2, -1, 3}).Equal(vecmath.Vec3{207, -100, 300}))
}

func TestAddElement(t *testing.T) {
	g := newTestGrid()

	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{Tag: "a"})
	require.False(t, id.IsNil())
	require.Equal(t, 1, g.NumElements())
	require.Equal(t, 1, g.NumCells())

	element := g.GetElement(id)
	require.NotNil(t, element)
	require.Equal(t, CellIndex{0, 0, 0}, element.Cell)
	require.Equal(t, "a", element.Data.Tag)

	cell := g.GetCell(CellIndex{0, 0, 0})
	require.NotNil(t, cell)
	require.Equal(t, 1, cell.NumElements())

	// the cell bounds are its geometric bounds
	require.True(t, cell.Bounds().Min.Equal(vecmath.Splat(-50)))
	require.True(t, cell.Bounds().Max.Equal(vecmath.Splat(50)))
}

func TestRemoveElement(t *testing.T) {
	g := newTestGrid()

	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{Tag: "a"})
	g.RemoveElement(id)

	require.Equal(t, 0, g.NumElements())
	require.Nil(t, g.GetElement(id))

	// the empty cell lingers until reclaimed
	require.Equal(t, 1, g.NumCells())
	require.False(t, g.GetCell(CellIndex{0, 0, 0}).HasElements())

	// stale remove is a no-op
	g.RemoveElement(id)
	require.Equal(t, 0, g.NumElements())
}

func TestClearEmptyCells(t *testing.T) {
	g := newTestGrid()

	keep := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})
	gone := g.AddElement(SphereBounds(vecmath.Vec3{250, 10, 10}, 5), payload{})

	g.RemoveElement(gone)
	require.Equal(t, 2, g.NumCells())

	g.ClearEmptyCells()
	require.Equal(t, 1, g.NumCells())
	require.NotNil(t, g.GetCell(g.GetElement(keep).Cell))
	require.Nil(t, g.GetCell(CellIndex{3, 0, 0}))
}

func TestUpdateElementLocation(t *testing.T) {
	g := newTestGrid()

	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})

	t.Run("same cell updates origin only", func(t *testing.T) {
		g.UpdateElementLocation(id, vecmath.Vec3{20, 20, 20})

		element := g.GetElement(id)
		require.True(t, element.Bounds.Origin.Equal(vecmath.Vec3{20, 20, 20}))
		require.Equal(t, CellIndex{0, 0, 0}, element.Cell)
		require.Equal(t, 1, g.NumCells())
	})

	t.Run("cell change rehomes the element", func(t *testing.T) {
		g.UpdateElementLocation(id, vecmath.Vec3{250, 10, 10})

		element := g.GetElement(id)
		require.True(t, element.Bounds.Origin.Equal(vecmath.Vec3{250, 10, 10}))
		require.Equal(t, CellIndex{3, 0, 0}, element.Cell)

		require.False(t, g.GetCell(CellIndex{0, 0, 0}).HasElements())
		require.Equal(t, 1, g.GetCell(CellIndex{3, 0, 0}).NumElements())
	})

	t.Run("stale id is ignored", func(t *testing.T) {
		g.RemoveElement(id)
		g.UpdateElementLocation(id, vecmath.Vec3{500, 0, 0})
		require.Nil(t, g.GetElement(id))
		require.Nil(t, g.GetCell(CellIndex{5, 0, 0}))
	})
}

func TestCellMembershipInvariant(t *testing.T) {
	g := newTestGrid()

	ids := []ElementID{
		g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{}),
		g.AddElement(SphereBounds(vecmath.Vec3{-120, 40, 90}, 20), payload{}),
		g.AddElement(BoxBounds(vecmath.Vec3{300, -300, 0}, vecmath.Splat(10)), payload{}),
	}

	g.UpdateElementLocation(ids[0], vecmath.Vec3{-480, 0, 260})
	g.RemoveElement(ids[1])

	g.ForEachElement(func(id ElementID, element *Element[payload]) {
		require.Equal(t, g.LocationToCoordinates(element.Bounds.Origin), element.Cell)

		cell := g.GetCell(element.Cell)
		require.NotNil(t, cell)

		found := false
		cell.ForEachID(func(member ElementID) {
			if member == id {
				found = true
			}
		})
		require.True(t, found)
	})
}

func TestEnvelopeGrowsAndNeverShrinks(t *testing.T) {
	g := newTestGrid()
	require.False(t, g.Envelope().IsValid())

	a := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})
	envelope := g.Envelope()
	require.True(t, envelope.Min.Equal(vecmath.Splat(-50)))
	require.True(t, envelope.Max.Equal(vecmath.Splat(50)))

	g.AddElement(SphereBounds(vecmath.Vec3{250, 10, 10}, 5), payload{})
	envelope = g.Envelope()
	require.True(t, envelope.Min.Equal(vecmath.Splat(-50)))
	require.True(t, envelope.Max.Equal(vecmath.Vec3{350, 50, 50}))

	// envelope covers every occupied cell's bounds
	g.ForEachCell(func(_ CellIndex, cell *Cell) {
		union := envelope.Union(cell.Bounds())
		require.Equal(t, envelope, union)
	})

	// removing and reclaiming does not shrink it
	g.RemoveElement(a)
	g.ClearEmptyCells()
	require.Equal(t, envelope, g.Envelope())
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	g := newTestGrid()

	before := g.NumElements()
	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{Tag: "p"})
	require.Equal(t, before+1, g.NumElements())

	g.RemoveElement(id)
	require.Equal(t, before, g.NumElements())
	require.Nil(t, g.GetElement(id))

	query := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(50).Build()
	count := 0
	query.WithOrigin(vecmath.Vec3{10, 10, 10}).Each(g, func(ElementID, *Element[payload]) {
		count++
	})
	require.Zero(t, count)
}

func TestGetCellFunc(t *testing.T) {
	g := newTestGrid()
	g.AddElement(SphereBounds(vecmath.Vec3{}, 5), payload{})

	called := false
	g.GetCellFunc(CellIndex{0, 0, 0}, func(cell *Cell) {
		called = true
		require.True(t, cell.HasElements())
	})
	require.True(t, called)

	g.GetCellFunc(CellIndex{9, 9, 9}, func(*Cell) {
		t.Fatal("missing cell must not be visited")
	})
}

func TestIsCellWithinBounds(t *testing.T) {
	g := newTestGrid()
	require.False(t, g.IsCellWithinBounds(CellIndex{0, 0, 0}))

	g.AddElement(SphereBounds(vecmath.Vec3{}, 5), payload{})
	require.True(t, g.IsCellWithinBounds(CellIndex{0, 0, 0}))
	require.False(t, g.IsCellWithinBounds(CellIndex{1, 0, 0}))
}

func TestCellRange(t *testing.T) {
	require.Equal(t, 27, NewCellRange(1).Count())
	require.Equal(t, 125, NewCellRange(2).Count())
	require.Equal(t, 27, NewCellRange(-1).Count())
	require.Equal(t, 15, NewCellRangeIndex(CellIndex{2, 1, 0}).Count())

	visited := make(map[CellIndex]struct{})
	NewCellRange(1).ForEachOffset(CellIndex{10, 0, 0}, func(c CellIndex) {
		visited[c] = struct{}{}
	})
	require.Len(t, visited, 27)

	_, ok := visited[CellIndex{10, 0, 0}]
	require.True(t, ok)
	_, ok = visited[CellIndex{11, 1, 1}]
	require.True(t, ok)
	_, ok = visited[CellIndex{12, 0, 0}]
	require.False(t, ok)
}
