package grid

import (
	"math/rand"
	"testing"

	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/stretchr/testify/require"
)

func collectCached(g *Grid[testSemantics, payload], radius float64, origin vecmath.Vec3) map[ElementID]struct{} {
	query := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(radius).BuildCached()

	found := make(map[ElementID]struct{})
	query.WithOrigin(origin).Each(g, func(id ElementID, _ *Element[payload]) {
		found[id] = struct{}{}
	})
	return found
}

func collectUncached(g *Grid[testSemantics, payload], radius float64, origin vecmath.Vec3) map[ElementID]struct{} {
	query := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(radius).Build()

	found := make(map[ElementID]struct{})
	query.WithOrigin(origin).Each(g, func(id ElementID, _ *Element[payload]) {
		found[id] = struct{}{}
	})
	return found
}

func TestSphereQuerySingleElement(t *testing.T) {
	g := newTestGrid()
	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})

	require.Equal(t, CellIndex{0, 0, 0}, g.GetElement(id).Cell)

	// (20,20,20) is 17.3 away from the element origin, within the combined
	// radii 5+15
	origin := vecmath.Vec3{20, 20, 20}

	cached := collectCached(g, 15, origin)
	require.Len(t, cached, 1)
	_, ok := cached[id]
	require.True(t, ok)

	uncached := collectUncached(g, 15, origin)
	require.Equal(t, cached, uncached)

	// out of reach
	require.Empty(t, collectCached(g, 10, vecmath.Vec3{120, 120, 120}))
}

func TestSphereQueryAfterMove(t *testing.T) {
	g := newTestGrid()
	id := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})

	g.UpdateElementLocation(id, vecmath.Vec3{250, 10, 10})

	found := collectCached(g, 10, vecmath.Vec3{250, 10, 10})
	require.Len(t, found, 1)
	_, ok := found[id]
	require.True(t, ok)

	require.Empty(t, collectCached(g, 10, vecmath.Vec3{10, 10, 10}))
	require.Empty(t, collectUncached(g, 10, vecmath.Vec3{10, 10, 10}))
}

func TestSphereQueryZeroRadius(t *testing.T) {
	g := newTestGrid()
	g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})

	require.Empty(t, collectCached(g, 0, vecmath.Vec3{10, 10, 10}))
	require.Empty(t, collectCached(g, -5, vecmath.Vec3{10, 10, 10}))
	require.Empty(t, collectUncached(g, 0, vecmath.Vec3{10, 10, 10}))
}

func TestSphereQueryEmptyGrid(t *testing.T) {
	g := newTestGrid()

	require.Empty(t, collectCached(g, 200, vecmath.Vec3{}))
	require.Empty(t, collectUncached(g, 200, vecmath.Vec3{}))
}

func TestCachedQueryClassificationCounts(t *testing.T) {
	// closed-form counts for radius = k * cell size
	t.Run("radius equals one cell", func(t *testing.T) {
		q := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(100).BuildCached()

		// bound 2: a 5x5x5 offset cube; the 100-radius sphere shrunk by the
		// half diagonal covers no whole cell
		require.Equal(t, 125, q.CellCount())
		require.Len(t, q.innerCells, 0)
		require.Len(t, q.edgeCells, 27)
		require.Len(t, q.outerCells, 98)
	})

	t.Run("radius equals two cells", func(t *testing.T) {
		q := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(200).BuildCached()

		// bound 3: a 7x7x7 cube; only the origin cell is whole inside
		require.Equal(t, 343, q.CellCount())
		require.Len(t, q.innerCells, 1)
		require.Len(t, q.edgeCells, 124)
		require.Len(t, q.outerCells, 218)
	})
}

func TestCachedQueryShortCircuitMatchesCellWalk(t *testing.T) {
	g := newTestGrid()

	// 2 cells, while a 300-radius cached query visits hundreds: the
	// short-circuit path walks the grid's cells instead
	a := g.AddElement(SphereBounds(vecmath.Vec3{10, 10, 10}, 5), payload{})
	b := g.AddElement(SphereBounds(vecmath.Vec3{250, 10, 10}, 5), payload{})

	q := NewSphereQueryBuilder[testSemantics, payload]().SetRadius(300).BuildCached()
	require.Greater(t, q.CellCount(), g.NumCells())

	found := collectCached(g, 300, vecmath.Vec3{})
	require.Len(t, found, 2)
	_, ok := found[a]
	require.True(t, ok)
	_, ok = found[b]
	require.True(t, ok)
}

func TestSphereQueryAgainstBruteForce(t *testing.T) {
	g := newTestGrid()
	rng := rand.New(rand.NewSource(1))

	randomLocation := func() vecmath.Vec3 {
		return vecmath.Vec3{
			X: rng.Float64()*4000 - 2000,
			Y: rng.Float64()*4000 - 2000,
			Z: rng.Float64()*4000 - 2000,
		}
	}

	const elementCount = 10000
	for i := 0; i < elementCount; i++ {
		origin := randomLocation()
		if i%4 == 0 {
			g.AddElement(BoxBounds(origin, vecmath.Splat(1+rng.Float64()*20)), payload{})
		} else {
			g.AddElement(SphereBounds(origin, 1+rng.Float64()*39), payload{})
		}
	}

	const radius = 50.0
	for trial := 0; trial < 20; trial++ {
		origin := randomLocation()

		expected := make(map[ElementID]struct{})
		g.ForEachElement(func(id ElementID, element *Element[payload]) {
			if element.Bounds.OverlapsSphere(origin, radius) {
				expected[id] = struct{}{}
			}
		})

		require.Equal(t, expected, collectCached(g, radius, origin))

		// the on-demand flavour prunes whole cells by their AABB before
		// testing members, so its oracle carries that predicate too
		expectedPruned := make(map[ElementID]struct{})
		g.ForEachElement(func(id ElementID, element *Element[payload]) {
			cell := g.GetCell(element.Cell)
			if vecmath.BoxIntersectsSphereSq(cell.Bounds(), origin, radius*radius) &&
				element.Bounds.OverlapsSphere(origin, radius) {
				expectedPruned[id] = struct{}{}
			}
		})
		require.Equal(t, expectedPruned, collectUncached(g, radius, origin))
	}
}

func TestQueryIterNilQuery(t *testing.T) {
	g := newTestGrid()
	g.AddElement(SphereBounds(vecmath.Vec3{}, 5), payload{})

	count := 0
	QueryIter[testSemantics, payload]{}.Each(g, func(ElementID, *Element[payload]) { count++ })
	CachedQueryIter[testSemantics, payload]{}.Each(g, func(ElementID, *Element[payload]) { count++ })
	require.Zero(t, count)
}
