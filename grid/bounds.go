package grid

import (
	"github.com/aquarius2019/spatialgrid/vecmath"
)

type boundsType uint8

const (
	boundsSphere boundsType = iota
	boundsBox
)

// Bounds is the per-element shape: a sphere or an axis-aligned box around an
// origin. The shape tag is fixed at construction; only the origin moves.
// Bounds are small copyable values.
type Bounds struct {
	Origin vecmath.Vec3

	typ          boundsType
	sphereRadius float64
	boxExtent    vecmath.Vec3
}

func SphereBounds(origin vecmath.Vec3, radius float64) Bounds {
	return Bounds{Origin: origin, typ: boundsSphere, sphereRadius: radius}
}

// BoxBounds creates box bounds from a center and half-extents.
func BoxBounds(origin vecmath.Vec3, extent vecmath.Vec3) Bounds {
	return Bounds{Origin: origin, typ: boundsBox, boxExtent: extent}
}

func (b Bounds) IsSphere() bool {
	return b.typ == boundsSphere
}

// Radius returns the sphere radius, or the box half-diagonal for box bounds:
// the tightest sphere radius enclosing the shape.
func (b Bounds) Radius() float64 {
	switch b.typ {
	case boundsBox:
		return b.boxExtent.Size()
	case boundsSphere:
		return b.sphereRadius
	}
	return 0
}

// Box projects the bounds to an AABB.
func (b Bounds) Box() vecmath.Box {
	switch b.typ {
	case boundsBox:
		return vecmath.BoxFromCenterExtent(b.Origin, b.boxExtent)
	case boundsSphere:
		return vecmath.BoxFromCenterExtent(b.Origin, vecmath.Splat(b.sphereRadius))
	}
	return vecmath.Box{}
}

func (b Bounds) OverlapsSphere(sphereOrigin vecmath.Vec3, sphereRadius float64) bool {
	switch b.typ {
	case boundsBox:
		return vecmath.BoxIntersectsSphere(vecmath.BoxFromCenterExtent(b.Origin, b.boxExtent), sphereOrigin, sphereRadius)
	case boundsSphere:
		return vecmath.DistSquared(sphereOrigin, b.Origin) <= vecmath.Square(b.sphereRadius+sphereRadius)
	}
	return false
}

func (b Bounds) OverlapsBox(boxOrigin vecmath.Vec3, boxExtent vecmath.Vec3) bool {
	box := vecmath.BoxFromCenterExtent(boxOrigin, boxExtent)
	switch b.typ {
	case boundsBox:
		return vecmath.BoxIntersectsBox(vecmath.BoxFromCenterExtent(b.Origin, b.boxExtent), box)
	case boundsSphere:
		return vecmath.BoxIntersectsSphere(box, b.Origin, b.sphereRadius)
	}
	return false
}

// LineHitPoint returns the first point where the segment [start, end]
// touches the bounds.
func (b Bounds) LineHitPoint(start, end, dir, invDir vecmath.Vec3) (vecmath.Vec3, bool) {
	switch b.typ {
	case boundsBox:
		return vecmath.LineBoxHitPoint(vecmath.BoxFromCenterExtent(b.Origin, b.boxExtent), start, end, dir, invDir)
	case boundsSphere:
		return vecmath.LineSphereHitPoint(start, end, dir, b.Origin, b.sphereRadius)
	}
	return vecmath.Vec3{}, false
}
