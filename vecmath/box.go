package vecmath

import (
	"math"
)

// Box is an axis-aligned bounding box. The zero Box is invalid: it contains
// nothing and unions with it yield the other operand.
type Box struct {
	Min   Vec3
	Max   Vec3
	valid bool
}

func NewBox(min, max Vec3) Box {
	return Box{Min: min, Max: max, valid: true}
}

func BoxFromCenterExtent(center, extent Vec3) Box {
	return NewBox(Sub(center, extent), Add(center, extent))
}

func (b Box) IsValid() bool {
	return b.valid
}

// Union returns the smallest box containing both operands.
func (b Box) Union(other Box) Box {
	if !b.valid {
		return other
	}
	if !other.valid {
		return b
	}

	return NewBox(
		Vec3{math.Min(b.Min.X, other.Min.X), math.Min(b.Min.Y, other.Min.Y), math.Min(b.Min.Z, other.Min.Z)},
		Vec3{math.Max(b.Max.X, other.Max.X), math.Max(b.Max.Y, other.Max.Y), math.Max(b.Max.Z, other.Max.Z)},
	)
}

// IsInside reports whether p lies strictly inside the box, exclusive of the
// boundary.
func (b Box) IsInside(p Vec3) bool {
	return b.valid &&
		p.X > b.Min.X && p.X < b.Max.X &&
		p.Y > b.Min.Y && p.Y < b.Max.Y &&
		p.Z > b.Min.Z && p.Z < b.Max.Z
}

// ClosestPointTo clamps p onto the box surface or returns p when inside.
func (b Box) ClosestPointTo(p Vec3) Vec3 {
	return Vec3{
		math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
		math.Min(math.Max(p.Z, b.Min.Z), b.Max.Z),
	}
}

func BoxIntersectsSphere(box Box, sphereOrigin Vec3, sphereRadius float64) bool {
	return DistSquared(sphereOrigin, box.ClosestPointTo(sphereOrigin)) <= Square(sphereRadius)
}

// BoxIntersectsSphereSq is BoxIntersectsSphere with a pre-squared radius,
// for callers that test many cells against one sphere.
func BoxIntersectsSphereSq(box Box, sphereOrigin Vec3, radiusSq float64) bool {
	return DistSquared(sphereOrigin, box.ClosestPointTo(sphereOrigin)) <= radiusSq
}

func BoxIntersectsBox(a Box, b Box) bool {
	if a.Min.X > b.Max.X || b.Min.X > a.Max.X {
		return false
	}
	if a.Min.Y > b.Max.Y || b.Min.Y > a.Max.Y {
		return false
	}
	if a.Min.Z > b.Max.Z || b.Min.Z > a.Max.Z {
		return false
	}
	return true
}

// LineIntersectsBox runs the slab test against an unbounded line defined by
// start and the component-wise reciprocal of its direction.
func LineIntersectsBox(box Box, start Vec3, invDir Vec3) bool {
	tEntry := math.Inf(-1)
	tExit := math.Inf(1)

	t1 := (box.Min.X - start.X) * invDir.X
	t2 := (box.Max.X - start.X) * invDir.X
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	if tEntry > tExit {
		return false
	}

	t1 = (box.Min.Y - start.Y) * invDir.Y
	t2 = (box.Max.Y - start.Y) * invDir.Y
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	if tEntry > tExit {
		return false
	}

	t1 = (box.Min.Z - start.Z) * invDir.Z
	t2 = (box.Max.Z - start.Z) * invDir.Z
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	return tEntry <= tExit
}

// LineBoxHitPoint returns the point where the segment [start, end] enters
// the box. A start inside the box hits immediately at start. Entries behind
// the start or beyond the segment end are misses.
func LineBoxHitPoint(box Box, start, end, dir, invDir Vec3) (Vec3, bool) {
	if box.IsInside(start) {
		return start, true
	}

	tEntry := math.Inf(-1)
	tExit := math.Inf(1)

	t1 := (box.Min.X - start.X) * invDir.X
	t2 := (box.Max.X - start.X) * invDir.X
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	if tEntry > tExit {
		return Vec3{}, false
	}

	t1 = (box.Min.Y - start.Y) * invDir.Y
	t2 = (box.Max.Y - start.Y) * invDir.Y
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	if tEntry > tExit {
		return Vec3{}, false
	}

	t1 = (box.Min.Z - start.Z) * invDir.Z
	t2 = (box.Max.Z - start.Z) * invDir.Z
	tEntry = math.Max(tEntry, math.Min(t1, t2))
	tExit = math.Min(tExit, math.Max(t1, t2))
	if tEntry > tExit {
		return Vec3{}, false
	}

	if tEntry < 0 || Square(tEntry) > DistSquared(start, end) {
		return Vec3{}, false
	}

	return Add(start, Mul(dir, tEntry)), true
}

func LineIntersectsSphere(start, end, dir, sphereOrigin Vec3, sphereRadius float64) bool {
	_, hit := LineSphereHitPoint(start, end, dir, sphereOrigin, sphereRadius)
	return hit
}

// LineSphereHitPoint returns the first point where the segment [start, end]
// touches the sphere. A start inside the sphere hits immediately at start.
func LineSphereHitPoint(start, end, dir, sphereOrigin Vec3, sphereRadius float64) (Vec3, bool) {
	startToCenter := Sub(start, sphereOrigin)
	radiusSq := sphereRadius * sphereRadius

	if startToCenter.SizeSquared() < radiusSq {
		return start, true
	}

	v := dir.Dot(Sub(sphereOrigin, start))
	discriminant := radiusSq - (startToCenter.Dot(startToCenter) - v*v)
	if discriminant < 0 {
		return Vec3{}, false
	}

	time := v - math.Sqrt(discriminant)
	if time < 0 || Square(time) > DistSquared(start, end) {
		return Vec3{}, false
	}

	return Add(start, Mul(dir, time)), true
}
