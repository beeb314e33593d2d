package grid

import (
	"math"

	"github.com/aquarius2019/spatialgrid/vecmath"
)

// InvalidLocation marks a location no trace can produce.
var InvalidLocation = vecmath.Splat(math.MaxFloat64)

// InvalidDirection is the zero direction.
var InvalidDirection = vecmath.Vec3{}

// QueryResult is the outcome of a first-hit segment traversal.
type QueryResult struct {
	BlockingHit bool
	// Location is the impact point on a hit and the segment end on a miss
	// that reached the envelope; it stays InvalidLocation when the trace
	// never entered the envelope.
	Location    vecmath.Vec3
	ImpactPoint vecmath.Vec3
	// ImpactNormal is reserved; the traversal does not compute it.
	ImpactNormal vecmath.Vec3
	Element      ElementID
}

func newQueryResult() QueryResult {
	return QueryResult{
		Location:     InvalidLocation,
		ImpactPoint:  InvalidLocation,
		ImpactNormal: InvalidDirection,
	}
}
