// Package soak continuously exercises a spatial grid the way a simulation
// tick would: agents move and bounce inside a bounded world, a slice of the
// population is removed and reinserted to churn the slot map, and sphere
// queries and segment traces run against the result every tick.
//
// Each tick is split into a writer phase (moves, churn, cell reclaim) and a
// reader phase (queries, traces, inspection jobs), honouring the grid's
// locking discipline: queries take no lock and must never overlap a
// mutation.
package soak

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/aquarius2019/spatialgrid/featureflag"
	"github.com/aquarius2019/spatialgrid/grid"
	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// WorldSemantics binds the soak world: 100-unit cells, agents up to radius
// 45.
type WorldSemantics struct{}

func (WorldSemantics) Name() string              { return "soak" }
func (WorldSemantics) CellSize() float64         { return 100 }
func (WorldSemantics) MaxElementRadius() float64 { return 45 }

// Agent is the element payload: an identity and a velocity.
type Agent struct {
	ID       uuid.UUID
	Velocity vecmath.Vec3
}

// World is the grid instantiation the simulation runs against.
type World = grid.Grid[WorldSemantics, Agent]

type Options struct {
	RunID          uuid.UUID
	ElementCount   int
	WorldExtent    float64
	MinRadius      float64
	MaxRadius      float64
	QueryRadius    float64
	QueriesPerTick int
	TracesPerTick  int
	ChurnPerTick   int
	ReclaimEvery   uint64
	TickInterval   time.Duration
	Seed           int64
	Flags          featureflag.FeatureFlag
}

func (o *Options) defaults() {
	if o.RunID == (uuid.UUID{}) {
		o.RunID = uuid.New()
	}
	if o.ElementCount <= 0 {
		o.ElementCount = 2048
	}
	if o.WorldExtent <= 0 {
		o.WorldExtent = 2000
	}
	if o.MinRadius <= 0 {
		o.MinRadius = 5
	}
	if o.MaxRadius <= o.MinRadius || o.MaxRadius >= (WorldSemantics{}).MaxElementRadius() {
		o.MaxRadius = 40
	}
	if o.QueryRadius <= 0 {
		o.QueryRadius = 150
	}
	if o.QueriesPerTick <= 0 {
		o.QueriesPerTick = 16
	}
	if o.TracesPerTick <= 0 {
		o.TracesPerTick = 4
	}
	if o.ChurnPerTick <= 0 {
		o.ChurnPerTick = 8
	}
	if o.ReclaimEvery == 0 {
		o.ReclaimEvery = 64
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Millisecond * 50
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Flags == nil {
		o.Flags = featureflag.New(nil)
	}
}

type inspectJob struct {
	fn   func(*World)
	done chan struct{}
}

// Simulation owns a world and drives it from a single goroutine.
type Simulation struct {
	opts          Options
	world         *World
	cachedQuery   grid.CachedSphereQuery[WorldSemantics, Agent]
	uncachedQuery grid.SphereQuery[WorldSemantics, Agent]
	ids           []grid.ElementID
	rng           *rand.Rand
	ticks         atomic.Uint64
	inspect       chan inspectJob
}

func New(opts Options) *Simulation {
	opts.defaults()

	builder := grid.NewSphereQueryBuilder[WorldSemantics, Agent]().SetRadius(opts.QueryRadius)

	s := &Simulation{
		opts:          opts,
		world:         grid.NewGrid[WorldSemantics, Agent](vecmath.Vec3{}),
		cachedQuery:   builder.BuildCached(),
		uncachedQuery: builder.Build(),
		rng:           rand.New(rand.NewSource(opts.Seed)),
		inspect:       make(chan inspectJob, 16),
	}

	for i := 0; i < opts.ElementCount; i++ {
		s.ids = append(s.ids, s.insertAgent())
	}

	return s
}

func (s *Simulation) RunID() uuid.UUID {
	return s.opts.RunID
}

func (s *Simulation) Ticks() uint64 {
	return s.ticks.Load()
}

// Run drives the simulation until ctx is cancelled. Inspection jobs sent
// through Do execute between ticks, during the reader phase.
func (s *Simulation) Run(ctx context.Context) {
	logs.WithTag("run_id", s.opts.RunID.String()).
		WithTag("element_count", s.opts.ElementCount).
		WithTag("world_extent", s.opts.WorldExtent).
		WithTag("query_radius", s.opts.QueryRadius).
		WithTag("tick_interval", s.opts.TickInterval.String()).
		Info("starting soak simulation")

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.WithTag("run_id", s.opts.RunID.String()).
				WithTag("ticks", s.Ticks()).
				Info("stopping soak simulation")
			return

		case <-ticker.C:
			s.tick()

		case job := <-s.inspect:
			job.fn(s.world)
			close(job.done)
		}
	}
}

// Do runs fn against the world between ticks and waits for it to finish.
// It must not be called from the simulation goroutine itself, and it only
// completes while Run is active.
func (s *Simulation) Do(fn func(*World)) {
	job := inspectJob{fn: fn, done: make(chan struct{})}
	s.inspect <- job
	<-job.done
}

func (s *Simulation) tick() {
	tick := s.ticks.Add(1)

	// writer phase
	s.moveAgents(s.opts.TickInterval.Seconds())

	s.opts.Flags.IfNotSet(featureflag.FlagDisableElementChurn, func() {
		s.churn()
	})
	s.opts.Flags.IfNotSet(featureflag.FlagDisableCellReclaim, func() {
		if tick%s.opts.ReclaimEvery == 0 {
			s.world.ClearEmptyCells()
		}
	})

	// reader phase
	s.runQueries()

	s.opts.Flags.IfNotSet(featureflag.FlagDisableLineTraces, func() {
		s.runTraces()
	})

	instrumentTick(s.opts.RunID.String())
}

func (s *Simulation) moveAgents(dt float64) {
	for _, id := range s.ids {
		element := s.world.GetElement(id)
		if element == nil {
			continue
		}

		next := vecmath.Add(element.Bounds.Origin, vecmath.Mul(element.Data.Velocity, dt))
		element.Data.Velocity = s.bounce(&next, element.Data.Velocity)

		s.world.UpdateElementLocation(id, next)
	}
}

// bounce reflects the velocity on every axis where next leaves the world,
// clamping next back onto the boundary.
func (s *Simulation) bounce(next *vecmath.Vec3, velocity vecmath.Vec3) vecmath.Vec3 {
	extent := s.opts.WorldExtent

	clamp := func(v *float64, vel *float64) {
		if *v > extent {
			*v = extent
			*vel = -*vel
		} else if *v < -extent {
			*v = -extent
			*vel = -*vel
		}
	}

	clamp(&next.X, &velocity.X)
	clamp(&next.Y, &velocity.Y)
	clamp(&next.Z, &velocity.Z)
	return velocity
}

func (s *Simulation) churn() {
	for i := 0; i < s.opts.ChurnPerTick && len(s.ids) > 0; i++ {
		victim := s.rng.Intn(len(s.ids))
		s.world.RemoveElement(s.ids[victim])
		s.ids[victim] = s.insertAgent()
	}
	instrumentChurn(s.opts.RunID.String(), s.opts.ChurnPerTick)
}

func (s *Simulation) runQueries() {
	uncached := s.opts.Flags.IsSet(featureflag.FlagUncachedQueries)

	for i := 0; i < s.opts.QueriesPerTick; i++ {
		origin := s.randomLocation()
		hits := 0
		count := func(grid.ElementID, *grid.Element[Agent]) {
			hits++
		}

		start := time.Now()
		if uncached {
			s.uncachedQuery.WithOrigin(origin).Each(s.world, count)
		} else {
			s.cachedQuery.WithOrigin(origin).Each(s.world, count)
		}
		instrumentQuery(s.opts.RunID.String(), time.Since(start), hits)
	}
}

func (s *Simulation) runTraces() {
	for i := 0; i < s.opts.TracesPerTick; i++ {
		trace := grid.NewLineTrace[WorldSemantics, Agent](s.randomLocation(), s.randomLocation())

		start := time.Now()
		result := trace.Single(s.world)
		instrumentTrace(s.opts.RunID.String(), time.Since(start), result.BlockingHit)
	}
}

func (s *Simulation) insertAgent() grid.ElementID {
	origin := s.randomLocation()
	radius := s.opts.MinRadius + s.rng.Float64()*(s.opts.MaxRadius-s.opts.MinRadius)

	var bounds grid.Bounds
	if s.rng.Intn(4) == 0 {
		// box half-extents chosen so the diagonal stays within radius
		bounds = grid.BoxBounds(origin, vecmath.Splat(radius/1.8))
	} else {
		bounds = grid.SphereBounds(origin, radius)
	}

	return s.world.AddElement(bounds, Agent{
		ID:       uuid.New(),
		Velocity: s.randomVelocity(),
	})
}

func (s *Simulation) randomLocation() vecmath.Vec3 {
	extent := s.opts.WorldExtent
	return vecmath.Vec3{
		X: s.rng.Float64()*2*extent - extent,
		Y: s.rng.Float64()*2*extent - extent,
		Z: s.rng.Float64()*2*extent - extent,
	}
}

func (s *Simulation) randomVelocity() vecmath.Vec3 {
	const maxSpeed = 80.0
	return vecmath.Vec3{
		X: s.rng.Float64()*2*maxSpeed - maxSpeed,
		Y: s.rng.Float64()*2*maxSpeed - maxSpeed,
		Z: s.rng.Float64()*2*maxSpeed - maxSpeed,
	}
}
