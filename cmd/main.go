package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"syscall"
	"time"

	"github.com/aquarius2019/spatialgrid/featureflag"
	"github.com/aquarius2019/spatialgrid/grid"
	sghttp "github.com/aquarius2019/spatialgrid/http"
	"github.com/aquarius2019/spatialgrid/soak"
	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The soak server version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "spatialgrid_info",
		Help:        "Spatial grid soak server information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

type config struct {
	Addr             string        `cli:""        env:"SPATIALGRID_ADDR"              help:"Listening address for status and debug endpoints."`
	AdminAddr        string        `cli:""        env:"SPATIALGRID_ADMIN_ADDR"        help:"Admin listening address."`
	LogLevel         string        `cli:""        env:"SPATIALGRID_LOG_LEVEL"         help:"Log level (debug|info|warning|error)."`
	LogIndent        bool          `cli:""        env:"SPATIALGRID_LOG_INDENT"        help:"Indent logs."`
	ElementCount     int           `cli:""        env:"SPATIALGRID_ELEMENT_COUNT"     help:"The number of simulated elements."`
	WorldExtent      float64       `cli:",hidden" env:"SPATIALGRID_WORLD_EXTENT"      help:"Half size of the simulated world on every axis."`
	QueryRadius      float64       `cli:",hidden" env:"SPATIALGRID_QUERY_RADIUS"      help:"The radius of the sphere queries run every tick."`
	QueriesPerTick   int           `cli:",hidden" env:"SPATIALGRID_QUERIES_PER_TICK"  help:"The number of sphere queries run every tick."`
	TracesPerTick    int           `cli:",hidden" env:"SPATIALGRID_TRACES_PER_TICK"   help:"The number of segment traces run every tick."`
	ChurnPerTick     int           `cli:",hidden" env:"SPATIALGRID_CHURN_PER_TICK"    help:"The number of elements removed and reinserted every tick."`
	TickInterval     time.Duration `cli:",hidden" env:"SPATIALGRID_TICK_INTERVAL"     help:"The duration of a simulation tick."`
	SnapshotInterval time.Duration `cli:",hidden" env:"SPATIALGRID_SNAPSHOT_INTERVAL" help:"The duration between websocket snapshot pushes."`
	Seed             int64         `cli:",hidden" env:"SPATIALGRID_SEED"              help:"The simulation random seed (0 picks one)."`
	FeatureFlags     []string      `cli:",hidden" env:"SPATIALGRID_FEATURE_FLAGS"     help:"Comma separated feature flags."`
	Events           eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	Version          bool          `cli:""        env:"-"                             help:"Show version."`
	Help             bool          `cli:""        env:"-"                             help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SPATIALGRID_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"SPATIALGRID_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SPATIALGRID_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SPATIALGRID_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:             ":4100",
		AdminAddr:        ":18191",
		LogLevel:         logs.InfoLevel.String(),
		ElementCount:     2048,
		WorldExtent:      2000,
		QueryRadius:      150,
		QueriesPerTick:   16,
		TracesPerTick:    4,
		ChurnPerTick:     8,
		TickInterval:     time.Millisecond * 50,
		SnapshotInterval: time.Second,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the spatial grid soak server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "spatialgrid",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	runID := uuid.New()

	sim := soak.New(soak.Options{
		RunID:          runID,
		ElementCount:   conf.ElementCount,
		WorldExtent:    conf.WorldExtent,
		QueryRadius:    conf.QueryRadius,
		QueriesPerTick: conf.QueriesPerTick,
		TracesPerTick:  conf.TracesPerTick,
		ChurnPerTick:   conf.ChurnPerTick,
		TickInterval:   conf.TickInterval,
		Seed:           conf.Seed,
		Flags:          featureflag.New(conf.FeatureFlags),
	})
	go sim.Run(ctx)

	src := &debugSource{sim: sim}

	readinessCheck := func() bool {
		return sim.Ticks() > 0
	}

	var service http.ServeMux
	service.Handle("/health", sghttp.HandleWithCORS(http.HandlerFunc(sghttp.HandleHealthCheck)))
	service.Handle("/ready", sghttp.HandleWithCORS(sghttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", sghttp.HandleWithCORS(sghttp.HandleVersion(version)))
	service.Handle("/debug/grid", sghttp.HandleWithCORS(sghttp.HandleGridSnapshot(src)))
	service.Handle("/debug/grid/query", sghttp.HandleWithCORS(sghttp.HandleGridQuery(src)))
	service.Handle("/debug/grid/trace", sghttp.HandleWithCORS(sghttp.HandleGridTrace(src)))
	service.Handle("/ws/grid", sghttp.StreamGridSnapshots(src, conf.SnapshotInterval))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", sghttp.HandleHealthCheck)
	admin.HandleFunc("/ready", sghttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("run_id", runID.String()).
		WithTag("element_count", conf.ElementCount).
		Info("starting spatial grid soak server")

	sghttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			sghttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// debugSource answers debug requests by scheduling them between simulation
// ticks, during the grid's reader phase.
type debugSource struct {
	sim *soak.Simulation
}

func (s *debugSource) Snapshot(includeOccupancy bool) sghttp.Snapshot {
	var snapshot sghttp.Snapshot

	s.sim.Do(func(w *soak.World) {
		envelope := w.Envelope()

		snapshot = sghttp.Snapshot{
			RunID:         s.sim.RunID().String(),
			Ticks:         s.sim.Ticks(),
			CellSize:      w.CellSize(),
			Origin:        sghttp.PointFromVec(w.Origin()),
			CellCount:     w.NumCells(),
			ElementCount:  w.NumElements(),
			EnvelopeValid: envelope.IsValid(),
			EnvelopeMin:   sghttp.PointFromVec(envelope.Min),
			EnvelopeMax:   sghttp.PointFromVec(envelope.Max),
		}

		if includeOccupancy {
			w.ForEachCell(func(coords grid.CellIndex, cell *grid.Cell) {
				snapshot.Occupancy = append(snapshot.Occupancy, sghttp.CellOccupancy{
					X:     coords.X,
					Y:     coords.Y,
					Z:     coords.Z,
					Count: cell.NumElements(),
				})
			})
		}
	})

	return snapshot
}

func (s *debugSource) Query(origin vecmath.Vec3, radius float64) []sghttp.QueryHit {
	query := grid.NewSphereQueryBuilder[soak.WorldSemantics, soak.Agent]().
		SetRadius(radius).
		Build()

	var hits []sghttp.QueryHit
	s.sim.Do(func(w *soak.World) {
		query.WithOrigin(origin).Each(w, func(id grid.ElementID, element *grid.Element[soak.Agent]) {
			hits = append(hits, sghttp.QueryHit{
				Element: sghttp.ElementRefFromID(id),
				Origin:  sghttp.PointFromVec(element.Bounds.Origin),
				Radius:  element.Bounds.Radius(),
			})
		})
	})
	return hits
}

func (s *debugSource) Trace(start, end vecmath.Vec3) sghttp.TraceResponse {
	trace := grid.NewLineTrace[soak.WorldSemantics, soak.Agent](start, end)

	var result grid.QueryResult
	s.sim.Do(func(w *soak.World) {
		result = trace.Single(w)
	})

	return sghttp.TraceResponse{
		BlockingHit: result.BlockingHit,
		Location:    sghttp.PointFromVec(result.Location),
		ImpactPoint: sghttp.PointFromVec(result.ImpactPoint),
		Element:     sghttp.ElementRefFromID(result.Element),
	}
}
