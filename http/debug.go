package http

import (
	"io"
	"net/http"
	"time"

	"github.com/aquarius2019/spatialgrid/grid"
	"github.com/aquarius2019/spatialgrid/vecmath"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// ErrTypeBadDebugRequest tags malformed debug requests.
const ErrTypeBadDebugRequest = "http_bad_debug_request"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func PointFromVec(v vecmath.Vec3) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

func (p Point) Vec() vecmath.Vec3 {
	return vecmath.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

type ElementRef struct {
	Index   uint32 `json:"index"`
	Version uint32 `json:"version"`
}

func ElementRefFromID(id grid.ElementID) ElementRef {
	return ElementRef{Index: id.Index, Version: id.Version}
}

type CellOccupancy struct {
	X     int32 `json:"x"`
	Y     int32 `json:"y"`
	Z     int32 `json:"z"`
	Count int   `json:"count"`
}

// Snapshot is a point-in-time view of a grid, safe to serialize.
type Snapshot struct {
	RunID         string          `json:"run_id"`
	Ticks         uint64          `json:"ticks"`
	CellSize      float64         `json:"cell_size"`
	Origin        Point           `json:"origin"`
	CellCount     int             `json:"cell_count"`
	ElementCount  int             `json:"element_count"`
	EnvelopeValid bool            `json:"envelope_valid"`
	EnvelopeMin   Point           `json:"envelope_min"`
	EnvelopeMax   Point           `json:"envelope_max"`
	Occupancy     []CellOccupancy `json:"occupancy,omitempty"`
}

type QueryRequest struct {
	Origin Point   `json:"origin"`
	Radius float64 `json:"radius"`
}

type QueryHit struct {
	Element ElementRef `json:"element"`
	Origin  Point      `json:"origin"`
	Radius  float64    `json:"radius"`
}

type QueryResponse struct {
	Hits []QueryHit `json:"hits"`
}

type TraceRequest struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

type TraceResponse struct {
	BlockingHit bool       `json:"blocking_hit"`
	Location    Point      `json:"location"`
	ImpactPoint Point      `json:"impact_point"`
	Element     ElementRef `json:"element"`
}

// GridDebugSource answers debug requests against a grid. Implementations
// are expected to run each call during the grid's reader phase: queries and
// snapshots take no lock.
type GridDebugSource interface {
	Snapshot(includeOccupancy bool) Snapshot
	Query(origin vecmath.Vec3, radius float64) []QueryHit
	Trace(start, end vecmath.Vec3) TraceResponse
}

// HandleGridSnapshot serves the current grid snapshot. Pass ?occupancy=1
// for the per-cell element counts.
func HandleGridSnapshot(src GridDebugSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		includeOccupancy := r.URL.Query().Get("occupancy") == "1"
		writeJSON(w, src.Snapshot(includeOccupancy))
	}
}

// HandleGridQuery runs a sphere query from a JSON body.
func HandleGridQuery(src GridDebugSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req QueryRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}
		if req.Radius <= 0 {
			badRequest(w, errors.New("query radius must be greater than zero").
				WithType(ErrTypeBadDebugRequest).
				WithTag("radius", req.Radius))
			return
		}

		hits := src.Query(req.Origin.Vec(), req.Radius)
		writeJSON(w, QueryResponse{Hits: hits})
	}
}

// HandleGridTrace runs a first-hit segment trace from a JSON body.
func HandleGridTrace(src GridDebugSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req TraceRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err)
			return
		}
		if req.Start == req.End {
			badRequest(w, errors.New("trace segment must have a direction").
				WithType(ErrTypeBadDebugRequest))
			return
		}

		writeJSON(w, src.Trace(req.Start.Vec(), req.End.Vec()))
	}
}

// StreamGridSnapshots pushes a snapshot over a websocket connection on
// every interval until the peer goes away.
func StreamGridSnapshots(src GridDebugSource, interval time.Duration) websocket.Server {
	return websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				// a send error means the peer went away
				if err := websocket.JSON.Send(conn, src.Snapshot(false)); err != nil {
					logs.WithTag("remote_addr", conn.Request().RemoteAddr).
						Info("grid snapshot stream closed")
					return
				}
				<-ticker.C
			}
		},
	}
}

func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.New("reading body failed").
			WithType(ErrTypeBadDebugRequest).
			Wrap(err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding body failed").
			WithType(ErrTypeBadDebugRequest).
			Wrap(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding debug response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func badRequest(w http.ResponseWriter, err error) {
	logs.Warn(err)
	w.WriteHeader(http.StatusBadRequest)
}
