// Package grid implements a uniform 3D cell hash grid over a generational
// element store, with cached spherical region queries and a 3D-DDA segment
// traversal. Cells are keyed by signed integer lattice coordinates and come
// into existence as elements touch them; the grid envelope grows organically
// with them and never shrinks.
package grid

import (
	"math"

	"github.com/aquarius2019/spatialgrid/vecmath"
)

// Semantics is the compile-time configuration of a grid instantiation: the
// cell edge length, the largest element radius the grid accepts, and a name
// for logs and metrics. Implementations are expected to be zero-size struct
// types with constant-returning methods so the compiler can fold them into
// the hot paths. NewGrid validates CellSize > 0 and
// MaxElementRadius < CellSize/2.
type Semantics interface {
	Name() string
	CellSize() float64
	MaxElementRadius() float64
}

func halfCellSize[S Semantics](sem S) float64 {
	return sem.CellSize() * 0.5
}

func halfDiagonal[S Semantics](sem S) float64 {
	return halfCellSize(sem) * math.Sqrt(3.0)
}

func cellExtent[S Semantics](sem S) vecmath.Vec3 {
	return vecmath.Splat(halfCellSize(sem))
}

// CellIndex identifies a lattice cell. Coordinates are unbounded.
type CellIndex struct {
	X int32
	Y int32
	Z int32
}

func (c CellIndex) Add(o CellIndex) CellIndex {
	return CellIndex{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// roundToInt32 rounds half toward positive infinity, matching on every axis
// the rounding used to assign element origins to cells.
func roundToInt32(v float64) int32 {
	return int32(math.Floor(v + 0.5))
}

// RoundVecToCell rounds a vector to the nearest lattice cell.
func RoundVecToCell(v vecmath.Vec3) CellIndex {
	return CellIndex{roundToInt32(v.X), roundToInt32(v.Y), roundToInt32(v.Z)}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// CellRange is the cube of cell offsets [-step, step] on each axis.
type CellRange struct {
	step CellIndex
}

func NewCellRange(step int32) CellRange {
	return CellRange{step: CellIndex{abs32(step), abs32(step), abs32(step)}}
}

func NewCellRangeIndex(step CellIndex) CellRange {
	return CellRange{step: CellIndex{abs32(step.X), abs32(step.Y), abs32(step.Z)}}
}

// Count returns the number of offsets the range visits.
func (r CellRange) Count() int {
	return int(r.step.X*2+1) * int(r.step.Y*2+1) * int(r.step.Z*2+1)
}

func (r CellRange) ForEach(fn func(CellIndex)) {
	for z := -r.step.Z; z <= r.step.Z; z++ {
		for y := -r.step.Y; y <= r.step.Y; y++ {
			for x := -r.step.X; x <= r.step.X; x++ {
				fn(CellIndex{x, y, z})
			}
		}
	}
}

// ForEachOffset visits the range translated by offset.
func (r CellRange) ForEachOffset(offset CellIndex, fn func(CellIndex)) {
	for z := -r.step.Z; z <= r.step.Z; z++ {
		for y := -r.step.Y; y <= r.step.Y; y++ {
			for x := -r.step.X; x <= r.step.X; x++ {
				fn(CellIndex{x + offset.X, y + offset.Y, z + offset.Z})
			}
		}
	}
}
