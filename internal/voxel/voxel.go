// Package voxel holds the coordinate, build and area shapes exchanged with
// the Biomes world and the experience contracts.
package voxel

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidJSON is returned for every import failure, parse or shape.
var ErrInvalidJSON = errors.New("Invalid JSON")

type VoxelCoord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (c VoxelCoord) Add(o VoxelCoord) VoxelCoord {
	return VoxelCoord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

type Build struct {
	ObjectTypeIDs     []uint8      `json:"objectTypeIds"`
	RelativePositions []VoxelCoord `json:"relativePositions"`
}

// Complete reports whether every block type has a matching position.
func (b Build) Complete() bool {
	return len(b.ObjectTypeIDs) == len(b.RelativePositions)
}

type BuildWithPos struct {
	ObjectTypeIDs     []uint8      `json:"objectTypeIds"`
	RelativePositions []VoxelCoord `json:"relativePositions"`
	BaseWorldCoord    VoxelCoord   `json:"baseWorldCoord"`
}

func (b BuildWithPos) Build() Build {
	return Build{ObjectTypeIDs: b.ObjectTypeIDs, RelativePositions: b.RelativePositions}
}

// Area is an axis-aligned region. Size is an extent, so a zero axis is empty.
type Area struct {
	LowerSouthwestCorner VoxelCoord `json:"lowerSouthwestCorner"`
	Size                 VoxelCoord `json:"size"`
}

// Max returns the exclusive upper corner.
func (a Area) Max() VoxelCoord {
	return a.LowerSouthwestCorner.Add(a.Size)
}

func (a Area) Contains(c VoxelCoord) bool {
	lo, hi := a.LowerSouthwestCorner, a.Max()
	return c.X >= lo.X && c.X < hi.X &&
		c.Y >= lo.Y && c.Y < hi.Y &&
		c.Z >= lo.Z && c.Z < hi.Z
}

type LeaderboardEntry struct {
	Player  common.Address `json:"player"`
	Balance *big.Int       `json:"balance"`
}

// ListEntry is a build trend tracked on chain, with the builders that
// submitted it and where each of them placed it.
type ListEntry struct {
	ID        *big.Int         `json:"id"`
	Name      string           `json:"name"`
	Price     *big.Int         `json:"price"`
	Builders  []common.Address `json:"builders"`
	Blueprint Build            `json:"blueprint"`
	Locations []VoxelCoord     `json:"locations"`
}

// []uint8 would marshal as base64; exports stay a plain number list.
type buildOut struct {
	ObjectTypeIDs     []int        `json:"objectTypeIds"`
	RelativePositions []VoxelCoord `json:"relativePositions"`
	BaseWorldCoord    *VoxelCoord  `json:"baseWorldCoord,omitempty"`
}

func newBuildOut(ids []uint8, pos []VoxelCoord) buildOut {
	out := buildOut{ObjectTypeIDs: make([]int, len(ids)), RelativePositions: pos}
	for i, id := range ids {
		out.ObjectTypeIDs[i] = int(id)
	}
	if out.RelativePositions == nil {
		out.RelativePositions = []VoxelCoord{}
	}
	return out
}

func (b Build) MarshalJSON() ([]byte, error) {
	return json.Marshal(newBuildOut(b.ObjectTypeIDs, b.RelativePositions))
}

func (b BuildWithPos) MarshalJSON() ([]byte, error) {
	out := newBuildOut(b.ObjectTypeIDs, b.RelativePositions)
	base := b.BaseWorldCoord
	out.BaseWorldCoord = &base
	return json.Marshal(out)
}
