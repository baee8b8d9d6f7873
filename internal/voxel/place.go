package voxel

// BlockGetter reports the object type id at a world coordinate.
type BlockGetter func(c VoxelCoord) uint8

// NormalizeRotation converts a rotation value into a stable quarter-turn
// count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees
// clockwise. rot must be a normalized quarter-turn count in [0,3].
func RotateXZ(x, z int32, rot int) (rx, rz int32) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default:
		return -z, x
	}
}

func RotateOffset(off VoxelCoord, rot int) VoxelCoord {
	rx, rz := RotateXZ(off.X, off.Z, rot)
	return VoxelCoord{X: rx, Y: off.Y, Z: rz}
}

// WorldPositions anchors the build's relative positions at base.
func (b Build) WorldPositions(base VoxelCoord, rotation int) []VoxelCoord {
	rot := NormalizeRotation(rotation)
	out := make([]VoxelCoord, 0, len(b.RelativePositions))
	for _, p := range b.RelativePositions {
		out = append(out, base.Add(RotateOffset(p, rot)))
	}
	return out
}

// CheckPlaced reports whether every block of the build is present at base.
func CheckPlaced(getBlock BlockGetter, b Build, base VoxelCoord, rotation int) bool {
	if getBlock == nil || len(b.ObjectTypeIDs) == 0 || !b.Complete() {
		return false
	}
	for i, pos := range b.WorldPositions(base, rotation) {
		if getBlock(pos) != b.ObjectTypeIDs[i] {
			return false
		}
	}
	return true
}

// Bounds returns the smallest area covering the build placed at base.
func (b Build) Bounds(base VoxelCoord, rotation int) Area {
	pos := b.WorldPositions(base, rotation)
	if len(pos) == 0 {
		return Area{LowerSouthwestCorner: base}
	}
	lo, hi := pos[0], pos[0]
	for _, p := range pos[1:] {
		lo.X, hi.X = min(lo.X, p.X), max(hi.X, p.X)
		lo.Y, hi.Y = min(lo.Y, p.Y), max(hi.Y, p.Y)
		lo.Z, hi.Z = min(lo.Z, p.Z), max(hi.Z, p.Z)
	}
	return Area{
		LowerSouthwestCorner: lo,
		Size:                 VoxelCoord{X: hi.X - lo.X + 1, Y: hi.Y - lo.Y + 1, Z: hi.Z - lo.Z + 1},
	}
}
