package voxel

import "testing"

func TestCheckPlaced(t *testing.T) {
	b := Build{
		ObjectTypeIDs:     []uint8{35, 36},
		RelativePositions: []VoxelCoord{{0, 0, 0}, {1, 0, 0}},
	}
	grid := map[VoxelCoord]uint8{
		{10, 0, 10}: 35,
		{11, 0, 10}: 36,
	}
	get := func(c VoxelCoord) uint8 { return grid[c] }
	if !CheckPlaced(get, b, VoxelCoord{10, 0, 10}, 0) {
		t.Fatalf("expected placed build to validate")
	}
	if CheckPlaced(get, b, VoxelCoord{10, 0, 10}, 1) {
		t.Fatalf("rotated build should not match")
	}
	if CheckPlaced(get, Build{ObjectTypeIDs: []uint8{35}}, VoxelCoord{10, 0, 10}, 0) {
		t.Fatalf("incomplete build should not validate")
	}
}

func TestCheckPlaced_Rotated(t *testing.T) {
	b := Build{
		ObjectTypeIDs:     []uint8{35, 36},
		RelativePositions: []VoxelCoord{{0, 0, 0}, {1, 0, 0}},
	}
	// A quarter turn maps +x to -z.
	grid := map[VoxelCoord]uint8{
		{0, 0, 0}:  35,
		{0, 0, -1}: 36,
	}
	if !CheckPlaced(func(c VoxelCoord) uint8 { return grid[c] }, b, VoxelCoord{}, 90) {
		t.Fatalf("expected rotated placement to validate")
	}
}

func TestNormalizeRotation_AcceptsDegreesAndQuarterTurns(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: 3, want: 3},
		{in: 4, want: 0},
		{in: -1, want: 3},
		{in: 90, want: 1},
		{in: 180, want: 2},
		{in: 270, want: 3},
		{in: 360, want: 0},
		{in: -90, want: 3},
	}
	for _, c := range cases {
		if got := NormalizeRotation(c.in); got != c.want {
			t.Fatalf("NormalizeRotation(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestBounds(t *testing.T) {
	b := Build{
		ObjectTypeIDs:     []uint8{1, 1, 1},
		RelativePositions: []VoxelCoord{{0, 0, 0}, {2, 1, 0}, {0, 0, 3}},
	}
	a := b.Bounds(VoxelCoord{5, 5, 5}, 0)
	if a.LowerSouthwestCorner != (VoxelCoord{5, 5, 5}) || a.Size != (VoxelCoord{3, 2, 4}) {
		t.Fatalf("bounds=%+v", a)
	}
	if !a.Contains(VoxelCoord{7, 6, 8}) || a.Contains(VoxelCoord{8, 5, 5}) {
		t.Fatalf("contains mismatch for %+v", a)
	}
}
