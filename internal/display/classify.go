package display

import (
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/voxel"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindScalar
	KindEther
	KindEntityID
	KindAddress
	KindArea
	KindBuild
	KindBuildWithPos
	KindLeaderboard
	KindAreas
	KindEntities
	KindBuilds
	KindBuildsWithPos
	KindList
	KindGeneric
)

var kindNames = [...]string{
	KindEmpty:         "empty",
	KindScalar:        "scalar",
	KindEther:         "ether",
	KindEntityID:      "entity_id",
	KindAddress:       "address",
	KindArea:          "area",
	KindBuild:         "build",
	KindBuildWithPos:  "build_with_pos",
	KindLeaderboard:   "leaderboard",
	KindAreas:         "areas",
	KindEntities:      "entities",
	KindBuilds:        "builds",
	KindBuildsWithPos: "builds_with_pos",
	KindList:          "list",
	KindGeneric:       "generic",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Display is a classified result. Only the payload field matching Kind is set.
type Display struct {
	Kind  Kind
	Value any

	Scalar        any
	Ether         *big.Int
	Entity        string
	Address       string
	Area          voxel.Area
	Build         voxel.Build
	BuildWithPos  voxel.BuildWithPos
	Leaderboard   []voxel.LeaderboardEntry
	Areas         []voxel.Area
	Entities      []string
	Builds        []voxel.Build
	BuildsWithPos []voxel.BuildWithPos
	List          []any
}

// Classify picks the most specific display shape for v. The first matching
// rule wins.
func Classify(v any) Display {
	d := Display{Kind: KindGeneric, Value: v}
	switch x := v.(type) {
	case nil:
		d.Kind = KindEmpty
		return d
	case *big.Int:
		if x == nil {
			d.Kind = KindEmpty
			return d
		}
		if IsSafeInteger(x) {
			d.Kind = KindScalar
			d.Scalar = x.Int64()
			return d
		}
		d.Kind = KindEther
		d.Ether = x
		return d
	case int64, float64, bool:
		d.Kind = KindScalar
		d.Scalar = x
		return d
	case string:
		if IsBytes32(x) {
			d.Kind = KindEntityID
			d.Entity = x
			return d
		}
		if IsAddress(x) {
			d.Kind = KindAddress
			d.Address = x
			return d
		}
		return d
	case *Tuple:
		if a, ok := toArea(x); ok {
			d.Kind = KindArea
			d.Area = a
			return d
		}
		if b, ok := toBuild(x); ok {
			if bp, ok := toBuildWithPos(x, b); ok {
				d.Kind = KindBuildWithPos
				d.BuildWithPos = bp
				return d
			}
			d.Kind = KindBuild
			d.Build = b
			return d
		}
		return d
	case []any:
		return classifyArray(d, x)
	}
	return d
}

func classifyArray(d Display, x []any) Display {
	if len(x) == 0 {
		d.Kind = KindEmpty
		return d
	}
	if lb, ok := toLeaderboard(x); ok {
		d.Kind = KindLeaderboard
		d.Leaderboard = SortLeaderboard(lb)
		return d
	}
	if IsAreaArray(x) {
		d.Kind = KindAreas
		for _, e := range x {
			a, _ := toArea(e.(*Tuple))
			d.Areas = append(d.Areas, a)
		}
		return d
	}
	if IsArrayOfBytes32(x) {
		d.Kind = KindEntities
		for _, e := range x {
			d.Entities = append(d.Entities, e.(string))
		}
		return d
	}
	if AreValidBuilds(x) {
		withPos := make([]voxel.BuildWithPos, 0, len(x))
		builds := make([]voxel.Build, 0, len(x))
		for _, e := range x {
			t := e.(*Tuple)
			b, _ := toBuild(t)
			builds = append(builds, b)
			if bp, ok := toBuildWithPos(t, b); ok {
				withPos = append(withPos, bp)
			}
		}
		if len(withPos) == len(x) {
			d.Kind = KindBuildsWithPos
			d.BuildsWithPos = withPos
			return d
		}
		d.Kind = KindBuilds
		d.Builds = builds
		return d
	}
	d.Kind = KindList
	d.List = x
	return d
}

// IsSafeInteger reports whether v survives conversion to a float64 number.
func IsSafeInteger(v *big.Int) bool {
	return v.CmpAbs(maxSafe) <= 0
}

var maxSafe = big.NewInt(maxSafeInteger)

var (
	bytes32Re = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
	addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

func IsBytes32(s string) bool {
	return bytes32Re.MatchString(s)
}

// IsAddress accepts 0x-prefixed 20-byte hex. Mixed-case input must carry a
// valid EIP-55 checksum.
func IsAddress(s string) bool {
	if !addressRe.MatchString(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func IsArrayOfBytes32(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range arr {
		s, ok := e.(string)
		if !ok || !IsBytes32(s) {
			return false
		}
	}
	return true
}

func IsVoxelCoord(v any) bool {
	_, ok := toCoord(v)
	return ok
}

func IsValidArea(v any) bool {
	t, ok := v.(*Tuple)
	if !ok {
		return false
	}
	_, ok = toArea(t)
	return ok
}

func IsAreaArray(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range arr {
		if !IsValidArea(e) {
			return false
		}
	}
	return true
}

// IsValidBuild checks the objectTypeIds/relativePositions shape. A
// baseWorldCoord field does not affect the result.
func IsValidBuild(v any) bool {
	t, ok := v.(*Tuple)
	if !ok {
		return false
	}
	_, ok = toBuild(t)
	return ok
}

// IsValidBuildWithPos accepts a valid build whose baseWorldCoord, when
// present, is a voxel coordinate.
func IsValidBuildWithPos(v any) bool {
	t, ok := v.(*Tuple)
	if !ok {
		return false
	}
	if _, ok := toBuild(t); !ok {
		return false
	}
	base, has := t.Get("baseWorldCoord")
	return !has || IsVoxelCoord(base)
}

func AreValidBuilds(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range arr {
		if !IsValidBuild(e) {
			return false
		}
	}
	return true
}

func AreValidBuildsWithPos(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	for _, e := range arr {
		if !IsValidBuildWithPos(e) {
			return false
		}
	}
	return true
}

func IsLeaderboardEntry(v any) bool {
	_, ok := toLeaderboardEntry(v)
	return ok
}

func IsLeaderboard(v any) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	_, ok = toLeaderboard(arr)
	return ok
}

func toLeaderboard(arr []any) ([]voxel.LeaderboardEntry, bool) {
	out := make([]voxel.LeaderboardEntry, 0, len(arr))
	for _, e := range arr {
		le, ok := toLeaderboardEntry(e)
		if !ok {
			return nil, false
		}
		out = append(out, le)
	}
	return out, true
}

func toLeaderboardEntry(v any) (voxel.LeaderboardEntry, bool) {
	t, ok := v.(*Tuple)
	if !ok {
		return voxel.LeaderboardEntry{}, false
	}
	p, _ := t.Get("player")
	b, _ := t.Get("balance")
	player, ok := p.(string)
	if !ok || !IsAddress(player) {
		return voxel.LeaderboardEntry{}, false
	}
	balance, ok := b.(*big.Int)
	if !ok || balance == nil {
		return voxel.LeaderboardEntry{}, false
	}
	return voxel.LeaderboardEntry{Player: common.HexToAddress(player), Balance: balance}, true
}

// Object type ids are uint8 on chain and coordinates int32; values outside
// those ranges never classify as builds or areas.
func toCoord(v any) (voxel.VoxelCoord, bool) {
	t, ok := v.(*Tuple)
	if !ok {
		return voxel.VoxelCoord{}, false
	}
	var out [3]int32
	for i, name := range [3]string{"x", "y", "z"} {
		f, _ := t.Get(name)
		n, ok := integer(f)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return voxel.VoxelCoord{}, false
		}
		out[i] = int32(n)
	}
	return voxel.VoxelCoord{X: out[0], Y: out[1], Z: out[2]}, true
}

func toCoords(v any) ([]voxel.VoxelCoord, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]voxel.VoxelCoord, 0, len(arr))
	for _, e := range arr {
		c, ok := toCoord(e)
		if !ok {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

func toArea(t *Tuple) (voxel.Area, bool) {
	lo, _ := t.Get("lowerSouthwestCorner")
	sz, _ := t.Get("size")
	corner, ok := toCoord(lo)
	if !ok {
		return voxel.Area{}, false
	}
	size, ok := toCoord(sz)
	if !ok {
		return voxel.Area{}, false
	}
	return voxel.Area{LowerSouthwestCorner: corner, Size: size}, true
}

func toBuild(t *Tuple) (voxel.Build, bool) {
	ids, _ := t.Get("objectTypeIds")
	arr, ok := ids.([]any)
	if !ok {
		return voxel.Build{}, false
	}
	b := voxel.Build{ObjectTypeIDs: make([]uint8, 0, len(arr))}
	for _, e := range arr {
		n, ok := integer(e)
		if !ok || n < 0 || n > math.MaxUint8 {
			return voxel.Build{}, false
		}
		b.ObjectTypeIDs = append(b.ObjectTypeIDs, uint8(n))
	}
	pos, _ := t.Get("relativePositions")
	coords, ok := toCoords(pos)
	if !ok {
		return voxel.Build{}, false
	}
	b.RelativePositions = coords
	return b, true
}

func toBuildWithPos(t *Tuple, b voxel.Build) (voxel.BuildWithPos, bool) {
	base, has := t.Get("baseWorldCoord")
	if !has {
		return voxel.BuildWithPos{}, false
	}
	c, ok := toCoord(base)
	if !ok {
		return voxel.BuildWithPos{}, false
	}
	return voxel.BuildWithPos{
		ObjectTypeIDs:     b.ObjectTypeIDs,
		RelativePositions: b.RelativePositions,
		BaseWorldCoord:    c,
	}, true
}

// integer accepts numbers only; big integers are not numbers.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// ListEntries reads a trend list. Each element is a tuple with id, name,
// price, builders, blueprint and locations; builders and locations may be
// absent.
func ListEntries(v any) ([]voxel.ListEntry, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]voxel.ListEntry, 0, len(arr))
	for _, e := range arr {
		le, ok := toListEntry(e)
		if !ok {
			return nil, false
		}
		out = append(out, le)
	}
	return out, true
}

func toListEntry(v any) (voxel.ListEntry, bool) {
	t, ok := v.(*Tuple)
	if !ok {
		return voxel.ListEntry{}, false
	}
	idv, _ := t.Get("id")
	pv, _ := t.Get("price")
	id, ok := bigInteger(idv)
	if !ok {
		return voxel.ListEntry{}, false
	}
	price, ok := bigInteger(pv)
	if !ok || price.Sign() < 0 {
		return voxel.ListEntry{}, false
	}
	le := voxel.ListEntry{ID: id, Price: price}
	if n, ok := t.Get("name"); ok {
		if le.Name, ok = n.(string); !ok {
			return voxel.ListEntry{}, false
		}
	}
	bp, _ := t.Get("blueprint")
	bt, ok := bp.(*Tuple)
	if !ok {
		return voxel.ListEntry{}, false
	}
	if le.Blueprint, ok = toBuild(bt); !ok {
		return voxel.ListEntry{}, false
	}
	if bv, has := t.Get("builders"); has {
		arr, ok := bv.([]any)
		if !ok {
			return voxel.ListEntry{}, false
		}
		for _, a := range arr {
			s, ok := a.(string)
			if !ok || !IsAddress(s) {
				return voxel.ListEntry{}, false
			}
			le.Builders = append(le.Builders, common.HexToAddress(s))
		}
	}
	if lv, has := t.Get("locations"); has {
		if le.Locations, ok = toCoords(lv); !ok {
			return voxel.ListEntry{}, false
		}
	}
	return le, true
}

func bigInteger(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case int64:
		return big.NewInt(n), true
	}
	return nil, false
}
