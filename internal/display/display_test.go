package display

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/voxel"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	v, err := FromJSON([]byte(s))
	if err != nil {
		t.Fatalf("FromJSON(%s): %v", s, err)
	}
	return v
}

func TestClassify_BigIntDisplay(t *testing.T) {
	cases := []struct {
		in   *big.Int
		kind Kind
		text string
	}{
		{in: big.NewInt(0), kind: KindScalar, text: "0"},
		{in: big.NewInt(42), kind: KindScalar, text: "42"},
		{in: big.NewInt(maxSafeInteger), kind: KindScalar, text: "9007199254740991"},
		{in: big.NewInt(-maxSafeInteger), kind: KindScalar, text: "-9007199254740991"},
		{in: new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)), kind: KindEther, text: "Ξ 1.5"},
		{in: big.NewInt(maxSafeInteger + 1), kind: KindEther, text: "Ξ 0.009"},
		{in: new(big.Int).Mul(big.NewInt(123456789), big.NewInt(1e14)), kind: KindEther, text: "Ξ 12345.6789"},
	}
	var r Renderer
	for _, c := range cases {
		d := Classify(c.in)
		if d.Kind != c.kind {
			t.Fatalf("Classify(%s).Kind=%s want %s", c.in, d.Kind, c.kind)
		}
		if c.kind == KindScalar && d.Scalar.(int64) != c.in.Int64() {
			t.Fatalf("scalar=%v want %s", d.Scalar, c.in)
		}
		if got := r.Render(d, false); got != c.text {
			t.Fatalf("Render(%s)=%q want %q", c.in, got, c.text)
		}
	}
}

func TestIsBytes32(t *testing.T) {
	ok := "0x" + strings.Repeat("ab", 32)
	if !IsBytes32(ok) || !IsBytes32("0x"+strings.Repeat("AB", 32)) {
		t.Fatalf("expected bytes32 accepted")
	}
	for _, s := range []string{
		"",
		strings.Repeat("ab", 32),
		"0x" + strings.Repeat("ab", 31),
		"0x" + strings.Repeat("ab", 33),
		"0x" + strings.Repeat("zz", 32),
		"0X" + strings.Repeat("ab", 32),
	} {
		if IsBytes32(s) {
			t.Fatalf("IsBytes32(%q) = true", s)
		}
	}
}

func TestIsAddress_Checksum(t *testing.T) {
	good := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if !IsAddress(good) || !IsAddress(strings.ToLower(good)) {
		t.Fatalf("expected address accepted")
	}
	bad := "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if IsAddress(bad) {
		t.Fatalf("expected bad checksum rejected")
	}
}

func TestBuildPredicates(t *testing.T) {
	build := mustJSON(t, `{"objectTypeIds":[35,35],"relativePositions":[{"x":0,"y":0,"z":0},{"x":0,"y":0,"z":1}]}`)
	if !IsValidBuild(build) || !IsValidBuildWithPos(build) {
		t.Fatalf("expected build valid")
	}
	if d := Classify(build); d.Kind != KindBuild || len(d.Build.ObjectTypeIDs) != 2 {
		t.Fatalf("Classify(build)=%+v", d)
	}

	withPos := mustJSON(t, `{"objectTypeIds":[35,35],"relativePositions":[{"x":0,"y":0,"z":0},{"x":0,"y":0,"z":1}],"baseWorldCoord":{"x":30,"y":-5,"z":20}}`)
	if !IsValidBuild(withPos) || !IsValidBuildWithPos(withPos) {
		t.Fatalf("expected build with pos valid")
	}
	d := Classify(withPos)
	if d.Kind != KindBuildWithPos || d.BuildWithPos.BaseWorldCoord != (voxel.VoxelCoord{X: 30, Y: -5, Z: 20}) {
		t.Fatalf("Classify(withPos)=%+v", d)
	}

	badBase := mustJSON(t, `{"objectTypeIds":[35],"relativePositions":[{"x":0,"y":0,"z":0}],"baseWorldCoord":{"x":1}}`)
	if !IsValidBuild(badBase) || IsValidBuildWithPos(badBase) {
		t.Fatalf("expected invalid baseWorldCoord to fail only the positioned check")
	}
	if IsValidBuild(mustJSON(t, `{"objectTypeIds":["35"],"relativePositions":[]}`)) {
		t.Fatalf("string ids must not be a build")
	}
}

func TestClassify_Area(t *testing.T) {
	v := mustJSON(t, `{"lowerSouthwestCorner":{"x":384,"y":-150,"z":-120},"size":{"x":35,"y":250,"z":60}}`)
	d := Classify(v)
	if d.Kind != KindArea || d.Area.Size.Y != 250 {
		t.Fatalf("Classify(area)=%+v", d)
	}
	got := Renderer{}.Render(d, true)
	want := "CORNER\nx: 384, y: -150, z: -120\nSIZE\nx: 35, y: 250, z: 60"
	if got != want {
		t.Fatalf("Render(area)=%q want %q", got, want)
	}
	if IsValidArea(mustJSON(t, `{"lowerSouthwestCorner":{"x":1.5,"y":0,"z":0},"size":{"x":1,"y":1,"z":1}}`)) {
		t.Fatalf("non-integer corner must not be an area")
	}
}

func leaderboardEntry(player string, balance int64) *Tuple {
	return NewTuple().Set("player", player).Set("balance", big.NewInt(balance))
}

func TestLeaderboard_SortsDescendingStable(t *testing.T) {
	a := common.HexToAddress("0x000000000000000000000000000000000000000a").Hex()
	b := common.HexToAddress("0x000000000000000000000000000000000000000b").Hex()
	c := common.HexToAddress("0x000000000000000000000000000000000000000c").Hex()
	v := []any{leaderboardEntry(a, 5), leaderboardEntry(b, 10)}
	if !IsLeaderboard(v) {
		t.Fatalf("expected leaderboard")
	}
	d := Classify(v)
	if d.Kind != KindLeaderboard {
		t.Fatalf("kind=%s", d.Kind)
	}
	if d.Leaderboard[0].Player.Hex() != b || d.Leaderboard[1].Player.Hex() != a {
		t.Fatalf("order=%v", d.Leaderboard)
	}
	text := Renderer{}.Render(d, true)
	if strings.Index(text, b) > strings.Index(text, a) {
		t.Fatalf("expected %s before %s in %q", b, a, text)
	}

	ties := Classify([]any{leaderboardEntry(a, 7), leaderboardEntry(c, 9), leaderboardEntry(b, 7)})
	got := []string{ties.Leaderboard[0].Player.Hex(), ties.Leaderboard[1].Player.Hex(), ties.Leaderboard[2].Player.Hex()}
	if got[0] != c || got[1] != a || got[2] != b {
		t.Fatalf("tie order=%v", got)
	}
}

func TestLeaderboard_BalanceMustBeBigInt(t *testing.T) {
	addr := common.HexToAddress("0x0a").Hex()
	v := []any{NewTuple().Set("player", addr).Set("balance", int64(5))}
	if IsLeaderboard(v) {
		t.Fatalf("number balance must not be a leaderboard")
	}
}

func TestClassify_Arrays(t *testing.T) {
	id := "0x" + strings.Repeat("01", 32)
	if d := Classify([]any{id, id}); d.Kind != KindEntities || len(d.Entities) != 2 {
		t.Fatalf("entities=%+v", d)
	}
	if d := Classify([]any{}); d.Kind != KindEmpty {
		t.Fatalf("empty kind=%s", d.Kind)
	}
	areas := mustJSON(t, `[{"lowerSouthwestCorner":{"x":0,"y":0,"z":0},"size":{"x":1,"y":1,"z":1}}]`)
	if d := Classify(areas); d.Kind != KindAreas {
		t.Fatalf("areas kind=%s", d.Kind)
	}
	builds := mustJSON(t, `[{"objectTypeIds":[1],"relativePositions":[{"x":0,"y":0,"z":0}],"baseWorldCoord":{"x":1,"y":2,"z":3}},
		{"objectTypeIds":[2],"relativePositions":[{"x":0,"y":0,"z":0}]}]`)
	if d := Classify(builds); d.Kind != KindBuilds || len(d.Builds) != 2 {
		t.Fatalf("builds=%+v", d)
	}
}

func TestRender_List(t *testing.T) {
	v := []any{int64(1), true, big.NewInt(7), "0x" + strings.Repeat("ff", 32)}
	d := Classify(v)
	if d.Kind != KindList {
		t.Fatalf("kind=%s", d.Kind)
	}
	r := Renderer{}
	if got, want := r.Render(d, true), `[1,true,7,"0x...ffff"]`; got != want {
		t.Fatalf("text=%q want %q", got, want)
	}
	if got, want := r.Render(d, false), "[1,\ntrue,\n7,\n\"0x...ffff\"]"; got != want {
		t.Fatalf("block=%q want %q", got, want)
	}
}

func TestRender_GenericTuple(t *testing.T) {
	v := NewTuple().Set("name", "Trend").Set("price", new(big.Int).Lsh(big.NewInt(1), 70))
	got := Renderer{}.RenderValue(v, false)
	want := "{\n  \"name\": \"Trend\",\n  \"price\": \"1180591620717411303424\"\n}"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRender_AddressLink(t *testing.T) {
	addr := common.HexToAddress("0x0b").Hex()
	r := Renderer{ExplorerURL: "https://explorer.example/"}
	if got := r.RenderValue(addr, true); got != addr {
		t.Fatalf("text=%q", got)
	}
	if got := r.RenderValue(addr, false); got != addr+" (https://explorer.example/address/"+addr+")" {
		t.Fatalf("linked=%q", got)
	}
}

func TestFormatEther(t *testing.T) {
	cases := map[string]*big.Int{
		"0":                    big.NewInt(0),
		"10":                   new(big.Int).Mul(big.NewInt(10), weiPerEther),
		"0.000000000000000005": big.NewInt(5),
		"-1.5":                 new(big.Int).Mul(big.NewInt(-15), big.NewInt(1e17)),
	}
	for want, in := range cases {
		if got := FormatEther(in); got != want {
			t.Fatalf("FormatEther(%s)=%q want %q", in, got, want)
		}
	}
}

func TestTruncateEntity(t *testing.T) {
	if got := TruncateEntity("0x" + strings.Repeat("0", 60) + "beef"); got != "0x...beef" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateEntity("0x1234"); got != "0x1234" {
		t.Fatalf("short ids stay intact, got %q", got)
	}
}

func TestIsLeaderboardEntry(t *testing.T) {
	addr := common.HexToAddress("0x0a").Hex()
	cases := []struct {
		name string
		in   any
		want bool
	}{
		{"entry", leaderboardEntry(addr, 3), true},
		{"number balance", NewTuple().Set("player", addr).Set("balance", int64(3)), false},
		{"bad player", NewTuple().Set("player", "0x0a").Set("balance", big.NewInt(3)), false},
		{"missing balance", NewTuple().Set("player", addr), false},
		{"not a tuple", addr, false},
	}
	for _, tc := range cases {
		if got := IsLeaderboardEntry(tc.in); got != tc.want {
			t.Fatalf("%s: IsLeaderboardEntry=%v want %v", tc.name, got, tc.want)
		}
	}
}

func listEntry(id, price int64, builders []any) *Tuple {
	blueprint := NewTuple().
		Set("objectTypeIds", []any{int64(3)}).
		Set("relativePositions", []any{NewTuple().Set("x", int64(0)).Set("y", int64(1)).Set("z", int64(-2))})
	return NewTuple().
		Set("id", big.NewInt(id)).
		Set("name", "Tower").
		Set("price", big.NewInt(price)).
		Set("builders", builders).
		Set("blueprint", blueprint).
		Set("locations", []any{NewTuple().Set("x", int64(10)).Set("y", int64(20)).Set("z", int64(30))})
}

func TestListEntries(t *testing.T) {
	builder := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	list, ok := ListEntries([]any{listEntry(1, 5e15, []any{builder.Hex()}), listEntry(2, 0, []any{})})
	if !ok || len(list) != 2 {
		t.Fatalf("list=%+v ok=%v", list, ok)
	}
	e := list[0]
	if e.ID.Int64() != 1 || e.Price.Int64() != 5e15 || e.Name != "Tower" {
		t.Fatalf("entry=%+v", e)
	}
	if len(e.Builders) != 1 || e.Builders[0] != builder {
		t.Fatalf("builders=%v", e.Builders)
	}
	if len(e.Blueprint.ObjectTypeIDs) != 1 || e.Blueprint.RelativePositions[0] != (voxel.VoxelCoord{X: 0, Y: 1, Z: -2}) {
		t.Fatalf("blueprint=%+v", e.Blueprint)
	}
	if len(e.Locations) != 1 || e.Locations[0].Z != 30 {
		t.Fatalf("locations=%v", e.Locations)
	}

	noPrice := listEntry(3, 1, nil)
	noPrice.Set("price", "1")
	if _, ok := ListEntries([]any{noPrice}); ok {
		t.Fatalf("string price must not be a list entry")
	}
	badBuilder := listEntry(4, 1, []any{"0x01"})
	if _, ok := ListEntries([]any{badBuilder}); ok {
		t.Fatalf("bad builder must not be a list entry")
	}
	if _, ok := ListEntries(listEntry(5, 1, nil)); ok {
		t.Fatalf("a single tuple is not a list")
	}
}
