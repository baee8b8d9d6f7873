package display

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"biomesxp.io/internal/voxel"
)

const EtherSymbol = "Ξ"

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatEther renders a wei amount in ether with full precision and no
// trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)
	q, r := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))
	s := q.String()
	if r.Sign() != 0 {
		frac := fmt.Sprintf("%018s", r.String())
		s += "." + strings.TrimRight(frac, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}

// FormatBigInt renders a big integer the way a scalar cell shows it: the
// plain number inside the float-safe range, otherwise an ether amount
// rounded to four decimals.
func FormatBigInt(v *big.Int) string {
	if v == nil {
		return ""
	}
	if IsSafeInteger(v) {
		return v.String()
	}
	f, _ := strconv.ParseFloat(FormatEther(v), 64)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 4, 64), 64)
	if rounded == 0 {
		return EtherSymbol + " " + v.String()
	}
	return EtherSymbol + " " + formatNumber(rounded)
}

func formatNumber(f float64) string {
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TruncateEntity shortens long ids to 0x...abcd.
func TruncateEntity(s string) string {
	if len(s) < 10 {
		return s
	}
	return s[:2] + "..." + s[len(s)-4:]
}

// SortLeaderboard orders entries by balance, highest first. Ties keep their
// input order. The input slice is not modified.
func SortLeaderboard(entries []voxel.LeaderboardEntry) []voxel.LeaderboardEntry {
	out := append([]voxel.LeaderboardEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Balance.Cmp(out[j].Balance) > 0
	})
	return out
}

// JSON encodes v with big integers as strings. indent > 0 pretty-prints.
func JSON(v any, indent int) string {
	b, err := marshalNoEscape(Replace(v))
	if err != nil {
		return ""
	}
	if indent <= 0 {
		return string(b)
	}
	return indentJSON(b, indent)
}
