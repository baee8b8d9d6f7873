package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"biomesxp.io/internal/voxel"
)

// Renderer turns classified results into text.
type Renderer struct {
	// ExplorerURL, when set, is used to link addresses outside text mode.
	ExplorerURL string
}

// Render formats d. asText drops links and line splitting so the output
// can be embedded inside other values.
func (r Renderer) Render(d Display, asText bool) string {
	switch d.Kind {
	case KindEmpty:
		return ""
	case KindScalar:
		return scalarText(d.Scalar)
	case KindEther:
		return FormatBigInt(d.Ether)
	case KindEntityID:
		return TruncateEntity(d.Entity)
	case KindAddress:
		if asText || r.ExplorerURL == "" {
			return d.Address
		}
		return fmt.Sprintf("%s (%s/address/%s)", d.Address, strings.TrimRight(r.ExplorerURL, "/"), d.Address)
	case KindArea:
		return renderArea(d.Area)
	case KindBuild:
		return renderBuild(d.Build.ObjectTypeIDs, d.Build.RelativePositions, nil)
	case KindBuildWithPos:
		base := d.BuildWithPos.BaseWorldCoord
		return renderBuild(d.BuildWithPos.ObjectTypeIDs, d.BuildWithPos.RelativePositions, &base)
	case KindLeaderboard:
		return r.renderLeaderboard(d.Leaderboard)
	case KindAreas:
		parts := make([]string, len(d.Areas))
		for i, a := range d.Areas {
			parts[i] = renderArea(a)
		}
		return joinBlocks(parts)
	case KindEntities:
		parts := make([]string, len(d.Entities))
		for i, e := range d.Entities {
			parts[i] = TruncateEntity(e)
		}
		return joinBlocks(parts)
	case KindBuilds:
		parts := make([]string, len(d.Builds))
		for i, b := range d.Builds {
			parts[i] = renderBuild(b.ObjectTypeIDs, b.RelativePositions, nil)
		}
		return joinBlocks(parts)
	case KindBuildsWithPos:
		parts := make([]string, len(d.BuildsWithPos))
		for i, b := range d.BuildsWithPos {
			base := b.BaseWorldCoord
			parts[i] = renderBuild(b.ObjectTypeIDs, b.RelativePositions, &base)
		}
		return joinBlocks(parts)
	case KindList:
		readable := make([]any, len(d.List))
		for i, e := range d.List {
			readable[i] = r.mostReadable(e)
		}
		s := JSON(readable, 0)
		if asText {
			return s
		}
		return strings.ReplaceAll(s, ",", ",\n")
	default:
		return JSON(d.Value, 2)
	}
}

// RenderValue classifies and renders v in one step.
func (r Renderer) RenderValue(v any, asText bool) string {
	return r.Render(Classify(v), asText)
}

func (r Renderer) mostReadable(v any) any {
	switch x := v.(type) {
	case int64, float64, bool:
		return x
	}
	d := Classify(v)
	if d.Kind == KindScalar {
		return d.Scalar
	}
	return r.Render(d, true)
}

func (r Renderer) renderLeaderboard(entries []voxel.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("Player\tBalance")
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(r.Render(Display{Kind: KindAddress, Address: e.Player.Hex()}, true))
		b.WriteByte('\t')
		b.WriteString(FormatEther(e.Balance) + " " + EtherSymbol)
	}
	return b.String()
}

func scalarText(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func coordText(c voxel.VoxelCoord) string {
	return fmt.Sprintf("x: %d, y: %d, z: %d", c.X, c.Y, c.Z)
}

func renderArea(a voxel.Area) string {
	return "CORNER\n" + coordText(a.LowerSouthwestCorner) + "\nSIZE\n" + coordText(a.Size)
}

func renderBuild(ids []uint8, pos []voxel.VoxelCoord, base *voxel.VoxelCoord) string {
	var b strings.Builder
	b.WriteString("BLOCKS")
	if len(ids) == 0 {
		b.WriteString("\nNone")
	}
	for _, id := range ids {
		b.WriteString("\n" + strconv.Itoa(int(id)))
	}
	b.WriteString("\nCONFIGURATION")
	if len(pos) == 0 {
		b.WriteString("\nNone")
	}
	for _, p := range pos {
		b.WriteString("\n" + coordText(p))
	}
	if base != nil {
		b.WriteString("\nPOSITION\n" + coordText(*base))
	}
	return b.String()
}

func joinBlocks(parts []string) string {
	return strings.Join(parts, "\n---\n")
}

func indentJSON(b []byte, indent int) string {
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", strings.Repeat(" ", indent)); err != nil {
		return string(b)
	}
	return out.String()
}
