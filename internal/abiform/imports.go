package abiform

import (
	"encoding/json"
	"strings"

	"biomesxp.io/internal/display"
	"biomesxp.io/internal/voxel"
)

// ImportKind selects which pasted JSON a write form accepts.
type ImportKind int

const (
	ImportNone ImportKind = iota
	ImportArea
	ImportBuild
	ImportBuildWithPos
	ImportBaseWorldCoord
	ImportEntityID
)

func (k ImportKind) String() string {
	switch k {
	case ImportArea:
		return "area"
	case ImportBuild:
		return "build"
	case ImportBuildWithPos:
		return "build_with_pos"
	case ImportBaseWorldCoord:
		return "base_world_coord"
	case ImportEntityID:
		return "entity_id"
	}
	return "none"
}

const (
	coordInternal      = "struct VoxelCoord"
	coordArrayInternal = "struct VoxelCoord[]"
)

func isCoord(p Param) bool {
	return p.Type == "tuple" && p.InternalType == coordInternal
}

// DetectImport inspects a function's inputs for the shapes a Biomes build
// or area export can fill.
func DetectImport(fn Function) ImportKind {
	in := fn.Inputs
	var hasIDs, hasPositions, hasBase bool
	for _, p := range in {
		switch {
		case p.Name == "objectTypeIds" && p.Type == "uint8[]":
			hasIDs = true
		case p.Name == "relativePositions" && p.Type == "tuple[]" && p.InternalType == coordArrayInternal:
			hasPositions = true
		case p.Name == "baseWorldCoord" && isCoord(p):
			hasBase = true
		}
	}
	switch {
	case len(in) == 2 && isCoord(in[0]) && isCoord(in[1]):
		return ImportArea
	case hasIDs && hasPositions && !hasBase:
		return ImportBuild
	case hasIDs && hasPositions && hasBase:
		return ImportBuildWithPos
	case hasBase:
		return ImportBaseWorldCoord
	case len(in) == 1 && in[0].Name == "_entityId" && in[0].Type == "bytes32":
		return ImportEntityID
	}
	return ImportNone
}

// Import fills the form from pasted JSON. Any failure, including a form
// that cannot take the given kind, is voxel.ErrInvalidJSON.
func (f *Form) Import(kind ImportKind, text []byte) error {
	switch kind {
	case ImportArea:
		a, err := voxel.ParseAreaJSON(text)
		if err != nil {
			return err
		}
		if len(f.keys) != 2 {
			return voxel.ErrInvalidJSON
		}
		return f.setJSON(map[int]any{0: a.LowerSouthwestCorner, 1: a.Size})
	case ImportBuild:
		b, err := voxel.ParseBuildJSON(text)
		if err != nil {
			return err
		}
		return f.setBuild(b.ObjectTypeIDs, b.RelativePositions, nil)
	case ImportBuildWithPos:
		b, err := voxel.ParseBuildWithPosJSON(text)
		if err != nil {
			return err
		}
		base := b.BaseWorldCoord
		return f.setBuild(b.ObjectTypeIDs, b.RelativePositions, &base)
	case ImportBaseWorldCoord:
		c, err := voxel.ParseBaseWorldCoordJSON(text)
		if err != nil {
			return err
		}
		i := f.inputIndex("baseWorldCoord")
		if i < 0 {
			return voxel.ErrInvalidJSON
		}
		return f.setJSON(map[int]any{i: c})
	case ImportEntityID:
		id := strings.TrimSpace(string(text))
		var quoted string
		if err := json.Unmarshal(text, &quoted); err == nil {
			id = quoted
		}
		if !display.IsBytes32(id) || len(f.keys) != 1 {
			return voxel.ErrInvalidJSON
		}
		return f.SetInput(0, id)
	}
	return voxel.ErrInvalidJSON
}

func (f *Form) setBuild(ids []uint8, pos []voxel.VoxelCoord, base *voxel.VoxelCoord) error {
	idsIdx, posIdx := f.inputIndex("objectTypeIds"), f.inputIndex("relativePositions")
	if idsIdx < 0 || posIdx < 0 {
		return voxel.ErrInvalidJSON
	}
	numbers := make([]int, len(ids))
	for i, id := range ids {
		numbers[i] = int(id)
	}
	if pos == nil {
		pos = []voxel.VoxelCoord{}
	}
	vals := map[int]any{idsIdx: numbers, posIdx: pos}
	if base != nil {
		baseIdx := f.inputIndex("baseWorldCoord")
		if baseIdx < 0 {
			return voxel.ErrInvalidJSON
		}
		vals[baseIdx] = *base
	}
	return f.setJSON(vals)
}

func (f *Form) setJSON(vals map[int]any) error {
	encoded := map[int]string{}
	for i, v := range vals {
		b, err := json.Marshal(v)
		if err != nil {
			return voxel.ErrInvalidJSON
		}
		encoded[i] = string(b)
	}
	for i, s := range encoded {
		if err := f.SetInput(i, s); err != nil {
			return voxel.ErrInvalidJSON
		}
	}
	return nil
}

func (f *Form) inputIndex(name string) int {
	for i, p := range f.fn.Inputs {
		if p.Name == name {
			return i
		}
	}
	return -1
}
