package voxel

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "mem://voxel/"

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemaErr = err
		return
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemaErr = err
			return
		}
		if err := c.AddResource(schemaBase+e.Name(), bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
	}
	schemas = map[string]*jsonschema.Schema{}
	for _, e := range entries {
		s, err := c.Compile(schemaBase + e.Name())
		if err != nil {
			schemaErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		schemas[e.Name()] = s
	}
}

// validate decodes text and checks it against the named schema. Every
// failure collapses into ErrInvalidJSON. Numbers stay json.Number so
// integral values written with a fraction or exponent keep their exact
// value.
func validate(name string, text []byte) (any, error) {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	s := schemas[name]
	if s == nil {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, ErrInvalidJSON
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrInvalidJSON
	}
	if err := s.Validate(v); err != nil {
		return nil, ErrInvalidJSON
	}
	return v, nil
}

// decode validates text, rewrites integral numbers like 1.0 or 1e2 in
// plain integer form, and unmarshals the result into out.
func decode(name string, text []byte, out any) error {
	v, err := validate(name, text)
	if err != nil {
		return err
	}
	b, err := json.Marshal(integral(v))
	if err != nil {
		return ErrInvalidJSON
	}
	if err := json.Unmarshal(b, out); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

func integral(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integral(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integral(e)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		if r, ok := new(big.Rat).SetString(t.String()); ok && r.IsInt() {
			return json.Number(r.Num().String())
		}
	}
	return v
}

func ParseCoordJSON(text []byte) (VoxelCoord, error) {
	var c VoxelCoord
	err := decode("coord.schema.json", text, &c)
	return c, err
}

func ParseAreaJSON(text []byte) (Area, error) {
	var a Area
	err := decode("area.schema.json", text, &a)
	return a, err
}

// ParseBuildJSON accepts a pasted build. A baseWorldCoord, if present, is
// validated but dropped.
func ParseBuildJSON(text []byte) (Build, error) {
	var b Build
	err := decode("build.schema.json", text, &b)
	return b, err
}

func ParseBuildWithPosJSON(text []byte) (BuildWithPos, error) {
	var b BuildWithPos
	err := decode("build_with_pos.schema.json", text, &b)
	return b, err
}

// ParseBaseWorldCoordJSON extracts baseWorldCoord from a pasted build.
func ParseBaseWorldCoordJSON(text []byte) (VoxelCoord, error) {
	var b struct {
		BaseWorldCoord VoxelCoord `json:"baseWorldCoord"`
	}
	err := decode("base_world_coord.schema.json", text, &b)
	return b.BaseWorldCoord, err
}

func MarshalBuild(b Build) ([]byte, error) {
	return json.Marshal(b)
}

func MarshalBuildWithPos(b BuildWithPos) ([]byte, error) {
	return json.Marshal(b)
}

func MarshalArea(a Area) ([]byte, error) {
	return json.Marshal(a)
}
