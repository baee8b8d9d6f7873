package deploy

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"biomesxp.io/internal/abiform"
)

var templateRe = regexp.MustCompile(`\{\{\s*([a-z]+)(?::\s*([A-Za-z0-9_]+))?\s*\}\}`)

// templates holds the values plan strings may refer to.
type templates struct {
	world    common.Address
	deployer common.Address
	deployed map[string]common.Address
	lookup   func(name string) (common.Address, error)
}

func (t *templates) contract(name string) (common.Address, error) {
	if a, ok := t.deployed[name]; ok {
		return a, nil
	}
	if t.lookup != nil {
		return t.lookup(name)
	}
	return common.Address{}, fmt.Errorf("contract %s is not deployed", name)
}

func (t *templates) expandString(s string) (string, error) {
	var firstErr error
	out := templateRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := templateRe.FindStringSubmatch(m)
		var (
			a   common.Address
			err error
		)
		switch sub[1] {
		case "world":
			a = t.world
		case "deployer":
			a = t.deployer
		case "contract":
			if sub[2] == "" {
				err = fmt.Errorf("%s: missing contract name", m)
				break
			}
			a, err = t.contract(sub[2])
		default:
			err = fmt.Errorf("unknown template %s", m)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return a.Hex()
	})
	return out, firstErr
}

// expand replaces templates in every string of a YAML value.
func (t *templates) expand(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return t.expandString(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			ev, err := t.expand(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ev, err := t.expand(e)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	}
	return v, nil
}

// encodeArgs turns plan values into packable arguments for params.
func (t *templates) encodeArgs(params []abiform.Param, values []any) ([]any, error) {
	if len(values) != len(params) {
		return nil, fmt.Errorf("want %d args, got %d", len(params), len(values))
	}
	out := make([]any, len(params))
	for i, p := range params {
		v, err := t.expand(values[i])
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		s, err := formString(v)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i], err = abiform.ParseValue(p, s)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
	}
	return out, nil
}

func formString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
