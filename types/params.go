package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Params carries string-typed runtime configuration for an algorithm.
// Unknown keys are ignored by the receivers.
type Params map[string]string

// Uint parses key as an unsigned integer. ok is false when the key is absent.
func (p Params) Uint(key string) (v uint64, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	v, err = strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s=%q is not an unsigned integer", ErrConfiguration, key, raw)
	}
	return v, true, nil
}

// Int parses key as a signed integer.
func (p Params) Int(key string) (v int, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	v, err = strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s=%q is not an integer", ErrConfiguration, key, raw)
	}
	return v, true, nil
}

// Float parses key as a float.
func (p Params) Float(key string) (v float64, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s=%q is not a number", ErrConfiguration, key, raw)
	}
	return v, true, nil
}

// Bool parses key as a boolean.
func (p Params) Bool(key string) (v bool, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return false, false, nil
	}
	v, err = strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, true, fmt.Errorf("%w: %s=%q is not a boolean", ErrConfiguration, key, raw)
	}
	return v, true, nil
}

// List splits key on commas, dropping empty entries.
func (p Params) List(key string) ([]string, bool) {
	raw, ok := p[key]
	if !ok {
		return nil, false
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}
