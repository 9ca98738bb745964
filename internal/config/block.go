package config

import (
	"fmt"
	"strings"
)

// ValueType classifies a single option argument the way the option block grammar does:
// strings, numbers and truth values.
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeBoolean
	TypeOther
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "truth value"
	default:
		return "unsupported value"
	}
}

// TypeOf reports the ValueType of a decoded option argument.
func TypeOf(v interface{}) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return TypeNumber
	default:
		return TypeOther
	}
}

// Item is a single option inside a target block: a key followed by zero or more arguments.
type Item struct {
	Key    string        `mapstructure:"key"`
	Values []interface{} `mapstructure:"values"`
}

// Block is the ordered option list configured for one target.
type Block []Item

// Is reports whether the item key equals name, ignoring case.
func (it Item) Is(name string) bool {
	return strings.EqualFold(it.Key, name)
}

// NumberAt returns argument i as float64 if it is numeric.
func (it Item) NumberAt(i int) (float64, bool) {
	if i < 0 || i >= len(it.Values) {
		return 0, false
	}
	switch n := it.Values[i].(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// StringAt returns argument i if it is a string.
func (it Item) StringAt(i int) (string, bool) {
	if i < 0 || i >= len(it.Values) {
		return "", false
	}
	s, ok := it.Values[i].(string)
	return s, ok
}

// TypeAt returns the ValueType of argument i.
func (it Item) TypeAt(i int) ValueType {
	if i < 0 || i >= len(it.Values) {
		return TypeOther
	}
	return TypeOf(it.Values[i])
}

func (it Item) String() string {
	parts := make([]string, 0, len(it.Values)+1)
	parts = append(parts, it.Key)
	for _, v := range it.Values {
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("%q", s))
			continue
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " ")
}
