package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ValueKind discriminates the JSON-representable variants of Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is a recursively-canonicalizable JSON value.
//
// Hyperparameters arrive as arbitrary JSON; modeling them as a tagged union
// lets the canonicalization rules apply uniformly regardless of the source
// representation. Integers and floats are kept as distinct kinds so integer
// hyperparameters never pick up a float rendering.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	list []Value
	m    []Entry
}

// Entry is a single key/value pair of a map Value. Entry order in a map is
// insertion order; canonical encoding sorts by key.
type Entry struct {
	Key   string
	Value Value
}

func Null() Value              { return Value{kind: KindNull} }
func Bool(v bool) Value        { return Value{kind: KindBool, b: v} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value      { return Value{kind: KindUint, u: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func List(vs ...Value) Value   { return Value{kind: KindList, list: vs} }
func Map(es ...Entry) Value    { return Value{kind: KindMap, m: es} }
func (v Value) Kind() ValueKind { return v.kind }

// Entries returns the map entries in insertion order. It returns nil for
// non-map values.
func (v Value) Entries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// ParseValue decodes a single JSON value into a Value.
//
// Numbers are kept exact: integer literals become KindInt (or KindUint when
// they only fit in uint64), everything else becomes KindFloat. Trailing data
// after the value is rejected.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, newError(KindParse, "CW-VALUE-002", "trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, wrapError(KindParse, "CW-VALUE-001", "invalid JSON value", err)
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '[':
			var list []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				list = append(list, elem)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, wrapError(KindParse, "CW-VALUE-001", "invalid JSON value", err)
			}
			return List(list...), nil
		case '{':
			var entries []Entry
			seen := make(map[string]bool)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, wrapError(KindParse, "CW-VALUE-001", "invalid JSON value", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, newError(KindParse, "CW-VALUE-003", "object key is not a string")
				}
				if seen[key] {
					return Value{}, newError(KindParse, "CW-VALUE-004", fmt.Sprintf("duplicate object key %q", key))
				}
				seen[key] = true
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				entries = append(entries, Entry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, wrapError(KindParse, "CW-VALUE-001", "invalid JSON value", err)
			}
			return Map(entries...), nil
		}
	}
	return Value{}, newError(KindParse, "CW-VALUE-001", "invalid JSON value")
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		if u, err := parseUint(s); err == nil {
			return Uint(u), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, wrapError(KindParse, "CW-VALUE-005", fmt.Sprintf("number %s not representable", s), err)
	}
	return Float(f), nil
}
