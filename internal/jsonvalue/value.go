// Package jsonvalue represents the open, semi-structured JSON documents
// returned by the remote tracker (issue payloads, changelog field values)
// as a tagged-union tree instead of binding them to a static Go struct.
//
// Object member order is preserved so that round-tripping an unmodified
// payload keeps the remote's member order, which matters because
// raw_payload is carried through the sync and snapshot pipelines largely
// unchanged. Output is compact JSON with strings re-escaped by
// encoding/json, so input whitespace and escape spellings are not kept.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which branch of the tagged union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a single node in a parsed JSON document.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	array   []Value
	members []Member // object, insertion order preserved
}

// Member is one key/value pair of an object, in the order it was parsed.
type Member struct {
	Key   string
	Value Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric literal, preserving its original textual form.
func Number(n json.Number) Value { return Value{kind: KindNumber, number: n} }

// NumberFromInt wraps an int as a Number.
func NumberFromInt(n int) Value { return Number(json.Number(fmt.Sprintf("%d", n))) }

// Array wraps a slice of values.
func Array(items []Value) Value { return Value{kind: KindArray, array: items} }

// Object builds an object from ordered members.
func Object(members []Member) Value { return Value{kind: KindObject, members: members} }

// EmptyObject returns an object with no members.
func EmptyObject() Value { return Value{kind: KindObject} }

// Kind reports which branch of the union v holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsObject() bool { return v.kind == KindObject }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsString() bool { return v.kind == KindString }

// Str returns the string payload, or "" if v is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Items returns the element slice, or nil if v is not an array.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.array
}

// Members returns the ordered key/value pairs, or nil if v is not an object.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Get returns the value of the named member and whether it was present.
// Returns (Null, false) for non-objects and missing keys.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// GetPath walks a chain of object keys (fields.status.name style access)
// and returns the value at the end of the path, or Null if any segment
// is missing or not an object.
func (v Value) GetPath(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// With returns a copy of v (an object) with key set to val, preserving the
// position of an existing key or appending a new member at the end.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindObject {
		return Object([]Member{{Key: key, Value: val}})
	}
	members := make([]Member, len(v.members))
	copy(members, v.members)
	for i, m := range members {
		if m.Key == key {
			members[i].Value = val
			return Object(members)
		}
	}
	return Object(append(members, Member{Key: key, Value: val}))
}

// StringItems converts an array of strings into []string, skipping any
// non-string elements. Returns nil for a non-array or empty array, matching
// the "empty arrays are normalized to absent" convention used for labels.
func (v Value) StringItems() []string {
	if v.kind != KindArray || len(v.array) == 0 {
		return nil
	}
	out := make([]string, 0, len(v.array))
	for _, item := range v.array {
		if item.kind == KindString {
			out = append(out, item.str)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NamesOf extracts the "name" member of each element of an array of
// objects (the components/fixVersions/versions shape), skipping elements
// that lack a string "name".
func (v Value) NamesOf() []string {
	if v.kind != KindArray || len(v.array) == 0 {
		return nil
	}
	out := make([]string, 0, len(v.array))
	for _, item := range v.array {
		if name, ok := item.Get("name"); ok && name.kind == KindString {
			out = append(out, name.str)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MarshalJSON renders v back to JSON, preserving object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.number == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(string(v.number))
		}
	case KindString:
		data, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON parses data into v, preserving object member order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse parses a JSON document into a Value tree.
func Parse(data []byte) (Value, error) {
	var v Value
	if len(data) == 0 {
		return Null(), nil
	}
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var members []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("jsonvalue: expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Object(members), nil
		case '[':
			var items []Value
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(items), nil
		default:
			return Value{}, fmt.Errorf("jsonvalue: unexpected delimiter %v", t)
		}
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return Value{}, fmt.Errorf("jsonvalue: unsupported token %T", tok)
	}
}
