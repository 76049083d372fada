package meshconfig

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// decodeObject fills the json-tagged fields of dst (a pointer to a struct
// without its own UnmarshalJSON) from data by exact key match. Keys that do
// not map to a field, that hold null, or whose value does not fit the
// field's type are returned untouched so they can be written back verbatim.
//
// A nil map and nil error mean data was JSON null.
func decodeObject(data []byte, dst interface{}) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	placed := make(map[string]bool, len(obj))

	for i := 0; i < rt.NumField(); i++ {
		key := jsonKey(rt.Field(i))
		if key == "" {
			continue
		}
		raw, ok := obj[key]
		if !ok || isNull(raw) {
			continue
		}
		field := rv.Field(i)
		if err := json.Unmarshal(raw, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		placed[key] = true
	}

	extra := make(map[string]json.RawMessage, len(obj)-len(placed))
	for k, v := range obj {
		if !placed[k] {
			extra[k] = v
		}
	}
	return extra, nil
}

// encodeObject marshals src (a struct without its own MarshalJSON) and
// appends extra keys in sorted order after the struct's fields.
func encodeObject(src interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	known, err := marshal(src)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return known, nil
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(known[:len(known)-1])
	needComma := len(known) > 2
	for _, k := range keys {
		if needComma {
			buf.WriteByte(',')
		}
		needComma = true
		name, err := marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal is json.Marshal without HTML escaping, so titles like "A & B"
// round-trip as written.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func jsonKey(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// isFalsy reports whether raw is absent or a JSON value the server treats as unset.
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}
