package snapshot

import (
	"strings"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/types"
)

func getField(raw jsonvalue.Value, name string) (jsonvalue.Value, bool) {
	fields, ok := raw.Get("fields")
	if !ok {
		return jsonvalue.Value{}, false
	}
	return fields.Get(name)
}

func setField(raw jsonvalue.Value, name string, val jsonvalue.Value) jsonvalue.Value {
	fields, _ := raw.Get("fields")
	return raw.With("fields", fields.With(name, val))
}

// preferred returns (a, true) if a is non-empty, else (b, b != "").
func preferred(a, b string) (string, bool) {
	if a != "" {
		return a, true
	}
	if b != "" {
		return b, true
	}
	return "", false
}

func objectWithName(name, id string) jsonvalue.Value {
	obj := jsonvalue.Object([]jsonvalue.Member{{Key: "name", Value: jsonvalue.String(name)}})
	if id != "" {
		obj = obj.With("id", jsonvalue.String(id))
	}
	return obj
}

func objectWithDisplayName(name, accountID string) jsonvalue.Value {
	obj := jsonvalue.Object([]jsonvalue.Member{{Key: "displayName", Value: jsonvalue.String(name)}})
	if accountID != "" {
		obj = obj.With("accountId", jsonvalue.String(accountID))
	}
	return obj
}

func stringArray(items []string) jsonvalue.Value {
	arr := make([]jsonvalue.Value, len(items))
	for i, s := range items {
		arr[i] = jsonvalue.String(s)
	}
	return jsonvalue.Array(arr)
}

func namedObjectsFromCommaList(s string) jsonvalue.Value {
	parts := strings.Split(s, ",")
	arr := make([]jsonvalue.Value, len(parts))
	for i, p := range parts {
		arr[i] = jsonvalue.Object([]jsonvalue.Member{{Key: "name", Value: jsonvalue.String(strings.TrimSpace(p))}})
	}
	return jsonvalue.Array(arr)
}

// applyChangeReverse applies one changelog item's "from" value to
// raw_payload, routed by its structural field type. Returns whether this
// was an Unknown field reverting to null with no existing value and no
// from_* to route by.
func applyChangeReverse(raw jsonvalue.Value, change types.ChangeHistoryItem) (jsonvalue.Value, bool) {
	return applyChangeDirectional(raw, change.Field, change.FromString, change.FromValue)
}

// applyChangeForward applies one changelog item's "to" value to
// raw_payload. Same routing as applyChangeReverse, symmetric direction.
func applyChangeForward(raw jsonvalue.Value, change types.ChangeHistoryItem) (jsonvalue.Value, bool) {
	return applyChangeDirectional(raw, change.Field, change.ToString, change.ToValue)
}

func applyChangeDirectional(raw jsonvalue.Value, changelogField, strVal, idVal string) (jsonvalue.Value, bool) {
	fieldName := rawDataFieldName(changelogField)
	ft := typeOfField(changelogField)
	existing, hasExisting := getField(raw, fieldName)

	switch ft {
	case fieldDirectString:
		if s, ok := preferred(strVal, idVal); ok {
			return setField(raw, fieldName, jsonvalue.String(s)), false
		}
		return setField(raw, fieldName, jsonvalue.Null()), false

	case fieldObjectWithName:
		if strVal == "" {
			return setField(raw, fieldName, jsonvalue.Null()), false
		}
		if existing.IsObject() {
			obj := existing.With("name", jsonvalue.String(strVal))
			if idVal != "" {
				obj = obj.With("id", jsonvalue.String(idVal))
			}
			return setField(raw, fieldName, obj), false
		}
		return setField(raw, fieldName, objectWithName(strVal, idVal)), false

	case fieldObjectWithDisplayName:
		if strVal == "" {
			return setField(raw, fieldName, jsonvalue.Null()), false
		}
		if existing.IsObject() {
			obj := existing.With("displayName", jsonvalue.String(strVal))
			if idVal != "" {
				obj = obj.With("accountId", jsonvalue.String(idVal))
			}
			return setField(raw, fieldName, obj), false
		}
		return setField(raw, fieldName, objectWithDisplayName(strVal, idVal)), false

	case fieldObjectWithValue:
		s, ok := preferred(strVal, idVal)
		if !ok {
			return setField(raw, fieldName, jsonvalue.Null()), false
		}
		if existing.IsObject() {
			return setField(raw, fieldName, existing.With("value", jsonvalue.String(s))), false
		}
		return setField(raw, fieldName, jsonvalue.Object([]jsonvalue.Member{{Key: "value", Value: jsonvalue.String(s)}})), false

	case fieldArrayOfStrings:
		if strVal == "" {
			return setField(raw, fieldName, jsonvalue.Array(nil)), false
		}
		return setField(raw, fieldName, stringArray(strings.Fields(strVal))), false

	case fieldArrayOfObjectsWithName:
		if strVal == "" {
			return setField(raw, fieldName, jsonvalue.Array(nil)), false
		}
		return setField(raw, fieldName, namedObjectsFromCommaList(strVal)), false

	default: // fieldUnknown
		return applyUnknownFieldDirectional(raw, fieldName, existing, hasExisting, strVal, idVal)
	}
}

func applyUnknownFieldDirectional(raw jsonvalue.Value, fieldName string, existing jsonvalue.Value, hasExisting bool, strVal, idVal string) (jsonvalue.Value, bool) {
	if !hasExisting {
		if s, ok := preferred(strVal, idVal); ok {
			return setField(raw, fieldName, jsonvalue.String(s)), false
		}
		return setField(raw, fieldName, jsonvalue.Null()), true
	}

	switch {
	case existing.IsObject():
		if _, hasName := existing.Get("name"); hasName {
			if strVal == "" {
				return setField(raw, fieldName, jsonvalue.Null()), false
			}
			obj := existing.With("name", jsonvalue.String(strVal))
			if idVal != "" {
				obj = obj.With("id", jsonvalue.String(idVal))
			}
			return setField(raw, fieldName, obj), false
		}
		if _, hasValue := existing.Get("value"); hasValue {
			if s, ok := preferred(strVal, idVal); ok {
				return setField(raw, fieldName, existing.With("value", jsonvalue.String(s))), false
			}
			return setField(raw, fieldName, jsonvalue.Null()), false
		}
		if _, hasDisplayName := existing.Get("displayName"); hasDisplayName {
			if strVal == "" {
				return setField(raw, fieldName, jsonvalue.Null()), false
			}
			return setField(raw, fieldName, existing.With("displayName", jsonvalue.String(strVal))), false
		}
		if s, ok := preferred(strVal, idVal); ok {
			return setField(raw, fieldName, objectWithName(s, "")), false
		}
		return setField(raw, fieldName, jsonvalue.Null()), false

	case existing.IsArray():
		if strVal == "" {
			return setField(raw, fieldName, jsonvalue.Array(nil)), false
		}
		return setField(raw, fieldName, namedObjectsFromCommaList(strVal)), false

	default:
		if s, ok := preferred(strVal, idVal); ok {
			return setField(raw, fieldName, jsonvalue.String(s)), false
		}
		return setField(raw, fieldName, jsonvalue.Null()), false
	}
}
