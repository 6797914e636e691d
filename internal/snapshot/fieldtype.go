package snapshot

import "strings"

// fieldType routes a changelog field name to the raw_payload structural
// shape it needs to be reverted/replayed through, grounded on the
// original engine's get_field_type dispatch.
type fieldType int

const (
	fieldDirectString fieldType = iota
	fieldObjectWithName
	fieldObjectWithDisplayName
	fieldObjectWithValue
	fieldArrayOfStrings
	fieldArrayOfObjectsWithName
	fieldUnknown
)

var fieldTypesByName = map[string]fieldType{
	"summary":     fieldDirectString,
	"description": fieldDirectString,
	"environment": fieldDirectString,

	"status":     fieldObjectWithName,
	"priority":   fieldObjectWithName,
	"issuetype":  fieldObjectWithName,
	"resolution": fieldObjectWithName,
	"security":   fieldObjectWithName,
	"sprint":     fieldObjectWithName,
	"parent":     fieldObjectWithName,

	"assignee": fieldObjectWithDisplayName,
	"reporter": fieldObjectWithDisplayName,
	"creator":  fieldObjectWithDisplayName,

	"labels": fieldArrayOfStrings,

	"components":       fieldArrayOfObjectsWithName,
	"fixversions":      fieldArrayOfObjectsWithName,
	"versions":         fieldArrayOfObjectsWithName,
	"affectedversions": fieldArrayOfObjectsWithName,
}

// typeOfField reports the structural class for a changelog field name,
// case-insensitively; anything unrecognized, including customfield_*,
// is fieldUnknown.
func typeOfField(name string) fieldType {
	if t, ok := fieldTypesByName[strings.ToLower(name)]; ok {
		return t
	}
	return fieldUnknown
}

// rawDataFieldName maps a changelog field name onto the key it occupies
// under raw_payload.fields, where the two names diverge.
func rawDataFieldName(name string) string {
	switch strings.ToLower(name) {
	case "issuetype":
		return "issuetype"
	case "fixversions":
		return "fixVersions"
	case "affectedversions":
		return "versions"
	default:
		return name
	}
}
