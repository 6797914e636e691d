package repo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
)

// timeLayout is the on-disk textual format for all timestamp columns.
const timeLayout = time.RFC3339Nano

func timeToCol(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func ptrTimeToCol(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return timeToCol(*t)
}

func colToTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func colToPtrTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// stringsToCol serializes an ordered string sequence to a JSON array
// column, or a SQL NULL for a nil (absent) slice.
func stringsToCol(ss []string) sql.NullString {
	if ss == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func colToStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

func jsonValueToCol(v jsonvalue.Value) sql.NullString {
	if v.IsNull() {
		return sql.NullString{}
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func colToJSONValue(s sql.NullString) jsonvalue.Value {
	if !s.Valid || s.String == "" {
		return jsonvalue.Null()
	}
	v, err := jsonvalue.Parse([]byte(s.String))
	if err != nil {
		return jsonvalue.Null()
	}
	return v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
