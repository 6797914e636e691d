package jsonvalue

import "testing"

func TestParseRoundTripPreservesMemberOrder(t *testing.T) {
	src := `{"z":1,"a":2,"m":{"b":true,"a":false}}`
	v, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != src {
		t.Fatalf("round trip mismatch: got %s, want %s", out, src)
	}
}

func TestGetPath(t *testing.T) {
	v, err := Parse([]byte(`{"fields":{"status":{"name":"Done"}}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := v.GetPath("fields", "status", "name")
	if !ok || got.Str() != "Done" {
		t.Fatalf("GetPath = %v, %v; want Done, true", got, ok)
	}
	if _, ok := v.GetPath("fields", "missing", "name"); ok {
		t.Fatalf("expected ok=false for missing path")
	}
}

func TestWithPreservesPositionOnUpdate(t *testing.T) {
	v, err := Parse([]byte(`{"a":1,"b":2,"c":3}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	updated := v.With("b", NumberFromInt(99))
	out, err := updated.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != `{"a":1,"b":99,"c":3}` {
		t.Fatalf("got %s", out)
	}
}

func TestWithAppendsNewKey(t *testing.T) {
	v := EmptyObject()
	v = v.With("name", String("x"))
	out, _ := v.MarshalJSON()
	if string(out) != `{"name":"x"}` {
		t.Fatalf("got %s", out)
	}
}

func TestStringItemsNormalizesEmptyToNil(t *testing.T) {
	v, _ := Parse([]byte(`[]`))
	if items := v.StringItems(); items != nil {
		t.Fatalf("expected nil for empty array, got %v", items)
	}
}

func TestNamesOfExtractsNameMembers(t *testing.T) {
	v, err := Parse([]byte(`[{"name":"v1"},{"name":"v2"},{"id":"3"}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names := v.NamesOf()
	if len(names) != 2 || names[0] != "v1" || names[1] != "v2" {
		t.Fatalf("got %v", names)
	}
}

func TestNullIsNull(t *testing.T) {
	v, err := Parse([]byte(`null`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !v.IsNull() {
		t.Fatalf("expected IsNull")
	}
}
