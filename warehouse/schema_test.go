package warehouse

import (
	"strings"
	"testing"

	"github.com/healthpulse/healthpulse/logger"
)

var testRawJson = []byte(`[
  {"stateabbr": "WI", "statedesc": "Wisconsin", "countyname": "Dane", "countyfips": "55025",
   "totalpopulation": "561504", "diabetes_crudeprev": "7.9",
   "extracted_at": "2025-06-01T10:30:00.000", "geolocation": {"type": "Point", "coordinates": [-89.4, 43.0]}},
  {"stateabbr": "AL", "statedesc": "Alabama", "countyname": "Autauga", "countyfips": "01001",
   "totalpopulation": "58805", "diabetes_crudeprev": "11.2",
   "extracted_at": "2025-06-01T10:30:00.000", "new_measure": "1.5"}
]`)

func TestParseRecords(t *testing.T) {
	// Test 1, array of objects parses with wire-order keys.
	records, keyOrder, err := ParseRecords(testRawJson)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatal("Test 1, expected 2 records; got ", len(records))
	}
	if keyOrder[0] != "stateabbr" || keyOrder[3] != "countyfips" {
		t.Fatal("Test 1, unexpected key order: ", keyOrder)
	}
	// Test 2, an envelope with a data array parses too.
	records, _, err = ParseRecords([]byte(`{"data": [{"stateabbr": "WI"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0]["stateabbr"] != "WI" {
		t.Fatal("Test 2, unexpected records: ", records)
	}
	// Test 3, empty input yields no records and no error.
	records, _, err = ParseRecords([]byte("  "))
	if err != nil || records != nil {
		t.Fatal("Test 3, expected nil records and nil error; got ", records, err)
	}
}

func TestInferSchema(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	records, keyOrder, err := ParseRecords(testRawJson)
	if err != nil {
		t.Fatal(err)
	}
	def := InferSchema(log, "raw", "places_county", records, keyOrder)
	expectType := func(col string, expected ColumnType) {
		got, ok := def.ColumnType(col)
		if !ok {
			t.Fatal("missing column ", col)
		}
		if got != expected {
			t.Fatalf("column %v: expected %v; got %v", col, expected, got)
		}
	}
	expectType("stateabbr", ColumnTypeVarchar)
	// FIPS codes carry leading zeros so must stay text even though some parse as ints.
	expectType("countyfips", ColumnTypeVarchar)
	expectType("totalpopulation", ColumnTypeBigint)
	expectType("diabetes_crudeprev", ColumnTypeDouble)
	expectType("extracted_at", ColumnTypeTimestamp)
	// Nested objects degrade to JSON text.
	expectType("geolocation", ColumnTypeVarchar)
	// Keys first seen in later records are appended after the wire-order keys.
	cols := def.Columns()
	if cols[len(cols)-1] != "new_measure" {
		t.Fatal("expected late-seen key appended last; got ", cols)
	}
}

func TestCreateTableSql(t *testing.T) {
	def := NewTableDefinition("raw", "places_county")
	def.AddColumn("stateabbr", ColumnTypeVarchar)
	def.AddColumn("totalpopulation", ColumnTypeBigint)
	got := def.CreateTableSql()
	expected := `create table if not exists raw.places_county ("stateabbr" VARCHAR, "totalpopulation" BIGINT)`
	if got != expected {
		t.Fatalf("expected:\n%v\ngot:\n%v", expected, got)
	}
}

func TestCoerceValue(t *testing.T) {
	// Test 1, nulls pass through for every type.
	for _, ct := range []ColumnType{ColumnTypeVarchar, ColumnTypeBigint, ColumnTypeDouble, ColumnTypeTimestamp} {
		v, err := CoerceValue(nil, ct)
		if err != nil || v != nil {
			t.Fatal("Test 1, expected nil/nil for null input; got ", v, err)
		}
	}
	// Test 2, numeric strings coerce.
	v, err := CoerceValue("11.2", ColumnTypeDouble)
	if err != nil || v.(float64) != 11.2 {
		t.Fatal("Test 2, expected 11.2; got ", v, err)
	}
	// Test 3, malformed values are a hard error, not a soft null.
	if _, err := CoerceValue("not-a-number", ColumnTypeDouble); err == nil {
		t.Fatal("Test 3, expected an error coercing text to DOUBLE")
	}
	// Test 4, nested values render as JSON text for VARCHAR columns.
	v, err = CoerceValue(map[string]interface{}{"type": "Point"}, ColumnTypeVarchar)
	if err != nil || !strings.Contains(v.(string), "Point") {
		t.Fatal("Test 4, expected JSON text; got ", v, err)
	}
}
