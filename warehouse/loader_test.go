package warehouse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/healthpulse/healthpulse/logger"
)

func TestRawInsertBatchStatement(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	def := NewTableDefinition("raw", "places_county")
	def.AddColumn("stateabbr", ColumnTypeVarchar)
	def.AddColumn("diabetes_crudeprev", ColumnTypeDouble)
	batch := NewRawInsertBatch(log, def)
	batch.InitBatch(2)
	// Test 1, rows accumulate until the batch is full.
	full, err := batch.AddValuesToBatch([]interface{}{"WI", 7.9})
	if err != nil || full {
		t.Fatal("Test 1, expected room for more rows; got full=", full, " err=", err)
	}
	full, err = batch.AddValuesToBatch([]interface{}{"AL", 11.2})
	if err != nil || !full {
		t.Fatal("Test 1, expected a full batch; got full=", full, " err=", err)
	}
	// Test 2, the generated SQL has one bind group per row.
	expected := `insert into raw.places_county ("stateabbr","diabetes_crudeprev") values ( ?,? ),( ?,? )`
	if got := batch.GetStatement(); got != expected {
		t.Fatalf("Test 2, expected:\n%v\ngot:\n%v", expected, got)
	}
	if len(batch.GetValues()) != 4 {
		t.Fatal("Test 2, expected 4 bind values; got ", len(batch.GetValues()))
	}
	// Test 3, wrong-width rows are rejected.
	batch.InitBatch(2)
	if _, err := batch.AddValuesToBatch([]interface{}{"WI"}); err == nil {
		t.Fatal("Test 3, expected an error for a short row")
	}
}

func TestLoaderLoadJsonFile(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	db, err := OpenConnection(log, "") // in-memory database.
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := EnsureSchemas(log, db); err != nil {
		t.Fatal(err)
	}
	filePath := filepath.Join(t.TempDir(), "places_county_test.json")
	if err := os.WriteFile(filePath, testRawJson, 0644); err != nil {
		t.Fatal(err)
	}
	loader := NewLoader(log, db, 1) // batch size 1 exercises multiple batches.
	n, err := loader.LoadJsonFile(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatal("expected 2 rows loaded; got ", n)
	}
	counts, err := loader.GetRecordCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts["places_county"] != 2 {
		t.Fatal("expected 2 rows counted; got ", counts["places_county"])
	}
	// Load metadata columns are populated.
	rows, err := db.Query(`select count(*) from raw.places_county where loaded_at is not null and source_file is not null`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	rows.Next()
	var withMeta int64
	if err := rows.Scan(&withMeta); err != nil {
		t.Fatal(err)
	}
	if withMeta != 2 {
		t.Fatal("expected load metadata on both rows; got ", withMeta)
	}
}
