package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/healthpulse/healthpulse/config"
	"github.com/healthpulse/healthpulse/logger"
)

func testConfig(baseUrl string, rawDir string) *config.Extract {
	return &config.Extract{
		BaseUrl:    baseUrl,
		Dataset:    "d3i6-k6z5",
		PageLimit:  2,
		TimeoutSec: 5,
		MaxRetries: 0,
		RawDir:     rawDir,
	}
}

func TestExtractorPagination(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	data := []map[string]interface{}{
		{"stateabbr": "AL", "countyfips": "01001", "countyname": "Autauga", "diabetes_crudeprev": "11.2"},
		{"stateabbr": "AL", "countyfips": "01003", "countyname": "Baldwin", "diabetes_crudeprev": "11.5"},
		{"stateabbr": "WI", "countyfips": "55025", "countyname": "Dane", "diabetes_crudeprev": "7.9"},
	}
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/d3i6-k6z5.json") {
			t.Error("unexpected path: ", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("$limit") != "2" || q.Get("$order") != "countyfips" {
			t.Error("unexpected query: ", r.URL.RawQuery)
		}
		offsets = append(offsets, q.Get("$offset"))
		limit, offset := 2, 0
		if q.Get("$offset") == "2" {
			offset = 2
		}
		end := offset + limit
		if end > len(data) {
			end = len(data)
		}
		_ = json.NewEncoder(w).Encode(data[offset:end])
	}))
	defer srv.Close()
	result, err := NewExtractor(log, testConfig(srv.URL, t.TempDir())).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Test 1, a full first page forces a second fetch; the short page stops it.
	if len(offsets) != 2 || offsets[0] != "0" || offsets[1] != "2" {
		t.Fatal("Test 1, unexpected offsets: ", offsets)
	}
	if result.Rows != 3 || result.Pages != 2 {
		t.Fatalf("Test 1, unexpected result: %+v", result)
	}
	// Test 2, every record lands with extract metadata stamped on.
	b, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	var saved []map[string]interface{}
	if err := json.Unmarshal(b, &saved); err != nil {
		t.Fatal(err)
	}
	if len(saved) != 3 {
		t.Fatal("Test 2, expected 3 saved records; got ", len(saved))
	}
	for _, rec := range saved {
		if rec["extracted_at"] == nil || rec["source"] != "CDC_PLACES" || rec["dataset_id"] != "d3i6-k6z5" {
			t.Fatalf("Test 2, record missing metadata: %+v", rec)
		}
	}
	// Test 3, the file name carries the places prefix.
	if !strings.Contains(result.FilePath, "places_county_") {
		t.Fatal("Test 3, unexpected file name: ", result.FilePath)
	}
}

func TestExtractorSendsAppTokenAndStateFilter(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	var gotToken, gotWhere string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		gotWhere = r.URL.Query().Get("$where")
		_, _ = w.Write([]byte(`[{"stateabbr":"WI","countyfips":"55025","countyname":"Dane"}]`))
	}))
	defer srv.Close()
	cfg := testConfig(srv.URL, t.TempDir())
	cfg.AppToken = "secret-token"
	cfg.States = []string{"wi", "AL"}
	if _, err := NewExtractor(log, cfg).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotToken != "secret-token" {
		t.Fatal("expected the app token header; got ", gotToken)
	}
	if gotWhere != "stateabbr in('WI','AL')" {
		t.Fatal("unexpected state filter: ", gotWhere)
	}
}

func TestExtractorErrors(t *testing.T) {
	log := logger.NewLogger("healthpulse", "info", true)
	t.Log("Test 1, a client error status fails the run")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()
	if _, err := NewExtractor(log, testConfig(srv.URL, t.TempDir())).Run(context.Background()); err == nil {
		t.Fatal("Test 1, expected an error for a 400 response")
	}
	t.Log("Test 2, an empty dataset fails the run")
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv2.Close()
	if _, err := NewExtractor(log, testConfig(srv2.URL, t.TempDir())).Run(context.Background()); err == nil {
		t.Fatal("Test 2, expected an error for an empty dataset")
	}
}
