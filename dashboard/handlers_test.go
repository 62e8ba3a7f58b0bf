package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/transform"
	"github.com/healthpulse/healthpulse/warehouse"
)

func newTestServer(t *testing.T) *httptest.Server {
	log := logger.NewLogger("healthpulse", "info", true)
	db, err := warehouse.OpenConnection(log, "") // in-memory database.
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := warehouse.EnsureSchemas(log, db); err != nil {
		t.Fatal(err)
	}
	sb := strings.Builder{}
	sb.WriteString("create table raw.places_county (stateabbr varchar, statedesc varchar, countyfips varchar, countyname varchar, totalpopulation bigint")
	for _, m := range transform.TrackedMeasures {
		sb.WriteString(", " + m.RawColumn + " double")
	}
	sb.WriteString(", extracted_at timestamp, source varchar, dataset_id varchar, source_file varchar)")
	if _, err := db.Exec(sb.String()); err != nil {
		t.Fatal(err)
	}
	insert := func(state, stateName, fips, county string, pop int64, diabetes, obesity, smoking float64) {
		cols := []string{"stateabbr", "statedesc", "countyfips", "countyname", "totalpopulation"}
		vals := []interface{}{state, stateName, fips, county, pop}
		measureVals := map[string]float64{"diabetes": diabetes, "obesity": obesity, "smoking": smoking}
		for _, m := range transform.TrackedMeasures {
			cols = append(cols, m.RawColumn)
			if v, ok := measureVals[m.ShortName]; ok {
				vals = append(vals, v)
			} else {
				vals = append(vals, nil)
			}
		}
		cols = append(cols, "extracted_at", "source", "dataset_id", "source_file")
		vals = append(vals, time.Now(), "CDC_PLACES", "d3i6-k6z5", "places_county_test.json")
		binds := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		stmt := fmt.Sprintf("insert into raw.places_county (%s) values (%s)", strings.Join(cols, ","), binds)
		if _, err := db.Exec(stmt, vals...); err != nil {
			t.Fatal(err)
		}
	}
	insert("WI", "Wisconsin", "55025", "Dane", 560000, 8.0, 30.0, 15.0)
	insert("WI", "Wisconsin", "55079", "Milwaukee", 940000, 12.0, 38.0, 21.0)
	insert("AL", "Alabama", "01003", "Baldwin", 250000, 11.5, 36.0, 19.0)
	if _, err := transform.NewPipeline(log, db).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewRouter(log, db))
	t.Cleanup(srv.Close)
	return srv
}

func getRows(t *testing.T, url string) ResponseRows {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatal("expected 200 from ", url, "; got ", resp.StatusCode)
	}
	var body ResponseRows
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestCountiesHandler(t *testing.T) {
	srv := newTestServer(t)
	// Test 1, all counties come back ordered by state then burden.
	body := getRows(t, srv.URL+"/api/counties")
	if body.Count != 3 || len(body.Rows) != 3 {
		t.Fatalf("Test 1, unexpected body: %+v", body)
	}
	if body.Rows[0]["state_code"] != "AL" {
		t.Fatal("Test 1, expected AL first; got ", body.Rows[0]["state_code"])
	}
	// Test 2, the state filter narrows the rows.
	body = getRows(t, srv.URL+"/api/counties?state=wi")
	if body.Count != 2 {
		t.Fatal("Test 2, expected 2 WI rows; got ", body.Count)
	}
	for _, row := range body.Rows {
		if row["state_code"] != "WI" {
			t.Fatal("Test 2, unexpected state: ", row["state_code"])
		}
	}
	// Test 3, a malformed state code is rejected.
	resp, err := http.Get(srv.URL + "/api/counties?state=bogus")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatal("Test 3, expected 400; got ", resp.StatusCode)
	}
}

func TestStatesHandler(t *testing.T) {
	srv := newTestServer(t)
	body := getRows(t, srv.URL+"/api/states")
	if body.Count != 2 {
		t.Fatal("expected 2 state profiles; got ", body.Count)
	}
	if body.Rows[0]["state_code"] != "AL" || body.Rows[1]["state_code"] != "WI" {
		t.Fatalf("unexpected ordering: %+v", body.Rows)
	}
}

func TestStatusHandler(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body ResponseStatus
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TableCounts["mart_county_health"] != 3 || body.TableCounts["int_state_profiles"] != 2 {
		t.Fatalf("unexpected table counts: %+v", body.TableCounts)
	}
	if _, ok := body.TableCounts["stg_county_health"]; ok {
		t.Fatal("staging tables must stay off the status API")
	}
	if body.LastBuiltAt == nil {
		t.Fatal("expected a mart build time")
	}
}

func TestHealthAndIndex(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatal("expected 200 from /health; got ", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Fatal("expected an html index page; got ", got)
	}
}
