package config

import (
	"os"
	"path"
	"testing"

	"github.com/healthpulse/healthpulse/constants"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(path.Join(t.TempDir(), "no-such-config.yaml"))
	if err != nil {
		t.Fatal("unexpected error for missing config file: ", err)
	}
	if c.Extract.Dataset != constants.SodaDatasetCountyGis {
		t.Fatal("expected default dataset; got ", c.Extract.Dataset)
	}
	if c.Warehouse.Path != constants.WarehousePathDefault {
		t.Fatal("expected default warehouse path; got ", c.Warehouse.Path)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	filePath := path.Join(t.TempDir(), "config.yaml")
	body := `
logLevel: debug
extract:
  states: [WI, MN]
warehouse:
  path: /tmp/test-warehouse.duckdb
quality:
  rules:
    - name: prevalence sane
      query: select pct_diabetes from mart.mart_county_health
      rule: {"<=": [{"var": "pct_diabetes"}, 100]}
`
	if err := os.WriteFile(filePath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if c.LogLevel != "debug" {
		t.Fatal("expected logLevel override; got ", c.LogLevel)
	}
	if len(c.Extract.States) != 2 || c.Extract.States[0] != "WI" {
		t.Fatal("expected states filter from file; got ", c.Extract.States)
	}
	// Defaults survive for keys the file does not set.
	if c.Extract.PageLimit != constants.SodaPageLimitDefault {
		t.Fatal("expected default page limit; got ", c.Extract.PageLimit)
	}
	if len(c.Quality.Rules) != 1 {
		t.Fatal("expected one custom quality rule; got ", len(c.Quality.Rules))
	}
}

func TestSaveRoundTrip(t *testing.T) {
	filePath := path.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.LogLevel = "trace"
	if err := c.Save(filePath); err != nil {
		t.Fatal(err)
	}
	c2, err := Load(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if c2.LogLevel != "trace" {
		t.Fatal("expected saved logLevel to round-trip; got ", c2.LogLevel)
	}
}

func TestAppTokenFromEnv(t *testing.T) {
	t.Setenv(constants.EnvVarAppToken, "token-from-env")
	c, err := Load(path.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Extract.AppToken != "token-from-env" {
		t.Fatal("expected app token from environment; got ", c.Extract.AppToken)
	}
}
