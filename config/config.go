package config

import (
	"fmt"
	"os"
	"path"

	"github.com/ghodss/yaml"
	"github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/helper"
	"github.com/mitchellh/go-homedir"
	yamlv2 "gopkg.in/yaml.v2"
)

const (
	MainDir          = ".healthpulse"
	MainFileFullName = "config.yaml"
)

var healthPulseHomeDir string

// FileNotFoundError denotes failing to find a configuration file.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// Extract holds settings for the CDC PLACES (Socrata SODA) extraction client.
type Extract struct {
	BaseUrl    string   `json:"baseUrl"`
	Dataset    string   `json:"dataset"`
	AppToken   string   `json:"appToken,omitempty"` // optional; env var HEALTHPULSE_APP_TOKEN takes priority.
	States     []string `json:"states,omitempty"`   // optional state abbreviation filter; empty means all states.
	PageLimit  int      `json:"pageLimit"`
	TimeoutSec int      `json:"timeoutSec"`
	MaxRetries int      `json:"maxRetries"`
	RawDir     string   `json:"rawDir"`
}

// Warehouse holds settings for the local DuckDB analytical store.
type Warehouse struct {
	Path      string `json:"path"`
	BatchSize int    `json:"batchSize"`
}

// Quality holds settings for the post-run validation checks.
// Rules are free-form maps; the quality package decodes them into typed rules.
type Quality struct {
	ReportPath        string                   `json:"reportPath"`
	FreshnessMaxHours int                      `json:"freshnessMaxHours"`
	Rules             []map[string]interface{} `json:"rules,omitempty"`
}

// Serve holds settings for the dashboard web server.
type Serve struct {
	Addr string `json:"addr"`
	Port int    `json:"port"`
}

// Config is the full pipeline configuration.
type Config struct {
	LogLevel  string    `json:"logLevel"`
	Extract   Extract   `json:"extract"`
	Warehouse Warehouse `json:"warehouse"`
	Quality   Quality   `json:"quality"`
	Serve     Serve     `json:"serve"`
}

// Default returns a Config populated with working defaults for a local run.
func Default() *Config {
	return &Config{
		LogLevel: constants.LogLevelDefault,
		Extract: Extract{
			BaseUrl:    constants.SodaBaseUrlDefault,
			Dataset:    constants.SodaDatasetCountyGis,
			PageLimit:  constants.SodaPageLimitDefault,
			TimeoutSec: constants.SodaTimeoutSecDefault,
			MaxRetries: constants.SodaMaxRetriesDefault,
			RawDir:     constants.RawDataDirDefault,
		},
		Warehouse: Warehouse{
			Path:      constants.WarehousePathDefault,
			BatchSize: constants.LoaderBatchNumRowsDefault,
		},
		Quality: Quality{
			ReportPath:        constants.QualityReportPathDefault,
			FreshnessMaxHours: constants.FreshnessMaxHoursDefault,
		},
		Serve: Serve{
			Addr: "0.0.0.0",
			Port: constants.ServicePort,
		},
	}
}

// Load reads the config file at the supplied path into a Config on top of defaults.
// Supply an empty path to use the file in the healthpulse home directory.
// A missing file is not an error: defaults are returned so a fresh checkout runs without setup.
func Load(filePath string) (*Config, error) {
	if filePath == "" {
		filePath = path.Join(mustGetConfigHomeDir(), MainFileFullName)
	}
	c := Default()
	b, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) { // if there is no config file...
			c.applyEnv()
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error parsing config file %v: %w", filePath, err)
	}
	c.applyEnv()
	return c, nil
}

// Save writes the config to the supplied path, creating parent directories as required.
// Supply an empty path to use the file in the healthpulse home directory.
func (c *Config) Save(filePath string) error {
	if filePath == "" {
		if err := makeDir(mustGetConfigHomeDir()); err != nil {
			return err
		}
		filePath = path.Join(mustGetConfigHomeDir(), MainFileFullName)
	}
	// Round-trip via the JSON-tagged form so the file matches what Load expects,
	// then marshal with yaml.v2 for stable key ordering.
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	var m yamlv2.MapSlice
	if err := yamlv2.Unmarshal(b, &m); err != nil {
		return err
	}
	out, err := yamlv2.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, out, 0644)
}

// applyEnv overlays values that may be supplied via the environment.
func (c *Config) applyEnv() {
	if token, _ := helper.GetEnvVar(constants.EnvVarAppToken, false); token != "" {
		c.Extract.AppToken = token
	}
}

// mustGetConfigHomeDir returns the full path to the home directory that stores the config file.
// Uses global variable.
func mustGetConfigHomeDir() string {
	if healthPulseHomeDir == "" {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		healthPulseHomeDir = path.Join(home, MainDir)
	}
	return healthPulseHomeDir
}

// makeDir will make the given directory if it does not already exist.
// If it exists then return nil.
// An error is returned if there is a problem creating the dir.
func makeDir(dir string) error {
	_, err := os.Stat(dir)
	if os.IsNotExist(err) { // if it doesn't exist...
		if err = os.Mkdir(dir, 0755); err != nil { // if the dir was NOT created...
			return fmt.Errorf("error creating directory %v", dir)
		}
	} else if err != nil { // if there was an error getting status...
		return err
	}
	return nil
}
