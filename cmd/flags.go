package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	h "github.com/healthpulse/healthpulse/helper"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
	fromEnv   bool   // true when val came from a HEALTHPULSE_* environment variable
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"config": cliFlag{name: "config", shortHand: "c",
		desc: "Path to a YAML config file (defaults apply when the file is missing)"},
	"states": cliFlag{name: "states", shortHand: "s",
		desc: "CSV of two-letter state codes to extract. Leave blank for all states"},
	"raw-dir": cliFlag{name: "raw-dir", shortHand: "d",
		desc: "Directory where raw extract files are written and loaded from"},
	"warehouse": cliFlag{name: "warehouse", shortHand: "w",
		desc: "Path to the DuckDB warehouse file"},
	"batch-size": cliFlag{name: "batch-size", shortHand: "b",
		desc: "Number of rows per insert batch when loading raw files"},
	"file": cliFlag{name: "file", shortHand: "f",
		desc: "Load a single raw JSON file instead of scanning the raw directory"},
	"report": cliFlag{name: "report", shortHand: "r",
		desc: "Path to write the quality report JSON to"},
	"max-age-hours": cliFlag{name: "max-age-hours", shortHand: "m",
		desc: "Maximum age in hours of the latest extract before the freshness check fails"},
	"address": cliFlag{name: "address", shortHand: "a",
		desc: "Address to listen on"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port to listen on"},
	"skip-quality": cliFlag{name: "skip-quality", shortHand: "Q",
		desc: "Skip the quality checks at the end of a full run"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar
// (which must be a pointer). The default comes from the matching HEALTHPULSE_*
// environment variable first, then the supplied defaultValue. Env-sourced
// values mark the flag as set so they take priority over config file values;
// plain defaults do not, so the config file can still win.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool, desc2 string) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue)
	desc := sw.desc + desc2
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, desc)
		if sw.fromEnv {
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	case *bool:
		defaultBool := strings.ToLower(sw.val) == "true"
		c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, desc)
		if sw.fromEnv {
			mustSetFlag(c.Flags(), sw.name, strconv.FormatBool(defaultBool))
		}
	case *int:
		defaultInt, err := strconv.Atoi(sw.val)
		if err != nil {
			fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
			os.Exit(1)
		}
		c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, desc)
		if sw.fromEnv {
			mustSetFlag(c.Flags(), sw.name, sw.val)
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	if required { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment, falling back to
// the supplied defaultValue.
func (f *cliFlags) getCliFlag(name string, defaultValue string) cliFlag {
	sw, ok := (*f)[name]
	if !ok {
		fmt.Printf("unknown CLI flag %q requested\n", name)
		os.Exit(1)
	}
	if val, err := h.GetEnvVar(flagNameToEnvVar(name), false); err == nil && val != "" {
		sw.val = val
		sw.fromEnv = true
	} else {
		sw.val = defaultValue
	}
	return sw
}

func flagNameToEnvVar(name string) string {
	return "HEALTHPULSE_" + strings.ToUpper(strings.Replace(name, "-", "_", -1))
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	err := f.Set(name, val)
	if err != nil {
		fmt.Printf("unable to set flag %q to value %q\n", name, val)
		os.Exit(1)
	}
}
