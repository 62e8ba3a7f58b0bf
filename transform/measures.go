package transform

// Measure maps a raw PLACES crude-prevalence column to a clean staging column.
type Measure struct {
	RawColumn   string // column name in raw.places_county
	CleanColumn string // column name in staging onwards
	ShortName   string // suffix used for derived columns and unpivoted measure names
}

// TrackedMeasures is the full set of prevalence measures carried into staging,
// in staging column order.
var TrackedMeasures = []Measure{
	{RawColumn: "access2_crudeprev", CleanColumn: "pct_no_insurance", ShortName: "no_insurance"},
	{RawColumn: "arthritis_crudeprev", CleanColumn: "pct_arthritis", ShortName: "arthritis"},
	{RawColumn: "binge_crudeprev", CleanColumn: "pct_binge_drinking", ShortName: "binge_drinking"},
	{RawColumn: "bphigh_crudeprev", CleanColumn: "pct_high_blood_pressure", ShortName: "high_blood_pressure"},
	{RawColumn: "cancer_crudeprev", CleanColumn: "pct_cancer", ShortName: "cancer"},
	{RawColumn: "casthma_crudeprev", CleanColumn: "pct_asthma", ShortName: "asthma"},
	{RawColumn: "chd_crudeprev", CleanColumn: "pct_heart_disease", ShortName: "heart_disease"},
	{RawColumn: "checkup_crudeprev", CleanColumn: "pct_annual_checkup", ShortName: "annual_checkup"},
	{RawColumn: "copd_crudeprev", CleanColumn: "pct_copd", ShortName: "copd"},
	{RawColumn: "csmoking_crudeprev", CleanColumn: "pct_current_smoker", ShortName: "smoking"},
	{RawColumn: "depression_crudeprev", CleanColumn: "pct_depression", ShortName: "depression"},
	{RawColumn: "diabetes_crudeprev", CleanColumn: "pct_diabetes", ShortName: "diabetes"},
	{RawColumn: "highchol_crudeprev", CleanColumn: "pct_high_cholesterol", ShortName: "high_cholesterol"},
	{RawColumn: "kidney_crudeprev", CleanColumn: "pct_kidney_disease", ShortName: "kidney_disease"},
	{RawColumn: "lpa_crudeprev", CleanColumn: "pct_physical_inactivity", ShortName: "physical_inactivity"},
	{RawColumn: "mhlth_crudeprev", CleanColumn: "pct_poor_mental_health", ShortName: "poor_mental_health"},
	{RawColumn: "obesity_crudeprev", CleanColumn: "pct_obesity", ShortName: "obesity"},
	{RawColumn: "phlth_crudeprev", CleanColumn: "pct_poor_physical_health", ShortName: "poor_physical_health"},
	{RawColumn: "sleep_crudeprev", CleanColumn: "pct_short_sleep", ShortName: "short_sleep"},
	{RawColumn: "stroke_crudeprev", CleanColumn: "pct_stroke", ShortName: "stroke"},
}

// IdentityColumns maps raw identity columns to their clean names, in output order.
var IdentityColumns = []Measure{
	{RawColumn: "stateabbr", CleanColumn: "state_code"},
	{RawColumn: "statedesc", CleanColumn: "state_name"},
	{RawColumn: "countyfips", CleanColumn: "county_fips"},
	{RawColumn: "countyname", CleanColumn: "county_name"},
}

// HeadlineMeasures feed the unpivoted long-format observation table.
var HeadlineMeasures = mustMeasures("diabetes", "obesity", "smoking", "binge_drinking")

// DesignatedMeasures get per-state averages, deviations and ranks, plus the
// state profile aggregates.
var DesignatedMeasures = mustMeasures("diabetes", "obesity", "smoking")

// FlagMeasures get hotspot flags and counties-above-median counts.
var FlagMeasures = mustMeasures("diabetes", "obesity")

func mustMeasures(shortNames ...string) []Measure {
	m := make([]Measure, 0, len(shortNames))
	for _, n := range shortNames {
		found := false
		for _, t := range TrackedMeasures {
			if t.ShortName == n {
				m = append(m, t)
				found = true
				break
			}
		}
		if !found {
			panic("unknown measure short name: " + n)
		}
	}
	return m
}
