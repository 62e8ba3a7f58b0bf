package transform

import (
	"fmt"
	"strings"

	c "github.com/healthpulse/healthpulse/constants"
)

// StagingSelectSql returns the SELECT that cleans raw.places_county into
// staging.stg_county_health: identity renames, typed casts and a stable sort.
// Rows missing a state code or county name are excluded here.
func StagingSelectSql() string {
	sb := strings.Builder{}
	sb.WriteString("select\n")
	for _, col := range IdentityColumns {
		sb.WriteString(fmt.Sprintf("  %s as %s,\n", col.RawColumn, col.CleanColumn))
	}
	sb.WriteString("  cast(totalpopulation as bigint) as total_population,\n")
	for _, m := range TrackedMeasures {
		sb.WriteString(fmt.Sprintf("  cast(%s as decimal(5,2)) as %s,\n", m.RawColumn, m.CleanColumn))
	}
	sb.WriteString("  extracted_at,\n")
	sb.WriteString("  source,\n")
	sb.WriteString("  dataset_id,\n")
	sb.WriteString("  source_file,\n")
	sb.WriteString("  now() as transformed_at\n")
	sb.WriteString(fmt.Sprintf("from %s.%s\n", c.SchemaRaw, c.TableRawPlacesCounty))
	sb.WriteString("where stateabbr is not null\n")
	sb.WriteString("  and countyname is not null\n")
	sb.WriteString("order by state_code, county_name")
	return sb.String()
}

// StagingExclusionCountSql counts the raw rows that the staging filter drops.
func StagingExclusionCountSql() string {
	return fmt.Sprintf("select count(*) from %s.%s where stateabbr is null or countyname is null",
		c.SchemaRaw, c.TableRawPlacesCounty)
}

// ObservationsSelectSql unpivots the headline measures into long format, one
// row per county and non-null measure value.
func ObservationsSelectSql() string {
	sb := strings.Builder{}
	for i, m := range HeadlineMeasures {
		if i > 0 {
			sb.WriteString("union all\n")
		}
		sb.WriteString("select\n")
		sb.WriteString("  state_code,\n")
		sb.WriteString("  state_name,\n")
		sb.WriteString("  county_fips,\n")
		sb.WriteString("  county_name,\n")
		sb.WriteString(fmt.Sprintf("  '%s' as measure_name,\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("  %s as prevalence_pct\n", m.CleanColumn))
		sb.WriteString(fmt.Sprintf("from %s.%s\n", c.SchemaStaging, c.TableStgCountyHealth))
		sb.WriteString(fmt.Sprintf("where %s is not null\n", m.CleanColumn))
	}
	sb.WriteString("order by state_code, county_name, measure_name")
	return sb.String()
}
