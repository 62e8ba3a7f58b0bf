package transform

import (
	"fmt"
	"strings"

	c "github.com/healthpulse/healthpulse/constants"
)

// ProfilesSelectSql returns the SELECT building intermediate.int_state_profiles,
// one row per state. Per designated measure it carries the rounded average,
// min, max, disparity range (max minus min) and the interpolated median.
// For the flagged measures it also counts counties at or above the state
// median; the medians are computed in a window first so the comparison and the
// aggregation happen in one pass. Null values drop out of every aggregate.
func ProfilesSelectSql() string {
	sb := strings.Builder{}
	sb.WriteString("with medians as (\n")
	sb.WriteString("  select\n")
	sb.WriteString("    s.*")
	for _, m := range FlagMeasures {
		sb.WriteString(",\n")
		sb.WriteString(fmt.Sprintf("    quantile_cont(%s, 0.5) over (partition by state_code) as state_median_%s",
			m.CleanColumn, m.ShortName))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  from %s.%s s\n", c.SchemaStaging, c.TableStgCountyHealth))
	sb.WriteString(")\n")
	sb.WriteString("select\n")
	sb.WriteString("  state_code,\n")
	sb.WriteString("  state_name,\n")
	sb.WriteString("  count(distinct county_fips) as county_count,\n")
	sb.WriteString("  cast(sum(total_population) as bigint) as total_state_population,\n")
	for _, m := range DesignatedMeasures {
		sb.WriteString(fmt.Sprintf("  round(avg(%s), 2) as avg_%s,\n", m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  min(%s) as min_%s,\n", m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  max(%s) as max_%s,\n", m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  max(%s) - min(%s) as %s_disparity_range,\n", m.CleanColumn, m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  quantile_cont(%s, 0.5) as median_%s,\n", m.CleanColumn, m.ShortName))
	}
	for i, m := range FlagMeasures {
		sb.WriteString(fmt.Sprintf("  count(case when %s >= state_median_%s then 1 end) as counties_above_median_%s",
			m.CleanColumn, m.ShortName, m.ShortName))
		if i < len(FlagMeasures)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("from medians\n")
	sb.WriteString("group by state_code, state_name\n")
	sb.WriteString("order by state_code")
	return sb.String()
}
