package transform

import (
	"fmt"
	"strings"

	c "github.com/healthpulse/healthpulse/constants"
)

// MartSelectSql returns the SELECT building mart.mart_county_health: the full
// ranking row joined to its state profile, hotspot flags, the health burden
// score and a data quality status.
//
// A county is a hotspot for a measure when its deviation above the state
// average exceeds a tenth of the state's disparity range for that measure;
// the flag is false, never null, when either input is missing. The burden
// score sums the absolute deviations of the designated measures and is null
// when any of them is null. Quality status checks run in order: missing any
// designated measure wins over a small population.
func MartSelectSql() string {
	sb := strings.Builder{}
	sb.WriteString("select\n")
	sb.WriteString("  r.*,\n")
	sb.WriteString("  p.county_count,\n")
	sb.WriteString("  p.total_state_population,\n")
	for _, m := range DesignatedMeasures {
		sb.WriteString(fmt.Sprintf("  p.avg_%s,\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("  p.min_%s,\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("  p.max_%s,\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("  p.%s_disparity_range,\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("  p.median_%s,\n", m.ShortName))
	}
	for _, m := range FlagMeasures {
		sb.WriteString(fmt.Sprintf("  p.counties_above_median_%s,\n", m.ShortName))
	}
	for _, m := range FlagMeasures {
		sb.WriteString(fmt.Sprintf("  case when r.%s_vs_state_avg is not null\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("        and p.%s_disparity_range is not null\n", m.ShortName))
		sb.WriteString(fmt.Sprintf("        and r.%s_vs_state_avg > 0.10 * p.%s_disparity_range\n", m.ShortName, m.ShortName))
		sb.WriteString(fmt.Sprintf("       then true else false end as is_%s_hotspot,\n", m.ShortName))
	}
	devs := make([]string, len(DesignatedMeasures))
	nullChecks := make([]string, len(DesignatedMeasures))
	for i, m := range DesignatedMeasures {
		devs[i] = fmt.Sprintf("abs(r.%s_vs_state_avg)", m.ShortName)
		nullChecks[i] = fmt.Sprintf("r.%s is null", m.CleanColumn)
	}
	sb.WriteString(fmt.Sprintf("  round(%s, 2) as health_burden_score,\n", strings.Join(devs, " + ")))
	sb.WriteString(fmt.Sprintf("  case when %s then '%s'\n", strings.Join(nullChecks, " or "), c.QualityStatusIncomplete))
	sb.WriteString(fmt.Sprintf("       when r.total_population < %d then '%s'\n", c.SmallPopulationThreshold, c.QualityStatusSmallPop))
	sb.WriteString(fmt.Sprintf("       else '%s' end as data_quality_status,\n", c.QualityStatusValid))
	sb.WriteString("  now() as mart_built_at\n")
	sb.WriteString(fmt.Sprintf("from %s.%s r\n", c.SchemaIntermediate, c.TableIntCountyRankings))
	sb.WriteString(fmt.Sprintf("left join %s.%s p on r.state_code = p.state_code\n", c.SchemaIntermediate, c.TableIntStateProfiles))
	sb.WriteString("order by r.state_code, health_burden_score desc nulls last, r.county_name")
	return sb.String()
}
