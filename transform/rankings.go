package transform

import (
	"fmt"
	"strings"

	c "github.com/healthpulse/healthpulse/constants"
)

// RankingsSelectSql returns the SELECT building intermediate.int_county_rankings:
// every staging column plus, per designated measure, the state average, the
// rounded deviation from it and a dense rank within the state (highest
// prevalence first, null values ranked last). Deviations stay null when the
// underlying value is null. Tied values share a rank and the order between
// them is not defined.
func RankingsSelectSql() string {
	sb := strings.Builder{}
	sb.WriteString("select\n")
	sb.WriteString("  s.*")
	for _, m := range DesignatedMeasures {
		sb.WriteString(",\n")
		sb.WriteString(fmt.Sprintf("  avg(%s) over (partition by state_code) as state_avg_%s,\n", m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  round(%s - avg(%s) over (partition by state_code), 2) as %s_vs_state_avg,\n",
			m.CleanColumn, m.CleanColumn, m.ShortName))
		sb.WriteString(fmt.Sprintf("  dense_rank() over (partition by state_code order by %s desc nulls last) as %s_state_rank",
			m.CleanColumn, m.ShortName))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("from %s.%s s", c.SchemaStaging, c.TableStgCountyHealth))
	return sb.String()
}
