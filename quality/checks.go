package quality

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/healthpulse/healthpulse/config"
	c "github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/transform"
	"github.com/healthpulse/healthpulse/warehouse"
)

// Check is the outcome of one quality check.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Runner executes the built-in checks plus any user-defined rules from config.
type Runner struct {
	Log logger.Logger
	Db  warehouse.Connector
	Cfg *config.Quality
}

func NewRunner(log logger.Logger, db warehouse.Connector, cfg *config.Quality) *Runner {
	return &Runner{Log: log, Db: db, Cfg: cfg}
}

// Run executes every check and returns a report. Check failures are reported,
// not returned as errors; the error return covers queries that could not run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now(), Passed: true}
	checks := []func(context.Context) (Check, error){
		r.checkFreshness,
		r.checkRecordCounts,
		r.checkIdentityNulls,
		r.checkRowConservation,
		r.checkObservationCounts,
		r.checkRankValidity,
		r.checkDisparityRanges,
		r.checkPrevalenceRange,
		r.checkPopulationNonNegative,
		r.checkDeviationSums,
	}
	for _, fn := range checks {
		chk, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		report.Add(chk)
	}
	rules, err := ParseRules(r.Cfg.Rules)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		chk, err := r.runRule(ctx, rule)
		if err != nil {
			return nil, err
		}
		report.Add(chk)
	}
	return report, nil
}

// zeroCountCheck passes when sqltext counts zero offending rows.
func (r *Runner) zeroCountCheck(ctx context.Context, name string, sqltext string, detailFmt string) (Check, error) {
	n, err := warehouse.QueryCount(ctx, r.Db, sqltext)
	if err != nil {
		return Check{}, errors.Wrapf(err, "error running quality check %v", name)
	}
	return Check{Name: name, Passed: n == 0, Detail: fmt.Sprintf(detailFmt, n)}, nil
}

func (r *Runner) checkFreshness(ctx context.Context) (Check, error) {
	var latest sql.NullTime
	err := warehouse.QueryRowScan(ctx, r.Db,
		fmt.Sprintf("select max(extracted_at) from %s.%s", c.SchemaRaw, c.TableRawPlacesCounty), &latest)
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check freshness")
	}
	if !latest.Valid {
		return Check{Name: "freshness", Passed: false, Detail: "no extracted_at values in the raw table"}, nil
	}
	age := time.Since(latest.Time)
	maxAge := time.Duration(r.Cfg.FreshnessMaxHours) * time.Hour
	return Check{
		Name:   "freshness",
		Passed: age <= maxAge,
		Detail: fmt.Sprintf("latest extract is %.1f hours old (max %v)", age.Hours(), r.Cfg.FreshnessMaxHours),
	}, nil
}

func (r *Runner) checkRecordCounts(ctx context.Context) (Check, error) {
	tables := []string{
		c.SchemaRaw + "." + c.TableRawPlacesCounty,
		c.SchemaStaging + "." + c.TableStgCountyHealth,
		c.SchemaMart + "." + c.TableMartCountyHealth,
	}
	details := make([]string, 0, len(tables))
	passed := true
	for _, tbl := range tables {
		n, err := warehouse.QueryCount(ctx, r.Db, "select count(*) from "+tbl)
		if err != nil {
			return Check{}, errors.Wrap(err, "error running quality check record_counts")
		}
		if n == 0 {
			passed = false
		}
		details = append(details, fmt.Sprintf("%v=%v", tbl, n))
	}
	return Check{Name: "record_counts", Passed: passed, Detail: strings.Join(details, " ")}, nil
}

func (r *Runner) checkIdentityNulls(ctx context.Context) (Check, error) {
	sqltext := fmt.Sprintf(`select count(*) from %s.%s
		where state_code is null or county_fips is null or county_name is null`,
		c.SchemaStaging, c.TableStgCountyHealth)
	return r.zeroCountCheck(ctx, "identity_nulls", sqltext, "%v staged rows with null identity columns")
}

// checkRowConservation asserts the staged row count matches raw minus the
// identity exclusions, and that every staged row carries through to the mart.
func (r *Runner) checkRowConservation(ctx context.Context) (Check, error) {
	raw, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select count(*) from %s.%s", c.SchemaRaw, c.TableRawPlacesCounty))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check row_conservation")
	}
	excluded, err := warehouse.QueryCount(ctx, r.Db, transform.StagingExclusionCountSql())
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check row_conservation")
	}
	staged, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select count(*) from %s.%s", c.SchemaStaging, c.TableStgCountyHealth))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check row_conservation")
	}
	ranked, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select count(*) from %s.%s", c.SchemaIntermediate, c.TableIntCountyRankings))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check row_conservation")
	}
	mart, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select count(*) from %s.%s", c.SchemaMart, c.TableMartCountyHealth))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check row_conservation")
	}
	return Check{
		Name:   "row_conservation",
		Passed: raw-excluded == staged && staged == ranked && ranked == mart,
		Detail: fmt.Sprintf("raw=%v excluded=%v staged=%v ranked=%v mart=%v", raw, excluded, staged, ranked, mart),
	}, nil
}

// checkObservationCounts asserts the unpivot emitted exactly one row per
// non-null headline measure value.
func (r *Runner) checkObservationCounts(ctx context.Context) (Check, error) {
	obs, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select count(*) from %s.%s", c.SchemaStaging, c.TableStgMeasureObs))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check observation_counts")
	}
	counts := make([]string, 0, len(transform.HeadlineMeasures))
	for _, m := range transform.HeadlineMeasures {
		counts = append(counts, fmt.Sprintf("count(%s)", m.CleanColumn))
	}
	expected, err := warehouse.QueryCount(ctx, r.Db,
		fmt.Sprintf("select %s from %s.%s", strings.Join(counts, " + "), c.SchemaStaging, c.TableStgCountyHealth))
	if err != nil {
		return Check{}, errors.Wrap(err, "error running quality check observation_counts")
	}
	return Check{
		Name:   "observation_counts",
		Passed: obs == expected,
		Detail: fmt.Sprintf("observations=%v non-null headline values=%v", obs, expected),
	}, nil
}

// checkRankValidity asserts that within each state the ranks over non-null
// values run densely from 1 to the number of ranked counties.
func (r *Runner) checkRankValidity(ctx context.Context) (Check, error) {
	details := make([]string, 0, len(transform.DesignatedMeasures))
	passed := true
	for _, m := range transform.DesignatedMeasures {
		sqltext := fmt.Sprintf(`select count(*) from (
			select state_code,
				min(case when %[1]s is not null then %[2]s_state_rank end) as min_rank,
				max(case when %[1]s is not null then %[2]s_state_rank end) as max_rank,
				count(distinct case when %[1]s is not null then %[2]s_state_rank end) as distinct_ranks,
				count(%[1]s) as ranked
			from %[3]s.%[4]s
			group by state_code
		) where ranked > 0 and (min_rank <> 1 or max_rank > ranked or max_rank <> distinct_ranks)`,
			m.CleanColumn, m.ShortName, c.SchemaIntermediate, c.TableIntCountyRankings)
		n, err := warehouse.QueryCount(ctx, r.Db, sqltext)
		if err != nil {
			return Check{}, errors.Wrap(err, "error running quality check rank_validity")
		}
		if n > 0 {
			passed = false
		}
		details = append(details, fmt.Sprintf("%v: %v bad states", m.ShortName, n))
	}
	return Check{Name: "rank_validity", Passed: passed, Detail: strings.Join(details, ", ")}, nil
}

func (r *Runner) checkDisparityRanges(ctx context.Context) (Check, error) {
	preds := make([]string, 0, len(transform.DesignatedMeasures))
	for _, m := range transform.DesignatedMeasures {
		preds = append(preds, fmt.Sprintf("%s_disparity_range < 0", m.ShortName))
	}
	sqltext := fmt.Sprintf("select count(*) from %s.%s where %s",
		c.SchemaIntermediate, c.TableIntStateProfiles, strings.Join(preds, " or "))
	return r.zeroCountCheck(ctx, "disparity_non_negative", sqltext, "%v states with a negative disparity range")
}

func (r *Runner) checkPrevalenceRange(ctx context.Context) (Check, error) {
	preds := make([]string, 0, len(transform.TrackedMeasures))
	for _, m := range transform.TrackedMeasures {
		preds = append(preds, fmt.Sprintf("%[1]s < 0 or %[1]s > 100", m.CleanColumn))
	}
	sqltext := fmt.Sprintf("select count(*) from %s.%s where %s",
		c.SchemaStaging, c.TableStgCountyHealth, strings.Join(preds, " or "))
	return r.zeroCountCheck(ctx, "prevalence_range", sqltext, "%v staged rows with a prevalence outside 0-100")
}

func (r *Runner) checkPopulationNonNegative(ctx context.Context) (Check, error) {
	sqltext := fmt.Sprintf("select count(*) from %s.%s where total_population < 0",
		c.SchemaStaging, c.TableStgCountyHealth)
	return r.zeroCountCheck(ctx, "population_non_negative", sqltext, "%v staged rows with a negative population")
}

// checkDeviationSums allows half a rounding unit per ranked county.
func (r *Runner) checkDeviationSums(ctx context.Context) (Check, error) {
	details := make([]string, 0, len(transform.DesignatedMeasures))
	passed := true
	for _, m := range transform.DesignatedMeasures {
		sqltext := fmt.Sprintf(`select count(*) from (
			select state_code
			from %s.%s
			group by state_code
			having abs(sum(%s_vs_state_avg)) > 0.005 * count(%s_vs_state_avg) + 0.001
		)`, c.SchemaIntermediate, c.TableIntCountyRankings, m.ShortName, m.ShortName)
		n, err := warehouse.QueryCount(ctx, r.Db, sqltext)
		if err != nil {
			return Check{}, errors.Wrap(err, "error running quality check deviation_sums")
		}
		if n > 0 {
			passed = false
		}
		details = append(details, fmt.Sprintf("%v: %v bad states", m.ShortName, n))
	}
	return Check{Name: "deviation_sums", Passed: passed, Detail: strings.Join(details, ", ")}, nil
}
