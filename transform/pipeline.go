package transform

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	c "github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/stats"
	"github.com/healthpulse/healthpulse/warehouse"
)

// Stage is one step of the layered transformation. SelectSql produces the
// full contents of Schema.Table from the tables named in DependsOn.
type Stage struct {
	Name      string
	Schema    string
	Table     string
	DependsOn []string
	SelectSql string
}

// QualifiedName returns the schema-qualified target table name.
func (s Stage) QualifiedName() string {
	return s.Schema + "." + s.Table
}

func (s Stage) buildName() string {
	return s.Schema + "." + s.Table + c.BuildTableSuffix
}

// Stages returns the pipeline stages in dependency order.
func Stages() []Stage {
	return []Stage{
		{Name: "stg_county_health",
			Schema:    c.SchemaStaging,
			Table:     c.TableStgCountyHealth,
			DependsOn: []string{c.SchemaRaw + "." + c.TableRawPlacesCounty},
			SelectSql: StagingSelectSql()},
		{Name: "stg_measure_observations",
			Schema:    c.SchemaStaging,
			Table:     c.TableStgMeasureObs,
			DependsOn: []string{c.SchemaStaging + "." + c.TableStgCountyHealth},
			SelectSql: ObservationsSelectSql()},
		{Name: "int_county_rankings",
			Schema:    c.SchemaIntermediate,
			Table:     c.TableIntCountyRankings,
			DependsOn: []string{c.SchemaStaging + "." + c.TableStgCountyHealth},
			SelectSql: RankingsSelectSql()},
		{Name: "int_state_profiles",
			Schema:    c.SchemaIntermediate,
			Table:     c.TableIntStateProfiles,
			DependsOn: []string{c.SchemaStaging + "." + c.TableStgCountyHealth},
			SelectSql: ProfilesSelectSql()},
		{Name: "mart_county_health",
			Schema:    c.SchemaMart,
			Table:     c.TableMartCountyHealth,
			DependsOn: []string{
				c.SchemaIntermediate + "." + c.TableIntCountyRankings,
				c.SchemaIntermediate + "." + c.TableIntStateProfiles},
			SelectSql: MartSelectSql()},
	}
}

// Pipeline runs the transformation stages against a warehouse.
type Pipeline struct {
	Log logger.Logger
	Db  warehouse.Connector
}

func NewPipeline(log logger.Logger, db warehouse.Connector) *Pipeline {
	return &Pipeline{Log: log, Db: db}
}

// Run executes every stage in order inside a single transaction. Each stage
// materialises into a build table and swaps it in with a drop and rename, so
// a failure anywhere leaves all previously published tables untouched.
func (p *Pipeline) Run(ctx context.Context) ([]stats.Stats, error) {
	tx, err := p.Db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "error starting transform transaction")
	}
	results, err := p.runStages(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "error committing transform transaction")
	}
	return results, nil
}

func (p *Pipeline) runStages(ctx context.Context, tx warehouse.Transacter) ([]stats.Stats, error) {
	excluded, err := countSql(ctx, tx, StagingExclusionCountSql())
	if err != nil {
		return nil, errors.Wrap(err, "error counting rows excluded from staging")
	}
	if excluded > 0 {
		p.Log.Warn("excluding ", excluded, " raw rows with a missing state code or county name")
	}
	results := make([]stats.Stats, 0, len(Stages()))
	for _, stage := range Stages() {
		w := stats.NewStageWatcher(p.Log, stage.Name)
		w.StartWatching()
		p.Log.Info("building ", stage.QualifiedName(), "...")
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("create or replace table %s as\n%s", stage.buildName(), stage.SelectSql)); err != nil {
			return nil, errors.Wrapf(err, "error building stage %v", stage.Name)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("drop table if exists %s", stage.QualifiedName())); err != nil {
			return nil, errors.Wrapf(err, "error dropping old table for stage %v", stage.Name)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("alter table %s rename to %s", stage.buildName(), stage.Table)); err != nil {
			return nil, errors.Wrapf(err, "error publishing table for stage %v", stage.Name)
		}
		rows, err := countSql(ctx, tx, fmt.Sprintf("select count(*) from %s", stage.QualifiedName()))
		if err != nil {
			return nil, errors.Wrapf(err, "error counting rows for stage %v", stage.Name)
		}
		w.AddRows(rows)
		w.StopWatching()
		s := w.RenderStats()
		p.Log.Info(s.String())
		results = append(results, s)
	}
	return results, nil
}

func countSql(ctx context.Context, tx warehouse.Transacter, sqltext string) (int64, error) {
	rows, err := tx.QueryContext(ctx, sqltext)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}
