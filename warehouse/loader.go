package warehouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/pkg/errors"
)

// RawInsertBatch generates multi-row INSERT statements so a whole batch of records
// lands in one database round trip.
type RawInsertBatch struct {
	Log             logger.Logger
	Def             *TableDefinition
	batchSize       int
	rowsInBatch     int
	sqlValues       []interface{}
	sqlStmtTemplate string
	sqlStmt         string
	previousNumRows int
}

// NewRawInsertBatch creates a batch generator for the supplied table definition.
func NewRawInsertBatch(log logger.Logger, def *TableDefinition) *RawInsertBatch {
	o := &RawInsertBatch{Log: log, Def: def}
	o.setupSqlStatement()
	return o
}

func (o *RawInsertBatch) setupSqlStatement() {
	// Build the list of quoted column names.
	cols := o.Def.Columns()
	quoted := make([]string, len(cols), len(cols))
	for idx, c := range cols {
		quoted[idx] = fmt.Sprintf("%q", c)
	}
	// Populate the SQL template.
	o.sqlStmtTemplate = `insert into <SCHEMA>.<TABLE> (<TGT-COLS>) values <VALUES>`
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<SCHEMA>", o.Def.SchemaName, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TABLE>", o.Def.TableName, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TGT-COLS>", strings.Join(quoted, ","), 1)
	o.Log.Debug("setup INSERT generator with SQL (VALUES pending): ", o.sqlStmtTemplate)
}

// InitBatch resets the batch and preallocates the value buffer for batchSize rows.
func (o *RawInsertBatch) InitBatch(batchSize int) {
	if o.previousNumRows != batchSize { // if we have a new batch size and need to generate SQL...
		o.sqlStmt = o.sqlStmtTemplate // reset the sqlStmt from our template.
	}
	o.batchSize = batchSize
	o.rowsInBatch = 0
	o.sqlValues = make([]interface{}, 0, o.batchSize*o.Def.NumColumns()) // many values per row in a batch.
}

// AddValuesToBatch appends one row of values; batchIsFull signals the caller to exec.
func (o *RawInsertBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	if o.rowsInBatch >= o.batchSize {
		return true, errors.New("no more rows allowed in INSERT batch")
	}
	if len(values) != o.Def.NumColumns() {
		return false, errors.New("the number of values supplied does not match the number of table columns")
	}
	o.sqlValues = append(o.sqlValues, values...)
	o.rowsInBatch++ // keep track of how close we are to the batch limit.
	return o.rowsInBatch >= o.batchSize, nil
}

// GetValues returns all values added to the batch, to supply as args with GetStatement's SQL.
func (o *RawInsertBatch) GetValues() []interface{} {
	return o.sqlValues
}

// NumRowsInBatch returns the number of rows currently buffered.
func (o *RawInsertBatch) NumRowsInBatch() int {
	return o.rowsInBatch
}

// GetStatement returns the INSERT statement matching the rows currently in the batch.
func (o *RawInsertBatch) GetStatement() string {
	if o.previousNumRows != o.rowsInBatch { // if the row count changed and we need to generate SQL...
		numCols := o.Def.NumColumns()
		allRows := strings.Builder{}
		for rowIdx := 0; rowIdx < o.rowsInBatch; rowIdx++ { // for each row in the batch...
			row := strings.Builder{}
			for idy := 0; idy < numCols; idy++ { // for each field in the current row...
				row.WriteString(",?") // include a bind variable.
			}
			allRows.WriteString(fmt.Sprintf(",( %v )", strings.TrimLeft(row.String(), ",")))
		}
		o.sqlStmt = strings.Replace(o.sqlStmtTemplate, "<VALUES>", strings.TrimLeft(allRows.String(), ","), 1)
		o.previousNumRows = o.rowsInBatch
	} // else the batch size is unchanged and we can use cached SQL...
	o.Log.Debug("SQL batch INSERT generated statement: ", o.sqlStmt)
	return o.sqlStmt
}

// Loader ingests raw extraction files into the warehouse raw schema.
// The table schema is inferred from the records themselves via an explicit
// TableDefinition, and load metadata columns are attached to every row.
type Loader struct {
	Log       logger.Logger
	Db        Connector
	BatchSize int
}

func NewLoader(log logger.Logger, db Connector, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = constants.LoaderBatchNumRowsDefault
	}
	return &Loader{Log: log, Db: db, BatchSize: batchSize}
}

// LoadJsonFile loads one raw JSON extraction file into raw.places_county.
// The whole file is loaded in one transaction; a failure loads nothing from it.
func (l *Loader) LoadJsonFile(filePath string) (int64, error) {
	l.Log.Info("loading PLACES county data from ", filePath)
	b, err := os.ReadFile(filePath)
	if err != nil {
		return 0, errors.Wrapf(err, "error reading raw file %v", filePath)
	}
	records, keyOrder, err := ParseRecords(b)
	if err != nil {
		return 0, errors.Wrapf(err, "error parsing raw file %v", filePath)
	}
	if len(records) == 0 {
		l.Log.Warn("no records found in ", filePath)
		return 0, nil
	}
	def := InferSchema(l.Log, constants.SchemaRaw, constants.TableRawPlacesCounty, records, keyOrder)
	// Attach load metadata columns to the definition.
	def.AddColumn(constants.LoadedAtColumnName, ColumnTypeTimestamp)
	def.AddColumn(constants.SourceFileColumnName, ColumnTypeVarchar)
	if _, err := l.Db.Exec(def.CreateTableSql()); err != nil {
		return 0, errors.Wrap(err, "error creating raw table")
	}
	tx, err := l.Db.Begin()
	if err != nil {
		return 0, err
	}
	loadedAt := time.Now()
	cols := def.Columns()
	batch := NewRawInsertBatch(l.Log, def)
	batch.InitBatch(l.BatchSize)
	rowCount := int64(0)
	execBatch := func() error {
		if batch.NumRowsInBatch() == 0 {
			return nil
		}
		if _, err := tx.Exec(batch.GetStatement(), batch.GetValues()...); err != nil {
			return errors.Wrap(err, "error executing batch INSERT")
		}
		rowCount += int64(batch.NumRowsInBatch())
		batch.InitBatch(l.BatchSize)
		return nil
	}
	for idx, rec := range records { // for each raw record...
		values := make([]interface{}, len(cols), len(cols))
		for i, col := range cols {
			var raw interface{}
			switch col {
			case constants.LoadedAtColumnName:
				raw = loadedAt
			case constants.SourceFileColumnName:
				raw = filePath
			default:
				raw = rec[col] // missing keys load as null.
			}
			colType, _ := def.ColumnType(col)
			v, err := CoerceValue(raw, colType)
			if err != nil {
				_ = tx.Rollback()
				return 0, errors.Wrapf(err, "record %v column %v", idx, col)
			}
			values[i] = v
		}
		full, err := batch.AddValuesToBatch(values)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if full { // if the batch has no room for more rows...
			if err := execBatch(); err != nil {
				_ = tx.Rollback()
				return 0, err
			}
		}
	}
	if err := execBatch(); err != nil { // flush the partial final batch...
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	l.Log.Info("loaded ", rowCount, " PLACES county records from ", filepath.Base(filePath))
	return rowCount, nil
}

// LoadRawDirectory loads every PLACES extraction file found in dir.
// Files that fail to load are reported and skipped so one bad file doesn't block the rest.
func (l *Loader) LoadRawDirectory(dir string) (int64, error) {
	pattern := filepath.Join(dir, constants.RawFilePrefixPlaces+"_*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		l.Log.Warn("no raw files found matching ", pattern)
		return 0, nil
	}
	l.Log.Info("found ", len(files), " raw files to load")
	total := int64(0)
	for _, f := range files {
		n, err := l.LoadJsonFile(f)
		if err != nil {
			l.Log.Error("error loading ", f, ": ", err)
			continue
		}
		total += n
	}
	return total, nil
}

// GetRecordCounts returns row counts for the raw tables.
func (l *Loader) GetRecordCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	qualified := fmt.Sprintf("%v.%v", constants.SchemaRaw, constants.TableRawPlacesCounty)
	n, err := QueryCount(context.Background(), l.Db, "select count(*) from "+qualified)
	if err != nil {
		return nil, err
	}
	counts[constants.TableRawPlacesCounty] = n
	return counts, nil
}
