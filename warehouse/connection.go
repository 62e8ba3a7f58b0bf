package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/pkg/errors"
)

// Connector abstracts access to the local analytical store so pipeline stages and
// quality checks can be tested against an in-memory database.
type Connector interface {
	Begin() (Transacter, error)
	Exec(query string, args ...interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Close()
	GetType() string
}

// Transacter abstracts a database transaction.
// The transformation pipeline runs all of its stages inside one of these so a failed
// run leaves previously-materialised tables untouched.
type Transacter interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Commit() error
	Rollback() error
}

// Connection is the single shared handle onto the DuckDB warehouse file.
// The store serves one writer at a time; callers are expected to scope acquisition and
// release around each run rather than holding a process-wide global.
type Connection struct {
	DbSql  *sql.DB
	DbType string
}

// OpenConnection opens the DuckDB database at the supplied path.
// An empty path opens an in-memory database, which the tests use.
func OpenConnection(log logger.Logger, dbPath string) (*Connection, error) {
	log.Debug("opening warehouse connection to ", dbPath)
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening warehouse database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrapf(err, "error connecting to warehouse database %q", dbPath)
	}
	log.Info("connected to warehouse at ", dbPath)
	return &Connection{DbSql: db, DbType: "duckdb"}, nil
}

func (c *Connection) Begin() (Transacter, error) {
	tx, err := c.DbSql.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{txSql: tx}, nil
}

func (c *Connection) Exec(query string, args ...interface{}) (sql.Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.DbSql.ExecContext(ctx, query, args...)
}

func (c *Connection) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.DbSql.QueryContext(ctx, query, args...)
}

func (c *Connection) Close() {
	_ = c.DbSql.Close()
}

func (c *Connection) GetType() string {
	return c.DbType
}

// Tx wraps Go native sql.Tx to satisfy Transacter.
type Tx struct {
	txSql *sql.Tx
}

func (t *Tx) Exec(query string, args ...interface{}) (sql.Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.txSql.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.txSql.QueryContext(ctx, query, args...)
}

func (t *Tx) Commit() error {
	return t.txSql.Commit()
}

func (t *Tx) Rollback() error {
	return t.txSql.Rollback()
}

// EnsureSchemas creates the warehouse schemas used by the pipeline if they are missing.
func EnsureSchemas(log logger.Logger, db Connector) error {
	for _, schema := range []string{
		constants.SchemaRaw,
		constants.SchemaStaging,
		constants.SchemaIntermediate,
		constants.SchemaMart,
	} {
		if _, err := db.Exec(fmt.Sprintf("create schema if not exists %v", schema)); err != nil {
			return errors.Wrapf(err, "error creating schema %v", schema)
		}
		log.Debug("ensured schema ", schema)
	}
	return nil
}
