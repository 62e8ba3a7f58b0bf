package warehouse

import (
	"context"
	"fmt"

	"github.com/healthpulse/healthpulse/logger"
)

// SqlResultHandler receives the header then each row of a query's results.
type SqlResultHandler interface {
	HandleHeader(i []interface{}) error
	HandleRow(i []interface{}) error
}

// SqlQuery runs sqltext against db and streams the results through handler i.
// Values are scanned dynamically so callers don't need per-table scan targets.
func SqlQuery(ctx context.Context, log logger.Logger, db Connector, sqltext string, i SqlResultHandler, args ...interface{}) error {
	rows, err := db.QueryContext(ctx, sqltext, args...)
	if err != nil {
		return fmt.Errorf("error during database query using SQL: '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	log.Debug("fetching column types...")
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	// Scan the values dynamically.
	lenColTypes := len(colTypes)
	scanPtrs := make([]interface{}, lenColTypes, lenColTypes)
	scanVals := make([]interface{}, lenColTypes, lenColTypes)
	for idx := 0; idx < lenColTypes; idx++ { // for each column...
		scanPtrs[idx] = &scanVals[idx] // save the value.
	}
	// Build and send the header.
	header := make([]interface{}, lenColTypes, lenColTypes)
	for idx := range colTypes {
		header[idx] = colTypes[idx].Name()
	}
	if err := i.HandleHeader(header); err != nil {
		return err
	}
	// Send the rows via callback interface.
	for rows.Next() {
		select { // quit if asked to, else continue...
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return fmt.Errorf("error scanning row: %v", err)
		}
		// Make a new row.
		row := make([]interface{}, lenColTypes, lenColTypes)
		for idx := range scanVals { // for each value...
			row[idx] = scanVals[idx]
		}
		if err := i.HandleRow(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// QueryRowScan runs a query expected to return exactly one row and scans it
// into dest.
func QueryRowScan(ctx context.Context, db Connector, sqltext string, dest ...interface{}) error {
	rows, err := db.QueryContext(ctx, sqltext)
	if err != nil {
		return fmt.Errorf("error during query '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	if !rows.Next() {
		return fmt.Errorf("no rows returned by query '%v'", sqltext)
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Err()
}

// QueryCount runs a query expected to return a single numeric value, e.g. count(*).
func QueryCount(ctx context.Context, db Connector, sqltext string) (int64, error) {
	rows, err := db.QueryContext(ctx, sqltext)
	if err != nil {
		return 0, fmt.Errorf("error during count query '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var count int64
	if !rows.Next() {
		return 0, fmt.Errorf("no rows returned by count query '%v'", sqltext)
	}
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, rows.Err()
}
