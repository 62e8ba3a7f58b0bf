package warehouse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	h "github.com/healthpulse/healthpulse/helper"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/pkg/errors"
)

// ColumnType is the warehouse data type assigned to an inferred column.
type ColumnType string

const (
	ColumnTypeVarchar   ColumnType = "VARCHAR"
	ColumnTypeBigint    ColumnType = "BIGINT"
	ColumnTypeDouble    ColumnType = "DOUBLE"
	ColumnTypeBoolean   ColumnType = "BOOLEAN"
	ColumnTypeTimestamp ColumnType = "TIMESTAMP"
)

// socrataTimeFormats are the timestamp layouts seen in SODA API responses.
var socrataTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// TableDefinition describes a physical table as an ordered list of typed columns.
// Column order matters: it fixes both the generated DDL and the INSERT column list,
// so a definition inferred from the same input is always identical.
type TableDefinition struct {
	SchemaName string
	TableName  string
	cols       *om.OrderedMap // column name -> ColumnType
}

func NewTableDefinition(schemaName string, tableName string) *TableDefinition {
	return &TableDefinition{SchemaName: schemaName, TableName: tableName, cols: om.NewOrderedMap()}
}

// AddColumn appends a column. Adding an existing column updates its type in place.
func (d *TableDefinition) AddColumn(name string, colType ColumnType) {
	d.cols.Set(name, colType)
}

// Columns returns the column names in definition order.
func (d *TableDefinition) Columns() []string {
	retval := make([]string, 0, d.cols.Len())
	iter := d.cols.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}

// ColumnType returns the type of the named column and whether it exists.
func (d *TableDefinition) ColumnType(name string) (ColumnType, bool) {
	v, ok := d.cols.Get(name)
	if !ok {
		return "", false
	}
	return v.(ColumnType), true
}

func (d *TableDefinition) NumColumns() int {
	return d.cols.Len()
}

// QualifiedName returns "<schema>.<table>".
func (d *TableDefinition) QualifiedName() string {
	return fmt.Sprintf("%v.%v", d.SchemaName, d.TableName)
}

// CreateTableSql generates DDL to create the table if it does not exist.
// Column names are quoted since raw source keys are not under our control.
func (d *TableDefinition) CreateTableSql() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("create table if not exists %v (", d.QualifiedName()))
	iter := d.cols.IterFunc()
	first := true
	for kv, ok := iter(); ok; kv, ok = iter() {
		if !first {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%q %v", kv.Key.(string), kv.Value.(ColumnType)))
		first = false
	}
	b.WriteString(")")
	return b.String()
}

// ParseRecords decodes raw extraction JSON into flat records.
// Accepted shapes mirror what extraction clients produce: a JSON array of objects,
// an object with a "data" array, or a single object.
// The returned key order is taken from the first record as it appears on the wire,
// so inferred schemas keep the source column order.
func ParseRecords(b []byte) (records []map[string]interface{}, keyOrder []string, err error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, nil, nil
	}
	var rawRecords []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &rawRecords); err != nil {
			return nil, nil, errors.Wrap(err, "error parsing JSON array of records")
		}
	case '{':
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, nil, errors.Wrap(err, "error parsing JSON record envelope")
		}
		if envelope.Data != nil { // if the object wraps a "data" array...
			rawRecords = envelope.Data
		} else { // else treat the object as a single record...
			rawRecords = []json.RawMessage{trimmed}
		}
	default:
		return nil, nil, fmt.Errorf("unexpected JSON input starting with %q", string(trimmed[0]))
	}
	if len(rawRecords) == 0 {
		return nil, nil, nil
	}
	keyOrder, err = firstObjectKeys(rawRecords[0])
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading first record's keys")
	}
	records = make([]map[string]interface{}, 0, len(rawRecords))
	for idx, raw := range rawRecords {
		m := make(map[string]interface{})
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, nil, errors.Wrapf(err, "error parsing record %v", idx)
		}
		records = append(records, m)
	}
	return records, keyOrder, nil
}

// firstObjectKeys tokenises one JSON object and returns its keys in wire order.
func firstObjectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object; got token %v", tok)
	}
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key; got token %v", keyTok)
		}
		keys = append(keys, key)
		if err := skipJsonValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipJsonValue consumes one JSON value, descending into nested objects and arrays.
func skipJsonValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok { // if the value is a scalar...
		return nil
	}
	switch delim {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil { // consume the key...
				return err
			}
			if err := skipJsonValue(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := skipJsonValue(dec); err != nil {
				return err
			}
		}
	}
	_, err = dec.Token() // consume the closing delimiter.
	return err
}

// InferSchema builds a TableDefinition for the supplied records.
// Columns follow keyOrder first; keys seen only in later records are appended in
// sorted order so the result does not depend on map iteration.
// Type inference looks at every non-null value of a column and picks the narrowest
// type that fits all of them, falling back to VARCHAR on any disagreement.
func InferSchema(log logger.Logger, schemaName string, tableName string, records []map[string]interface{}, keyOrder []string) *TableDefinition {
	d := NewTableDefinition(schemaName, tableName)
	keys := h.StringSliceToOrderedMap(keyOrder)
	extraSeen := make(map[string]struct{})
	extra := make([]string, 0)
	for _, rec := range records {
		for k := range rec {
			if _, ok := keys.Get(k); ok { // if this key was in the first record...
				continue
			}
			if _, ok := extraSeen[k]; ok {
				continue
			}
			extraSeen[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		keys.Set(k, k)
	}
	for _, k := range h.OrderedMapKeysToStringSlice(log, keys) {
		colType := inferColumnType(records, k)
		d.AddColumn(k, colType)
		log.Debug("inferred column ", k, " as ", colType)
	}
	return d
}

func inferColumnType(records []map[string]interface{}, key string) ColumnType {
	current := ColumnType("")
	for _, rec := range records {
		v, ok := rec[key]
		if !ok || v == nil { // absent and null values don't constrain the type...
			continue
		}
		t := scalarType(v)
		if current == "" {
			current = t
		} else if current != t {
			// BIGINT widens to DOUBLE; anything else degrades to VARCHAR.
			if (current == ColumnTypeBigint && t == ColumnTypeDouble) ||
				(current == ColumnTypeDouble && t == ColumnTypeBigint) {
				current = ColumnTypeDouble
			} else {
				return ColumnTypeVarchar
			}
		}
	}
	if current == "" { // if the column is entirely null...
		return ColumnTypeVarchar
	}
	return current
}

func scalarType(v interface{}) ColumnType {
	switch x := v.(type) {
	case bool:
		return ColumnTypeBoolean
	case float64:
		if x == float64(int64(x)) { // if the number has no fractional part...
			return ColumnTypeBigint
		}
		return ColumnTypeDouble
	case string:
		for _, layout := range socrataTimeFormats {
			if _, err := time.Parse(layout, x); err == nil {
				return ColumnTypeTimestamp
			}
		}
		if _, err := strconv.ParseInt(x, 10, 64); err == nil {
			if len(x) > 1 && x[0] == '0' {
				// Keep leading-zero codes (e.g. county FIPS "01001") as text.
				return ColumnTypeVarchar
			}
			return ColumnTypeBigint
		}
		if _, err := strconv.ParseFloat(x, 64); err == nil {
			return ColumnTypeDouble
		}
		return ColumnTypeVarchar
	default: // nested objects and arrays are stored as JSON text...
		return ColumnTypeVarchar
	}
}

// CoerceValue converts a raw record value to the Go type matching the column type,
// ready to bind as an INSERT argument. A nil input stays nil.
// A non-null value that cannot be interpreted as the column type is an error.
func CoerceValue(v interface{}, colType ColumnType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch colType {
	case ColumnTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ColumnTypeBigint:
		switch x := v.(type) {
		case float64:
			return int64(x), nil
		case string:
			return strconv.ParseInt(x, 10, 64)
		}
	case ColumnTypeDouble:
		switch x := v.(type) {
		case float64:
			return x, nil
		case string:
			return strconv.ParseFloat(x, 64)
		}
	case ColumnTypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			for _, layout := range socrataTimeFormats {
				if t, err := time.Parse(layout, x); err == nil {
					return t, nil
				}
			}
		}
	case ColumnTypeVarchar:
		switch x := v.(type) {
		case string:
			return x, nil
		default: // render non-string scalars and nested values as JSON text...
			b, err := json.Marshal(x)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce value %v (%T) to %v", v, v, colType)
}
