package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	c "github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/warehouse"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRows struct {
	Status  WebServerResponse        `json:"status"`
	Message string                   `json:"message,omitempty"`
	Count   int                      `json:"count"`
	Rows    []map[string]interface{} `json:"rows"`
}

type ResponseStatus struct {
	Status       WebServerResponse `json:"status"`
	Message      string            `json:"message,omitempty"`
	TableCounts  map[string]int64  `json:"tableCounts"`
	LastLoadedAt interface{}       `json:"lastLoadedAt"`
	LastBuiltAt  interface{}       `json:"lastBuiltAt"`
}

var stateCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// rowsCollector buffers a query's results as maps keyed by column name.
type rowsCollector struct {
	header []string
	rows   []map[string]interface{}
}

func (r *rowsCollector) HandleHeader(i []interface{}) error {
	r.header = make([]string, len(i))
	for idx, v := range i {
		r.header[idx] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (r *rowsCollector) HandleRow(i []interface{}) error {
	row := make(map[string]interface{}, len(i))
	for idx, v := range i {
		row[r.header[idx]] = v
	}
	r.rows = append(r.rows, row)
	return nil
}

func respond(log logger.Logger, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("error encoding web response: ", err)
	}
}

func respondError(log logger.Logger, w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ResponseRows{Status: Error, Message: msg}); err != nil {
		log.Error("error encoding web response: ", err)
	}
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerCounties serves mart rows, optionally filtered to one state via
// the ?state= query parameter.
func GetHandlerCounties(log logger.Logger, db warehouse.Connector) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		collector := &rowsCollector{}
		sqltext := fmt.Sprintf(`select * from %s.%s`, c.SchemaMart, c.TableMartCountyHealth)
		args := make([]interface{}, 0, 1)
		if state := strings.ToUpper(r.URL.Query().Get("state")); state != "" {
			if !stateCodePattern.MatchString(state) {
				respondError(log, w, http.StatusBadRequest, "state must be a two-letter code")
				return
			}
			sqltext += " where state_code = ?"
			args = append(args, state)
		}
		sqltext += " order by state_code, health_burden_score desc nulls last, county_name"
		if err := warehouse.SqlQuery(r.Context(), log, db, sqltext, collector, args...); err != nil {
			log.Error("error querying counties: ", err)
			respondError(log, w, http.StatusInternalServerError, "error querying county data")
			return
		}
		respond(log, w, ResponseRows{Status: Okay, Count: len(collector.rows), Rows: collector.rows})
	}
}

// GetHandlerStates serves the state profile table.
func GetHandlerStates(log logger.Logger, db warehouse.Connector) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		collector := &rowsCollector{}
		sqltext := fmt.Sprintf("select * from %s.%s order by state_code", c.SchemaIntermediate, c.TableIntStateProfiles)
		if err := warehouse.SqlQuery(r.Context(), log, db, sqltext, collector); err != nil {
			log.Error("error querying states: ", err)
			respondError(log, w, http.StatusInternalServerError, "error querying state data")
			return
		}
		respond(log, w, ResponseRows{Status: Okay, Count: len(collector.rows), Rows: collector.rows})
	}
}

// GetHandlerStatus serves pipeline freshness info: row counts for the raw and
// published tables plus the latest load and mart build times. The staging and
// rankings layers are internal and stay off the API.
func GetHandlerStatus(log logger.Logger, db warehouse.Connector) func(w http.ResponseWriter, r *http.Request) {
	tables := map[string]string{
		c.TableRawPlacesCounty:  c.SchemaRaw + "." + c.TableRawPlacesCounty,
		c.TableIntStateProfiles: c.SchemaIntermediate + "." + c.TableIntStateProfiles,
		c.TableMartCountyHealth: c.SchemaMart + "." + c.TableMartCountyHealth,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ResponseStatus{Status: Okay, TableCounts: make(map[string]int64, len(tables))}
		for name, qualified := range tables {
			n, err := warehouse.QueryCount(r.Context(), db, "select count(*) from "+qualified)
			if err != nil { // tables may not exist before the first run.
				log.Debug("status count for ", qualified, ": ", err)
				continue
			}
			resp.TableCounts[name] = n
		}
		resp.LastLoadedAt = maxTimestamp(r.Context(), log, db,
			fmt.Sprintf("select max(%s) from %s.%s", c.LoadedAtColumnName, c.SchemaRaw, c.TableRawPlacesCounty))
		resp.LastBuiltAt = maxTimestamp(r.Context(), log, db,
			fmt.Sprintf("select max(mart_built_at) from %s.%s", c.SchemaMart, c.TableMartCountyHealth))
		respond(log, w, resp)
	}
}

func maxTimestamp(ctx context.Context, log logger.Logger, db warehouse.Connector, sqltext string) interface{} {
	collector := &rowsCollector{}
	if err := warehouse.SqlQuery(ctx, log, db, sqltext, collector); err != nil {
		log.Debug("timestamp query failed: ", err)
		return nil
	}
	if len(collector.rows) == 0 {
		return nil
	}
	for _, v := range collector.rows[0] {
		return v
	}
	return nil
}
