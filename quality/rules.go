package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	h "github.com/healthpulse/healthpulse/helper"
	"github.com/healthpulse/healthpulse/warehouse"
)

// Rule is a user-defined quality check: Sql fetches rows from the warehouse
// and Logic is a JsonLogic expression evaluated against each row, keyed by
// column name. The rule passes when the logic returns true for every row.
type Rule struct {
	Name  string                 `mapstructure:"name" errorTxt:"quality rule name" mandatory:"yes"`
	Sql   string                 `mapstructure:"sql" errorTxt:"quality rule sql" mandatory:"yes"`
	Logic map[string]interface{} `mapstructure:"logic"`
}

// ParseRules decodes the free-form rule maps found in config into typed rules.
func ParseRules(raw []map[string]interface{}) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for idx, m := range raw {
		var rule Rule
		if err := mapstructure.Decode(m, &rule); err != nil {
			return nil, errors.Wrapf(err, "error decoding quality rule %v", idx)
		}
		if err := h.ValidateStructIsPopulated(&rule); err != nil {
			return nil, errors.Wrapf(err, "error in quality rule %v", idx)
		}
		if rule.Logic == nil {
			return nil, fmt.Errorf("quality rule %v is missing its logic", rule.Name)
		}
		logicJson, err := json.Marshal(rule.Logic)
		if err != nil {
			return nil, errors.Wrapf(err, "error in quality rule %v", rule.Name)
		}
		if !jsonlogic.IsValid(bytes.NewReader(logicJson)) {
			return nil, fmt.Errorf("quality rule %v has invalid logic: %v", rule.Name, string(logicJson))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// rowCapture collects the rows of a query as maps keyed by column name.
type rowCapture struct {
	header []string
	rows   []map[string]interface{}
}

func (r *rowCapture) HandleHeader(i []interface{}) error {
	r.header = make([]string, len(i))
	for idx, v := range i {
		r.header[idx] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (r *rowCapture) HandleRow(i []interface{}) error {
	row := make(map[string]interface{}, len(i))
	for idx, v := range i {
		row[r.header[idx]] = v
	}
	r.rows = append(r.rows, row)
	return nil
}

// runRule applies the rule's logic to every row its query returns.
// The first row the logic rejects fails the rule.
func (r *Runner) runRule(ctx context.Context, rule Rule) (Check, error) {
	capture := &rowCapture{}
	if err := warehouse.SqlQuery(ctx, r.Log, r.Db, rule.Sql, capture); err != nil {
		return Check{}, errors.Wrapf(err, "error running quality rule %v", rule.Name)
	}
	if len(capture.rows) == 0 {
		return Check{Name: rule.Name, Passed: false, Detail: "rule query returned no rows"}, nil
	}
	logicJson, err := json.Marshal(rule.Logic)
	if err != nil {
		return Check{}, errors.Wrapf(err, "error marshalling logic for quality rule %v", rule.Name)
	}
	for _, row := range capture.rows {
		dataJson, err := json.Marshal(row)
		if err != nil {
			return Check{}, errors.Wrapf(err, "error marshalling data for quality rule %v", rule.Name)
		}
		result := bytes.Buffer{}
		if err := jsonlogic.Apply(bytes.NewReader(logicJson), bytes.NewReader(dataJson), &result); err != nil {
			return Check{}, errors.Wrapf(err, "error applying logic for quality rule %v", rule.Name)
		}
		if strings.TrimSpace(result.String()) != "true" { // the first rejected row fails the rule...
			return Check{Name: rule.Name, Passed: false, Detail: "failing row: " + string(dataJson)}, nil
		}
	}
	return Check{Name: rule.Name, Passed: true, Detail: fmt.Sprintf("%v rows passed", len(capture.rows))}, nil
}
