// Package extract pulls CDC PLACES county data from the Socrata Open Data API
// and lands it as timestamped JSON files ready for warehouse loading.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/healthpulse/healthpulse/config"
	c "github.com/healthpulse/healthpulse/constants"
	"github.com/healthpulse/healthpulse/logger"
)

// Result describes one completed extract run.
type Result struct {
	FilePath string `json:"filePath"`
	Rows     int    `json:"rows"`
	Pages    int    `json:"pages"`
}

// Extractor fetches a Socrata dataset page by page.
type Extractor struct {
	Log    logger.Logger
	Cfg    *config.Extract
	client *retryablehttp.Client
}

func NewExtractor(log logger.Logger, cfg *config.Extract) *Extractor {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutSec) * time.Second
	client.Logger = nil // retry chatter goes through our logger below instead.
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Warn("retrying ", req.URL.String(), " attempt ", attempt)
		}
	}
	return &Extractor{Log: log, Cfg: cfg, client: client}
}

// Run pages through the dataset until a short page signals the end, stamps
// each record with extract metadata and writes one JSON file per run.
// The page size doubles as the $limit parameter so a full final page costs
// one extra empty request at most.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	all := make([]map[string]interface{}, 0, e.Cfg.PageLimit)
	extractedAt := time.Now().UTC()
	pages := 0
	for offset := 0; ; offset += e.Cfg.PageLimit {
		records, err := e.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		pages++
		e.Log.Info("fetched page ", pages, " with ", len(records), " records")
		for _, rec := range records {
			rec["extracted_at"] = extractedAt.Format(time.RFC3339)
			rec["source"] = c.SourceNamePlaces
			rec["dataset_id"] = e.Cfg.Dataset
			all = append(all, rec)
		}
		if len(records) < e.Cfg.PageLimit {
			break
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("dataset %v returned no records", e.Cfg.Dataset)
	}
	filePath, err := e.save(all, extractedAt)
	if err != nil {
		return nil, err
	}
	e.Log.Info("saved ", len(all), " records to ", filePath)
	return &Result{FilePath: filePath, Rows: len(all), Pages: pages}, nil
}

func (e *Extractor) fetchPage(ctx context.Context, offset int) ([]map[string]interface{}, error) {
	u, err := e.pageUrl(offset)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error building Socrata request")
	}
	if e.Cfg.AppToken != "" {
		req.Header.Set(c.SodaAppTokenHeader, e.Cfg.AppToken)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error fetching %v", u)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading response from %v", u)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %v from %v: %v", resp.StatusCode, u, truncate(string(body), 200))
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, errors.Wrapf(err, "error decoding response from %v", u)
	}
	return records, nil
}

func (e *Extractor) pageUrl(offset int) (string, error) {
	base, err := url.Parse(e.Cfg.BaseUrl)
	if err != nil {
		return "", errors.Wrapf(err, "error parsing base URL %v", e.Cfg.BaseUrl)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" + e.Cfg.Dataset + ".json"
	q := url.Values{}
	q.Set("$limit", strconv.Itoa(e.Cfg.PageLimit))
	q.Set("$offset", strconv.Itoa(offset))
	q.Set("$order", "countyfips") // stable paging order.
	if len(e.Cfg.States) > 0 {
		quoted := make([]string, len(e.Cfg.States))
		for idx, s := range e.Cfg.States {
			quoted[idx] = "'" + strings.ToUpper(s) + "'"
		}
		q.Set("$where", fmt.Sprintf("stateabbr in(%v)", strings.Join(quoted, ",")))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (e *Extractor) save(records []map[string]interface{}, extractedAt time.Time) (string, error) {
	if err := os.MkdirAll(e.Cfg.RawDir, 0755); err != nil {
		return "", errors.Wrap(err, "error creating raw data directory")
	}
	fileName := fmt.Sprintf("%v_%v_%v.json",
		c.RawFilePrefixPlaces, extractedAt.Format(c.TimeFormatYearSeconds), xid.New().String())
	filePath := filepath.Join(e.Cfg.RawDir, fileName)
	b, err := json.Marshal(records)
	if err != nil {
		return "", errors.Wrap(err, "error marshalling extracted records")
	}
	if err := os.WriteFile(filePath, b, 0644); err != nil {
		return "", errors.Wrap(err, "error writing raw data file")
	}
	return filePath, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
