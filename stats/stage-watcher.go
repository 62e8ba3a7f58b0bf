package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/healthpulse/healthpulse/logger"
)

// StageWatcher captures row counts and timings for a pipeline stage.
// Stages call StartWatching() before work and StopWatching() after.
type StageWatcher struct {
	log       logger.Logger
	stageName string
	startTime time.Time
	endTime   time.Time
	rowCount  int64
	isRunning int32
}

type Stats struct {
	StageName          string  `json:"stageName"`
	StatusText         string  `json:"statusText"`
	ElapsedTimeSec     float64 `json:"elapsedTimeSec"`
	TotalRowsProcessed int     `json:"totalRowsProcessed"`
	RowsPerSecondAvg   int     `json:"rowsPerSecondAvg"`
}

func NewStageWatcher(log logger.Logger, stageName string) *StageWatcher {
	return &StageWatcher{log: log, stageName: stageName}
}

func (w *StageWatcher) StartWatching() {
	w.startTime = time.Now()
	atomic.StoreInt64(&w.rowCount, 0)
	atomic.StoreInt32(&w.isRunning, 1)
}

func (w *StageWatcher) AddRows(n int64) {
	atomic.AddInt64(&w.rowCount, n)
}

func (w *StageWatcher) StopWatching() {
	w.endTime = time.Now()
	atomic.StoreInt32(&w.isRunning, 0)
	w.log.Debug("STATS: ", w.stageName, " ", w.RenderStats())
}

// RenderStats gets a struct filled with stats at the point in time it is called.
func (w *StageWatcher) RenderStats() Stats {
	var statusText string
	end := time.Now()
	if atomic.LoadInt32(&w.isRunning) == 1 {
		statusText = "running"
	} else {
		statusText = "complete"
		end = w.endTime
	}
	elapsed := end.Sub(w.startTime).Seconds()
	rows := atomic.LoadInt64(&w.rowCount)
	perSec := 0
	if elapsed > 0 {
		perSec = int(float64(rows) / elapsed)
	}
	return Stats{
		StageName:          w.stageName,
		StatusText:         statusText,
		ElapsedTimeSec:     elapsed,
		TotalRowsProcessed: int(rows),
		RowsPerSecondAvg:   perSec,
	}
}

// String will format the stats for general logging.
func (s Stats) String() string {
	return fmt.Sprintf("stage %v %v rows=%v elapsedSec=%.2f rowsPerSec=%v",
		s.StageName, s.StatusText, s.TotalRowsProcessed, s.ElapsedTimeSec, s.RowsPerSecondAvg)
}
