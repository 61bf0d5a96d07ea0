// internal/storage/csv.go
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/poller"
)

// csvRetention is how much history the snapshot CSV keeps. The file is
// a rolling window for the dashboard and alerting collaborators, not an
// archive; long-term history lives in SQLite.
const csvRetention = time.Hour

const csvTimeLayout = "2006-01-02 15:04:05"

// CSVWriter maintains the rolling snapshot CSV, one row per record.
type CSVWriter struct {
	path  string
	names []string
	log   logrus.FieldLogger
}

// NewCSVWriter creates a writer with one column per register name, in
// the given order.
func NewCSVWriter(path string, names []string, log logrus.FieldLogger) *CSVWriter {
	return &CSVWriter{path: path, names: names, log: log}
}

// Write appends one record and rewrites the file, dropping rows older
// than the retention window.
func (w *CSVWriter) Write(rec poller.OutputRecord) error {
	rows := w.recentRows(rec.At.Add(-csvRetention))
	rows = append(rows, w.row(rec))

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("storage: create csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(w.header()); err != nil {
		return fmt.Errorf("storage: write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("storage: write csv rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func (w *CSVWriter) header() []string {
	return append([]string{"Date", "Time", "DateTime", "Meter_ID", "comm_status", "status"}, w.names...)
}

func (w *CSVWriter) row(rec poller.OutputRecord) []string {
	row := []string{
		rec.Date,
		rec.Time,
		rec.Date + " " + rec.Time,
		fmt.Sprintf("%d", rec.MeterID),
		string(rec.Comm),
		rec.Status,
	}
	for _, name := range w.names {
		v := rec.Readings[name]
		if v == nil {
			row = append(row, "None")
		} else {
			row = append(row, fmt.Sprintf("%.2f", *v))
		}
	}
	return row
}

// recentRows loads existing data rows newer than the cutoff.
// A missing or unreadable file just starts the window fresh.
func (w *CSVWriter) recentRows(cutoff time.Time) [][]string {
	f, err := os.Open(w.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil || len(all) < 2 {
		return nil
	}

	dtCol := -1
	for i, col := range all[0] {
		if col == "DateTime" {
			dtCol = i
			break
		}
	}
	if dtCol < 0 {
		return nil
	}

	var kept [][]string
	for _, row := range all[1:] {
		if dtCol >= len(row) {
			continue
		}
		ts, err := time.ParseInLocation(csvTimeLayout, row[dtCol], time.Local)
		if err != nil {
			w.log.WithError(err).Debug("dropping csv row with bad timestamp")
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
