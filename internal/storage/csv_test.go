// internal/storage/csv_test.go
package storage

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/poller"
)

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ptr(v float64) *float64 { return &v }

func record(at time.Time, meterID byte, watts *float64) poller.OutputRecord {
	return poller.OutputRecord{
		Date:     at.Format("2006-01-02"),
		Time:     at.Format("15:04:05"),
		At:       at,
		MeterID:  meterID,
		Readings: poller.ReadingSet{"Watts Total": watts},
		Comm:     poller.CommOK,
		Status:   poller.StatusOK,
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestCSVWriter_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter_data.csv")
	w := NewCSVWriter(path, []string{"Watts Total"}, testLog())

	now := time.Now()
	if err := w.Write(record(now, 1, ptr(1500.456))); err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if err := w.Write(record(now, 2, nil)); err != nil {
		t.Fatalf("Write err=%v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want header + 2", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][len(rows[0])-1] != "Watts Total" {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][len(rows[1])-1] != "1500.46" {
		t.Fatalf("value cell=%q, want 2-decimal formatting", rows[1][len(rows[1])-1])
	}
	if rows[2][len(rows[2])-1] != "None" {
		t.Fatalf("nil cell=%q, want None", rows[2][len(rows[2])-1])
	}
}

func TestCSVWriter_DropsRowsPastRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter_data.csv")
	w := NewCSVWriter(path, []string{"Watts Total"}, testLog())

	now := time.Now()
	if err := w.Write(record(now.Add(-2*time.Hour), 1, ptr(100))); err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if err := w.Write(record(now, 1, ptr(200))); err != nil {
		t.Fatalf("Write err=%v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want header + 1 (stale row dropped)", len(rows))
	}
	if rows[1][len(rows[1])-1] != "200.00" {
		t.Fatalf("kept row=%v, want the fresh one", rows[1])
	}
}
