// internal/poller/poller_test.go
package poller

import (
	"errors"
	"testing"
	"time"

	"github.com/sseevri/substation-monitor/internal/registers"
	"github.com/sseevri/substation-monitor/internal/transport"
)

func aggregateMap() []registers.Descriptor {
	return []registers.Descriptor{
		{Name: "Watts Total", Type: registers.Float32, Address: 40101},
		{Name: "Current Total", Type: registers.Float32, Address: 40103},
		{Name: "VA Total", Type: registers.Float32, Address: 40105},
		{Name: "VAR Total", Type: registers.Float32, Address: 40107},
	}
}

func aggregatePayload(watts, current, va, vare float32) []byte {
	p := wireFloat(watts)
	p = append(p, wireFloat(current)...)
	p = append(p, wireFloat(va)...)
	p = append(p, wireFloat(vare)...)
	return p
}

func newAggregatePoller(t *testing.T, bus Bus, meters []Meter) *Poller {
	t.Helper()
	p, err := New(Config{
		Meters:     meters,
		Interval:   time.Second,
		MaxRetries: 2,
	}, bus, aggregateMap(), registers.DefaultRanges(), testLog())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func TestPollOnce_OneRecordPerMeter(t *testing.T) {
	bus := &fakeBus{steps: []step{
		{resp: respond(1, aggregatePayload(1500, 10, 1600, 200))},
		{resp: respond(2, aggregatePayload(800, 5, 850, 100))},
	}}
	meters := []Meter{
		{ID: 1, Name: "Transformer", PowerFailLabel: "POWER_FAIL"},
		{ID: 2, Name: "EssentialLoad", PowerFailLabel: "SUPPLY_ABSENT"},
	}
	p := newAggregatePoller(t, bus, meters)

	records := p.PollOnce()
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0].MeterID != 1 || records[1].MeterID != 2 {
		t.Fatalf("meter order not preserved: %d, %d", records[0].MeterID, records[1].MeterID)
	}
	for _, rec := range records {
		if rec.Comm != CommOK || rec.Status != StatusOK {
			t.Fatalf("meter %d: comm=%s status=%s", rec.MeterID, rec.Comm, rec.Status)
		}
		if rec.Date == "" || rec.Time == "" {
			t.Fatalf("record timestamp not set")
		}
	}
}

func TestPollOnce_SupplyAbsentLabel(t *testing.T) {
	bus := &fakeBus{steps: []step{
		{resp: respond(3, aggregatePayload(0, 0, 0, 0))},
	}}
	meters := []Meter{{ID: 3, Name: "DGSetLoad", PowerFailLabel: "DG_OFF"}}
	p := newAggregatePoller(t, bus, meters)

	records := p.PollOnce()
	if records[0].Comm != CommOK {
		t.Fatalf("comm=%s, want OK", records[0].Comm)
	}
	if records[0].Status != "DG_OFF" {
		t.Fatalf("status=%q, want role-specific label", records[0].Status)
	}
}

func TestPollOnce_FailedMeterDoesNotGetSupplyLabel(t *testing.T) {
	bus := &fakeBus{} // empty responses, both attempts fail
	meters := []Meter{{ID: 3, Name: "DGSetLoad", PowerFailLabel: "DG_OFF"}}
	p := newAggregatePoller(t, bus, meters)

	records := p.PollOnce()
	if records[0].Comm != CommFailed {
		t.Fatalf("comm=%s, want FAILED", records[0].Comm)
	}
	if records[0].Status != StatusOK {
		t.Fatalf("status=%q: supply label requires healthy comm", records[0].Status)
	}
}

func TestPollOnce_TransportFailureContainedToMeter(t *testing.T) {
	bus := &fakeBus{steps: []step{
		{err: &transport.Error{Op: "read", Err: errors.New("handle invalid")}},
		{resp: respond(2, aggregatePayload(800, 5, 850, 100))},
	}}
	meters := []Meter{
		{ID: 1, Name: "Transformer"},
		{ID: 2, Name: "EssentialLoad"},
	}
	p := newAggregatePoller(t, bus, meters)

	records := p.PollOnce()
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}

	if records[0].Comm != CommFailed {
		t.Fatalf("meter 1 comm=%s, want FAILED", records[0].Comm)
	}
	for name, v := range records[0].Readings {
		if v != nil {
			t.Fatalf("meter 1 %s should be nil", name)
		}
	}
	if bus.reconnects != 1 {
		t.Fatalf("reconnects=%d, want 1", bus.reconnects)
	}

	// The next meter still polls on the reconnected bus.
	if records[1].Comm != CommOK {
		t.Fatalf("meter 2 comm=%s, want OK", records[1].Comm)
	}
}
