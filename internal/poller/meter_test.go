// internal/poller/meter_test.go
package poller

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sseevri/substation-monitor/internal/registers"
	"github.com/sseevri/substation-monitor/internal/rtu"
	"github.com/sseevri/substation-monitor/internal/transport"
)

// ---- fakes and helpers ----

type step struct {
	resp []byte
	err  error
}

// fakeBus scripts one Receive result per transaction, in order.
type fakeBus struct {
	steps      []step
	sent       [][]byte
	resets     int
	reconnects int
}

func (f *fakeBus) Reset() error { f.resets++; return nil }

func (f *fakeBus) Send(frame []byte) error {
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeBus) Receive(n int) ([]byte, error) {
	if len(f.steps) == 0 {
		return nil, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.resp, s.err
}

func (f *fakeBus) Reconnect() error { f.reconnects++; return nil }

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// wireFloat encodes v as the meter transmits it (CDAB word order).
func wireFloat(v float32) []byte {
	be := make([]byte, 4)
	binary.BigEndian.PutUint32(be, math.Float32bits(v))
	return []byte{be[2], be[3], be[0], be[1]}
}

// respond frames payload as a valid read response from slave id.
func respond(id byte, payload []byte) []byte {
	frame := append([]byte{id, 0x03, byte(len(payload))}, payload...)
	crc := rtu.CRC16(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

func corrupt(frame []byte) []byte {
	bad := append([]byte(nil), frame...)
	bad[len(bad)/2] ^= 0x01
	return bad
}

// testMap yields two batches: {40101,40103} and {40109}.
func testMap() []registers.Descriptor {
	return []registers.Descriptor{
		{Name: "Watts Total", Type: registers.Float32, Address: 40101},
		{Name: "Current Total", Type: registers.Float32, Address: 40103},
		{Name: "Frequency", Type: registers.Float32, Address: 40109},
	}
}

func testRanges() map[string]registers.Range {
	return map[string]registers.Range{
		"Watts Total":   {Min: 0, Max: 1000000},
		"Current Total": {Min: 0, Max: 1000},
		"Frequency":     {Min: 0, Max: 60},
	}
}

func newTestPoller(t *testing.T, bus Bus) *Poller {
	t.Helper()
	p, err := New(Config{
		Meters:     []Meter{{ID: 1, Name: "Transformer", PowerFailLabel: "POWER_FAIL"}},
		Interval:   time.Second,
		MaxRetries: 2,
	}, bus, testMap(), testRanges(), testLog())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func value(t *testing.T, rs ReadingSet, name string) float64 {
	t.Helper()
	v, ok := rs[name]
	if !ok {
		t.Fatalf("%s missing from reading set", name)
	}
	if v == nil {
		t.Fatalf("%s is nil", name)
	}
	return *v
}

// ---- tests ----

func TestReadMeter_AllBatchesOK(t *testing.T) {
	bus := &fakeBus{steps: []step{
		{resp: respond(1, append(wireFloat(1500), wireFloat(12.5)...))},
		{resp: respond(1, wireFloat(49.9))},
	}}
	p := newTestPoller(t, bus)

	rs, comm, err := p.ReadMeter(1)
	if err != nil {
		t.Fatalf("ReadMeter err=%v", err)
	}
	if comm != CommOK {
		t.Fatalf("comm=%s, want OK", comm)
	}
	if got := value(t, rs, "Watts Total"); got != 1500 {
		t.Fatalf("Watts Total=%v", got)
	}
	if got := value(t, rs, "Frequency"); math.Abs(got-49.9) > 1e-4 {
		t.Fatalf("Frequency=%v", got)
	}

	// One transaction per batch, each preceded by a buffer reset.
	if len(bus.sent) != 2 || bus.resets != 2 {
		t.Fatalf("sent=%d resets=%d", len(bus.sent), bus.resets)
	}
}

func TestReadMeter_RetryRecovers(t *testing.T) {
	good := respond(1, append(wireFloat(1500), wireFloat(12.5)...))
	bus := &fakeBus{steps: []step{
		{resp: corrupt(good)},
		{resp: good},
		{resp: respond(1, wireFloat(50))},
	}}
	p := newTestPoller(t, bus)

	rs, comm, err := p.ReadMeter(1)
	if err != nil {
		t.Fatalf("ReadMeter err=%v", err)
	}
	if comm != CommOK {
		t.Fatalf("comm=%s, want OK after recovery", comm)
	}
	if got := value(t, rs, "Watts Total"); got != 1500 {
		t.Fatalf("Watts Total=%v, want attempt 2 value", got)
	}
	if len(bus.sent) != 3 {
		t.Fatalf("sent=%d, want 3 (retry re-sends the frame)", len(bus.sent))
	}
}

func TestReadMeter_ExhaustedRetriesNullsBatchOnly(t *testing.T) {
	good := respond(1, append(wireFloat(1500), wireFloat(12.5)...))
	bus := &fakeBus{steps: []step{
		{resp: corrupt(good)},
		{resp: corrupt(good)},
		{resp: respond(1, wireFloat(50))},
	}}
	p := newTestPoller(t, bus)

	rs, comm, err := p.ReadMeter(1)
	if err != nil {
		t.Fatalf("ReadMeter err=%v", err)
	}
	if comm != CommFailed {
		t.Fatalf("comm=%s, want FAILED", comm)
	}
	if rs["Watts Total"] != nil || rs["Current Total"] != nil {
		t.Fatalf("failed batch members must be nil")
	}
	// The second batch is unaffected by the first batch's failure.
	if got := value(t, rs, "Frequency"); got != 50 {
		t.Fatalf("Frequency=%v, want 50", got)
	}
}

func TestReadMeter_EmptyResponseRetriesThenFails(t *testing.T) {
	bus := &fakeBus{} // every Receive yields nothing
	p := newTestPoller(t, bus)

	rs, comm, err := p.ReadMeter(1)
	if err != nil {
		t.Fatalf("ReadMeter err=%v", err)
	}
	if comm != CommFailed {
		t.Fatalf("comm=%s, want FAILED", comm)
	}
	for name, v := range rs {
		if v != nil {
			t.Fatalf("%s should be nil", name)
		}
	}
	// 2 batches x 2 attempts.
	if len(bus.sent) != 4 {
		t.Fatalf("sent=%d, want 4", len(bus.sent))
	}
}

func TestReadMeter_TransportErrorEscalates(t *testing.T) {
	bus := &fakeBus{steps: []step{
		{err: &transport.Error{Op: "read", Err: errors.New("handle invalid")}},
	}}
	p := newTestPoller(t, bus)

	_, _, err := p.ReadMeter(1)
	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("err=%v, want transport.Error", err)
	}
	// Not retried locally.
	if len(bus.sent) != 1 {
		t.Fatalf("sent=%d, want 1", len(bus.sent))
	}
}

func TestReadMeter_DecodeFailureRetriesLikeFrameError(t *testing.T) {
	// Valid frame whose float payload decodes to an unreasonable value.
	junk := respond(1, append(wireFloat(5e12), wireFloat(12.5)...))
	good := respond(1, append(wireFloat(1500), wireFloat(12.5)...))
	bus := &fakeBus{steps: []step{
		{resp: junk},
		{resp: good},
		{resp: respond(1, wireFloat(50))},
	}}
	p := newTestPoller(t, bus)

	rs, comm, err := p.ReadMeter(1)
	if err != nil {
		t.Fatalf("ReadMeter err=%v", err)
	}
	if comm != CommOK {
		t.Fatalf("comm=%s, want OK", comm)
	}
	if got := value(t, rs, "Watts Total"); got != 1500 {
		t.Fatalf("Watts Total=%v", got)
	}
}
